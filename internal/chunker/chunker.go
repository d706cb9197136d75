package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// Size is the maximum number of characters per chunk
	Size = 1000

	// Overlap is the number of characters shared by consecutive chunks
	Overlap = 200

	// Stride is the distance between the starts of consecutive chunks
	Stride = Size - Overlap
)

// Chunker splits text into overlapping, fixed-size character windows.
// Characters are Unicode code points, not bytes.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker with the package defaults
func New() *Chunker {
	return &Chunker{size: Size, overlap: Overlap}
}

// Split returns every chunk of text in order
func (c *Chunker) Split(text string) []string {
	chunks := make([]string, 0, c.Count(utf8.RuneCountInString(text)))
	_ = c.Each(text, func(_ int, chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	return chunks
}

// Each streams the chunks of text to fn without materializing the full list.
// Iteration stops at the first error returned by fn.
func (c *Chunker) Each(text string, fn func(index int, chunk string) error) error {
	runes := []rune(text)
	stride := c.size - c.overlap

	index := 0
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		if err := fn(index, string(runes[start:end])); err != nil {
			return err
		}
		index++
	}
	return nil
}

// Count returns the number of chunks Each produces for a text of length
// characters. It is used for progress accounting before any chunk is built.
func (c *Chunker) Count(length int) int {
	if length <= 0 {
		return 0
	}
	stride := c.size - c.overlap
	return (length + stride - 1) / stride
}

// CountText is Count applied to the character length of text
func (c *Chunker) CountText(text string) int {
	return c.Count(utf8.RuneCountInString(text))
}

// Reassemble rebuilds the original text from chunks produced by Split
func (c *Chunker) Reassemble(chunks []string) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			b.WriteString(chunk)
			continue
		}
		runes := []rune(chunk)
		if len(runes) <= c.overlap {
			// A short tail chunk lies entirely inside the previous chunk
			continue
		}
		b.WriteString(string(runes[c.overlap:]))
	}
	return b.String()
}

// Normalize converts raw file bytes to chunkable text, dropping invalid UTF-8
func Normalize(content []byte) string {
	return strings.ToValidUTF8(string(content), "")
}
