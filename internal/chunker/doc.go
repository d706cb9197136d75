// Package chunker divides file text into overlapping character windows for embedding.
//
// Chunking is purely offset based: no attempt is made to respect language
// constructs. Every chunk is at most Size characters long and consecutive chunks
// share exactly Overlap characters, except that the final chunk may be shorter.
//
// # Basic Usage
//
//	c := chunker.New()
//	err := c.Each(text, func(index int, chunk string) error {
//	    return batch.Append(path, index, chunk)
//	})
//
// # Counting Without Chunking
//
// Count gives the exact number of chunks Each will emit for a given character
// length. The indexer uses it to raise progress totals up front and to account for
// files it skips without reading them into chunks:
//
//	n := c.Count(utf8.RuneCountInString(text)) // ceil(L / (Size-Overlap)), 0 for L == 0
//
// # Characters
//
// Lengths and offsets are measured in Unicode code points so that multi-byte
// characters are never split. Use Normalize on raw file bytes first; it drops
// invalid UTF-8 sequences.
package chunker
