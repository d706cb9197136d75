package types

// SearchResult is a single nearest-neighbour hit returned to callers
type SearchResult struct {
	ID       string        `json:"id"`
	Rank     int           `json:"rank"` // Position in result set (1-based)
	Distance float64       `json:"distance"`
	Document string        `json:"document"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Metadata.Path == "" {
		return ErrEmptyPath
	}
	if sr.Document == "" {
		return ErrEmptyContent
	}
	return nil
}
