package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyPath         = errors.New("path cannot be empty")
	ErrInvalidChunkIndex = errors.New("chunk index must be >= 0")
	ErrInvalidRank       = errors.New("rank must be >= 1")
	ErrEmptyContent      = errors.New("content cannot be empty")
)
