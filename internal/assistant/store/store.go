// Package store provides the vector index over document-chunk embeddings.
package store

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the index's fixed dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Hit is a single nearest-neighbor result: the insertion slot of the entry
// and its squared Euclidean distance to the query. Lower distance means
// more similar.
type Hit struct {
	Slot     int
	Distance float32
}
