package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// FlatIndex is an append-only, brute-force nearest-neighbor index using
// squared Euclidean distance. The corpus is small (a single user's study
// material), so an exact linear scan beats approximate structures on both
// simplicity and result quality; there is no delete or update because the
// only mutation patterns are append and full rebuild.
//
// FlatIndex itself is not synchronized. The owning retriever serializes
// writes and publishes the index by reference swap.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an empty index with a fixed dimension. A dimension
// of 0 means "set on first Add".
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dimension returns the index's vector dimension (0 until first Add).
func (idx *FlatIndex) Dimension() int { return idx.dim }

// Len returns the number of entries.
func (idx *FlatIndex) Len() int { return len(idx.vectors) }

// Add appends vectors in order. The first vector of the first batch fixes
// the dimension when it was not set at construction time; every later
// vector must match it.
func (idx *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: vector %d is empty", ErrDimensionMismatch, i)
		}
		if idx.dim == 0 {
			idx.dim = len(v)
		}
		if len(v) != idx.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index has %d",
				ErrDimensionMismatch, i, len(v), idx.dim)
		}
	}
	idx.vectors = append(idx.vectors, vectors...)
	return nil
}

// Search returns up to topK entries nearest to query by squared Euclidean
// distance, ascending, ties broken by slot. An empty index yields an empty
// result, not an error.
func (idx *FlatIndex) Search(query []float32, topK int) ([]Hit, error) {
	if len(idx.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(query), idx.dim)
	}
	if topK <= 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, len(idx.vectors))
	for i, v := range idx.vectors {
		hits[i] = Hit{Slot: i, Distance: squaredL2(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].Slot < hits[b].Slot
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Binary layout of a persisted index: a magic marker, then dimension and
// entry count as uint32, then count*dim float32 values, all little-endian.
var indexMagic = [4]byte{'S', 'R', 'I', '1'}

// Save writes the index to path via a temp file renamed into place, so a
// crash mid-write never leaves a truncated index behind.
func (idx *FlatIndex) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := idx.write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

func (idx *FlatIndex) write(w io.Writer) error {
	if _, err := w.Write(indexMagic[:]); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(idx.dim))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(idx.vectors)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}

	buf := make([]byte, 4)
	for _, v := range idx.vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("failed to write vector data: %w", err)
			}
		}
	}
	return nil
}

// LoadFlatIndex reads an index previously written by Save.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return readFlatIndex(f)
}

func readFlatIndex(r io.Reader) (*FlatIndex, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("not an index file (bad magic %q)", magic)
	}

	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	dim := int(binary.LittleEndian.Uint32(header[0:4]))
	count := int(binary.LittleEndian.Uint32(header[4:8]))
	if dim == 0 && count > 0 {
		return nil, fmt.Errorf("corrupt index: %d entries with dimension 0", count)
	}

	idx := NewFlatIndex(dim)
	if count == 0 {
		return idx, nil
	}

	data := make([]byte, 4*dim)
	idx.vectors = make([][]float32, 0, count)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("failed to read vector %d: %w", i, err)
		}
		v := make([]float32, dim)
		for j := 0; j < dim; j++ {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*j:]))
		}
		idx.vectors = append(idx.vectors, v)
	}
	return idx, nil
}
