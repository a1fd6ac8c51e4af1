package biz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kart-io/logger"

	"github.com/studykit/studyrag/internal/assistant/store"
	"github.com/studykit/studyrag/pkg/llm"
	"github.com/studykit/studyrag/pkg/utils/json"
)

const (
	// DefaultTopK is how many nearest chunks a retrieval returns.
	DefaultTopK = 3

	indexFileName  = "index.bin"
	chunksFileName = "chunks.json"
)

// ScoredChunk is one retrieval result: a chunk's text with its squared
// Euclidean distance to the query. Smaller distance means more relevant.
type ScoredChunk struct {
	Slot     int     `json:"slot"`
	Text     string  `json:"text"`
	Distance float32 `json:"distance"`
}

// RetrieverConfig configures index persistence and retrieval width.
type RetrieverConfig struct {
	// DataDir holds index.bin and chunks.json.
	DataDir string

	// TopK is the number of neighbors returned per query.
	TopK int
}

// Retriever owns the vector index and its co-indexed chunk list. The pair
// is replaced atomically on rebuild: readers either see the previous
// complete corpus or the new one, never a mix. Both halves persist to
// DataDir and are reloaded at construction.
type Retriever struct {
	embedder llm.EmbeddingProvider
	dataDir  string
	topK     int

	// buildMu serializes rebuilds so concurrent uploads cannot interleave
	// their persistence writes.
	buildMu sync.Mutex

	mu         sync.RWMutex
	index      *store.FlatIndex
	chunks     []string
	generation uint64
}

// NewRetriever creates a retriever and reloads any previously persisted
// index from cfg.DataDir. A missing or partial persisted pair starts the
// retriever empty rather than failing.
func NewRetriever(embedder llm.EmbeddingProvider, cfg RetrieverConfig) (*Retriever, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("retriever data dir is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	r := &Retriever{
		embedder: embedder,
		dataDir:  cfg.DataDir,
		topK:     cfg.TopK,
	}
	r.loadPersisted()
	return r, nil
}

func (r *Retriever) loadPersisted() {
	indexPath := filepath.Join(r.dataDir, indexFileName)
	chunksPath := filepath.Join(r.dataDir, chunksFileName)

	index, err := store.LoadFlatIndex(indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnw("failed to load persisted index, starting empty",
				"path", indexPath, "error", err.Error())
		}
		return
	}

	data, err := os.ReadFile(chunksPath)
	if err != nil {
		logger.Warnw("persisted index has no chunk sidecar, starting empty",
			"path", chunksPath, "error", err.Error())
		return
	}
	var chunks []string
	if err := json.Unmarshal(data, &chunks); err != nil {
		logger.Warnw("failed to decode chunk sidecar, starting empty",
			"path", chunksPath, "error", err.Error())
		return
	}
	if len(chunks) != index.Len() {
		logger.Warnw("persisted index and chunk list disagree, starting empty",
			"index_len", index.Len(), "chunks_len", len(chunks))
		return
	}

	r.mu.Lock()
	r.index = index
	r.chunks = chunks
	r.generation++
	r.mu.Unlock()

	logger.Infow("reloaded persisted index",
		"chunks", len(chunks), "dimension", index.Dimension())
}

// BuildIndex embeds the given chunks, builds a fresh index over them,
// persists both halves, and swaps the live pair. It replaces the whole
// corpus; it does not append.
func (r *Retriever) BuildIndex(ctx context.Context, chunks []string) error {
	if len(chunks) == 0 {
		return ErrEmptyCorpus
	}

	r.buildMu.Lock()
	defer r.buildMu.Unlock()

	vectors, err := r.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	index := store.NewFlatIndex(0)
	if err := index.Add(vectors); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	if err := index.Save(filepath.Join(r.dataDir, indexFileName)); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	if err := r.saveChunks(chunks); err != nil {
		return fmt.Errorf("failed to persist chunks: %w", err)
	}

	r.mu.Lock()
	r.index = index
	r.chunks = chunks
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	logger.Infow("index rebuilt",
		"chunks", len(chunks), "dimension", index.Dimension(), "generation", gen)
	return nil
}

func (r *Retriever) saveChunks(chunks []string) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return err
	}
	path := filepath.Join(r.dataDir, chunksFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Retrieve embeds the question and returns its nearest chunks with
// distances, closest first. Returns ErrIndexNotReady before the first
// successful build.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]ScoredChunk, error) {
	r.mu.RLock()
	index, chunks := r.index, r.chunks
	r.mu.RUnlock()

	if index == nil || index.Len() == 0 {
		return nil, ErrIndexNotReady
	}

	query, err := r.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	hits, err := index.Search(query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	results := make([]ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Slot < 0 || hit.Slot >= len(chunks) {
			continue
		}
		results = append(results, ScoredChunk{
			Slot:     hit.Slot,
			Text:     chunks[hit.Slot],
			Distance: hit.Distance,
		})
	}
	return results, nil
}

// Generation returns how many times the live index has been swapped in.
func (r *Retriever) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Stats reports the current corpus size and dimensionality.
func (r *Retriever) Stats() (chunks, dimension int, generation uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index != nil {
		chunks = r.index.Len()
		dimension = r.index.Dimension()
	}
	return chunks, dimension, r.generation
}
