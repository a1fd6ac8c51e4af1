package biz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns fixed vectors per text, with a fallback for
// anything unmapped.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vectorFor(t))
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return f.fallback
}

func newTestEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: map[string][]float32{
			"cells divide by mitosis.": {1, 0, 0},
			"plants use sunlight.":     {0, 1, 0},
			"atoms form molecules.":    {0, 0, 1},
			"what is mitosis?":         {0.9, 0.1, 0},
		},
		fallback: []float32{0.5, 0.5, 0.5},
	}
}

func TestRetrieverRequiresDataDir(t *testing.T) {
	_, err := NewRetriever(newTestEmbedder(), RetrieverConfig{})
	assert.Error(t, err)
}

func TestRetrieveBeforeBuild(t *testing.T) {
	r, err := NewRetriever(newTestEmbedder(), RetrieverConfig{DataDir: t.TempDir()})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrIndexNotReady)
	assert.Equal(t, uint64(0), r.Generation())
}

func TestBuildIndexEmptyCorpus(t *testing.T) {
	r, err := NewRetriever(newTestEmbedder(), RetrieverConfig{DataDir: t.TempDir()})
	require.NoError(t, err)

	assert.ErrorIs(t, r.BuildIndex(context.Background(), nil), ErrEmptyCorpus)
}

func TestBuildIndexAndRetrieve(t *testing.T) {
	r, err := NewRetriever(newTestEmbedder(), RetrieverConfig{DataDir: t.TempDir(), TopK: 2})
	require.NoError(t, err)

	chunks := []string{"cells divide by mitosis.", "plants use sunlight.", "atoms form molecules."}
	require.NoError(t, r.BuildIndex(context.Background(), chunks))
	assert.Equal(t, uint64(1), r.Generation())

	results, err := r.Retrieve(context.Background(), "what is mitosis?")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cells divide by mitosis.", results[0].Text)
	assert.Equal(t, 0, results[0].Slot)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestRetrieverReloadsPersistedIndex(t *testing.T) {
	dir := t.TempDir()
	embedder := newTestEmbedder()

	r, err := NewRetriever(embedder, RetrieverConfig{DataDir: dir})
	require.NoError(t, err)
	chunks := []string{"cells divide by mitosis.", "plants use sunlight."}
	require.NoError(t, r.BuildIndex(context.Background(), chunks))

	reloaded, err := NewRetriever(embedder, RetrieverConfig{DataDir: dir})
	require.NoError(t, err)

	count, dim, gen := reloaded.Stats()
	assert.Equal(t, 2, count)
	assert.Equal(t, 3, dim)
	assert.Equal(t, uint64(1), gen)

	results, err := reloaded.Retrieve(context.Background(), "what is mitosis?")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "cells divide by mitosis.", results[0].Text)
}

func TestRetrieverIgnoresMismatchedSidecar(t *testing.T) {
	dir := t.TempDir()
	embedder := newTestEmbedder()

	r, err := NewRetriever(embedder, RetrieverConfig{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, r.BuildIndex(context.Background(), []string{"cells divide by mitosis.", "plants use sunlight."}))

	// Sidecar no longer matches the index length.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunks.json"), []byte(`["only one"]`), 0o644))

	reloaded, err := NewRetriever(embedder, RetrieverConfig{DataDir: dir})
	require.NoError(t, err)
	_, err = reloaded.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrIndexNotReady)
}

func TestBuildIndexEmbeddingFailure(t *testing.T) {
	embedder := newTestEmbedder()
	embedder.err = errors.New("api down")

	r, err := NewRetriever(embedder, RetrieverConfig{DataDir: t.TempDir()})
	require.NoError(t, err)

	err = r.BuildIndex(context.Background(), []string{"a chunk."})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Equal(t, uint64(0), r.Generation())
}

func TestBuildIndexIdempotentRebuild(t *testing.T) {
	embedder := newTestEmbedder()
	r, err := NewRetriever(embedder, RetrieverConfig{DataDir: t.TempDir()})
	require.NoError(t, err)

	chunks := []string{"cells divide by mitosis.", "plants use sunlight.", "atoms form molecules."}
	require.NoError(t, r.BuildIndex(context.Background(), chunks))
	first, err := r.Retrieve(context.Background(), "what is mitosis?")
	require.NoError(t, err)

	// Rebuilding with the identical chunk sequence changes nothing the
	// caller can observe except the generation counter.
	require.NoError(t, r.BuildIndex(context.Background(), chunks))
	second, err := r.Retrieve(context.Background(), "what is mitosis?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, uint64(2), r.Generation())
}

func TestBuildIndexReplacesCorpus(t *testing.T) {
	embedder := newTestEmbedder()
	r, err := NewRetriever(embedder, RetrieverConfig{DataDir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, r.BuildIndex(context.Background(), []string{"cells divide by mitosis.", "plants use sunlight."}))
	require.NoError(t, r.BuildIndex(context.Background(), []string{"atoms form molecules."}))

	count, _, gen := r.Stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(2), gen)

	results, err := r.Retrieve(context.Background(), "what is mitosis?")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "atoms form molecules.", results[0].Text)
}
