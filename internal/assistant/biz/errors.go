package biz

import "errors"

var (
	// ErrEmptyCorpus is returned by BuildIndex when there is nothing to
	// index. The previous index, if any, stays intact.
	ErrEmptyCorpus = errors.New("no chunks provided for indexing")

	// ErrIndexNotReady is returned by Retrieve before any index has been
	// built or loaded. It marks "no material yet", not a server fault.
	ErrIndexNotReady = errors.New("index not ready: no study material indexed yet")

	// ErrEmbeddingUnavailable wraps failures of the embedding backend.
	// It is fatal to the operation that requested the embedding.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

	// ErrNoExtractableText is returned when an uploaded document produced
	// no chunks after extraction.
	ErrNoExtractableText = errors.New("no extractable text in document")
)
