package biz

import "strings"

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is reserved for overlapping-window chunking.
	// The greedy sentence algorithm below does not duplicate text across
	// chunk boundaries; the knob is carried in the config so a windowed
	// strategy can be introduced without an options change.
	DefaultChunkOverlap = 50
)

// SplitText splits extracted document text into retrieval-sized chunks.
//
// Sentences are delimited by ". ". Sentences accumulate greedily into the
// current chunk; once appending the next sentence would reach chunkSize the
// chunk is flushed and the sentence starts a new one. Sentence order, and
// therefore chunk order, follows the source text: a chunk's position in the
// returned slice is its slot in the vector index.
//
// A single sentence longer than chunkSize is kept whole, so individual
// chunks may exceed chunkSize.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	_ = overlap // see DefaultChunkOverlap

	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := strings.Split(text, ". ")
	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence) >= chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
		current.WriteString(". ")
	}
	if trailing := strings.TrimSpace(current.String()); trailing != "" {
		chunks = append(chunks, trailing)
	}
	return chunks
}
