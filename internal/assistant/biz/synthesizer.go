package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/studykit/studyrag/pkg/llm"
)

// Level selects the explanatory register of generated answers.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel validates a level string. Empty input defaults to intermediate.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case "":
		return LevelIntermediate, nil
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return Level(s), nil
	default:
		return "", fmt.Errorf("invalid level %q, must be one of beginner, intermediate, advanced", s)
	}
}

const (
	// DefaultGenerateTimeout bounds a single generation API call.
	DefaultGenerateTimeout = 10 * time.Second

	// DegradedAnswerPrefix marks answers produced in place of a generation
	// failure, so callers can tell them apart from real answers.
	DegradedAnswerPrefix = "⚠️ "
)

// AnswerSynthesizer turns a (context, question, level) triple into an answer
// via the chat provider, memoizing successful answers for the lifetime of
// the process. Generation failures never propagate as errors; they come
// back as a degraded answer string carrying DegradedAnswerPrefix.
type AnswerSynthesizer struct {
	chat    llm.ChatProvider
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]string
	calls uint64
}

// NewAnswerSynthesizer wires a synthesizer to a chat provider. A non-positive
// timeout falls back to DefaultGenerateTimeout.
func NewAnswerSynthesizer(chat llm.ChatProvider, timeout time.Duration) *AnswerSynthesizer {
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	return &AnswerSynthesizer{
		chat:    chat,
		timeout: timeout,
		cache:   make(map[string]string),
	}
}

// Answer returns a generated answer for the question at the given level,
// grounded on docContext when it is non-empty. Passing an empty docContext
// switches the system prompt to a permissive persona, which is how general
// (ungrounded) answers are produced.
func (s *AnswerSynthesizer) Answer(ctx context.Context, docContext, question string, level Level) string {
	key := cacheKey(docContext, question, level)

	s.mu.Lock()
	if answer, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return answer
	}
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(docContext, level)},
		{Role: llm.RoleUser, Content: userPrompt(docContext, question)},
	}

	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	answer, err := s.chat.Chat(callCtx, messages)
	if err != nil {
		logger.Warnw("answer generation failed",
			"provider", s.chat.Name(),
			"level", string(level),
			"error", err.Error(),
		)
		return DegradedAnswerPrefix + "Answer generation is temporarily unavailable: " + err.Error()
	}

	s.mu.Lock()
	s.cache[key] = answer
	s.mu.Unlock()
	return answer
}

// CacheSize returns the number of memoized answers.
func (s *AnswerSynthesizer) CacheSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// GenerationCalls returns how many times the chat provider has been invoked.
func (s *AnswerSynthesizer) GenerationCalls() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func cacheKey(docContext, question string, level Level) string {
	h := sha256.New()
	h.Write([]byte(docContext))
	h.Write([]byte{0})
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(level))
	return hex.EncodeToString(h.Sum(nil))
}

func systemPrompt(docContext string, level Level) string {
	if docContext != "" {
		return fmt.Sprintf("You are a helpful study assistant providing %s-level answers. "+
			"Answer only using the given study material. If the material does not cover "+
			"the question, say so instead of guessing.", level)
	}
	return fmt.Sprintf("You are a helpful study assistant providing %s-level answers. "+
		"Answer from your general knowledge, clearly and accurately.", level)
}

func userPrompt(docContext, question string) string {
	if docContext != "" {
		return fmt.Sprintf("Based on this study material: %s\nAnswer this: %s", docContext, question)
	}
	return question
}
