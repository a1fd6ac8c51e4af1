package biz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kart-io/logger"

	"github.com/studykit/studyrag/internal/assistant/metrics"
	"github.com/studykit/studyrag/pkg/extract"
	"github.com/studykit/studyrag/pkg/infra/pool"
)

// User-visible messages for handled-miss conditions. These travel in a
// message field, never an error field, so front ends can render them as
// warnings rather than failures.
const (
	NoMaterialMessage = "No sufficiently relevant material was found in your uploaded documents. " +
		"Set allow_general to get a general answer instead."
	NotReadyMessage = "Please upload study material first."

	// GeneralAnswerPrefix marks answers synthesized without document
	// context so they cannot be mistaken for grounded ones.
	GeneralAnswerPrefix = "(General answer, not based on your uploaded material) "
)

// AnswerKind classifies an ask response.
type AnswerKind string

const (
	// AnswerGrounded means the answer was synthesized from retrieved chunks.
	AnswerGrounded AnswerKind = "grounded"
	// AnswerGeneral means the answer was synthesized without context.
	AnswerGeneral AnswerKind = "general"
	// AnswerNone means no answer was produced; Message explains why.
	AnswerNone AnswerKind = "none"
)

// AskResult is the outcome of one ask request.
type AskResult struct {
	Kind    AnswerKind
	Answer  string
	Message string
}

// Service is the top-level upload and ask API consumed by HTTP handlers.
type Service interface {
	// SubmitUpload validates and persists an uploaded document, then
	// indexes it in the background. It returns a job ID immediately.
	SubmitUpload(ctx context.Context, filename string, data []byte) (string, error)

	// Ask answers a question from indexed material, falling back to a
	// general answer or a handled miss per allowGeneral.
	Ask(ctx context.Context, question string, level Level, allowGeneral bool) (*AskResult, error)

	// Job looks up a background indexing job by ID.
	Job(id string) (Job, bool)

	// Stats reports index, job, cache and request counters.
	Stats() map[string]any

	// Close drains the background indexing pool.
	Close()
}

// ServiceConfig configures the orchestrator.
type ServiceConfig struct {
	// UploadDir stores raw uploaded files.
	UploadDir string

	// ChunkSize and ChunkOverlap are passed through to SplitText.
	ChunkSize    int
	ChunkOverlap int

	// IndexWorkers sizes the background indexing pool.
	IndexWorkers int
}

// AssistantService wires the retriever, relevance gate and synthesizer into
// the upload and ask flows.
type AssistantService struct {
	retriever   *Retriever
	gate        *RelevanceGate
	synthesizer *AnswerSynthesizer
	jobs        *JobTracker
	pool        *pool.Pool
	metrics     *metrics.AssistantMetrics

	uploadDir    string
	chunkSize    int
	chunkOverlap int
}

// NewAssistantService builds the orchestrator and its background pool.
func NewAssistantService(
	retriever *Retriever,
	gate *RelevanceGate,
	synthesizer *AnswerSynthesizer,
	m *metrics.AssistantMetrics,
	cfg ServiceConfig,
) (*AssistantService, error) {
	if cfg.UploadDir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if m == nil {
		m = metrics.Get()
	}

	indexPool, err := pool.New("indexing", pool.IndexingConfig(cfg.IndexWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to create indexing pool: %w", err)
	}

	return &AssistantService{
		retriever:    retriever,
		gate:         gate,
		synthesizer:  synthesizer,
		jobs:         NewJobTracker(),
		pool:         indexPool,
		metrics:      m,
		uploadDir:    cfg.UploadDir,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}, nil
}

// SubmitUpload persists the file and schedules indexing off the request
// path. The caller gets a job ID back before any embedding happens; job
// state is the only completion signal.
func (s *AssistantService) SubmitUpload(_ context.Context, filename string, data []byte) (string, error) {
	if !extract.IsSupported(filename) {
		s.metrics.RecordUpload(false)
		return "", fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if len(data) == 0 {
		s.metrics.RecordUpload(false)
		return "", fmt.Errorf("uploaded file %s is empty", filename)
	}

	jobID := s.jobs.Create(filename)
	path := filepath.Join(s.uploadDir, jobID+filepath.Ext(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.metrics.RecordUpload(false)
		s.jobs.Fail(jobID, "failed to persist upload")
		return "", fmt.Errorf("failed to persist upload: %w", err)
	}

	task := func() { s.runIndexJob(jobID, filename, path) }
	if err := s.pool.Submit(task); err != nil {
		logger.Warnw("indexing pool unavailable, falling back to goroutine",
			"job_id", jobID, "error", err.Error())
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorw("indexing task panic", "job_id", jobID, "error", r)
					s.jobs.Fail(jobID, fmt.Sprintf("indexing panic: %v", r))
				}
			}()
			task()
		}()
	}

	s.metrics.RecordUpload(true)
	return jobID, nil
}

func (s *AssistantService) runIndexJob(jobID, filename, path string) {
	start := time.Now()

	text, err := extract.Text(path)
	if err != nil {
		logger.Warnw("text extraction failed", "job_id", jobID, "file", filename, "error", err.Error())
		s.jobs.Fail(jobID, fmt.Sprintf("text extraction failed: %v", err))
		s.metrics.RecordIndexJob(0, err)
		return
	}

	chunks := SplitText(text, s.chunkSize, s.chunkOverlap)
	if len(chunks) == 0 {
		logger.Warnw("no extractable text", "job_id", jobID, "file", filename)
		s.jobs.Fail(jobID, ErrNoExtractableText.Error())
		s.metrics.RecordIndexJob(0, ErrNoExtractableText)
		return
	}

	if err := s.retriever.BuildIndex(context.Background(), chunks); err != nil {
		logger.Errorw("index build failed", "job_id", jobID, "file", filename, "error", err.Error())
		s.jobs.Fail(jobID, fmt.Sprintf("index build failed: %v", err))
		s.metrics.RecordIndexJob(0, err)
		return
	}

	s.jobs.Complete(jobID, len(chunks))
	s.metrics.RecordIndexJob(len(chunks), nil)
	logger.Infow("indexing job finished",
		"job_id", jobID, "file", filename,
		"chunks", len(chunks), "duration", time.Since(start).String())
}

// Ask runs retrieve, gate and synthesize. Handled misses come back in the
// result, never as an error; errors are reserved for request-level failures
// such as an unreachable embedding API.
func (s *AssistantService) Ask(ctx context.Context, question string, level Level, allowGeneral bool) (*AskResult, error) {
	results, err := s.retriever.Retrieve(ctx, question)
	switch {
	case err == nil:
	case errors.Is(err, ErrIndexNotReady):
		// An empty index counts as a retrieval miss for fallback purposes.
		if allowGeneral {
			return s.generalAnswer(ctx, question, level), nil
		}
		s.metrics.RecordAsk(metrics.AskNoMaterial)
		return &AskResult{Kind: AnswerNone, Message: NotReadyMessage}, nil
	default:
		s.metrics.RecordAsk(metrics.AskError)
		return nil, err
	}

	usable, docContext := s.gate.Evaluate(results)
	if !usable {
		if allowGeneral {
			return s.generalAnswer(ctx, question, level), nil
		}
		s.metrics.RecordAsk(metrics.AskNoMaterial)
		return &AskResult{Kind: AnswerNone, Message: NoMaterialMessage}, nil
	}

	answer := s.synthesizer.Answer(ctx, docContext, question, level)
	s.metrics.RecordAsk(metrics.AskGrounded)
	return &AskResult{Kind: AnswerGrounded, Answer: answer}, nil
}

func (s *AssistantService) generalAnswer(ctx context.Context, question string, level Level) *AskResult {
	answer := s.synthesizer.Answer(ctx, "", question, level)
	s.metrics.RecordAsk(metrics.AskGeneral)
	return &AskResult{Kind: AnswerGeneral, Answer: GeneralAnswerPrefix + answer}
}

// Job returns the record for a background indexing job.
func (s *AssistantService) Job(id string) (Job, bool) {
	return s.jobs.Get(id)
}

// Stats reports the state of the index, jobs, cache and request counters.
func (s *AssistantService) Stats() map[string]any {
	chunks, dim, generation := s.retriever.Stats()
	pending, completed, failed := s.jobs.Count()
	poolStats := s.pool.Stats()

	stats := s.metrics.Snapshot()
	stats["index_chunks"] = chunks
	stats["index_dimension"] = dim
	stats["index_generation"] = generation
	stats["jobs_pending"] = pending
	stats["jobs_completed"] = completed
	stats["jobs_failed"] = failed
	stats["answer_cache_size"] = s.synthesizer.CacheSize()
	stats["pool_submitted"] = poolStats.Submitted
	stats["pool_completed"] = poolStats.Completed
	stats["pool_rejected"] = poolStats.Rejected
	return stats
}

// Close drains in-flight indexing jobs, waiting briefly for stragglers.
func (s *AssistantService) Close() {
	if err := s.pool.ReleaseTimeout(5 * time.Second); err != nil {
		logger.Warnw("indexing pool did not drain cleanly", "error", err.Error())
	}
}
