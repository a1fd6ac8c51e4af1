// Package assistant assembles the study assistant service: retrieval over
// uploaded documents, relevance gating and LLM answer synthesis behind an
// HTTP API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/studykit/studyrag/internal/assistant/biz"
	"github.com/studykit/studyrag/internal/assistant/handler"
	"github.com/studykit/studyrag/internal/assistant/metrics"
	"github.com/studykit/studyrag/internal/assistant/router"
	"github.com/studykit/studyrag/pkg/llm"

	// Register LLM providers.
	_ "github.com/studykit/studyrag/pkg/llm/mistral"
	_ "github.com/studykit/studyrag/pkg/llm/ollama"
	_ "github.com/studykit/studyrag/pkg/llm/openai"
)

// Config is the fully resolved server configuration.
type Config struct {
	Addr string
	Mode string

	DataDir   string
	UploadDir string

	ChunkSize    int
	ChunkOverlap int
	TopK         int
	IndexWorkers int

	DistanceThreshold float32
	MinContextLength  int

	GenerateTimeout time.Duration
	ShutdownTimeout time.Duration

	EmbeddingProvider string
	EmbeddingConfig   map[string]any
	ChatProvider      string
	ChatConfig        map[string]any
}

// Server is the assembled HTTP server and its service graph.
type Server struct {
	httpServer      *http.Server
	service         biz.Service
	shutdownTimeout time.Duration
}

// NewServer wires providers, retriever, gate and synthesizer into a running
// configuration. It fails fast on provider misconfiguration.
func NewServer(cfg *Config) (*Server, error) {
	embedder, err := llm.NewEmbeddingProvider(cfg.EmbeddingProvider, cfg.EmbeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	chat, err := llm.NewChatProvider(cfg.ChatProvider, cfg.ChatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat provider: %w", err)
	}

	retriever, err := biz.NewRetriever(embedder, biz.RetrieverConfig{
		DataDir: cfg.DataDir,
		TopK:    cfg.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	service, err := biz.NewAssistantService(
		retriever,
		biz.NewRelevanceGate(cfg.DistanceThreshold, cfg.MinContextLength),
		biz.NewAnswerSynthesizer(chat, cfg.GenerateTimeout),
		metrics.Get(),
		biz.ServiceConfig{
			UploadDir:    cfg.UploadDir,
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			IndexWorkers: cfg.IndexWorkers,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant service: %w", err)
	}

	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), router.RequestLogger())
	router.Register(engine, handler.NewAssistantHandler(service))

	logger.Infow("server assembled",
		"addr", cfg.Addr,
		"embedding_provider", embedder.Name(),
		"chat_provider", chat.Name(),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		service:         service,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http server shutdown error", "error", err.Error())
	}
	s.service.Close()
	return nil
}
