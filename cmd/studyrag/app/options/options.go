// Package options contains flags and options for initializing the study
// assistant server.
package options

import (
	"fmt"
	"os"
	"time"

	"github.com/kart-io/logger"
	logoption "github.com/kart-io/logger/option"
	"github.com/spf13/pflag"

	"github.com/studykit/studyrag/internal/assistant"
	"github.com/studykit/studyrag/internal/assistant/biz"
)

// HTTPOptions configures the HTTP listener.
type HTTPOptions struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	Mode            string        `json:"mode" mapstructure:"mode"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// AssistantOptions configures retrieval, gating and indexing.
type AssistantOptions struct {
	DataDir           string        `json:"data-dir" mapstructure:"data-dir"`
	UploadDir         string        `json:"upload-dir" mapstructure:"upload-dir"`
	ChunkSize         int           `json:"chunk-size" mapstructure:"chunk-size"`
	ChunkOverlap      int           `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	TopK              int           `json:"top-k" mapstructure:"top-k"`
	IndexWorkers      int           `json:"index-workers" mapstructure:"index-workers"`
	DistanceThreshold float64       `json:"distance-threshold" mapstructure:"distance-threshold"`
	MinContextLength  int           `json:"min-context-length" mapstructure:"min-context-length"`
	GenerateTimeout   time.Duration `json:"generate-timeout" mapstructure:"generate-timeout"`
}

// ProviderOptions configures one LLM provider endpoint.
type ProviderOptions struct {
	Provider    string  `json:"provider" mapstructure:"provider"`
	BaseURL     string  `json:"base-url" mapstructure:"base-url"`
	APIKey      string  `json:"api-key" mapstructure:"api-key"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}

// LogOptions wraps the logger option.LogOption.
type LogOptions struct {
	*logoption.LogOption `json:",inline" mapstructure:",squash"`
}

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	HTTP      *HTTPOptions      `json:"http" mapstructure:"http"`
	Log       *LogOptions       `json:"log" mapstructure:"log"`
	Assistant *AssistantOptions `json:"assistant" mapstructure:"assistant"`
	Embedding *ProviderOptions  `json:"embedding" mapstructure:"embedding"`
	Chat      *ProviderOptions  `json:"chat" mapstructure:"chat"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTP: &HTTPOptions{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 30 * time.Second,
		},
		Log: &LogOptions{LogOption: logoption.DefaultLogOption()},
		Assistant: &AssistantOptions{
			DataDir:           "data/index",
			UploadDir:         "data/uploads",
			ChunkSize:         biz.DefaultChunkSize,
			ChunkOverlap:      biz.DefaultChunkOverlap,
			TopK:              biz.DefaultTopK,
			IndexWorkers:      5,
			DistanceThreshold: float64(biz.DefaultDistanceThreshold),
			MinContextLength:  biz.DefaultMinContextLength,
			GenerateTimeout:   biz.DefaultGenerateTimeout,
		},
		Embedding: &ProviderOptions{Provider: "openai"},
		Chat:      &ProviderOptions{Provider: "mistral", Temperature: 0.7},
	}
}

// AddFlags adds all server flags to the given flag set.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.HTTP.Addr, "http.addr", o.HTTP.Addr, "HTTP listen address")
	fs.StringVar(&o.HTTP.Mode, "http.mode", o.HTTP.Mode, "HTTP mode (debug|release|test)")
	fs.DurationVar(&o.HTTP.ShutdownTimeout, "http.shutdown-timeout", o.HTTP.ShutdownTimeout, "Graceful shutdown timeout")

	fs.StringVar(&o.Log.Level, "log.level", o.Log.Level, "Log level (DEBUG|INFO|WARN|ERROR|FATAL)")
	fs.StringVar(&o.Log.Format, "log.format", o.Log.Format, "Log format (json|console)")
	fs.StringVar(&o.Log.Engine, "log.engine", o.Log.Engine, "Logging engine (zap|slog)")
	fs.StringSliceVar(&o.Log.OutputPaths, "log.output-paths", o.Log.OutputPaths, "Output paths for logs")
	fs.BoolVar(&o.Log.Development, "log.development", o.Log.Development, "Enable development mode")

	fs.StringVar(&o.Assistant.DataDir, "assistant.data-dir", o.Assistant.DataDir, "Directory for the persisted vector index")
	fs.StringVar(&o.Assistant.UploadDir, "assistant.upload-dir", o.Assistant.UploadDir, "Directory for raw uploaded files")
	fs.IntVar(&o.Assistant.ChunkSize, "assistant.chunk-size", o.Assistant.ChunkSize, "Target chunk size in characters")
	fs.IntVar(&o.Assistant.ChunkOverlap, "assistant.chunk-overlap", o.Assistant.ChunkOverlap, "Chunk overlap in characters")
	fs.IntVar(&o.Assistant.TopK, "assistant.top-k", o.Assistant.TopK, "Number of chunks retrieved per question")
	fs.IntVar(&o.Assistant.IndexWorkers, "assistant.index-workers", o.Assistant.IndexWorkers, "Background indexing worker count")
	fs.Float64Var(&o.Assistant.DistanceThreshold, "assistant.distance-threshold", o.Assistant.DistanceThreshold, "Squared-distance relevance cutoff")
	fs.IntVar(&o.Assistant.MinContextLength, "assistant.min-context-length", o.Assistant.MinContextLength, "Minimum usable context length in characters")
	fs.DurationVar(&o.Assistant.GenerateTimeout, "assistant.generate-timeout", o.Assistant.GenerateTimeout, "Timeout for one generation API call")

	fs.StringVar(&o.Embedding.Provider, "embedding.provider", o.Embedding.Provider, "Embedding provider (openai|ollama)")
	fs.StringVar(&o.Embedding.BaseURL, "embedding.base-url", o.Embedding.BaseURL, "Embedding API base URL")
	fs.StringVar(&o.Embedding.APIKey, "embedding.api-key", o.Embedding.APIKey, "Embedding API key")
	fs.StringVar(&o.Embedding.Model, "embedding.model", o.Embedding.Model, "Embedding model name")

	fs.StringVar(&o.Chat.Provider, "chat.provider", o.Chat.Provider, "Chat provider (mistral|openai|ollama)")
	fs.StringVar(&o.Chat.BaseURL, "chat.base-url", o.Chat.BaseURL, "Chat API base URL")
	fs.StringVar(&o.Chat.APIKey, "chat.api-key", o.Chat.APIKey, "Chat API key")
	fs.StringVar(&o.Chat.Model, "chat.model", o.Chat.Model, "Chat model name")
	fs.Float64Var(&o.Chat.Temperature, "chat.temperature", o.Chat.Temperature, "Chat sampling temperature")
}

// Complete fills in unset values from the environment.
func (o *ServerOptions) Complete() error {
	if o.Embedding.APIKey == "" {
		o.Embedding.APIKey = apiKeyFromEnv(o.Embedding.Provider)
	}
	if o.Chat.APIKey == "" {
		o.Chat.APIKey = apiKeyFromEnv(o.Chat.Provider)
	}
	return nil
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case "mistral":
		return os.Getenv("MISTRAL_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// Validate checks the options for inconsistencies.
func (o *ServerOptions) Validate() error {
	if o.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if o.Assistant.ChunkSize <= 0 {
		return fmt.Errorf("assistant.chunk-size must be positive")
	}
	if o.Assistant.TopK <= 0 {
		return fmt.Errorf("assistant.top-k must be positive")
	}
	if o.Assistant.DistanceThreshold <= 0 {
		return fmt.Errorf("assistant.distance-threshold must be positive")
	}
	if o.Embedding.Provider == "" || o.Chat.Provider == "" {
		return fmt.Errorf("embedding.provider and chat.provider are required")
	}
	return o.Log.LogOption.Validate()
}

// InitLogger installs the configured global logger.
func (o *ServerOptions) InitLogger() error {
	log, err := logger.New(o.Log.LogOption)
	if err != nil {
		return err
	}
	logger.SetGlobal(log)
	return nil
}

// Config resolves the options into a server configuration.
func (o *ServerOptions) Config() (*assistant.Config, error) {
	embeddingCfg := map[string]any{
		"base_url":    o.Embedding.BaseURL,
		"api_key":     o.Embedding.APIKey,
		"embed_model": o.Embedding.Model,
	}
	chatCfg := map[string]any{
		"base_url":    o.Chat.BaseURL,
		"api_key":     o.Chat.APIKey,
		"chat_model":  o.Chat.Model,
		"temperature": o.Chat.Temperature,
	}

	return &assistant.Config{
		Addr:              o.HTTP.Addr,
		Mode:              o.HTTP.Mode,
		DataDir:           o.Assistant.DataDir,
		UploadDir:         o.Assistant.UploadDir,
		ChunkSize:         o.Assistant.ChunkSize,
		ChunkOverlap:      o.Assistant.ChunkOverlap,
		TopK:              o.Assistant.TopK,
		IndexWorkers:      o.Assistant.IndexWorkers,
		DistanceThreshold: float32(o.Assistant.DistanceThreshold),
		MinContextLength:  o.Assistant.MinContextLength,
		GenerateTimeout:   o.Assistant.GenerateTimeout,
		ShutdownTimeout:   o.HTTP.ShutdownTimeout,
		EmbeddingProvider: o.Embedding.Provider,
		EmbeddingConfig:   embeddingCfg,
		ChatProvider:      o.Chat.Provider,
		ChatConfig:        chatCfg,
	}, nil
}
