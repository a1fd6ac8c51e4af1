// Package app provides the study assistant server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/studykit/studyrag/cmd/studyrag/app/options"
	"github.com/studykit/studyrag/internal/assistant"
)

const (
	// Name is the name of the application.
	Name = "studyrag"

	commandDesc = `StudyRAG Assistant Service

A retrieval-augmented question-answering service for study material.

This server provides:
  - PDF/DOCX/TXT upload with background chunking and embedding
  - Nearest-neighbor retrieval over a persisted vector index
  - Relevance-gated answer synthesis with an LLM
  - General-answer fallback when no relevant material exists`
)

var configFile string

// NewCommand creates the root command with default parameters.
func NewCommand() *cobra.Command {
	opts := options.NewServerOptions()

	cmd := &cobra.Command{
		Use:          Name,
		Short:        "Retrieval-augmented study assistant",
		Long:         commandDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd, opts); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file")
	opts.AddFlags(cmd.PersistentFlags())
	return cmd
}

// loadConfig merges the optional config file and environment into any flag
// not set explicitly on the command line.
func loadConfig(cmd *cobra.Command, _ *options.ServerOptions) error {
	// Keys like MISTRAL_API_KEY may live in a local .env file.
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(Name)
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}
	v.SetEnvPrefix("STUDYRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return bindFlags(cmd, v)
}

// bindFlags backfills every flag the user did not set explicitly from the
// config file or environment.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		var value string
		switch val := v.Get(f.Name).(type) {
		case []any:
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		default:
			value = fmt.Sprintf("%v", val)
		}
		if err := f.Value.Set(value); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func run(opts *options.ServerOptions) error {
	if err := opts.InitLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := setupSignalContext()

	server, err := assistant.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return server.Run(ctx)
}

// setupSignalContext returns a context that is cancelled on SIGINT or
// SIGTERM. A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
