package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"quill/internal/gateway/config"
	"quill/internal/quill"
)

// serviceFactory builds the service from loaded settings.
type serviceFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*quill.Service, func(), error)

type cli struct {
	build    serviceFactory
	model    string
	provider string
	retries  int

	cfg     *config.Config
	svc     *quill.Service
	cleanup func()
}

func newRootCmd(build serviceFactory) *cobra.Command {
	c := &cli{build: build}
	root := &cobra.Command{
		Use:   "quill",
		Short: "Chat with language models and score documents against the writing rubric",
		Long: `quill talks to OpenAI, Anthropic, Groq, DeepSeek, Gemini, Ollama and LM Studio
through one interface, extracts schema-valid JSON from model replies, and scores
documents stage by stage.

Example usage:
  quill chat "summarize this" --provider Ollama --model llama3.2
  quill structured "how is the market" --schema market_analysis
  quill score --file essay.yaml
  quill critique --stage writing --file chapter.txt
  quill models --provider Groq`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c.cfg = cfg
			svc, cleanup, err := c.build(cmd.Context(), cfg, cfg.NewLogger())
			if err != nil {
				return err
			}
			c.svc, c.cleanup = svc, cleanup
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.cleanup != nil {
				c.cleanup()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.model, "model", "", "model name (default from DEFAULT_MODEL)")
	root.PersistentFlags().StringVar(&c.provider, "provider", "", "provider (default from DEFAULT_PROVIDER)")
	root.PersistentFlags().IntVar(&c.retries, "retries", 0, "attempts per call (default from MAX_RETRIES)")

	root.AddCommand(
		c.chatCmd(),
		c.structuredCmd(),
		c.scoreCmd(),
		c.critiqueCmd(),
		c.modelsCmd(),
		c.reportCmd(),
		c.exportsCmd(),
	)
	return root
}
