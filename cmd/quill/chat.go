package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	llmclient "quill/internal/llmClient"
	"quill/internal/quill"
	"quill/internal/schema"
	"quill/internal/util/jsonutil"
)

func (c *cli) chatCmd() *cobra.Command {
	var (
		system      string
		temperature float64
		maxTokens   int
	)
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := quill.ChatRequest{
				Message:    strings.Join(args, " "),
				Model:      c.model,
				Provider:   c.provider,
				System:     system,
				MaxTokens:  maxTokens,
				MaxRetries: c.retries,
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = llmclient.Temperature(temperature)
			}
			out, err := c.svc.Chat(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "system message")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "output token cap")
	return cmd
}

func (c *cli) structuredCmd() *cobra.Command {
	var (
		schemaRef string
		system    string
	)
	cmd := &cobra.Command{
		Use:   "structured <message>",
		Short: "Ask for a JSON object matching a schema",
		Long: `Ask for a JSON object matching a built-in schema or a YAML schema file.
When every attempt fails the schema's defaults are printed and a notice goes
to stderr.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSchema(schemaRef)
			if err != nil {
				return err
			}
			res, err := c.svc.ChatStructured(cmd.Context(), quill.StructuredRequest{
				Message:    strings.Join(args, " "),
				Schema:     s,
				Model:      c.model,
				Provider:   c.provider,
				System:     system,
				MaxRetries: c.retries,
			})
			if err != nil {
				return err
			}
			if res.Fallback {
				fmt.Fprintf(cmd.ErrOrStderr(), "no valid reply after %d attempt(s), printing defaults: %v\n", res.Attempts, res.LastErr)
			}
			raw, err := jsonutil.MarshalNoEscapeIndent(res.Value, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaRef, "schema", "", "built-in schema name or path to a YAML schema file")
	cmd.Flags().StringVar(&system, "system", "", "system message")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func resolveSchema(ref string) (*schema.Schema, error) {
	ref = strings.TrimSpace(ref)
	if s, ok := schema.Lookup(ref); ok {
		return s, nil
	}
	if _, err := os.Stat(ref); err == nil {
		return schema.LoadFile(ref)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return nil, fmt.Errorf("unknown schema %q (built-in: %s)", ref, strings.Join(schema.Names(), ", "))
}
