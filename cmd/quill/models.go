package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List catalog models, optionally for one provider (--provider)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := c.svc.ListModels(c.provider)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tMODEL\tNAME\tJSON\tMAX TOKENS")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%d\n", m.Provider, m.BackendID, m.DisplayName, m.SupportsJSONMode(), m.MaxTokens)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) reportCmd() *cobra.Command {
	var (
		recordID string
		export   bool
		exported bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the report of a stored scoring record",
		Long: `Print the report of a stored scoring record. --export uploads it to object
storage; --exported prints the uploaded copy instead of rendering it again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if exported {
				key, report, err := c.svc.ExportedReport(ctx, recordID)
				if err != nil {
					return fmt.Errorf("read exported report: %w", err)
				}
				fmt.Fprint(out, report)
				c.printLink(cmd, key)
				return nil
			}
			report, err := c.svc.Report(ctx, recordID)
			if err != nil {
				return err
			}
			fmt.Fprint(out, report)
			if export {
				key, err := c.svc.ExportReport(ctx, recordID)
				if err != nil {
					return fmt.Errorf("export report: %w", err)
				}
				fmt.Fprintf(out, "报告已上传: %s\n", key)
				c.printLink(cmd, key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordID, "record", "", "record id")
	cmd.Flags().BoolVar(&export, "export", false, "upload the report to object storage")
	cmd.Flags().BoolVar(&exported, "exported", false, "print the uploaded copy of the report")
	cmd.MarkFlagsMutuallyExclusive("export", "exported")
	_ = cmd.MarkFlagRequired("record")
	return cmd
}

func (c *cli) exportsCmd() *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List the uploaded reports of a document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := c.svc.ExportedReports(cmd.Context(), documentID)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "document id")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

// printLink writes the download link of key to stderr when the store
// issues one.
func (c *cli) printLink(cmd *cobra.Command, key string) {
	link, err := c.svc.ReportURL(cmd.Context(), key)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "download link unavailable: %v\n", err)
		return
	}
	if link != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "下载链接: %s\n", link)
	}
}
