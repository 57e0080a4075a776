package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quill/internal/quill"
	"quill/internal/scoring"
)

func (c *cli) scoreCmd() *cobra.Command {
	var (
		file       string
		documentID string
		export     bool
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a document stage by stage",
		Long: `Score a document stage by stage. The file is a YAML or JSON mapping from
stage id (brainstorm, outline, writing, highlight) to that stage's text.

Examples:
  quill score --file essay.yaml
  quill score --file essay.json --document-id essay-7 --export`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			contents, err := readStages(file)
			if err != nil {
				return err
			}

			var (
				bar   *progressbar.ProgressBar
				barMu sync.Mutex
			)
			if !quiet {
				bar = progressbar.NewOptions(countScored(c.svc.Rubric(), contents),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionEnableColorCodes(true),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionSetDescription("[cyan]Scoring[reset]"),
					progressbar.OptionSetTheme(progressbar.Theme{
						Saucer:        "[green]=[reset]",
						SaucerHead:    "[green]>[reset]",
						SaucerPadding: " ",
						BarStart:      "[",
						BarEnd:        "]",
					}),
					progressbar.OptionOnCompletion(func() {
						fmt.Fprintln(cmd.ErrOrStderr())
					}),
				)
			}
			progress := func(stage scoring.StageID, r scoring.StageResult) {
				if bar == nil {
					return
				}
				barMu.Lock()
				defer barMu.Unlock()
				bar.Describe(fmt.Sprintf("[cyan]Scoring[reset] %s %d", r.Name, r.RawScore))
				_ = bar.Add(1)
			}

			rec, err := c.svc.ScoreDocument(cmd.Context(), quill.ScoreRequest{
				DocumentID: documentID,
				Contents:   contents,
				Model:      c.model,
				Provider:   c.provider,
			}, progress)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, c.svc.Rubric().FormatReport(rec.DocumentID, rec.Breakdown))
			sum := c.svc.Summary(rec)
			if len(sum.Recommendations) > 0 {
				fmt.Fprintln(out, "\n改进建议:")
				for _, r := range sum.Recommendations {
					fmt.Fprintf(out, "- %s\n", r)
				}
			}
			fmt.Fprintf(out, "\n记录ID: %s\n", rec.ID)
			if export {
				key, err := c.svc.ExportReport(cmd.Context(), rec.ID)
				if err != nil {
					return fmt.Errorf("export report: %w", err)
				}
				fmt.Fprintf(out, "报告已上传: %s\n", key)
				c.printLink(cmd, key)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file of stage contents")
	cmd.Flags().StringVar(&documentID, "document-id", "", "document id to group records under")
	cmd.Flags().BoolVar(&export, "export", false, "upload the report to object storage")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) critiqueCmd() *cobra.Command {
	var (
		stage string
		file  string
	)
	cmd := &cobra.Command{
		Use:   "critique [text...]",
		Short: "Get structured feedback on one stage of a document",
		Long: `Get structured feedback on one stage of a document. The text comes from
--file or from the arguments.

Examples:
  quill critique --stage writing --file chapter.txt
  quill critique --stage highlight "结尾的反转"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				content = string(data)
			}
			fb, err := c.svc.Critique(cmd.Context(), quill.CritiqueRequest{
				Stage:    stage,
				Content:  content,
				Model:    c.model,
				Provider: c.provider,
			})
			if err != nil {
				return err
			}
			if fb.Fallback {
				fmt.Fprintln(cmd.ErrOrStderr(), "no usable reply from the model, printing defaults")
			}
			printFeedback(cmd.OutOrStdout(), c.svc.Rubric().StageName(fb.Stage), fb)
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "stage", string(scoring.Writing), "stage id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "text file to critique")
	return cmd
}

func printFeedback(w io.Writer, name string, fb scoring.Feedback) {
	fmt.Fprintf(w, "%s点评 (%s, 置信度%.0f)\n", name, fb.Verdict, fb.Confidence)
	fmt.Fprintln(w, fb.Summary)
	list := func(heading string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s:\n", heading)
		for _, it := range items {
			fmt.Fprintf(w, "- %s\n", it)
		}
	}
	list("优点", fb.Strengths)
	list("不足", fb.Weaknesses)
	list("建议", fb.Suggestions)
	if len(fb.DimensionScores) > 0 {
		dims := make([]string, 0, len(fb.DimensionScores))
		for d := range fb.DimensionScores {
			dims = append(dims, d)
		}
		sort.Strings(dims)
		fmt.Fprintln(w, "\n分项:")
		for _, d := range dims {
			fmt.Fprintf(w, "- %s: %.0f\n", d, fb.DimensionScores[d])
		}
	}
}

func readStages(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var contents map[string]string
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("%s has no stages", path)
	}
	return contents, nil
}

// countScored counts the progress callbacks ScoreDocument will make.
func countScored(r *scoring.Rubric, contents map[string]string) int {
	n := 0
	for k := range contents {
		if _, ok := r.Stage(scoring.StageID(k)); ok {
			n++
		}
	}
	return n
}
