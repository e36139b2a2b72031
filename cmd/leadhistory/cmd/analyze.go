package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wesm/leadhistory/internal/tui"
	"github.com/wesm/leadhistory/internal/view"
)

var analyzeFormat string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <lead>",
	Short: "Run a behavior analysis of a lead",
	Long: `Ask the CRM server to analyze a lead's behavior and print the result:
communication pattern, interests, key points, risk factors, recommended
actions and a summary.

Examples:
  leadhistory analyze 42
  leadhistory analyze 42 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(analyzeFormat); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, args[0], logger)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ctrl.AnalyzeBehavior(ctx); err != nil {
			// The pane carries the localized reason.
			if msg := s.ctrl.Snapshot().Analysis.Error; msg != "" {
				return fmt.Errorf("analyze lead %s: %s: %w", args[0], msg, err)
			}
			return fmt.Errorf("analyze lead %s: %w", args[0], err)
		}

		snap := s.ctrl.Snapshot()
		switch analyzeFormat {
		case formatJSON:
			return writeJSON(stdout, analysisJSON(snap))
		case formatHTML:
			return view.RenderAnalysis(stdout, snap.Analysis)
		}
		width := prepareText(stdout)
		_, err = fmt.Fprintln(stdout, tui.AnalysisText(snap.Analysis, width))
		return err
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", formatText, "Output format: text, html or json")
}
