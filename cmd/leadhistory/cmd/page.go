package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wesm/leadhistory/internal/view"
)

var (
	pageOutput  string
	pageAnalyze bool
)

var pageCmd = &cobra.Command{
	Use:   "page <lead>",
	Short: "Render a lead's full history page as HTML",
	Long: `Load the first message page and the timeline of a lead and render the
complete history view (lead panel, messages, timeline and analysis panel)
as a standalone HTML document.

Loading failures are rendered into their panes rather than aborting.

Examples:
  leadhistory page 42 -o lead-42.html
  leadhistory page 42 --analyze > lead-42.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, args[0], logger)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ctrl.Initialize(ctx); err != nil {
			logger.Warn("initial load incomplete", "lead", args[0], "error", err)
		}
		if pageAnalyze {
			if err := s.ctrl.AnalyzeBehavior(ctx); err != nil {
				logger.Warn("analysis failed", "lead", args[0], "error", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if pageOutput != "" && pageOutput != "-" {
			f, err := os.OpenFile(pageOutput, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			if err := view.RenderPage(f, s.ctrl.Snapshot(), cfg.Location()); err != nil {
				_ = f.Close()
				return fmt.Errorf("render page: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close output file: %w", err)
			}
			logger.Info("wrote history page", "path", pageOutput)
			return nil
		}
		if err := view.RenderPage(stdout, s.ctrl.Snapshot(), cfg.Location()); err != nil {
			return fmt.Errorf("render page: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pageCmd)
	pageCmd.Flags().StringVarP(&pageOutput, "output", "o", "", "Write to file instead of stdout")
	pageCmd.Flags().BoolVar(&pageAnalyze, "analyze", false, "Include a behavior analysis")
}
