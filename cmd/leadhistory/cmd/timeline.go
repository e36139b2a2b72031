package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wesm/leadhistory/internal/tui"
	"github.com/wesm/leadhistory/internal/view"
)

var timelineFormat string

var timelineCmd = &cobra.Command{
	Use:   "timeline <lead>",
	Short: "Print a lead's activity timeline",
	Long: `Print the activity timeline of a lead, newest events first, together
with the lead's name, email and status when the server sends them.

Examples:
  leadhistory timeline 42
  leadhistory timeline 42 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(timelineFormat); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, args[0], logger)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ctrl.LoadTimeline(ctx); err != nil {
			return fmt.Errorf("load timeline: %w", err)
		}

		snap := s.ctrl.Snapshot()
		loc := cfg.Location()
		switch timelineFormat {
		case formatJSON:
			return writeJSON(stdout, timelineJSON(snap))
		case formatHTML:
			return view.RenderTimeline(stdout, snap.Timeline, loc)
		}
		width := prepareText(stdout)
		if lead := tui.LeadText(snap.Lead, width); lead != "" {
			fmt.Fprintln(stdout, lead)
			fmt.Fprintln(stdout)
		}
		_, err = fmt.Fprintln(stdout, tui.TimelineText(snap.Timeline, loc, width))
		return err
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.Flags().StringVar(&timelineFormat, "format", formatText, "Output format: text, html or json")
}
