package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/leadhistory/internal/history"
	"github.com/wesm/leadhistory/internal/tui"
	"github.com/wesm/leadhistory/internal/view"
)

var (
	messagesPages  int
	messagesAll    bool
	messagesQuery  string
	messagesType   string
	messagesFrom   string
	messagesTo     string
	messagesFormat string
)

var messagesCmd = &cobra.Command{
	Use:   "messages <lead>",
	Short: "Print a lead's messages",
	Long: `Print the message thread of a lead, newest first.

Pages are loaded in order the same way the "load more" control does, so
--page 3 prints the first three pages.

Examples:
  leadhistory messages 42
  leadhistory messages 42 --all
  leadhistory messages 42 --query invoice
  leadhistory messages 42 --type date --from 2024-01-01 --to 2024-01-31
  leadhistory messages 42 --format html > messages.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(messagesFormat); err != nil {
			return err
		}
		filter, err := messagesFilter()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, args[0], logger)
		if err != nil {
			return err
		}
		defer s.Close()

		if filter.Query != "" || filter.HasDateRange() || filter.Type == history.SearchDate {
			err = s.ctrl.ApplySearch(ctx, filter)
		} else {
			err = s.ctrl.LoadMessages(ctx, 1)
		}
		if err != nil {
			return fmt.Errorf("load messages: %w", err)
		}

		for page := 2; messagesAll || page <= messagesPages; page++ {
			err := s.ctrl.LoadMore(ctx)
			if errors.Is(err, history.ErrNoMorePages) {
				break
			}
			if err != nil {
				return fmt.Errorf("load messages: %w", err)
			}
		}

		snap := s.ctrl.Snapshot()
		loc := cfg.Location()
		switch messagesFormat {
		case formatJSON:
			return writeJSON(stdout, messagesJSON(snap))
		case formatHTML:
			return view.RenderMessages(stdout, snap.Messages, loc)
		}
		width := prepareText(stdout)
		_, err = fmt.Fprintln(stdout, tui.MessagesText(snap.Messages, loc, width))
		return err
	},
}

// messagesFilter builds the search filter from the command flags.
func messagesFilter() (history.SearchFilter, error) {
	f := history.SearchFilter{Query: messagesQuery, Type: history.ParseSearchType(messagesType)}
	for _, d := range []struct {
		flag, value string
		dst         *time.Time
	}{
		{"--from", messagesFrom, &f.DateFrom},
		{"--to", messagesTo, &f.DateTo},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseInLocation(time.DateOnly, d.value, cfg.Location())
		if err != nil {
			return f, fmt.Errorf("invalid %s date %q (want YYYY-MM-DD)", d.flag, d.value)
		}
		*d.dst = parsed
	}
	if messagesType == "" && (!f.DateFrom.IsZero() || !f.DateTo.IsZero()) {
		f.Type = history.SearchDate
	}
	return f.Normalize(), nil
}

func init() {
	rootCmd.AddCommand(messagesCmd)
	messagesCmd.Flags().IntVar(&messagesPages, "page", 1, "Load pages 1 through N")
	messagesCmd.Flags().BoolVar(&messagesAll, "all", false, "Load every page")
	messagesCmd.Flags().StringVar(&messagesQuery, "query", "", "Search message content")
	messagesCmd.Flags().StringVar(&messagesType, "type", "", "Search type: content or date (default content, date when --from/--to is set)")
	messagesCmd.Flags().StringVar(&messagesFrom, "from", "", "Date search start (YYYY-MM-DD)")
	messagesCmd.Flags().StringVar(&messagesTo, "to", "", "Date search end (YYYY-MM-DD)")
	messagesCmd.Flags().StringVar(&messagesFormat, "format", formatText, "Output format: text, html or json")
}
