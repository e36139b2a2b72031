package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/wesm/leadhistory/internal/tui"
)

var viewCmd = &cobra.Command{
	Use:   "view <lead>",
	Short: "Open the interactive history view of a lead",
	Long: `Open an interactive terminal UI for one lead's history.

Panes:
  1  Messages   paginated thread, newest first
  2  Timeline   activity events grouped by day
  3  Analysis   behavior analysis on demand

Keys:
  ↑/k, ↓/j    Scroll
  PgUp/PgDn   Page up/down
  Tab, 1-3    Switch pane
  /           Search messages (Tab toggles content/date search)
  m           Load more messages
  t           Reload the timeline
  a           Run behavior analysis
  r           Retry after an error
  q           Quit

The message pane's scroll position is restored when the view reopens while
[scroll] keep_on_exit is set. Logs go to <home>/leadhistory.log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal(os.Stdout) || !isTerminal(os.Stdin) {
			return errors.New("view needs an interactive terminal; use the messages, timeline or analyze commands for scripted output")
		}

		// Logging to stderr would corrupt the screen.
		logPath := cfg.LogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		fileLogger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))

		ctx := cmd.Context()
		s, err := openSession(ctx, args[0], fileLogger)
		if err != nil {
			return err
		}
		defer s.Close()

		model := tui.New(s.ctrl, tui.Options{
			Context:        ctx,
			Location:       cfg.Location(),
			SearchDebounce: cfg.UI.SearchDebounce,
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("run tui: %w", err)
		}
		return ctx.Err()
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
