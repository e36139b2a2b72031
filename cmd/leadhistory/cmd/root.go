package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/wesm/leadhistory/internal/config"
	"github.com/wesm/leadhistory/internal/i18n"
)

var (
	cfgFile string
	homeDir string
	verbose bool
	lang    string
	cfg     *config.Config
	logger  *slog.Logger

	// stdout is where command output goes; tests replace it.
	stdout io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "leadhistory",
	Short: "Browse a CRM lead's message history",
	Long: `leadhistory shows the communication history of a CRM lead: the
paginated message thread, the activity timeline and an on-demand
behavior analysis.

Use 'leadhistory view <lead>' for the interactive terminal UI, or the
messages, timeline and analyze commands for scriptable output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set up logging
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		// Load config (--home is passed through so it influences
		// where config.toml is loaded from, like LEADHISTORY_HOME).
		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		locale := lang
		if locale == "" {
			locale = i18n.ResolveLocale(cfg.UI.Language)
		}
		i18n.Init(locale)
		logger.Debug("config loaded", "home", cfg.HomeDir, "locale", i18n.Language().String())
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.leadhistory/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides LEADHISTORY_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&lang, "lang", "", "display language, e.g. en or ja (overrides config and LEADHISTORY_LANG)")
}
