package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/wesm/leadhistory/internal/history"
)

var presetFrom string

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage saved list filter presets",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in filter presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLABEL\tFILTERS")
		fmt.Fprintln(w, "────\t─────\t───────")
		for _, p := range history.BuiltinPresets() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Label(), describeFilters(p.Filters))
		}
		return w.Flush()
	},
}

var presetSaveCmd = &cobra.Command{
	Use:   "save <name> [key=value...]",
	Short: "Save a filter preset on the server",
	Long: `Save a named filter preset on the CRM server.

Filters are given as key=value pairs. --from starts from a built-in
preset; pairs given on the command line override it and an empty value
clears a key.

Examples:
  leadhistory preset save hot status=Hot score_min=80
  leadhistory preset save mine --from pending owner=me`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters := map[string]string{}
		if presetFrom != "" {
			base, ok := builtinPreset(presetFrom)
			if !ok {
				return fmt.Errorf("unknown built-in preset %q", presetFrom)
			}
			filters = history.ApplyPreset(filters, base)
		}
		overlay, err := parseFilterArgs(args[1:])
		if err != nil {
			return err
		}
		filters = history.ApplyPreset(filters, history.FilterPreset{Filters: overlay})

		client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer client.Close()

		p := history.FilterPreset{Name: args[0], Filters: filters}
		if err := client.SaveFilterPreset(cmd.Context(), p); err != nil {
			return fmt.Errorf("save preset %q: %w", p.Name, err)
		}
		fmt.Fprintf(stdout, "Saved preset %q: %s\n", p.Name, describeFilters(filters))
		return nil
	},
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a filter preset from the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.DeleteFilterPreset(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete preset %q: %w", args[0], err)
		}
		fmt.Fprintf(stdout, "Deleted preset %q\n", args[0])
		return nil
	},
}

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "Manage the current list filters",
}

var filtersSaveCmd = &cobra.Command{
	Use:   "save [key=value...]",
	Short: "Save the current list filters on the server",
	Long: `Save list filters on the CRM server so they are restored next time.

Numeric values are clamped at zero.

Examples:
  leadhistory filters save status=Pending date_range=week
  leadhistory filters save score_min=50 sort_order=desc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := parseFilterArgs(args)
		if err != nil {
			return err
		}
		for k, v := range filters {
			if v == "" {
				delete(filters, k)
			}
		}

		client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.SaveFilters(cmd.Context(), filters); err != nil {
			return fmt.Errorf("save filters: %w", err)
		}
		fmt.Fprintf(stdout, "Saved filters: %s\n", describeFilters(filters))
		return nil
	},
}

func builtinPreset(name string) (history.FilterPreset, bool) {
	for _, p := range history.BuiltinPresets() {
		if p.Name == name {
			return p, true
		}
	}
	return history.FilterPreset{}, false
}

// parseFilterArgs parses key=value pairs. Numeric values are clamped at
// zero; an empty value is kept so presets can clear a key.
func parseFilterArgs(args []string) (map[string]string, error) {
	filters := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q (want key=value)", arg)
		}
		v = strings.TrimSpace(v)
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			v = strconv.FormatFloat(history.ClampNonNegative(n), 'f', -1, 64)
		}
		filters[k] = v
	}
	return filters, nil
}

// describeFilters renders the active filters as "Label: value" tags.
func describeFilters(filters map[string]string) string {
	tags := history.ActiveFilterTags(filters)
	if len(tags) == 0 {
		return "-"
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.Label + ": " + t.Value
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetListCmd, presetSaveCmd, presetDeleteCmd)
	presetSaveCmd.Flags().StringVar(&presetFrom, "from", "", "Start from a built-in preset (today, pending, this_week)")

	rootCmd.AddCommand(filtersCmd)
	filtersCmd.AddCommand(filtersSaveCmd)
}
