package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"analyst/internal/usage"
)

// usageCmd prints accumulated token usage
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show language model token usage",
	Long: `Prints the token counts recorded for every model call, broken down by
provider, model and agent role. Counts are kept next to the transcript store.`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	path := usagePath(cfg)
	if path == "" {
		return fmt.Errorf("usage is only recorded while the transcript store is enabled")
	}
	tracker, err := usage.NewTracker(path)
	if err != nil {
		return err
	}
	stats := tracker.Stats()

	out := cmd.OutOrStdout()
	if stats.Total.Calls == 0 {
		fmt.Fprintln(out, "No model calls recorded.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("BREAKDOWN", "KEY", "CALLS", "INPUT", "OUTPUT", "TOTAL")
	addRows(t, "provider", stats.ByProvider)
	addRows(t, "model", stats.ByModel)
	addRows(t, "role", stats.ByOperation)
	t.Row(append([]string{"total", ""}, counts(stats.Total)...)...)
	fmt.Fprintln(out, t.String())
	return nil
}

func addRows(t *table.Table, label string, m map[string]usage.TokenCounts) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.Row(append([]string{label, k}, counts(m[k])...)...)
	}
}

func counts(tc usage.TokenCounts) []string {
	return []string{
		strconv.FormatInt(tc.Calls, 10),
		strconv.FormatInt(tc.Input, 10),
		strconv.FormatInt(tc.Output, 10),
		strconv.FormatInt(tc.Total, 10),
	}
}
