package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"analyst/cmd/analyst/chat"
	"analyst/internal/diff"
	"analyst/internal/progress"
	"analyst/internal/store"
)

// =============================================================================
// SESSION COMMANDS
// =============================================================================

var (
	sessionsLimit  int
	historyEvents  bool
	historyScripts bool
)

// sessionsCmd lists stored sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

// historyCmd prints one session's transcript
var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the questions and answers of a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Show at most N sessions (0 for all)")
	historyCmd.Flags().BoolVar(&historyEvents, "events", false, "Include the progress events of each turn")
	historyCmd.Flags().BoolVar(&historyScripts, "scripts", false, "Include the generated scripts, repairs shown as diffs")
}

func runSessions(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.Sessions(cmd.Context(), sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No stored sessions.")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, s := range list {
		status := "open"
		if !s.ClosedAt.IsZero() {
			status = "closed"
		}
		rows = append(rows, []string{
			s.ID,
			s.Dataset,
			strconv.Itoa(s.Turns),
			s.UpdatedAt.Local().Format(time.DateTime),
			status,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "DATASET", "TURNS", "LAST ACTIVE", "STATUS").
		Rows(rows...)
	fmt.Fprintln(out, t.String())
	fmt.Fprintf(out, "Total: %d sessions\n", len(list))
	fmt.Fprintln(out, "\nUse: analyst history <session-id>")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	id := args[0]
	if _, err := st.Session(ctx, id); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return fmt.Errorf("session %q not found. Use 'analyst sessions' to see stored sessions", id)
		}
		return err
	}

	turns, err := st.Turns(ctx, id, 0)
	if err != nil {
		return fmt.Errorf("failed to load turns: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(turns) == 0 {
		fmt.Fprintln(out, "No turns recorded.")
		return nil
	}
	for _, t := range turns {
		fmt.Fprintf(out, "#%d  %s  [%s, %d attempts]\n", t.Number, t.CreatedAt.Local().Format(time.DateTime), t.Outcome, t.Attempts)
		fmt.Fprintf(out, "Q: %s\n", t.Query)
		fmt.Fprintf(out, "A: %s\n", t.Answer)

		if historyEvents || historyScripts {
			events, err := st.Events(ctx, id, t.QueryID)
			if err != nil {
				return fmt.Errorf("failed to load events: %w", err)
			}
			if historyEvents {
				for _, e := range events {
					fmt.Fprintf(out, "   - %-10s %-8s %s\n", e.Stage, e.Status, chat.DescribeEvent(e))
				}
			}
			if historyScripts {
				fmt.Fprint(out, renderScripts(events))
			}
		}
		fmt.Fprintln(out, strings.Repeat("─", 50))
	}
	return nil
}

// renderScripts prints the first script of a turn in full and every repair
// as a diff against the script it replaced.
func renderScripts(events []progress.Event) string {
	var sb strings.Builder
	var prev string
	n := 0
	for _, e := range events {
		if e.Status != progress.StatusComplete || (e.Stage != progress.StagePlanner && e.Stage != progress.StageReflection) {
			continue
		}
		code, _ := e.Payload["code"].(string)
		if code == "" {
			continue
		}
		n++
		if n == 1 {
			fmt.Fprintf(&sb, "\nScript 1:\n%s\n", strings.TrimRight(code, "\n"))
		} else {
			d := diff.Unified(fmt.Sprintf("script %d", n-1), fmt.Sprintf("script %d", n), prev, code)
			added, removed := diff.Stat(diff.Compute(prev, code, diff.DefaultContext))
			fmt.Fprintf(&sb, "\nRepair %d (+%d -%d):\n%s", n-1, added, removed, d)
		}
		prev = code
	}
	return sb.String()
}
