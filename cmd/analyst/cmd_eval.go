package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"analyst/internal/regression"
)

var evalAnswers bool

// evalCmd runs a regression battery of questions
var evalCmd = &cobra.Command{
	Use:   "eval <battery.yaml>",
	Short: "Run a battery of questions and check the answers",
	Long: `Asks every question in a YAML battery and checks the outcome, answer text
and attempt count against the expectations in the file. Exits with an error
when any task fails.

Example battery:
  version: 1
  tasks:
    - id: greeting
      query: hello
      expect_outcome: direct
    - id: total
      query: How many tweets are there?
      expect_outcome: answered
      expect_contains: ["1200"]
      max_attempts: 2`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().BoolVar(&evalAnswers, "answers", false, "Print each answer below the table")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	battery, err := regression.LoadBattery(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	results, runErr := regression.RunBattery(a.withUsage(ctx), battery, func(ctx context.Context) (regression.Asker, error) {
		return a.sessions.Create(ctx)
	})

	out := cmd.OutOrStdout()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TASK", "RESULT", "OUTCOME", "ATTEMPTS", "MS", "FAILURES")
	for _, r := range results {
		status := "pass"
		if !r.Success {
			status = "FAIL"
		}
		t.Row(r.TaskID, status, string(r.Outcome), strconv.Itoa(r.Attempts),
			strconv.FormatInt(r.DurationMs, 10), strings.Join(r.Failures, "; "))
	}
	fmt.Fprintln(out, t.String())

	if evalAnswers {
		for _, r := range results {
			fmt.Fprintf(out, "\n%s:\n%s\n", r.TaskID, r.Answer)
		}
	}

	passed, failed := regression.Summary(results)
	fmt.Fprintf(out, "Passed: %d/%d\n", passed, len(results))
	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(results))
	}
	return nil
}
