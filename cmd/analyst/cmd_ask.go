package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"analyst/cmd/analyst/chat"
	"analyst/internal/progress"
)

var (
	askSession  string
	askProgress bool
	askJSON     bool
)

// askCmd answers a single question
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question about the dataset",
	Long: `Runs one question through the router, planner, sandbox and synthesizer
and prints the answer.

Examples:
  analyst ask "How many tweets mention the election?"
  analyst ask --progress --data tweets.csv "Who has the most followers?"
  analyst ask --session <id> "And the second most?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "Continue a stored session")
	askCmd.Flags().BoolVar(&askProgress, "progress", false, "Print stage progress to stderr")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full result as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var sink progress.Sink
	if askProgress {
		errOut := cmd.ErrOrStderr()
		sink = progress.SinkFunc(func(e progress.Event) {
			fmt.Fprintf(errOut, "[%s/%s] %s\n", e.Stage, e.Status, chat.DescribeEvent(e))
		})
	}

	a, err := openApp(ctx, cfg, sink)
	if err != nil {
		return err
	}
	defer a.Close()

	return ask(ctx, cmd, a, strings.Join(args, " "))
}

func ask(ctx context.Context, cmd *cobra.Command, a *app, query string) error {
	s, err := a.session(ctx, askSession)
	if err != nil {
		return err
	}
	res := s.Ask(a.withUsage(ctx), query)

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			SessionID string `json:"session_id"`
			QueryID   string `json:"query_id"`
			Outcome   string `json:"outcome"`
			Attempts  int    `json:"attempts"`
			Answer    string `json:"answer"`
		}{s.ID(), res.QueryID, string(res.Outcome), res.Attempts, res.Answer})
	}

	fmt.Fprintln(out, res.Answer)
	if a.store != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nsession: %s (continue with --session %s)\n", s.ID(), s.ID())
	}
	return nil
}
