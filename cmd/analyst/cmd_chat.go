package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"analyst/cmd/analyst/chat"
	"analyst/internal/agent"
	"analyst/internal/logging"
	"analyst/internal/progress"
)

var (
	chatSession string
	chatLight   bool
)

// chatCmd starts the interactive interface
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	Long: `Opens a terminal chat over the dataset. Stage progress is shown live while
a question is being worked on, and answers are rendered as Markdown.

Type /quit or press Esc to leave. With the transcript store enabled the
session can be resumed later with --session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Resume a stored session")
	chatCmd.Flags().BoolVar(&chatLight, "light", false, "Use the light Markdown theme")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	relay := progress.NewRelay()
	defer func() {
		relay.Close()
		for range relay.Events() {
		}
	}()

	a, err := openApp(ctx, cfg, relay)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(ctx, chatSession)
	if err != nil {
		return err
	}

	stop := a.sessions.StartPruner(ctx, pruneInterval(cfg.GetSessionTTL()))
	defer stop()

	model := chat.New(chat.Config{
		Ask: func(ctx context.Context, query string) agent.Result {
			return s.Ask(a.withUsage(ctx), query)
		},
		Events:    relay.Events(),
		SessionID: s.ID(),
		Dataset:   cfg.Dataset.Path,
		History:   s.History(),
		Light:     chatLight,
	})

	logging.Session("chat started for session %s", s.ID())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	if a.store != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s saved. Resume with: analyst chat --session %s\n", s.ID(), s.ID())
	}
	return nil
}
