// Package llm is the single doorway to the language model service.
//
// Callers hand the Gateway a message list, a model name and a temperature and
// get back the completion text. Providers translate that contract to a
// concrete API; the Gateway adds timeouts, logging and error reporting.
package llm

import (
	"context"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one completed question and its answer.
type Turn struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// BuildMessages assembles a conversation: the system message, then each turn
// as a user/assistant pair, then the current user content. It is pure.
func BuildMessages(system string, history []Turn, content string) []Message {
	msgs := make([]Message, 0, 2+2*len(history))
	msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	for _, t := range history {
		msgs = append(msgs,
			Message{Role: RoleUser, Content: t.Query},
			Message{Role: RoleAssistant, Content: t.Answer},
		)
	}
	return append(msgs, Message{Role: RoleUser, Content: content})
}

// Provider talks to one model API.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []Message, model string, temperature float64) (string, error)
}

// ServiceError is the only error the Gateway returns. It covers unreachable
// endpoints, non-success statuses and responses without a completion.
type ServiceError struct {
	Provider   string
	Model      string
	StatusCode int // 0 when no response was received
	Reason     string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *ServiceError) Unwrap() error { return e.Err }
