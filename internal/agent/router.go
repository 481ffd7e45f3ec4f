package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"analyst/internal/llm"
	"analyst/internal/logging"
	"analyst/internal/progress"
	"analyst/internal/usage"
)

// DirectAnswerFallback replaces an empty direct answer.
const DirectAnswerFallback = "I can answer that directly, but there was an issue."

// Router decides whether a query needs analysis.
type Router struct {
	llm         Completer
	model       string
	temperature float64
	language    string
}

// NewRouter creates a router.
func NewRouter(c Completer, model string, temperature float64, language string) *Router {
	return &Router{llm: c, model: model, temperature: temperature, language: language}
}

// Route classifies query. Anything it cannot make sense of becomes Analysis,
// the path that can still answer.
func (r *Router) Route(ctx context.Context, query string, history []llm.Turn) Decision {
	sink := progress.FromContext(ctx)
	progress.Emit(sink, progress.StageRouter, progress.StatusRunning, nil)

	decision := Decision{Kind: Analysis}
	messages := llm.BuildMessages(routerPrompt(r.language), history, "Query: "+query)
	text, err := r.llm.Complete(usage.WithOperation(ctx, "router"), messages, r.model, r.temperature)
	if err != nil {
		logging.Routing("router call failed, defaulting to analysis: %v", err)
	} else if d, perr := parseDecision(text); perr != nil {
		logging.RoutingDebug("unparseable router reply, defaulting to analysis: %v", perr)
	} else {
		decision = d
	}

	logging.Routing("decision=%s", decision.Kind)
	progress.Emit(sink, progress.StageRouter, progress.StatusComplete, map[string]any{
		"decision": string(decision.Kind),
	})
	return decision
}

type routerReply struct {
	Decision string `json:"decision"`
	Answer   any    `json:"answer"`
}

func parseDecision(text string) (Decision, error) {
	obj, ok := extractJSONObject(text)
	if !ok {
		return Decision{}, fmt.Errorf("no JSON object in reply")
	}
	var reply routerReply
	if err := json.Unmarshal([]byte(obj), &reply); err != nil {
		return Decision{}, fmt.Errorf("invalid JSON: %w", err)
	}

	switch DecisionKind(strings.ToLower(strings.TrimSpace(reply.Decision))) {
	case Analysis:
		return Decision{Kind: Analysis}, nil
	case DirectAnswer:
		answer, _ := reply.Answer.(string)
		if strings.TrimSpace(answer) == "" {
			answer = DirectAnswerFallback
		}
		return Decision{Kind: DirectAnswer, Answer: answer}, nil
	case "":
		return Decision{}, fmt.Errorf("missing decision")
	default:
		return Decision{}, fmt.Errorf("unknown decision %q", reply.Decision)
	}
}
