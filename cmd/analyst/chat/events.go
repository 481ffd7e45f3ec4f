package chat

import (
	"fmt"

	"analyst/internal/progress"
)

// DescribeEvent turns a progress event into a one-line status message.
func DescribeEvent(e progress.Event) string {
	p := e.Payload
	switch e.Stage {
	case progress.StageRouter:
		if e.Status == progress.StatusComplete {
			return fmt.Sprintf("Decision: %v", p["decision"])
		}
		return "Reading the question..."
	case progress.StagePlanner:
		switch e.Status {
		case progress.StatusComplete:
			return "Analysis script ready"
		case progress.StatusFailed:
			return fmt.Sprintf("Could not write a script: %v", p["error"])
		}
		return "Writing an analysis script..."
	case progress.StageReflection:
		switch e.Status {
		case progress.StatusComplete:
			return "Repaired script ready"
		case progress.StatusFailed:
			return fmt.Sprintf("Could not repair the script: %v", p["error"])
		}
		return "Repairing the script..."
	case progress.StageExecution:
		switch e.Status {
		case progress.StatusComplete:
			return fmt.Sprintf("Attempt %v succeeded", p["attempt"])
		case progress.StatusFailed:
			return fmt.Sprintf("Attempt %v failed: %s", p["attempt"], firstLine(fmt.Sprint(p["output"])))
		}
		return fmt.Sprintf("Running script (attempt %v of %v)...", p["attempt"], p["max_retries"])
	case progress.StageSynthesis:
		if e.Status == progress.StatusComplete {
			return "Answer ready"
		}
		return "Writing the answer..."
	case progress.StageError:
		return fmt.Sprintf("Model error: %v", p["error"])
	}
	return fmt.Sprintf("%s %s", e.Stage, e.Status)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
