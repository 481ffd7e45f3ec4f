// Package transparency turns errors surfaced by the CLI into a category, a
// one-line summary and concrete steps the user can take.
package transparency

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"

	"analyst/internal/dataset"
	"analyst/internal/llm"
	"analyst/internal/session"
	"analyst/internal/store"
)

// ErrorCategory classifies errors for user guidance.
type ErrorCategory int

const (
	// ErrorCategoryConfig indicates a configuration issue.
	ErrorCategoryConfig ErrorCategory = iota

	// ErrorCategoryAPI indicates a language model service error.
	ErrorCategoryAPI

	// ErrorCategoryDataset indicates the CSV could not be used.
	ErrorCategoryDataset

	// ErrorCategorySession indicates an unknown or unavailable session.
	ErrorCategorySession

	// ErrorCategoryFilesystem indicates a file/directory issue.
	ErrorCategoryFilesystem

	// ErrorCategoryNetwork indicates a network connectivity issue.
	ErrorCategoryNetwork

	// ErrorCategoryTimeout indicates an operation timeout.
	ErrorCategoryTimeout

	// ErrorCategoryUnknown is the fallback for unclassified errors.
	ErrorCategoryUnknown
)

var categoryNames = []struct{ prefix, name string }{
	{"[CONFIG]", "config"},
	{"[API]", "api"},
	{"[DATA]", "dataset"},
	{"[SESSION]", "session"},
	{"[FS]", "filesystem"},
	{"[NET]", "network"},
	{"[TIMEOUT]", "timeout"},
	{"[ERROR]", "unknown"},
}

// Prefix returns the display prefix for this error category.
func (c ErrorCategory) Prefix() string {
	if int(c) >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c].prefix
	}
	return "[ERROR]"
}

// String returns the category name.
func (c ErrorCategory) String() string {
	if int(c) >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c].name
	}
	return "unknown"
}

// ClassifiedError wraps an error with classification and remediation.
type ClassifiedError struct {
	Original    error
	Category    ErrorCategory
	Summary     string
	Remediation []string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	return ce.Format()
}

// Unwrap returns the original error for errors.Is/As compatibility.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Original
}

// Format returns a user-friendly error message with remediation.
func (ce *ClassifiedError) Format() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s\n\n", ce.Category.Prefix(), ce.Summary)
	fmt.Fprintf(&sb, "Details: %s\n", ce.Original.Error())

	if len(ce.Remediation) > 0 {
		sb.WriteString("\nSuggested fixes:\n")
		for _, r := range ce.Remediation {
			fmt.Fprintf(&sb, "  - %s\n", r)
		}
	}

	return sb.String()
}

// ClassifyError analyzes an error and returns a classified version. Known
// error types are matched first, then the message text.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	category := classifyTyped(err)
	if category == ErrorCategoryUnknown {
		category = classifyText(strings.ToLower(err.Error()))
	}
	return &ClassifiedError{
		Original:    err,
		Category:    category,
		Summary:     summaries[category],
		Remediation: GetRecoveryGuide(category),
	}
}

func classifyTyped(err error) ErrorCategory {
	var se *llm.ServiceError
	var netErr net.Error
	var pathErr *fs.PathError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryTimeout
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	case errors.As(err, &se):
		if se.StatusCode == 0 && se.Err != nil {
			return ErrorCategoryNetwork
		}
		return ErrorCategoryAPI
	case errors.Is(err, dataset.ErrNoColumns), errors.Is(err, dataset.ErrUnknownColumn):
		return ErrorCategoryDataset
	case errors.Is(err, session.ErrNotFound), errors.Is(err, store.ErrSessionNotFound):
		return ErrorCategorySession
	case errors.As(err, &pathErr):
		return ErrorCategoryFilesystem
	}
	return ErrorCategoryUnknown
}

func classifyText(errStr string) ErrorCategory {
	switch {
	case containsAny(errStr, "timeout", "deadline", "timed out"):
		return ErrorCategoryTimeout
	case containsAny(errStr, "config", "api_key", "provider"):
		return ErrorCategoryConfig
	case containsAny(errStr, "rate limit", "quota", "unauthorized", "status 401", "status 403", "status 429"):
		return ErrorCategoryAPI
	case containsAny(errStr, "dataset", "csv", "column"):
		return ErrorCategoryDataset
	case containsAny(errStr, "session"):
		return ErrorCategorySession
	case containsAny(errStr, "connection refused", "network", "dial", "no such host", "unreachable"):
		return ErrorCategoryNetwork
	case containsAny(errStr, "no such file", "directory", "permission denied", "cannot open"):
		return ErrorCategoryFilesystem
	}
	return ErrorCategoryUnknown
}

// containsAny returns true if s contains any of the patterns.
func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

var summaries = map[ErrorCategory]string{
	ErrorCategoryConfig:     "Configuration issue detected",
	ErrorCategoryAPI:        "Language model service issue",
	ErrorCategoryDataset:    "The dataset could not be used",
	ErrorCategorySession:    "Session is not available",
	ErrorCategoryFilesystem: "Filesystem issue",
	ErrorCategoryNetwork:    "Network connectivity issue",
	ErrorCategoryTimeout:    "Operation timed out",
	ErrorCategoryUnknown:    "An unexpected error occurred",
}

// GetRecoveryGuide returns remediation steps for an error category.
func GetRecoveryGuide(category ErrorCategory) []string {
	guides := map[ErrorCategory][]string{
		ErrorCategoryConfig: {
			"Run 'analyst config init' to write a default config",
			"Run 'analyst config show' to view current settings",
			"Check llm.provider and llm.api_key (or OPENAI_API_KEY / GEMINI_API_KEY)",
		},
		ErrorCategoryAPI: {
			"Check your API key is valid",
			"Verify you haven't exceeded rate limits or quota",
			"Try a different model under models",
		},
		ErrorCategoryDataset: {
			"Run 'analyst schema' to see which columns were recognized",
			"Check the CSV header matches dataset.columns",
			"Point --data at the right file",
		},
		ErrorCategorySession: {
			"Run 'analyst sessions' to list stored sessions",
			"Start a new session by omitting --session",
		},
		ErrorCategoryFilesystem: {
			"Check the file/directory exists",
			"Verify you have read/write permissions",
			"Check store.path and logging.file in the config",
		},
		ErrorCategoryNetwork: {
			"Check your internet connection",
			"Verify llm.endpoint is reachable",
			"Try again in a few moments",
		},
		ErrorCategoryTimeout: {
			"Increase llm.timeout or sandbox.timeout",
			"Ask a narrower question",
		},
	}

	if steps, ok := guides[category]; ok {
		return steps
	}
	return []string{"Re-run with --verbose and check the log file", "Run 'analyst --help' for available commands"}
}
