package transparency

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"analyst/internal/dataset"
	"analyst/internal/llm"
	"analyst/internal/session"
)

func TestClassifyErrorTyped(t *testing.T) {
	_, statErr := os.Stat("/definitely/not/here.csv")
	cases := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"deadline", fmt.Errorf("ask: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"api status", &llm.ServiceError{Provider: "openai", StatusCode: 401, Reason: "status 401"}, ErrorCategoryAPI},
		{"unreachable", &llm.ServiceError{Provider: "openai", Reason: "request failed", Err: errors.New("boom")}, ErrorCategoryNetwork},
		{"no columns", fmt.Errorf("header [a]: %w", dataset.ErrNoColumns), ErrorCategoryDataset},
		{"session", session.ErrNotFound, ErrorCategorySession},
		{"path", statErr, ErrorCategoryFilesystem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyError(tc.err)
			if got.Category != tc.want {
				t.Fatalf("category = %v, want %v", got.Category, tc.want)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("classified error should unwrap to the original")
			}
		})
	}
}

func TestClassifyErrorText(t *testing.T) {
	classified := ClassifyError(errors.New(`invalid config: unknown llm.provider "x"`))
	if classified.Category != ErrorCategoryConfig {
		t.Fatalf("expected config category, got %v", classified.Category)
	}
	out := classified.Format()
	if !strings.Contains(out, "[CONFIG]") || !strings.Contains(out, "analyst config init") {
		t.Fatalf("unexpected format:\n%s", out)
	}
}

func TestClassifyErrorNil(t *testing.T) {
	if ClassifyError(nil) != nil {
		t.Fatal("nil error should classify to nil")
	}
}

func TestGetRecoveryGuideUnknown(t *testing.T) {
	guide := GetRecoveryGuide(ErrorCategoryUnknown)
	if len(guide) == 0 {
		t.Fatalf("expected fallback recovery guide")
	}
	if ErrorCategory(99).Prefix() != "[ERROR]" {
		t.Fatalf("out of range category should use the fallback prefix")
	}
}
