package resilience

import (
	"context"

	"github.com/veriscribe-io/veriscribe/internal/medterm"
	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

// ClassifierFallback implements [medterm.Classifier] with automatic failover
// across multiple classifier backends (e.g., a hosted model with a local
// fallback). Each backend has its own circuit breaker; when the primary fails
// or its breaker is open, the next healthy fallback is tried.
//
// The validation engine treats classifier failure as fail-open, so exhausting
// every backend degrades the session to "no medical terms detected" — the
// fallback chain exists to make that outcome rare, not to change it.
type ClassifierFallback struct {
	group *FallbackGroup[medterm.Classifier]
}

// Compile-time interface assertion.
var _ medterm.Classifier = (*ClassifierFallback)(nil)

// NewClassifierFallback creates a [ClassifierFallback] with primary as the
// preferred backend.
func NewClassifierFallback(primary medterm.Classifier, primaryName string, cfg FallbackConfig) *ClassifierFallback {
	return &ClassifierFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional classifier as a fallback.
func (f *ClassifierFallback) AddFallback(name string, c medterm.Classifier) {
	f.group.AddFallback(name, c)
}

// Classify sends the transcript to the first healthy backend and returns its
// findings. If the primary fails, subsequent fallbacks are tried in order.
func (f *ClassifierFallback) Classify(ctx context.Context, t *transcript.Transcript) ([]medterm.Finding, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, c medterm.Classifier) ([]medterm.Finding, error) {
		return c.Classify(ctx, t)
	})
}
