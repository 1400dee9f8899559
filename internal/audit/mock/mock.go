// Package mock provides an in-memory [audit.Recorder] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/veriscribe-io/veriscribe/internal/audit"
)

var _ audit.Recorder = (*Recorder)(nil)

// Recorder records every completion it receives in memory. Configure the
// error fields to simulate storage failures. Safe for concurrent use.
type Recorder struct {
	RecordErr      error
	CorrectionsErr error

	mu      sync.Mutex
	records []audit.CompletionRecord
}

// RecordCompletion implements [audit.Recorder].
func (r *Recorder) RecordCompletion(_ context.Context, record audit.CompletionRecord) error {
	if r.RecordErr != nil {
		return r.RecordErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// Corrections implements [audit.Recorder].
func (r *Recorder) Corrections(_ context.Context, sessionID string) ([]audit.CorrectionRecord, error) {
	if r.CorrectionsErr != nil {
		return nil, r.CorrectionsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.CorrectionRecord
	for _, rec := range r.records {
		if rec.SessionID == sessionID {
			out = append(out, rec.Corrections...)
		}
	}
	return out, nil
}

// Records returns a snapshot of all stored completion records.
func (r *Recorder) Records() []audit.CompletionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.CompletionRecord, len(r.records))
	copy(out, r.records)
	return out
}
