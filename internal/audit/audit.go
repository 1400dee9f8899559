// Package audit persists the outcome of completed validation sessions: which
// words were corrected, what the reviewer changed them to, and the final
// assembled transcript. The log is append-only and keyed by session ID.
package audit

import (
	"context"
	"time"
)

// CompletionRecord captures everything worth keeping from a finished session.
type CompletionRecord struct {
	SessionID       string
	StartedAt       time.Time
	CompletedAt     time.Time
	FinalTranscript string
	Corrections     []CorrectionRecord
}

// CorrectionRecord is one reviewer-made change within a session.
type CorrectionRecord struct {
	Segment   int
	Word      int
	Original  string
	Corrected string
	Timestamp float64
}

// Recorder writes completion records to durable storage.
type Recorder interface {
	// RecordCompletion stores record. Calling it twice with the same session
	// ID appends a second record; the log keeps history rather than upserting.
	RecordCompletion(ctx context.Context, record CompletionRecord) error

	// Corrections returns the correction entries stored for sessionID in
	// transcript order, across all completion records for that session.
	Corrections(ctx context.Context, sessionID string) ([]CorrectionRecord, error)
}
