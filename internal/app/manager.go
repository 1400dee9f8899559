// Package app wires the validation engine's collaborators together and
// manages the lifecycle of review sessions. One session is active at a time;
// starting a new one requires cancelling or confirming the current one first.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriscribe-io/veriscribe/internal/audit"
	"github.com/veriscribe-io/veriscribe/internal/medterm"
	"github.com/veriscribe-io/veriscribe/internal/observe"
	"github.com/veriscribe-io/veriscribe/internal/review"
	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

// auditWriteTimeout bounds the completion write so a slow database cannot
// hold up the confirm path indefinitely.
const auditWriteTimeout = 10 * time.Second

// SessionInfo holds metadata about the active review session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// StartedAt is when the session was started.
	StartedAt time.Time

	// WordCount is the total number of words in the transcript under review.
	WordCount int
}

// ManagerConfig holds all dependencies for a [Manager].
type ManagerConfig struct {
	// Thresholds are the confidence cut-offs applied to every session.
	Thresholds review.Thresholds

	// Classifier detects medical terms. May be nil; sessions then run without
	// mandatory medical review.
	Classifier medterm.Classifier

	// Recorder persists completion records. May be nil; completions are then
	// logged but not stored.
	Recorder audit.Recorder

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics
}

// Manager owns the active review session. All exported methods are safe for
// concurrent use.
type Manager struct {
	thresholds review.Thresholds
	classifier medterm.Classifier
	recorder   audit.Recorder
	metrics    *observe.Metrics

	mu      sync.Mutex
	active  bool
	info    SessionInfo
	session *review.Session
	tr      *transcript.Transcript
}

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		thresholds: cfg.Thresholds,
		classifier: cfg.Classifier,
		recorder:   cfg.Recorder,
		metrics:    cfg.Metrics,
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Start begins reviewing tr. It builds a new [review.Session], dispatches the
// medical-term pass, and returns session metadata.
//
// Returns an error if a session is already active.
func (m *Manager) Start(ctx context.Context, tr *transcript.Transcript) (SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return SessionInfo{}, fmt.Errorf("app: a session is already active (id=%s)", m.info.SessionID)
	}

	sess, err := review.NewSession(review.SessionConfig{
		Transcript: tr,
		Thresholds: m.thresholds,
		Classifier: m.classifier,
	}, review.WithMetrics(m.metrics))
	if err != nil {
		return SessionInfo{}, fmt.Errorf("app: create session: %w", err)
	}
	// The overlay outlives the request that started the session: a dropped
	// connection is not teardown, and a reconnecting client expects the
	// classification to finish. Session.Close is the sole cancellation path.
	sess.Start(context.WithoutCancel(ctx))

	m.active = true
	m.session = sess
	m.tr = tr
	m.info = SessionInfo{
		SessionID: uuid.NewString(),
		StartedAt: time.Now().UTC(),
		WordCount: tr.WordCount(),
	}

	if m.metrics.ActiveSessions != nil {
		m.metrics.ActiveSessions.Add(ctx, 1)
	}
	slog.Info("review session started",
		"session_id", m.info.SessionID,
		"words", m.info.WordCount,
		"flagged", len(sess.Flagged()),
	)
	return m.info, nil
}

// Session returns the active review session, or nil when none is active.
func (m *Manager) Session() *review.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// IsActive reports whether a session is currently running.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Info returns metadata about the active session, zero when none is active.
func (m *Manager) Info() SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Confirm finalises the active session. When the review gate passes it
// assembles the final transcript, persists the completion record, tears the
// session down, and returns the final text. While any medical term is pending
// it returns [review.ErrReviewIncomplete] and the session stays active.
//
// A failed audit write is logged and does not undo the confirmation; the
// reviewed transcript must never be lost to a storage outage.
func (m *Manager) Confirm(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return "", fmt.Errorf("app: no active session to confirm")
	}

	if err := m.session.Confirm(); err != nil {
		return "", err
	}

	final := m.session.FinalTranscript()
	corrections := m.session.Corrections()
	info := m.info

	if m.recorder != nil {
		record := audit.CompletionRecord{
			SessionID:       info.SessionID,
			StartedAt:       info.StartedAt,
			CompletedAt:     time.Now().UTC(),
			FinalTranscript: final,
		}
		for _, c := range corrections {
			cr := audit.CorrectionRecord{
				Segment:   c.ID.Segment,
				Word:      c.ID.Word,
				Original:  c.Original,
				Corrected: c.Corrected,
			}
			if fw, ok := m.session.Word(c.ID); ok {
				cr.Timestamp = fw.Timestamp
			}
			record.Corrections = append(record.Corrections, cr)
		}

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
		if err := m.recorder.RecordCompletion(wctx, record); err != nil {
			slog.Error("audit write failed; completion not persisted",
				"session_id", info.SessionID, "err", err)
		}
		cancel()
	}

	m.teardownLocked(ctx)

	slog.Info("review session confirmed",
		"session_id", info.SessionID,
		"corrections", len(corrections),
	)
	return final, nil
}

// Cancel discards the active session without persisting anything. The
// in-flight medical-term call (if any) is cancelled.
func (m *Manager) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return fmt.Errorf("app: no active session to cancel")
	}
	id := m.info.SessionID
	m.teardownLocked(ctx)

	slog.Info("review session cancelled", "session_id", id)
	return nil
}

// Restart discards the active session and starts a fresh one over the same
// transcript, re-running the confidence pass and medical-term detection.
func (m *Manager) Restart(ctx context.Context) (SessionInfo, error) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return SessionInfo{}, fmt.Errorf("app: no active session to restart")
	}
	tr := m.tr
	m.teardownLocked(ctx)
	m.mu.Unlock()

	return m.Start(ctx, tr)
}

// teardownLocked closes the session and clears state. Caller holds m.mu.
func (m *Manager) teardownLocked(ctx context.Context) {
	m.session.Close()
	if m.metrics.ActiveSessions != nil {
		m.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	}
	m.active = false
	m.session = nil
	m.tr = nil
	m.info = SessionInfo{}
}
