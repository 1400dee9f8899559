// Package review implements the confidence-driven transcript validation
// engine: flagging low-confidence and medically significant words, driving
// the per-word review state machine, and gating workflow completion on every
// medical term having been reviewed.
//
// A [Session] is the single source of truth for one transcript's review. All
// state transitions — reviewer actions and the asynchronously arriving
// medical-term overlay alike — are applied as pure reducers over the
// flagged-word map under one mutex, so a late overlay result can never
// overwrite a more recent reviewer decision.
//
// The medical-term classifier is an external collaborator ([medterm.Classifier]).
// Its failure degrades the session to "no medical terms detected" rather than
// blocking the review; this fail-open posture mirrors the upstream product
// behaviour and is logged, never surfaced as a hard error.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/veriscribe-io/veriscribe/internal/medterm"
	"github.com/veriscribe-io/veriscribe/internal/observe"
	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

var (
	// ErrMedicalPending is returned by [Session.AcceptAllPending] while any
	// medical term is still unreviewed. Bulk acceptance must never silently
	// bypass a mandatory medical review.
	ErrMedicalPending = errors.New("medical terms still pending review")

	// ErrReviewIncomplete is returned by [Session.Confirm] while the gate is
	// closed.
	ErrReviewIncomplete = errors.New("review incomplete")

	// ErrSessionClosed is returned by operations on a torn-down session.
	ErrSessionClosed = errors.New("session closed")
)

// CompleteFunc receives the final corrected transcript and the correction log
// once gating passes and the reviewer explicitly confirms.
type CompleteFunc func(finalTranscript string, corrections []Correction)

// SessionConfig carries the dependencies for a [Session].
type SessionConfig struct {
	// Transcript is the read-only diarized input. Must not be nil.
	Transcript *transcript.Transcript

	// Thresholds are the confidence cut-offs. Must satisfy
	// [Thresholds.Validate].
	Thresholds Thresholds

	// Classifier is the external medical-term classifier. May be nil, in
	// which case the session runs in degraded mode with no mandatory terms.
	Classifier medterm.Classifier

	// OnComplete is invoked by [Session.Confirm] when gating passes.
	// May be nil.
	OnComplete CompleteFunc
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithMetrics attaches a metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides the time source used for correction timestamps.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session drives the review of a single transcript. All exported methods are
// safe for concurrent use.
type Session struct {
	ix         *Index
	tr         *transcript.Transcript
	th         Thresholds
	classifier medterm.Classifier
	onComplete CompleteFunc
	metrics    *observe.Metrics
	now        func() time.Time

	mu            sync.Mutex
	flagged       flaggedSet
	loading       bool
	started       bool
	closed        bool
	cancelOverlay context.CancelFunc
}

// NewSession builds the flat word index, runs the initial confidence pass,
// and returns a session ready for [Session.Start]. The medical overlay is not
// dispatched until Start is called, so tests can exercise the pre-overlay
// state deterministically.
func NewSession(cfg SessionConfig, opts ...Option) (*Session, error) {
	if cfg.Transcript == nil {
		return nil, fmt.Errorf("review: transcript must not be nil")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}

	ix := Flatten(cfg.Transcript)
	s := &Session{
		ix:         ix,
		tr:         cfg.Transcript,
		th:         cfg.Thresholds,
		classifier: cfg.Classifier,
		onComplete: cfg.OnComplete,
		now:        time.Now,
		flagged:    buildFlagged(ix, cfg.Thresholds),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Start dispatches the asynchronous medical-term classification pass. It
// returns immediately; findings are merged into the flagged set when the
// classifier responds. While the call is in flight, MedicalTermsLoading
// reports true and the proceed gate stays closed.
//
// Start is a no-op when no classifier is configured (degraded mode), when
// already started, or after Close.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.classifier == nil || s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.loading = true
	ctx, s.cancelOverlay = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.runOverlay(ctx)
}

// runOverlay performs the classifier call and merges its findings through the
// serialized state path. A cancelled context (session teardown) discards the
// result entirely; a classifier error degrades to fail-open.
func (s *Session) runOverlay(ctx context.Context) {
	start := time.Now()
	findings, err := s.classifier.Classify(ctx, s.tr)
	elapsed := time.Since(start).Seconds()

	if ctx.Err() != nil {
		// Torn down while in flight; the result must not touch session state.
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.loading = false

	if err != nil {
		// Fail-open: the review stays usable with no mandatory terms.
		slog.Error("medical term classification failed; continuing without medical flags", "err", err)
		if s.metrics.ClassifierErrors != nil {
			s.metrics.ClassifierErrors.Add(ctx, 1)
		}
		return
	}

	s.flagged = mergeOverlay(s.flagged, s.ix, findings)
	if s.metrics.OverlayDuration != nil {
		s.metrics.OverlayDuration.Record(ctx, elapsed)
	}
	if s.metrics.MedicalTermsFound != nil {
		s.metrics.MedicalTermsFound.Add(ctx, int64(len(findings)))
	}
	slog.Info("medical term overlay merged",
		"findings", len(findings),
		"flagged", len(s.flagged),
		"elapsed_s", elapsed,
	)
}

// AcceptWord reviews the word addressed by id. When correctedText (after
// trimming) is non-empty and differs from the original word, the word
// transitions to corrected with that replacement; otherwise it transitions to
// accepted with no text change. Re-invoking on an already-reviewed word
// overwrites the previous decision (last-write-wins).
//
// An id that is not in the flagged set is a no-op; the return value reports
// whether the action applied.
func (s *Session) AcceptWord(id WordID, correctedText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fw, ok := s.flagged[id]
	if !ok {
		return false
	}

	trimmed := strings.TrimSpace(correctedText)
	action := "accept"
	if trimmed != "" && trimmed != fw.Word {
		fw.State = StateCorrected
		fw.CorrectedWord = trimmed
		action = "correct"
	} else {
		fw.State = StateAccepted
		fw.CorrectedWord = ""
	}
	fw.ReviewedAt = s.now()

	next := s.flagged.clone()
	next[id] = fw
	s.flagged = next

	s.metrics.RecordAction(context.Background(), action)
	return true
}

// SkipWord marks the word as explicitly skipped. A skip is a deliberate human
// decision and counts as reviewed for gating. Unknown ids are a no-op.
func (s *Session) SkipWord(id WordID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fw, ok := s.flagged[id]
	if !ok {
		return false
	}

	fw.State = StateSkipped
	fw.CorrectedWord = ""
	fw.ReviewedAt = s.now()

	next := s.flagged.clone()
	next[id] = fw
	s.flagged = next

	s.metrics.RecordAction(context.Background(), "skip")
	return true
}

// AcceptAllPending bulk-accepts every remaining pending word with no text
// change. The operation re-validates before applying: while any medical term
// is pending — or the overlay is still in flight, which could yet add more —
// it returns an error and changes nothing.
func (s *Session) AcceptAllPending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.loading {
		return fmt.Errorf("%w: medical term detection still in progress", ErrMedicalPending)
	}
	for _, fw := range s.flagged {
		if fw.IsMedical && !fw.Reviewed() {
			return ErrMedicalPending
		}
	}

	next := s.flagged.clone()
	at := s.now()
	for id, fw := range next {
		if fw.Reviewed() {
			continue
		}
		fw.State = StateAccepted
		fw.ReviewedAt = at
		next[id] = fw
	}
	s.flagged = next

	s.metrics.RecordAction(context.Background(), "accept_all")
	return nil
}

// NextWord returns the next medical term after cur in transcript order,
// wrapping to the first when cur is the last (or unknown). Non-medical
// flagged words never appear here — they are browsable only by direct
// selection. The second return value is false when no medical terms exist.
func (s *Session) NextWord(cur WordID) (FlaggedWord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	med := s.flagged.medicalOrdered(s.ix)
	if len(med) == 0 {
		return FlaggedWord{}, false
	}
	pos := s.ix.Position(cur)
	for _, fw := range med {
		if s.ix.Position(fw.ID) > pos {
			return fw, true
		}
	}
	return med[0], true
}

// PrevWord returns the closest medical term before cur in transcript order,
// wrapping to the last when cur is the first (or unknown).
func (s *Session) PrevWord(cur WordID) (FlaggedWord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	med := s.flagged.medicalOrdered(s.ix)
	if len(med) == 0 {
		return FlaggedWord{}, false
	}
	pos := s.ix.Position(cur)
	if pos < 0 {
		return med[len(med)-1], true
	}
	for i := len(med) - 1; i >= 0; i-- {
		if s.ix.Position(med[i].ID) < pos {
			return med[i], true
		}
	}
	return med[len(med)-1], true
}

// Word returns the flagged entry for id, if present.
func (s *Session) Word(id WordID) (FlaggedWord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fw, ok := s.flagged[id]
	return fw, ok
}

// Flagged returns a snapshot of the flagged-word set in transcript order.
func (s *Session) Flagged() []FlaggedWord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flagged.ordered(s.ix)
}

// MedicalWords returns a snapshot of the medical subset in transcript order.
func (s *Session) MedicalWords() []FlaggedWord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flagged.medicalOrdered(s.ix)
}

// Progress recomputes the review progress aggregate.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeProgress(s.flagged)
}

// Validation recomputes the proceed gate. CanProceed is true only when no
// medical term is pending and the overlay pass has finished.
func (s *Session) Validation() ValidationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeValidation(s.flagged, s.loading)
}

// MedicalTermsLoading reports whether the overlay pass is still in flight.
func (s *Session) MedicalTermsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Thresholds returns the session's confidence cut-offs.
func (s *Session) Thresholds() Thresholds { return s.th }

// FinalTranscript re-renders the transcript with all confirmed corrections
// substituted, preserving segment boundaries and speaker labels.
func (s *Session) FinalTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return assembleFinal(s.tr, s.flagged)
}

// Corrections returns the audit trail: exactly the words whose confirmed text
// differs from the original, in transcript order.
func (s *Session) Corrections() []Correction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collectCorrections(s.flagged, s.ix)
}

// Confirm finalises the review. It re-checks the gate and, when it passes,
// invokes the OnComplete callback with the final transcript and correction
// log. While the gate is closed it returns [ErrReviewIncomplete] wrapped with
// the live blocking count.
func (s *Session) Confirm() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	v := computeValidation(s.flagged, s.loading)
	if !v.CanProceed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrReviewIncomplete, v.Message)
	}
	final := assembleFinal(s.tr, s.flagged)
	corrections := collectCorrections(s.flagged, s.ix)
	cb := s.onComplete
	s.mu.Unlock()

	if s.metrics.SessionsCompleted != nil {
		s.metrics.SessionsCompleted.Add(context.Background(), 1,
			metric.WithAttributes(attribute.Int("corrections", len(corrections))))
	}
	if cb != nil {
		cb(final, corrections)
	}
	return nil
}

// Close tears the session down: the in-flight overlay call (if any) is
// cancelled and its late result discarded, and all further mutating
// operations become no-ops. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancelOverlay
	s.closed = true
	s.cancelOverlay = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
