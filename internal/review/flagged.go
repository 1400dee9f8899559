package review

import (
	"sort"
	"time"

	"github.com/veriscribe-io/veriscribe/internal/medterm"
)

// ReviewState is the per-word review lifecycle state.
// PENDING transitions to exactly one of the three terminal states; all three
// count as reviewed for gating purposes.
type ReviewState string

const (
	StatePending   ReviewState = "pending"
	StateAccepted  ReviewState = "accepted"
	StateCorrected ReviewState = "corrected"
	StateSkipped   ReviewState = "skipped"
)

// FlaggedWord is one reviewable entry of the flagged-word set: a word surfaced
// either because its recognition confidence fell below the warning threshold
// or because the medical-term overlay marked it clinically significant.
//
// FlaggedWord values are immutable snapshots — the session's reducers replace
// entries wholesale rather than mutating them, so a snapshot handed to a
// caller never changes underneath it.
type FlaggedWord struct {
	ID          WordID           `json:"id"`
	Word        string           `json:"word"`
	Probability float64          `json:"probability"`
	Speaker     string           `json:"speaker"`
	Timestamp   float64          `json:"timestamp"`
	IsMedical   bool             `json:"isMedicalTerm"`
	Category    medterm.Category `json:"medicalCategory,omitempty"`
	State       ReviewState      `json:"state"`

	// CorrectedWord is the reviewer-confirmed replacement text. Only set in
	// the corrected state.
	CorrectedWord string `json:"correctedWord,omitempty"`

	// ReviewedAt records when the word entered a terminal state.
	ReviewedAt time.Time `json:"reviewedAt,omitzero"`
}

// Reviewed reports whether the word has left the pending state.
func (fw FlaggedWord) Reviewed() bool { return fw.State != StatePending }

// Changed reports whether the reviewer replaced the word's text with something
// different from the original (whitespace-insensitive).
func (fw FlaggedWord) Changed() bool {
	return fw.State == StateCorrected && fw.CorrectedWord != fw.Word
}

// Level returns the highlight level for the word under the given thresholds.
func (fw FlaggedWord) Level(t Thresholds) Level {
	return Classify(fw.Probability, t, fw.State == StateCorrected)
}

// flaggedSet is the mutable review state of a session, keyed by [WordID].
// All reducers over it are pure: they return a fresh map and never mutate the
// previous one, so an overlay merge can never overwrite a concurrent review
// action with stale state.
type flaggedSet map[WordID]FlaggedWord

// buildFlagged performs the initial classifier pass: every word whose
// probability is below the warning threshold becomes a pending entry.
// Medical significance arrives later via the overlay merge.
func buildFlagged(ix *Index, t Thresholds) flaggedSet {
	set := make(flaggedSet)
	for _, fw := range ix.Words() {
		if fw.Probability >= t.Warning {
			continue
		}
		set[fw.ID] = FlaggedWord{
			ID:          fw.ID,
			Word:        fw.Text,
			Probability: fw.Probability,
			Speaker:     fw.Speaker,
			Timestamp:   fw.Timestamp,
			State:       StatePending,
		}
	}
	return set
}

// clone returns a shallow copy of the set. Entry values are copied by value,
// which is sufficient because [FlaggedWord] holds no reference types.
func (s flaggedSet) clone() flaggedSet {
	out := make(flaggedSet, len(s))
	for id, fw := range s {
		out[id] = fw
	}
	return out
}

// ordered returns the entries sorted into transcript order using ix.
func (s flaggedSet) ordered(ix *Index) []FlaggedWord {
	out := make([]FlaggedWord, 0, len(s))
	for _, fw := range s {
		out = append(out, fw)
	}
	sort.Slice(out, func(i, j int) bool {
		return ix.Position(out[i].ID) < ix.Position(out[j].ID)
	})
	return out
}

// medicalOrdered returns only the medical entries, in transcript order.
// This is the navigation domain for next/prev — non-medical low-confidence
// words are browsable by direct selection only.
func (s flaggedSet) medicalOrdered(ix *Index) []FlaggedWord {
	all := s.ordered(ix)
	out := all[:0:0]
	for _, fw := range all {
		if fw.IsMedical {
			out = append(out, fw)
		}
	}
	return out
}
