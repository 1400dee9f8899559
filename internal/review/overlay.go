package review

import (
	"log/slog"

	"github.com/veriscribe-io/veriscribe/internal/medterm"
)

// mergeOverlay folds asynchronously arrived medical-term findings into the
// flagged-word set. It is a pure reducer over the previous map: the input set
// is never mutated and the result is a fresh map, so applying it on the
// session's serialized state path can never clobber a concurrent review
// action.
//
// The merge is idempotent and strictly additive:
//
//   - A finding for an already-flagged word only sets IsMedical and Category.
//     Review state, corrected text, and timestamps are untouched — a word the
//     reviewer already handled is retroactively counted in the medical total
//     but is not forced back to pending.
//   - A finding for a word that was not flagged (confidence above the warning
//     threshold) adds a new pending entry, because medical significance alone
//     mandates review.
//   - Nothing is ever removed from the set.
//
// Findings that do not resolve to a transcript word are dropped with a log
// line; a sloppy classifier must not corrupt the session.
func mergeOverlay(prev flaggedSet, ix *Index, findings []medterm.Finding) flaggedSet {
	next := prev.clone()
	for _, f := range findings {
		id := WordID{Segment: f.Segment, Word: f.Word}
		fw, ok := ix.Lookup(id)
		if !ok {
			slog.Warn("overlay: dropping finding with unknown word locator",
				"id", id, "term", f.Term)
			continue
		}

		category := f.Category
		if category != "" && !category.IsValid() {
			category = medterm.CategoryOther
		}

		if existing, flagged := next[id]; flagged {
			existing.IsMedical = true
			if category != "" {
				existing.Category = category
			}
			next[id] = existing
			continue
		}

		next[id] = FlaggedWord{
			ID:          id,
			Word:        fw.Text,
			Probability: fw.Probability,
			Speaker:     fw.Speaker,
			Timestamp:   fw.Timestamp,
			IsMedical:   true,
			Category:    category,
			State:       StatePending,
		}
	}
	return next
}
