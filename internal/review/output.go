package review

import (
	"strings"
	"time"

	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

// Correction is one entry of the append-only audit trail handed to the
// downstream report pipeline: a reviewer-confirmed change from the recognised
// text to a replacement.
type Correction struct {
	ID        WordID    `json:"wordId"`
	Original  string    `json:"originalWord"`
	Corrected string    `json:"correctedWord"`
	Timestamp time.Time `json:"timestamp"`
}

// assembleFinal re-renders the transcript with every corrected word's
// replacement substituted for its original text. Segment boundaries and
// speaker labels are preserved; unreviewed and unflagged words pass through
// unchanged. Segments without word detail fall back to their plain text.
func assembleFinal(t *transcript.Transcript, s flaggedSet) string {
	var sb strings.Builder
	for si, seg := range t.Segments {
		if si > 0 {
			sb.WriteByte('\n')
		}
		if seg.Speaker != "" {
			sb.WriteString(seg.Speaker)
			sb.WriteString(": ")
		}
		if len(seg.Words) == 0 {
			sb.WriteString(seg.Text)
			continue
		}
		for wi, w := range seg.Words {
			if wi > 0 {
				sb.WriteByte(' ')
			}
			text := w.Text
			if fw, ok := s[WordID{Segment: si, Word: wi}]; ok && fw.Changed() {
				text = fw.CorrectedWord
			}
			sb.WriteString(text)
		}
	}
	return sb.String()
}

// collectCorrections extracts the correction log: exactly the words whose
// corrected text is set and differs from the original. Accepted-without-change
// and skipped words contribute nothing. Entries come back in transcript order.
func collectCorrections(s flaggedSet, ix *Index) []Correction {
	out := []Correction{}
	for _, fw := range s.ordered(ix) {
		if !fw.Changed() {
			continue
		}
		out = append(out, Correction{
			ID:        fw.ID,
			Original:  fw.Word,
			Corrected: fw.CorrectedWord,
			Timestamp: fw.ReviewedAt,
		})
	}
	return out
}
