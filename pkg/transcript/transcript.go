// Package transcript defines the read-only diarized transcript model that the
// validation engine consumes.
//
// A [Transcript] is the output of an external speech-to-text/diarization
// provider: an ordered list of speaker-labelled [Segment] values, each holding
// word-level recognition detail. The engine never mutates a transcript in
// place — all review state lives in derived structures keyed by word position.
package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Word is a single recognised word with its recognition confidence and the
// playback offset at which it was spoken.
type Word struct {
	// Text is the recognised word as produced by the STT provider.
	Text string `json:"text"`

	// Probability is the provider's recognition confidence in [0.0, 1.0].
	Probability float64 `json:"probability"`

	// Timestamp is the offset in seconds from the start of the source audio.
	Timestamp float64 `json:"timestamp"`
}

// Segment is a contiguous run of words attributed to a single speaker.
// A segment may carry no word-level detail at all (some providers only emit
// text for short utterances); such segments are rendered as plain text and
// contribute nothing to the review workload.
type Segment struct {
	// Speaker is the diarization label (e.g., "Doctor", "Patient", "SPK_0").
	Speaker string `json:"speaker"`

	// Text is the full segment text. Used as a fallback rendering when Words
	// is empty.
	Text string `json:"text"`

	// Words holds per-word detail. May be empty.
	Words []Word `json:"words"`
}

// Transcript is an ordered sequence of diarized segments.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

// Decode reads a JSON-encoded transcript from r and normalises it.
// Malformed numeric data is repaired rather than rejected: probabilities are
// clamped into [0, 1] and negative timestamps are set to zero, so a sloppy
// provider never poisons the review session.
func Decode(r io.Reader) (*Transcript, error) {
	var t Transcript
	dec := json.NewDecoder(r)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("transcript: decode: %w", err)
	}
	t.Normalize()
	return &t, nil
}

// Normalize repairs out-of-range values in place: probabilities are clamped
// into [0, 1] and negative timestamps become 0. Nil word slices are left nil;
// callers must treat a segment without words as plain text.
func (t *Transcript) Normalize() {
	for si := range t.Segments {
		for wi := range t.Segments[si].Words {
			w := &t.Segments[si].Words[wi]
			if w.Probability < 0 {
				w.Probability = 0
			} else if w.Probability > 1 {
				w.Probability = 1
			}
			if w.Timestamp < 0 {
				w.Timestamp = 0
			}
		}
	}
}

// WordCount returns the total number of words carrying word-level detail.
func (t *Transcript) WordCount() int {
	n := 0
	for _, s := range t.Segments {
		n += len(s.Words)
	}
	return n
}

// Duration returns the timestamp of the last word in seconds, or 0 when the
// transcript carries no word-level detail. It is a lower bound on the audio
// length, sufficient for positioning markers along a waveform.
func (t *Transcript) Duration() float64 {
	var max float64
	for _, s := range t.Segments {
		for _, w := range s.Words {
			if w.Timestamp > max {
				max = w.Timestamp
			}
		}
	}
	return max
}

// Text renders the full transcript as speaker-prefixed lines, one segment per
// line. Segments without word detail fall back to their Text field.
func (t *Transcript) Text() string {
	var sb strings.Builder
	for i, s := range t.Segments {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if s.Speaker != "" {
			sb.WriteString(s.Speaker)
			sb.WriteString(": ")
		}
		sb.WriteString(s.JoinWords())
	}
	return sb.String()
}

// JoinWords returns the segment text reconstructed from word detail, or the
// plain Text field when no word detail is present.
func (s *Segment) JoinWords() string {
	if len(s.Words) == 0 {
		return s.Text
	}
	parts := make([]string, len(s.Words))
	for i, w := range s.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
