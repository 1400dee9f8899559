package review

import (
	"fmt"

	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

// WordID is the stable address of a single transcript word: the segment index
// paired with the word index within that segment. It is the join key between
// the read-only transcript and all mutable review data, and remains valid for
// the lifetime of a validation session.
type WordID struct {
	Segment int `json:"segment"`
	Word    int `json:"word"`
}

// String renders the ID as "segment:word" (e.g., "3:12"). Used in log lines
// and the audit trail.
func (id WordID) String() string {
	return fmt.Sprintf("%d:%d", id.Segment, id.Word)
}

// FlatWord is one entry of the flattened transcript: a word together with the
// segment context needed to review it without walking the nested structure.
type FlatWord struct {
	ID          WordID
	Text        string
	Probability float64
	Speaker     string
	Timestamp   float64
}

// Index is the flat, ordered view over a transcript's word detail.
// It is built once per session by [Flatten] and never mutated afterwards, so
// it may be read concurrently without locking.
type Index struct {
	words []FlatWord
	pos   map[WordID]int
}

// Flatten converts a nested segment→word transcript into an [Index].
// Segments without word detail contribute nothing; they are still rendered by
// the output assembler via their plain text.
func Flatten(t *transcript.Transcript) *Index {
	ix := &Index{pos: make(map[WordID]int)}
	for si, seg := range t.Segments {
		for wi, w := range seg.Words {
			id := WordID{Segment: si, Word: wi}
			ix.pos[id] = len(ix.words)
			ix.words = append(ix.words, FlatWord{
				ID:          id,
				Text:        w.Text,
				Probability: w.Probability,
				Speaker:     seg.Speaker,
				Timestamp:   w.Timestamp,
			})
		}
	}
	return ix
}

// Lookup returns the flat word addressed by id. The second return value is
// false when id does not resolve to a transcript word.
func (ix *Index) Lookup(id WordID) (FlatWord, bool) {
	i, ok := ix.pos[id]
	if !ok {
		return FlatWord{}, false
	}
	return ix.words[i], true
}

// Position returns the transcript-order position of id, or -1 when unknown.
// Positions are dense: 0 .. Len()-1.
func (ix *Index) Position(id WordID) int {
	i, ok := ix.pos[id]
	if !ok {
		return -1
	}
	return i
}

// Words returns the flattened word list in transcript order. Callers must not
// modify the returned slice.
func (ix *Index) Words() []FlatWord { return ix.words }

// Len returns the number of words carrying word-level detail.
func (ix *Index) Len() int { return len(ix.words) }
