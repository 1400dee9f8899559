// Package lexicon ranks replacement candidates for a misrecognised word
// against a medical term lexicon, using Double Metaphone phonetic encoding
// combined with Jaro-Winkler string similarity.
//
// When the reviewer opens a flagged word for correction, the UI asks the
// lexicon for suggestions instead of making them type the canonical term from
// scratch. The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input word and every lexicon term. Terms sharing at least one code
//     with the input become phonetic candidates.
//
//  2. Jaro-Winkler ranking: candidates are ordered by string similarity
//     (case-insensitive) and cut off at a configurable threshold. When no
//     phonetic candidate clears the bar, a secondary pass tests pure string
//     similarity against the whole lexicon with a stricter threshold.
//
// The lexicon is read-only after construction, so a [Lexicon] is safe for
// concurrent use.
package lexicon

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
	defaultMaxSuggestions    = 5
)

// Suggestion is one ranked replacement candidate.
type Suggestion struct {
	// Term is the canonical lexicon spelling.
	Term string `json:"term"`

	// Score is the Jaro-Winkler similarity to the input in [0, 1].
	Score float64 `json:"score"`
}

// Option is a functional option for configuring a [Lexicon].
type Option func(*Lexicon)

// WithPhoneticThreshold sets the minimum similarity for phonetically matched
// candidates. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(l *Lexicon) {
		l.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum similarity for the fallback pass used
// when no phonetic candidate clears the bar. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(l *Lexicon) {
		l.fuzzyThreshold = threshold
	}
}

// WithMaxSuggestions caps how many candidates [Lexicon.Suggest] returns.
// Default: 5.
func WithMaxSuggestions(n int) Option {
	return func(l *Lexicon) {
		l.maxSuggestions = n
	}
}

// entry is one precomputed lexicon term.
type entry struct {
	term  string
	lower string
	codes map[string]struct{}
}

// Lexicon holds the precomputed phonetic index over the medical term list.
type Lexicon struct {
	entries           []entry
	phoneticThreshold float64
	fuzzyThreshold    float64
	maxSuggestions    int
}

// New builds a [Lexicon] over terms. Duplicate and blank terms are dropped;
// phonetic codes are computed once here so Suggest stays cheap.
func New(terms []string, opts ...Option) *Lexicon {
	l := &Lexicon{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		maxSuggestions:    defaultMaxSuggestions,
	}
	for _, o := range opts {
		o(l)
	}

	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		trimmed := strings.TrimSpace(t)
		lower := strings.ToLower(trimmed)
		if lower == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		l.entries = append(l.entries, entry{
			term:  trimmed,
			lower: lower,
			codes: phoneticCodes(lower),
		})
	}
	return l
}

// Len returns the number of distinct lexicon terms.
func (l *Lexicon) Len() int { return len(l.entries) }

// Suggest returns ranked replacement candidates for word, best first.
// An empty result means the lexicon holds nothing plausibly similar — the
// reviewer types the correction manually.
func (l *Lexicon) Suggest(word string) []Suggestion {
	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" || len(l.entries) == 0 {
		return nil
	}

	inputCodes := phoneticCodes(lower)

	var phonetic, fuzzy []Suggestion
	for _, e := range l.entries {
		score := matchr.JaroWinkler(lower, e.lower, false)
		if codesOverlap(inputCodes, e.codes) {
			if score >= l.phoneticThreshold {
				phonetic = append(phonetic, Suggestion{Term: e.term, Score: score})
			}
		} else if score >= l.fuzzyThreshold {
			fuzzy = append(fuzzy, Suggestion{Term: e.term, Score: score})
		}
	}

	out := phonetic
	if len(out) == 0 {
		out = fuzzy
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > l.maxSuggestions {
		out = out[:l.maxSuggestions]
	}
	return out
}

// phoneticCodes returns the Double Metaphone code set for word. Empty codes
// (word too short, no consonants) are excluded.
func phoneticCodes(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
