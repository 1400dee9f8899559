package review

import (
	"errors"
	"fmt"
)

// Level is the highlight level the UI applies to a word.
type Level string

const (
	// LevelNone marks a word whose confidence is at or above the warning
	// threshold and that has not been corrected.
	LevelNone Level = "none"

	// LevelWarning marks a word below the warning threshold but at or above
	// the critical threshold.
	LevelWarning Level = "warning"

	// LevelCritical marks a word below the critical threshold.
	LevelCritical Level = "critical"

	// LevelCorrected marks a word whose text was replaced by the reviewer.
	// It takes priority over the confidence-derived levels.
	LevelCorrected Level = "corrected"
)

// Thresholds holds the two confidence cut-offs that drive highlighting and
// flagging. It is configuration, not a computed value.
type Thresholds struct {
	// Critical is the cut-off below which a word is highlighted as critical.
	Critical float64 `yaml:"critical"`

	// Warning is the cut-off below which a word is flagged for review.
	// Must be strictly greater than Critical.
	Warning float64 `yaml:"warning"`
}

// ErrInvalidThresholds is returned by [Thresholds.Validate] when the cut-offs
// are out of range or out of order.
var ErrInvalidThresholds = errors.New("invalid confidence thresholds")

// Validate checks that both cut-offs lie in [0, 1] and critical < warning.
func (t Thresholds) Validate() error {
	if t.Critical < 0 || t.Critical > 1 || t.Warning < 0 || t.Warning > 1 {
		return fmt.Errorf("%w: values %.2f/%.2f outside [0, 1]", ErrInvalidThresholds, t.Critical, t.Warning)
	}
	if t.Critical >= t.Warning {
		return fmt.Errorf("%w: critical %.2f must be below warning %.2f", ErrInvalidThresholds, t.Critical, t.Warning)
	}
	return nil
}

// Classify maps a recognition probability to a highlight [Level].
//
// Priority order: a corrected word is always [LevelCorrected]; otherwise the
// probability is compared against the critical, then the warning cut-off.
// Classify is total and deterministic — callers must re-evaluate it on every
// state change rather than caching results by word, since corrected can flip.
func Classify(probability float64, t Thresholds, corrected bool) Level {
	switch {
	case corrected:
		return LevelCorrected
	case probability < t.Critical:
		return LevelCritical
	case probability < t.Warning:
		return LevelWarning
	default:
		return LevelNone
	}
}
