// Package medterm defines the boundary to the external medical-term
// classifier: the asynchronous second pass that decides which transcript
// words are clinically significant and therefore subject to mandatory review.
//
// The classifier is a collaborator, not part of the validation core. It may
// be slow and it may fail; the engine merges whatever findings arrive and
// degrades to "no medical terms detected" on failure. Implementations live in
// the llmclass (LLM-backed) and mock sub-packages.
package medterm

import (
	"context"

	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

// Category is the clinical category assigned to a medical term.
type Category string

const (
	CategoryMedication Category = "medication"
	CategoryDiagnosis  Category = "diagnosis"
	CategoryProcedure  Category = "procedure"
	CategoryAnatomy    Category = "anatomy"
	CategoryDosage     Category = "dosage"
	CategoryOther      Category = "other"
)

// IsValid reports whether c is a recognised category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMedication, CategoryDiagnosis, CategoryProcedure,
		CategoryAnatomy, CategoryDosage, CategoryOther:
		return true
	}
	return false
}

// Finding locates one clinically significant word in the transcript.
// Segment and Word are indices into the transcript's nested structure —
// the same addressing scheme the review engine uses for its word IDs.
type Finding struct {
	Segment  int      `json:"segment"`
	Word     int      `json:"word"`
	Term     string   `json:"term"`
	Category Category `json:"category"`
}

// Classifier identifies medical terminology in a diarized transcript.
//
// Classify is a single blocking call; the engine invokes it from a dedicated
// goroutine and applies the findings through its serialized state path, so
// implementations need no awareness of the review state machine. A failed or
// cancelled call must return a non-nil error rather than partial results.
//
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, t *transcript.Transcript) ([]Finding, error)
}
