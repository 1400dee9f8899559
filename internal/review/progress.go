package review

import "fmt"

// Progress summarises how far the review has come. It is recomputed from the
// flagged-word set on every call, never stored.
type Progress struct {
	// MedicalTotal is the number of flagged words currently known to be
	// medical terms. It can only grow while the overlay is in flight.
	MedicalTotal int `json:"medicalTotal"`

	// MedicalReviewed is the subset of MedicalTotal already reviewed.
	MedicalReviewed int `json:"medicalReviewed"`

	// Percentage is reviewed flagged words over all flagged words × 100.
	// 100 when no words are flagged at all.
	Percentage float64 `json:"percentage"`
}

// ValidationState is the gate for proceeding to report generation.
type ValidationState struct {
	// CanProceed is true only when no medical term awaits review AND the
	// overlay pass has finished. An incomplete medical total must never
	// produce a premature pass.
	CanProceed bool `json:"canProceed"`

	// UnreviewedMedicalCount is the number of medical terms still pending.
	UnreviewedMedicalCount int `json:"unreviewedMedicalCount"`

	// Message is a human-readable summary for the status line. Regenerated on
	// every computation since it embeds the live count.
	Message string `json:"message"`
}

// computeProgress derives [Progress] from the flagged set.
func computeProgress(s flaggedSet) Progress {
	p := Progress{}
	total, reviewed := 0, 0
	for _, fw := range s {
		total++
		if fw.Reviewed() {
			reviewed++
		}
		if fw.IsMedical {
			p.MedicalTotal++
			if fw.Reviewed() {
				p.MedicalReviewed++
			}
		}
	}
	if total == 0 {
		p.Percentage = 100
	} else {
		p.Percentage = float64(reviewed) / float64(total) * 100
	}
	return p
}

// computeValidation derives the proceed gate from the flagged set and the
// overlay loading flag.
func computeValidation(s flaggedSet, loading bool) ValidationState {
	unreviewed := 0
	for _, fw := range s {
		if fw.IsMedical && !fw.Reviewed() {
			unreviewed++
		}
	}

	v := ValidationState{
		CanProceed:             unreviewed == 0 && !loading,
		UnreviewedMedicalCount: unreviewed,
	}
	switch {
	case loading && unreviewed == 0:
		v.Message = "Identifying medical terms…"
	case unreviewed == 1:
		v.Message = "1 medical term awaiting review"
	case unreviewed > 1:
		v.Message = fmt.Sprintf("%d medical terms awaiting review", unreviewed)
	default:
		v.Message = "All medical terms reviewed"
	}
	return v
}
