package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/veriscribe-io/veriscribe/internal/medterm"
	medtermmock "github.com/veriscribe-io/veriscribe/internal/medterm/mock"
	"github.com/veriscribe-io/veriscribe/internal/resilience"
	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

func testTranscript() *transcript.Transcript {
	return &transcript.Transcript{Segments: []transcript.Segment{
		{Speaker: "Doctor", Words: []transcript.Word{
			{Text: "metformin", Probability: 0.6, Timestamp: 0.1},
		}},
	}}
}

func TestClassifierFallback_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &medtermmock.Classifier{Findings: []medterm.Finding{
		{Segment: 0, Word: 0, Term: "metformin", Category: medterm.CategoryMedication},
	}}
	backup := &medtermmock.Classifier{}

	cf := resilience.NewClassifierFallback(primary, "primary", resilience.FallbackConfig{})
	cf.AddFallback("backup", backup)

	findings, err := cf.Classify(context.Background(), testTranscript())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(findings) != 1 || findings[0].Term != "metformin" {
		t.Errorf("findings = %+v", findings)
	}
	if backup.Calls != 0 {
		t.Errorf("backup called %d times, want 0", backup.Calls)
	}
}

func TestClassifierFallback_FailsOverToBackup(t *testing.T) {
	t.Parallel()

	primary := &medtermmock.Classifier{Err: errors.New("rate limited")}
	backup := &medtermmock.Classifier{Findings: []medterm.Finding{
		{Segment: 0, Word: 0, Term: "metformin", Category: medterm.CategoryMedication},
	}}

	cf := resilience.NewClassifierFallback(primary, "primary", resilience.FallbackConfig{})
	cf.AddFallback("backup", backup)

	findings, err := cf.Classify(context.Background(), testTranscript())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %+v", findings)
	}
	if primary.Calls != 1 || backup.Calls != 1 {
		t.Errorf("calls: primary=%d backup=%d, want 1 each", primary.Calls, backup.Calls)
	}
}

func TestClassifierFallback_AllBackendsFail(t *testing.T) {
	t.Parallel()

	primary := &medtermmock.Classifier{Err: errors.New("down")}
	backup := &medtermmock.Classifier{Err: errors.New("also down")}

	cf := resilience.NewClassifierFallback(primary, "primary", resilience.FallbackConfig{})
	cf.AddFallback("backup", backup)

	if _, err := cf.Classify(context.Background(), testTranscript()); !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
