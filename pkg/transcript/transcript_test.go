package transcript_test

import (
	"strings"
	"testing"

	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

const sampleJSON = `{
	"segments": [
		{
			"speaker": "Doctor",
			"text": "take ibuprofen daily",
			"words": [
				{"text": "take", "probability": 0.95, "timestamp": 0.0},
				{"text": "ibuprofen", "probability": 0.40, "timestamp": 0.5},
				{"text": "daily", "probability": 0.99, "timestamp": 1.0}
			]
		},
		{"speaker": "Patient", "text": "okay"}
	]
}`

func TestDecode(t *testing.T) {
	t.Parallel()

	tr, err := transcript.Decode(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(tr.Segments))
	}
	if tr.WordCount() != 3 {
		t.Errorf("WordCount = %d, want 3", tr.WordCount())
	}
	if tr.Duration() != 1.0 {
		t.Errorf("Duration = %.1f, want 1.0", tr.Duration())
	}
	if w := tr.Segments[0].Words[1]; w.Text != "ibuprofen" || w.Probability != 0.40 {
		t.Errorf("word = %+v", w)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	t.Parallel()

	if _, err := transcript.Decode(strings.NewReader("{nope")); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestDecode_RepairsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	in := `{"segments": [{"speaker": "S", "words": [
		{"text": "a", "probability": -0.5, "timestamp": -2.0},
		{"text": "b", "probability": 1.7, "timestamp": 3.0}
	]}]}`

	tr, err := transcript.Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	a, b := tr.Segments[0].Words[0], tr.Segments[0].Words[1]
	if a.Probability != 0 || a.Timestamp != 0 {
		t.Errorf("word a not repaired: %+v", a)
	}
	if b.Probability != 1 {
		t.Errorf("word b not clamped: %+v", b)
	}
}

func TestText_SpeakerPrefixedWithFallback(t *testing.T) {
	t.Parallel()

	tr, err := transcript.Decode(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := "Doctor: take ibuprofen daily\nPatient: okay"
	if got := tr.Text(); got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
}

func TestJoinWords(t *testing.T) {
	t.Parallel()

	seg := transcript.Segment{
		Text: "fallback text",
		Words: []transcript.Word{
			{Text: "real"}, {Text: "words"},
		},
	}
	if got := seg.JoinWords(); got != "real words" {
		t.Errorf("JoinWords = %q", got)
	}

	seg.Words = nil
	if got := seg.JoinWords(); got != "fallback text" {
		t.Errorf("JoinWords fallback = %q", got)
	}
}

func TestDuration_EmptyTranscript(t *testing.T) {
	t.Parallel()

	tr := &transcript.Transcript{}
	if tr.Duration() != 0 || tr.WordCount() != 0 {
		t.Errorf("empty transcript: duration %.1f, words %d", tr.Duration(), tr.WordCount())
	}
}
