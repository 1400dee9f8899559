// Package llmclass implements a language-model-backed [medterm.Classifier].
//
// The [Classifier] sends the diarized transcript to an [llm.Provider] as an
// indexed word list and instructs the model (via a conservative system
// prompt) to return a structured JSON response locating every clinically
// significant word. Findings carry the same segment/word addressing the
// review engine uses, so they merge directly into the flagged-word set.
//
// This call runs exclusively in the background — never on the interactive
// review path — so the latency of a full-transcript round-trip is acceptable.
// When the LLM response cannot be parsed, the classifier returns no findings
// rather than surfacing an error, keeping the review workflow usable.
package llmclass

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veriscribe-io/veriscribe/internal/medterm"
	"github.com/veriscribe-io/veriscribe/internal/observe"
	"github.com/veriscribe-io/veriscribe/pkg/provider/llm"
	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

const (
	defaultTemperature = 0.1
)

// systemPrompt instructs the model to locate medical terminology in an
// indexed word list and answer with machine-readable JSON only.
const systemPrompt = `You are a medical terminology detector for clinical consultation transcripts.

Your task: identify every word in the provided transcript that is medically significant — medication names, diagnoses, procedures, anatomical terms, dosages, and lab values.

Rules:
- Each transcript word is listed as "segment.word: text". Refer to words ONLY by those indices.
- Flag individual words, not phrases. For a multi-word term, flag each of its words separately.
- Do NOT flag ordinary conversational words, greetings, or small talk.
- Be inclusive — when a word is plausibly a (possibly misrecognised) medical term, flag it.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "findings": [
    {"segment": <segment index>, "word": <word index>, "term": "<the word>", "category": "<medication|diagnosis|procedure|anatomy|dosage|other>"}
  ]
}

If the transcript contains no medical terminology, return an empty findings array.`

// response is the expected JSON structure returned by the LLM.
type response struct {
	Findings []struct {
		Segment  int    `json:"segment"`
		Word     int    `json:"word"`
		Term     string `json:"term"`
		Category string `json:"category"`
	} `json:"findings"`
}

// Option is a functional option for configuring a [Classifier].
type Option func(*Classifier)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic detection. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(c *Classifier) {
		c.temperature = temp
	}
}

// WithProvider sets the backend label attached to request metrics, typically
// the configured provider name ("openai", "ollama", ...). Default: "llm".
func WithProvider(name string) Option {
	return func(c *Classifier) {
		if name != "" {
			c.provider = name
		}
	}
}

// WithMetrics attaches a metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Classifier) {
		c.metrics = m
	}
}

// Classifier uses an [llm.Provider] to locate medical terminology in a
// transcript. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to use a
// specific model for detection, construct the [llm.Provider] with that model
// configured rather than overriding per-request.
type Classifier struct {
	llm         llm.Provider
	temperature float64
	provider    string
	metrics     *observe.Metrics
}

// Compile-time interface assertion.
var _ medterm.Classifier = (*Classifier)(nil)

// New returns a new [Classifier] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		llm:         provider,
		temperature: defaultTemperature,
		provider:    "llm",
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Classify implements [medterm.Classifier]. Context cancellation and network
// errors are returned as non-nil errors; an unparseable model response
// degrades to zero findings with a nil error.
func (c *Classifier) Classify(ctx context.Context, t *transcript.Transcript) ([]medterm.Finding, error) {
	ctx, span := observe.StartSpan(ctx, "medterm.classify")
	defer span.End()

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  c.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: formatWordList(t)},
		},
	}

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		c.metrics.RecordClassifierRequest(ctx, c.provider, "error")
		return nil, fmt.Errorf("llmclass: complete: %w", err)
	}
	c.metrics.RecordClassifierRequest(ctx, c.provider, "ok")

	findings, parseErr := parseResponse(resp.Content)
	if parseErr != nil {
		// Unparseable response: degrade to no findings, no error.
		observe.Logger(ctx).Warn("llmclass: unparseable classifier response", "err", parseErr)
		return []medterm.Finding{}, nil
	}
	return findings, nil
}

// formatWordList renders the transcript as one indexed word per line,
// prefixed with the segment's speaker so the model sees the dialogue
// structure. Segments without word detail are skipped — they carry nothing
// addressable.
func formatWordList(t *transcript.Transcript) string {
	var sb strings.Builder
	for si, seg := range t.Segments {
		if len(seg.Words) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "[%s]\n", seg.Speaker)
		for wi, w := range seg.Words {
			fmt.Fprintf(&sb, "%d.%d: %s\n", si, wi, w.Text)
		}
	}
	return sb.String()
}

// parseResponse attempts to unmarshal the LLM output. It strips markdown
// code fences before parsing and drops findings without a usable term.
func parseResponse(content string) ([]medterm.Finding, error) {
	cleaned := stripMarkdown(content)

	var r response
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("llmclass: parse response: %w", err)
	}

	findings := make([]medterm.Finding, 0, len(r.Findings))
	for _, f := range r.Findings {
		if f.Term == "" || f.Segment < 0 || f.Word < 0 {
			continue
		}
		category := medterm.Category(f.Category)
		if !category.IsValid() {
			category = medterm.CategoryOther
		}
		findings = append(findings, medterm.Finding{
			Segment:  f.Segment,
			Word:     f.Word,
			Term:     f.Term,
			Category: category,
		})
	}
	return findings, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
