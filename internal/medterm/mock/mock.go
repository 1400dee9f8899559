// Package mock provides a test double for the medterm.Classifier interface.
//
// The mock can return canned findings immediately, block until released (to
// exercise the in-flight overlay state), or fail — whatever the test needs.
package mock

import (
	"context"
	"sync"

	"github.com/veriscribe-io/veriscribe/internal/medterm"
	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

// Classifier is a mock implementation of medterm.Classifier.
// Zero value returns no findings and a nil error.
type Classifier struct {
	mu sync.Mutex

	// Findings is returned by Classify.
	Findings []medterm.Finding

	// Err, if non-nil, is returned as the error from Classify.
	Err error

	// Release, when non-nil, blocks Classify until the channel is closed or
	// the context is cancelled. Use it to hold the overlay in flight.
	Release chan struct{}

	// Calls counts Classify invocations.
	Calls int
}

// Compile-time interface assertion.
var _ medterm.Classifier = (*Classifier)(nil)

// Classify implements medterm.Classifier.
func (c *Classifier) Classify(ctx context.Context, t *transcript.Transcript) ([]medterm.Finding, error) {
	c.mu.Lock()
	c.Calls++
	release := c.Release
	findings := c.Findings
	err := c.Err
	c.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return findings, nil
}
