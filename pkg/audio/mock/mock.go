// Package mock provides an in-memory mock implementation of [audio.Player]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts and arguments, and it exposes an
// [Player.EmitTime] method to simulate playback progress without real time
// passing.
//
// Typical usage:
//
//	p := &mock.Player{DurationResult: 120}
//	ctrl := audiosync.New(p)
//	p.EmitTime(42.5) // simulate the playhead reaching 42.5s
package mock

import (
	"sync"

	"github.com/veriscribe-io/veriscribe/pkg/audio"
)

// Player is a mock implementation of [audio.Player].
// Set the exported Result/Err fields before use; inspect the call-recording
// fields after.
type Player struct {
	mu sync.Mutex

	// DurationResult is returned by [Player.Duration].
	DurationResult float64

	// PlayErr, PauseErr, SeekErr are returned by the corresponding methods.
	PlayErr  error
	PauseErr error
	SeekErr  error

	// PlayCalls and PauseCalls count invocations.
	PlayCalls  int
	PauseCalls int

	// SeekCalls records every position passed to Seek, in order.
	SeekCalls []float64

	// Closed reports whether Close was called.
	Closed bool

	playing     bool
	current     float64
	subscribers map[int]func(float64)
	nextSub     int
}

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// Play implements [audio.Player].
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls++
	if p.PlayErr != nil {
		return p.PlayErr
	}
	p.playing = true
	return nil
}

// Pause implements [audio.Player].
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PauseCalls++
	if p.PauseErr != nil {
		return p.PauseErr
	}
	p.playing = false
	return nil
}

// Seek implements [audio.Player]. Positions are clamped into
// [0, DurationResult] when a duration is configured.
func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SeekCalls = append(p.SeekCalls, seconds)
	if p.SeekErr != nil {
		return p.SeekErr
	}
	if seconds < 0 {
		seconds = 0
	}
	if p.DurationResult > 0 && seconds > p.DurationResult {
		seconds = p.DurationResult
	}
	p.current = seconds
	return nil
}

// CurrentTime implements [audio.Player].
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Duration implements [audio.Player].
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DurationResult
}

// IsPlaying implements [audio.Player].
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// OnTimeUpdate implements [audio.Player].
func (p *Player) OnTimeUpdate(fn func(float64)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subscribers == nil {
		p.subscribers = make(map[int]func(float64))
	}
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

// Close implements [audio.Player].
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.playing = false
	return nil
}

// EmitTime sets the playhead to seconds and delivers it to all time-update
// subscribers, simulating playback progress.
func (p *Player) EmitTime(seconds float64) {
	p.mu.Lock()
	p.current = seconds
	subs := make([]func(float64), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(seconds)
	}
}
