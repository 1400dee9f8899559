// Package audio defines the playback abstraction the validation engine
// synchronises against.
//
// The playable resource itself — a browser audio element, a desktop media
// player, a test double — is owned by the surrounding application. The engine
// only needs a uniform [Player] surface: seek, play/pause, and a time-update
// subscription. The sync controller is the sole component that drives a
// Player; nothing else in the engine may seek or play it directly.
//
// Implementations must be safe for concurrent use. Time-update callbacks are
// delivered from the player's own event goroutine; subscribers must not block.
package audio

// Player is a seekable audio playback surface. All positions are in seconds
// from the start of the resource.
type Player interface {
	// Play starts or resumes playback from the current position.
	Play() error

	// Pause halts playback, keeping the current position.
	Pause() error

	// Seek moves the playhead to the given position. Implementations clamp
	// out-of-range positions into [0, Duration].
	Seek(seconds float64) error

	// CurrentTime returns the current playhead position.
	CurrentTime() float64

	// Duration returns the total length of the resource, or 0 when unknown
	// (still buffering).
	Duration() float64

	// IsPlaying reports whether playback is running.
	IsPlaying() bool

	// OnTimeUpdate registers fn to be invoked with the playhead position as
	// playback progresses. The returned cancel function removes the
	// subscription; it is safe to call more than once.
	OnTimeUpdate(fn func(seconds float64)) (cancel func())

	// Close releases the underlying resource. The player is unusable
	// afterwards.
	Close() error
}
