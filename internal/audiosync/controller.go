// Package audiosync binds audio playback to the transcript review cursor.
//
// The binding is bidirectional but deliberately modelled as two one-way
// channels with feedback suppression, never as one shared mutable variable:
//
//   - Playback → cursor: time updates from the [audio.Player] are propagated
//     to subscribers only when they drift more than a small epsilon from the
//     last externally set position, so a seek the controller itself issued
//     does not echo back as a phantom update. Passive playback never changes
//     the selected word.
//   - Cursor → playback: [Controller.PlayWordAudio] seeks a few seconds ahead
//     of a flagged word and plays a bounded context window so the reviewer
//     hears the word in situ.
//
// The controller owns its [audio.Player] exclusively; no other component may
// seek or play it. [Controller.SeekAudio] and [Controller.TogglePlayback] are
// the only externally invocable playback mutators.
package audiosync

import (
	"sync"
	"time"

	"github.com/veriscribe-io/veriscribe/internal/review"
	"github.com/veriscribe-io/veriscribe/pkg/audio"
)

const (
	// feedbackEpsilon is the minimum drift (seconds) between a playback time
	// update and the last externally set position before the update is
	// propagated outward.
	feedbackEpsilon = 0.5

	// contextLead is how far before a word's timestamp playback starts, so
	// the reviewer hears the lead-in.
	contextLead = 3.0

	// contextWindow is how long the bounded playback window runs.
	contextWindow = 6.0
)

// Marker is the waveform position of one medical term, expressed as a
// percentage along the full duration. Clicking a marker selects the word; it
// does not move the playhead.
type Marker struct {
	ID      review.WordID `json:"id"`
	Percent float64       `json:"percent"`
}

// Controller synchronises playback time, the selected word, and waveform
// markers for one review session. All exported methods are safe for
// concurrent use.
type Controller struct {
	player audio.Player

	mu          sync.Mutex
	selected    review.WordID
	hasSelected bool
	lastSetTime float64
	currentTime float64
	windowTimer *time.Timer
	unsubscribe func()
	onTime      func(seconds float64)
	onSelect    func(id review.WordID)
}

// New creates a [Controller] driving p and subscribes to its time updates.
// Call [Controller.Close] to detach.
func New(p audio.Player) *Controller {
	c := &Controller{player: p}
	c.unsubscribe = p.OnTimeUpdate(c.handleTimeUpdate)
	return c
}

// OnTimeChange registers fn to receive epsilon-gated playback time updates.
// Only one listener is supported; a later registration replaces the earlier.
func (c *Controller) OnTimeChange(fn func(seconds float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTime = fn
}

// OnSelectionChange registers fn to be notified when a word is selected.
func (c *Controller) OnSelectionChange(fn func(id review.WordID)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSelect = fn
}

// handleTimeUpdate is the playback → cursor direction. Updates within the
// feedback epsilon of the last externally set position are suppressed so that
// controller-issued seeks do not loop back. Selection is never changed from
// passive playback.
func (c *Controller) handleTimeUpdate(seconds float64) {
	c.mu.Lock()
	delta := seconds - c.lastSetTime
	if delta < 0 {
		delta = -delta
	}
	if delta <= feedbackEpsilon {
		c.mu.Unlock()
		return
	}
	c.currentTime = seconds
	fn := c.onTime
	c.mu.Unlock()

	if fn != nil {
		fn(seconds)
	}
}

// PlayWordAudio seeks playback to timestamp − 3 s (clamped to the start) and
// plays a ~6 s window so the reviewer hears the flagged word in context.
// Invoking it while a window is already playing restarts from the new
// position rather than queuing.
func (c *Controller) PlayWordAudio(timestamp float64) error {
	start := timestamp - contextLead
	if start < 0 {
		start = 0
	}

	c.mu.Lock()
	if c.windowTimer != nil {
		c.windowTimer.Stop()
	}
	c.lastSetTime = start
	c.currentTime = start
	c.windowTimer = time.AfterFunc(time.Duration(contextWindow*float64(time.Second)), func() {
		c.player.Pause() //nolint:errcheck // window expiry is best-effort
	})
	c.mu.Unlock()

	if err := c.player.Seek(start); err != nil {
		return err
	}
	return c.player.Play()
}

// SeekAudio moves the playhead to seconds (clamped to the start). It cancels
// any bounded word window in progress.
func (c *Controller) SeekAudio(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}

	c.mu.Lock()
	if c.windowTimer != nil {
		c.windowTimer.Stop()
		c.windowTimer = nil
	}
	c.lastSetTime = seconds
	c.currentTime = seconds
	c.mu.Unlock()

	return c.player.Seek(seconds)
}

// TogglePlayback pauses running playback or resumes from the current
// position. Pausing cancels a bounded word window in progress.
func (c *Controller) TogglePlayback() error {
	if c.player.IsPlaying() {
		c.mu.Lock()
		if c.windowTimer != nil {
			c.windowTimer.Stop()
			c.windowTimer = nil
		}
		c.mu.Unlock()
		return c.player.Pause()
	}
	return c.player.Play()
}

// SelectWord sets the review cursor to id. Selection is decoupled from
// seeking: clicking a marker or a word selects it without moving the
// playhead — playing its audio is a separate explicit action.
func (c *Controller) SelectWord(id review.WordID) {
	c.mu.Lock()
	c.selected = id
	c.hasSelected = true
	fn := c.onSelect
	c.mu.Unlock()

	if fn != nil {
		fn(id)
	}
}

// Selected returns the currently selected word, if any.
func (c *Controller) Selected() (review.WordID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.hasSelected
}

// CurrentTime returns the last propagated playhead position.
func (c *Controller) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// IsPlaying reports whether playback is running.
func (c *Controller) IsPlaying() bool { return c.player.IsPlaying() }

// Markers computes waveform marker positions for the medical subset of words,
// at timestamp/duration × 100 % along the waveform. When the player does not
// yet know its duration, no markers are produced.
func (c *Controller) Markers(words []review.FlaggedWord) []Marker {
	duration := c.player.Duration()
	if duration <= 0 {
		return nil
	}
	markers := make([]Marker, 0, len(words))
	for _, fw := range words {
		if !fw.IsMedical {
			continue
		}
		pct := fw.Timestamp / duration * 100
		if pct > 100 {
			pct = 100
		}
		markers = append(markers, Marker{ID: fw.ID, Percent: pct})
	}
	return markers
}

// Close detaches from the player's time updates and cancels any pending
// window. The player itself is not closed — its lifetime belongs to the
// caller.
func (c *Controller) Close() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	if c.windowTimer != nil {
		c.windowTimer.Stop()
		c.windowTimer = nil
	}
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
