// Package bridge exposes the active review session to a front end over a
// WebSocket connection. The client drives the session with typed JSON action
// messages; the bridge answers each action with a fresh state snapshot, so
// the client never has to reconstruct state from deltas.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/veriscribe-io/veriscribe/internal/app"
	"github.com/veriscribe-io/veriscribe/internal/audiosync"
	"github.com/veriscribe-io/veriscribe/internal/lexicon"
	"github.com/veriscribe-io/veriscribe/internal/review"
	"github.com/veriscribe-io/veriscribe/pkg/transcript"
)

// overlayPollInterval is how often the bridge checks whether the medical-term
// pass has finished so it can push the merged state unprompted.
const overlayPollInterval = 250 * time.Millisecond

// writeTimeout bounds a single outgoing message write.
const writeTimeout = 10 * time.Second

// ── Protocol message types (incoming) ─────────────────────────────────────────

type clientMessage struct {
	Type string `json:"type"`

	// start
	Transcript json.RawMessage `json:"transcript,omitempty"`

	// accept_word / skip_word / next_word / prev_word
	Segment int `json:"segment"`
	Word    int `json:"word"`

	// accept_word
	CorrectedText string `json:"correctedText,omitempty"`

	// suggest
	Query string `json:"query,omitempty"`

	// seek
	Seconds float64 `json:"seconds"`
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type serverMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`

	Session     *app.SessionInfo     `json:"session,omitempty"`
	State       *statePayload        `json:"state,omitempty"`
	Focus       *review.FlaggedWord  `json:"focus,omitempty"`
	Suggestions []lexicon.Suggestion `json:"suggestions,omitempty"`
	Final       string               `json:"finalTranscript,omitempty"`
	Audio       *audioPayload        `json:"audio,omitempty"`
	Markers     []audiosync.Marker   `json:"markers,omitempty"`
}

type audioPayload struct {
	Playing     bool    `json:"playing"`
	CurrentTime float64 `json:"currentTime"`
}

type statePayload struct {
	Flagged    []review.FlaggedWord   `json:"flaggedWords"`
	Progress   review.Progress        `json:"progress"`
	Validation review.ValidationState `json:"validation"`
	Loading    bool                   `json:"medicalTermsLoading"`
}

// Bridge is the WebSocket endpoint for review sessions. It is an
// [http.Handler]; each accepted connection is served until the client
// disconnects or the request context ends.
type Bridge struct {
	manager *app.Manager
	lex     *lexicon.Lexicon
	audio   *audiosync.Controller
}

// New creates a Bridge over manager. lex may be nil; the suggest action then
// always returns an empty list.
func New(manager *app.Manager, lex *lexicon.Lexicon, opts ...Option) *Bridge {
	b := &Bridge{manager: manager, lex: lex}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Option is a functional option for [New].
type Option func(*Bridge)

// WithAudio attaches an audio-sync controller so clients can drive playback
// (select_word, play_word, seek, toggle_playback, markers). Without it those
// actions report an error.
func WithAudio(ctrl *audiosync.Controller) Option {
	return func(b *Bridge) {
		b.audio = ctrl
	}
}

// client wraps one WebSocket connection. The mutex serialises writes: the
// overlay push goroutine and read-loop responses share the connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// write marshals msg and sends it as a text WebSocket message.
func (c *client) write(ctx context.Context, msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: marshal: %w", err)
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(wctx, websocket.MessageText, data)
}

// ServeHTTP upgrades the request to a WebSocket and serves the session
// protocol on it.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("bridge: websocket accept failed", "err", err)
		return
	}

	b.serve(r.Context(), &client{conn: conn})
}

// serve runs the read loop for one connection.
func (b *Bridge) serve(ctx context.Context, c *client) {
	defer c.conn.Close(websocket.StatusNormalClosure, "session closed")

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				slog.Debug("bridge: read loop ended", "err", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			b.writeError(ctx, c, fmt.Sprintf("malformed message: %v", err))
			continue
		}

		if err := b.dispatch(ctx, c, msg); err != nil {
			b.writeError(ctx, c, err.Error())
		}
	}
}

// dispatch handles one client action. Returned errors are reported to the
// client; they never tear the connection down.
func (b *Bridge) dispatch(ctx context.Context, c *client, msg clientMessage) error {
	switch msg.Type {
	case "start":
		return b.handleStart(ctx, c, msg.Transcript)

	case "state":
		return b.writeState(ctx, c)

	case "accept_word":
		sess, err := b.session()
		if err != nil {
			return err
		}
		id := review.WordID{Segment: msg.Segment, Word: msg.Word}
		if !sess.AcceptWord(id, msg.CorrectedText) {
			return fmt.Errorf("word %s is not flagged", id)
		}
		return b.writeState(ctx, c)

	case "skip_word":
		sess, err := b.session()
		if err != nil {
			return err
		}
		id := review.WordID{Segment: msg.Segment, Word: msg.Word}
		if !sess.SkipWord(id) {
			return fmt.Errorf("word %s is not flagged", id)
		}
		return b.writeState(ctx, c)

	case "accept_all":
		sess, err := b.session()
		if err != nil {
			return err
		}
		if err := sess.AcceptAllPending(); err != nil {
			return err
		}
		return b.writeState(ctx, c)

	case "next_word", "prev_word":
		sess, err := b.session()
		if err != nil {
			return err
		}
		cur := review.WordID{Segment: msg.Segment, Word: msg.Word}
		var fw review.FlaggedWord
		var ok bool
		if msg.Type == "next_word" {
			fw, ok = sess.NextWord(cur)
		} else {
			fw, ok = sess.PrevWord(cur)
		}
		if !ok {
			return errors.New("no medical terms to navigate")
		}
		return c.write(ctx, serverMessage{Type: "focus", Focus: &fw})

	case "select_word":
		sess, err := b.session()
		if err != nil {
			return err
		}
		id := review.WordID{Segment: msg.Segment, Word: msg.Word}
		fw, ok := sess.Word(id)
		if !ok {
			return fmt.Errorf("word %s is not flagged", id)
		}
		if b.audio != nil {
			b.audio.SelectWord(id)
		}
		return c.write(ctx, serverMessage{Type: "focus", Focus: &fw})

	case "play_word":
		sess, err := b.session()
		if err != nil {
			return err
		}
		ctrl, err := b.audioCtrl()
		if err != nil {
			return err
		}
		id := review.WordID{Segment: msg.Segment, Word: msg.Word}
		fw, ok := sess.Word(id)
		if !ok {
			return fmt.Errorf("word %s is not flagged", id)
		}
		if err := ctrl.PlayWordAudio(fw.Timestamp); err != nil {
			return fmt.Errorf("play word audio: %w", err)
		}
		return b.writeAudio(ctx, c)

	case "seek":
		ctrl, err := b.audioCtrl()
		if err != nil {
			return err
		}
		if err := ctrl.SeekAudio(msg.Seconds); err != nil {
			return fmt.Errorf("seek: %w", err)
		}
		return b.writeAudio(ctx, c)

	case "toggle_playback":
		ctrl, err := b.audioCtrl()
		if err != nil {
			return err
		}
		if err := ctrl.TogglePlayback(); err != nil {
			return fmt.Errorf("toggle playback: %w", err)
		}
		return b.writeAudio(ctx, c)

	case "markers":
		sess, err := b.session()
		if err != nil {
			return err
		}
		ctrl, err := b.audioCtrl()
		if err != nil {
			return err
		}
		return c.write(ctx, serverMessage{Type: "markers", Markers: ctrl.Markers(sess.Flagged())})

	case "suggest":
		var suggestions []lexicon.Suggestion
		if b.lex != nil {
			suggestions = b.lex.Suggest(msg.Query)
		}
		return c.write(ctx, serverMessage{Type: "suggestions", Suggestions: suggestions})

	case "confirm":
		final, err := b.manager.Confirm(ctx)
		if err != nil {
			return err
		}
		return c.write(ctx, serverMessage{Type: "confirmed", Final: final})

	case "cancel":
		if err := b.manager.Cancel(ctx); err != nil {
			return err
		}
		return c.write(ctx, serverMessage{Type: "cancelled"})

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// handleStart decodes the uploaded transcript, starts a session, and pushes
// the initial state. A second snapshot follows once the medical-term overlay
// has merged.
func (b *Bridge) handleStart(ctx context.Context, c *client, raw json.RawMessage) error {
	if len(raw) == 0 {
		return errors.New("start requires a transcript")
	}
	tr, err := transcript.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}

	info, err := b.manager.Start(ctx, tr)
	if err != nil {
		return err
	}

	if err := c.write(ctx, serverMessage{Type: "session", Session: &info}); err != nil {
		return err
	}
	if err := b.writeState(ctx, c); err != nil {
		return err
	}

	go b.pushOverlayState(ctx, c, info.SessionID)
	return nil
}

// pushOverlayState waits for the medical-term pass to finish and pushes one
// state snapshot so the client sees the merged overlay without polling.
func (b *Bridge) pushOverlayState(ctx context.Context, c *client, sessionID string) {
	ticker := time.NewTicker(overlayPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sess := b.manager.Session()
		if sess == nil || b.manager.Info().SessionID != sessionID {
			return
		}
		if sess.MedicalTermsLoading() {
			continue
		}

		if err := b.writeState(ctx, c); err != nil {
			slog.Debug("bridge: overlay push failed", "session_id", sessionID, "err", err)
		}
		return
	}
}

// audioCtrl returns the attached audio controller or an actionable error.
func (b *Bridge) audioCtrl() (*audiosync.Controller, error) {
	if b.audio == nil {
		return nil, errors.New("no audio player attached")
	}
	return b.audio, nil
}

// writeAudio sends the current playback state as an audio message.
func (b *Bridge) writeAudio(ctx context.Context, c *client) error {
	return c.write(ctx, serverMessage{Type: "audio", Audio: &audioPayload{
		Playing:     b.audio.IsPlaying(),
		CurrentTime: b.audio.CurrentTime(),
	}})
}

// session returns the active review session or an actionable error.
func (b *Bridge) session() (*review.Session, error) {
	sess := b.manager.Session()
	if sess == nil {
		return nil, errors.New("no active session")
	}
	return sess, nil
}

// writeState snapshots the active session and sends it as a state message.
func (b *Bridge) writeState(ctx context.Context, c *client) error {
	sess, err := b.session()
	if err != nil {
		return err
	}
	state := statePayload{
		Flagged:    sess.Flagged(),
		Progress:   sess.Progress(),
		Validation: sess.Validation(),
		Loading:    sess.MedicalTermsLoading(),
	}
	return c.write(ctx, serverMessage{Type: "state", State: &state})
}

func (b *Bridge) writeError(ctx context.Context, c *client, msg string) {
	if err := c.write(ctx, serverMessage{Type: "error", Error: msg}); err != nil {
		slog.Debug("bridge: error write failed", "err", err)
	}
}
