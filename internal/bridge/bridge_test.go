package bridge_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/veriscribe-io/veriscribe/internal/app"
	"github.com/veriscribe-io/veriscribe/internal/audiosync"
	"github.com/veriscribe-io/veriscribe/internal/bridge"
	"github.com/veriscribe-io/veriscribe/internal/lexicon"
	"github.com/veriscribe-io/veriscribe/internal/medterm"
	medtermmock "github.com/veriscribe-io/veriscribe/internal/medterm/mock"
	"github.com/veriscribe-io/veriscribe/internal/review"
	audiomock "github.com/veriscribe-io/veriscribe/pkg/audio/mock"
)

const sampleTranscriptJSON = `{
	"segments": [
		{
			"speaker": "Doctor",
			"words": [
				{"text": "take", "probability": 0.95, "timestamp": 0.0},
				{"text": "ibuprofen", "probability": 0.40, "timestamp": 0.5},
				{"text": "daily", "probability": 0.99, "timestamp": 1.0}
			]
		}
	]
}`

// serverMsg mirrors the bridge's outgoing message shape for decoding.
type serverMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`

	Session *struct {
		SessionID string `json:"SessionID"`
		WordCount int    `json:"WordCount"`
	} `json:"session"`

	State *struct {
		Flagged []review.FlaggedWord `json:"flaggedWords"`
		Progress struct {
			MedicalTotal    int     `json:"medicalTotal"`
			MedicalReviewed int     `json:"medicalReviewed"`
			Percentage      float64 `json:"percentage"`
		} `json:"progress"`
		Validation struct {
			CanProceed bool   `json:"canProceed"`
			Message    string `json:"message"`
		} `json:"validation"`
		Loading bool `json:"medicalTermsLoading"`
	} `json:"state"`

	Focus       *review.FlaggedWord  `json:"focus"`
	Suggestions []lexicon.Suggestion `json:"suggestions"`
	Final       string               `json:"finalTranscript"`

	Audio *struct {
		Playing     bool    `json:"playing"`
		CurrentTime float64 `json:"currentTime"`
	} `json:"audio"`
	Markers []audiosync.Marker `json:"markers"`
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// dialBridge serves the bridge on an httptest server and dials it.
func dialBridge(t *testing.T, b *bridge.Bridge) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

// send marshals v and writes it as a text frame.
func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("send marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("send: %v", err)
	}
}

// recv reads and decodes one server message.
func recv(t *testing.T, conn *websocket.Conn) serverMsg {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	var msg serverMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("recv unmarshal: %v", err)
	}
	return msg
}

// recvType reads messages until one of the wanted type arrives, skipping
// asynchronous state pushes that may interleave with responses.
func recvType(t *testing.T, conn *websocket.Conn, want string) serverMsg {
	t.Helper()
	for range 5 {
		msg := recv(t, conn)
		if msg.Type == want {
			return msg
		}
		if msg.Type == "error" && want != "error" {
			t.Fatalf("server error while waiting for %q: %s", want, msg.Error)
		}
	}
	t.Fatalf("no %q message received", want)
	return serverMsg{}
}

// startSession sends a start action and consumes the session message, the
// initial state, and the unprompted overlay push (the bridge always sends
// exactly one). It returns the post-overlay state so later reads cannot race
// with the push.
func startSession(t *testing.T, conn *websocket.Conn) serverMsg {
	t.Helper()
	send(t, conn, map[string]any{"type": "start", "transcript": json.RawMessage(sampleTranscriptJSON)})

	session := recv(t, conn)
	if session.Type != "session" {
		t.Fatalf("first message type = %q, want session", session.Type)
	}
	if session.Session == nil || session.Session.WordCount != 3 {
		t.Fatalf("session payload = %+v", session.Session)
	}

	recvType(t, conn, "state")
	merged := recvType(t, conn, "state")
	if merged.State.Loading {
		t.Fatal("overlay push arrived while still loading")
	}
	return merged
}

func newBridge(cls medterm.Classifier, lex *lexicon.Lexicon, opts ...bridge.Option) *bridge.Bridge {
	manager := app.NewManager(app.ManagerConfig{
		Thresholds: review.Thresholds{Critical: 0.5, Warning: 0.7},
		Classifier: cls,
	})
	return bridge.New(manager, lex, opts...)
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestBridge_StartPushesFlaggedState(t *testing.T) {
	t.Parallel()

	conn := dialBridge(t, newBridge(nil, nil))
	state := startSession(t, conn)

	if len(state.State.Flagged) != 1 {
		t.Fatalf("flagged %d words, want 1", len(state.State.Flagged))
	}
	fw := state.State.Flagged[0]
	if fw.Word != "ibuprofen" {
		t.Errorf("flagged word = %q, want ibuprofen", fw.Word)
	}
	if !state.State.Validation.CanProceed {
		t.Error("gate closed with no medical terms")
	}
}

func TestBridge_ReviewFlow(t *testing.T) {
	t.Parallel()

	cls := &medtermmock.Classifier{Findings: []medterm.Finding{
		{Segment: 0, Word: 1, Term: "ibuprofen", Category: medterm.CategoryMedication},
	}}
	conn := dialBridge(t, newBridge(cls, nil))
	state := startSession(t, conn)

	if state.State.Progress.MedicalTotal != 1 {
		t.Fatalf("medical total = %d, want 1", state.State.Progress.MedicalTotal)
	}
	if state.State.Validation.CanProceed {
		t.Fatal("gate open with an unreviewed medical term")
	}

	// Confirming now must fail and keep the session alive.
	send(t, conn, map[string]any{"type": "confirm"})
	if msg := recvType(t, conn, "error"); msg.Error == "" {
		t.Fatal("confirm with pending review returned an empty error")
	}

	send(t, conn, map[string]any{
		"type": "accept_word", "segment": 0, "word": 1, "correctedText": "ibuprofeno",
	})
	state = recvType(t, conn, "state")
	if !state.State.Validation.CanProceed {
		t.Fatal("gate still closed after accepting the medical term")
	}
	if state.State.Progress.Percentage != 100 {
		t.Errorf("progress = %.0f%%, want 100%%", state.State.Progress.Percentage)
	}

	send(t, conn, map[string]any{"type": "confirm"})
	confirmed := recvType(t, conn, "confirmed")
	if confirmed.Final != "Doctor: take ibuprofeno daily" {
		t.Errorf("final = %q", confirmed.Final)
	}
}

func TestBridge_Navigation(t *testing.T) {
	t.Parallel()

	cls := &medtermmock.Classifier{Findings: []medterm.Finding{
		{Segment: 0, Word: 1, Term: "ibuprofen", Category: medterm.CategoryMedication},
	}}
	conn := dialBridge(t, newBridge(cls, nil))
	startSession(t, conn)

	send(t, conn, map[string]any{"type": "next_word", "segment": 0, "word": 0})
	focus := recvType(t, conn, "focus")
	if focus.Focus == nil || focus.Focus.Word != "ibuprofen" {
		t.Fatalf("focus = %+v, want ibuprofen", focus.Focus)
	}
}

func TestBridge_Suggest(t *testing.T) {
	t.Parallel()

	lex := lexicon.New([]string{"metformin", "ibuprofen"})
	conn := dialBridge(t, newBridge(nil, lex))

	send(t, conn, map[string]any{"type": "suggest", "query": "ibuprofin"})
	msg := recvType(t, conn, "suggestions")
	if len(msg.Suggestions) == 0 {
		t.Fatal("no suggestions for a near miss")
	}
	if msg.Suggestions[0].Term != "ibuprofen" {
		t.Errorf("top suggestion = %q, want ibuprofen", msg.Suggestions[0].Term)
	}
}

func TestBridge_ErrorsDoNotCloseConnection(t *testing.T) {
	t.Parallel()

	conn := dialBridge(t, newBridge(nil, nil))

	send(t, conn, map[string]any{"type": "levitate"})
	if msg := recv(t, conn); msg.Type != "error" || !strings.Contains(msg.Error, "levitate") {
		t.Fatalf("unknown type: got %+v", msg)
	}

	send(t, conn, map[string]any{"type": "state"})
	if msg := recv(t, conn); msg.Type != "error" {
		t.Fatalf("state with no session: type = %q, want error", msg.Type)
	}

	// The connection still works after both errors.
	startSession(t, conn)

	send(t, conn, map[string]any{"type": "accept_word", "segment": 9, "word": 9})
	if msg := recvType(t, conn, "error"); !strings.Contains(msg.Error, "not flagged") {
		t.Fatalf("unflagged accept: error = %q", msg.Error)
	}

	send(t, conn, map[string]any{"type": "cancel"})
	if msg := recvType(t, conn, "cancelled"); msg.Type != "cancelled" {
		t.Fatal("cancel failed")
	}
}

func TestBridge_AudioActions(t *testing.T) {
	t.Parallel()

	player := &audiomock.Player{DurationResult: 200}
	ctrl := audiosync.New(player)
	t.Cleanup(ctrl.Close)

	cls := &medtermmock.Classifier{Findings: []medterm.Finding{
		{Segment: 0, Word: 1, Term: "ibuprofen", Category: medterm.CategoryMedication},
	}}
	conn := dialBridge(t, newBridge(cls, nil, bridge.WithAudio(ctrl)))
	startSession(t, conn)

	send(t, conn, map[string]any{"type": "select_word", "segment": 0, "word": 1})
	focus := recvType(t, conn, "focus")
	if focus.Focus == nil || focus.Focus.Word != "ibuprofen" {
		t.Fatalf("focus = %+v, want ibuprofen", focus.Focus)
	}
	if id, ok := ctrl.Selected(); !ok || id != (review.WordID{Segment: 0, Word: 1}) {
		t.Errorf("selected = %v, %v", id, ok)
	}

	// Word timestamp 0.5 with a 3s lead clamps the seek to the start.
	send(t, conn, map[string]any{"type": "play_word", "segment": 0, "word": 1})
	audio := recvType(t, conn, "audio")
	if audio.Audio == nil || !audio.Audio.Playing {
		t.Fatalf("audio after play_word = %+v", audio.Audio)
	}
	if len(player.SeekCalls) != 1 || player.SeekCalls[0] != 0 {
		t.Errorf("seek calls = %v, want [0]", player.SeekCalls)
	}

	send(t, conn, map[string]any{"type": "seek", "seconds": 42.0})
	audio = recvType(t, conn, "audio")
	if audio.Audio.CurrentTime != 42 {
		t.Errorf("current time = %.1f, want 42", audio.Audio.CurrentTime)
	}

	send(t, conn, map[string]any{"type": "toggle_playback"})
	audio = recvType(t, conn, "audio")
	if audio.Audio.Playing {
		t.Error("still playing after toggle")
	}

	send(t, conn, map[string]any{"type": "markers"})
	markers := recvType(t, conn, "markers")
	if len(markers.Markers) != 1 {
		t.Fatalf("got %d markers, want 1", len(markers.Markers))
	}
	if markers.Markers[0].ID != (review.WordID{Segment: 0, Word: 1}) {
		t.Errorf("marker id = %v", markers.Markers[0].ID)
	}
}

func TestBridge_AudioWithoutPlayer(t *testing.T) {
	t.Parallel()

	conn := dialBridge(t, newBridge(nil, nil))
	startSession(t, conn)

	send(t, conn, map[string]any{"type": "seek", "seconds": 10.0})
	if msg := recvType(t, conn, "error"); !strings.Contains(msg.Error, "no audio player") {
		t.Fatalf("error = %q", msg.Error)
	}
}
