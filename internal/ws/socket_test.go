package ws

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/sketchdash/internal/ai"
	"github.com/kiliankoe/sketchdash/internal/game"
)

type emitted struct {
	event string
	data  any
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []emitted
	ch     chan emitted
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, ch: make(chan emitted, 256)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, v ...any) {
	e := emitted{event: event}
	if len(v) > 0 {
		e.data = v[0]
	}
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.ch <- e
}

func (c *fakeConn) waitState(t *testing.T, pred func(game.View) bool) game.View {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e := <-c.ch:
			if v, ok := e.data.(game.View); ok && e.event == "game:state" && pred(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for game:state")
		}
	}
}

func (c *fakeConn) lastError() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].event == "error" {
			return c.events[i].data.(map[string]any)
		}
	}
	return nil
}

type fixedWord string

func (w fixedWord) DailyWord(context.Context) (string, error) { return string(w), nil }

type quietRecognizer struct{}

func (quietRecognizer) Recognize(context.Context, []byte, string) ([]ai.Prediction, error) {
	return []ai.Prediction{{Label: "dog", Confidence: 0.4}}, nil
}

func newTestServer() (*Server, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClock()
	m := game.NewManager(fixedWord("cat"), quietRecognizer{}, game.WithClock(fc))
	return New(m, fc), fc
}

// countdown ticks a started session into play, one second at a time.
func countdown(t *testing.T, conn *fakeConn, fc *clockwork.FakeClock) game.View {
	t.Helper()
	for want := 2; want >= 1; want-- {
		fc.Advance(time.Second)
		conn.waitState(t, func(v game.View) bool { return v.Phase == game.PhaseCountdown && v.Countdown == want })
	}
	fc.Advance(time.Second)
	return conn.waitState(t, func(v game.View) bool { return v.Phase == game.PhasePlaying })
}

func TestConnectSendsInitialState(t *testing.T) {
	srv, _ := newTestServer()
	conn := newFakeConn("sid-1")
	srv.Connect(conn)
	defer srv.Disconnect(conn)

	v := conn.waitState(t, func(game.View) bool { return true })
	assert.Equal(t, game.PhaseIdle, v.Phase)
	assert.True(t, v.CanvasDisabled)
	assert.Equal(t, 1, srv.Manager.Len())
}

func TestStartStreamsCountdown(t *testing.T) {
	srv, fc := newTestServer()
	conn := newFakeConn("sid-1")
	srv.Connect(conn)
	defer srv.Disconnect(conn)

	res := srv.Start(conn)
	assert.Equal(t, true, res["ok"])
	v := conn.waitState(t, func(v game.View) bool { return v.Phase == game.PhaseCountdown })
	assert.Equal(t, "cat", v.Prompt)
	assert.Equal(t, 3, v.Countdown)

	res = srv.Start(conn)
	assert.Equal(t, "A game is already running", res["error"])
	require.NotNil(t, conn.lastError())
	assert.Equal(t, "session_active", conn.lastError()["code"])

	v = countdown(t, conn, fc)
	assert.False(t, v.CanvasDisabled)
	assert.Equal(t, "0.0s", v.TimerText)
}

func TestStrokesReachCanvas(t *testing.T) {
	srv, fc := newTestServer()
	conn := newFakeConn("sid-1")
	srv.Connect(conn)
	defer srv.Disconnect(conn)

	sess, err := srv.Manager.Get("sid-1")
	require.NoError(t, err)

	// ignored before play
	srv.Stroke(conn, "begin", pointPayload{X: 10, Y: 10})
	srv.Stroke(conn, "extend", pointPayload{X: 50, Y: 10})
	srv.Stroke(conn, "end", pointPayload{})
	assert.Equal(t, uint8(255), sess.Canvas().At(30, 10).R)

	srv.Start(conn)
	conn.waitState(t, func(v game.View) bool { return v.Phase == game.PhaseCountdown })
	countdown(t, conn, fc)

	srv.Stroke(conn, "begin", pointPayload{X: 10, Y: 10})
	srv.Stroke(conn, "extend", pointPayload{X: 50, Y: 10})
	srv.Stroke(conn, "end", pointPayload{})
	assert.Equal(t, uint8(0), sess.Canvas().At(30, 10).R)
}

func TestSnapshotValidation(t *testing.T) {
	srv, _ := newTestServer()
	conn := newFakeConn("sid-1")
	srv.Connect(conn)
	defer srv.Disconnect(conn)

	res := srv.Snapshot(conn, snapshotPayload{ImageData: "not base64 at all!"})
	assert.Equal(t, "Invalid image data", res["error"])
	assert.Equal(t, "bad_request", conn.lastError()["code"])
}

func TestDisconnectClosesSession(t *testing.T) {
	srv, _ := newTestServer()
	conn := newFakeConn("sid-1")
	srv.Connect(conn)
	srv.Start(conn)

	srv.Disconnect(conn)
	assert.Equal(t, 0, srv.Manager.Len())

	res := srv.Start(conn)
	assert.Equal(t, "Session not found", res["error"])
}

// The bundled client speaks Engine.IO 3 (socket.io 2.x): the polling
// handshake comes back as a length-prefixed payload, not the bare "0{...}"
// text a 3.x/4.x client expects.
func TestMountAnswersEngineIO3Handshake(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, _ := newTestServer()
	r := gin.New()
	sio := srv.Mount(r)
	defer sio.Close()
	defer srv.Manager.CloseAll()

	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/socket.io/?EIO=3&transport=polling")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	payload := string(body)
	assert.Contains(t, payload, `0{"sid":"`)
	assert.Contains(t, payload, `"pingInterval":`)
	assert.False(t, strings.HasPrefix(payload, "0{"), "handshake should use EIO3 payload framing, got %q", payload)
}
