package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/sketchdash/internal/canvas"
	"github.com/kiliankoe/sketchdash/internal/game"
)

// Conn is the part of a socket.io connection the server uses.
type Conn interface {
	ID() string
	Emit(event string, v ...any)
}

type ConnCtx struct {
	Key string
}

type pointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type snapshotPayload struct {
	ImageData string `json:"imageData"`
}

// Server binds one game session to every socket connection.
type Server struct {
	Manager *game.Manager
	clock   clockwork.Clock
}

func New(m *game.Manager, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{Manager: m, clock: clock}
}

// Mount attaches the Socket.IO server with its handlers to the Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{Key: s.ID()})
		srv.Connect(s)
		return nil
	})

	io.OnEvent("/", "game:start", func(s socketio.Conn) map[string]any {
		return srv.Start(s)
	})

	io.OnEvent("/", "game:sync", func(s socketio.Conn) map[string]any {
		return srv.Sync(s)
	})

	io.OnEvent("/", "canvas:begin", func(s socketio.Conn, p pointPayload) {
		srv.Stroke(s, "begin", p)
	})

	io.OnEvent("/", "canvas:extend", func(s socketio.Conn, p pointPayload) {
		srv.Stroke(s, "extend", p)
	})

	io.OnEvent("/", "canvas:end", func(s socketio.Conn) {
		srv.Stroke(s, "end", pointPayload{})
	})

	io.OnEvent("/", "canvas:snapshot", func(s socketio.Conn, p snapshotPayload) map[string]any {
		return srv.Snapshot(s, p)
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		if s == nil {
			log.Error().Err(e).Msg("socket error")
			return
		}
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})

	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		srv.Disconnect(s)
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket server stopped")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

// Connect opens the connection's session and starts pushing its state.
func (srv *Server) Connect(c Conn) {
	sess := srv.Manager.Open(c.ID())
	sess.Subscribe(func(st game.State) {
		c.Emit("game:state", game.Present(st, srv.clock.Now()))
	})
	log.Info().Str("sid", c.ID()).Msg("socket connected")
	c.Emit("game:state", game.Present(sess.State(), srv.clock.Now()))
}

// Disconnect tears the connection's session down.
func (srv *Server) Disconnect(c Conn) {
	srv.Manager.Close(c.ID())
}

func (srv *Server) Start(c Conn) map[string]any {
	sess, err := srv.Manager.Get(c.ID())
	if err != nil {
		return srv.err(c, "session_not_found", "Session not found")
	}
	if err := sess.Start(context.Background()); err != nil {
		switch {
		case errors.Is(err, game.ErrSessionActive):
			return srv.err(c, "session_active", "A game is already running")
		case errors.Is(err, game.ErrSessionClosed):
			return srv.err(c, "session_closed", "Session closed")
		}
		log.Error().Err(err).Str("sid", c.ID()).Msg("game:start failed")
		return srv.err(c, "internal", "Failed to start game")
	}
	return map[string]any{"ok": true}
}

// Sync re-sends the current state to the caller.
func (srv *Server) Sync(c Conn) map[string]any {
	sess, err := srv.Manager.Get(c.ID())
	if err != nil {
		return srv.err(c, "session_not_found", "Session not found")
	}
	c.Emit("game:state", game.Present(sess.State(), srv.clock.Now()))
	return map[string]any{"ok": true}
}

// Stroke forwards drawing input to the session canvas. Input outside of
// play is dropped by the canvas itself.
func (srv *Server) Stroke(c Conn, kind string, p pointPayload) {
	sess, err := srv.Manager.Get(c.ID())
	if err != nil {
		return
	}
	cv := sess.Canvas()
	switch kind {
	case "begin":
		cv.BeginStroke(canvas.Point{X: p.X, Y: p.Y})
	case "extend":
		cv.ExtendStroke(canvas.Point{X: p.X, Y: p.Y})
	case "end":
		cv.EndStroke()
	}
}

// Snapshot accepts a client-rendered raster in place of server-side strokes.
func (srv *Server) Snapshot(c Conn, p snapshotPayload) map[string]any {
	sess, err := srv.Manager.Get(c.ID())
	if err != nil {
		return srv.err(c, "session_not_found", "Session not found")
	}
	png, err := canvas.DecodeDataURL(p.ImageData)
	if err != nil {
		return srv.err(c, "bad_request", "Invalid image data")
	}
	sess.PushSnapshot(png)
	return map[string]any{"ok": true}
}

func (srv *Server) err(c Conn, code, message string) map[string]any {
	c.Emit("error", map[string]any{"code": code, "message": message})
	return map[string]any{"error": message}
}
