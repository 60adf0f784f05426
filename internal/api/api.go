package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/sketchdash/internal/ai"
	"github.com/kiliankoe/sketchdash/internal/blob"
	"github.com/kiliankoe/sketchdash/internal/prompts"
	"github.com/kiliankoe/sketchdash/internal/sketches"
)

type PromptService interface {
	Daily(ctx context.Context) (*prompts.Prompt, error)
	Add(ctx context.Context, word, category string) (*prompts.Prompt, error)
	List(ctx context.Context) ([]prompts.Prompt, error)
}

type SketchService interface {
	Save(ctx context.Context, in sketches.SaveInput) (*sketches.Sketch, error)
	TopTime(ctx context.Context) (float64, error)
	Recent(ctx context.Context) (*sketches.Recent, error)
	Gallery(ctx context.Context) ([]sketches.Sketch, error)
	DailyLeaderboard(ctx context.Context) ([]sketches.Sketch, error)
}

// BlobReader serves stored sketch images.
type BlobReader interface {
	Open(name string) (*blob.Object, error)
}

// Server holds the HTTP handlers. Nil collaborators leave their routes
// unregistered.
type Server struct {
	Prompts    PromptService
	Sketches   SketchService
	Recognizer ai.Recognizer
	Blobs      BlobReader
	// Ping reports whether the database is reachable.
	Ping func(ctx context.Context) error

	AdminUser string
	AdminPass string
}

// RequestLogger logs every request except the socket.io polling noise.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		ev := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}

// Register mounts all routes on r.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api")
	if s.Prompts != nil {
		api.GET("/daily-prompt", s.dailyPrompt)
	}
	if s.Recognizer != nil {
		api.POST("/recognize", s.recognize)
	}
	if s.Sketches != nil {
		api.POST("/save-sketch", s.saveSketch)
		api.GET("/top-time", s.topTime)
		api.GET("/recent-sketches", s.recentSketches)
		api.GET("/gallery", s.gallery)
		api.GET("/leaderboard/daily", s.dailyLeaderboard)
	}
	api.GET("/share/qr", s.shareQR)

	if s.Blobs != nil {
		r.GET("/sketches/:name", s.serveSketch)
	}

	if s.AdminUser != "" && s.AdminPass != "" && s.Prompts != nil {
		admin := api.Group("/admin", gin.BasicAuth(gin.Accounts{s.AdminUser: s.AdminPass}))
		admin.GET("/prompts", s.listPrompts)
		admin.POST("/prompts", s.addPrompt)
	}
}

// fail logs err and answers with a fixed message.
func fail(c *gin.Context, status int, message string, err error) {
	if err != nil {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func (s *Server) health(c *gin.Context) {
	if s.Ping != nil {
		if err := s.Ping(c.Request.Context()); err != nil {
			log.Error().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "time": time.Now().UTC()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
}
