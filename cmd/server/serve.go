package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/sketchdash/internal/ai"
	"github.com/kiliankoe/sketchdash/internal/ai/remote"
	"github.com/kiliankoe/sketchdash/internal/ai/stub"
	"github.com/kiliankoe/sketchdash/internal/api"
	"github.com/kiliankoe/sketchdash/internal/blob"
	"github.com/kiliankoe/sketchdash/internal/config"
	"github.com/kiliankoe/sketchdash/internal/game"
	"github.com/kiliankoe/sketchdash/internal/prompts"
	"github.com/kiliankoe/sketchdash/internal/sketches"
	"github.com/kiliankoe/sketchdash/internal/telemetry"
	"github.com/kiliankoe/sketchdash/internal/ws"
	staticserver "github.com/kiliankoe/sketchdash/static"
)

func newRecognizer(cfg *config.Config) ai.Recognizer {
	if cfg.Recognizer == "remote" {
		return remote.New(cfg.RecognizerURL, cfg.RecognizerTimeout)
	}
	return stub.New(cfg.RecognizerLatency)
}

func serve(ctx context.Context, cfg *config.Config) error {
	shutdownMetrics, err := telemetry.Setup(ctx, "sketchdash", cfg.MetricsEndpoint, cfg.MetricsInterval)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			log.Warn().Err(err).Msg("failed to flush metrics")
		}
	}()
	if cfg.MetricsEndpoint != "" {
		log.Info().Str("endpoint", cfg.MetricsEndpoint).Msg("metrics export enabled")
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.SeedPrompts {
		if n, err := db.SeedPrompts(ctx, prompts.DefaultWords); err != nil {
			log.Error().Err(err).Msg("failed to seed prompts")
		} else if n > 0 {
			log.Info().Int("added", n).Msg("prompts seeded")
		}
	}

	blobs, err := blob.NewDir(cfg.BlobDir, cfg.PublicBaseURL)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	loc := cfg.Location()
	promptSvc := prompts.NewService(db, clock, loc)
	sketchSvc := sketches.NewService(db, blobs, clock, loc)
	recognizer := newRecognizer(cfg)

	rm := game.NewManager(promptSvc, recognizer, game.WithSaver(sketchSvc))
	if cfg.ExportEnabled {
		rm.ExportFile = cfg.ExportFile
	}
	defer rm.CloseAll()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestLogger())

	(&api.Server{
		Prompts:    promptSvc,
		Sketches:   sketchSvc,
		Recognizer: recognizer,
		Blobs:      blobs,
		Ping:       db.Ping,
		AdminUser:  cfg.AdminUser,
		AdminPass:  cfg.AdminPass,
	}).Register(r)

	sock := ws.New(rm, clock)
	io := sock.Mount(r)
	defer io.Close()

	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("db", cfg.DBDriver).Str("recognizer", cfg.Recognizer).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
