package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kiliankoe/sketchdash/internal/config"
	"github.com/kiliankoe/sketchdash/internal/prompts"
	"github.com/kiliankoe/sketchdash/internal/store/sqlstore"
)

func newRootCmd() *cobra.Command {
	var port string

	loadConfig := func() (*config.Config, error) {
		cfg, err := loadConfig(port)
		if err != nil {
			return nil, err
		}
		setupLogging(cfg)
		return cfg, nil
	}

	cmd := &cobra.Command{
		Use:           "sketchdash",
		Short:         "SketchDash - draw the daily word before the AI gives up",
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.PersistentFlags().StringVarP(&port, "port", "p", "", "port to listen on (overrides PORT)")
	cmd.SetVersionTemplate("SketchDash {{.Version}}\n")
	cmd.CompletionOptions.HiddenDefaultCmd = true

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return db.Close()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed [word...]",
		Short: "Add prompts (the default word list when none are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			words := args
			if len(words) == 0 {
				words = prompts.DefaultWords
			}
			n, err := db.SeedPrompts(cmd.Context(), words)
			if err != nil {
				return fmt.Errorf("seed prompts: %w", err)
			}
			log.Info().Int("added", n).Msg("prompts seeded")
			return nil
		},
	})

	return cmd
}

// loadConfig applies the --port override before validation, so values
// derived from the port (the public base URL) follow the flag.
func loadConfig(port string) (*config.Config, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, err
	}
	if port != "" {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

// openStore connects and migrates the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*sqlstore.DB, error) {
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	db, err := sqlstore.Open(openCtx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(openCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
