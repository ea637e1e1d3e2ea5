// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/klangbox/klangbox/internal/app/association"
	"github.com/klangbox/klangbox/internal/app/control"
	"github.com/klangbox/klangbox/internal/app/notification"
	"github.com/klangbox/klangbox/internal/domain/tag"
	"github.com/klangbox/klangbox/internal/infra/config"
	"github.com/klangbox/klangbox/internal/infra/hardware"
	"github.com/klangbox/klangbox/internal/infra/logger"
	"github.com/klangbox/klangbox/internal/infra/store"
)

var (
	app        = kingpin.New("klangboxd", "NFC-triggered audio playback backend")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. A separate function ensures
// defer statements fire even when returning with an error.
func run(cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()

	reader, err := hardware.NewFromConfig(cfg.Hardware)
	if err != nil {
		return errors.Wrap(err, "create hardware adapter")
	}

	assoc := association.NewService(st, st)
	events := notification.NewDispatcher()
	defer events.Close()

	mgr := control.NewManager(reader, assoc, events, control.Config{
		SweepInterval:  cfg.CleanupInterval(),
		DefaultTimeout: cfg.DefaultTimeout(),
		TagCooldown:    cfg.TagCooldown(),
		QueueSize:      cfg.Association.QueueSize,
	})

	// The playback coordinator attaches here. Until the audio backend
	// is wired in, resolve the playlist and log the trigger.
	mgr.RegisterTagDetectedCallback(func(uid string) {
		id, err := tag.Parse(uid)
		if err != nil {
			zlog.Warn().Msgf("unreadable tag uid: uid=%q err=%v", uid, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		p, err := st.FindByNfcTag(ctx, id.UID())
		if errors.Is(err, store.ErrPlaylistNotFound) {
			zlog.Info().Msgf("tag has no playlist binding: uid=%s", uid)
			return
		}
		if err != nil {
			zlog.Error().Msgf("playlist lookup failed: uid=%s err=%v", uid, err)
			return
		}
		zlog.Info().Msgf("playback trigger: uid=%s playlist_id=%s name=%s", uid, p.ID, p.Name)
	})

	mgr.RegisterAssociationCallback(func(result association.DetectionResult) {
		zlog.Debug().Msgf("association event: action=%s uid=%s session_id=%s", result.Action, result.TagID, result.SessionID)
	})

	ctx := context.Background()
	if err := mgr.Start(ctx); err != nil {
		return errors.Wrap(err, "start control manager")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zlog.Info().Msgf("received signal %s, shutting down", sig)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.Stop(stopCtx); err != nil {
		return errors.Wrap(err, "stop control manager")
	}
	return nil
}
