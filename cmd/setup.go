package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/faceservice"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

// loadConfig loads the configuration and applies global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
}

// openLedgerStore connects the configured ledger backend. The returned close
// function is never nil.
func openLedgerStore(ctx context.Context, cfg *config.Config, sessionID uuid.UUID) (ledger.Store, func(), error) {
	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, func() {}, err
		}
		return postgres.NewLedgerStore(pool, sessionID), func() { _ = pool.Close() }, nil

	case config.BackendMariaDB:
		pool, err := mariadb.NewPool(cfg.MariaDB.DSN)
		if err != nil {
			return nil, func() {}, err
		}
		if err := pool.EnsureSchema(ctx); err != nil {
			_ = pool.Close()
			return nil, func() {}, err
		}
		return mariadb.NewLedgerStore(pool, sessionID), func() { _ = pool.Close() }, nil

	default:
		return ledger.NewCSVStore(cfg.Ledger.File), func() {}, nil
	}
}

// ledgerLocation describes where attendance goes, for log output.
func ledgerLocation(cfg *config.Config) string {
	if cfg.Ledger.Backend == config.BackendCSV {
		return cfg.Ledger.File
	}
	return cfg.Ledger.Backend
}

// newGalleryProgressBar creates a progress bar for encoding reference images.
func newGalleryProgressBar(count int) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription("Encoding known faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// buildGallery encodes the known faces directory through the face service.
func buildGallery(ctx context.Context, cfg *config.Config, client *faceservice.Client, log logrus.FieldLogger, showProgress bool) (*facematch.Gallery, error) {
	opts := facematch.BuildOptions{Tolerance: cfg.Gallery.Tolerance, Logger: log}

	if showProgress {
		if files, err := facematch.ListReferenceImages(cfg.Gallery.Dir); err == nil && len(files) > 0 {
			bar := newGalleryProgressBar(len(files))
			opts.Progress = func() { _ = bar.Add(1) }
			defer func() { _ = bar.Finish() }()
		}
	}

	return facematch.BuildGallery(ctx, cfg.Gallery.Dir, client, opts)
}

// loadGallery loads the exported gallery index when configured and present,
// and otherwise encodes the known faces directory.
func loadGallery(ctx context.Context, cfg *config.Config, client *faceservice.Client, log logrus.FieldLogger) (*facematch.Gallery, error) {
	if cfg.Gallery.IndexPath != "" {
		g, err := facematch.LoadGallery(cfg.Gallery.IndexPath, cfg.Gallery.Tolerance)
		if err == nil {
			log.WithFields(logrus.Fields{"path": cfg.Gallery.IndexPath, "references": g.Len()}).Info("Loaded gallery index")
			return g, nil
		}
		log.WithError(err).Warn("Gallery index unavailable, encoding known faces directory")
	}

	log.WithField("dir", cfg.Gallery.Dir).Info("Encoding known faces")
	g, err := buildGallery(ctx, cfg, client, log, false)
	if err != nil {
		return nil, err
	}
	log.WithField("people", len(g.Labels())).Info("Known faces loaded")
	return g, nil
}
