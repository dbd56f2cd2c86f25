package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roman-kulish/flight-video-sync/internal/publish"
	"github.com/roman-kulish/flight-video-sync/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	pub, err := publish.NewMQTTPublisher(config.MQTT, publish.WithMQTTLogger(logger))
	if err != nil {
		return err
	}
	defer pub.Close()

	return replay(ctx, store, pub, config, logger)
}

// replay publishes the stored rows of a session at its frame rate
func replay(ctx context.Context, store storage.Store, pub publish.Publisher, config *Config, logger *slog.Logger) error {
	reader, err := store.ReadRows(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("reading session %d: %w", config.SessionID, err)
	}
	defer reader.Close()

	session := reader.Session()

	rows, err := storage.CollectRows(ctx, reader)
	if err != nil {
		return err
	}

	logger.Info("replaying session",
		slog.String("runId", session.RunID.String()),
		slog.Float64("fps", session.FPS),
		slog.Float64("speed", config.Speed))

	n, err := publish.Replay(ctx, rows, session.FPS, pub,
		publish.WithSpeed(config.Speed),
		publish.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("replay stopped after %d of %d frames: %w", n, rows.Len(), err)
	}
	return nil
}
