package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-video-sync/internal/overlay"
	"github.com/roman-kulish/flight-video-sync/internal/storage"
	"github.com/roman-kulish/flight-video-sync/internal/video"
)

const progressEvery = 100

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return renderSession(ctx, store, config, logger)
}

func renderSession(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (err error) {
	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading session %d: %w", config.SessionID, err)
	}

	frames, err := openFrames(ctx, session, config, video.WithLogger(logger))
	if err != nil {
		return err
	}

	lo, hi := renderRange(config, frames.Len())
	if lo >= hi {
		return fmt.Errorf("nothing to render in [%d, %d) of %d frames", lo, hi, frames.Len())
	}
	if frames, err = video.SubRange(frames, lo, hi); err != nil {
		return err
	}

	logger.Info("rendering session",
		slog.String("runId", session.RunID.String()),
		slog.String("video", session.VideoPath),
		slog.Int("from", lo),
		slog.Int("to", hi),
		slog.String("frames", humanize.Comma(int64(hi-lo))))

	rows, err := store.ReadRows(ctx, session.ID, storage.WithIndexRange(lo, hi))
	if err != nil {
		return err
	}
	defer closeWithError(rows, &err)

	renderer, err := overlay.NewRenderer(overlay.Config{
		FontSize: config.FontSize,
		Progress: config.Progress,
	})
	if err != nil {
		return err
	}
	defer closeWithError(renderer, &err)

	reader, err := frames.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening frames: %w", err)
	}
	defer closeWithError(reader, &err)

	var rendered int
	for rows.Next(ctx) {
		row := rows.Current()

		if !reader.Next(ctx) {
			if err = reader.Error(); err != nil {
				return fmt.Errorf("reading frame %d: %w", row.Index, err)
			}
			return fmt.Errorf("video ended before frame %d", row.Index)
		}

		frame := reader.Current()
		if frame.Index+lo != row.Index {
			return fmt.Errorf("frame %d is paired with row %d", frame.Index+lo, row.Index)
		}

		img, err := renderer.Render(frame, row, session.NumFrames)
		if err != nil {
			return fmt.Errorf("rendering frame %d: %w", row.Index, err)
		}
		path, err := overlay.WriteFile(config.OutputDir, row.Index, img, config.Format)
		if err != nil {
			return err
		}

		rendered++
		logger.Debug("frame rendered", slog.String("path", path))
		if rendered%progressEvery == 0 {
			logger.Info(fmt.Sprintf("rendered %s of %s frames", humanize.Comma(int64(rendered)), humanize.Comma(int64(hi-lo))))
		}
	}
	if err = rows.Error(); err != nil {
		return fmt.Errorf("reading rows: %w", err)
	}

	logger.Info("session rendered",
		slog.String("frames", humanize.Comma(int64(rendered))),
		slog.String("output", config.OutputDir))
	return nil
}

// closeWithError closes the closer and sets the error if it was nil
func closeWithError(c interface{ Close() error }, err *error) {
	if cErr := c.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
