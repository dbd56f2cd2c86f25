package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-video-sync/internal/alignment"
	"github.com/roman-kulish/flight-video-sync/internal/export"
	"github.com/roman-kulish/flight-video-sync/internal/motion"
	"github.com/roman-kulish/flight-video-sync/internal/storage"
	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

// Run builds a synchronized session, stores it and writes the exports
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	sessionConfig, err := config.Alignment()
	if err != nil {
		return err
	}

	in, err := ingest(ctx, config, logger)
	if err != nil {
		return err
	}

	channels, err := alignment.ChannelsFromStore(in.store, config.Telemetry.Topics())
	if err != nil {
		return fmt.Errorf("selecting telemetry channels: %w", err)
	}

	session, err := alignment.NewSession(sessionConfig, alignment.WithLogger(logger))
	if err != nil {
		return err
	}
	if err = session.Load(channels, in.frames); err != nil {
		return err
	}

	bundle, err := session.Run(ctx)
	if err != nil {
		return fmt.Errorf("synchronizing: %w", err)
	}

	logger.Info("session synchronized",
		slog.String("runId", bundle.RunID.String()),
		slog.String("window", bundle.Window.String()),
		slog.String("frames", humanize.Comma(int64(bundle.Len()))))

	dbPath, err := storeBundle(ctx, config, bundle, logger)
	if err != nil {
		return err
	}
	if stat, err := os.Stat(dbPath); err == nil {
		logger.Info("session stored", slog.String("path", dbPath), slog.String("size", humanize.Bytes(uint64(stat.Size()))))
	}

	return writeExports(&config.Export, bundle, in.store, &config.Telemetry, logger)
}

// Propose runs the motion detector on the video alone and prints the
// proposed window as configuration values
func Propose(ctx context.Context, config *Config, w io.Writer, logger *slog.Logger) error {
	frames, err := openVideo(ctx, &config.Video, logger)
	if err != nil {
		return err
	}

	detector := motion.NewDetector(
		motion.WithThreshold(config.Motion.Threshold),
		motion.WithTrailingStatic(config.Motion.TrailingStatic),
		motion.WithLogger(logger))

	proposal, err := detector.Detect(ctx, frames)
	if err != nil {
		return fmt.Errorf("detecting motion: %w", err)
	}

	if !proposal.Motion {
		_, err = fmt.Fprintln(w, "# no motion detected, the full video will be used")
		return err
	}

	start, end := proposal.Times(frames.FPS())
	_, err = fmt.Fprintf(w, "# %s at %.3f fps\nwindow:\n  videoStart: %s\n  videoEnd: %s\n",
		proposal, frames.FPS(), secondsDuration(start), secondsDuration(end))
	return err
}

func storeBundle(ctx context.Context, config *Config, bundle *alignment.Bundle, logger *slog.Logger) (dbPath string, err error) {
	store, dbPath, err := createStorage(&config.Storage)
	if err != nil {
		return "", fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		if cErr := store.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("closing storage: %w", cErr))
		}
	}()

	meta := storage.SessionMeta{
		VideoPath:      config.Video.Source(),
		FPS:            bundle.FPS,
		Stride:         config.Video.Stride,
		FrameStart:     bundle.Window.Frames.Start,
		FrameEnd:       bundle.Window.Frames.End,
		TelemetryStart: bundle.Window.Telemetry.Start,
		TelemetryEnd:   bundle.Window.Telemetry.End,
		Mode:           bundle.Mode.String(),
		FrameTime:      bundle.TimeUnit.String(),
	}

	sessionID, err := store.CreateSession(ctx, bundle.RunID, meta, config)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	if err = store.StoreBundle(ctx, sessionID, bundle); err != nil {
		return "", fmt.Errorf("storing session %d: %w", sessionID, err)
	}

	logger.Debug("bundle stored", slog.Int64("sessionId", sessionID))
	return dbPath, nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, string, error) {
	dbPath := config.DataDirectory
	if !filepath.IsAbs(dbPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, "", fmt.Errorf("checking storage directory: %w", err)
	}
	if !stat.IsDir() {
		return nil, "", fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("sync_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), dbPath, nil
}

func writeExports(config *ExportConfig, bundle *alignment.Bundle, store *telemetry.Store, tc *TelemetryConfig, logger *slog.Logger) error {
	title := fmt.Sprintf("Session %s", bundle.RunID)

	if config.CSV != "" {
		if err := writeFile(config.CSV, func(w io.Writer) error { return export.WriteCSV(w, bundle) }); err != nil {
			return fmt.Errorf("exporting CSV: %w", err)
		}
		logger.Info("CSV exported", slog.String("path", config.CSV))
	}

	if config.Plot != "" {
		if err := export.PlotTracks(bundle, title, config.Plot); err != nil {
			return fmt.Errorf("exporting plot: %w", err)
		}
		logger.Info("plot exported", slog.String("path", config.Plot))
	}

	if config.Chart != "" {
		subtitle := bundle.Window.String()
		if err := writeFile(config.Chart, func(w io.Writer) error { return export.WriteChart(w, bundle, title, subtitle) }); err != nil {
			return fmt.Errorf("exporting chart: %w", err)
		}
		logger.Info("chart exported", slog.String("path", config.Chart))
	}

	if config.Path != "" {
		table, err := store.Table(tc.AltitudeTopic)
		if err != nil {
			return fmt.Errorf("exporting path: %w", err)
		}

		switch err = export.PlotPath(table, config.Path); {
		case errors.Is(err, telemetry.ErrChannelNotFound), errors.Is(err, export.ErrNothingToPlot):
			logger.Warn(fmt.Sprintf("skipping path plot: %s", err))
		case err != nil:
			return fmt.Errorf("exporting path: %w", err)
		default:
			logger.Info("path exported", slog.String("path", config.Path))
		}
	}

	if config.TopicsDirectory != "" {
		if err := os.MkdirAll(config.TopicsDirectory, 0o755); err != nil {
			return fmt.Errorf("creating topics directory: %w", err)
		}
		if err := telemetry.WriteCSVDir(config.TopicsDirectory, store); err != nil {
			return fmt.Errorf("exporting topics: %w", err)
		}
		logger.Info("topics exported", slog.String("directory", config.TopicsDirectory))
	}

	return nil
}

func writeFile(path string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithError(f, &err)

	return write(f)
}

// closeWithError closes the closer and sets the error if it was nil
func closeWithError(c io.Closer, err *error) {
	if cErr := c.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func secondsDuration(s float64) Duration {
	return Duration(time.Duration(s * float64(time.Second)).Round(100 * time.Microsecond))
}
