package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
	"github.com/roman-kulish/flight-video-sync/internal/video"
)

// inputs are the decoded flight log and the opened frame source
type inputs struct {
	store  *telemetry.Store
	frames video.Source
}

// ingest decodes the telemetry and probes the video concurrently
func ingest(ctx context.Context, config *Config, logger *slog.Logger) (*inputs, error) {
	var in inputs

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.store, err = loadTelemetry(&config.Telemetry, logger)
		return err
	})
	g.Go(func() (err error) {
		in.frames, err = openVideo(ctx, &config.Video, logger)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &in, nil
}

func loadTelemetry(config *TelemetryConfig, logger *slog.Logger) (*telemetry.Store, error) {
	store, err := telemetry.ReadCSVDir(config.CSVDirectory)
	if err != nil {
		return nil, fmt.Errorf("reading telemetry: %w", err)
	}

	if config.NMEAFile != "" {
		table, err := readNMEAFile(config.NMEAFile, config.NMEATopic, logger)
		if err != nil {
			return nil, err
		}
		if err = store.Add(table); err != nil {
			return nil, fmt.Errorf("adding NMEA topic: %w", err)
		}
	}

	logger.Info("telemetry loaded",
		slog.String("directory", config.CSVDirectory),
		slog.Int("topics", len(store.Topics())))

	return store, nil
}

func readNMEAFile(path, topic string, logger *slog.Logger) (table *telemetry.Table, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening NMEA log: %w", err)
	}
	defer closeWithError(f, &err)

	table, stats, err := telemetry.ReadNMEA(f, topic)
	if err != nil {
		return nil, err
	}

	logger.Info("NMEA log decoded",
		slog.String("file", path),
		slog.String("lines", humanize.Comma(int64(stats.Lines))),
		slog.String("fixes", humanize.Comma(int64(stats.Fixes))),
		slog.Int("skipped", stats.Skipped),
		slog.Int("noFix", stats.NoFix),
		slog.Int("rollovers", stats.Rollovers))

	return table, nil
}

// openVideo opens the configured frame source and applies the stride
func openVideo(ctx context.Context, config *VideoConfig, logger *slog.Logger) (video.Source, error) {
	var (
		src video.Source
		err error
	)

	if config.FrameDirectory != "" {
		if src, err = video.NewDirSource(config.FrameDirectory, config.FPS); err != nil {
			return nil, fmt.Errorf("opening frame directory: %w", err)
		}
	} else {
		options := []func(s *video.FFmpegSource){
			video.WithLogger(logger),
			video.WithFrameCounting(config.CountFrames),
		}
		if config.FPS > 0 {
			options = append(options, video.WithFrameRate(config.FPS))
		}
		if config.FFmpeg != "" || config.FFprobe != "" {
			options = append(options, video.WithBinaries(config.FFmpeg, config.FFprobe))
		}

		if src, err = video.NewFFmpegSource(ctx, config.Path, options...); err != nil {
			return nil, fmt.Errorf("opening video: %w", err)
		}
	}

	if src, err = video.Stride(src, config.Stride); err != nil {
		return nil, err
	}

	logger.Info("video opened",
		slog.String("source", config.Source()),
		slog.String("frames", humanize.Comma(int64(src.Len()))),
		slog.Float64("fps", src.FPS()),
		slog.Int("stride", config.Stride))

	return src, nil
}
