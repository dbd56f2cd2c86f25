package app

import (
	"context"
	"fmt"
	"os"

	"github.com/roman-kulish/flight-video-sync/internal/storage"
	"github.com/roman-kulish/flight-video-sync/internal/video"
)

// openFrames re-opens the synchronized frames of a stored session: the
// video or frame directory, the stride and the window.
func openFrames(ctx context.Context, session *storage.Session, config *Config, options ...func(s *video.FFmpegSource)) (video.Source, error) {
	stat, err := os.Stat(session.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("video source: %w", err)
	}

	stride := max(session.Stride, 1)
	sourceFPS := session.FPS * float64(stride)

	var src video.Source
	if stat.IsDir() {
		src, err = video.NewDirSource(session.VideoPath, sourceFPS)
	} else {
		options = append(options, video.WithFrameRate(sourceFPS))
		if config.FFmpeg != "" || config.FFprobe != "" {
			options = append(options, video.WithBinaries(config.FFmpeg, config.FFprobe))
		}
		src, err = video.NewFFmpegSource(ctx, session.VideoPath, options...)
	}
	if err != nil {
		return nil, err
	}

	if src, err = video.Stride(src, stride); err != nil {
		return nil, err
	}

	if src, err = video.SubRange(src, session.FrameStart, session.FrameEnd); err != nil {
		return nil, fmt.Errorf("session window: %w", err)
	}
	if src.Len() != session.NumFrames {
		return nil, fmt.Errorf("session %d has %d rows but the window holds %d frames", session.ID, session.NumFrames, src.Len())
	}

	return src, nil
}

// renderRange returns the part of the window selected on the command line
func renderRange(config *Config, n int) (lo, hi int) {
	lo, hi = 0, n
	if config.From != nil {
		lo = min(*config.From, n)
	}
	if config.To != nil {
		hi = min(*config.To, n)
	}
	return lo, hi
}
