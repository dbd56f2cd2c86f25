package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

var ErrInvalidFrameRate = errors.New("invalid frame rate")

// Publisher delivers a single encoded telemetry record
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

type replayOptions struct {
	speed  float64
	logger *slog.Logger
}

// WithSpeed scales the playback rate, 2 plays twice as fast
func WithSpeed(speed float64) func(o *replayOptions) {
	return func(o *replayOptions) {
		if speed > 0 {
			o.speed = speed
		}
	}
}

// WithLogger sets the logger used for progress reporting
func WithLogger(logger *slog.Logger) func(o *replayOptions) {
	return func(o *replayOptions) {
		o.logger = logger
	}
}

// Replay publishes one JSON record per frame, paced at the frame period.
// The first record is published immediately. It returns the number of
// records published, which is less than p.Len() when ctx is cancelled.
func Replay(ctx context.Context, p telemetry.Provider, fps float64, pub Publisher, options ...func(o *replayOptions)) (int, error) {
	if !(fps > 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFrameRate, fps)
	}

	o := replayOptions{
		speed:  1,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}
	for _, option := range options {
		option(&o)
	}

	period := time.Duration(float64(time.Second) / (fps * o.speed))
	if period <= 0 {
		period = time.Nanosecond
	}

	o.logger.Info("replay started",
		slog.String("records", humanize.Comma(int64(p.Len()))),
		slog.Duration("period", period))

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for i := 0; i < p.Len(); i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return i, ctx.Err()
			case <-ticker.C:
			}
		}

		payload, err := json.Marshal(p.At(i))
		if err != nil {
			return i, fmt.Errorf("encoding record %d: %w", i, err)
		}
		if err = pub.Publish(ctx, payload); err != nil {
			return i, fmt.Errorf("publishing record %d: %w", i, err)
		}
	}

	o.logger.Info("replay finished", slog.String("records", humanize.Comma(int64(p.Len()))))
	return p.Len(), nil
}
