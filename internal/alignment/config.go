package alignment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roman-kulish/flight-video-sync/internal/motion"
	"github.com/roman-kulish/flight-video-sync/internal/resample"
	"github.com/roman-kulish/flight-video-sync/internal/window"
)

// FrameTime selects the unit of the bundle's frame-time track
type FrameTime int

const (
	// FrameUnits numbers frames 0, 1, 2, ...
	FrameUnits FrameTime = iota

	// Seconds applies the frame rate, i / fps
	Seconds
)

func (f FrameTime) String() string {
	switch f {
	case FrameUnits:
		return "frames"
	case Seconds:
		return "seconds"
	default:
		return fmt.Sprintf("FrameTime(%d)", int(f))
	}
}

// ParseFrameTime parses "frames" or "seconds", the empty string selects FrameUnits
func ParseFrameTime(s string) (FrameTime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "frames":
		return FrameUnits, nil
	case "seconds":
		return Seconds, nil
	default:
		return 0, fmt.Errorf("unknown frame time unit '%s'", s)
	}
}

// Config is the explicit configuration of a Session. Unset bounds are
// resolved by the session: telemetry bounds default to the full channel,
// video bounds are proposed by the motion detector.
type Config struct {
	TelemetryStart *int     // First attitude sample index
	TelemetryEnd   *int     // Attitude sample index past the last one
	VideoStart     *float64 // Seconds from the start of the video
	VideoEnd       *float64 // Seconds from the start of the video

	MotionThreshold float64
	TrailingStatic  int

	Mode      resample.Mode
	FrameTime FrameTime
}

// DefaultConfig returns a configuration with the detector defaults and no explicit window
func DefaultConfig() Config {
	return Config{
		MotionThreshold: motion.DefaultThreshold,
		TrailingStatic:  motion.DefaultTrailingStatic,
		Mode:            resample.ModeIndex,
		FrameTime:       FrameUnits,
	}
}

func (c Config) Validate() error {
	if c.TelemetryStart != nil && *c.TelemetryStart < 0 {
		return fmt.Errorf("alignment.Config: telemetry start must not be negative: %d", *c.TelemetryStart)
	}
	if c.TelemetryEnd != nil && *c.TelemetryEnd <= 0 {
		return fmt.Errorf("alignment.Config: telemetry end must be positive: %w: %d", window.ErrEmptySyncWindow, *c.TelemetryEnd)
	}
	if c.TelemetryStart != nil && c.TelemetryEnd != nil && *c.TelemetryEnd <= *c.TelemetryStart {
		return fmt.Errorf("alignment.Config: telemetry end (%d) must be after start (%d): %w", *c.TelemetryEnd, *c.TelemetryStart, window.ErrEmptySyncWindow)
	}

	if c.VideoStart != nil && *c.VideoStart < 0 {
		return fmt.Errorf("alignment.Config: video start must not be negative: %v", *c.VideoStart)
	}
	if c.VideoEnd != nil && *c.VideoEnd <= 0 {
		return fmt.Errorf("alignment.Config: video end must be positive: %w: %v", window.ErrEmptySyncWindow, *c.VideoEnd)
	}
	if c.VideoStart != nil && c.VideoEnd != nil && *c.VideoEnd <= *c.VideoStart {
		return fmt.Errorf("alignment.Config: video end (%v) must be after start (%v): %w", *c.VideoEnd, *c.VideoStart, window.ErrEmptySyncWindow)
	}

	if c.MotionThreshold < 0 {
		return errors.New("alignment.Config: motion threshold must not be negative")
	}
	if c.TrailingStatic < 0 {
		return errors.New("alignment.Config: trailing static frames must not be negative")
	}

	switch c.Mode {
	case resample.ModeIndex, resample.ModeTime:
	default:
		return fmt.Errorf("alignment.Config: unsupported resample mode %s", c.Mode)
	}

	switch c.FrameTime {
	case FrameUnits, Seconds:
	default:
		return fmt.Errorf("alignment.Config: unsupported frame time unit %s", c.FrameTime)
	}

	return nil
}

// hasVideoBounds reports whether the video window is configured explicitly
func (c Config) hasVideoBounds() bool {
	return c.VideoStart != nil || c.VideoEnd != nil
}
