package alignment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/flight-video-sync/internal/motion"
	"github.com/roman-kulish/flight-video-sync/internal/resample"
	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
	"github.com/roman-kulish/flight-video-sync/internal/video"
	"github.com/roman-kulish/flight-video-sync/internal/window"
)

// ErrInvalidTransition is returned when a session operation is called in the wrong state
var ErrInvalidTransition = errors.New("invalid session state transition")

// State of a Session
type State int

const (
	Uninitialized State = iota
	ChannelsLoaded
	WindowResolved
	Resampled
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ChannelsLoaded:
		return "channels-loaded"
	case WindowResolved:
		return "window-resolved"
	case Resampled:
		return "resampled"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// WithLogger sets the logger for the session and its motion detector
func WithLogger(logger *slog.Logger) func(s *Session) {
	return func(s *Session) {
		s.logger = logger
	}
}

// tracks holds the resampled values between Resample and Bundle
type tracks struct {
	roll, pitch, yaw, altitude, frameTime []float64
	frames                                video.Source
}

// Session aligns telemetry channels with a frame source. Operations advance
// it through Uninitialized, ChannelsLoaded, WindowResolved, Resampled and
// Ready. A failing operation leaves the state unchanged.
type Session struct {
	cfg    Config
	logger *slog.Logger

	state State

	inputs Inputs
	frames video.Source

	window   window.Window
	proposal *motion.Proposal
	tracks   *tracks
	bundle   *Bundle
}

// NewSession validates the config and creates an Uninitialized session
func NewSession(cfg Config, options ...func(s *Session)) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := Session{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

func (s *Session) State() State {
	return s.state
}

// Window returns the resolved sync window
func (s *Session) Window() (window.Window, error) {
	if s.state < WindowResolved {
		return window.Window{}, fmt.Errorf("%w: window is not resolved in state %s", ErrInvalidTransition, s.state)
	}
	return s.window, nil
}

// Proposal returns the motion detector output if the detector ran
func (s *Session) Proposal() (motion.Proposal, bool) {
	if s.proposal == nil {
		return motion.NoMotion, false
	}
	return *s.proposal, true
}

// Load supplies the telemetry channels and the frame source. Altitude, and
// pitch and yaw when their length differs, are mapped onto the roll samples
// so a single telemetry index addresses every channel.
func (s *Session) Load(inputs Inputs, frames video.Source) error {
	if err := s.expect(Uninitialized); err != nil {
		return err
	}
	if frames == nil {
		return errors.New("frame source is required")
	}
	if !(frames.FPS() > 0) {
		return fmt.Errorf("%w: %v", video.ErrInvalidFPS, frames.FPS())
	}
	if inputs.Roll.Len() == 0 {
		return fmt.Errorf("reference channel %q: %w", inputs.Roll.Name, resample.ErrEmptySourceChannel)
	}

	ref := inputs.Roll
	aligned := Inputs{Roll: ref}

	for _, c := range []struct {
		dst *telemetry.Channel
		ch  telemetry.Channel
	}{
		{&aligned.Pitch, inputs.Pitch},
		{&aligned.Yaw, inputs.Yaw},
		{&aligned.Altitude, inputs.Altitude},
	} {
		if c.ch.Len() == ref.Len() && c.ch.Kind == telemetry.CircularAngle {
			*c.dst = c.ch
			continue
		}

		var err error
		if *c.dst, err = resample.Onto(c.ch, ref, s.cfg.Mode); err != nil {
			return err
		}
	}

	s.inputs = aligned
	s.frames = frames
	s.state = ChannelsLoaded

	s.logger.Info("channels loaded",
		slog.String("samples", humanize.Comma(int64(ref.Len()))),
		slog.String("altitudeSamples", humanize.Comma(int64(inputs.Altitude.Len()))),
		slog.String("frames", humanize.Comma(int64(frames.Len()))),
		slog.Float64("fps", frames.FPS()))

	return nil
}

// ResolveWindow fixes the sync window. Configured video bounds take
// precedence, otherwise the motion detector proposes them.
func (s *Session) ResolveWindow(ctx context.Context) error {
	if err := s.expect(ChannelsLoaded); err != nil {
		return err
	}

	tr := window.Range{Start: 0, End: s.inputs.Roll.Len()}
	if s.cfg.TelemetryStart != nil {
		tr.Start = *s.cfg.TelemetryStart
	}
	if s.cfg.TelemetryEnd != nil {
		tr.End = *s.cfg.TelemetryEnd
	}
	tr, err := window.Resolve(tr, s.inputs.Roll.Len())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	var proposal *motion.Proposal

	fr := window.Range{Start: 0, End: s.frames.Len()}
	if s.cfg.hasVideoBounds() {
		fps := s.frames.FPS()
		if s.cfg.VideoStart != nil {
			fr.Start = window.FrameIndex(*s.cfg.VideoStart, fps)
		}
		if s.cfg.VideoEnd != nil {
			fr.End = window.FrameIndex(*s.cfg.VideoEnd, fps)
		}
	} else {
		detector := motion.NewDetector(
			motion.WithThreshold(s.cfg.MotionThreshold),
			motion.WithTrailingStatic(s.cfg.TrailingStatic),
			motion.WithLogger(s.logger))

		p, err := detector.Detect(ctx, s.frames)
		if err != nil {
			return fmt.Errorf("detecting motion: %w", err)
		}
		proposal = &p

		if p.Motion {
			fr = window.Range{Start: p.Start, End: p.End}
		} else {
			s.logger.Warn("no motion detected, using the full video")
		}
	}

	observed := 0
	if proposal != nil {
		observed = proposal.Frames
	} else if observed, err = video.Count(ctx, s.frames); err != nil {
		return fmt.Errorf("counting frames: %w", err)
	}

	frames, err := s.decodedFrames(observed)
	if err != nil {
		return err
	}
	if fr, err = window.Resolve(fr, frames.Len()); err != nil {
		return fmt.Errorf("video: %w", err)
	}

	s.frames = frames
	s.window = window.Window{Telemetry: tr, Frames: fr}
	s.proposal = proposal
	s.state = WindowResolved

	s.logger.Info("sync window resolved", slog.String("window", s.window.String()))

	return nil
}

// decodedFrames limits the frame source to the frames both reported and
// actually decoded, so the bundle length matches every later pass
func (s *Session) decodedFrames(observed int) (video.Source, error) {
	reported := s.frames.Len()
	if observed == reported {
		return s.frames, nil
	}

	s.logger.Warn("frame source length differs from decoded frames",
		slog.String("reported", humanize.Comma(int64(reported))),
		slog.String("decoded", humanize.Comma(int64(observed))))

	n := min(observed, reported)
	if n == 0 {
		return nil, fmt.Errorf("video: %w: %d frames reported, %d decoded", window.ErrEmptySyncWindow, reported, observed)
	}
	return video.SubRange(s.frames, 0, n)
}

// Resample cuts the channels and frames to the window and maps every channel
// onto the trimmed frame count
func (s *Session) Resample(ctx context.Context) error {
	if err := s.expect(WindowResolved); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	channels, err := window.CutChannels(s.window.Telemetry, s.inputs.Roll, s.inputs.Pitch, s.inputs.Yaw, s.inputs.Altitude)
	if err != nil {
		return err
	}

	frames, _, err := window.CutFrames(s.frames, s.window.Frames)
	if err != nil {
		return err
	}

	n := frames.Len()
	values := make([][]float64, len(channels))
	for i, ch := range channels {
		if values[i], err = resample.Channel(ch, n, s.cfg.Mode); err != nil {
			return err
		}
	}

	frameTime := make([]float64, n)
	for i := range frameTime {
		switch s.cfg.FrameTime {
		case Seconds:
			frameTime[i] = float64(i) / frames.FPS()
		default:
			frameTime[i] = float64(i)
		}
	}

	s.tracks = &tracks{
		roll:      values[0],
		pitch:     values[1],
		yaw:       values[2],
		altitude:  values[3],
		frameTime: frameTime,
		frames:    frames,
	}
	s.state = Resampled

	s.logger.Info("channels resampled",
		slog.String("frames", humanize.Comma(int64(n))),
		slog.String("samples", humanize.Comma(int64(s.window.Telemetry.Len()))),
		slog.String("mode", s.cfg.Mode.String()))

	return nil
}

// Bundle finalizes the session. Once Ready it keeps returning the same bundle.
func (s *Session) Bundle() (*Bundle, error) {
	if s.state == Ready {
		return s.bundle, nil
	}
	if err := s.expect(Resampled); err != nil {
		return nil, err
	}

	t := s.tracks
	s.bundle = &Bundle{
		RunID:     uuid.New(),
		roll:      t.roll,
		pitch:     t.pitch,
		yaw:       t.yaw,
		altitude:  t.altitude,
		frameTime: t.frameTime,
		Frames:    t.frames,
		FPS:       t.frames.FPS(),
		Window:    s.window,
		Mode:      s.cfg.Mode,
		TimeUnit:  s.cfg.FrameTime,
	}
	s.state = Ready

	s.logger.Info("bundle ready", slog.String("runId", s.bundle.RunID.String()))

	return s.bundle, nil
}

// Reset returns a loaded session to ChannelsLoaded, dropping the window,
// the resampled tracks and the bundle. The config may be replaced to
// resolve a different window.
func (s *Session) Reset(cfg ...Config) error {
	if s.state == Uninitialized {
		return fmt.Errorf("%w: reset of an %s session", ErrInvalidTransition, s.state)
	}
	if len(cfg) > 0 {
		if err := cfg[0].Validate(); err != nil {
			return err
		}
		if cfg[0].Mode != s.cfg.Mode {
			return fmt.Errorf("alignment.Config: resample mode cannot change after loading channels")
		}
		s.cfg = cfg[0]
	}

	s.window = window.Window{}
	s.proposal = nil
	s.tracks = nil
	s.bundle = nil
	s.state = ChannelsLoaded

	return nil
}

// Run performs every remaining transition up to Ready
func (s *Session) Run(ctx context.Context) (*Bundle, error) {
	steps := []struct {
		state State
		fn    func(ctx context.Context) error
	}{
		{ChannelsLoaded, s.ResolveWindow},
		{WindowResolved, s.Resample},
	}

	if s.state == Uninitialized {
		return nil, fmt.Errorf("%w: channels are not loaded", ErrInvalidTransition)
	}

	for _, step := range steps {
		if s.state != step.state {
			continue
		}
		if err := step.fn(ctx); err != nil {
			return nil, err
		}
	}

	return s.Bundle()
}

func (s *Session) expect(state State) error {
	if s.state != state {
		return fmt.Errorf("%w: expected %s, session is %s", ErrInvalidTransition, state, s.state)
	}
	return nil
}
