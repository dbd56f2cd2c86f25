package alignment

import (
	"context"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-video-sync/internal/motion"
	"github.com/roman-kulish/flight-video-sync/internal/resample"
	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
	"github.com/roman-kulish/flight-video-sync/internal/video"
	"github.com/roman-kulish/flight-video-sync/internal/window"
)

func ptr[T any](v T) *T {
	return &v
}

func newChannel(t *testing.T, name string, kind telemetry.Kind, n int, dt float64, value func(i int) float64) telemetry.Channel {
	t.Helper()

	times := make([]float64, n)
	values := make([]float64, n)
	for i := range values {
		times[i] = float64(i) * dt
		values[i] = value(i)
	}
	ch, err := telemetry.NewChannel(name, kind, times, values)
	require.NoError(t, err)
	return ch
}

// testInputs builds 200 attitude samples at 100 Hz and 20 altitude samples at 10 Hz
func testInputs(t *testing.T) Inputs {
	return Inputs{
		Roll:     newChannel(t, "roll", telemetry.CircularAngle, 200, 0.01, func(i int) float64 { return float64(i%360) - 180 }),
		Pitch:    newChannel(t, "pitch", telemetry.CircularAngle, 200, 0.01, func(i int) float64 { return 10 }),
		Yaw:      newChannel(t, "yaw", telemetry.CircularAngle, 200, 0.01, func(i int) float64 { return 179 }),
		Altitude: newChannel(t, "altitude", telemetry.Continuous, 20, 0.1, func(i int) float64 { return float64(i) }),
	}
}

// testFrames returns 5 static frames, 3 moving frames and 2 static frames at 10 fps
func testFrames(t *testing.T) video.Source {
	t.Helper()

	var images []image.Image
	for _, v := range []uint8{0, 0, 0, 0, 0, 100, 200, 50, 50, 50} {
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		for i := range img.Pix {
			img.Pix[i] = v
		}
		images = append(images, img)
	}

	src, err := video.NewSequence(10, images...)
	require.NoError(t, err)
	return src
}

func TestSession_RunWithDetectedWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MotionThreshold = 10

	s, err := NewSession(cfg)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, s.State())

	require.NoError(t, s.Load(testInputs(t), testFrames(t)))
	assert.Equal(t, ChannelsLoaded, s.State())

	b, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Ready, s.State())

	p, ok := s.Proposal()
	require.True(t, ok)
	assert.Equal(t, 5, p.Start)
	assert.Equal(t, 9, p.End)

	w, err := s.Window()
	require.NoError(t, err)
	assert.Equal(t, window.Window{
		Telemetry: window.Range{Start: 0, End: 200},
		Frames:    window.Range{Start: 5, End: 9},
	}, w)

	assertBundleLengths(t, b, 4)
	assert.NotEqual(t, uuid.Nil, b.RunID)
	assert.Equal(t, []float64{0, 1, 2, 3}, b.FrameTime())
	assert.Equal(t, 10.0, b.FPS)

	frames, err := video.Collect(context.Background(), b.Frames)
	require.NoError(t, err)
	assert.Equal(t, uint8(100), frames[0].Image.(*image.Gray).Pix[0])
}

func TestSession_ExplicitWindowTakesPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TelemetryStart = ptr(100)
	cfg.TelemetryEnd = ptr(150)
	cfg.VideoStart = ptr(0.2)
	cfg.VideoEnd = ptr(0.7)
	cfg.FrameTime = Seconds

	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(testInputs(t), testFrames(t)))

	b, err := s.Run(context.Background())
	require.NoError(t, err)

	_, ok := s.Proposal()
	assert.False(t, ok, "the detector must not run with explicit video bounds")

	assert.Equal(t, window.Range{Start: 2, End: 7}, b.Window.Frames)
	assert.Equal(t, window.Range{Start: 100, End: 150}, b.Window.Telemetry)
	assertBundleLengths(t, b, 5)

	assert.InDeltaSlice(t, []float64{0, 0.1, 0.2, 0.3, 0.4}, b.FrameTime(), 1e-9)
	assert.Equal(t, b.Roll()[0], float64(100%360)-180)
	assert.Equal(t, b.Roll()[4], float64(149%360)-180)
	for _, yaw := range b.Yaw() {
		assert.Equal(t, 179.0, yaw)
	}

	// 10 Hz altitude pre-aligned onto 100 Hz attitude, then windowed
	assert.InDelta(t, 100*19.0/199, b.Altitude()[0], 1e-9)
	assert.InDelta(t, 149*19.0/199, b.Altitude()[4], 1e-9)

	rec := b.At(4)
	assert.Equal(t, 4, rec.Index)
	assert.InDelta(t, 0.4, rec.Time, 1e-9)
	assert.InDelta(t, 0.4, rec.Elapsed, 1e-9)
	assert.Equal(t, b.Pitch()[4], rec.Pitch)
}

func TestSession_NoMotionFallsBackToFullRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MotionThreshold = 1000

	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(testInputs(t), testFrames(t)))
	require.NoError(t, s.ResolveWindow(context.Background()))

	p, ok := s.Proposal()
	require.True(t, ok)
	assert.False(t, p.Motion)

	w, err := s.Window()
	require.NoError(t, err)
	assert.Equal(t, window.Range{Start: 0, End: 10}, w.Frames)
}

// misreported is a frame source whose header length is off by delta frames
type misreported struct {
	video.Source
	delta int
}

func (m misreported) Len() int {
	return m.Source.Len() + m.delta
}

func TestSession_MisreportedFrameCount(t *testing.T) {
	ctx := context.Background()

	explicit := func(c *Config) { c.VideoStart, c.VideoEnd = ptr(0.0), ptr(100.0) }
	detected := func(c *Config) { c.MotionThreshold = 1000 }

	tests := []struct {
		name   string
		delta  int
		modify func(c *Config)
		want   int
	}{
		{name: "over-reported with explicit bounds", delta: 4, modify: explicit, want: 10},
		{name: "over-reported with detection", delta: 4, modify: detected, want: 10},
		{name: "under-reported with explicit bounds", delta: -3, modify: explicit, want: 7},
		{name: "under-reported with detection", delta: -3, modify: detected, want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			s, err := NewSession(cfg)
			require.NoError(t, err)
			require.NoError(t, s.Load(testInputs(t), misreported{Source: testFrames(t), delta: tt.delta}))

			b, err := s.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, window.Range{Start: 0, End: tt.want}, b.Window.Frames)
			assertBundleLengths(t, b, tt.want)

			frames, err := video.Collect(ctx, b.Frames)
			require.NoError(t, err)
			assert.Len(t, frames, b.Len(), "every bundle row has a decoded frame")
		})
	}
}

func TestBundle_TracksAreCopies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MotionThreshold = 10

	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(testInputs(t), testFrames(t)))

	b, err := s.Run(context.Background())
	require.NoError(t, err)
	before := *b.At(0)

	tests := []struct {
		name  string
		track func() []float64
	}{
		{name: "roll", track: b.Roll},
		{name: "pitch", track: b.Pitch},
		{name: "yaw", track: b.Yaw},
		{name: "altitude", track: b.Altitude},
		{name: "frame time", track: b.FrameTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.track()

			got := tt.track()
			for i := range got {
				got[i] = 999
			}
			assert.Equal(t, want, tt.track())
		})
	}

	again, err := s.Bundle()
	require.NoError(t, err)
	assert.Equal(t, before, *again.At(0))
}

func TestSession_InvalidTransitions(t *testing.T) {
	ctx := context.Background()

	s, err := NewSession(DefaultConfig())
	require.NoError(t, err)

	require.ErrorIs(t, s.ResolveWindow(ctx), ErrInvalidTransition)
	require.ErrorIs(t, s.Resample(ctx), ErrInvalidTransition)
	_, err = s.Bundle()
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Window()
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Run(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, s.Reset(), ErrInvalidTransition)

	require.NoError(t, s.Load(testInputs(t), testFrames(t)))
	require.ErrorIs(t, s.Load(testInputs(t), testFrames(t)), ErrInvalidTransition)
	require.ErrorIs(t, s.Resample(ctx), ErrInvalidTransition)

	require.NoError(t, s.ResolveWindow(ctx))
	require.ErrorIs(t, s.ResolveWindow(ctx), ErrInvalidTransition)
	_, err = s.Bundle()
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_FailureKeepsState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TelemetryStart = ptr(500)

	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(testInputs(t), testFrames(t)))

	err = s.ResolveWindow(context.Background())
	require.ErrorIs(t, err, window.ErrEmptySyncWindow)
	assert.Equal(t, ChannelsLoaded, s.State())

	_, err = s.Window()
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_SingleFrameIsDegenerate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VideoStart = ptr(0.0)
	cfg.VideoEnd = ptr(0.1)

	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(testInputs(t), testFrames(t)))

	_, err = s.Run(context.Background())
	require.ErrorIs(t, err, resample.ErrDegenerateTarget)
	assert.Equal(t, WindowResolved, s.State())
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.MotionThreshold = 10

	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(testInputs(t), testFrames(t)))

	first, err := s.Run(ctx)
	require.NoError(t, err)

	again, err := s.Bundle()
	require.NoError(t, err)
	assert.Same(t, first, again)

	cfg.VideoStart = ptr(0.0)
	cfg.VideoEnd = ptr(1.0)
	require.NoError(t, s.Reset(cfg))
	assert.Equal(t, ChannelsLoaded, s.State())
	_, ok := s.Proposal()
	assert.False(t, ok)

	second, err := s.Run(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assertBundleLengths(t, second, 10)
	assertBundleLengths(t, first, 4)

	cfg.Mode = resample.ModeTime
	require.Error(t, s.Reset(cfg))
}

func TestSession_TimeMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = resample.ModeTime
	cfg.VideoStart = ptr(0.0)
	cfg.VideoEnd = ptr(1.0)

	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Load(testInputs(t), testFrames(t)))

	b, err := s.Run(context.Background())
	require.NoError(t, err)
	assertBundleLengths(t, b, 10)

	// altitude is 10 m/s, sampled on the attitude clock over [0, 1.99] s
	assert.InDelta(t, 0, b.Altitude()[0], 1e-9)
	assert.InDelta(t, 19, b.Altitude()[9], 1e-9)
}

func TestSession_LoadErrors(t *testing.T) {
	s, err := NewSession(DefaultConfig())
	require.NoError(t, err)

	in := testInputs(t)
	in.Altitude = telemetry.Channel{Name: "altitude"}
	require.ErrorIs(t, s.Load(in, testFrames(t)), resample.ErrEmptySourceChannel)

	in = testInputs(t)
	in.Roll = telemetry.Channel{Name: "roll"}
	require.ErrorIs(t, s.Load(in, testFrames(t)), resample.ErrEmptySourceChannel)

	require.Error(t, s.Load(testInputs(t), nil))
	assert.Equal(t, Uninitialized, s.State())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
		wantIs  error
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "negative telemetry start", modify: func(c *Config) { c.TelemetryStart = ptr(-1) }, wantErr: true},
		{name: "inverted telemetry", modify: func(c *Config) { c.TelemetryStart, c.TelemetryEnd = ptr(20), ptr(10) }, wantErr: true, wantIs: window.ErrEmptySyncWindow},
		{name: "zero width telemetry", modify: func(c *Config) { c.TelemetryStart, c.TelemetryEnd = ptr(15), ptr(15) }, wantErr: true, wantIs: window.ErrEmptySyncWindow},
		{name: "zero telemetry end", modify: func(c *Config) { c.TelemetryEnd = ptr(0) }, wantErr: true, wantIs: window.ErrEmptySyncWindow},
		{name: "inverted video", modify: func(c *Config) { c.VideoStart, c.VideoEnd = ptr(2.0), ptr(1.0) }, wantErr: true, wantIs: window.ErrEmptySyncWindow},
		{name: "zero width video", modify: func(c *Config) { c.VideoStart, c.VideoEnd = ptr(1.5), ptr(1.5) }, wantErr: true, wantIs: window.ErrEmptySyncWindow},
		{name: "video start only", modify: func(c *Config) { c.VideoStart = ptr(22.3186) }},
		{name: "negative threshold", modify: func(c *Config) { c.MotionThreshold = -1 }, wantErr: true},
		{name: "negative margin", modify: func(c *Config) { c.TrailingStatic = -1 }, wantErr: true},
		{name: "bad mode", modify: func(c *Config) { c.Mode = 7 }, wantErr: true},
		{name: "bad frame time", modify: func(c *Config) { c.FrameTime = 7 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantIs != nil {
					require.ErrorIs(t, err, tt.wantIs)

					_, err = NewSession(cfg)
					require.ErrorIs(t, err, tt.wantIs)
				}
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, motion.DefaultThreshold, cfg.MotionThreshold)
	assert.Equal(t, motion.DefaultTrailingStatic, cfg.TrailingStatic)
	assert.Equal(t, resample.ModeIndex, cfg.Mode)
}

func assertBundleLengths(t *testing.T, b *Bundle, n int) {
	t.Helper()

	assert.Equal(t, n, b.Len())
	assert.Equal(t, n, b.Frames.Len())
	for name, track := range map[string][]float64{
		"roll":      b.Roll(),
		"pitch":     b.Pitch(),
		"yaw":       b.Yaw(),
		"altitude":  b.Altitude(),
		"frameTime": b.FrameTime(),
	} {
		assert.Len(t, track, n, name)
	}
}
