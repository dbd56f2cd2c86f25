package alignment

import (
	"slices"

	"github.com/google/uuid"

	"github.com/roman-kulish/flight-video-sync/internal/resample"
	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
	"github.com/roman-kulish/flight-video-sync/internal/video"
	"github.com/roman-kulish/flight-video-sync/internal/window"
)

// Bundle is the per-frame synchronized output of a session. Every track and
// the trimmed frame source have the same length. Tracks are only reachable
// through copies, so a Bundle shared between consumers cannot be altered.
type Bundle struct {
	RunID uuid.UUID

	roll      []float64
	pitch     []float64
	yaw       []float64
	altitude  []float64
	frameTime []float64

	Frames video.Source // Trimmed frames, paired 1:1 with the tracks
	FPS    float64      // Effective frame rate of Frames
	Window window.Window

	Mode     resample.Mode
	TimeUnit FrameTime
}

// Len returns the number of frames in the bundle
func (b *Bundle) Len() int {
	return len(b.frameTime)
}

// Roll returns a copy of the roll track in degrees
func (b *Bundle) Roll() []float64 {
	return slices.Clone(b.roll)
}

// Pitch returns a copy of the pitch track in degrees
func (b *Bundle) Pitch() []float64 {
	return slices.Clone(b.pitch)
}

// Yaw returns a copy of the yaw track in degrees
func (b *Bundle) Yaw() []float64 {
	return slices.Clone(b.yaw)
}

// Altitude returns a copy of the altitude track in meters
func (b *Bundle) Altitude() []float64 {
	return slices.Clone(b.altitude)
}

// FrameTime returns a copy of the frame-time track, in frames or seconds
// depending on TimeUnit
func (b *Bundle) FrameTime() []float64 {
	return slices.Clone(b.frameTime)
}

// At returns the telemetry aligned to frame i
func (b *Bundle) At(i int) *telemetry.Telemetry {
	return &telemetry.Telemetry{
		Index:    i,
		Time:     b.frameTime[i],
		Elapsed:  float64(i) / b.FPS,
		Altitude: b.altitude[i],
		Roll:     b.roll[i],
		Pitch:    b.pitch[i],
		Yaw:      b.yaw[i],
	}
}
