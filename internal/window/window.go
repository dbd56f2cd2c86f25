package window

import (
	"errors"
	"fmt"
	"math"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
	"github.com/roman-kulish/flight-video-sync/internal/video"
)

// ErrEmptySyncWindow is returned when a cut would produce no samples or frames
var ErrEmptySyncWindow = errors.New("empty sync window")

// Range is a half-open index range [Start, End)
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices in the range, 0 for inverted ranges
func (r Range) Len() int {
	return max(r.End-r.Start, 0)
}

// Empty reports whether the range contains no index
func (r Range) Empty() bool {
	return r.Len() == 0
}

// Clamp restricts the range to [0, n)
func (r Range) Clamp(n int) Range {
	return Range{
		Start: min(max(r.Start, 0), n),
		End:   min(max(r.End, 0), n),
	}
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Window pairs the telemetry sample range with the video frame range to align
type Window struct {
	Telemetry Range `json:"telemetry"` // Indices into the reference attitude channel
	Frames    Range `json:"frames"`    // Indices into the frame source
}

func (w Window) String() string {
	return fmt.Sprintf("telemetry %s, frames %s", w.Telemetry, w.Frames)
}

// FrameIndex converts a video time in seconds to a frame index
func FrameIndex(t, fps float64) int {
	return int(math.Round(t * fps))
}

// FramesFromTimes converts video start/end times in seconds to a frame range
func FramesFromTimes(start, end, fps float64) Range {
	return Range{
		Start: FrameIndex(start, fps),
		End:   FrameIndex(end, fps),
	}
}

// Resolve validates a range against a length n. End beyond n is clamped,
// negative or inverted bounds and empty results are rejected.
func Resolve(r Range, n int) (Range, error) {
	if r.Start < 0 || r.End < r.Start {
		return Range{}, fmt.Errorf("%w: invalid range %s", ErrEmptySyncWindow, r)
	}

	clamped := r.Clamp(n)
	if clamped.Empty() {
		return Range{}, fmt.Errorf("%w: range %s of %d", ErrEmptySyncWindow, r, n)
	}
	return clamped, nil
}

// CutChannel slices the samples in r, keeping times and values in lockstep.
// Values are returned unchanged.
func CutChannel(ch telemetry.Channel, r Range) (telemetry.Channel, error) {
	clamped, err := Resolve(r, ch.Len())
	if err != nil {
		return telemetry.Channel{}, fmt.Errorf("channel %q: %w", ch.Name, err)
	}
	return ch.Slice(clamped.Start, clamped.End), nil
}

// CutChannels applies the same range to every channel
func CutChannels(r Range, channels ...telemetry.Channel) ([]telemetry.Channel, error) {
	out := make([]telemetry.Channel, len(channels))
	for i, ch := range channels {
		var err error
		if out[i], err = CutChannel(ch, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CutFrames exposes the frames in r as a lazy sub-range of the source
func CutFrames(src video.Source, r Range) (video.Source, Range, error) {
	clamped, err := Resolve(r, src.Len())
	if err != nil {
		return nil, Range{}, fmt.Errorf("frames: %w", err)
	}

	sub, err := video.SubRange(src, clamped.Start, clamped.End)
	if err != nil {
		return nil, Range{}, err
	}
	return sub, clamped, nil
}
