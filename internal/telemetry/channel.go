package telemetry

import (
	"errors"
	"fmt"
)

const (
	// Continuous channels, such as altitude, are safe to interpolate linearly
	Continuous Kind = iota

	// CircularAngle channels hold degrees in [-180, 180) and wrap around
	CircularAngle
)

var (
	// ErrLengthMismatch is returned when a channel's time and value arrays differ in length
	ErrLengthMismatch = errors.New("time and value arrays differ in length")

	// ErrUnorderedTimes is returned when channel times decrease
	ErrUnorderedTimes = errors.New("sample times are not monotonically non-decreasing")
)

// Kind is the semantic kind of channel values
type Kind int

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case CircularAngle:
		return "circular-angle"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Channel is a named, time-ordered series of scalar samples.
// Times are in seconds. Channels are treated as immutable once built:
// slicing shares the underlying arrays.
type Channel struct {
	Name   string
	Kind   Kind
	Times  []float64
	Values []float64
}

// NewChannel validates and creates a Channel
func NewChannel(name string, kind Kind, times, values []float64) (Channel, error) {
	if len(times) != len(values) {
		return Channel{}, fmt.Errorf("channel %q: %w: %d != %d", name, ErrLengthMismatch, len(times), len(values))
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return Channel{}, fmt.Errorf("channel %q: %w: at sample %d", name, ErrUnorderedTimes, i)
		}
	}

	return Channel{
		Name:   name,
		Kind:   kind,
		Times:  times,
		Values: values,
	}, nil
}

// Len returns the number of samples in the channel
func (c Channel) Len() int {
	return len(c.Values)
}

// Slice returns the samples [lo, hi), keeping times and values in lockstep.
// Bounds are not checked, callers are expected to validate them.
func (c Channel) Slice(lo, hi int) Channel {
	return Channel{
		Name:   c.Name,
		Kind:   c.Kind,
		Times:  c.Times[lo:hi:hi],
		Values: c.Values[lo:hi:hi],
	}
}

// Duration returns the time span covered by the channel in seconds
func (c Channel) Duration() float64 {
	if len(c.Times) < 2 {
		return 0
	}
	return c.Times[len(c.Times)-1] - c.Times[0]
}
