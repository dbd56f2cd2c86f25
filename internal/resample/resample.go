package resample

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/roman-kulish/flight-video-sync/internal/orientation"
	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

var (
	// ErrEmptySourceChannel is returned when the source has no samples
	ErrEmptySourceChannel = errors.New("empty source channel")

	// ErrDegenerateTarget is returned for a zero target length, or a target
	// length of 1 with linear interpolation
	ErrDegenerateTarget = errors.New("degenerate target length")
)

// Mode selects the interpolation axis
type Mode int

const (
	// ModeIndex maps sample positions proportionally, ignoring sample times
	ModeIndex Mode = iota

	// ModeTime maps onto evenly spaced instants between the first and last sample time
	ModeTime
)

func (m Mode) String() string {
	switch m {
	case ModeIndex:
		return "index"
	case ModeTime:
		return "time"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "index" or "time", the empty string selects ModeIndex
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "index":
		return ModeIndex, nil
	case "time":
		return ModeTime, nil
	default:
		return 0, fmt.Errorf("unknown resample mode '%s'", s)
	}
}

// Nearest picks one source value per output position, j = round(i*(M-1)/(N-1)).
// Values are never blended. A single output takes the first sample.
func Nearest(values []float64, n int) ([]float64, error) {
	m := len(values)
	if m == 0 {
		return nil, ErrEmptySourceChannel
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrDegenerateTarget, n)
	}

	out := make([]float64, n)
	if n == 1 {
		out[0] = values[0]
		return out, nil
	}

	scale := float64(m-1) / float64(n-1)
	for i := range out {
		out[i] = values[nearestIndex(i, scale, m)]
	}
	return out, nil
}

func nearestIndex(i int, scale float64, m int) int {
	return min(int(math.Round(float64(i)*scale)), m-1)
}

// Linear interpolates values over linspace(0, 1, M) at linspace(0, 1, N).
// A single source sample yields a constant output.
func Linear(values []float64, n int) ([]float64, error) {
	m := len(values)
	if m == 0 {
		return nil, ErrEmptySourceChannel
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: %d for linear interpolation", ErrDegenerateTarget, n)
	}

	out := make([]float64, n)
	if m == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	}

	xOld := floats.Span(make([]float64, m), 0, 1)
	xNew := floats.Span(make([]float64, n), 0, 1)

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xOld, values); err != nil {
		return nil, fmt.Errorf("fitting: %w", err)
	}
	for i, x := range xNew {
		out[i] = pl.Predict(x)
	}
	return out, nil
}

// NearestTime picks, for every target instant, the sample closest in time.
// Ties go to the earlier sample.
func NearestTime(times, values, targets []float64) ([]float64, error) {
	if err := checkTimed(times, values, targets); err != nil {
		return nil, err
	}

	out := make([]float64, len(targets))
	for i, t := range targets {
		j := sort.SearchFloat64s(times, t)
		switch {
		case j == len(times):
			j--
		case j > 0 && t-times[j-1] <= times[j]-t:
			j--
		}
		out[i] = values[j]
	}
	return out, nil
}

// LinearTime interpolates values at the target instants. Samples sharing a
// timestamp are collapsed to the last one, targets outside the sampled span
// take the value at the nearest end.
func LinearTime(times, values, targets []float64) ([]float64, error) {
	if err := checkTimed(times, values, targets); err != nil {
		return nil, err
	}

	xs, ys := collapse(times, values)

	out := make([]float64, len(targets))
	if len(xs) == 1 {
		for i := range out {
			out[i] = ys[0]
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fitting: %w", err)
	}
	for i, t := range targets {
		out[i] = pl.Predict(t)
	}
	return out, nil
}

// Targets returns n instants evenly spaced over the channel's time span
func Targets(times []float64, n int) []float64 {
	if n < 1 || len(times) == 0 {
		return nil
	}
	if n == 1 {
		return []float64{times[0]}
	}
	return floats.Span(make([]float64, n), times[0], times[len(times)-1])
}

// Channel resamples a channel to n values. Circular angles use nearest
// selection and are re-normalized, continuous channels are interpolated.
func Channel(ch telemetry.Channel, n int, mode Mode) ([]float64, error) {
	if ch.Len() == 0 {
		return nil, fmt.Errorf("channel %q: %w", ch.Name, ErrEmptySourceChannel)
	}

	var (
		out []float64
		err error
	)

	switch {
	case mode == ModeTime && n < 1:
		err = fmt.Errorf("%w: %d", ErrDegenerateTarget, n)
	case mode == ModeTime && ch.Kind == telemetry.CircularAngle:
		out, err = NearestTime(ch.Times, ch.Values, Targets(ch.Times, n))
	case mode == ModeTime:
		if n < 2 {
			err = fmt.Errorf("%w: %d for linear interpolation", ErrDegenerateTarget, n)
			break
		}
		out, err = LinearTime(ch.Times, ch.Values, Targets(ch.Times, n))
	case ch.Kind == telemetry.CircularAngle:
		out, err = Nearest(ch.Values, n)
	default:
		out, err = Linear(ch.Values, n)
	}
	if err != nil {
		return nil, fmt.Errorf("channel %q: %w", ch.Name, err)
	}

	if ch.Kind == telemetry.CircularAngle {
		for i, v := range out {
			out[i] = orientation.Normalize(v)
		}
	}
	return out, nil
}

// Onto maps a channel onto the samples of a reference channel, so both can
// be addressed by the reference indices. The result carries the reference
// times.
func Onto(ch, ref telemetry.Channel, mode Mode) (telemetry.Channel, error) {
	if ref.Len() == 0 {
		return telemetry.Channel{}, fmt.Errorf("reference channel %q: %w", ref.Name, ErrEmptySourceChannel)
	}
	if ch.Len() == 0 {
		return telemetry.Channel{}, fmt.Errorf("channel %q: %w", ch.Name, ErrEmptySourceChannel)
	}

	var (
		values []float64
		err    error
	)

	switch {
	case mode == ModeTime && ch.Kind == telemetry.CircularAngle:
		values, err = NearestTime(ch.Times, ch.Values, ref.Times)
	case mode == ModeTime:
		values, err = LinearTime(ch.Times, ch.Values, ref.Times)
	case ch.Kind == telemetry.CircularAngle || ref.Len() == 1:
		values, err = Nearest(ch.Values, ref.Len())
	default:
		values, err = Linear(ch.Values, ref.Len())
	}
	if err != nil {
		return telemetry.Channel{}, fmt.Errorf("channel %q onto %q: %w", ch.Name, ref.Name, err)
	}

	return telemetry.NewChannel(ch.Name, ch.Kind, ref.Times, values)
}

func checkTimed(times, values, targets []float64) error {
	if len(times) != len(values) {
		return fmt.Errorf("%w: %d != %d", telemetry.ErrLengthMismatch, len(times), len(values))
	}
	if len(values) == 0 {
		return ErrEmptySourceChannel
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: no target instants", ErrDegenerateTarget)
	}
	return nil
}

// collapse drops samples whose timestamp equals the following one
func collapse(times, values []float64) (xs, ys []float64) {
	xs = make([]float64, 0, len(times))
	ys = make([]float64, 0, len(values))
	for i, t := range times {
		if i+1 < len(times) && times[i+1] == t {
			continue
		}
		xs = append(xs, t)
		ys = append(ys, values[i])
	}
	return xs, ys
}
