package orientation

import (
	"errors"
	"fmt"
	"math"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

// Channel names of the normalized angles
const (
	Roll  = "roll"
	Pitch = "pitch"
	Yaw   = "yaw"
)

// ErrInvalidOrientationData is returned for a zero-norm quaternion or a missing orientation field
var ErrInvalidOrientationData = errors.New("invalid orientation data")

// QuaternionColumns are the PX4 `vehicle_attitude` quaternion columns, in w, x, y, z order
var QuaternionColumns = [4]string{"q[0]", "q[1]", "q[2]", "q[3]"}

// EulerColumns name the roll, pitch and yaw columns of an Euler table
type EulerColumns struct {
	Roll  string
	Pitch string
	Yaw   string
}

// Pose is a set of Euler angles in degrees
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Normalize maps an angle in degrees into [-180, 180).
// Values already in range are returned unchanged.
func Normalize(deg float64) float64 {
	if deg >= -180 && deg < 180 {
		return deg
	}

	// floored modulo, the sign follows the divisor
	m := math.Mod(deg+180, 360)
	if m < 0 {
		m += 360
	}
	if m >= 360 { // tiny negative remainders round up to 360
		m = 0
	}
	return m - 180
}

// NormalizeAll returns a normalized copy of values
func NormalizeAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Normalize(v)
	}
	return out
}

// FromQuaternion converts a (w, x, y, z) quaternion into normalized Euler
// angles. The quaternion does not have to be unit length.
func FromQuaternion(w, x, y, z float64) (Pose, error) {
	norm := math.Sqrt(w*w + x*x + y*y + z*z)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Pose{}, fmt.Errorf("%w: quaternion norm is %v", ErrInvalidOrientationData, norm)
	}
	w, x, y, z = w/norm, x/norm, y/norm, z/norm

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	pitch := math.Asin(clamp(2*(w*y-z*x), -1, 1))
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Pose{
		Roll:  Normalize(degrees(roll)),
		Pitch: Normalize(degrees(pitch)),
		Yaw:   Normalize(degrees(yaw)),
	}, nil
}

// FromQuaternionTable converts the quaternion columns of a table into roll,
// pitch and yaw channels. Columns default to QuaternionColumns.
func FromQuaternionTable(t *telemetry.Table, columns ...string) (roll, pitch, yaw telemetry.Channel, err error) {
	cols := QuaternionColumns[:]
	if len(columns) > 0 {
		if len(columns) != 4 {
			err = fmt.Errorf("%w: expected 4 quaternion columns, %d given", ErrInvalidOrientationData, len(columns))
			return
		}
		cols = columns
	}

	var q [4][]float64
	for i, name := range cols {
		if q[i], err = t.Column(name); err != nil {
			err = fmt.Errorf("%w: %w", ErrInvalidOrientationData, err)
			return
		}
	}

	n := t.Len()
	r, p, y := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		pose, qErr := FromQuaternion(q[0][i], q[1][i], q[2][i], q[3][i])
		if qErr != nil {
			err = fmt.Errorf("topic %q: sample %d: %w", t.Topic, i, qErr)
			return
		}
		r[i], p[i], y[i] = pose.Roll, pose.Pitch, pose.Yaw
	}

	return channels(t.Times(), r, p, y)
}

// FromEulerTable normalizes roll, pitch and yaw columns already expressed in degrees
func FromEulerTable(t *telemetry.Table, columns EulerColumns) (roll, pitch, yaw telemetry.Channel, err error) {
	var values [3][]float64
	for i, name := range []string{columns.Roll, columns.Pitch, columns.Yaw} {
		if name == "" {
			err = fmt.Errorf("%w: euler column name required", ErrInvalidOrientationData)
			return
		}
		if values[i], err = t.Column(name); err != nil {
			err = fmt.Errorf("%w: %w", ErrInvalidOrientationData, err)
			return
		}
	}

	return channels(t.Times(), NormalizeAll(values[0]), NormalizeAll(values[1]), NormalizeAll(values[2]))
}

func channels(times, r, p, y []float64) (roll, pitch, yaw telemetry.Channel, err error) {
	if roll, err = telemetry.NewChannel(Roll, telemetry.CircularAngle, times, r); err != nil {
		return
	}
	if pitch, err = telemetry.NewChannel(Pitch, telemetry.CircularAngle, times, p); err != nil {
		return
	}
	yaw, err = telemetry.NewChannel(Yaw, telemetry.CircularAngle, times, y)
	return
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
