package telemetry

import (
	"encoding/json"
	"math"
	"strconv"
)

// Provider gives indexed access to per-frame telemetry records
type Provider interface {
	Len() int
	At(i int) *Telemetry
}

// Telemetry is the telemetry record aligned to a single video frame
type Telemetry struct {
	Index    int     `json:"index"`    // Frame index within the synchronized window
	Time     float64 `json:"time"`     // Frame time, in frames or seconds depending on the session
	Elapsed  float64 `json:"elapsed"`  // Seconds since the first frame of the window
	Altitude float64 `json:"altitude"` // GPS altitude (MSL) in meters
	Roll     float64 `json:"roll"`     // Roll angle in degrees, [-180, 180)
	Pitch    float64 `json:"pitch"`    // Pitch angle in degrees, [-180, 180)
	Yaw      float64 `json:"yaw"`      // Yaw angle in degrees, [-180, 180)
}

// jsonTelemetry mirrors Telemetry with nullable values, JSON has no NaN or Inf
type jsonTelemetry struct {
	Index    int      `json:"index"`
	Time     *float64 `json:"time"`
	Elapsed  *float64 `json:"elapsed"`
	Altitude *float64 `json:"altitude"`
	Roll     *float64 `json:"roll"`
	Pitch    *float64 `json:"pitch"`
	Yaw      *float64 `json:"yaw"`
}

// MarshalJSON encodes missing values (NaN) and infinities as null
func (t Telemetry) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonTelemetry{
		Index:    t.Index,
		Time:     nullable(t.Time),
		Elapsed:  nullable(t.Elapsed),
		Altitude: nullable(t.Altitude),
		Roll:     nullable(t.Roll),
		Pitch:    nullable(t.Pitch),
		Yaw:      nullable(t.Yaw),
	})
}

// UnmarshalJSON decodes null and absent values as NaN
func (t *Telemetry) UnmarshalJSON(data []byte) error {
	var v jsonTelemetry
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*t = Telemetry{
		Index:    v.Index,
		Time:     orNaN(v.Time),
		Elapsed:  orNaN(v.Elapsed),
		Altitude: orNaN(v.Altitude),
		Roll:     orNaN(v.Roll),
		Pitch:    orNaN(v.Pitch),
		Yaw:      orNaN(v.Yaw),
	}
	return nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func (Telemetry) CSVHeader() []string {
	return []string{"index", "time", "elapsed", "altitude", "roll", "pitch", "yaw"}
}

func (t *Telemetry) CSVRow() []string {
	return []string{
		strconv.Itoa(t.Index),
		ftoa(t.Time, 6),
		ftoa(t.Elapsed, 6),
		ftoa(t.Altitude, 3),
		ftoa(t.Roll, 4),
		ftoa(t.Pitch, 4),
		ftoa(t.Yaw, 4),
	}
}

func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
