package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

// SessionMeta is what a renderer needs to re-open the synchronized frames
type SessionMeta struct {
	VideoPath      string  `json:"videoPath"`      // Video file or frame directory
	FPS            float64 `json:"fps"`            // Effective frame rate, after the stride
	Stride         int     `json:"stride"`         // Every n-th frame of the video was kept
	FrameStart     int     `json:"frameStart"`     // Window start, in strided frame indices
	FrameEnd       int     `json:"frameEnd"`       // Window end (exclusive), in strided frame indices
	TelemetryStart int     `json:"telemetryStart"` // Window start, in attitude sample indices
	TelemetryEnd   int     `json:"telemetryEnd"`   // Window end (exclusive), in attitude sample indices
	Mode           string  `json:"mode"`           // Resample mode, index or time
	FrameTime      string  `json:"frameTime"`      // Frame time unit, frames or seconds
}

// Session is a stored synchronization run
type Session struct {
	ID        int64     `json:"id"`
	RunID     uuid.UUID `json:"runId"`
	StartTime time.Time `json:"startTime"`
	SessionMeta
	NumFrames int     `json:"numFrames"`        // Number of stored frame rows
	Config    *string `json:"config,omitempty"` // JSON encoded configuration
}

// frameData is a frames table row
type frameData struct {
	Index     int
	FrameTime float64
	Elapsed   float64
	Altitude  sql.NullFloat64
	Roll      sql.NullFloat64
	Pitch     sql.NullFloat64
	Yaw       sql.NullFloat64
}

// Rows is an in-memory telemetry.Provider over rows read back from the store
type Rows []*telemetry.Telemetry

func (r Rows) Len() int {
	return len(r)
}

func (r Rows) At(i int) *telemetry.Telemetry {
	return r[i]
}
