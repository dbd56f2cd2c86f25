package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError rolls back an uncommitted transaction
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// toConfigData stores strings and bytes as they are, anything else as JSON
func toConfigData(config any) (configData sql.NullString, err error) {
	switch c := config.(type) {
	case nil:
	case string:
		configData.Valid = true
		configData.String = c

	case []byte:
		configData.Valid = true
		configData.String = string(c)

	default:
		var p []byte
		if p, err = json.Marshal(config); err != nil {
			return configData, fmt.Errorf("marshaling config: %w", err)
		}

		configData.Valid = true
		configData.String = string(p)
	}
	return configData, nil
}

func toFrameData(t *telemetry.Telemetry) *frameData {
	return &frameData{
		Index:     t.Index,
		FrameTime: t.Time,
		Elapsed:   t.Elapsed,
		Altitude:  toSQLNullFloat(t.Altitude),
		Roll:      toSQLNullFloat(t.Roll),
		Pitch:     toSQLNullFloat(t.Pitch),
		Yaw:       toSQLNullFloat(t.Yaw),
	}
}

func (d *frameData) toTelemetry() *telemetry.Telemetry {
	return &telemetry.Telemetry{
		Index:    d.Index,
		Time:     d.FrameTime,
		Elapsed:  d.Elapsed,
		Altitude: fromSQLNullFloat(d.Altitude),
		Roll:     fromSQLNullFloat(d.Roll),
		Pitch:    fromSQLNullFloat(d.Pitch),
		Yaw:      fromSQLNullFloat(d.Yaw),
	}
}

// toSQLNullFloat stores NaN, e.g. a missing CSV cell, as NULL
func toSQLNullFloat(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func fromSQLNullFloat(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
