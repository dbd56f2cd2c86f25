package alignment

import (
	"fmt"

	"github.com/roman-kulish/flight-video-sync/internal/orientation"
	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

// Inputs are the telemetry channels aligned by a session. Roll is the
// reference channel: telemetry window indices address its samples.
type Inputs struct {
	Roll     telemetry.Channel
	Pitch    telemetry.Channel
	Yaw      telemetry.Channel
	Altitude telemetry.Channel
}

// Topics names where the session inputs live in a Channel Store
type Topics struct {
	Attitude       string                    // e.g. vehicle_attitude_0
	Euler          *orientation.EulerColumns // Euler columns, quaternion columns are used when nil
	Altitude       string                    // e.g. vehicle_gps_position_0
	AltitudeColumn string                    // e.g. altitude_msl_m
}

// ChannelsFromStore builds session inputs from decoded telemetry topics
func ChannelsFromStore(store *telemetry.Store, topics Topics) (Inputs, error) {
	var in Inputs

	att, err := store.Table(topics.Attitude)
	if err != nil {
		return in, fmt.Errorf("attitude: %w", err)
	}

	if topics.Euler != nil {
		in.Roll, in.Pitch, in.Yaw, err = orientation.FromEulerTable(att, *topics.Euler)
	} else {
		in.Roll, in.Pitch, in.Yaw, err = orientation.FromQuaternionTable(att)
	}
	if err != nil {
		return in, fmt.Errorf("attitude: %w", err)
	}

	if in.Altitude, err = store.Channel(topics.Altitude, topics.AltitudeColumn, telemetry.Continuous); err != nil {
		return in, fmt.Errorf("altitude: %w", err)
	}

	return in, nil
}
