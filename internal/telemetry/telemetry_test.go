package telemetry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetry_JSON(t *testing.T) {
	tests := []struct {
		name string
		rec  Telemetry
		want string
	}{
		{
			name: "finite",
			rec:  Telemetry{Index: 1, Time: 0.5, Elapsed: 0.5, Altitude: 12.5, Roll: -3, Pitch: 4, Yaw: 179},
			want: `{"index":1,"time":0.5,"elapsed":0.5,"altitude":12.5,"roll":-3,"pitch":4,"yaw":179}`,
		},
		{
			name: "missing altitude",
			rec:  Telemetry{Index: 2, Time: 1, Elapsed: 1, Altitude: math.NaN(), Roll: 1, Pitch: 2, Yaw: 3},
			want: `{"index":2,"time":1,"elapsed":1,"altitude":null,"roll":1,"pitch":2,"yaw":3}`,
		},
		{
			name: "infinite",
			rec:  Telemetry{Index: 3, Altitude: math.Inf(1), Roll: math.Inf(-1)},
			want: `{"index":3,"time":0,"elapsed":0,"altitude":null,"roll":null,"pitch":0,"yaw":0}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(&tt.rec)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var got Telemetry
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.rec.Index, got.Index)
			for name, pair := range map[string][2]float64{
				"altitude": {tt.rec.Altitude, got.Altitude},
				"roll":     {tt.rec.Roll, got.Roll},
				"yaw":      {tt.rec.Yaw, got.Yaw},
			} {
				if math.IsNaN(pair[0]) || math.IsInf(pair[0], 0) {
					assert.True(t, math.IsNaN(pair[1]), "%s decodes null as NaN", name)
					continue
				}
				assert.Equal(t, pair[0], pair[1], name)
			}
		})
	}
}
