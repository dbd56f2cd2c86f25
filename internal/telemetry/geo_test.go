package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProjection(t *testing.T) {
	p := NewLocalProjection(0, 0)

	east, north := p.Project(0, 0)
	assert.Zero(t, east)
	assert.Zero(t, north)

	// one degree along the equator
	east, north = p.Project(0, 1)
	assert.InDelta(t, 111319.49, east, 0.01)
	assert.Zero(t, north)

	east, north = p.Project(1, 0)
	assert.Zero(t, east)
	assert.InDelta(t, 111319.49, north, 0.01)
}

func TestProjectTable(t *testing.T) {
	tbl := &Table{
		Topic:      "sensor_gps_0",
		Timestamps: []int64{0, 1},
		Columns: map[string][]float64{
			LatitudeColumn:  {52.0, 52.001},
			LongitudeColumn: {21.0, 21.0},
		},
	}

	east, north, err := ProjectTable(tbl)
	require.NoError(t, err)
	require.Len(t, east, 2)
	assert.Zero(t, east[0])
	assert.Zero(t, north[0])
	assert.InDelta(t, 111.32, north[1], 0.01)

	_, _, err = ProjectTable(&Table{Topic: "empty", Columns: map[string][]float64{}})
	require.ErrorIs(t, err, ErrChannelNotFound)
}
