package export

import (
	"bytes"
	"encoding/csv"
	"image"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

type records []*telemetry.Telemetry

func (r records) Len() int                      { return len(r) }
func (r records) At(i int) *telemetry.Telemetry { return r[i] }

func sample(n int) records {
	out := make(records, n)
	for i := range out {
		out[i] = &telemetry.Telemetry{
			Index:    i,
			Time:     float64(i),
			Elapsed:  float64(i) / 30,
			Altitude: 100 + float64(i),
			Roll:     float64(i%360) - 180,
			Pitch:    -float64(i),
			Yaw:      10,
		}
	}
	return out
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample(3)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"index", "time", "elapsed", "altitude", "roll", "pitch", "yaw"}, rows[0])
	assert.Equal(t, []string{"2", "2.000000", "0.066667", "102.000", "-178.0000", "-2.0000", "10.0000"}, rows[3])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records{}))
	assert.Equal(t, "index,time,elapsed,altitude,roll,pitch,yaw\n", buf.String())
}

func TestPlotTracks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.png")
	require.NoError(t, PlotTracks(sample(100), "test flight", path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Greater(t, cfg.Width, cfg.Height)

	require.ErrorIs(t, PlotTracks(records{}, "", path), ErrNothingToPlot)
}

func TestPlotPath(t *testing.T) {
	tbl := &telemetry.Table{
		Topic:      "gps",
		Timestamps: []int64{0, 1, 2},
		Columns: map[string][]float64{
			telemetry.LatitudeColumn:  {-33.8688, -33.8690, -33.8695},
			telemetry.LongitudeColumn: {151.2093, 151.2095, 151.2100},
		},
	}

	path := filepath.Join(t.TempDir(), "path.png")
	require.NoError(t, PlotPath(tbl, path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	delete(tbl.Columns, telemetry.LongitudeColumn)
	require.ErrorIs(t, PlotPath(tbl, path), telemetry.ErrChannelNotFound)
}

func TestWriteChart(t *testing.T) {
	data := sample(10)
	data[4].Altitude = math.NaN()

	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, data, "test flight", "frames [0, 10)"))

	html := buf.String()
	assert.Contains(t, html, "echarts")
	for _, name := range []string{"roll", "pitch", "yaw", "altitude"} {
		assert.True(t, strings.Contains(html, `"name":"`+name+`"`), "series %s", name)
	}

	require.ErrorIs(t, WriteChart(&bytes.Buffer{}, records{}, "", ""), ErrNothingToPlot)
}
