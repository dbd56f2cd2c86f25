package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-video-sync/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// frameValues are static, then ramp up over frames 4..6, then static again
var frameValues = []uint8{0, 0, 0, 0, 60, 120, 180, 180, 180, 180, 180, 180}

type fixture struct {
	root   string
	config *Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	for _, dir := range []string{"csv", "frames", "data", "out"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, dir), 0o755))
	}

	var att strings.Builder
	att.WriteString("timestamp,q[0],q[1],q[2],q[3]\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&att, "%d,1,0,0,0\n", 1_000_000+i*100_000)
	}
	writeTestFile(t, filepath.Join(root, "csv", "vehicle_attitude_0.csv"), att.String())

	var gps strings.Builder
	gps.WriteString("timestamp,latitude_deg,longitude_deg,altitude_msl_m\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&gps, "%d,%f,%f,%d\n", 1_000_000+i*200_000, -33.8688+float64(i)*1e-5, 151.2093, 100+i)
	}
	writeTestFile(t, filepath.Join(root, "csv", "vehicle_gps_position_0.csv"), gps.String())

	writeFrames(t, filepath.Join(root, "frames"), frameValues)

	config := DefaultConfig()
	config.Telemetry.CSVDirectory = filepath.Join(root, "csv")
	config.Video.FrameDirectory = filepath.Join(root, "frames")
	config.Video.FPS = 30
	config.Storage.DataDirectory = filepath.Join(root, "data")
	config.Export = ExportConfig{
		CSV:             filepath.Join(root, "out", "sync.csv"),
		Plot:            filepath.Join(root, "out", "tracks.png"),
		Chart:           filepath.Join(root, "out", "chart.html"),
		Path:            filepath.Join(root, "out", "path.png"),
		TopicsDirectory: filepath.Join(root, "out", "topics"),
	}
	require.NoError(t, config.Validate())

	return &fixture{root: root, config: config}
}

// writeFrames replaces the frames of dir with solid gray images
func writeFrames(t *testing.T, dir string, values []uint8) {
	t.Helper()

	old, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	for _, path := range old {
		require.NoError(t, os.Remove(path))
	}

	for i, v := range values {
		img := image.NewGray(image.Rect(0, 0, 8, 8))
		for j := range img.Pix {
			img.Pix[j] = v
		}
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		writeTestFile(t, filepath.Join(dir, fmt.Sprintf("%06d.png", i)), buf.String())
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, Run(context.Background(), f.config, discard))

	dbs, err := filepath.Glob(filepath.Join(f.root, "data", "sync_session_*.sqlite"))
	require.NoError(t, err)
	require.Len(t, dbs, 1)

	store := storage.NewSqliteStore(dbs[0])
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, 4, s.FrameStart)
	assert.Equal(t, 8, s.FrameEnd)
	assert.Equal(t, 0, s.TelemetryStart)
	assert.Equal(t, 20, s.TelemetryEnd)
	assert.Equal(t, 4, s.NumFrames)
	assert.Equal(t, 30.0, s.FPS)
	assert.Equal(t, f.config.Video.FrameDirectory, s.VideoPath)
	require.NotNil(t, s.Config)
	assert.Contains(t, *s.Config, `"csvDirectory"`)

	reader, err := store.ReadRows(context.Background(), s.ID)
	require.NoError(t, err)
	rows, err := storage.CollectRows(context.Background(), reader)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, 100.0, rows[0].Altitude)
	assert.InDelta(t, 109.0, rows[3].Altitude, 1e-9)

	csvData, err := os.ReadFile(f.config.Export.CSV)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(csvData)), "\n"), 5)

	for _, path := range []string{f.config.Export.Plot, f.config.Export.Chart, f.config.Export.Path} {
		_, err = os.Stat(path)
		require.NoError(t, err, path)
	}

	topics, err := filepath.Glob(filepath.Join(f.config.Export.TopicsDirectory, "*.csv"))
	require.NoError(t, err)
	assert.Len(t, topics, 2)
}

func TestRun_MissingTopic(t *testing.T) {
	f := newFixture(t)
	f.config.Telemetry.AltitudeTopic = "vehicle_air_data_0"

	err := Run(context.Background(), f.config, discard)
	require.ErrorContains(t, err, "vehicle_air_data_0")
}

func TestRun_MissingStorageDirectory(t *testing.T) {
	f := newFixture(t)
	f.config.Storage.DataDirectory = filepath.Join(f.root, "nope")

	require.Error(t, Run(context.Background(), f.config, discard))
}

func TestPropose(t *testing.T) {
	f := newFixture(t)

	var out bytes.Buffer
	require.NoError(t, Propose(context.Background(), f.config, &out, discard))

	// frames [4, 8) at 30 fps
	assert.Contains(t, out.String(), "videoStart: 133.3ms")
	assert.Contains(t, out.String(), "videoEnd: 266.7ms")
}

func TestPropose_NoMotion(t *testing.T) {
	f := newFixture(t)
	writeFrames(t, filepath.Join(f.root, "frames"), []uint8{7, 7, 7, 7})

	var out bytes.Buffer
	require.NoError(t, Propose(context.Background(), f.config, &out, discard))
	assert.Contains(t, out.String(), "no motion detected")
}
