package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-video-sync/internal/alignment"
	"github.com/roman-kulish/flight-video-sync/internal/resample"
	"github.com/roman-kulish/flight-video-sync/internal/window"
)

const testConfig = `
settings:
  logLevel: debug
telemetry:
  csvDirectory: logs/flight_csv
  euler:
    roll: roll_deg
    pitch: pitch_deg
    yaw: yaw_deg
  nmeaFile: logs/gps.nmea
video:
  path: video/flight.mp4
  stride: 2
window:
  telemetryStart: 120
  telemetryEnd: 4800
  videoStart: 22.3186s
  videoEnd: 1m30s
motion:
  threshold: 2.5
resample:
  mode: time
  frameTime: seconds
export:
  csv: out/sync.csv
`

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, config.Settings.LogLevel)
	assert.Equal(t, defaultAttitudeTopic, config.Telemetry.AttitudeTopic, "default kept")
	assert.Equal(t, defaultNMEATopic, config.Telemetry.NMEATopic)
	assert.Equal(t, "video/flight.mp4", config.Video.Source())
	assert.Equal(t, 2, config.Video.Stride)
	assert.Equal(t, 2.5, config.Motion.Threshold)
	assert.Equal(t, 2, config.Motion.TrailingStatic, "default kept")
	assert.Equal(t, defaultStorageDir, config.Storage.DataDirectory)

	require.NotNil(t, config.Window.VideoStart)
	assert.Equal(t, 22318600*time.Microsecond, time.Duration(*config.Window.VideoStart))

	topics := config.Telemetry.Topics()
	require.NotNil(t, topics.Euler)
	assert.Equal(t, "yaw_deg", topics.Euler.Yaw)

	cfg, err := config.Alignment()
	require.NoError(t, err)
	assert.Equal(t, 120, *cfg.TelemetryStart)
	assert.Equal(t, 4800, *cfg.TelemetryEnd)
	assert.InDelta(t, 22.3186, *cfg.VideoStart, 1e-9)
	assert.InDelta(t, 90, *cfg.VideoEnd, 1e-9)
	assert.Equal(t, resample.ModeTime, cfg.Mode)
	assert.Equal(t, alignment.Seconds, cfg.FrameTime)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "telemetry:\n  csvDirectory: x\n  bogus: 1\nvideo:\n  path: v.mp4\n"},
		{"bad duration", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nwindow:\n  videoStart: soon\n"},
		{"bad log level", "settings:\n  logLevel: loud\ntelemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\n"},
		{"no telemetry", "video:\n  path: v.mp4\n"},
		{"no video", "telemetry:\n  csvDirectory: x\n"},
		{"both video sources", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\n  frameDirectory: frames\n  fps: 30\n"},
		{"frames without fps", "telemetry:\n  csvDirectory: x\nvideo:\n  frameDirectory: frames\n"},
		{"zero stride", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\n  stride: 0\n"},
		{"inverted video window", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nwindow:\n  videoStart: 10s\n  videoEnd: 5s\n"},
		{"negative video start", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nwindow:\n  videoStart: -1s\n"},
		{"inverted telemetry window", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nwindow:\n  telemetryStart: 10\n  telemetryEnd: 10\n"},
		{"negative threshold", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nmotion:\n  threshold: -1\n"},
		{"bad mode", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nresample:\n  mode: cubic\n"},
		{"bad frame time", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nresample:\n  frameTime: hours\n"},
		{"incomplete euler", "telemetry:\n  csvDirectory: x\n  euler:\n    roll: r\nvideo:\n  path: v.mp4\n"},
		{"empty storage", "telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nstorage:\n  dataDirectory: ''\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestParseConfig_EmptyWindow(t *testing.T) {
	tests := []struct {
		name   string
		window string
	}{
		{"zero width telemetry", "  telemetryStart: 15\n  telemetryEnd: 15\n"},
		{"inverted telemetry", "  telemetryStart: 20\n  telemetryEnd: 10\n"},
		{"zero width video", "  videoStart: 2s\n  videoEnd: 2s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte("telemetry:\n  csvDirectory: x\nvideo:\n  path: v.mp4\nwindow:\n" + tt.window))
			require.ErrorIs(t, err, window.ErrEmptySyncWindow)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "logs/flight_csv", config.Telemetry.CSVDirectory)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
