package app

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/flight-video-sync/internal/alignment"
	"github.com/roman-kulish/flight-video-sync/internal/motion"
	"github.com/roman-kulish/flight-video-sync/internal/orientation"
	"github.com/roman-kulish/flight-video-sync/internal/resample"
	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
	"github.com/roman-kulish/flight-video-sync/internal/window"
)

const (
	defaultAttitudeTopic = "vehicle_attitude_0"
	defaultAltitudeTopic = "vehicle_gps_position_0"
	defaultNMEATopic     = "nmea_gga"
	defaultStorageDir    = "data"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings" json:"settings"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Video     VideoConfig     `yaml:"video" json:"video"`
	Window    WindowConfig    `yaml:"window" json:"window"`
	Motion    MotionConfig    `yaml:"motion" json:"motion"`
	Resample  ResampleConfig  `yaml:"resample" json:"resample"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Export    ExportConfig    `yaml:"export" json:"export"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel" json:"logLevel"`
}

// TelemetryConfig locates the flight log topics
type TelemetryConfig struct {
	CSVDirectory   string       `yaml:"csvDirectory" json:"csvDirectory"`     // Directory of PX4 `<topic>_<instance>.csv` files
	AttitudeTopic  string       `yaml:"attitudeTopic" json:"attitudeTopic"`   // Quaternion or Euler attitude topic
	Euler          *EulerConfig `yaml:"euler" json:"euler,omitempty"`         // Euler columns, quaternion columns are used when unset
	AltitudeTopic  string       `yaml:"altitudeTopic" json:"altitudeTopic"`   // Topic holding the altitude column
	AltitudeColumn string       `yaml:"altitudeColumn" json:"altitudeColumn"` // Altitude column name
	NMEAFile       string       `yaml:"nmeaFile" json:"nmeaFile,omitempty"`   // Optional NMEA log added as NMEATopic
	NMEATopic      string       `yaml:"nmeaTopic" json:"nmeaTopic,omitempty"`
}

// EulerConfig names the angle columns of an Euler attitude topic
type EulerConfig struct {
	Roll  string `yaml:"roll" json:"roll"`
	Pitch string `yaml:"pitch" json:"pitch"`
	Yaw   string `yaml:"yaw" json:"yaw"`
}

// VideoConfig selects the frame source. Exactly one of Path and
// FrameDirectory is set.
type VideoConfig struct {
	Path           string  `yaml:"path" json:"path,omitempty"`                     // Video file decoded with ffmpeg
	FrameDirectory string  `yaml:"frameDirectory" json:"frameDirectory,omitempty"` // Directory of still frames
	FPS            float64 `yaml:"fps" json:"fps,omitempty"`                       // Required for FrameDirectory, overrides ffprobe otherwise
	Stride         int     `yaml:"stride" json:"stride"`                           // Keep every n-th frame
	FFmpeg         string  `yaml:"ffmpeg" json:"ffmpeg,omitempty"`                 // ffmpeg binary, looked up in PATH when empty
	FFprobe        string  `yaml:"ffprobe" json:"ffprobe,omitempty"`               // ffprobe binary, looked up in PATH when empty
	CountFrames    bool    `yaml:"countFrames" json:"countFrames"`                 // Decode the stream to count frames exactly
}

// WindowConfig holds the explicit synchronization bounds. Telemetry bounds
// are attitude sample indices, video bounds are offsets from the first frame.
type WindowConfig struct {
	TelemetryStart *int      `yaml:"telemetryStart" json:"telemetryStart,omitempty"`
	TelemetryEnd   *int      `yaml:"telemetryEnd" json:"telemetryEnd,omitempty"`
	VideoStart     *Duration `yaml:"videoStart" json:"videoStart,omitempty"`
	VideoEnd       *Duration `yaml:"videoEnd" json:"videoEnd,omitempty"`
}

// MotionConfig tunes the motion detector used when no video bounds are set
type MotionConfig struct {
	Threshold      float64 `yaml:"threshold" json:"threshold"`
	TrailingStatic int     `yaml:"trailingStatic" json:"trailingStatic"`
}

// ResampleConfig selects the resampling strategy
type ResampleConfig struct {
	Mode      string `yaml:"mode" json:"mode"`           // index or time
	FrameTime string `yaml:"frameTime" json:"frameTime"` // frames or seconds
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory" json:"dataDirectory"`
}

// ExportConfig lists the optional outputs, empty paths are skipped
type ExportConfig struct {
	CSV             string `yaml:"csv" json:"csv,omitempty"`                         // Synchronized rows
	Plot            string `yaml:"plot" json:"plot,omitempty"`                       // PNG track plot
	Chart           string `yaml:"chart" json:"chart,omitempty"`                     // HTML chart
	Path            string `yaml:"path" json:"path,omitempty"`                       // PNG plot of the GPS path of the altitude topic
	TopicsDirectory string `yaml:"topicsDirectory" json:"topicsDirectory,omitempty"` // Per-topic CSVs with seconds timestamps
}

// DefaultConfig returns the configuration used for keys missing from the file
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: slog.LevelInfo},
		Telemetry: TelemetryConfig{
			AttitudeTopic:  defaultAttitudeTopic,
			AltitudeTopic:  defaultAltitudeTopic,
			AltitudeColumn: telemetry.AltitudeColumn,
			NMEATopic:      defaultNMEATopic,
		},
		Video: VideoConfig{Stride: 1},
		Motion: MotionConfig{
			Threshold:      motion.DefaultThreshold,
			TrailingStatic: motion.DefaultTrailingStatic,
		},
		Resample: ResampleConfig{
			Mode:      resample.ModeIndex.String(),
			FrameTime: alignment.FrameUnits.String(),
		},
		Storage: StorageConfig{DataDirectory: defaultStorageDir},
	}
}

// LoadConfig reads a YAML configuration file over the defaults and validates it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document over the defaults and validates it.
// Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.Telemetry,
		&c.Video,
		&c.Window,
		&c.Motion,
		&c.Resample,
		&c.Storage,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Alignment converts the configuration into a session configuration
func (c *Config) Alignment() (alignment.Config, error) {
	cfg := alignment.DefaultConfig()

	cfg.TelemetryStart = c.Window.TelemetryStart
	cfg.TelemetryEnd = c.Window.TelemetryEnd
	if c.Window.VideoStart != nil {
		v := c.Window.VideoStart.Seconds()
		cfg.VideoStart = &v
	}
	if c.Window.VideoEnd != nil {
		v := c.Window.VideoEnd.Seconds()
		cfg.VideoEnd = &v
	}

	cfg.MotionThreshold = c.Motion.Threshold
	cfg.TrailingStatic = c.Motion.TrailingStatic

	var err error
	if cfg.Mode, err = resample.ParseMode(c.Resample.Mode); err != nil {
		return cfg, fmt.Errorf("app.ResampleConfig: %w", err)
	}
	if cfg.FrameTime, err = alignment.ParseFrameTime(c.Resample.FrameTime); err != nil {
		return cfg, fmt.Errorf("app.ResampleConfig: %w", err)
	}

	return cfg, cfg.Validate()
}

// Topics returns where the session inputs are found in the telemetry store
func (c *TelemetryConfig) Topics() alignment.Topics {
	topics := alignment.Topics{
		Attitude:       c.AttitudeTopic,
		Altitude:       c.AltitudeTopic,
		AltitudeColumn: c.AltitudeColumn,
	}
	if c.Euler != nil {
		topics.Euler = &orientation.EulerColumns{Roll: c.Euler.Roll, Pitch: c.Euler.Pitch, Yaw: c.Euler.Yaw}
	}
	return topics
}

func (c *TelemetryConfig) Validate() error {
	if c.CSVDirectory == "" {
		return errors.New("app.TelemetryConfig: CSV directory is required")
	}
	if c.AttitudeTopic == "" {
		return errors.New("app.TelemetryConfig: attitude topic is required")
	}
	if c.AltitudeTopic == "" || c.AltitudeColumn == "" {
		return errors.New("app.TelemetryConfig: altitude topic and column are required")
	}
	if c.Euler != nil && (c.Euler.Roll == "" || c.Euler.Pitch == "" || c.Euler.Yaw == "") {
		return errors.New("app.TelemetryConfig: euler roll, pitch and yaw columns are required")
	}
	if c.NMEAFile != "" && c.NMEATopic == "" {
		return errors.New("app.TelemetryConfig: NMEA topic is required with an NMEA file")
	}
	return nil
}

func (c *VideoConfig) Validate() error {
	if (c.Path == "") == (c.FrameDirectory == "") {
		return errors.New("app.VideoConfig: exactly one of path and frameDirectory is required")
	}
	if c.FPS < 0 {
		return fmt.Errorf("app.VideoConfig: fps must not be negative: %v", c.FPS)
	}
	if c.FrameDirectory != "" && c.FPS == 0 {
		return errors.New("app.VideoConfig: fps is required with a frame directory")
	}
	if c.Stride < 1 {
		return fmt.Errorf("app.VideoConfig: stride must be at least 1: %d given", c.Stride)
	}
	return nil
}

// Source returns the video file or frame directory
func (c *VideoConfig) Source() string {
	if c.Path != "" {
		return c.Path
	}
	return c.FrameDirectory
}

func (c *WindowConfig) Validate() error {
	for name, d := range map[string]*Duration{"video start": c.VideoStart, "video end": c.VideoEnd} {
		if d == nil {
			continue
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("app.WindowConfig: invalid %s: %w", name, err)
		}
	}
	if c.VideoStart != nil && c.VideoEnd != nil && *c.VideoEnd <= *c.VideoStart {
		return fmt.Errorf("app.WindowConfig: video end (%s) must be after start (%s): %w", c.VideoEnd, c.VideoStart, window.ErrEmptySyncWindow)
	}
	if c.TelemetryStart != nil && *c.TelemetryStart < 0 {
		return fmt.Errorf("app.WindowConfig: telemetry start must not be negative: %d", *c.TelemetryStart)
	}
	if c.TelemetryStart != nil && c.TelemetryEnd != nil && *c.TelemetryEnd <= *c.TelemetryStart {
		return fmt.Errorf("app.WindowConfig: telemetry end (%d) must be after start (%d): %w", *c.TelemetryEnd, *c.TelemetryStart, window.ErrEmptySyncWindow)
	}
	return nil
}

func (c *MotionConfig) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("app.MotionConfig: threshold must not be negative: %v", c.Threshold)
	}
	if c.TrailingStatic < 0 {
		return fmt.Errorf("app.MotionConfig: trailing static frames must not be negative: %d", c.TrailingStatic)
	}
	return nil
}

func (c *ResampleConfig) Validate() error {
	if _, err := resample.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("app.ResampleConfig: %w", err)
	}
	if _, err := alignment.ParseFrameTime(c.FrameTime); err != nil {
		return fmt.Errorf("app.ResampleConfig: %w", err)
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	if c.DataDirectory == "" {
		return errors.New("app.StorageConfig: data directory is required")
	}
	return nil
}
