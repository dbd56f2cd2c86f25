package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/roman-kulish/flight-video-sync/internal/overlay"
)

type Config struct {
	DBPath    string
	SessionID int64
	OutputDir string
	Format    overlay.ImageFormat
	From      *int // First frame of the window to render
	To        *int // Frame past the last one to render
	FontSize  float64
	Progress  bool
	FFmpeg    string
	FFprobe   string
	Verbose   bool
}

func NewConfig() *Config {
	return &Config{
		SessionID: 1,
		Format:    overlay.ImagePNG,
		FontSize:  20,
	}
}

// NewConfigFromCLI parses the process command line
func NewConfigFromCLI() (*Config, error) {
	c, err := ParseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}

// ParseArgs parses and validates the command line arguments
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat string
	var from, to int
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", c.SessionID, "Session ID")
	fs.StringVar(&c.OutputDir, "o", "", "Output directory for the rendered frames")
	fs.StringVar(&imageFormat, "f", string(overlay.ImagePNG), "Output image format. [png, jpeg]")
	fs.IntVar(&from, "from", 0, "First frame of the synchronized window to render")
	fs.IntVar(&to, "to", 0, "Frame past the last one to render")
	fs.Float64Var(&c.FontSize, "font-size", c.FontSize, "Overlay font size in points")
	fs.BoolVar(&c.Progress, "progress", false, "Add a frame counter line to the overlay")
	fs.StringVar(&c.FFmpeg, "ffmpeg", "", "Path to the ffmpeg binary")
	fs.StringVar(&c.FFprobe, "ffprobe", "", "Path to the ffprobe binary")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "from" {
			c.From = &from
		}
		if f.Name == "to" {
			c.To = &to
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputDir == "" {
		err = errors.New("output directory is required")
	} else if c.From != nil && *c.From < 0 {
		err = fmt.Errorf("invalid first frame: %d", *c.From)
	} else if c.From != nil && c.To != nil && *c.To <= *c.From {
		err = fmt.Errorf("invalid frame range: [%d, %d)", *c.From, *c.To)
	} else if !(c.FontSize > 0) {
		err = fmt.Errorf("invalid font size: %v", c.FontSize)
	}
	if err != nil {
		return nil, err
	}

	if c.Format, err = overlay.ParseImageFormat(imageFormat); err != nil {
		return nil, err
	}
	return c, nil
}
