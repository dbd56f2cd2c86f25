package app

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-video-sync/internal/overlay"
)

func parse(args ...string) (*Config, error) {
	fs := flag.NewFlagSet("overlay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return ParseArgs(fs, args)
}

func TestParseArgs(t *testing.T) {
	c, err := parse("-db", "sync.sqlite", "-s", "3", "-o", "out", "-f", "JPG", "-from", "0", "-to", "10", "-progress")
	require.NoError(t, err)

	assert.Equal(t, "sync.sqlite", c.DBPath)
	assert.Equal(t, int64(3), c.SessionID)
	assert.Equal(t, overlay.ImageJPEG, c.Format)
	require.NotNil(t, c.From, "explicit zero is kept")
	assert.Equal(t, 0, *c.From)
	require.NotNil(t, c.To)
	assert.Equal(t, 10, *c.To)
	assert.True(t, c.Progress)
	assert.Equal(t, 20.0, c.FontSize)

	c, err = parse("-db", "sync.sqlite", "-o", "out")
	require.NoError(t, err)
	assert.Nil(t, c.From)
	assert.Nil(t, c.To)
	assert.Equal(t, overlay.ImagePNG, c.Format)
	assert.Equal(t, int64(1), c.SessionID)
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no db", []string{"-o", "out"}},
		{"no output", []string{"-db", "x"}},
		{"bad session", []string{"-db", "x", "-o", "out", "-s", "0"}},
		{"bad format", []string{"-db", "x", "-o", "out", "-f", "gif"}},
		{"negative from", []string{"-db", "x", "-o", "out", "-from", "-1"}},
		{"inverted range", []string{"-db", "x", "-o", "out", "-from", "5", "-to", "5"}},
		{"bad font size", []string{"-db", "x", "-o", "out", "-font-size", "0"}},
		{"unknown flag", []string{"-db", "x", "-o", "out", "-heat"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.args...)
			require.Error(t, err)
		})
	}
}

func TestRenderRange(t *testing.T) {
	from, to, far := 2, 5, 100

	tests := []struct {
		name   string
		config Config
		lo, hi int
	}{
		{"full window", Config{}, 0, 8},
		{"from", Config{From: &from}, 2, 8},
		{"to", Config{To: &to}, 0, 5},
		{"clamped", Config{From: &from, To: &far}, 2, 8},
		{"past the end", Config{From: &far}, 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := renderRange(&tt.config, 8)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}
