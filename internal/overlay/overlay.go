package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
	"github.com/roman-kulish/flight-video-sync/internal/video"
)

const (
	dpi             = 72.0
	defaultFontSize = 20.0
	lineSpacing     = 1.3
	padding         = 6
)

var (
	defaultOrigin     = image.Pt(20, 40)
	defaultColor      = color.RGBA{G: 255, A: 255}
	defaultBackground = color.RGBA{A: 160}
)

// Config holds the overlay text options. Zero values select the defaults.
type Config struct {
	FontSize   float64     // Font size in points
	Origin     image.Point // Baseline of the first text line
	Color      color.Color // Text color, green by default
	Background color.Color // Band behind the text, translucent black by default
	Progress   bool        // Adds a "Frame i of n" line
}

// Renderer draws the synchronized telemetry onto video frames
type Renderer struct {
	config   Config
	context  *freetype.Context
	fontFace font.Face
}

// NewRenderer creates a renderer using the Go regular font
func NewRenderer(config Config) (*Renderer, error) {
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}
	if config.Origin == (image.Point{}) {
		config.Origin = defaultOrigin
	}
	if config.Color == nil {
		config.Color = defaultColor
	}
	if config.Background == nil {
		config.Background = defaultBackground
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.NewUniform(config.Color))

	return &Renderer{
		config:  config,
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
	}, nil
}

func (r *Renderer) Close() error {
	if r.fontFace != nil {
		return r.fontFace.Close()
	}
	return nil
}

// Text formats the telemetry line drawn on every frame
func Text(t *telemetry.Telemetry) string {
	return fmt.Sprintf("Idx: %d | Time: %.2fs | Alt: %.2fm | Pitch: %.2f | Roll: %.2f | Yaw: %.2f",
		t.Index, t.Elapsed, t.Altitude, t.Pitch, t.Roll, t.Yaw)
}

// ProgressText formats the optional second line
func ProgressText(index, total int) string {
	return fmt.Sprintf("Frame %s of %s", humanize.Comma(int64(index+1)), humanize.Comma(int64(total)))
}

// Render returns a copy of the frame with the telemetry drawn in its top
// left corner. The frame itself is not modified.
func (r *Renderer) Render(frame *video.Frame, t *telemetry.Telemetry, total int) (*image.RGBA, error) {
	b := frame.Image.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), frame.Image, b.Min, draw.Src)

	lines := []string{Text(t)}
	if r.config.Progress {
		lines = append(lines, ProgressText(t.Index, total))
	}

	r.drawBackground(img, lines)

	r.context.SetClip(img.Bounds())
	r.context.SetDst(img)

	pt := freetype.Pt(r.config.Origin.X, r.config.Origin.Y)
	for _, line := range lines {
		if _, err := r.context.DrawString(line, pt); err != nil {
			return nil, fmt.Errorf("drawing text: %w", err)
		}
		pt.Y += r.context.PointToFixed(r.config.FontSize * lineSpacing)
	}

	return img, nil
}

// drawBackground darkens the area behind the text lines
func (r *Renderer) drawBackground(img *image.RGBA, lines []string) {
	metrics := r.fontFace.Metrics()
	lineHeight := int(r.config.FontSize * lineSpacing)

	var width int
	for _, line := range lines {
		width = max(width, font.MeasureString(r.fontFace, line).Round())
	}

	area := image.Rect(
		r.config.Origin.X-padding,
		r.config.Origin.Y-metrics.Ascent.Round()-padding,
		r.config.Origin.X+width+padding,
		r.config.Origin.Y+(len(lines)-1)*lineHeight+metrics.Descent.Round()+padding,
	)
	draw.Draw(img, area.Intersect(img.Bounds()), image.NewUniform(r.config.Background), image.Point{}, draw.Over)
}
