package export

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

var ErrNothingToPlot = errors.New("nothing to plot")

var (
	rollColor     = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	pitchColor    = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	yawColor      = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	altitudeColor = color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff}
)

type track struct {
	name  string
	color color.Color
	value func(t *telemetry.Telemetry) float64
}

var angleTracks = []track{
	{"roll", rollColor, func(t *telemetry.Telemetry) float64 { return t.Roll }},
	{"pitch", pitchColor, func(t *telemetry.Telemetry) float64 { return t.Pitch }},
	{"yaw", yawColor, func(t *telemetry.Telemetry) float64 { return t.Yaw }},
}

var altitudeTrack = track{"altitude", altitudeColor, func(t *telemetry.Telemetry) float64 { return t.Altitude }}

// PlotTracks renders the attitude angles and the altitude against the frame
// index as two stacked panels and saves them as a PNG image.
func PlotTracks(p telemetry.Provider, title, path string) (err error) {
	if p.Len() == 0 {
		return ErrNothingToPlot
	}

	angles := plot.New()
	angles.Title.Text = title
	angles.Y.Label.Text = "Angle (deg)"
	angles.Y.Min, angles.Y.Max = -180, 180
	angles.Add(plotter.NewGrid())

	for _, tr := range angleTracks {
		if err = addLine(angles, p, tr); err != nil {
			return err
		}
	}

	altitude := plot.New()
	altitude.X.Label.Text = "Frame"
	altitude.Y.Label.Text = "Altitude (m)"
	altitude.Add(plotter.NewGrid())

	if err = addLine(altitude, p, altitudeTrack); err != nil {
		return err
	}

	for _, pl := range []*plot.Plot{angles, altitude} {
		pl.Legend.Top = true
		pl.Legend.Left = false
		pl.Legend.XOffs = -10
		pl.Legend.YOffs = -10
	}

	img := vgimg.New(14*vg.Inch, 10*vg.Inch)
	dc := draw.New(img)

	plots := [][]*plot.Plot{{angles}, {altitude}}
	canvases := plot.Align(plots, draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8)}, dc)
	for j := range plots {
		plots[j][0].Draw(canvases[j][0])
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating plot file: %w", err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing plot file: %w", cErr)
		}
	}()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err = png.WriteTo(out); err != nil {
		return fmt.Errorf("writing plot: %w", err)
	}
	return nil
}

// PlotPath saves the horizontal GPS path of a table in local east/north meters
func PlotPath(t *telemetry.Table, path string) error {
	east, north, err := telemetry.ProjectTable(t)
	if err != nil {
		return fmt.Errorf("projecting GPS fixes: %w", err)
	}
	if len(east) == 0 {
		return ErrNothingToPlot
	}

	pts := make(plotter.XYs, len(east))
	for i := range east {
		pts[i] = plotter.XY{X: east[i], Y: north[i]}
	}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("%s path", t.Topic)
	pl.X.Label.Text = "East (m)"
	pl.Y.Label.Text = "North (m)"
	pl.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("creating path line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = pitchColor
	pl.Add(line)

	if err = pl.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("saving path plot: %w", err)
	}
	return nil
}

func addLine(pl *plot.Plot, p telemetry.Provider, tr track) error {
	pts := make(plotter.XYs, p.Len())
	for i := range pts {
		rec := p.At(i)
		pts[i] = plotter.XY{X: float64(rec.Index), Y: tr.value(rec)}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("creating %s line: %w", tr.name, err)
	}
	line.Width = vg.Points(1)
	line.Color = tr.color

	pl.Add(line)
	pl.Legend.Add(tr.name, line)
	return nil
}
