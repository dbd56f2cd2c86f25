package export

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

// WriteChart renders an interactive HTML line chart of the synchronized
// tracks. Angles use the left axis, altitude the right one.
func WriteChart(w io.Writer, p telemetry.Provider, title, subtitle string) error {
	if p.Len() == 0 {
		return ErrNothingToPlot
	}

	tracks := append(angleTracks[:len(angleTracks):len(angleTracks)], altitudeTrack)

	x := make([]string, p.Len())
	series := make(map[string][]opts.LineData, len(angleTracks)+1)
	for i := 0; i < p.Len(); i++ {
		rec := p.At(i)
		x[i] = strconv.Itoa(rec.Index)

		for _, tr := range tracks {
			series[tr.name] = append(series[tr.name], lineData(tr.value(rec)))
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Angle (deg)", Min: -180, Max: 180}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Altitude (m)"})

	line.SetXAxis(x)
	for _, tr := range angleTracks {
		line.AddSeries(tr.name, series[tr.name])
	}
	line.AddSeries(altitudeTrack.name, series[altitudeTrack.name],
		charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

// lineData leaves gaps for missing samples
func lineData(v float64) opts.LineData {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return opts.LineData{Value: "-"}
	}
	return opts.LineData{Value: v}
}
