// Package chart renders session timelines as standalone echarts HTML pages.
package chart

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/formrep/internal/repcount"
	"github.com/ayusman/formrep/internal/session"
)

// AssetsHost serves the echarts javascript.
const AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Angles builds a line chart of elbow and hip angles over the reports.
// Skipped frames leave gaps. Dashed lines mark the counting thresholds.
func Angles(reports []session.Report, t repcount.Thresholds) *charts.Line {
	xs := make([]string, len(reports))
	elbow := make([]opts.LineData, len(reports))
	hip := make([]opts.LineData, len(reports))

	var start float64
	if len(reports) > 0 {
		start = float64(reports[0].Time.UnixMilli())
	}

	for i, r := range reports {
		xs[i] = strconv.FormatFloat((float64(r.Time.UnixMilli())-start)/1000, 'f', 1, 64)
		if !r.Evaluated() {
			elbow[i] = opts.LineData{Value: nil}
			hip[i] = opts.LineData{Value: nil}
			continue
		}
		elbow[i] = opts.LineData{Value: round1(r.ElbowAngle)}
		hip[i] = opts.LineData{Value: round1(r.HipAngle)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "formrep", Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Joint angles", Subtitle: fmt.Sprintf("frames=%d", len(reports))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "deg", Min: 0, Max: 180}),
	)

	line.SetXAxis(xs).
		AddSeries("elbow", elbow,
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "down", YAxis: t.ElbowDownMax},
				opts.MarkLineNameYAxisItem{Name: "up", YAxis: t.ElbowUpMin},
			),
		).
		AddSeries("hip", hip,
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "hip min", YAxis: 180 - t.HipTolerance},
			),
		)

	return line
}

// Depths builds a bar chart of the bottom elbow angle of every rep.
func Depths(reps []session.Rep) *charts.Bar {
	xs := make([]string, len(reps))
	ys := make([]opts.BarData, len(reps))
	for i, r := range reps {
		xs[i] = strconv.Itoa(r.Number)
		ys[i] = opts.BarData{Value: round1(r.Depth)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Rep depth", Subtitle: "lowest elbow angle per rep"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "rep"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "deg", Min: 0, Max: 180}),
	)
	bar.SetXAxis(xs).
		AddSeries("depth", ys, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	return bar
}

// Render writes a page with the angle timeline and rep depths to w.
func Render(w io.Writer, reports []session.Report, reps []session.Rep, t repcount.Thresholds) error {
	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(Angles(reports, t), Depths(reps))
	return page.Render(w)
}

func round1(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	return f
}
