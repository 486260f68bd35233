package compile

import (
	"bytes"

	"github.com/rotisserie/eris"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/metria/report-cli/internal/model"
)

const (
	chartWidth  = 600
	chartHeight = 300
)

var barColor = drawing.Color{R: 59, G: 130, B: 246, A: 180}

// renderBarChart draws a simple labeled bar chart as PNG.
func renderBarChart(title string, values []chart.Value) ([]byte, error) {
	if len(values) == 0 {
		return nil, eris.New("compile: no chart values")
	}
	for i := range values {
		values[i].Style = chart.Style{FillColor: barColor, StrokeColor: barColor}
	}
	bc := chart.BarChart{
		Title:    title,
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Bars: values,
	}
	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, eris.Wrapf(err, "compile: render chart %q", title)
	}
	return buf.Bytes(), nil
}

// sectionCharts builds the chart images for whichever sections have data.
// Chart rendering is best effort; a failed chart is skipped, never fatal.
func sectionCharts(p *model.ProcessedMetrics) []namedChart {
	var charts []namedChart

	if ga := p.GoogleAnalytics; ga != nil {
		charts = append(charts, namedChart{
			name:  "google-analytics",
			title: "Google Analytics",
			values: []chart.Value{
				{Label: "Usuarios", Value: nonZero(ga.Users)},
				{Label: "Sessoes", Value: nonZero(ga.Sessions)},
				{Label: "Pageviews", Value: nonZero(ga.Pageviews)},
			},
		})
	}
	if sc := p.SearchConsole; sc != nil {
		charts = append(charts, namedChart{
			name:  "search-console",
			title: "Search Console",
			values: []chart.Value{
				{Label: "Cliques", Value: nonZero(sc.TotalClicks)},
				{Label: "Impressoes", Value: nonZero(sc.TotalImpressions)},
			},
		})
	}
	if ma := p.MetaAds; ma != nil {
		charts = append(charts, namedChart{
			name:  "meta-ads",
			title: "Meta Ads",
			values: []chart.Value{
				{Label: "Alcance", Value: nonZero(ma.Reach)},
				{Label: "Impressoes", Value: nonZero(ma.Impressions)},
				{Label: "Cliques", Value: nonZero(ma.Clicks)},
			},
		})
	}
	return charts
}

type namedChart struct {
	name   string
	title  string
	values []chart.Value
}

// nonZero floors chart values at a tiny positive number; go-chart cannot
// scale an all-zero series.
func nonZero(v float64) float64 {
	if v <= 0 {
		return 0.0001
	}
	return v
}
