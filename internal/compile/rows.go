package compile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/metria/report-cli/internal/model"
)

// Row is one line of the metrics table. Variation is nil for figures that
// have no month-over-month comparison.
type Row struct {
	Label     string
	Value     string
	Variation *float64
}

const (
	maxLabelLen  = 40
	maxQueryRows = 5
)

// buildRows flattens the processed sections into display rows, in the fixed
// order the document presents them.
func buildRows(p *model.ProcessedMetrics) []Row {
	var rows []Row
	if ga := p.GoogleAnalytics; ga != nil {
		rows = append(rows,
			Row{Label: "Usuários (GA4)", Value: formatNumber(ga.Users), Variation: variation(ga.Variation, "users")},
			Row{Label: "Sessões", Value: formatNumber(ga.Sessions), Variation: variation(ga.Variation, "sessions")},
			Row{Label: "Pageviews", Value: formatNumber(ga.Pageviews), Variation: variation(ga.Variation, "pageviews")},
			Row{Label: "Taxa de rejeição", Value: fmt.Sprintf("%s%%", formatNumber(ga.BounceRate))},
			Row{Label: "Conversões", Value: formatNumber(ga.Conversions), Variation: variation(ga.Variation, "conversions")},
		)
	}
	if sc := p.SearchConsole; sc != nil {
		rows = append(rows,
			Row{Label: "Cliques (GSC)", Value: formatNumber(sc.TotalClicks), Variation: variation(sc.Variation, "totalClicks")},
			Row{Label: "Impressões", Value: formatNumber(sc.TotalImpressions), Variation: variation(sc.Variation, "totalImpressions")},
		)
	}
	if ma := p.MetaAds; ma != nil {
		rows = append(rows,
			Row{Label: "Investimento (Meta)", Value: fmt.Sprintf("R$ %.2f", ma.Spend), Variation: variation(ma.Variation, "spend")},
			Row{Label: "Alcance", Value: formatNumber(ma.Reach), Variation: variation(ma.Variation, "reach")},
			Row{Label: "Conversões", Value: formatNumber(ma.Conversions), Variation: variation(ma.Variation, "conversions")},
		)
	}
	return rows
}

// queryRows returns the top search queries by clicks capped at maxQueryRows,
// with remaining clicks aggregated into an "Outros" row.
func queryRows(queries []model.QueryStat) []Row {
	sorted := make([]model.QueryStat, len(queries))
	copy(sorted, queries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Clicks > sorted[j].Clicks })

	var rows []Row
	if len(sorted) <= maxQueryRows {
		for _, q := range sorted {
			rows = append(rows, Row{Label: truncate(q.Query, maxLabelLen), Value: formatNumber(q.Clicks)})
		}
		return rows
	}

	var others float64
	for i, q := range sorted {
		if i < maxQueryRows {
			rows = append(rows, Row{Label: truncate(q.Query, maxLabelLen), Value: formatNumber(q.Clicks)})
			continue
		}
		others += q.Clicks
	}
	rows = append(rows, Row{Label: "Outros", Value: formatNumber(math.Round(others*100) / 100)})
	return rows
}

// truncate shortens a label to max runes, reserving room for an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// formatNumber prints integers without decimals and everything else with two.
func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatVariation renders a signed percentage, or a dash when absent.
func formatVariation(v *float64) string {
	if v == nil {
		return "-"
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	if *v > 0 {
		return "+" + s + "%"
	}
	return s + "%"
}

func variation(m map[string]float64, key string) *float64 {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	return &v
}

// sanitizeLine collapses whitespace runs so model output renders evenly.
func sanitizeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
