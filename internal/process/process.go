// Package process turns raw per-source metric rows into the normalized
// structure the analyzer and compiler consume, computing month-over-month
// percent variation for the headline fields.
package process

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/internal/store"
)

// Processor loads current and previous period metrics and derives sections.
type Processor struct {
	store store.Store
}

// New creates a Processor backed by the given store.
func New(st store.Store) *Processor {
	return &Processor{store: st}
}

// Process builds ProcessedMetrics for the client and period. A source with
// data in either the current or the previous period produces a section: a
// missing current row zero-fills the current figures, a missing previous row
// gets variation computed against zero.
func (p *Processor) Process(ctx context.Context, clientID string, period time.Time) (*model.ProcessedMetrics, error) {
	current, err := p.store.ListMetrics(ctx, clientID, period)
	if err != nil {
		return nil, eris.Wrap(err, "process: load current metrics")
	}
	previous, err := p.store.ListMetrics(ctx, clientID, model.PrevMonth(period))
	if err != nil {
		return nil, eris.Wrap(err, "process: load previous metrics")
	}

	curBySource := bySource(current)
	prevBySource := bySource(previous)

	out := &model.ProcessedMetrics{Period: model.PeriodLabel(period)}
	for _, src := range model.AllSources() {
		cur, curOK := curBySource[src]
		prev, prevOK := prevBySource[src]
		if !curOK && !prevOK {
			continue
		}
		switch src {
		case model.SourceGoogleAnalytics:
			section, err := buildGASection(cur, prev)
			if err != nil {
				return nil, err
			}
			out.GoogleAnalytics = section
		case model.SourceSearchConsole:
			section, err := buildGSCSection(cur, prev)
			if err != nil {
				return nil, err
			}
			out.SearchConsole = section
		case model.SourceMetaAds:
			section, err := buildMetaSection(cur, prev)
			if err != nil {
				return nil, err
			}
			out.MetaAds = section
		}
	}
	return out, nil
}

func bySource(metrics []model.Metric) map[model.MetricSource]json.RawMessage {
	m := make(map[model.MetricSource]json.RawMessage, len(metrics))
	for _, metric := range metrics {
		switch metric.Source {
		case model.SourceGoogleAnalytics, model.SourceSearchConsole, model.SourceMetaAds:
			m[metric.Source] = metric.Data
		default:
			zap.L().Warn("skipping metric with unknown source", zap.String("source", string(metric.Source)))
		}
	}
	return m
}

func buildGASection(cur, prev json.RawMessage) (*model.GoogleAnalyticsSection, error) {
	var current model.GoogleAnalyticsData
	if len(cur) > 0 {
		if err := json.Unmarshal(cur, &current); err != nil {
			return nil, eris.Wrap(err, "process: decode google analytics data")
		}
	}
	var previous model.GoogleAnalyticsData
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &previous); err != nil {
			return nil, eris.Wrap(err, "process: decode previous google analytics data")
		}
	}
	return &model.GoogleAnalyticsSection{
		GoogleAnalyticsData: current,
		Variation: map[string]float64{
			"users":       Variation(current.Users, previous.Users),
			"sessions":    Variation(current.Sessions, previous.Sessions),
			"pageviews":   Variation(current.Pageviews, previous.Pageviews),
			"conversions": Variation(current.Conversions, previous.Conversions),
		},
	}, nil
}

func buildGSCSection(cur, prev json.RawMessage) (*model.SearchConsoleSection, error) {
	var current model.SearchConsoleData
	if len(cur) > 0 {
		if err := json.Unmarshal(cur, &current); err != nil {
			return nil, eris.Wrap(err, "process: decode search console data")
		}
	}
	var previous model.SearchConsoleData
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &previous); err != nil {
			return nil, eris.Wrap(err, "process: decode previous search console data")
		}
	}
	return &model.SearchConsoleSection{
		SearchConsoleData: current,
		Variation: map[string]float64{
			"totalClicks":      Variation(current.TotalClicks, previous.TotalClicks),
			"totalImpressions": Variation(current.TotalImpressions, previous.TotalImpressions),
		},
	}, nil
}

func buildMetaSection(cur, prev json.RawMessage) (*model.MetaAdsSection, error) {
	var current model.MetaAdsData
	if len(cur) > 0 {
		if err := json.Unmarshal(cur, &current); err != nil {
			return nil, eris.Wrap(err, "process: decode meta ads data")
		}
	}
	var previous model.MetaAdsData
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &previous); err != nil {
			return nil, eris.Wrap(err, "process: decode previous meta ads data")
		}
	}
	return &model.MetaAdsSection{
		MetaAdsData: current,
		Variation: map[string]float64{
			"spend":       Variation(current.Spend, previous.Spend),
			"reach":       Variation(current.Reach, previous.Reach),
			"impressions": Variation(current.Impressions, previous.Impressions),
			"clicks":      Variation(current.Clicks, previous.Clicks),
			"conversions": Variation(current.Conversions, previous.Conversions),
		},
	}, nil
}

// Variation returns the month-over-month percent change, rounded to two
// decimal places. A zero previous value yields 100 when the current value is
// positive and 0 otherwise.
func Variation(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return math.Round((current-previous)/previous*10000) / 100
}
