package model

// GoogleAnalyticsSection carries current GA4 figures plus percent variation
// against the previous period for selected fields.
type GoogleAnalyticsSection struct {
	GoogleAnalyticsData
	Variation map[string]float64 `json:"variation,omitempty"`
}

// SearchConsoleSection carries current Search Console figures plus variation.
type SearchConsoleSection struct {
	SearchConsoleData
	Variation map[string]float64 `json:"variation,omitempty"`
}

// MetaAdsSection carries current Meta Ads figures plus variation.
type MetaAdsSection struct {
	MetaAdsData
	Variation map[string]float64 `json:"variation,omitempty"`
}

// ProcessedMetrics is the normalized per-period structure handed to the
// analyzer and compiler. It is never persisted; it is recomputed on demand
// from Metric rows. Absent sources are nil sections.
type ProcessedMetrics struct {
	Period          string                  `json:"period"`
	GoogleAnalytics *GoogleAnalyticsSection `json:"googleAnalytics,omitempty"`
	SearchConsole   *SearchConsoleSection   `json:"searchConsole,omitempty"`
	MetaAds         *MetaAdsSection         `json:"metaAds,omitempty"`
}

// Empty reports whether no source produced a section.
func (p ProcessedMetrics) Empty() bool {
	return p.GoogleAnalytics == nil && p.SearchConsole == nil && p.MetaAds == nil
}
