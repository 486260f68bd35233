package model

import (
	"fmt"
	"strings"
	"time"
)

// ReportStatus is the single source of truth for a run's progress. Transitions
// are strictly forward; the orchestrator persists the new status before
// executing each stage's work.
type ReportStatus string

const (
	StatusPending    ReportStatus = "PENDING"
	StatusIngesting  ReportStatus = "INGESTING"
	StatusProcessing ReportStatus = "PROCESSING"
	StatusAnalyzing  ReportStatus = "ANALYZING"
	StatusCompiling  ReportStatus = "COMPILING"
	StatusStoring    ReportStatus = "STORING"
	StatusDelivering ReportStatus = "DELIVERING"
	StatusCompleted  ReportStatus = "COMPLETED"
	StatusFailed     ReportStatus = "FAILED"
	StatusPartial    ReportStatus = "PARTIAL"
)

// Terminal reports whether the status is an absorbing state.
func (s ReportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// IngestReason is the closed set of source-scoped ingestion failure codes.
type IngestReason string

const (
	ReasonAuth401            IngestReason = "AUTH_401"
	ReasonAuth403            IngestReason = "AUTH_403"
	ReasonTokenExpired       IngestReason = "TOKEN_EXPIRED"
	ReasonTokenRefreshFailed IngestReason = "TOKEN_REFRESH_FAILED"
	ReasonRateLimited        IngestReason = "RATE_LIMITED"
	ReasonUnknown            IngestReason = "UNKNOWN"
)

// IngestFailure pairs a source with the reason its fetch failed.
type IngestFailure struct {
	Source MetricSource `json:"source"`
	Reason IngestReason `json:"reason"`
}

const partialMarkerPrefix = "PARTIAL_INGEST"

// FormatPartialMarker encodes ingestion failures into the machine-parsable
// errorMessage written on PARTIAL runs: one PARTIAL_INGEST:<source>:<reason>
// entry per failed source, joined by "; " in attempt order.
func FormatPartialMarker(failures []IngestFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s:%s:%s", partialMarkerPrefix, f.Source, f.Reason))
	}
	return strings.Join(parts, "; ")
}

// ParsePartialMarker decodes an errorMessage produced by FormatPartialMarker.
// Entries that do not match the marker shape are skipped.
func ParsePartialMarker(msg string) []IngestFailure {
	var failures []IngestFailure
	for _, part := range strings.Split(msg, ";") {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 3)
		if len(fields) != 3 || fields[0] != partialMarkerPrefix {
			continue
		}
		failures = append(failures, IngestFailure{
			Source: MetricSource(fields[1]),
			Reason: IngestReason(fields[2]),
		})
	}
	return failures
}

// Report is one pipeline run record, unique per (client, period).
type Report struct {
	ID           string       `json:"id"`
	ClientID     string       `json:"client_id"`
	AgencyID     string       `json:"agency_id"`
	Period       time.Time    `json:"period"`
	Status       ReportStatus `json:"status"`
	AIAnalysis   string       `json:"ai_analysis,omitempty"`
	PdfURL       string       `json:"pdf_url,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	SentAt       *time.Time   `json:"sent_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
