// Package pipeline orchestrates the monthly report run: ingest, process,
// analyze, compile, store, deliver. The persisted report status is written
// before each stage executes, so observers polling the report see "stage in
// progress" rather than "stage done".
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metria/report-cli/internal/analyze"
	"github.com/metria/report-cli/internal/artifact"
	"github.com/metria/report-cli/internal/compile"
	"github.com/metria/report-cli/internal/deliver"
	"github.com/metria/report-cli/internal/ingest"
	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/internal/resilience"
	"github.com/metria/report-cli/internal/store"
)

// Ingestor fetches and persists raw metrics for a client and period.
type Ingestor interface {
	Ingest(ctx context.Context, client *model.Client, period time.Time) (ingest.Result, error)
}

// Processor derives normalized, diffed metrics from stored rows.
type Processor interface {
	Process(ctx context.Context, clientID string, period time.Time) (*model.ProcessedMetrics, error)
}

// Options tunes orchestrator behavior.
type Options struct {
	// MaxIngestRetries is the number of ingest re-attempts after the first
	// try, applied only to rate-limit failures.
	MaxIngestRetries int
	// IngestBackoff is the base delay between rate-limited ingest attempts;
	// actual delay is IngestBackoff * 2^attempt.
	IngestBackoff time.Duration
}

// Runner drives the report pipeline for one client at a time.
type Runner struct {
	store     store.Store
	ingestor  Ingestor
	processor Processor
	analyzer  analyze.Analyzer
	compiler  compile.Compiler
	artifacts artifact.Store
	deliverer deliver.Deliverer
	opts      Options

	now func() time.Time
}

// New creates a Runner from its stage implementations.
func New(st store.Store, ing Ingestor, proc Processor, an analyze.Analyzer, comp compile.Compiler, art artifact.Store, del deliver.Deliverer, opts Options) *Runner {
	return &Runner{
		store:     st,
		ingestor:  ing,
		processor: proc,
		analyzer:  an,
		compiler:  comp,
		artifacts: art,
		deliverer: del,
		opts:      opts,
		now:       time.Now,
	}
}

// Run executes the full pipeline for one client and period. The period is
// normalized to the first of its month. Fatal stage errors are persisted as
// FAILED and re-raised; source-scoped ingest failures degrade the terminal
// status to PARTIAL instead.
func (r *Runner) Run(ctx context.Context, clientID string, period time.Time) (*model.Report, error) {
	period = model.MonthStart(period)
	log := zap.L().With(zap.String("client_id", clientID), zap.String("period", model.PeriodLabel(period)))

	client, err := r.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load client")
	}

	report, err := r.store.UpsertReport(ctx, client.ID, client.AgencyID, period)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: upsert report")
	}
	log = log.With(zap.String("report_id", report.ID))

	fail := func(stageErr error) (*model.Report, error) {
		if updErr := r.store.UpdateReportStatus(ctx, report.ID, model.StatusFailed, stageErr.Error()); updErr != nil {
			log.Error("failed to persist FAILED status", zap.Error(updErr))
		}
		log.Error("pipeline run failed", zap.Error(stageErr))
		return nil, stageErr
	}

	// Ingest, retrying only on rate limiting.
	if err := r.store.UpdateReportStatus(ctx, report.ID, model.StatusIngesting, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: set status")
	}
	ingested, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    r.opts.MaxIngestRetries + 1,
		InitialBackoff: r.opts.IngestBackoff,
		OnRetry: func(attempt int, err error) {
			log.Warn("ingest rate limited, backing off", zap.Int("attempt", attempt), zap.Error(err))
		},
	}, func(ctx context.Context) (ingest.Result, error) {
		return r.ingestor.Ingest(ctx, client, period)
	})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: ingest"))
	}
	if ingested.AllFailed() {
		return fail(eris.Errorf("pipeline: all sources failed ingestion: %s",
			model.FormatPartialMarker(ingested.Failed)))
	}

	if err := r.store.UpdateReportStatus(ctx, report.ID, model.StatusProcessing, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: set status")
	}
	processed, err := r.processor.Process(ctx, client.ID, period)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: process"))
	}

	if err := r.store.UpdateReportStatus(ctx, report.ID, model.StatusAnalyzing, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: set status")
	}
	analysis, err := r.analyzer.Analyze(ctx, processed)
	if err != nil {
		// The live analyzer falls back internally and never errors; an error
		// here is an infrastructure contract violation, which is fatal.
		return fail(eris.Wrap(err, "pipeline: analyze"))
	}
	if err := r.store.SetReportAnalysis(ctx, report.ID, analysis); err != nil {
		return fail(eris.Wrap(err, "pipeline: persist analysis"))
	}

	if err := r.store.UpdateReportStatus(ctx, report.ID, model.StatusCompiling, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: set status")
	}
	pdf, err := r.compiler.Compile(compile.Request{
		ClientName: client.Name,
		Period:     model.PeriodLabel(period),
		Processed:  processed,
		AIAnalysis: analysis,
	})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: compile"))
	}

	if err := r.store.UpdateReportStatus(ctx, report.ID, model.StatusStoring, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: set status")
	}
	pdfURL, err := r.artifacts.Save(ctx, client.ID, period, pdf)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: store artifact"))
	}
	if pdfURL != "" {
		if err := r.store.SetReportPdfURL(ctx, report.ID, pdfURL); err != nil {
			return fail(eris.Wrap(err, "pipeline: persist pdf url"))
		}
	}

	if err := r.store.UpdateReportStatus(ctx, report.ID, model.StatusDelivering, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: set status")
	}
	delivered, err := r.deliverer.Deliver(ctx, deliver.Request{
		ClientName:  client.Name,
		PeriodLabel: model.PeriodLabel(period),
		Email:       client.Email,
		Phone:       client.Phone,
		PdfURL:      pdfURL,
	})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: deliver"))
	}

	// Terminal: PARTIAL when some sources failed ingestion, COMPLETED
	// otherwise. Both are sent terminals.
	terminal := model.StatusCompleted
	errorMessage := ""
	if len(ingested.Failed) > 0 {
		terminal = model.StatusPartial
		errorMessage = model.FormatPartialMarker(ingested.Failed)
	}
	sentAt := r.now().UTC()
	if err := r.store.FinishReport(ctx, report.ID, terminal, errorMessage, sentAt); err != nil {
		return nil, eris.Wrap(err, "pipeline: finish report")
	}

	log.Info("pipeline run finished",
		zap.String("status", string(terminal)),
		zap.Bool("whatsapp_sent", delivered.WhatsAppSent),
		zap.Bool("email_sent", delivered.EmailSent))

	final, err := r.store.GetReport(ctx, report.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reload report")
	}
	return final, nil
}
