package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metria/report-cli/internal/model"
)

// BatchResult summarizes a batch run. A client whose run ended FAILED still
// counts as processed; its report row carries the failure detail.
type BatchResult struct {
	Processed int
	Failed    int
}

// RunBatch executes the pipeline for every active client of the agency, at
// most maxConcurrent at a time. One client's failure never stops the others.
func (r *Runner) RunBatch(ctx context.Context, agencyID string, period time.Time, maxConcurrent int) (BatchResult, error) {
	period = model.MonthStart(period)
	clients, err := r.store.ListActiveClients(ctx, agencyID)
	if err != nil {
		return BatchResult{}, eris.Wrap(err, "pipeline: list active clients")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	zap.L().Info("starting batch run",
		zap.String("agency_id", agencyID),
		zap.String("period", model.PeriodLabel(period)),
		zap.Int("clients", len(clients)),
		zap.Int("max_concurrent", maxConcurrent))

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, client := range clients {
		g.Go(func() error {
			if _, err := r.Run(gctx, client.ID, period); err != nil {
				failed.Add(1)
				zap.L().Error("client run failed in batch",
					zap.String("client_id", client.ID), zap.Error(err))
			}
			// Failures are contained per client.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, eris.Wrap(err, "pipeline: batch wait")
	}

	res := BatchResult{Processed: len(clients), Failed: int(failed.Load())}
	zap.L().Info("batch run finished",
		zap.Int("processed", res.Processed), zap.Int("failed", res.Failed))
	return res, nil
}

// PreviousMonth returns the default batch period: the month before now.
func PreviousMonth(now time.Time) time.Time {
	return model.PrevMonth(now)
}
