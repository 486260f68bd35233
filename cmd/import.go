package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/internal/store"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Backfill historical metrics from a JSON file",
	Long:  "Reads an array of metric records (client_id, agency_id, source, period, data) and upserts them, so month-over-month comparisons work from the first generated report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if importFile == "" {
			return eris.New("--file is required")
		}
		raw, err := os.ReadFile(importFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", importFile)
		}
		var metrics []model.Metric
		if err := json.Unmarshal(raw, &metrics); err != nil {
			return eris.Wrap(err, "parse metrics file")
		}
		if len(metrics) == 0 {
			zap.L().Info("nothing to import")
			return nil
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		// Postgres gets a single COPY-backed merge; other drivers upsert
		// row by row.
		if pg, ok := st.(*store.PostgresStore); ok {
			n, err := pg.BulkUpsertMetrics(ctx, metrics)
			if err != nil {
				return eris.Wrap(err, "bulk import metrics")
			}
			zap.L().Info("metrics imported", zap.Int64("rows", n))
			return nil
		}

		for _, m := range metrics {
			if err := st.UpsertMetric(ctx, m); err != nil {
				return eris.Wrapf(err, "import metric %s %s", m.ClientID, m.Source)
			}
		}
		zap.L().Info("metrics imported", zap.Int("rows", len(metrics)))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to a JSON array of metric records (required)")
	rootCmd.AddCommand(importCmd)
}
