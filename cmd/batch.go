package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	batchPeriod string
	batchLimit  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate reports for every active client of the agency",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		period, err := parsePeriod(batchPeriod)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := batchLimit
		if limit <= 0 {
			limit = cfg.Pipeline.MaxConcurrentClients
		}

		result, err := env.Runner.RunBatch(ctx, cfg.Agency.ID, period, limit)
		if err != nil {
			return eris.Wrap(err, "run batch")
		}

		zap.L().Info("batch finished",
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed))
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchPeriod, "period", "", "report period as YYYY-MM (default: previous month)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max clients processed concurrently (default: config)")
	rootCmd.AddCommand(batchCmd)
}
