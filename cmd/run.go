package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metria/report-cli/internal/model"
)

var (
	runClientID string
	runPeriod   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and deliver the report for a single client",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runClientID == "" {
			return eris.New("--client is required")
		}
		period, err := parsePeriod(runPeriod)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Runner.Run(ctx, runClientID, period)
		if err != nil {
			return eris.Wrap(err, "run report")
		}

		zap.L().Info("report finished",
			zap.String("report_id", report.ID),
			zap.String("status", string(report.Status)),
			zap.String("pdf_url", report.PdfURL))
		return nil
	},
}

// parsePeriod accepts YYYY-MM; empty means the previous month.
func parsePeriod(s string) (time.Time, error) {
	if s == "" {
		return model.PrevMonth(time.Now().UTC()), nil
	}
	t, err := time.ParseInLocation("2006-01", s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid period %q, expected YYYY-MM", s)
	}
	return t, nil
}

func init() {
	runCmd.Flags().StringVar(&runClientID, "client", "", "client id (required)")
	runCmd.Flags().StringVar(&runPeriod, "period", "", "report period as YYYY-MM (default: previous month)")
	rootCmd.AddCommand(runCmd)
}
