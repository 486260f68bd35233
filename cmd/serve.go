package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for report generation requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Set up routes
		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /api/reports/generate", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				ClientID string `json:"clientId"`
				Period   string `json:"period"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}

			if req.ClientID == "" {
				http.Error(w, `{"error":"clientId is required"}`, http.StatusBadRequest)
				return
			}

			period, err := parsePeriod(req.Period)
			if err != nil {
				http.Error(w, `{"error":"period must be YYYY-MM"}`, http.StatusBadRequest)
				return
			}

			// Run the pipeline asynchronously
			go func() {
				report, err := env.Runner.Run(ctx, req.ClientID, period)
				if err != nil {
					zap.L().Error("report generation failed",
						zap.String("client_id", req.ClientID),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("report generation complete",
					zap.String("client_id", req.ClientID),
					zap.String("report_id", report.ID),
					zap.String("status", string(report.Status)),
				)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status":   "accepted",
				"clientId": req.ClientID,
			})
		})

		mux.HandleFunc("GET /api/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
			report, err := env.Store.GetReport(r.Context(), r.PathValue("id"))
			if err != nil {
				http.Error(w, `{"error":"report not found"}`, http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(report)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
