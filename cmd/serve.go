package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion webhook and metrics server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		registry := prometheus.NewRegistry()
		sink := metrics.NewPromSink(registry)

		env, err := initPipeline(ctx, sink)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		r.Post("/ingest", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Tenant  string `json:"tenant"`
				Mailbox string `json:"mailbox"`
				From    string `json:"from"`
				Subject string `json:"subject"`
				RawText string `json:"raw_text"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if body.From == "" && body.Subject == "" && body.RawText == "" {
				http.Error(w, `{"error":"empty email"}`, http.StatusBadRequest)
				return
			}

			tenant := tenantFlag(cfg.Tenant, body.Tenant)
			raw := model.RawEmail{
				Mailbox: body.Mailbox,
				From:    body.From,
				Subject: body.Subject,
				RawText: body.RawText,
			}

			res, err := env.Orchestrator.IngestEmail(req.Context(), tenant, raw)
			if err != nil {
				zap.L().Error("webhook ingestion failed",
					zap.String("tenant_id", tenant),
					zap.Error(err),
				)
				http.Error(w, `{"error":"ingestion failed"}`, http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(res)
		})

		r.Post("/leads/{leadID}/contact", func(w http.ResponseWriter, req *http.Request) {
			tenant := tenantFlag(cfg.Tenant, req.URL.Query().Get("tenant"))
			leadID := chi.URLParam(req, "leadID")

			lead, changed, err := env.Orchestrator.MarkContacted(req.Context(), tenant, leadID, "api")
			if err != nil {
				http.Error(w, `{"error":"transition failed"}`, http.StatusConflict)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{"lead": lead, "changed": changed})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			if err := drainOnDone(ctx, srv); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// drainOnDone blocks until ctx is canceled, then gracefully drains the
// server. The trigger context is already dead at that point, so the drain
// runs on its own deadline.
func drainOnDone(ctx context.Context, srv *http.Server) error {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(drainCtx)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
