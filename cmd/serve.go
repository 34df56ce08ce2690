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
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coeus-crm/leadgen-cli/internal/enrich"
	"github.com/coeus-crm/leadgen-cli/internal/ingest"
	"github.com/coeus-crm/leadgen-cli/internal/model"
	outreachsvc "github.com/coeus-crm/leadgen-cli/internal/outreach"
	"github.com/coeus-crm/leadgen-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long:  "Serves the ingest webhook, the outreach event webhook, lead/run queries and health checks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		_, pool, err := initEnrichment(st)
		if err != nil {
			return err
		}
		defer pool.Close()

		ingestSvc := initIngest(st, func(leadID string) error {
			_, err := pool.Enqueue(leadID)
			return err
		})

		outreachSvc, err := initOutreach(st)
		if err != nil {
			return err
		}

		router := newRouter(st, ingestSvc, outreachSvc, pool)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// A fresh context so in-flight handlers get to finish before
			// the pool is closed behind them.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(st store.Store, ingestSvc *ingest.Service, outreachSvc *outreachsvc.Service, pool *enrich.Pool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"pending": pool.Pending(),
		})
	})

	// Listings batches pushed by the provider or an operator.
	r.Post("/webhook/ingest", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			RunID   string            `json:"run_id,omitempty"`
			Records []model.RawRecord `json:"records"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(body.Records) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "records is required"})
			return
		}

		stats, err := ingestSvc.IngestBatch(req.Context(), body.RunID, body.Records)
		if err != nil {
			zap.L().Error("webhook ingest failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	// Outreach provider event callbacks.
	r.Post("/webhook/outreach", func(w http.ResponseWriter, req *http.Request) {
		var ev outreachsvc.ProviderEvent
		if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		inserted, err := outreachSvc.HandleEvent(req.Context(), ev)
		if err != nil {
			zap.L().Warn("webhook outreach event rejected", zap.String("type", ev.Type), zap.Error(err))
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"recorded": inserted})
	})

	r.Get("/leads", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		leads, err := st.ListLeads(req.Context(), store.LeadFilter{
			Tier:          model.Tier(q.Get("tier")),
			City:          q.Get("city"),
			Stage:         model.PipelineStage(q.Get("stage")),
			RoutingStatus: model.RoutingStatus(q.Get("routing_status")),
			RunID:         q.Get("run_id"),
		})
		if err != nil {
			zap.L().Error("list leads failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
			return
		}
		writeJSON(w, http.StatusOK, leads)
	})

	r.Get("/leads/{id}", func(w http.ResponseWriter, req *http.Request) {
		lead, err := st.GetLead(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			zap.L().Error("get lead failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "get failed"})
			return
		}
		if lead == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
			return
		}
		writeJSON(w, http.StatusOK, lead)
	})

	r.Get("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, pool.Snapshot())
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
