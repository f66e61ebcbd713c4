package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/oasis-bot/pkg/logger"
)

// Probes answers the orchestrator's liveness and readiness questions.
type Probes interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// NewRouter builds the operations router: probes, a detailed health report and Prometheus metrics.
// mws run after correlation ids are assigned.
func NewRouter(log *slog.Logger, checker *Checker, probes Probes, mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware)
	r.Use(mws...)

	r.Get("/livez", probeHandler(probes.Liveness))
	r.Get("/readyz", probeHandler(probes.Readiness))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		report := checker.Check(req.Context())
		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			log.Error("encode health report", slog.Any("error", err))
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func probeHandler(probe func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := probe(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
}
