package qhtprom

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Opts holds the configuration options for the metrics API
type Opts struct {
	// AuthMiddleware wraps the metrics handler when set.
	AuthMiddleware func(http.Handler) http.Handler
	// Gatherer is the source of the served metrics.
	// Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// MetricsAPI serves Prometheus-formatted metrics at /metrics.
type MetricsAPI struct {
	opts   Opts
	Router chi.Router
}

// NewMetricsAPI creates a metrics API serving opts.Gatherer.
func NewMetricsAPI(opts Opts) *MetricsAPI {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	api := &MetricsAPI{
		opts:   opts,
		Router: chi.NewRouter(),
	}
	api.setupRoutes()
	return api
}

func (api *MetricsAPI) setupRoutes() {
	handler := http.Handler(http.HandlerFunc(api.handleMetrics))
	if api.opts.AuthMiddleware != nil {
		handler = api.opts.AuthMiddleware(handler)
	}
	api.Router.Method(http.MethodGet, "/metrics", handler)
}

func (api *MetricsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.Router.ServeHTTP(w, r)
}

func (api *MetricsAPI) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metricFamilies, err := api.opts.Gatherer.Gather()
	if err != nil {
		http.Error(w, "Failed to gather metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", string(expfmt.FmtText))
	encoder := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			http.Error(w, "Failed to encode metrics", http.StatusInternalServerError)
			return
		}
	}
}
