package http

import (
	"net/http"

	"hostpulse/internal/adapters/http/middleware"
	"hostpulse/internal/adapters/ws/metricsws"
	"hostpulse/internal/config"
	"hostpulse/internal/logger"
)

type RouterDeps struct {
	Ws      *metricsws.Handler
	Metrics *MetricsHandler
	Log     logger.Logger
}

func NewRouter(cfg *config.Config, deps *RouterDeps) http.Handler {
	mux := http.NewServeMux()

	globalMw := middleware.New()
	globalMw.Use(middleware.Recover(deps.Log))
	globalMw.Use(middleware.RequestID())
	globalMw.Use(middleware.Logging(deps.Log))
	globalMw.Use(middleware.CORS(cfg.AllowedOrigins))

	// HEALTH
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// WEBSOCKET
	if deps.Ws != nil {
		mux.HandleFunc("GET /ws", deps.Ws.Serve)
	}

	// LIVE METRICS
	mux.HandleFunc("GET /metrics/latest", deps.Metrics.Latest)
	mux.HandleFunc("GET /metrics/history", deps.Metrics.History)

	// STORED METRICS
	mux.HandleFunc("GET /metrics", deps.Metrics.Index)
	mux.HandleFunc("GET /metrics/recent", deps.Metrics.Recent)
	mux.HandleFunc("GET /metrics/stats", deps.Metrics.Stats)
	mux.HandleFunc("DELETE /metrics", deps.Metrics.Prune)

	return globalMw.Then(mux)
}
