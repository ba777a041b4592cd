// Package http
package http

import (
	"net/http"

	"bluegreen-server/internal/adapters/http/middleware"
	"bluegreen-server/internal/adapters/ws/userws"
	"bluegreen-server/internal/config"
	"bluegreen-server/internal/logger"
)

type RouterDeps struct {
	WsUser *userws.Handler

	Application *ApplicationHandler
	Deployment  *DeploymentHandler
	Traffic     *TrafficHandler
	History     *HistoryHandler
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, log logger.Logger, deps *RouterDeps) http.Handler {
	mux := http.NewServeMux()

	globalMw := middleware.New()
	globalMw.Use(middleware.Logging(log))
	globalMw.Use(middleware.CORS(cfg))

	userStack := middleware.New()
	userStack.Use(middleware.JWT(cfg))

	// HEALTH
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// METRICS
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	// WEBSOCKET
	mux.HandleFunc("GET /ws", deps.WsUser.Serve)

	// APPLICATIONS
	mux.Handle("GET /applications", userStack.Then(http.HandlerFunc(deps.Application.Index)))
	mux.Handle("GET /applications/{app}/status", userStack.Then(http.HandlerFunc(deps.Application.Status)))
	mux.Handle("GET /applications/{app}/history", userStack.Then(http.HandlerFunc(deps.History.Index)))

	// APPLICATION ACTIONS
	mux.Handle("POST /applications/{app}/deploy", userStack.Then(http.HandlerFunc(deps.Deployment.Deploy)))
	mux.Handle("POST /applications/{app}/switch", userStack.Then(http.HandlerFunc(deps.Traffic.Switch)))

	return globalMw.Apply(mux)
}
