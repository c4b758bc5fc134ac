package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	routeHealth  = "health"
	routeMetrics = "metrics"
	routeInfo    = "info"
	routeBlob    = "blob"
)

// routeNames maps mux patterns to the names used in request logs.
var routeNames = map[string]string{
	"GET /health":        routeHealth,
	"GET /metrics":       routeMetrics,
	"GET /v1/info":       routeInfo,
	"GET /v1/blobs/{id}": routeBlob,
}

// quietRoutes are polled by probes and scrapers and are never logged.
var quietRoutes = map[string]bool{
	routeHealth:  true,
	routeMetrics: true,
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.HandleFunc("GET /v1/blobs/{id}", s.handleGetBlob)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}
