package server

import (
	"net/http"
	"time"

	"hoiku-portal/internal/metrics"
)

// NewMetricsServer serves prometheus metrics on an address kept off the
// public listener.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
