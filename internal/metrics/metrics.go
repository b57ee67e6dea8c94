// Package metrics exposes prometheus collectors for the portal.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hoiku_portal",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hoiku_portal",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	StatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hoiku_portal",
		Name:      "submission_transitions_total",
		Help:      "Submission status changes by previous and new status.",
	}, []string{"from", "to"})

	UploadedBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hoiku_portal",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes accepted for storage by upload kind.",
	}, []string{"kind"})

	RejectedUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hoiku_portal",
		Name:      "rejected_uploads_total",
		Help:      "Uploads refused before storage by reason.",
	}, []string{"kind", "reason"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests,
		HTTPDuration,
		StatusTransitions,
		UploadedBytes,
		RejectedUploads,
	)
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
