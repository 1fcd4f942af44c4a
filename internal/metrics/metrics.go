// Prometheus collectors for the polling core and the dev API server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PollMetrics struct {
	Refreshes *prometheus.CounterVec
	Failures  *prometheus.CounterVec
}

// NewPollMetrics registers refresh counters on reg, labelled by poller name
// so list and detail pollers stay distinguishable.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	m := &PollMetrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "poll",
			Name:      "refreshes_total",
			Help:      "Total number of poll refreshes.",
		}, []string{"poller"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "poll",
			Name:      "refresh_failures_total",
			Help:      "Total number of failed poll refreshes.",
		}, []string{"poller"}),
	}
	reg.MustRegister(m.Refreshes, m.Failures)
	return m
}

type ServerMetrics struct {
	Requests *prometheus.CounterVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
	}
	reg.MustRegister(m.Requests)
	return m
}

// Handler exposes a registry for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
