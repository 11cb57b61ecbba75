package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kroma-labs/nock/nock"
)

// registryCollector exposes the counters of a nock registry to Prometheus.
type registryCollector struct {
	reg *nock.Registry

	pending *prometheus.Desc
	matched *prometheus.Desc
	missed  *prometheus.Desc
	active  *prometheus.Desc
}

// NewRegistryCollector returns a prometheus.Collector reporting:
//   - nock_pending_expectations: expectations still waiting for a request
//   - nock_matched_requests_total: requests answered by an expectation
//   - nock_missed_requests_total: requests no expectation matched
//   - nock_active: 1 while the registry intercepts requests
func NewRegistryCollector(reg *nock.Registry, serviceName string) prometheus.Collector {
	labels := prometheus.Labels{"service": serviceName}
	return &registryCollector{
		reg: reg,
		pending: prometheus.NewDesc("nock_pending_expectations",
			"Number of expectations waiting for a request.", nil, labels),
		matched: prometheus.NewDesc("nock_matched_requests_total",
			"Number of requests answered by an expectation.", nil, labels),
		missed: prometheus.NewDesc("nock_missed_requests_total",
			"Number of requests no expectation matched.", nil, labels),
		active: prometheus.NewDesc("nock_active",
			"Whether the registry intercepts requests.", nil, labels),
	}
}

func (c *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pending
	ch <- c.matched
	ch <- c.missed
	ch <- c.active
}

func (c *registryCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.reg.Stats()

	active := 0.0
	if c.reg.Active() {
		active = 1
	}

	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(stats.Pending))
	ch <- prometheus.MustNewConstMetric(c.matched, prometheus.CounterValue, float64(stats.Matched))
	ch <- prometheus.MustNewConstMetric(c.missed, prometheus.CounterValue, float64(stats.Missed))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, active)
}

// PrometheusHandler returns an http.Handler serving the registry
// collector in the Prometheus text format. A dedicated Prometheus
// registry is used so the output only describes reg.
//
// Example:
//
//	mux.Handle("/metrics", httpserver.PrometheusHandler(reg, "nock"))
func PrometheusHandler(reg *nock.Registry, serviceName string) http.Handler {
	pr := prometheus.NewRegistry()
	pr.MustRegister(NewRegistryCollector(reg, serviceName))
	return promhttp.HandlerFor(pr, promhttp.HandlerOpts{Registry: pr})
}
