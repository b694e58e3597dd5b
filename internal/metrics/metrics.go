// Package metrics collects Prometheus metrics for the update cycle, token
// renewals and forecast requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the update loop, the token manager and the forecast
// client report into.
type Recorder interface {
	RecordCycle(outcome string)
	RecordParseSkip(kind string)
	RecordTokenRenewal(success bool)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	cycles        *prometheus.CounterVec
	parseSkipped  *prometheus.CounterVec
	tokenRenewals *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srf_weather_update_cycles_total",
			Help: "Update cycles by outcome.",
		}, []string{"outcome"}),
		parseSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srf_weather_parse_skipped_total",
			Help: "Forecast records dropped because they failed to parse.",
		}, []string{"kind"}),
		tokenRenewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srf_weather_token_renewals_total",
			Help: "Access token renewals by result.",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srf_weather_http_status_total",
			Help: "Forecast endpoint responses by HTTP status code.",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "srf_weather_fetch_latency_seconds",
			Help:    "Forecast fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srf_weather_last_success_timestamp_seconds",
			Help: "Unix time of the last successful update cycle.",
		}),
	}

	reg.MustRegister(
		c.cycles,
		c.parseSkipped,
		c.tokenRenewals,
		c.httpStatus,
		c.fetchLatency,
		c.lastSuccess,
	)

	return c
}

// RecordCycle counts a finished update cycle.
func (c *Collector) RecordCycle(outcome string) {
	c.cycles.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		c.lastSuccess.SetToCurrentTime()
	}
}

// RecordParseSkip counts a dropped forecast record.
func (c *Collector) RecordParseSkip(kind string) {
	c.parseSkipped.WithLabelValues(kind).Inc()
}

// RecordTokenRenewal counts a token renewal attempt.
func (c *Collector) RecordTokenRenewal(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.tokenRenewals.WithLabelValues(result).Inc()
}

// RecordHTTPStatus counts a forecast endpoint response.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency observes one forecast fetch.
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Components default to it when no Recorder is given.
type Nop struct{}

func (Nop) RecordCycle(string) {}
func (Nop) RecordParseSkip(string) {}
func (Nop) RecordTokenRenewal(bool) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordFetchLatency(time.Duration) {}
