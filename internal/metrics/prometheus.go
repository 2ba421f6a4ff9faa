// Package metrics exports job lifecycle metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studio/internal/jobs"
)

// Collector implements jobs.Observer on a dedicated registry.
type Collector struct {
	registry *prometheus.Registry

	submissions    *prometheus.CounterVec
	submitDuration *prometheus.HistogramVec
	polls          *prometheus.CounterVec
	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
}

var _ jobs.Observer = (*Collector)(nil)

// New registers the job metrics, plus the Go and process collectors, on a
// fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_submissions_total",
				Help: "Provider submission calls by outcome",
			},
			[]string{"provider", "outcome", "kind"},
		),
		submitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "studio_submission_duration_seconds",
				Help:    "Duration of provider submission calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"provider"},
		),
		polls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_polls_total",
				Help: "Status polls by observed status and error kind",
			},
			[]string{"provider", "status", "kind"},
		),
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studio_jobs_total",
				Help: "Finished jobs by terminal status and error kind",
			},
			[]string{"provider", "status", "kind"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "studio_job_duration_seconds",
				Help:    "End to end job duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 11), // 500ms to ~17m
			},
			[]string{"provider", "status"},
		),
	}
}

func (c *Collector) SubmitObserved(provider string, kind jobs.Kind, deferred bool, elapsed time.Duration) {
	outcome := "immediate"
	switch {
	case kind != jobs.KindNone:
		outcome = "error"
	case deferred:
		outcome = "deferred"
	}
	c.submissions.WithLabelValues(provider, outcome, kindLabel(kind)).Inc()
	c.submitDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (c *Collector) PollObserved(provider string, status jobs.Status, kind jobs.Kind) {
	c.polls.WithLabelValues(provider, string(status), kindLabel(kind)).Inc()
}

func (c *Collector) JobFinished(provider string, status jobs.Status, kind jobs.Kind, elapsed time.Duration) {
	c.jobsTotal.WithLabelValues(provider, string(status), kindLabel(kind)).Inc()
	c.jobDuration.WithLabelValues(provider, string(status)).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func kindLabel(kind jobs.Kind) string {
	if kind == jobs.KindNone {
		return "none"
	}
	return string(kind)
}
