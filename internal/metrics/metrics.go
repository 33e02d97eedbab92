// Package metrics collects per-run counters and writes them in the
// Prometheus text format for a node-exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run holds the metrics of one batch run. A nil *Run discards everything,
// so components can be used without metrics.
type Run struct {
	registry *prometheus.Registry

	sources     *prometheus.CounterVec
	events      *prometheus.CounterVec
	fetches     prometheus.Gauge
	feedItems   prometheus.Gauge
	publishes   *prometheus.CounterVec
	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// New creates a Run backed by a fresh registry.
func New() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Run{
		registry: reg,
		sources: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_sources_total",
			Help: "Source adapters invoked in the last run, labelled by result.",
		}, []string{"result"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_events_collected_total",
			Help: "Raw dispatch entries collected in the last run, labelled by jurisdiction code.",
		}, []string{"code"}),
		fetches: f.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_page_fetches",
			Help: "Network page fetches performed in the last run.",
		}),
		feedItems: f.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_feed_items",
			Help: "Items written to the feed in the last build.",
		}),
		publishes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_publish_total",
			Help: "Artifact uploads in the last run, labelled by destination and result.",
		}, []string{"destination", "result"}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_run_duration_seconds",
			Help: "Wall-clock duration of the last run.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_last_success_timestamp_seconds",
			Help: "Unix time of the last run that produced a feed.",
		}),
	}
}

// SourceSucceeded records a successful adapter and the entries it returned.
func (r *Run) SourceSucceeded(code string, events int) {
	if r == nil {
		return
	}
	r.sources.WithLabelValues("success").Inc()
	r.events.WithLabelValues(code).Add(float64(events))
}

// SourceFailed records a failed adapter.
func (r *Run) SourceFailed() {
	if r == nil {
		return
	}
	r.sources.WithLabelValues("failure").Inc()
}

// Fetches records the number of network fetches issued.
func (r *Run) Fetches(n int) {
	if r == nil {
		return
	}
	r.fetches.Set(float64(n))
}

// FeedItems records the size of the rendered feed.
func (r *Run) FeedItems(n int) {
	if r == nil {
		return
	}
	r.feedItems.Set(float64(n))
}

// Published records one artifact upload.
func (r *Run) Published(destination string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.publishes.WithLabelValues(destination, result).Inc()
}

// Finished records the run duration and, when ok, the success timestamp.
func (r *Run) Finished(start, end time.Time, ok bool) {
	if r == nil {
		return
	}
	r.duration.Set(end.Sub(start).Seconds())
	if ok {
		r.lastSuccess.Set(float64(end.Unix()))
	}
}

// Registry exposes the underlying registry.
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile writes the metrics to path in the text exposition format.
func (r *Run) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
