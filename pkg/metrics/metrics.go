// Package metrics provides performance tracking and observability for
// Railstream using Prometheus metrics. It offers package-level collectors
// for the read path (records extracted, API latency, slice progress, token
// refreshes) plus a per-component Collector for operational metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsExtracted tracks the total number of records produced by sources.
	// Labels: source (connector name), stream, status (success/failure)
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railstream_records_extracted_total",
			Help: "Total number of records extracted from sources",
		},
		[]string{"source", "stream", "status"},
	)

	// RequestLatency tracks the distribution of upstream API request latencies.
	// Labels: source, endpoint
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "railstream_request_latency_seconds",
			Help:    "Upstream API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "endpoint"},
	)

	// SlicesProcessed tracks completed stream slices.
	// Labels: source, stream
	SlicesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railstream_slices_processed_total",
			Help: "Total number of stream slices processed",
		},
		[]string{"source", "stream"},
	)

	// TokenRefreshes tracks short-lived token fetches.
	// Labels: source, status (success/failure)
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railstream_token_refreshes_total",
			Help: "Total number of authentication token fetches",
		},
		[]string{"source", "status"},
	)

	// AvailabilityChecks tracks availability probe outcomes.
	// Labels: source, outcome (available/unavailable)
	AvailabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railstream_availability_checks_total",
			Help: "Total number of stream availability checks",
		},
		[]string{"source", "outcome"},
	)
)

// Collector provides a centralized metrics collection interface for
// components. Each connector creates its own collector; operational
// gauges are kept in-process and surfaced through Metrics().
type Collector struct {
	name      string
	startTime time.Time
	gauges    map[string]float64
	counters  map[string]float64
	mu        sync.RWMutex
}

// NewCollector creates a new metrics collector for a component
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
		gauges:    make(map[string]float64),
		counters:  make(map[string]float64),
	}
}

// GetAll returns a snapshot of all collected metrics
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := map[string]interface{}{
		"component":  c.name,
		"start_time": c.startTime,
		"uptime":     time.Since(c.startTime).Seconds(),
	}
	for k, v := range c.gauges {
		out[k] = v
	}
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// RecordGauge records a gauge metric
func (c *Collector) RecordGauge(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] = value
}

// RecordCounter increments a counter metric
func (c *Collector) RecordCounter(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += value
}

// Timer measures the duration of an operation
type Timer struct {
	name  string
	start time.Time
}

// NewTimer creates and starts a timer
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop stops the timer and returns the elapsed duration
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
