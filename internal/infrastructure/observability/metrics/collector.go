// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	CacheOperations *prometheus.CounterVec
	WarmDuration    prometheus.Histogram
	WarmTasks       *prometheus.CounterVec

	TxRetries      prometheus.Counter
	TxOutcomes     *prometheus.CounterVec
	Subscriptions  prometheus.Gauge
	Rollbacks      *prometheus.CounterVec
	LiveClients    prometheus.Gauge
	ActiveSessions prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CacheOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_cache_operations_total",
			Help:      "Local cache operations by result",
		}, []string{"operation", "result"}),
		WarmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_warm_duration_seconds",
			Help:      "Duration of a full cache warm",
			Buckets:   prometheus.DefBuckets,
		}),
		WarmTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warm_tasks_total",
			Help:      "Cache warm tasks by resource and result",
		}, []string{"resource", "result"}),
		TxRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_transaction_retries_total",
			Help:      "Transaction attempts lost to a concurrent writer",
		}),
		TxOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_transactions_total",
			Help:      "Transactions by outcome",
		}, []string{"outcome"}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscriptions",
			Help:      "Active realtime subscriptions",
		}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_mutation_failures_total",
			Help:      "Failed optimistic mutations by name and whether local state was reverted",
		}, []string{"mutation", "reverted"}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Connected websocket clients",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open user sessions",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.CacheOperations,
		c.WarmDuration,
		c.WarmTasks,
		c.TxRetries,
		c.TxOutcomes,
		c.Subscriptions,
		c.Rollbacks,
		c.LiveClients,
		c.ActiveSessions,
	)

	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTP(method, route, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordCacheOp(operation, result string) {
	if c == nil {
		return
	}
	c.CacheOperations.WithLabelValues(operation, result).Inc()
}

func (c *Collector) RecordWarm(duration time.Duration) {
	if c == nil {
		return
	}
	c.WarmDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordWarmTask(resource string, ok bool) {
	if c == nil {
		return
	}
	c.WarmTasks.WithLabelValues(resource, result(ok)).Inc()
}

func (c *Collector) RecordTxRetry() {
	if c == nil {
		return
	}
	c.TxRetries.Inc()
}

func (c *Collector) RecordTxOutcome(outcome string) {
	if c == nil {
		return
	}
	c.TxOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) AddSubscriptions(delta float64) {
	if c == nil {
		return
	}
	c.Subscriptions.Add(delta)
}

func (c *Collector) RecordMutationFailure(mutation string, reverted bool) {
	if c == nil {
		return
	}
	revertedLabel := "false"
	if reverted {
		revertedLabel = "true"
	}
	c.Rollbacks.WithLabelValues(mutation, revertedLabel).Inc()
}

func (c *Collector) AddLiveClients(delta float64) {
	if c == nil {
		return
	}
	c.LiveClients.Add(delta)
}

func (c *Collector) AddSessions(delta float64) {
	if c == nil {
		return
	}
	c.ActiveSessions.Add(delta)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
