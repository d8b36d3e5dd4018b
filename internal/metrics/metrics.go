// Package metrics holds the Prometheus collectors of the service. Every
// method is safe on a nil *Metrics so components can run uninstrumented.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartplates"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	rateLimited   prometheus.Counter
	suspicious    prometheus.Counter
	listsBuilt    *prometheus.CounterVec
	listItems     prometheus.Histogram
	recipeFetches *prometheus.CounterVec
	toggles       *prometheus.CounterVec
	exports       *prometheus.CounterVec
	calendarMoves *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	workerEvents  *prometheus.CounterVec
}

// New registers every collector on a private registry, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
		suspicious: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "suspicious_requests_total",
			Help:      "Requests flagged by the suspicious request detector.",
		}),
		listsBuilt: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grocery",
			Name:      "lists_generated_total",
			Help:      "Grocery lists generated, by trigger (request or worker).",
		}, []string{"trigger"}),
		listItems: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grocery",
			Name:      "list_items",
			Help:      "Number of items in generated grocery lists.",
			Buckets:   []float64{0, 5, 10, 20, 40, 80, 160},
		}),
		recipeFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grocery",
			Name:      "recipe_fetches_total",
			Help:      "Recipe ingredient fetches by outcome (resolved, empty, failed).",
		}, []string{"outcome"}),
		toggles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grocery",
			Name:      "item_toggles_total",
			Help:      "Purchased-state toggles, split by whether the list changed.",
		}, []string{"changed"}),
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grocery",
			Name:      "exports_total",
			Help:      "Grocery list exports by format.",
		}, []string{"format"}),
		calendarMoves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "meal_moves_total",
			Help:      "Meal move requests by kind (move, copy) and result (applied, noop).",
		}, []string{"kind", "result"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		workerEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "messages_total",
			Help:      "Meal plan change messages by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) SuspiciousRequest() {
	if m != nil {
		m.suspicious.Inc()
	}
}

// GroceryListGenerated records one generated list, with its fetch report.
func (m *Metrics) GroceryListGenerated(trigger string, items, resolved, empty, failed int) {
	if m == nil {
		return
	}
	m.listsBuilt.WithLabelValues(trigger).Inc()
	m.listItems.Observe(float64(items))
	m.recipeFetches.WithLabelValues("resolved").Add(float64(resolved))
	m.recipeFetches.WithLabelValues("empty").Add(float64(empty))
	m.recipeFetches.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ItemToggled(changed bool) {
	if m != nil {
		m.toggles.WithLabelValues(strconv.FormatBool(changed)).Inc()
	}
}

func (m *Metrics) Exported(format string) {
	if m != nil {
		m.exports.WithLabelValues(format).Inc()
	}
}

func (m *Metrics) MealMoved(copy, applied bool) {
	if m == nil {
		return
	}
	kind, result := "move", "noop"
	if copy {
		kind = "copy"
	}
	if applied {
		result = "applied"
	}
	m.calendarMoves.WithLabelValues(kind, result).Inc()
}

// CacheHit implements cache.Recorder
func (m *Metrics) CacheHit(name string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(name, "hit").Inc()
	}
}

// CacheMiss implements cache.Recorder
func (m *Metrics) CacheMiss(name string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(name, "miss").Inc()
	}
}

func (m *Metrics) WorkerMessage(outcome string) {
	if m != nil {
		m.workerEvents.WithLabelValues(outcome).Inc()
	}
}
