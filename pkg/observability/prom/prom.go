// Package prom implements the observability hooks with Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	m, err := prom.New(reg)
//	if err != nil {
//	    return err
//	}
//	m.Install()
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/territory/pkg/errors"
	"github.com/matzehuels/territory/pkg/observability"
)

const namespace = "territory"

// Metrics holds every territory metric. It implements all observability
// hook interfaces and is itself a prometheus.Collector.
type Metrics struct {
	registry *prometheus.Registry

	// store
	ingestTotal        prometheus.Counter
	ingestEvents       prometheus.Histogram
	ingestDuration     prometheus.Histogram
	dirtyZones         prometheus.Histogram
	notificationsTotal *prometheus.CounterVec
	dropsTotal         *prometheus.CounterVec
	layoutsTotal       *prometheus.CounterVec
	layoutDuration     *prometheus.HistogramVec
	layoutPlacements   *prometheus.GaugeVec
	positionsTotal     prometheus.Counter

	// feed
	subscriptions   *prometheus.GaugeVec
	feedEventsTotal *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec

	// cache
	cacheOpsTotal *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec

	// http
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	streamClients     prometheus.Gauge

	collectors []prometheus.Collector
}

// New creates the metrics and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the registry the metrics were registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Install makes m the process-wide receiver of every hook.
func (m *Metrics) Install() {
	observability.Register(m)
}

func (m *Metrics) initMetrics() {
	durationBuckets := prometheus.ExponentialBuckets(0.0001, 2, 16) // 100µs to ~3s
	countBuckets := prometheus.ExponentialBuckets(1, 2, 12)         // 1 to 2048

	m.ingestTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store",
		Name: "ingest_total",
		Help: "Total number of ingestion calls",
	})
	m.ingestEvents = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "store",
		Name:    "ingest_events",
		Help:    "Events per ingestion call",
		Buckets: countBuckets,
	})
	m.ingestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "store",
		Name:    "ingest_duration_seconds",
		Help:    "Time spent applying one ingestion call",
		Buckets: durationBuckets,
	})
	m.dirtyZones = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "store",
		Name:    "dirty_zones",
		Help:    "Zones laid out again per ingestion call",
		Buckets: prometheus.LinearBuckets(0, 1, 10),
	})
	m.notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store",
		Name: "notifications_total",
		Help: "Classified events by notification kind",
	}, []string{"kind"})
	m.dropsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store",
		Name: "dropped_events_total",
		Help: "Events rejected before they touched state, by error code",
	}, []string{"code"})
	m.layoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store",
		Name: "layouts_total",
		Help: "Zone layout recomputations",
	}, []string{"zone", "status"})
	m.layoutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "store",
		Name:    "layout_duration_seconds",
		Help:    "Time spent laying out one zone",
		Buckets: durationBuckets,
	}, []string{"zone"})
	m.layoutPlacements = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "store",
		Name: "zone_placements",
		Help: "Placements in the most recent layout of each zone",
	}, []string{"zone"})
	m.positionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store",
		Name: "positions_resolved_total",
		Help: "Zone positions resolved",
	})

	m.subscriptions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "feed",
		Name: "subscriptions",
		Help: "Active feed subscriptions",
	}, []string{"source"})
	m.feedEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "feed",
		Name: "events_total",
		Help: "Events delivered by feed sources",
	}, []string{"source", "type"})
	m.decodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "feed",
		Name: "decode_errors_total",
		Help: "Payloads rejected at the feed boundary",
	}, []string{"source"})

	m.cacheOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache",
		Name: "operations_total",
		Help: "Cache lookups and writes",
	}, []string{"key_type", "result"})
	m.cacheBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache",
		Name: "written_bytes_total",
		Help: "Bytes written to the cache",
	}, []string{"key_type"})

	m.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "route", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http",
		Name:    "request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.streamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "http",
		Name: "stream_clients",
		Help: "Connected websocket clients",
	})

	m.collectors = []prometheus.Collector{
		m.ingestTotal,
		m.ingestEvents,
		m.ingestDuration,
		m.dirtyZones,
		m.notificationsTotal,
		m.dropsTotal,
		m.layoutsTotal,
		m.layoutDuration,
		m.layoutPlacements,
		m.positionsTotal,
		m.subscriptions,
		m.feedEventsTotal,
		m.decodeErrors,
		m.cacheOpsTotal,
		m.cacheBytes,
		m.httpRequestsTotal,
		m.httpDuration,
		m.streamClients,
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// ===== Store hooks =====

func (m *Metrics) OnIngest(_ context.Context, events, dirty int, d time.Duration) {
	m.ingestTotal.Inc()
	m.ingestEvents.Observe(float64(events))
	m.dirtyZones.Observe(float64(dirty))
	m.ingestDuration.Observe(d.Seconds())
}

func (m *Metrics) OnNotification(_ context.Context, kind string) {
	m.notificationsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) OnDrop(_ context.Context, code string) {
	m.dropsTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) OnLayout(_ context.Context, zoneID string, placements int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if code := errors.GetCode(err); code != "" {
			status = string(code)
		}
	} else {
		m.layoutPlacements.WithLabelValues(zoneID).Set(float64(placements))
	}
	m.layoutsTotal.WithLabelValues(zoneID, status).Inc()
	m.layoutDuration.WithLabelValues(zoneID).Observe(d.Seconds())
}

func (m *Metrics) OnPositions(_ context.Context, count int) {
	m.positionsTotal.Add(float64(count))
}

// ===== Feed hooks =====

func (m *Metrics) OnSubscribe(_ context.Context, source string) {
	m.subscriptions.WithLabelValues(source).Inc()
}

func (m *Metrics) OnUnsubscribe(_ context.Context, source string) {
	m.subscriptions.WithLabelValues(source).Dec()
}

func (m *Metrics) OnEvent(_ context.Context, source, eventType string) {
	m.feedEventsTotal.WithLabelValues(source, eventType).Inc()
}

func (m *Metrics) OnDecodeError(_ context.Context, source string, _ error) {
	m.decodeErrors.WithLabelValues(source).Inc()
}

// ===== Cache hooks =====

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOpsTotal.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOpsTotal.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheOpsTotal.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

// ===== HTTP hooks =====

func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) OnStreamClients(_ context.Context, n int) {
	m.streamClients.Set(float64(n))
}

var (
	_ observability.StoreHooks = (*Metrics)(nil)
	_ observability.FeedHooks  = (*Metrics)(nil)
	_ observability.CacheHooks = (*Metrics)(nil)
	_ observability.HTTPHooks  = (*Metrics)(nil)
)
