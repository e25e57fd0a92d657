package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// histogram stores non-cumulative bucket counts; export makes them
// cumulative.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	for {
		old := atomic.LoadUint64(&h.sum)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(&h.sum, old, next) {
			break
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

// durationBuckets are in seconds. Upstream calls dominate latency, so the
// range reaches past the platform client's 20s timeout.
var durationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0, 25.0,
}

// ---------------------------------------------------------------------------
// Metric stores
// ---------------------------------------------------------------------------

type metrics struct {
	mu        sync.RWMutex
	durations map[string]*histogram // method|route|status
	events    map[string]*int64     // event|outcome
	active    int64
}

func newMetrics() *metrics {
	return &metrics{
		durations: make(map[string]*histogram),
		events:    make(map[string]*int64),
	}
}

// LabelsKey builds the key of a request duration series.
func LabelsKey(method, route, statusCode string) string {
	return method + "|" + route + "|" + statusCode
}

func (m *metrics) duration(key string) *histogram {
	m.mu.RLock()
	h, ok := m.durations[key]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.durations[key]; !ok {
		h = newHistogram(durationBuckets)
		m.durations[key] = h
	}
	return h
}

func (m *metrics) inc(key string) {
	m.mu.RLock()
	p, ok := m.events[key]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if p, ok = m.events[key]; !ok {
			p = new(int64)
			m.events[key] = p
		}
		m.mu.Unlock()
	}
	atomic.AddInt64(p, 1)
}

// ---------------------------------------------------------------------------
// Recording API
// ---------------------------------------------------------------------------

// RecordBookingEvent counts a booking outcome, e.g. ("submit", "rejected").
func (p *Provider) RecordBookingEvent(event, outcome string) {
	if !p.cfg.metricsOn() {
		return
	}
	p.metrics.inc(event + "|" + outcome)
}

// BookingEventCount returns the count recorded for event and outcome.
func (p *Provider) BookingEventCount(event, outcome string) int64 {
	p.metrics.mu.RLock()
	ptr, ok := p.metrics.events[event+"|"+outcome]
	p.metrics.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(ptr)
}

// RequestDuration returns the histogram for one label set, or nil.
func (p *Provider) RequestDuration(method, route, status string) *histogram {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return p.metrics.durations[LabelsKey(method, route, status)]
}

func (p *Provider) ActiveRequests() int64 {
	return atomic.LoadInt64(&p.metrics.active)
}

// MetricsMiddleware records request durations keyed by route pattern.
// It must run inside the logger so error statuses are already rendered.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.metricsOn() {
				return next(c)
			}

			atomic.AddInt64(&p.metrics.active, 1)
			defer atomic.AddInt64(&p.metrics.active, -1)

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			} else if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			p.metrics.duration(LabelsKey(c.Request().Method, route, strconv.Itoa(status))).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// PrometheusHandler
// ---------------------------------------------------------------------------

// PrometheusHandler serves the metrics in Prometheus text exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		p.metrics.mu.RLock()
		durations := make(map[string]*histogram, len(p.metrics.durations))
		for k, h := range p.metrics.durations {
			durations[k] = h
		}
		events := make(map[string]int64, len(p.metrics.events))
		for k, ptr := range p.metrics.events {
			events[k] = atomic.LoadInt64(ptr)
		}
		p.metrics.mu.RUnlock()

		const durName = "http_server_request_duration_seconds"
		b.WriteString("# HELP " + durName + " Duration of HTTP requests in seconds.\n")
		b.WriteString("# TYPE " + durName + " histogram\n")
		for _, key := range sortedKeys(durations) {
			parts := strings.SplitN(key, "|", 3)
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, durName, labels, durations[key])
		}
		b.WriteByte('\n')

		b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", p.ActiveRequests())

		b.WriteString("# HELP booking_events_total Booking events by outcome.\n")
		b.WriteString("# TYPE booking_events_total counter\n")
		for _, key := range sortedKeys(events) {
			parts := strings.SplitN(key, "|", 2)
			fmt.Fprintf(&b, "booking_events_total{event=%q,outcome=%q} %d\n", parts[0], parts[1], events[key])
		}

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	for i, le := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, le, cum[i])
	}
	total := h.Count()
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
