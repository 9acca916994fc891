package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bloopsocial/bloop/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus series of the server. A nil *Metrics is a
// valid recorder that drops every observation.
type Metrics struct {
	registry   *prometheus.Registry
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	connections    prometheus.Gauge
	onlineUsers    prometheus.Gauge
	delivered      *prometheus.CounterVec
	deliveryFailed *prometheus.CounterVec
	authResults    *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	connections := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Subsystem: "realtime", Name: "connections"})
	onlineUsers := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Subsystem: "realtime", Name: "online_users"})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "realtime", Name: "events_delivered_total"}, []string{"event"})
	deliveryFailed := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "realtime", Name: "delivery_failures_total"}, []string{"event"})
	authResults := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "realtime", Name: "auth_total"}, []string{"result"})
	r.MustRegister(connections, onlineUsers, delivered, deliveryFailed, authResults)

	return &Metrics{
		registry:       r,
		httpReqCnt:     httpReqCnt,
		httpDur:        httpDur,
		httpInfl:       httpInfl,
		connections:    connections,
		onlineUsers:    onlineUsers,
		delivered:      delivered,
		deliveryFailed: deliveryFailed,
		authResults:    authResults,
	}
}

// ConnOpened counts a new transport connection
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnClosed counts a closed transport connection
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// SetOnlineUsers records the number of users with at least one live connection
func (m *Metrics) SetOnlineUsers(n int) {
	if m == nil {
		return
	}
	m.onlineUsers.Set(float64(n))
}

// EventDelivered counts one event pushed to one connection
func (m *Metrics) EventDelivered(event string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(event).Inc()
}

// DeliveryFailed counts one push that could not reach its connection
func (m *Metrics) DeliveryFailed(event string) {
	if m == nil {
		return
	}
	m.deliveryFailed.WithLabelValues(event).Inc()
}

// AuthResult counts a handshake outcome: "ok", "invalid", "anonymous"
func (m *Metrics) AuthResult(result string) {
	if m == nil {
		return
	}
	m.authResults.WithLabelValues(result).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
