package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "merodocs"

// Metrics holds Prometheus metrics for the gate service.
// All recording methods are nil-safe.
type Metrics struct {
	RequestCounter          *prometheus.CounterVec
	RequestDuration         *prometheus.HistogramVec
	RequestsInFlight        prometheus.Gauge
	VisitsCreated           *prometheus.CounterVec
	TicketTransitions       *prometheus.CounterVec
	NotificationsPushed     *prometheus.CounterVec
	NotificationsSuppressed prometheus.Counter
	QueueDropped            prometheus.Counter
	DBConnPoolStats         *prometheus.GaugeVec
}

// NewMetrics registers the metrics on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		VisitsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "visits_created_total",
				Help:      "Visits created by kind and origin",
			},
			[]string{"kind", "origin"},
		),
		TicketTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "ticket_transitions_total",
				Help:      "Approval ticket transitions",
			},
			[]string{"transition"},
		),
		NotificationsPushed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "pushes_total",
				Help:      "Push deliveries by result",
			},
			[]string{"provider", "result"},
		),
		NotificationsSuppressed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "group_suppressed_total",
				Help:      "Group notifications suppressed as duplicates",
			},
		),
		QueueDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "dropped_total",
				Help:      "Tasks dropped because the queue was full or stopped",
			},
		),
		DBConnPoolStats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"stat"},
		),
	}
}

func (m *Metrics) ObserveRequest(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.RequestsInFlight.Add(delta)
}

func (m *Metrics) VisitCreated(kind, origin string) {
	if m == nil {
		return
	}
	m.VisitsCreated.WithLabelValues(kind, origin).Inc()
}

func (m *Metrics) TicketTransition(transition string) {
	if m == nil {
		return
	}
	m.TicketTransitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) Pushed(provider string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.NotificationsPushed.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) Suppressed() {
	if m == nil {
		return
	}
	m.NotificationsSuppressed.Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.QueueDropped.Inc()
}

// SetPoolStats copies sql.DBStats-style numbers into the pool gauge.
func (m *Metrics) SetPoolStats(stats map[string]float64) {
	if m == nil {
		return
	}
	for k, v := range stats {
		m.DBConnPoolStats.WithLabelValues(k).Set(v)
	}
}
