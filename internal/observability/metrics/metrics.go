package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/gauges for the consultation engine.
type EngineMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	quotaDeniedTotal prometheus.Counter
	sessionsTotal    *prometheus.CounterVec
	relayEventsTotal *prometheus.CounterVec
	wsConnections    prometheus.Gauge
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expertease",
			Subsystem: "consult",
			Name:      "bookings_total",
			Help:      "Total booking attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
		quotaDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "expertease",
			Subsystem: "consult",
			Name:      "quota_denied_total",
			Help:      "Total acceptances denied by the daily quota",
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expertease",
			Subsystem: "consult",
			Name:      "sessions_total",
			Help:      "Video session lifecycle events",
		}, []string{"event"}),
		relayEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expertease",
			Subsystem: "consult",
			Name:      "relay_events_total",
			Help:      "Signaling events relayed by type",
		}, []string{"event"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "expertease",
			Subsystem: "consult",
			Name:      "ws_connections",
			Help:      "Currently connected signaling participants",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.quotaDeniedTotal, m.sessionsTotal, m.relayEventsTotal, m.wsConnections)
	return m
}

func (m *EngineMetrics) ObserveBooking(kind, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *EngineMetrics) ObserveQuotaDenied() {
	if m == nil {
		return
	}
	m.quotaDeniedTotal.Inc()
}

func (m *EngineMetrics) ObserveSession(event string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(event).Inc()
}

func (m *EngineMetrics) ObserveRelayEvent(event string) {
	if m == nil {
		return
	}
	m.relayEventsTotal.WithLabelValues(event).Inc()
}

func (m *EngineMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *EngineMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}
