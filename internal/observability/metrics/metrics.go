package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the conversational flow.
type ChatMetrics struct {
	providerAttempts *prometheus.CounterVec
	turnLatency      *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		providerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatrdv",
			Subsystem: "ai",
			Name:      "provider_attempts_total",
			Help:      "Per-provider completion attempts by outcome",
		}, []string{"provider", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatrdv",
			Subsystem: "chat",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of one chat turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tenant"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.providerAttempts, m.turnLatency)
	return m
}

// ObserveAttempt satisfies the AI chain's recorder.
func (m *ChatMetrics) ObserveAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerAttempts.WithLabelValues(provider, outcome).Inc()
}

func (m *ChatMetrics) ObserveTurnLatency(tenant string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(tenant).Observe(seconds)
}

// BookingMetrics exposes counters for the booking pipeline's side effects.
type BookingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	calendarSyncs     *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatrdv",
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Appointments created, labeled by distribution method",
		}, []string{"tenant", "method"}),
		calendarSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatrdv",
			Subsystem: "booking",
			Name:      "calendar_sync_total",
			Help:      "External calendar event creations by status",
		}, []string{"status"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatrdv",
			Subsystem: "booking",
			Name:      "notifications_total",
			Help:      "Confirmation emails by channel and status",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.calendarSyncs, m.notificationsSent)
	return m
}

func (m *BookingMetrics) ObserveBooking(tenant, method string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(tenant, method).Inc()
}

func (m *BookingMetrics) ObserveCalendarSync(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.calendarSyncs.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveNotification(channel string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.notificationsSent.WithLabelValues(channel, status).Inc()
}
