package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records engine activity in Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	breaks      *prometheus.CounterVec
	openBreaks  prometheus.Gauge
	shifted     *prometheus.CounterVec
	recompute   *prometheus.CounterVec
	recomputeDu prometheus.Histogram
	pushes      *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

// New registers the collectors on reg. A nil registerer defaults to the global
// Prometheus registerer. Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{}
	var err error

	if m.breaks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_break_transitions_total",
		Help: "Break sessions started and ended",
	}, []string{"transition"})); err != nil {
		return nil, err
	}
	if m.openBreaks, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "workshop_open_breaks",
		Help: "Break sessions currently open",
	})); err != nil {
		return nil, err
	}
	if m.shifted, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_appointments_shifted_total",
		Help: "Appointments moved by break sessions",
	}, []string{"phase"})); err != nil {
		return nil, err
	}
	if m.recompute, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_recompute_runs_total",
		Help: "Bulk recompute runs by result",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if m.recomputeDu, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "workshop_recompute_duration_seconds",
		Help:    "Duration of bulk recompute runs",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if m.pushes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_push_notifications_total",
		Help: "Web push deliveries by result",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if m.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_http_requests_total",
		Help: "HTTP requests by route and status class",
	}, []string{"route", "code"})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// BreakStarted counts a started session.
func (m *Metrics) BreakStarted() {
	if m == nil {
		return
	}
	m.breaks.WithLabelValues("started").Inc()
	m.openBreaks.Inc()
}

// BreakEnded counts a closed session; reason is "manual" or "expired".
func (m *Metrics) BreakEnded(reason string) {
	if m == nil {
		return
	}
	m.breaks.WithLabelValues(reason).Inc()
	m.openBreaks.Dec()
}

// SetOpenBreaks resets the open-session gauge, e.g. after a sweep.
func (m *Metrics) SetOpenBreaks(n int) {
	if m == nil {
		return
	}
	m.openBreaks.Set(float64(n))
}

// AppointmentsShifted counts appointments moved at break start or corrected at
// break end.
func (m *Metrics) AppointmentsShifted(phase string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.shifted.WithLabelValues(phase).Add(float64(n))
}

// RecomputeFinished records one bulk recompute run.
func (m *Metrics) RecomputeFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.recompute.WithLabelValues(result).Inc()
	m.recomputeDu.Observe(d.Seconds())
}

// PushSent records one web push delivery.
func (m *Metrics) PushSent(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.pushes.WithLabelValues(result).Inc()
}

// Request records one handled HTTP request.
func (m *Metrics) Request(route, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, code).Inc()
}
