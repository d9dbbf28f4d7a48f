package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the service's collectors. Each Registry has its own
// prometheus registry so tests can create as many as they like.
type Registry struct {
	reg *prometheus.Registry

	CheckIns            *prometheus.CounterVec
	Calls               *prometheus.CounterVec
	Completions         *prometheus.CounterVec
	WaitSeconds         *prometheus.HistogramVec
	OutboxEvents        *prometheus.CounterVec
	OutboxHandlerErrors *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		CheckIns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartcare_queue_checkins_total",
				Help: "Patients checked into a department queue",
			},
			[]string{"department"},
		),
		Calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartcare_queue_calls_total",
				Help: "Call-next attempts by outcome",
			},
			[]string{"department", "result"},
		),
		Completions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartcare_queue_completions_total",
				Help: "Completed services, split by whether the patient was routed onward",
			},
			[]string{"department", "routed"},
		),
		WaitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartcare_queue_wait_seconds",
				Help:    "Time from arrival to being called",
				Buckets: []float64{30, 60, 120, 300, 600, 900, 1800, 3600, 7200},
			},
			[]string{"department"},
		),
		OutboxEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartcare_outbox_events_total",
				Help: "Outbox events by result (published, dropped, delivered)",
			},
			[]string{"result"},
		),
		OutboxHandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartcare_outbox_handler_errors_total",
				Help: "Outbox subscriber failures, including panics",
			},
			[]string{"handler"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// -- queue transitions --

func (r *Registry) ObserveCheckIn(department string) {
	r.CheckIns.WithLabelValues(department).Inc()
}

func (r *Registry) ObserveCall(department string, claimed bool, wait time.Duration) {
	if !claimed {
		r.Calls.WithLabelValues(department, "empty").Inc()
		return
	}
	r.Calls.WithLabelValues(department, "claimed").Inc()
	r.WaitSeconds.WithLabelValues(department).Observe(wait.Seconds())
}

func (r *Registry) ObserveCompletion(department string, routed bool) {
	label := "false"
	if routed {
		label = "true"
	}
	r.Completions.WithLabelValues(department, label).Inc()
}

// -- outbox --

func (r *Registry) OutboxEvent(result string) {
	r.OutboxEvents.WithLabelValues(result).Inc()
}

func (r *Registry) OutboxHandlerError(handler string) {
	r.OutboxHandlerErrors.WithLabelValues(handler).Inc()
}
