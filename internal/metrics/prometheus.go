package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus keeps its collectors in a dedicated registry served by Handler.
type Prometheus struct {
	reg *prometheus.Registry

	ReconcilePasses   prometheus.Counter
	ReconcileDuration prometheus.Histogram
	ReconcileRows     *prometheus.CounterVec
	ReconcileResult   prometheus.Gauge
	SourceErrors      prometheus.Counter
	Mutations         *prometheus.CounterVec
	AuthFailures      prometheus.Counter
}

// NewPrometheus registers all collectors under namespace.
func NewPrometheus(namespace string) *Prometheus {
	r := prometheus.NewRegistry()
	passes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_passes_total",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconcile_duration_seconds",
		Buckets:   prometheus.DefBuckets,
	})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_rows_total",
		Help:      "Rows seen by the reconciler, by what happened to them.",
	}, []string{"kind"})
	result := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reconcile_last_result_size",
	})
	sourceErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_source_errors_total",
	})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_mutations_total",
	}, []string{"action", "store", "outcome"})
	authFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_auth_failures_total",
	})

	r.MustRegister(passes, duration, rows, result, sourceErrors, mutations, authFailures)
	return &Prometheus{
		reg:               r,
		ReconcilePasses:   passes,
		ReconcileDuration: duration,
		ReconcileRows:     rows,
		ReconcileResult:   result,
		SourceErrors:      sourceErrors,
		Mutations:         mutations,
		AuthFailures:      authFailures,
	}
}

func (p *Prometheus) ObserveReconcile(s ReconcileSample) {
	p.ReconcilePasses.Inc()
	p.ReconcileDuration.Observe(s.Duration.Seconds())
	p.ReconcileRows.WithLabelValues("structured").Add(float64(s.Structured))
	p.ReconcileRows.WithLabelValues("file").Add(float64(s.File))
	p.ReconcileRows.WithLabelValues("skipped_by_id").Add(float64(s.SkippedByID))
	p.ReconcileRows.WithLabelValues("duplicate").Add(float64(s.Duplicates))
	p.ReconcileRows.WithLabelValues("untimed").Add(float64(s.Untimed))
	p.ReconcileResult.Set(float64(s.Result))
	p.SourceErrors.Add(float64(s.SourceErrors))
}

func (p *Prometheus) ObserveMutation(action, store, outcome string) {
	p.Mutations.WithLabelValues(action, store, outcome).Inc()
}

func (p *Prometheus) ObserveAuthFailure() { p.AuthFailures.Inc() }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}
