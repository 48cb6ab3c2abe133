package scheduler

import "github.com/prometheus/client_golang/prometheus"

// metricsRegisterer matches prometheus.Registerer so tests can pass nil
// without pulling a registry into every fixture.
type metricsRegisterer interface {
	MustRegister(...prometheus.Collector)
}

type metrics struct {
	firings   *prometheus.CounterVec
	failures  *prometheus.CounterVec
	deferrals *prometheus.CounterVec
}

func newMetrics(registerer metricsRegisterer) *metrics {
	m := &metrics{
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_job_firings_total",
			Help: "Number of job firings, by job name.",
		}, []string{"job"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_job_failures_total",
			Help: "Number of failed job runs, by job name.",
		}, []string{"job"}),
		deferrals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_job_deferrals_total",
			Help: "Number of due firings deferred by unmet constraints, by job name.",
		}, []string{"job"}),
	}

	if registerer != nil {
		registerer.MustRegister(m.firings, m.failures, m.deferrals)
	}

	return m
}
