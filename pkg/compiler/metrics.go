package compiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCompilations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cortex",
		Name:      "context_compilations_total",
		Help:      "Number of working contexts compiled.",
	})
	metricProcessorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Name:      "context_processor_failures_total",
		Help:      "Context processors that returned an error or panicked, by processor.",
	}, []string{"processor"})
)

func recordCompilation() {
	metricCompilations.Inc()
}

func recordProcessorFailure(name string) {
	metricProcessorFailures.WithLabelValues(name).Inc()
}
