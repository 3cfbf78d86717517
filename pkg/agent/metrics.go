package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDirectives = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Name:      "agent_directives_total",
		Help:      "Directives handled by the agent runtime, by outcome.",
	}, []string{"outcome"})
	metricToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Name:      "agent_tool_executions_total",
		Help:      "Tool executions, by tool and result status.",
	}, []string{"tool", "status"})
)

const (
	outcomeResponded   = "responded"
	outcomeSynthesized = "synthesized"
	outcomeError       = "error"
	outcomeBusy        = "busy"
)

func recordDirective(outcome string) {
	metricDirectives.WithLabelValues(outcome).Inc()
}

func recordToolExecution(tool, status string) {
	metricToolExecutions.WithLabelValues(tool, status).Inc()
}
