package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaprompter_llm_requests_total",
		Help: "Total LLM invocations",
	}, []string{"model", "status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metaprompter_llm_request_duration_seconds",
		Help:    "LLM invocation duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"model"})

	LLMCostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaprompter_llm_cost_usd_total",
		Help: "Estimated LLM spend in USD",
	}, []string{"model"})

	// LifecycleOperations counts lifecycle results by operation and result kind.
	LifecycleOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaprompter_lifecycle_operations_total",
		Help: "Prompt lifecycle operations by outcome",
	}, []string{"operation", "outcome"})

	HistoryEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaprompter_history_entries_total",
		Help: "History entries appended, by operation type",
	}, []string{"operation"})

	OptimizationFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metaprompter_optimization_fallbacks_total",
		Help: "Optimizations that returned the original prompt because the model output was degenerate",
	})
)
