package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fap"

var (
	// Operations counts gateway calls by operation, table and result.
	Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dbcontext",
		Name:      "operations_total",
		Help:      "Persistence operations by operation, table and result.",
	}, []string{"operation", "table", "result"})

	// OperationDuration observes gateway call latency.
	OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dbcontext",
		Name:      "operation_duration_seconds",
		Help:      "Latency of persistence operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// Transactions counts physical begin, commit and rollback events.
	Transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "txn",
		Name:      "events_total",
		Help:      "Physical transaction events.",
	}, []string{"event"})

	// SequenceAllocations counts allocated sequence values.
	SequenceAllocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sequence",
		Name:      "allocations_total",
		Help:      "Sequence values handed out by sequence name.",
	}, []string{"sequence"})

	// TraceVersions counts history versions written by traced updates and deletes.
	TraceVersions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trace",
		Name:      "versions_total",
		Help:      "Versions written by the trace engine.",
	}, []string{"kind"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{Operations, OperationDuration, Transactions, SequenceAllocations, TraceVersions}
}

// Register adds every collector to reg. Collectors already registered are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Observe records the outcome and latency of one operation.
func Observe(operation, table string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Operations.WithLabelValues(operation, table, result).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
