package publisher

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xaenox/notegram/internal/plan"
)

// Observer records publish telemetry.
type Observer interface {
	RecordOperation(op plan.Operation, duration time.Duration, err error)
	RecordDestination(err error)
}

type nopObserver struct{}

func (nopObserver) RecordOperation(plan.Operation, time.Duration, error) {}
func (nopObserver) RecordDestination(error)                              {}

// PrometheusObserver exports send counters and latencies.
type PrometheusObserver struct {
	operationDuration *prometheus.HistogramVec
	operations        *prometheus.CounterVec
	destinations      *prometheus.CounterVec
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "notegram"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	operationDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "send_duration_seconds",
		Help:      "Latency of Bot API send operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}
	operations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Send operations by kind and result.",
	}, []string{"kind", "result"}))
	if err != nil {
		return nil, err
	}
	destinations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "destinations_total",
		Help:      "Destinations published to, by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	return &PrometheusObserver{
		operationDuration: operationDuration,
		operations:        operations,
		destinations:      destinations,
	}, nil
}

// register returns the already registered collector when an equal one
// exists, so observers built twice share their series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register publish metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordOperation(op plan.Operation, duration time.Duration, err error) {
	kind := operationKind(op)
	o.operationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	o.operations.WithLabelValues(kind, outcome(err)).Inc()
}

func (o *PrometheusObserver) RecordDestination(err error) {
	o.destinations.WithLabelValues(outcome(err)).Inc()
}

func operationKind(op plan.Operation) string {
	switch o := op.(type) {
	case plan.TextMessage:
		return "text"
	case plan.SingleMedia:
		return string(o.Kind)
	case plan.MediaGroup:
		return string(o.Kind) + "_group"
	default:
		return "unknown"
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
