package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records outcomes of cart synchronization operations.
type CartMetrics struct {
	duration  *prometheus.HistogramVec
	success   *prometheus.CounterVec
	failure   *prometheus.CounterVec
	retries   *prometheus.CounterVec
	rollbacks *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_success",
		Help: "Cart operations confirmed by the server.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_failure",
		Help: "Cart operations that surfaced a failure to the caller.",
	}, []string{"operation"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_retries",
		Help: "Transient-failure retry attempts per operation.",
	}, []string{"operation"})
	rollbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_optimistic_rollbacks",
		Help: "Optimistic mutations rolled back after server failure.",
	}, []string{"operation"})
	reg.MustRegister(duration, success, failure, retries, rollbacks)
	return &CartMetrics{
		duration:  duration,
		success:   success,
		failure:   failure,
		retries:   retries,
		rollbacks: rollbacks,
	}
}

// ObserveDuration records the duration for the named operation.
func (c *CartMetrics) ObserveDuration(op string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (c *CartMetrics) IncSuccess(op string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (c *CartMetrics) IncFailure(op string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncRetry increments the retry counter for the named operation.
func (c *CartMetrics) IncRetry(op string) {
	if c == nil || c.retries == nil {
		return
	}
	c.retries.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncRollback increments the rollback counter for the named operation.
func (c *CartMetrics) IncRollback(op string) {
	if c == nil || c.rollbacks == nil {
		return
	}
	c.rollbacks.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
