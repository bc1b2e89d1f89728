package metrics

import (
	"strings"
	"time"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every collector.
const DefaultNamespace = "activities"

// Collector implements activities.Metrics with Prometheus collectors.
type Collector struct {
	recorded   *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	delivered  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ activities.Metrics = (*Collector)(nil)

// New builds the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "recorded_total",
			Help:      "Number of activities persisted, labeled by subject type and status.",
		}, []string{"subject_type", "status"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "suppressed_total",
			Help:      "Number of lifecycle events a policy chose not to record.",
		}, []string{"subject_type", "event"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "delivered_total",
			Help:      "Number of successful notifier deliveries.",
		}, []string{"notifier"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "failed_total",
			Help:      "Number of notifier deliveries that returned an error or panicked.",
		}, []string{"notifier"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "skipped_total",
			Help:      "Number of notifier runs skipped by notification switches.",
		}, []string{"notifier", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "duration_seconds",
			Help:      "Time spent in notifier deliveries.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"notifier", "outcome"}),
	}
	for _, collector := range []prometheus.Collector{c.recorded, c.suppressed, c.delivered, c.failed, c.skipped, c.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ActivityRecorded(subjectType, status string) {
	c.recorded.WithLabelValues(subjectType, status).Inc()
}

func (c *Collector) ActivitySuppressed(subjectType string, kind activities.EventKind) {
	c.suppressed.WithLabelValues(subjectType, string(kind)).Inc()
}

func (c *Collector) NotifierDelivered(notifier string, took time.Duration) {
	c.delivered.WithLabelValues(notifier).Inc()
	c.duration.WithLabelValues(notifier, "delivered").Observe(took.Seconds())
}

func (c *Collector) NotifierFailed(notifier string, took time.Duration) {
	c.failed.WithLabelValues(notifier).Inc()
	c.duration.WithLabelValues(notifier, "failed").Observe(took.Seconds())
}

func (c *Collector) NotifierSkipped(notifier, reason string) {
	c.skipped.WithLabelValues(notifier, reason).Inc()
}
