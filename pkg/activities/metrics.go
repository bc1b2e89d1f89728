package activities

import "time"

// Metrics observes the pipeline. pkg/metrics provides a Prometheus backed
// implementation.
type Metrics interface {
	ActivityRecorded(subjectType, status string)
	ActivitySuppressed(subjectType string, kind EventKind)
	NotifierDelivered(notifier string, took time.Duration)
	NotifierFailed(notifier string, took time.Duration)
	NotifierSkipped(notifier, reason string)
}

// NopMetrics discards observations.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) ActivityRecorded(string, string)         {}
func (NopMetrics) ActivitySuppressed(string, EventKind)    {}
func (NopMetrics) NotifierDelivered(string, time.Duration) {}
func (NopMetrics) NotifierFailed(string, time.Duration)    {}
func (NopMetrics) NotifierSkipped(string, string)          {}
