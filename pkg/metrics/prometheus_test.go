package metrics

import (
	"testing"
	"time"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New("", reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.ActivityRecorded("events.event", "created")
	c.ActivityRecorded("events.event", "created")
	c.ActivitySuppressed("events.event", activities.EventSave)
	c.NotifierDelivered("kafka", 10*time.Millisecond)
	c.NotifierFailed("twitter_kawaz_official", time.Millisecond)
	c.NotifierSkipped("twitter_member", "oauth_disabled")

	if got := testutil.ToFloat64(c.recorded.WithLabelValues("events.event", "created")); got != 2 {
		t.Fatalf("expected 2 recorded, got %v", got)
	}
	if got := testutil.ToFloat64(c.suppressed.WithLabelValues("events.event", "save")); got != 1 {
		t.Fatalf("expected 1 suppressed, got %v", got)
	}
	if got := testutil.ToFloat64(c.failed.WithLabelValues("twitter_kawaz_official")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(c.skipped.WithLabelValues("twitter_member", "oauth_disabled")); got != 1 {
		t.Fatalf("expected 1 skip, got %v", got)
	}
	if n := testutil.CollectAndCount(c.duration); n != 2 {
		t.Fatalf("expected 2 duration series, got %d", n)
	}
}

func TestCollectorRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New("kawaz", reg); err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := New("kawaz", reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
