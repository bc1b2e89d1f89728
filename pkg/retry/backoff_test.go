package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for i, w := range want {
		if got := b.Next(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}

func TestPolicyDoRetriesUntilSuccess(t *testing.T) {
	var slept []time.Duration
	p := Policy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff{Base: time.Millisecond},
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got %v after %d", err, calls)
	}
	if len(slept) != 2 || slept[1] != 2*time.Millisecond {
		t.Fatalf("unexpected sleeps %v", slept)
	}
}

func TestPolicyDoStopsOnPermanentAndExhaustion(t *testing.T) {
	p := Policy{MaxAttempts: 5, Sleep: func(context.Context, time.Duration) error { return nil }}
	calls := 0
	boom := errors.New("bad request")
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return Permanent(boom)
	})
	if calls != 1 || !errors.Is(err, boom) {
		t.Fatalf("permanent errors must not retry: %v after %d", err, calls)
	}

	calls = 0
	err = Policy{MaxAttempts: 2, Sleep: p.Sleep}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return boom
	})
	if calls != 2 || !errors.Is(err, boom) {
		t.Fatalf("expected two attempts, got %d: %v", calls, err)
	}
}

func TestPolicyDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Policy{MaxAttempts: 3}.Do(ctx, func(context.Context, int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
