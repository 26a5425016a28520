package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func silenceSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleepFunc
	sleepFunc = func(d time.Duration) { delays = append(delays, d) }
	t.Cleanup(func() { sleepFunc = orig })
	return &delays
}

func TestDo_SuccessFirstTry(t *testing.T) {
	silenceSleep(t)

	calls := 0
	err := DefaultPolicy().Do(context.Background(), IsTransient, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_TransientThenSuccess(t *testing.T) {
	delays := silenceSleep(t)

	calls := 0
	err := DefaultPolicy().Do(context.Background(), IsTransient, func() error {
		calls++
		if calls < 3 {
			return &StatusError{Status: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(*delays) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(*delays))
	}
	if (*delays)[1] != 2*(*delays)[0] {
		t.Errorf("expected exponential backoff, got %v then %v", (*delays)[0], (*delays)[1])
	}
}

func TestDo_PermanentFailsImmediately(t *testing.T) {
	silenceSleep(t)

	calls := 0
	err := DefaultPolicy().Do(context.Background(), IsTransient, func() error {
		calls++
		return &StatusError{Status: 404}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("404 is not retryable, expected 1 call, got %d", calls)
	}
}

func TestDo_AttemptCeiling(t *testing.T) {
	silenceSleep(t)

	calls := 0
	err := DefaultPolicy().Do(context.Background(), IsTransient, func() error {
		calls++
		return &StatusError{Status: 429}
	})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != 429 {
		t.Errorf("expected final 429 error, got %v", err)
	}
}

func TestDo_CancelledContext(t *testing.T) {
	silenceSleep(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := DefaultPolicy().Do(ctx, IsTransient, func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("op must not run after cancellation, got %d calls", calls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{Status: 429}, true},
		{"500", &StatusError{Status: 500}, true},
		{"404", &StatusError{Status: 404}, false},
		{"timeout", errors.New("request failed: i/o timeout"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"other", errors.New("invalid query"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
