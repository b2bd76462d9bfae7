package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"
)

var errDummy = errors.New("dummy-fail")

func quietTransport(p Policy) *Transport {
	return New(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	tr := quietTransport(Policy{MaxRetries: 3, InitialDelay: time.Millisecond})
	calls := 0

	v, err := Do(context.Background(), tr, "op", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %q, want %q", v, "ok")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoAttemptsMaxRetriesPlusOne(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5} {
		tr := quietTransport(Policy{MaxRetries: n, InitialDelay: time.Microsecond})
		calls := 0

		err := tr.Run(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return errDummy
		})
		if !errors.Is(err, ErrExhausted) {
			t.Errorf("maxRetries=%d: error = %v, want ErrExhausted", n, err)
		}
		if !errors.Is(err, errDummy) {
			t.Errorf("maxRetries=%d: last error not preserved: %v", n, err)
		}
		if calls != n+1 {
			t.Errorf("maxRetries=%d: calls = %d, want %d", n, calls, n+1)
		}

		var ex *ExhaustedError
		if !errors.As(err, &ex) || ex.Attempts != n+1 {
			t.Errorf("maxRetries=%d: ExhaustedError.Attempts = %+v, want %d", n, ex, n+1)
		}
	}
}

func TestDoZeroRetriesDoesNotWait(t *testing.T) {
	tr := quietTransport(Policy{MaxRetries: 0, InitialDelay: time.Hour})
	waits := 0
	tr.onRetry = func(int, time.Duration, error) { waits++ }

	start := time.Now()
	_ = tr.Run(context.Background(), "op", func(ctx context.Context) error { return errDummy })

	if waits != 0 {
		t.Errorf("waits = %d, want 0", waits)
	}
	if time.Since(start) > time.Second {
		t.Error("zero retries should not sleep")
	}
}

func TestDoDoublesDelay(t *testing.T) {
	tr := quietTransport(Policy{MaxRetries: 4, InitialDelay: time.Millisecond})
	var delays []time.Duration
	tr.onRetry = func(_ int, d time.Duration, _ error) { delays = append(delays, d) }

	_ = tr.Run(context.Background(), "op", func(ctx context.Context) error { return errDummy })

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDoSucceedsOnSecondAttempt(t *testing.T) {
	tr := quietTransport(Policy{MaxRetries: 2, InitialDelay: time.Millisecond})
	calls := 0

	v, err := Do(context.Background(), tr, "op", func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errDummy
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 || calls != 2 {
		t.Errorf("v=%d calls=%d, want 42 and 2", v, calls)
	}
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	tr := quietTransport(Policy{MaxRetries: 5, InitialDelay: time.Millisecond})
	calls := 0

	err := tr.Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return Permanent(errDummy)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, errDummy) {
		t.Errorf("error = %v, want errDummy", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("permanent failure must not be reported as exhausted")
	}
}

func TestDoStopsOnContextDeadline(t *testing.T) {
	tr := quietTransport(Policy{MaxRetries: 10, InitialDelay: 50 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := tr.Run(ctx, "op", func(ctx context.Context) error {
		calls++
		return errDummy
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	// Nothing keeps running after Run returned.
	time.Sleep(120 * time.Millisecond)
	if calls != 1 {
		t.Errorf("calls after return = %d, want 1", calls)
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		p       Policy
		wantErr bool
	}{
		{Policy{MaxRetries: 0, InitialDelay: 0}, false},
		{Policy{MaxRetries: 5, InitialDelay: time.Second}, false},
		{Policy{MaxRetries: -1, InitialDelay: time.Second}, true},
		{Policy{MaxRetries: 1, InitialDelay: -time.Second}, true},
	}
	for _, tt := range tests {
		err := tt.p.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.p, err, tt.wantErr)
		}
	}
}

func TestPolicyDelays(t *testing.T) {
	got := DefaultPolicy().Delays()
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("Delays() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Delays()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPolicyDelaysSaturate(t *testing.T) {
	got := Policy{MaxRetries: 80, InitialDelay: time.Second}.Delays()
	if len(got) != 80 {
		t.Fatalf("len(Delays()) = %d, want 80", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("Delays()[%d] = %v, smaller than previous %v", i, got[i], got[i-1])
		}
	}
	if last := got[len(got)-1]; last != time.Duration(math.MaxInt64) {
		t.Errorf("last delay = %v, want %v", last, time.Duration(math.MaxInt64))
	}
	if got := (Policy{MaxRetries: -1, InitialDelay: time.Second}).Delays(); len(got) != 0 {
		t.Errorf("Delays() with negative retries = %v, want empty", got)
	}
}
