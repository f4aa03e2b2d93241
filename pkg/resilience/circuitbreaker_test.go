package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func newTestBreaker(opts BreakerOpts) (*Breaker, *time.Time) {
	b := NewBreaker(opts)
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(context.Context) error    { return errBackend }
func succeed(context.Context) error { return nil }

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, fail); !errors.Is(err, errBackend) {
			t.Fatalf("call %d err = %v, want backend error", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if err := b.Call(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	b.Call(ctx, fail)
	b.Call(ctx, fail)
	b.Call(ctx, succeed)
	b.Call(ctx, fail)
	b.Call(ctx, fail)

	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after interleaved success", b.State())
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b, now := newTestBreaker(BreakerOpts{FailThreshold: 1, Timeout: 30 * time.Second})
	ctx := context.Background()

	b.Call(ctx, fail)
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	*now = now.Add(31 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after timeout", b.State())
	}
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	b, now := newTestBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Second})
	ctx := context.Background()

	b.Call(ctx, fail)
	*now = now.Add(2 * time.Second)

	if err := b.Call(ctx, succeed); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful probe", b.State())
	}
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(BreakerOpts{FailThreshold: 5, Timeout: time.Second})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		b.Call(ctx, fail)
	}
	*now = now.Add(2 * time.Second)

	if err := b.Call(ctx, fail); !errors.Is(err, errBackend) {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("state = %v, want open after failed probe", b.State())
	}
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b, now := newTestBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Second, HalfOpenMax: 1})
	ctx := context.Background()

	b.Call(ctx, fail)
	*now = now.Add(2 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	go b.Call(ctx, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	// A second call while the probe is in flight must be rejected.
	if err := b.Call(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("concurrent probe err = %v, want ErrCircuitOpen", err)
	}
	close(release)
}

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerOpts{})
	if b.opts != DefaultBreakerOpts {
		t.Errorf("opts = %+v, want defaults", b.opts)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(9):      "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
