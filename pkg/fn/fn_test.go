package fn

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Error("Ok result reports error")
	}
	if v, err := ok.Unwrap(); v != 42 || err != nil {
		t.Errorf("Unwrap = %d, %v", v, err)
	}

	boom := errors.New("boom")
	bad := Err[int](boom)
	if bad.IsOk() {
		t.Error("Err result reports ok")
	}
	if _, err := bad.Unwrap(); err != boom {
		t.Errorf("Unwrap err = %v, want boom", err)
	}
	if got := bad.UnwrapOr(7); got != 7 {
		t.Errorf("UnwrapOr = %d, want 7", got)
	}
	if _, err := Errf[int]("op %d failed", 3).Unwrap(); err == nil || err.Error() != "op 3 failed" {
		t.Errorf("Errf err = %v", err)
	}
}

func TestCollect(t *testing.T) {
	got := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	if v, _ := got.Unwrap(); !reflect.DeepEqual(v, []int{1, 2, 3}) {
		t.Errorf("Collect = %v", v)
	}

	boom := errors.New("boom")
	got = Collect([]Result[int]{Ok(1), Err[int](boom), Ok(3)})
	if _, err := got.Unwrap(); err != boom {
		t.Errorf("Collect err = %v, want first error", err)
	}
}

func TestMapFilterChunkDedup(t *testing.T) {
	if got := Map([]int{1, 2, 3}, strconv.Itoa); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("Map = %v", got)
	}
	if got := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 }); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("Filter = %v", got)
	}
	if got := Chunk([]int{1, 2, 3, 4, 5}, 2); !reflect.DeepEqual(got, [][]int{{1, 2}, {3, 4}, {5}}) {
		t.Errorf("Chunk = %v", got)
	}
	if got := Chunk([]int{1}, 0); got != nil {
		t.Errorf("Chunk n=0 = %v, want nil", got)
	}
	if got := Dedup([]string{"a", "b", "a", "c", "b"}); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Dedup = %v", got)
	}
}

func TestParMapResult(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	var active, peak atomic.Int32

	out := ParMapResult(items, 2, func(n int) Result[int] {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return Ok(n * 10)
	})

	for i, r := range out {
		if v, _ := r.Unwrap(); v != items[i]*10 {
			t.Errorf("out[%d] = %d, want %d", i, v, items[i]*10)
		}
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	first := func(_ context.Context, s string) Result[int] {
		return Errf[int]("parse %q", s)
	}
	secondCalled := false
	second := func(_ context.Context, n int) Result[string] {
		secondCalled = true
		return Ok(strconv.Itoa(n))
	}

	r := Then(first, second)(context.Background(), "x")
	if r.IsOk() {
		t.Fatal("composed stage succeeded after first failed")
	}
	if secondCalled {
		t.Error("second stage ran after first failed")
	}
}

func TestThen_ChainsValues(t *testing.T) {
	double := MapStage(func(n int) int { return n * 2 })
	show := MapStage(strconv.Itoa)
	r := Then(double, show)(context.Background(), 21)
	if v, _ := r.Unwrap(); v != "42" {
		t.Errorf("composed = %q, want 42", v)
	}
}

func TestBatchStage(t *testing.T) {
	upper := MapStage(strings.ToUpper)
	r := BatchStage(2, upper)(context.Background(), []string{"a", "b", "c"})
	if v, _ := r.Unwrap(); !reflect.DeepEqual(v, []string{"A", "B", "C"}) {
		t.Errorf("BatchStage = %v", v)
	}
}

func TestTracedStage_PassesThrough(t *testing.T) {
	boom := errors.New("boom")
	stage := TracedStage("test", func(_ context.Context, n int) Result[int] {
		if n < 0 {
			return Err[int](boom)
		}
		return Ok(n + 1)
	})

	if v, _ := stage(context.Background(), 1).Unwrap(); v != 2 {
		t.Errorf("traced ok = %d, want 2", v)
	}
	if _, err := stage(context.Background(), -1).Unwrap(); err != boom {
		t.Errorf("traced err = %v, want boom", err)
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Errf[int]("attempt %d", attempts)
		}
		return Ok(attempts)
	})
	if v, _ := r.Unwrap(); v != 3 {
		t.Errorf("Retry value = %d, want success on third attempt", v)
	}

	attempts = 0
	r = Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		return Errf[int]("always")
	})
	if r.IsOk() || attempts != 2 {
		t.Errorf("Retry exhausted: ok=%v attempts=%d", r.IsOk(), attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := Retry(ctx, RetryOpts{MaxAttempts: 5, InitialWait: time.Minute}, func(context.Context) Result[int] {
		return Errf[int]("fail")
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRetry_BackoffShape(t *testing.T) {
	if got := clampWait(40*time.Millisecond, 10*time.Millisecond); got != 10*time.Millisecond {
		t.Errorf("clampWait over limit = %v", got)
	}
	if got := clampWait(40*time.Millisecond, 0); got != 40*time.Millisecond {
		t.Errorf("zero limit must not clamp, got %v", got)
	}
	opts := RetryOpts{Jitter: true, MaxWait: 12 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := jittered(10*time.Millisecond, opts)
		if d < 5*time.Millisecond || d > 12*time.Millisecond {
			t.Fatalf("jittered wait %v outside [5ms, 12ms]", d)
		}
	}
	if d := jittered(10*time.Millisecond, RetryOpts{}); d != 10*time.Millisecond {
		t.Errorf("jitter off must pass the wait through, got %v", d)
	}
}

func TestRetryStage(t *testing.T) {
	attempts := 0
	stage := RetryStage(RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(_ context.Context, n int) Result[int] {
		attempts++
		if attempts == 1 {
			return Errf[int]("first")
		}
		return Ok(n)
	})
	if v, _ := stage(context.Background(), 9).Unwrap(); v != 9 || attempts != 2 {
		t.Errorf("RetryStage = %d after %d attempts", v, attempts)
	}
}
