package timing

import (
	"sync"
	"testing"
	"time"
)

// fakeClock returns preset readings and can advance them.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestSourceMonotonicElapsed(t *testing.T) {
	// time.Now carries a monotonic reading; Add preserves it.
	clk := &fakeClock{now: time.Now()}
	src := New(clk)

	if got := src.Now(); got != 0 {
		t.Errorf("first Now() = %v, want 0", got)
	}
	if src.Strategy() != StrategyMonotonic {
		t.Fatalf("Strategy() = %v, want monotonic", src.Strategy())
	}

	clk.Advance(1500 * time.Microsecond)
	if got := src.Now(); got != 1.5 {
		t.Errorf("Now() after 1.5ms = %v, want 1.5", got)
	}
	if src.Precision() != time.Microsecond {
		t.Errorf("Precision() = %v, want 1µs", src.Precision())
	}
}

func TestSourceWallClockFallback(t *testing.T) {
	// time.Date has no monotonic reading.
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{now: start}
	src := New(clk)

	if src.Strategy() != StrategyWallClock {
		t.Fatalf("Strategy() = %v, want wallclock", src.Strategy())
	}
	if got, want := src.Now(), float64(start.UnixMilli()); got != want {
		t.Errorf("Now() = %v, want %v", got, want)
	}

	clk.Advance(250 * time.Microsecond)
	if got, want := src.Now(), float64(start.UnixMilli()); got != want {
		t.Errorf("sub-millisecond advance visible in wallclock: got %v, want %v", got, want)
	}
	if src.Precision() != time.Millisecond {
		t.Errorf("Precision() = %v, want 1ms", src.Precision())
	}
}

func TestSourceStrategyFixedAfterFirstCall(t *testing.T) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := New(clk)
	_ = src.Now()

	// Later readings gain a monotonic component; the strategy must not upgrade.
	clk.mu.Lock()
	clk.now = time.Now()
	clk.mu.Unlock()

	if src.Strategy() != StrategyWallClock {
		t.Errorf("Strategy() = %v after clock change, want wallclock", src.Strategy())
	}
}

func TestUnresolvedStrategyString(t *testing.T) {
	if StrategyUnresolved.String() != "unresolved" {
		t.Errorf("String() = %q", StrategyUnresolved.String())
	}
}

func TestDefaultSourceIsMonotonic(t *testing.T) {
	src := Default()
	a := src.Now()
	b := src.Now()
	if b < a {
		t.Errorf("Now() went backwards: %v then %v", a, b)
	}
	if src.Strategy() != StrategyMonotonic {
		t.Errorf("Default().Strategy() = %v, want monotonic", src.Strategy())
	}
}

func TestNewNilClockUsesReal(t *testing.T) {
	if New(nil).Strategy() != StrategyMonotonic {
		t.Error("New(nil) did not fall back to the real clock")
	}
}
