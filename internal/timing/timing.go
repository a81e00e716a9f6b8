// Package timing provides the timestamp source handed to running trials.
//
// A Source reports milliseconds elapsed since its reference point as a
// float64. The strategy behind it is chosen once, the first time a
// timestamp is requested, and never changes afterwards:
//
//   - StrategyMonotonic: elapsed time on the process monotonic clock since
//     the first call. Immune to wall-clock adjustments, nanosecond
//     resolution, reported with at least microsecond precision in the
//     fractional part.
//   - StrategyWallClock: Unix epoch milliseconds from the wall clock, used
//     when the clock yields readings without a monotonic component. Subject
//     to clock skew and limited to millisecond precision.
package timing

import (
	"strings"
	"sync"
	"time"
)

// Strategy identifies which clock reading a Source reports.
type Strategy int

const (
	// StrategyUnresolved means no timestamp has been requested yet.
	StrategyUnresolved Strategy = iota
	StrategyMonotonic
	StrategyWallClock
)

func (s Strategy) String() string {
	switch s {
	case StrategyMonotonic:
		return "monotonic"
	case StrategyWallClock:
		return "wallclock"
	default:
		return "unresolved"
	}
}

// Clock abstracts the platform time primitive so tests can inject
// deterministic readings.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns the clock backed by time.Now.
func Real() Clock { return realClock{} }

// Source produces timestamps for trials. It is safe for concurrent use.
type Source struct {
	clock Clock

	once     sync.Once
	strategy Strategy
	origin   time.Time
}

var defaultSource = New(Real())

// Default returns the process-wide source.
func Default() *Source {
	return defaultSource
}

// New creates a source reading from clock. A nil clock means the real clock.
func New(clock Clock) *Source {
	if clock == nil {
		clock = Real()
	}
	return &Source{clock: clock}
}

// Now returns the elapsed milliseconds according to the resolved strategy.
func (s *Source) Now() float64 {
	s.resolve()

	t := s.clock.Now()
	if s.strategy == StrategyMonotonic {
		return float64(t.Sub(s.origin)) / float64(time.Millisecond)
	}
	return float64(t.UnixMilli())
}

// Strategy resolves the source if needed and reports the fixed strategy.
func (s *Source) Strategy() Strategy {
	s.resolve()
	return s.strategy
}

// Precision reports the finest difference between two readings that the
// resolved strategy guarantees to represent.
func (s *Source) Precision() time.Duration {
	if s.Strategy() == StrategyMonotonic {
		return time.Microsecond
	}
	return time.Millisecond
}

func (s *Source) resolve() {
	s.once.Do(func() {
		s.origin = s.clock.Now()
		if hasMonotonic(s.origin) {
			s.strategy = StrategyMonotonic
		} else {
			s.strategy = StrategyWallClock
		}
	})
}

// hasMonotonic reports whether t carries a monotonic clock reading, which
// time.Time.String renders as a trailing "m=±value" field.
func hasMonotonic(t time.Time) bool {
	return strings.Contains(t.String(), " m=")
}
