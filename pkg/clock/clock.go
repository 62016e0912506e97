package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by all subscription and payment logic.
// Every expiry comparison in the codebase goes through a Clock so that
// tests can pin time to a fixed instant.
type Clock interface {
	// Now returns the current instant in UTC.
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func NewSystem() *System {
	return &System{}
}

func (*System) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a deterministic clock for tests. It starts at a fixed instant
// and only moves when Advance or Set is called.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set jumps the clock to the given instant.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}
