package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated steps by Tick as quickly as the listeners allow.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// Tick is delivered to listeners after every step.
type Tick struct {
	N       int
	SimTime time.Time
	Elapsed time.Duration
}

// ElapsedSeconds is the elapsed simulation time in seconds.
func (t Tick) ElapsedSeconds() float64 { return t.Elapsed.Seconds() }

// TimeController drives simulation time and notifies registered listeners.
// Listeners run synchronously on the controller's goroutine, in
// registration order, so each sees non-decreasing times.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	ticks       int

	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(Tick)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Elapsed returns the simulation time since StartTime.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime)
}

// AddListener registers a callback invoked on every tick. The returned
// function removes it; calling it more than once is harmless.
func (tc *TimeController) AddListener(fn func(Tick)) (remove func()) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.nextID++
	id := tc.nextID
	tc.listeners = append(tc.listeners, listener{id: id, fn: fn})

	return func() {
		tc.mu.Lock()
		defer tc.mu.Unlock()
		for i, l := range tc.listeners {
			if l.id == id {
				tc.listeners = append(tc.listeners[:i:i], tc.listeners[i+1:]...)
				return
			}
		}
	}
}

// Step advances simulation time by one Tick and notifies listeners.
func (tc *TimeController) Step() Tick {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	tc.ticks++
	tick := Tick{N: tc.ticks, SimTime: tc.currentTime, Elapsed: tc.currentTime.Sub(tc.StartTime)}
	listeners := append([]listener(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, l := range listeners {
		l.fn(tick)
	}
	return tick
}

// Run steps the clock until duration of simulation time has elapsed
// (forever when duration <= 0) or ctx is done. RealTime mode paces steps
// with a wall-clock ticker; Accelerated mode does not wait.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	var pace <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		pace = ticker.C
	}

	for {
		if duration > 0 && tc.Elapsed() >= duration {
			return nil
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		tc.Step()
	}
}
