// Package progress tracks the state of a single asynchronous action:
// idle → in-process → success → idle (after a delay), or → error, which is
// sticky until the action is started again.
package progress

import (
	"errors"
	"sync"
	"time"
)

// State is the progress of an action.
type State string

const (
	Idle      State = "idle"
	InProcess State = "in-process"
	Success   State = "success"
	Error     State = "error"
)

// DefaultResetDelay is how long Success is shown before returning to Idle.
const DefaultResetDelay = 2 * time.Second

// ErrBusy is returned by Start while the action is still in process.
var ErrBusy = errors.New("action already in process")

// Tracker holds the state of one action. It is safe for concurrent use
// because the success reset fires on a timer goroutine.
type Tracker struct {
	mu         sync.Mutex
	state      State
	err        error
	resetDelay time.Duration
	timer      *time.Timer
	gen        uint64
	afterFunc  func(time.Duration, func()) *time.Timer
	onChange   func(State)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithResetDelay sets how long Success lasts. Zero or negative keeps
// Success until the next Start.
func WithResetDelay(d time.Duration) Option {
	return func(t *Tracker) { t.resetDelay = d }
}

// WithOnChange registers a callback invoked after every transition.
func WithOnChange(fn func(State)) Option {
	return func(t *Tracker) { t.onChange = fn }
}

// NewTracker creates an idle Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		state:      Idle,
		resetDelay: DefaultResetDelay,
		afterFunc:  time.AfterFunc,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the error that moved the tracker to Error, if any.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Start moves to InProcess. It is allowed from Idle, Success and Error.
func (t *Tracker) Start() error {
	t.mu.Lock()
	if t.state == InProcess {
		t.mu.Unlock()
		return ErrBusy
	}
	t.stopTimer()
	t.gen++
	t.state = InProcess
	t.err = nil
	t.mu.Unlock()

	t.notify(InProcess)
	return nil
}

// Succeed moves to Success and schedules the return to Idle.
func (t *Tracker) Succeed() {
	t.mu.Lock()
	t.state = Success
	t.err = nil
	t.stopTimer()
	t.gen++
	if t.resetDelay > 0 {
		gen := t.gen
		t.timer = t.afterFunc(t.resetDelay, func() { t.reset(gen) })
	}
	t.mu.Unlock()

	t.notify(Success)
}

// Fail moves to Error. The state stays Error until Start is called again.
func (t *Tracker) Fail(err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	t.mu.Lock()
	t.stopTimer()
	t.gen++
	t.state = Error
	t.err = err
	t.mu.Unlock()

	t.notify(Error)
}

// Track runs fn between Start and Succeed/Fail and returns fn's error.
func (t *Tracker) Track(fn func() error) error {
	if err := t.Start(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		t.Fail(err)
		return err
	}
	t.Succeed()
	return nil
}

// reset fires from the timer goroutine, possibly before Succeed has
// stored the timer, so it is matched by generation rather than pointer.
func (t *Tracker) reset(gen uint64) {
	t.mu.Lock()
	if t.gen != gen || t.state != Success {
		t.mu.Unlock()
		return
	}
	t.state = Idle
	t.timer = nil
	t.mu.Unlock()

	t.notify(Idle)
}

// stopTimer must be called with mu held.
func (t *Tracker) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Tracker) notify(s State) {
	if t.onChange != nil {
		t.onChange(s)
	}
}
