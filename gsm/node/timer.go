package node

import "github.com/sarchlab/gsmsim/sim"

// Timer is a named, cancellable protocol timer. A timer holds a reference
// to its live firing event. Cancelling or restarting the timer drops the
// reference, so a firing that is still in the engine queue is recognized
// as stale when it arrives.
type Timer struct {
	Name string
	Arg  int

	live   *TimerEvent
	expiry sim.VTimeInSec
}

// NewTimer creates an idle timer. Arg is free for the owner, typically the
// index of the slot or call record the timer guards.
func NewTimer(name string, arg int) *Timer {
	return &Timer{Name: name, Arg: arg}
}

// Active tells whether the timer is running.
func (t *Timer) Active() bool {
	return t.live != nil
}

// Expiry returns the time at which a running timer fires.
func (t *Timer) Expiry() sim.VTimeInSec {
	return t.expiry
}

// Cancel stops the timer. Cancelling an idle timer does nothing.
func (t *Timer) Cancel() {
	t.live = nil
}

// Consume reports whether evt is the live firing of this timer and, if so,
// marks the timer as expired.
func (t *Timer) Consume(evt *TimerEvent) bool {
	if t.live == nil || t.live != evt {
		return false
	}

	t.live = nil

	return true
}

func (t *Timer) arm(evt *TimerEvent) {
	t.live = evt
	t.expiry = evt.Time()
}
