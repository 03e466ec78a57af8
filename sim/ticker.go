package sim

import (
	"sync"
)

// TickEvent is a generic event that a ticking handler uses to update its
// status.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a new TickEvent
func MakeTickEvent(handler Handler, time VTimeInSec) TickEvent {
	return TickEvent{EventBase: MakeEventBase(time, handler)}
}

// A Ticker is an object that updates states with ticks. Tick returns true
// if any progress was made.
type Ticker interface {
	Tick() bool
}

// TickerFunc adapts a function to the Ticker interface.
type TickerFunc func() bool

// Tick calls f.
func (f TickerFunc) Tick() bool {
	return f()
}

// TickScheduler helps to schedule tick events. At most one tick is pending at
// any time.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	Freq      Freq
	Engine    Engine
	secondary bool

	nextTickTime VTimeInSec
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
) *TickScheduler {
	return &TickScheduler{
		handler:      handler,
		Engine:       engine,
		Freq:         freq,
		nextTickTime: -1,
	}
}

// MakeSecondary turns the ticks into secondary events, which run after the
// primary events of the same time.
func (t *TickScheduler) MakeSecondary() {
	t.secondary = true
}

// TickNow schedules a Tick event at the current time, or at the current
// cycle boundary if the time is not on a tick.
func (t *TickScheduler) TickNow() {
	t.schedule(t.Freq.ThisTick(t.Engine.CurrentTime()))
}

// TickLater schedules a tick event at the cycle after the current time.
func (t *TickScheduler) TickLater() {
	t.schedule(t.Freq.NextTick(t.Engine.CurrentTime()))
}

func (t *TickScheduler) schedule(time VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.nextTickTime >= time {
		return
	}

	t.nextTickTime = time
	tick := MakeTickEvent(t.handler, time)
	tick.secondary = t.secondary

	t.Engine.Schedule(tick)
}

// TickingComponent is a handler that updates states from cycle to cycle and
// stops ticking once a tick makes no progress.
type TickingComponent struct {
	*TickScheduler

	name   string
	ticker Ticker
}

// NewTickingComponent creates a new ticking component
func NewTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
) *TickingComponent {
	NameMustBeValid(name)

	tc := &TickingComponent{name: name, ticker: ticker}
	tc.TickScheduler = NewTickScheduler(tc, engine, freq)

	return tc
}

// Name returns the name of the component.
func (c *TickingComponent) Name() string {
	return c.name
}

// Func lets the component be attached as a hook to a buffer, waking it up
// whenever something is pushed.
func (c *TickingComponent) Func(ctx HookCtx) {
	if ctx.Pos == HookPosBufPush {
		c.TickLater()
	}
}

// Handle triggers the tick function of the TickingComponent
func (c *TickingComponent) Handle(_ Event) error {
	if c.ticker.Tick() {
		c.TickLater()
	}

	return nil
}
