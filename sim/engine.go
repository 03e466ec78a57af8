package sim

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	Schedule(e Event)
}

// An Engine keeps the discrete event simulation running. All the simulated
// nodes share one engine and receive their events from it.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run processes all the events until the queue drains.
	Run() error

	// RunUntil processes events whose time is not later than end. The
	// remaining events stay in the queue and the clock is advanced to end.
	RunUntil(end VTimeInSec) error

	// Pause holds the simulation until Continue is called.
	Pause()

	// Continue resumes a paused simulation.
	Continue()
}
