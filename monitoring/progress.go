package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how far a run has gone. The simulation reports the
// simulated time in milliseconds.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// SetFinished moves the bar to an absolute position, never backwards.
func (b *ProgressBar) SetFinished(finished uint64) {
	b.Lock()
	defer b.Unlock()

	if finished > b.Total {
		finished = b.Total
	}

	if finished > b.Finished {
		b.Finished = finished
	}
}

// Fraction returns how much of the total is finished.
func (b *ProgressBar) Fraction() float64 {
	b.Lock()
	defer b.Unlock()

	if b.Total == 0 {
		return 1
	}

	return float64(b.Finished) / float64(b.Total)
}
