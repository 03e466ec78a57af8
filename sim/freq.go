package sim

import (
	"log"
	"math"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
)

// FreqFromPeriod returns the frequency whose period is p.
func FreqFromPeriod(p VTimeInSec) Freq {
	if p <= 0 {
		log.Panic("period must be positive")
	}

	return Freq(1 / float64(p))
}

// Period returns the time between two consecutive ticks
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return VTimeInSec(1.0 / f)
}

// Cycle converts a time to the number of cycles passed since time 0.
func (f Freq) Cycle(time VTimeInSec) uint64 {
	return uint64(math.Floor(float64(time)*float64(f) + 1e-6))
}

// ThisTick returns the current tick time
//
//	           Input
//	           (          ]
//	|----------|----------|----------|----->
//	                      |
//	                      Output
func (f Freq) ThisTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Ceil(float64(now)*float64(f) - 1e-6)

	return VTimeInSec(count / float64(f))
}

// NextTick returns the next tick time.
//
//	           Input
//	           [          )
//	|----------|----------|----------|----->
//	                      |
//	                      Output
func (f Freq) NextTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Floor(float64(now)*float64(f) + 1e-6)

	return VTimeInSec((count + 1) / float64(f))
}

// NCyclesLater returns the time after N cycles, aligned to a tick.
func (f Freq) NCyclesLater(n int, now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	return f.ThisTick(now + VTimeInSec(float64(n)/float64(f)))
}

func mustBeValidTime(t VTimeInSec) {
	if math.IsNaN(float64(t)) || t < 0 {
		log.Panicf("invalid time %f", t)
	}
}
