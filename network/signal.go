package network

import (
	"sync"

	"github.com/sarchlab/gsmsim/sim"
)

// Level bounds, in dBm.
const (
	NoSignal     = -110.0
	MaxLevel     = -40.0
	MinLevel     = -120.0
	MaxBitErrors = 1.0
)

// Link describes how the radio link between a mobile and a cell evolves.
// The level ramps linearly from Level at time Since with Slope dB per
// second. Quality is the bit error ratio.
type Link struct {
	Level   float64
	Slope   float64
	Since   sim.VTimeInSec
	Quality float64
}

type linkKey struct {
	ms, bs uint32
}

// SignalModel gives the received level and quality of every mobile and
// cell pair. Pairs without a link are out of range.
type SignalModel struct {
	lock  sync.RWMutex
	links map[linkKey]Link
}

// NewSignalModel creates a model where every cell is out of range.
func NewSignalModel() *SignalModel {
	return &SignalModel{links: make(map[linkKey]Link)}
}

// Set defines the link between a mobile and a cell.
func (m *SignalModel) Set(ms, bs uint32, l Link) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.links[linkKey{ms, bs}] = l
}

// Level returns the level, in dBm, of the link at time t.
func (m *SignalModel) Level(ms, bs uint32, t sim.VTimeInSec) float64 {
	m.lock.RLock()
	l, ok := m.links[linkKey{ms, bs}]
	m.lock.RUnlock()

	if !ok {
		return NoSignal
	}

	lvl := l.Level
	if t > l.Since {
		lvl += l.Slope * float64(t-l.Since)
	}

	return clamp(lvl, MinLevel, MaxLevel)
}

// Quality returns the bit error ratio of the link.
func (m *SignalModel) Quality(ms, bs uint32) float64 {
	m.lock.RLock()
	defer m.lock.RUnlock()

	l, ok := m.links[linkKey{ms, bs}]
	if !ok {
		return MaxBitErrors
	}

	return clamp(l.Quality, 0, MaxBitErrors)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
