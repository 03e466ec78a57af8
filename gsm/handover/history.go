// Package handover keeps the measurement history of a dedicated channel and
// decides when the mobile on it should move to another cell.
package handover

import "github.com/sarchlab/gsmsim/gsm/codec"

const (
	// SampleDepth is the number of raw samples kept per series.
	SampleDepth = 32

	// AveragingWindow is the number of samples averaged at every SACCH
	// multiframe, and the number of averages the decision looks at.
	AveragingWindow = 8

	// NumNeighbours is the number of neighbour series kept.
	NumNeighbours = codec.NumNeighbourCells
)

// Report is one SACCH measurement of a dedicated channel. Levels are in dBm,
// qualities are bit error ratios.
type Report struct {
	ULLevel   float64
	DLLevel   float64
	ULQuality float64
	DLQuality float64

	// NeighbourLevels is indexed like the neighbour list of the serving
	// cell. Missing entries are not measured.
	NeighbourLevels []float64
}

type ring struct {
	values [SampleDepth]float64
	next   int
	count  int
}

func (r *ring) add(v float64) {
	r.values[r.next] = v
	r.next = (r.next + 1) % SampleDepth

	if r.count < SampleDepth {
		r.count++
	}
}

// recent returns up to n values, most recent first.
func (r *ring) recent(n int) []float64 {
	if n > r.count {
		n = r.count
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = r.values[(r.next-1-i+SampleDepth)%SampleDepth]
	}

	return out
}

func (r *ring) mean(n int) (float64, bool) {
	vals := r.recent(n)
	if len(vals) == 0 {
		return 0, false
	}

	sum := 0.0
	for _, v := range vals {
		sum += v
	}

	return sum / float64(len(vals)), true
}

func (r *ring) latest() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}

	return r.values[(r.next-1+SampleDepth)%SampleDepth], true
}

type series struct {
	samples  ring
	averages ring
}

func (s *series) average(window int) {
	if m, ok := s.samples.mean(window); ok {
		s.averages.add(m)
	}
}

// History holds the circular sample buffers of one dedicated slot, one set
// for the serving cell and one per neighbour index, plus the rolling
// averages recomputed at each SACCH multiframe.
type History struct {
	ulLevel   series
	dlLevel   series
	ulQuality series
	dlQuality series
	neighbour [NumNeighbours]series
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Add records one measurement report.
func (h *History) Add(r Report) {
	h.ulLevel.samples.add(r.ULLevel)
	h.dlLevel.samples.add(r.DLLevel)
	h.ulQuality.samples.add(r.ULQuality)
	h.dlQuality.samples.add(r.DLQuality)

	for i, lvl := range r.NeighbourLevels {
		if i >= NumNeighbours {
			break
		}

		h.neighbour[i].samples.add(lvl)
	}
}

// Average recomputes the rolling averages over the last AveragingWindow
// samples.
func (h *History) Average() {
	h.ulLevel.average(AveragingWindow)
	h.dlLevel.average(AveragingWindow)
	h.ulQuality.average(AveragingWindow)
	h.dlQuality.average(AveragingWindow)

	for i := range h.neighbour {
		h.neighbour[i].average(AveragingWindow)
	}
}

// Reset forgets everything.
func (h *History) Reset() {
	*h = History{}
}

// NumAverages returns how many serving cell averages were computed, capped
// at SampleDepth.
func (h *History) NumAverages() int {
	return h.dlLevel.averages.count
}

// Averages is a snapshot of the latest averages.
type Averages struct {
	ULLevel   float64
	DLLevel   float64
	ULQuality float64
	DLQuality float64
}

// Latest returns the most recent serving cell averages.
func (h *History) Latest() (Averages, bool) {
	var a Averages

	var ok bool
	a.DLLevel, ok = h.dlLevel.averages.latest()
	a.ULLevel, _ = h.ulLevel.averages.latest()
	a.ULQuality, _ = h.ulQuality.averages.latest()
	a.DLQuality, _ = h.dlQuality.averages.latest()

	return a, ok
}

// NeighbourAverage returns the most recent averaged level of a neighbour.
func (h *History) NeighbourAverage(index int) (float64, bool) {
	if index < 0 || index >= NumNeighbours {
		return 0, false
	}

	return h.neighbour[index].averages.latest()
}
