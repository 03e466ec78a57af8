package handover

import "github.com/sarchlab/gsmsim/gsm/codec"

// Cause is the reason a handover is required, using the A-interface cause
// codes.
type Cause uint8

// Handover causes, in the priority order they are evaluated.
const (
	CauseDownlinkStrength = Cause(codec.AIFCauseDownlinkStrength)
	CauseUplinkStrength   = Cause(codec.AIFCauseUplinkStrength)
	CauseUplinkQuality    = Cause(codec.AIFCauseUplinkQuality)
	CauseDownlinkQuality  = Cause(codec.AIFCauseDownlinkQuality)
)

func (c Cause) String() string {
	switch c {
	case CauseDownlinkStrength:
		return "downlink-strength"
	case CauseUplinkStrength:
		return "uplink-strength"
	case CauseUplinkQuality:
		return "uplink-quality"
	case CauseDownlinkQuality:
		return "downlink-quality"
	default:
		return "none"
	}
}

// Thresholds configure IsHandoverNeeded. A level breaches when it is below
// its threshold, a quality when it is above.
type Thresholds struct {
	DLLevel   float64
	ULLevel   float64
	ULQuality float64
	DLQuality float64

	// Window is N: a cause is raised when at least N-1 of the last N
	// averages breach.
	Window int
}

// DefaultThresholds returns the thresholds the cells use unless configured
// otherwise.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DLLevel:   -90,
		ULLevel:   -80,
		ULQuality: 0.08,
		DLQuality: 0.08,
		Window:    AveragingWindow,
	}
}

type check struct {
	cause  Cause
	series *series
	breach func(v float64) bool
}

// IsHandoverNeeded evaluates downlink level, uplink level, uplink quality
// and downlink quality in that order. The first cause whose recent averages
// breach the threshold is returned.
func IsHandoverNeeded(h *History, th Thresholds) (Cause, bool) {
	n := th.Window
	if n <= 0 {
		n = AveragingWindow
	}

	checks := []check{
		{CauseDownlinkStrength, &h.dlLevel,
			func(v float64) bool { return v < th.DLLevel }},
		{CauseUplinkStrength, &h.ulLevel,
			func(v float64) bool { return v < th.ULLevel }},
		{CauseUplinkQuality, &h.ulQuality,
			func(v float64) bool { return v > th.ULQuality }},
		{CauseDownlinkQuality, &h.dlQuality,
			func(v float64) bool { return v > th.DLQuality }},
	}

	need := n - 1
	if need < 1 {
		need = 1
	}

	for _, c := range checks {
		if breaches(c.series.averages.recent(n), c.breach) >= need {
			return c.cause, true
		}
	}

	return 0, false
}

func breaches(vals []float64, breach func(float64) bool) int {
	count := 0
	for _, v := range vals {
		if breach(v) {
			count++
		}
	}

	return count
}

// Neighbour describes a candidate target cell.
type Neighbour struct {
	Index        int
	CellIdentity uint16
	LAC          uint16
	BCCH         uint16

	// RxLevMin is the minimum level, in dBm, at which the cell is usable.
	RxLevMin float64

	// PowerOffset penalizes cells where the mobile would need to transmit
	// with more power. Negative offsets count as zero.
	PowerOffset float64
}

// SelectTarget returns the first neighbour, in list order, whose averaged
// level exceeds its minimum plus the power offset and whose margin over the
// serving downlink level exceeds margin. It does not look for the best one.
func SelectTarget(
	h *History,
	neighbours []Neighbour,
	margin float64,
) (Neighbour, bool) {
	serving, ok := h.dlLevel.averages.latest()
	if !ok {
		return Neighbour{}, false
	}

	for _, n := range neighbours {
		lvl, ok := h.NeighbourAverage(n.Index)
		if !ok {
			continue
		}

		offset := n.PowerOffset
		if offset < 0 {
			offset = 0
		}

		if lvl > n.RxLevMin+offset && lvl-serving > margin {
			return n, true
		}
	}

	return Neighbour{}, false
}
