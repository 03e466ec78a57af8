package tracing

import (
	"sync"

	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/sim"
)

// LatencyTracer measures, per node, the time from the node sending one
// radio message to the node receiving another one. A mobile's
// CMServiceRequest followed by the ConnectMO of its call gives the call
// setup time.
//
// A new start message restarts the measurement. An abort message received
// in between drops it.
type LatencyTracer struct {
	lock sync.Mutex

	start, end string
	aborts     map[string]bool
	inflight   map[string]sim.VTimeInSec

	count   uint64
	aborted uint64
	total   sim.VTimeInSec
	max     sim.VTimeInSec
}

// NewLatencyTracer creates a tracer that measures from start to end.
func NewLatencyTracer(start, end string, aborts ...string) *LatencyTracer {
	t := &LatencyTracer{
		start:    start,
		end:      end,
		aborts:   make(map[string]bool),
		inflight: make(map[string]sim.VTimeInSec),
	}

	for _, a := range aborts {
		t.aborts[a] = true
	}

	return t
}

// NewCallSetupTracer measures from a mobile requesting a call to the
// network connecting it.
func NewCallSetupTracer() *LatencyTracer {
	return NewLatencyTracer("CMServiceRequest", "ConnectMO",
		"CMServiceReject", "DisconnectByNetwork", "Release",
		"ReleaseComplete", "ChannelRelease")
}

// NewLocationUpdateTracer measures location updating procedures.
func NewLocationUpdateTracer() *LatencyTracer {
	return NewLatencyTracer("LocationUpdateRequest", "LocationUpdateAccept",
		"LocationUpdateReject", "ChannelRelease")
}

// Func implements sim.Hook.
func (t *LatencyTracer) Func(ctx sim.HookCtx) {
	dir, ok := directionOf(ctx.Pos)
	if !ok {
		return
	}

	info, ok := ctx.Item.(node.MsgInfo)
	if !ok || info.Interface != node.InterfaceRadio {
		return
	}

	name := info.Message.Name()

	t.lock.Lock()
	defer t.lock.Unlock()

	switch {
	case dir == DirectionSend && name == t.start:
		t.inflight[info.Node] = info.Time
	case dir == DirectionRecv && name == t.end:
		t.finish(info)
	case dir == DirectionRecv && t.aborts[name]:
		if _, ok := t.inflight[info.Node]; ok {
			delete(t.inflight, info.Node)
			t.aborted++
		}
	}
}

func (t *LatencyTracer) finish(info node.MsgInfo) {
	startTime, ok := t.inflight[info.Node]
	if !ok {
		return
	}

	delete(t.inflight, info.Node)

	d := info.Time - startTime
	t.count++
	t.total += d
	t.max = max(t.max, d)
}

// Count returns the number of completed measurements.
func (t *LatencyTracer) Count() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count
}

// Aborted returns the number of procedures that ended on an abort message.
func (t *LatencyTracer) Aborted() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.aborted
}

// Average returns the mean latency, 0 before any measurement.
func (t *LatencyTracer) Average() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.count == 0 {
		return 0
	}

	return t.total / sim.VTimeInSec(t.count)
}

// Max returns the longest latency seen.
func (t *LatencyTracer) Max() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.max
}

// Pending returns the number of nodes with a measurement in progress.
func (t *LatencyTracer) Pending() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}
