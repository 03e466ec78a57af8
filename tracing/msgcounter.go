// Package tracing collects the signaling messages exchanged by the nodes
// through the message hooks of the node contexts.
package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/sim"
)

// Direction tells whether a node sent or accepted a message.
type Direction string

// Directions.
const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

func directionOf(pos *sim.HookPos) (Direction, bool) {
	switch pos {
	case node.HookPosMsgSend:
		return DirectionSend, true
	case node.HookPosMsgRecv:
		return DirectionRecv, true
	default:
		return "", false
	}
}

// CounterKey identifies one counter of a MsgCounter.
type CounterKey struct {
	Direction Direction
	Interface string
	Message   string
}

// Count is one counter value.
type Count struct {
	CounterKey
	Count uint64
}

// MsgCounter counts the messages per direction, interface and name.
type MsgCounter struct {
	lock   sync.Mutex
	counts map[CounterKey]uint64
}

// NewMsgCounter creates a counter.
func NewMsgCounter() *MsgCounter {
	return &MsgCounter{counts: make(map[CounterKey]uint64)}
}

// Func implements sim.Hook.
func (c *MsgCounter) Func(ctx sim.HookCtx) {
	dir, ok := directionOf(ctx.Pos)
	if !ok {
		return
	}

	info, ok := ctx.Item.(node.MsgInfo)
	if !ok {
		return
	}

	k := CounterKey{
		Direction: dir,
		Interface: info.Interface.String(),
		Message:   info.Message.Name(),
	}

	c.lock.Lock()
	c.counts[k]++
	c.lock.Unlock()
}

// Get returns one counter.
func (c *MsgCounter) Get(dir Direction, msg string) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	var total uint64

	for k, v := range c.counts {
		if k.Direction == dir && k.Message == msg {
			total += v
		}
	}

	return total
}

// Counts returns every counter, sorted by message name.
func (c *MsgCounter) Counts() []Count {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make([]Count, 0, len(c.counts))
	for k, v := range c.counts {
		out = append(out, Count{CounterKey: k, Count: v})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Message != b.Message {
			return a.Message < b.Message
		}

		if a.Interface != b.Interface {
			return a.Interface < b.Interface
		}

		return a.Direction < b.Direction
	})

	return out
}
