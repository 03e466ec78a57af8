package network

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/transport"
	"github.com/sarchlab/gsmsim/sim"
)

// IPCloud delivers packets between the fixed nodes after a fixed latency.
type IPCloud struct {
	engine  sim.Engine
	latency sim.VTimeInSec
	log     *zap.Logger

	endpoints map[uint32]*node.Node

	lock      sync.Mutex
	delivered uint64
	dropped   uint64
}

// NewIPCloud creates a network with the given one way latency.
func NewIPCloud(
	engine sim.Engine,
	latency sim.VTimeInSec,
	log *zap.Logger,
) *IPCloud {
	if log == nil {
		log = zap.NewNop()
	}

	return &IPCloud{
		engine:    engine,
		latency:   latency,
		log:       log,
		endpoints: make(map[uint32]*node.Node),
	}
}

// Attach connects a node.
func (c *IPCloud) Attach(n *node.Node) {
	c.endpoints[n.ID()] = n
}

// Send implements node.IPNetwork.
func (c *IPCloud) Send(pkt transport.Packet) {
	dst, ok := c.endpoints[pkt.Dst]
	if !ok {
		c.log.Warn("packet to unknown node",
			zap.Uint32("src", pkt.Src),
			zap.Uint32("dst", pkt.Dst))
		c.lock.Lock()
		c.dropped++
		c.lock.Unlock()

		return
	}

	c.engine.Schedule(node.NewPacketEvent(
		c.engine.CurrentTime()+c.latency, dst, pkt))

	c.lock.Lock()
	c.delivered++
	c.lock.Unlock()
}

// Counts returns how many packets were scheduled for delivery and how many
// were dropped.
func (c *IPCloud) Counts() (delivered, dropped uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.delivered, c.dropped
}
