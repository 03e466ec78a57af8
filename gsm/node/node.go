// Package node provides what the three kinds of simulated network nodes
// share: the per node context, cancellable protocol timers, the events
// delivered to a node, and the dispatch of those events to a role.
package node

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/sim"
)

// Kind tells which network element a node plays.
type Kind int

// Node kinds.
const (
	KindMS Kind = iota
	KindBS
	KindMSC
)

func (k Kind) String() string {
	switch k {
	case KindMS:
		return "MS"
	case KindBS:
		return "BS"
	case KindMSC:
		return "MSC"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// A Role is the protocol logic of a node. Every handler runs to completion
// inside one event callback.
type Role interface {
	Kind() Kind
	Start(ctx *Context)
	HandleTimer(ctx *Context, t *Timer)
	HandleRadio(ctx *Context, evt *RadioEvent)
	HandlePacket(ctx *Context, evt *PacketEvent)
	HandleMeasurement(ctx *Context, evt *MeasurementEvent)
	HandleCommand(ctx *Context, cmd Command)
}

// RoleBase provides handlers that log and drop events a role does not
// expect.
type RoleBase struct{}

// HandleRadio drops the burst.
func (RoleBase) HandleRadio(ctx *Context, evt *RadioEvent) {
	ctx.Log.Warn("unexpected radio burst", zap.Int("channel", evt.Channel))
}

// HandlePacket drops the packet.
func (RoleBase) HandlePacket(ctx *Context, evt *PacketEvent) {
	ctx.Log.Warn("unexpected packet", zap.Uint32("src", evt.Packet.Src))
}

// HandleMeasurement drops the report.
func (RoleBase) HandleMeasurement(ctx *Context, evt *MeasurementEvent) {
	ctx.Log.Warn("unexpected measurement report",
		zap.Int("channel", evt.Channel))
}

// HandleCommand drops the command.
func (RoleBase) HandleCommand(ctx *Context, cmd Command) {
	ctx.Log.Warn("unexpected command", zap.String("cmd", fmt.Sprintf("%T", cmd)))
}

// Node is a simulated network element: a context plus a role.
type Node struct {
	ctx  *Context
	role Role
}

// New binds a role to a context. A nil logger is replaced by a no-op
// logger and a nil random source by one seeded with the node id.
func New(ctx *Context, role Role) *Node {
	sim.NameMustBeValid(ctx.Name)

	if ctx.Engine == nil {
		panic("node " + ctx.Name + " has no engine")
	}

	if ctx.Log == nil {
		ctx.Log = zap.NewNop()
	}

	ctx.Log = ctx.Log.With(
		zap.String("node", ctx.Name),
		zap.Stringer("kind", role.Kind()))

	if ctx.Rand == nil {
		ctx.Rand = rand.New(rand.NewSource(int64(ctx.ID)))
	}

	n := &Node{ctx: ctx, role: role}
	ctx.handler = n

	return n
}

// Name returns the name of the node.
func (n *Node) Name() string {
	return n.ctx.Name
}

// ID returns the node id.
func (n *Node) ID() uint32 {
	return n.ctx.ID
}

// Kind returns the kind of the node's role.
func (n *Node) Kind() Kind {
	return n.role.Kind()
}

// Role returns the protocol logic of the node.
func (n *Node) Role() Role {
	return n.role
}

// Context returns the node context.
func (n *Node) Context() *Context {
	return n.ctx
}

// Handle dispatches an event to the role. The firing of a cancelled or
// restarted timer is dropped here.
func (n *Node) Handle(e sim.Event) error {
	switch evt := e.(type) {
	case *TimerEvent:
		if !evt.Timer.Consume(evt) {
			n.ctx.Log.Debug("stale timer", zap.String("timer", evt.Timer.Name))
			return nil
		}

		n.ctx.Log.Debug("timer expired",
			zap.String("timer", evt.Timer.Name),
			zap.Int("arg", evt.Timer.Arg))
		n.role.HandleTimer(n.ctx, evt.Timer)
	case *StartEvent:
		n.role.Start(n.ctx)
	case *RadioEvent:
		n.role.HandleRadio(n.ctx, evt)
	case *PacketEvent:
		n.role.HandlePacket(n.ctx, evt)
	case *MeasurementEvent:
		n.role.HandleMeasurement(n.ctx, evt)
	case *CommandEvent:
		n.role.HandleCommand(n.ctx, evt.Command)
	default:
		return fmt.Errorf("node %s cannot handle %T", n.ctx.Name, e)
	}

	return nil
}
