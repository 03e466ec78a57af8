package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/sim"
)

func nodeMsg(
	pos *sim.HookPos,
	t sim.VTimeInSec,
	name string,
	iface node.Interface,
	m codec.Message,
) sim.HookCtx {
	return sim.HookCtx{
		Pos: pos,
		Item: node.MsgInfo{
			Time:      t,
			Node:      name,
			Interface: iface,
			Message:   m,
		},
	}
}

var _ = Describe("LatencyTracer", func() {
	var tracer *LatencyTracer

	BeforeEach(func() {
		tracer = NewCallSetupTracer()
	})

	It("should measure per node", func() {
		tracer.Func(nodeMsg(node.HookPosMsgSend, 1, "Alice",
			node.InterfaceRadio, &codec.CMServiceRequest{}))
		tracer.Func(nodeMsg(node.HookPosMsgSend, 2, "Bob",
			node.InterfaceRadio, &codec.CMServiceRequest{}))
		Expect(tracer.Pending()).To(Equal(2))

		tracer.Func(nodeMsg(node.HookPosMsgRecv, 4, "Alice",
			node.InterfaceRadio, &codec.ConnectMO{}))
		tracer.Func(nodeMsg(node.HookPosMsgRecv, 3, "Bob",
			node.InterfaceRadio, &codec.ConnectMO{}))

		Expect(tracer.Count()).To(Equal(uint64(2)))
		Expect(tracer.Average()).To(BeNumerically("~", 2, 1e-9))
		Expect(tracer.Max()).To(BeNumerically("~", 3, 1e-9))
		Expect(tracer.Pending()).To(BeZero())
	})

	It("should drop aborted procedures", func() {
		tracer.Func(nodeMsg(node.HookPosMsgSend, 1, "Alice",
			node.InterfaceRadio, &codec.CMServiceRequest{}))
		tracer.Func(nodeMsg(node.HookPosMsgRecv, 2, "Alice",
			node.InterfaceRadio, &codec.CMServiceReject{}))
		tracer.Func(nodeMsg(node.HookPosMsgRecv, 3, "Alice",
			node.InterfaceRadio, &codec.ConnectMO{}))

		Expect(tracer.Count()).To(BeZero())
		Expect(tracer.Aborted()).To(Equal(uint64(1)))
		Expect(tracer.Average()).To(BeZero())
	})

	It("should restart on a repeated request", func() {
		tracer.Func(nodeMsg(node.HookPosMsgSend, 1, "Alice",
			node.InterfaceRadio, &codec.CMServiceRequest{}))
		tracer.Func(nodeMsg(node.HookPosMsgSend, 5, "Alice",
			node.InterfaceRadio, &codec.CMServiceRequest{}))
		tracer.Func(nodeMsg(node.HookPosMsgRecv, 6, "Alice",
			node.InterfaceRadio, &codec.ConnectMO{}))

		Expect(tracer.Average()).To(BeNumerically("~", 1, 1e-9))
	})

	It("should ignore the A interface and stray messages", func() {
		tracer.Func(nodeMsg(node.HookPosMsgSend, 1, "BSA",
			node.InterfaceA, &codec.CMServiceRequest{}))
		tracer.Func(nodeMsg(node.HookPosMsgRecv, 2, "Bob",
			node.InterfaceRadio, &codec.ConnectMO{}))
		tracer.Func(sim.HookCtx{Pos: sim.HookPosBufPush, Item: 1})

		Expect(tracer.Pending()).To(BeZero())
		Expect(tracer.Count()).To(BeZero())
		Expect(tracer.Aborted()).To(BeZero())
	})
})
