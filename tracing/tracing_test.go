package tracing

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/gsmsim/datarecording"
	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/sim"
)

func msgCtx(pos *sim.HookPos, t sim.VTimeInSec, iface node.Interface, m codec.Message) sim.HookCtx {
	return sim.HookCtx{
		Pos: pos,
		Item: node.MsgInfo{
			Time:      t,
			Node:      "BS1",
			Interface: iface,
			Message:   m,
		},
	}
}

var _ = Describe("MsgCounter", func() {
	It("should count per direction, interface and name", func() {
		c := NewMsgCounter()

		c.Func(msgCtx(node.HookPosMsgSend, 0, node.InterfaceA, &codec.ClearCommand{}))
		c.Func(msgCtx(node.HookPosMsgSend, 1, node.InterfaceA, &codec.ClearCommand{}))
		c.Func(msgCtx(node.HookPosMsgRecv, 1, node.InterfaceRadio, &codec.Alerting{}))
		c.Func(sim.HookCtx{Pos: sim.HookPosBufPush, Item: 3})

		Expect(c.Get(DirectionSend, (&codec.ClearCommand{}).Name())).To(Equal(uint64(2)))
		Expect(c.Get(DirectionRecv, (&codec.ClearCommand{}).Name())).To(BeZero())
		Expect(c.Counts()).To(HaveLen(2))
		Expect(c.Counts()[0].Message).To(Equal((&codec.Alerting{}).Name()))
		Expect(c.Counts()[0].Interface).To(Equal("Um"))
	})
})

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		backend  *MockDataRecorder
		tracer   *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		backend = NewMockDataRecorder(mockCtrl)
		backend.EXPECT().CreateTable(MessageTable, gomock.Any()).Return(nil)

		var err error
		tracer, err = NewDBTracer(backend)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write one row per message", func() {
		backend.EXPECT().
			InsertData(MessageTable, MessageRecord{
				Time:      2,
				Node:      "BS1",
				Direction: "send",
				Interface: "A",
				Message:   (&codec.ClearCommand{}).Name(),
			}).
			Return(nil)

		tracer.Func(msgCtx(node.HookPosMsgSend, 2, node.InterfaceA, &codec.ClearCommand{}))

		Expect(tracer.Rows()).To(Equal(uint64(1)))
		Expect(tracer.Err()).NotTo(HaveOccurred())
	})

	It("should only trace inside the time range", func() {
		tracer.SetTimeRange(1, 2)
		backend.EXPECT().InsertData(MessageTable, gomock.Any()).Return(nil)

		tracer.Func(msgCtx(node.HookPosMsgRecv, 0.5, node.InterfaceA, &codec.ClearComplete{}))
		tracer.Func(msgCtx(node.HookPosMsgRecv, 1.5, node.InterfaceA, &codec.ClearComplete{}))
		tracer.Func(msgCtx(node.HookPosMsgRecv, 2.5, node.InterfaceA, &codec.ClearComplete{}))

		Expect(tracer.Rows()).To(Equal(uint64(1)))
	})

	It("should keep the first write error", func() {
		backend.EXPECT().InsertData(MessageTable, gomock.Any()).
			Return(errors.New("disk full")).Times(2)

		tracer.Func(msgCtx(node.HookPosMsgRecv, 0, node.InterfaceA, &codec.ClearComplete{}))
		tracer.Func(msgCtx(node.HookPosMsgRecv, 0, node.InterfaceA, &codec.ClearComplete{}))

		Expect(tracer.Err()).To(MatchError("disk full"))
		Expect(tracer.Rows()).To(BeZero())
	})

	It("should fail when the table cannot be created", func() {
		backend.EXPECT().CreateTable(MessageTable, gomock.Any()).
			Return(errors.New("exists"))

		_, err := NewDBTracer(backend)
		Expect(err).To(MatchError(ContainSubstring("exists")))
	})
})

var _ = Describe("MessageReader", func() {
	var (
		mockCtrl *gomock.Controller
		reader   *MockDataReader
		messages *MessageReader
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		reader = NewMockDataReader(mockCtrl)
		reader.EXPECT().MapTable(MessageTable, MessageRecord{})

		messages = NewMessageReader(reader)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should build the condition from the query", func() {
		reader.EXPECT().
			Query(gomock.Any(), MessageTable, datarecording.QueryParams{
				Where:   "Node = ? AND Direction = ? AND Time >= ? AND Time <= ?",
				Args:    []any{"Alice", "send", 1.0, 2.0},
				OrderBy: "Time, rowid",
				Limit:   10,
			}).
			Return([]any{&MessageRecord{Time: 1.5, Node: "Alice"}}, 3, nil)

		rows, total, err := messages.Messages(context.Background(), MessageQuery{
			Node:            "Alice",
			Direction:       DirectionSend,
			EnableTimeRange: true,
			StartTime:       1,
			EndTime:         2,
			Limit:           10,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(3))
		Expect(rows).To(Equal([]MessageRecord{{Time: 1.5, Node: "Alice"}}))
	})

	It("should pass errors on", func() {
		reader.EXPECT().
			Query(gomock.Any(), MessageTable, gomock.Any()).
			Return(nil, 0, errors.New("closed"))

		_, _, err := messages.Messages(context.Background(), MessageQuery{})
		Expect(err).To(MatchError("closed"))
	})
})
