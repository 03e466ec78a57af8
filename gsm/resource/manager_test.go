package resource_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/sim"
)

var _ = Describe("Manager", func() {
	var (
		mockCtrl *gomock.Controller
		clock    *MockTimeTeller
		now      sim.VTimeInSec
		m        *resource.Manager
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		clock = NewMockTimeTeller(mockCtrl)
		now = 0
		clock.EXPECT().CurrentTime().DoAndReturn(func() sim.VTimeInSec {
			return now
		}).AnyTimes()

		var err error
		m, err = resource.NewManager(clock, resource.Config{
			ChannelStart: 20,
			ChannelCount: 4,
			ReleaseDelay: 5,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reject invalid channel ranges", func() {
		_, err := resource.NewManager(clock, resource.Config{ChannelCount: 3})
		Expect(err).To(HaveOccurred())
	})

	It("should number channels per pair", func() {
		s := m.Slot(1, 3)
		Expect(s.DownlinkChannel).To(Equal(22))
		Expect(s.UplinkChannel).To(Equal(23))
		Expect(m.SlotByUplink(23, 3)).To(BeIdenticalTo(s))
		Expect(m.SlotByUplink(22, 3)).To(BeNil())
		Expect(m.Slot(2, 0)).To(BeNil())
	})

	It("should keep the control slot permanently", func() {
		ctrl := m.ControlSlot()
		Expect(ctrl.InUse).To(BeTrue())

		_, ok := m.ReleaseChannel(ctrl)
		Expect(ok).To(BeFalse())
		Expect(ctrl.InUse).To(BeTrue())
	})

	It("should fill pair 0 before opening pair 1", func() {
		first, opened, ok := m.AssignChannel()
		Expect(ok).To(BeTrue())
		Expect(opened).To(BeFalse())
		Expect(first.Pair).To(Equal(0))
		Expect(first.Slot).To(Equal(1))

		for i := 2; i < resource.SlotsPerFrame; i++ {
			s, _, ok := m.AssignChannel()
			Expect(ok).To(BeTrue())
			Expect(s.Pair).To(Equal(0))
		}

		s, opened, ok := m.AssignChannel()
		Expect(ok).To(BeTrue())
		Expect(opened).To(BeTrue())
		Expect(s.Pair).To(Equal(1))
		Expect(s.Slot).To(Equal(0))
	})

	It("should count failures when all slots are taken", func() {
		for i := 0; i < 2*resource.SlotsPerFrame-1; i++ {
			_, _, ok := m.AssignChannel()
			Expect(ok).To(BeTrue())
		}

		_, _, ok := m.AssignChannel()
		Expect(ok).To(BeFalse())
		Expect(m.Stats.ChannelAssignmentFailures).To(Equal(uint64(1)))
	})

	It("should free the pair with its last slot", func() {
		for i := 0; i < resource.SlotsPerFrame-1; i++ {
			m.AssignChannel()
		}
		a, _, _ := m.AssignChannel()
		b, _, _ := m.AssignChannel()
		Expect(a.Pair).To(Equal(1))
		Expect(b.Pair).To(Equal(1))

		freed, ok := m.ReleaseChannel(a)
		Expect(ok).To(BeTrue())
		Expect(freed).To(BeFalse())

		freed, ok = m.ReleaseChannel(b)
		Expect(ok).To(BeTrue())
		Expect(freed).To(BeTrue())
		Expect(m.PairInUse(1)).To(BeFalse())

		_, ok = m.ReleaseChannel(b)
		Expect(ok).To(BeFalse())
	})

	It("should quarantine released connection ids", func() {
		s, _, _ := m.AssignChannel()
		id, ok := m.AssignConnectionID(s)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int32(0)))
		bound, ok := m.SlotByConnection(id)
		Expect(ok).To(BeTrue())
		Expect(bound).To(BeIdenticalTo(s))

		Expect(m.ReleaseConnectionID(id)).To(BeTrue())
		Expect(m.ReleaseConnectionID(id)).To(BeFalse())
		Expect(s.ConnectionID).To(Equal(resource.NoConnection))

		now = 1
		next, _ := m.AssignConnectionID(s)
		Expect(next).To(Equal(int32(1)))
		Expect(m.ReleaseConnectionID(next)).To(BeTrue())

		now = 5
		again, _ := m.AssignConnectionID(s)
		Expect(again).To(Equal(int32(0)))
	})

	It("should release the connection id and traffic id with the channel", func() {
		s, _, _ := m.AssignChannel()
		id, _ := m.AssignConnectionID(s)
		m.BindTraffic(s, 7)
		bound, ok := m.SlotByTraffic(7)
		Expect(ok).To(BeTrue())
		Expect(bound).To(BeIdenticalTo(s))

		_, ok = m.ReleaseChannel(s)
		Expect(ok).To(BeTrue())

		_, ok = m.SlotByConnection(id)
		Expect(ok).To(BeFalse())
		_, ok = m.SlotByTraffic(7)
		Expect(ok).To(BeFalse())
		Expect(m.UseAfter(id)).To(Equal(sim.VTimeInSec(5)))
		Expect(s.TrafficConnectionID).To(Equal(resource.NoConnection))
	})

	It("should unbind traffic ids", func() {
		s, _, _ := m.AssignChannel()
		m.BindTraffic(s, 3)

		Expect(m.UnbindTraffic(3)).To(BeTrue())
		Expect(m.UnbindTraffic(3)).To(BeFalse())
		Expect(s.UsedForTraffic).To(BeFalse())
	})

	It("should run out of connection ids", func() {
		slot := func() *resource.SlotInfo {
			return &resource.SlotInfo{ConnectionID: resource.NoConnection}
		}

		for i := 0; i < resource.MaxConnections; i++ {
			_, ok := m.AssignConnectionID(slot())
			Expect(ok).To(BeTrue())
		}

		_, ok := m.AssignConnectionID(slot())
		Expect(ok).To(BeFalse())
		Expect(m.Stats.ConnectionFailures).To(Equal(uint64(1)))
	})

	It("should not bind a second connection id to a slot", func() {
		s, _, _ := m.AssignChannel()
		id, ok := m.AssignConnectionID(s)
		Expect(ok).To(BeTrue())

		other, ok := m.AssignConnectionID(s)
		Expect(ok).To(BeFalse())
		Expect(other).To(Equal(resource.NoConnection))
		Expect(s.ConnectionID).To(Equal(id))
		Expect(m.Stats.ConnectionsAssigned).To(Equal(uint64(1)))

		_, ok = m.SlotByConnection(id + 1)
		Expect(ok).To(BeFalse())
	})
})
