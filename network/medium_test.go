package network_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/transport"
	"github.com/sarchlab/gsmsim/network"
	"github.com/sarchlab/gsmsim/sim"
)

var _ = Describe("Medium", func() {
	var (
		engine         *sim.SerialEngine
		medium         *network.Medium
		bsA, bsB, ms1  *node.Node
		pA, pB, p1, p2 *probe
	)

	burst := func(b byte) transport.Burst {
		return transport.Burst{Kind: transport.BurstSignaling, Data: []byte{b}}
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		medium = network.NewMedium("Medium", engine, 0.001, nil, nil)

		bsA, pA = newProbe(engine, "BSA", 10, node.KindBS)
		bsB, pB = newProbe(engine, "BSB", 20, node.KindBS)
		medium.AttachCell(bsA, 10, 1, []uint16{2})
		medium.AttachCell(bsB, 20, 2, []uint16{1})

		var ms2 *node.Node
		ms1, p1 = newProbe(engine, "MS1", 100, node.KindMS)
		ms2, p2 = newProbe(engine, "MS2", 101, node.KindMS)
		medium.AttachMobile(ms1, 10)
		medium.AttachMobile(ms2, 20)
	})

	It("should broadcast the control slot to the camped mobiles", func() {
		bsA.Context().Radio.Enqueue(0, 10, burst(1))

		Expect(engine.Run()).To(Succeed())
		Expect(p1.radio).To(HaveLen(1))
		Expect(p1.radio[0].Channel).To(Equal(10))
		Expect(p1.radio[0].Slot).To(Equal(0))
		Expect(p1.radio[0].Time()).To(
			BeNumerically("~", float64(node.TDMAFrame)+0.001, 1e-9))
		Expect(p2.radio).To(BeEmpty())
		Expect(medium.Stats().Broadcast).To(Equal(uint64(1)))
	})

	It("should move one burst per queue per frame", func() {
		q := bsA.Context().Radio
		q.Enqueue(0, 10, burst(1))
		q.Enqueue(0, 10, burst(2))

		Expect(engine.Run()).To(Succeed())
		Expect(p1.radio).To(HaveLen(2))
		Expect(p1.radio[1].Time() - p1.radio[0].Time()).To(
			BeNumerically("~", float64(node.TDMAFrame), 1e-9))
		Expect(p1.radio[1].Burst.Data).To(Equal([]byte{2}))
	})

	It("should deliver uplink bursts to the listening cell only", func() {
		ms1.Context().Radio.Enqueue(0, 11, burst(1))
		Expect(engine.Run()).To(Succeed())
		Expect(pA.radio).To(BeEmpty())
		Expect(medium.Stats().Undelivered).To(Equal(uint64(1)))

		medium.StartListen(10, 11)
		ms1.Context().Radio.Enqueue(0, 11, burst(2))
		Expect(engine.Run()).To(Succeed())
		Expect(pA.radio).To(HaveLen(1))
		Expect(pA.radio[0].Channel).To(Equal(11))
		Expect(pB.radio).To(BeEmpty())

		medium.StopListen(20, 11)
		medium.StopListen(10, 11)
		ms1.Context().Radio.Enqueue(0, 11, burst(3))
		Expect(engine.Run()).To(Succeed())
		Expect(pA.radio).To(HaveLen(1))
	})

	It("should route dedicated downlink bursts by channel and slot", func() {
		medium.SetChannel(100, 12, 3)

		bsA.Context().Radio.Enqueue(3, 12, burst(1))
		bsA.Context().Radio.Enqueue(0, 10, burst(2))
		bsA.Context().Radio.Enqueue(4, 12, burst(3))
		Expect(engine.RunUntil(0.1)).To(Succeed())

		Expect(p1.radio).To(HaveLen(1))
		Expect(p1.radio[0].Slot).To(Equal(3))
		Expect(medium.Stats().Undelivered).To(Equal(uint64(1)))

		medium.ChannelRelease(100)
		bsA.Context().Radio.Enqueue(0, 10, burst(4))
		Expect(engine.RunUntil(0.2)).To(Succeed())
		Expect(p1.radio).To(HaveLen(2))
		Expect(p1.radio[1].Burst.Data).To(Equal([]byte{4}))
	})

	It("should report measurements of dedicated mobiles", func() {
		medium.Signals().Set(100, 10, network.Link{Level: -70, Quality: 0.01})
		medium.Signals().Set(100, 20, network.Link{Level: -90})
		medium.SetChannel(100, 12, 3)

		Expect(engine.RunUntil(1)).To(Succeed())
		Expect(pA.reports).To(HaveLen(2))

		r := pA.reports[0]
		Expect(r.Channel).To(Equal(13))
		Expect(r.Slot).To(Equal(3))
		Expect(r.Report.DLLevel).To(Equal(-70.0))
		Expect(r.Report.ULQuality).To(Equal(0.01))
		Expect(r.Report.NeighbourLevels).To(Equal([]float64{-90}))

		medium.ChannelRelease(100)
		Expect(engine.RunUntil(3)).To(Succeed())
		Expect(pA.reports).To(HaveLen(2))
		Expect(medium.Stats().Measurements).To(Equal(uint64(2)))
	})

	It("should move a mobile to the target cell on handover", func() {
		medium.Signals().Set(100, 10, network.Link{Level: -100})
		medium.Signals().Set(100, 20, network.Link{Level: -60})
		medium.SetChannel(100, 12, 3)
		medium.Handover(100, 2, 22, 5)

		serving, ok := medium.Serving(100)
		Expect(ok).To(BeTrue())
		Expect(serving).To(Equal(uint32(20)))

		bsA.Context().Radio.Enqueue(3, 12, burst(1))
		bsB.Context().Radio.Enqueue(5, 22, burst(2))
		Expect(engine.RunUntil(0.5)).To(Succeed())

		Expect(p1.radio).To(HaveLen(1))
		Expect(p1.radio[0].Channel).To(Equal(22))
		Expect(pA.reports).To(BeEmpty())
		Expect(pB.reports).To(HaveLen(1))
		Expect(pB.reports[0].Channel).To(Equal(23))
		Expect(pB.reports[0].Report.DLLevel).To(Equal(-60.0))
		Expect(pB.reports[0].Report.NeighbourLevels).To(Equal([]float64{-100}))
		Expect(medium.Stats().Handovers).To(Equal(uint64(1)))
	})
})
