package scenario_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/scenario"
	"github.com/sarchlab/gsmsim/sim"
)

var _ = Describe("Scenario", func() {
	var c *scenario.Config

	BeforeEach(func() {
		var err error
		c, err = scenario.Load("testdata/twocells.yaml")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should load a scenario file", func() {
		Expect(c.Seed).To(Equal(int64(7)))
		Expect(c.Duration).To(Equal(120 * time.Second))
		Expect(c.BaseStations).To(HaveLen(2))
		Expect(c.Mobiles).To(HaveLen(2))
		Expect(c.Mobiles[0].Calls[0].Callee).To(Equal("5550000002"))
		Expect(*c.Mobiles[1].AnswerDelay).To(Equal(2 * time.Second))
		Expect(c.Mobiles[0].AnswerDelay).To(BeNil())
	})

	It("should fill in the defaults", func() {
		b := c.BaseStations[0]
		Expect(b.ReleaseDelay).To(Equal(scenario.DefaultReleaseDelay))
		Expect(b.LinkLossLevel).To(Equal(scenario.DefaultLinkLossLevel))
		Expect(b.Neighbours[0].RxLevMin).To(Equal(scenario.DefaultRxLevMin))
		Expect(b.HandoverThresholds()).To(Equal(handover.DefaultThresholds()))
		Expect(c.MSC.MaxCalls).To(Equal(50))
	})

	It("should apply the timer overrides", func() {
		t, err := c.TimerConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(t.T3212).To(Equal(sim.VTimeInSec(60)))
		Expect(t.T303).To(Equal(node.DefaultTimers().T303))
	})

	It("should derive the switch configuration", func() {
		sc := c.SwitchConfig()
		Expect(sc.Subscribers).To(HaveLen(2))
		Expect(sc.Cells).To(HaveLen(2))
		Expect(sc.Cells[1].NodeID).To(Equal(uint32(20)))
		Expect(sc.Subscribers[0].MSISDN.String()).To(Equal("5550000001"))
	})

	It("should find cells by identity", func() {
		b, ok := c.CellByIdentity(2)
		Expect(ok).To(BeTrue())
		Expect(b.Name).To(Equal("BSB"))

		_, ok = c.CellByIdentity(9)
		Expect(ok).To(BeFalse())
	})

	DescribeTable("should reject inconsistent scenarios",
		func(mutate func(c *scenario.Config), msg string) {
			mutate(c)
			Expect(c.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("duplicate node id", func(c *scenario.Config) {
			c.Mobiles[1].ID = 10
		}, "node id 10"),
		Entry("duplicate name", func(c *scenario.Config) {
			c.Mobiles[1].Name = "Alice"
		}, "used twice"),
		Entry("odd channel count", func(c *scenario.Config) {
			c.BaseStations[0].ChannelCount = 3
		}, "must be even"),
		Entry("overlapping channels", func(c *scenario.Config) {
			c.BaseStations[1].ChannelStart = 12
		}, "overlap"),
		Entry("short imsi", func(c *scenario.Config) {
			c.Mobiles[0].IMSI = "123"
		}, "imsi"),
		Entry("unknown serving cell", func(c *scenario.Config) {
			c.Mobiles[0].ServingBS = 99
		}, "unknown base station"),
		Entry("unknown neighbour", func(c *scenario.Config) {
			c.BaseStations[0].Neighbours[0].Cell = 9
		}, "not configured"),
		Entry("self neighbour", func(c *scenario.Config) {
			c.BaseStations[0].Neighbours[0].Cell = 1
		}, "itself"),
		Entry("unknown timer", func(c *scenario.Config) {
			c.Timers["t9999"] = time.Second
		}, "unknown timer"),
		Entry("bad callee", func(c *scenario.Config) {
			c.Mobiles[0].Calls[0].Callee = "55500000x2"
		}, "call 0"),
		Entry("too many cells", func(c *scenario.Config) {
			for i := 0; i < 6; i++ {
				c.BaseStations = append(c.BaseStations, scenario.BaseStation{
					ID:           uint32(30 + i),
					Name:         "Extra" + string(rune('A'+i)),
					CellIdentity: uint16(30 + i),
					ChannelStart: 100 + 4*i,
					ChannelCount: 4,
				})
			}
		}, "at most 7"),
		Entry("negative hang up time", func(c *scenario.Config) {
			c.Mobiles[1].HangUpAfter = -time.Second
		}, "hang up time"),
		Entry("bad space in name", func(c *scenario.Config) {
			c.MSC.Name = "the msc"
		}, "spaces"),
	)

	It("should report parse errors", func() {
		_, err := scenario.Parse([]byte("msc: [1, 2"))
		Expect(err).To(HaveOccurred())
	})

	It("should report a missing file", func() {
		_, err := scenario.Load("testdata/missing.yaml")
		Expect(err).To(MatchError(ContainSubstring("reading scenario")))
	})
})
