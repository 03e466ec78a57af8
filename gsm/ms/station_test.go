package ms_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/ms"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/node/nodetest"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

const (
	bcch    = 10
	channel = 12
	slot    = 3
)

var (
	imsi   = codec.MustIdentity("0010100001")
	msisdn = codec.MustIdentity("5550000001")
	callee = codec.MustIdentity("5550000002")
)

var _ = Describe("Station", func() {
	var (
		st *ms.Station
		h  *nodetest.Harness
	)

	BeforeEach(func() {
		var err error
		st, err = ms.New(ms.DefaultConfig(imsi, msisdn))
		Expect(err).NotTo(HaveOccurred())

		h = nodetest.New("MS1", 100, st)
	})

	si3 := func(lac uint16) *codec.SystemInformationType3 {
		return &codec.SystemInformationType3{
			CellIdentity: 1,
			LAC:          lac,
			BCCH:         bcch,
		}
	}

	// uplink returns the messages the mobile queued since the last call.
	uplink := func() []codec.Message {
		var out []codec.Message
		for _, f := range h.DrainRadio() {
			if f.Burst.Kind == transport.BurstTraffic {
				continue
			}

			out = append(out, f.Message(codec.Uplink))
		}

		return out
	}

	// assign answers the pending channel request.
	assign := func() {
		msgs := uplink()
		Expect(msgs).NotTo(BeEmpty())

		req, ok := msgs[len(msgs)-1].(*codec.ChannelRequest)
		Expect(ok).To(BeTrue())

		h.Radio(bcch, 0, &codec.ImmediateAssignment{
			RandomReference: req.RandomReference,
			Channel:         channel,
			Slot:            slot,
			ChannelType:     codec.ChannelSDCCH,
		})
	}

	dedicated := func(m codec.Message) {
		h.Radio(channel, slot, m)
	}

	register := func() {
		h.Start()
		h.Radio(bcch, 0, si3(1))
		assign()
		Expect(uplink()).To(HaveLen(1))
		dedicated(&codec.LocationUpdateAccept{LAC: 1})
		dedicated(&codec.ChannelRelease{})
		h.MAC.Calls = nil
	}

	Context("location update", func() {
		It("should attach after power on", func() {
			h.Start()
			Expect(st.RR()).To(Equal(resource.RRIdle))
			Expect(st.Idle()).To(Equal(ms.IdlePLMNSearch))

			h.Radio(bcch, 0, si3(1))
			Expect(st.MM()).To(Equal(ms.MMWaitForRRConnectionLocationUpd))
			Expect(st.RR()).To(Equal(resource.RRConnectionPending))

			frames := h.DrainRadio()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Slot).To(Equal(0))
			Expect(frames[0].Channel).To(Equal(bcch + 1))

			req := frames[0].Message(codec.Uplink).(*codec.ChannelRequest)
			Expect(req.Cause()).To(Equal(codec.EstablishLocationUpdating))

			h.Radio(bcch, 0, &codec.ImmediateAssignment{
				RandomReference: req.RandomReference,
				Channel:         channel,
				Slot:            slot,
			})
			Expect(st.RR()).To(Equal(resource.RRDedicated))
			Expect(h.MAC.Calls).To(ContainElement(nodetest.MACCall{
				Op: "SetChannel", Node: 100, Channel: channel, Slot: slot,
			}))

			frames = h.DrainRadio()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Channel).To(Equal(channel + 1))
			Expect(frames[0].Slot).To(Equal(slot))
			Expect(frames[0].Message(codec.Uplink)).To(Equal(
				&codec.LocationUpdateRequest{
					UpdateType: codec.LocationUpdateIMSIAttach,
					IMSI:       imsi,
				}))
			Expect(st.MM()).To(Equal(ms.MMLocationUpdatingInitiated))

			dedicated(&codec.LocationUpdateAccept{LAC: 1})
			Expect(st.UpdateStatus()).To(Equal(ms.Updated))
			Expect(st.MM()).To(Equal(ms.MMWaitForNetworkCommand))

			dedicated(&codec.ChannelRelease{})
			Expect(st.RR()).To(Equal(resource.RRIdle))
			Expect(st.MM()).To(Equal(ms.MMIdle))
			Expect(st.Idle()).To(Equal(ms.IdleNormalService))
			Expect(st.Stats().LocationUpdatesAccepted).To(Equal(uint64(1)))
		})

		It("should ignore assignments for other mobiles", func() {
			h.Start()
			h.Radio(bcch, 0, si3(1))
			req := uplink()[0].(*codec.ChannelRequest)

			h.Radio(bcch, 0, &codec.ImmediateAssignment{
				RandomReference: req.RandomReference ^ 0x1f,
				Channel:         channel,
				Slot:            slot,
			})

			Expect(st.RR()).To(Equal(resource.RRConnectionPending))
		})

		It("should repeat the channel request on a TDMA frame boundary", func() {
			h.Start()
			h.Radio(bcch, 0, si3(1))
			Expect(st.Stats().ChannelRequestsSent).To(Equal(uint64(1)))

			earliest := h.Ctx.Timers.ChannelRequest + 8*node.TDMAFrame
			h.Advance(earliest - 0.001)
			Expect(st.Stats().ChannelRequestsSent).To(Equal(uint64(1)))

			const step = 0.0005
			for st.Stats().ChannelRequestsSent < 2 {
				Expect(h.Engine.CurrentTime()).To(BeNumerically("<",
					h.Ctx.Timers.ChannelRequest+17*node.TDMAFrame))
				h.Advance(step)
			}

			now := float64(h.Engine.CurrentTime())
			frame := float64(node.TDMAFrame)
			boundary := math.Floor(now/frame+1e-6) * frame
			Expect(boundary).To(BeNumerically(">", now-step-1e-9))
		})

		It("should give up random access after the last retransmission", func() {
			h.Start()
			h.Radio(bcch, 0, si3(1))
			h.Advance(5)

			stats := st.Stats()
			Expect(stats.ChannelRequestsSent).To(Equal(uint64(5)))
			Expect(stats.ChannelRequestFailures).To(Equal(uint64(1)))
			Expect(st.RR()).To(Equal(resource.RRIdle))
			Expect(st.Idle()).To(Equal(ms.IdleAttemptingToUpdate))
		})

		It("should retry after the update timer expires", func() {
			h.Start()
			h.Radio(bcch, 0, si3(1))
			assign()
			uplink()

			h.Advance(h.Ctx.Timers.T3210 + 0.001)
			Expect(st.RR()).To(Equal(resource.RRIdle))
			Expect(st.Idle()).To(Equal(ms.IdleAttemptingToUpdate))
			Expect(st.Stats().LocationUpdateFailures).To(Equal(uint64(1)))

			h.Advance(h.Ctx.Timers.T3211)
			Expect(st.MM()).To(Equal(ms.MMWaitForRRConnectionLocationUpd))
		})

		It("should stay in limited service after a reject", func() {
			h.Start()
			h.Radio(bcch, 0, si3(1))
			assign()
			uplink()

			dedicated(&codec.LocationUpdateReject{Cause: codec.CauseIMSIUnknownInVLR})
			dedicated(&codec.ChannelRelease{})
			Expect(st.UpdateStatus()).To(Equal(ms.RoamingNotAllowed))

			h.Radio(bcch, 0, si3(1))
			Expect(st.Idle()).To(Equal(ms.IdleLimitedService))
			Expect(uplink()).To(BeEmpty())
		})

		It("should update when the location area changes", func() {
			register()

			h.Radio(bcch, 0, si3(2))
			Expect(st.MM()).To(Equal(ms.MMWaitForRRConnectionLocationUpd))
		})

		It("should update periodically", func() {
			register()

			h.Advance(h.Ctx.Timers.T3212 + 0.001)
			Expect(st.MM()).To(Equal(ms.MMWaitForRRConnectionLocationUpd))

			assign()
			Expect(uplink()).To(ConsistOf(&codec.LocationUpdateRequest{
				UpdateType: codec.LocationUpdatePeriodic,
				LAC:        1,
				IMSI:       imsi,
			}))
		})
	})

	Context("mobile originated call", func() {
		BeforeEach(func() {
			register()
		})

		It("should refuse to call while detaching", func() {
			h.Command(node.PowerOff{})
			h.Command(node.Originate{Callee: callee, Duration: 10})

			Expect(st.Stats().CallsOriginated).To(BeZero())
		})

		It("should set up, hold and clear a call", func() {
			h.Command(node.Originate{Callee: callee, Duration: 10})
			Expect(st.CC()).To(Equal(ms.CCMMConnectionPending))

			req := uplink()[0].(*codec.ChannelRequest)
			Expect(req.Cause()).To(Equal(codec.EstablishNormalCall))
			h.Radio(bcch, 0, &codec.ImmediateAssignment{
				RandomReference: req.RandomReference,
				Channel:         channel,
				Slot:            slot,
			})
			Expect(uplink()).To(ConsistOf(&codec.CMServiceRequest{
				ServiceType: codec.ServiceMobileOriginatingCall,
				IMSI:        imsi,
			}))

			dedicated(&codec.CMServiceAccept{})
			Expect(st.CC()).To(Equal(ms.CCCallInitiated))
			Expect(uplink()).To(ConsistOf(&codec.SetupMO{
				BearerCapability: codec.BearerSpeech,
				CalledNumber:     callee.BCD(),
			}))

			dedicated(&codec.CallProceeding{})
			Expect(st.CC()).To(Equal(ms.CCMOCallProceeding))

			dedicated(&codec.Alerting{})
			Expect(st.CC()).To(Equal(ms.CCCallDelivered))

			dedicated(&codec.ConnectMO{})
			Expect(st.CC()).To(Equal(ms.CCActive))
			Expect(uplink()).To(ConsistOf(&codec.ConnectAck{}))

			h.Advance(1)
			Expect(st.Stats().TrafficFramesSent).To(BeNumerically(">=", 40))
			Expect(uplink()).To(BeEmpty())

			h.Advance(9.5)
			Expect(st.CC()).To(Equal(ms.CCDisconnectRequest))
			Expect(uplink()).To(ConsistOf(&codec.DisconnectByMS{
				Cause:    codec.CauseNormalClearing,
				Location: codec.LocationUser,
			}))

			dedicated(&codec.Release{Cause: codec.CauseNormalClearing})
			Expect(st.CC()).To(Equal(ms.CCNull))
			Expect(st.MM()).To(Equal(ms.MMWaitForNetworkCommand))
			Expect(uplink()).To(HaveLen(1))

			dedicated(&codec.ChannelRelease{})
			Expect(st.RR()).To(Equal(resource.RRIdle))
			Expect(st.Idle()).To(Equal(ms.IdleNormalService))
			Expect(st.Stats().CallsCompleted).To(Equal(uint64(1)))
		})

		It("should clear locally when setup times out", func() {
			h.Command(node.Originate{Callee: callee, Duration: 10})
			assign()
			uplink()
			dedicated(&codec.CMServiceAccept{})

			h.Advance(h.Ctx.Timers.T303 + 0.001)

			Expect(st.CC()).To(Equal(ms.CCNull))
			Expect(st.RR()).To(Equal(resource.RRIdle))
			Expect(st.Stats().CallsFailed).To(Equal(uint64(1)))
		})

		It("should clear on a CM service reject", func() {
			h.Command(node.Originate{Callee: callee, Duration: 10})
			assign()
			uplink()

			dedicated(&codec.CMServiceReject{Cause: codec.CauseCongestion})
			Expect(st.CC()).To(Equal(ms.CCNull))
			Expect(st.MM()).To(Equal(ms.MMWaitForNetworkCommand))

			h.Advance(h.Ctx.Timers.T3240 + 0.001)
			Expect(st.RR()).To(Equal(resource.RRIdle))
		})
	})

	Context("mobile terminated call", func() {
		BeforeEach(func() {
			register()
		})

		It("should answer a paged call", func() {
			h.Radio(bcch, 0, &codec.PagingRequestType1{IMSI: callee})
			Expect(uplink()).To(BeEmpty())

			h.Radio(bcch, 0, &codec.PagingRequestType1{IMSI: imsi})
			req := uplink()[0].(*codec.ChannelRequest)
			Expect(req.Cause()).To(Equal(codec.EstablishAnswerToPaging))

			h.Radio(bcch, 0, &codec.ImmediateAssignment{
				RandomReference: req.RandomReference,
				Channel:         channel,
				Slot:            slot,
			})
			Expect(uplink()).To(ConsistOf(&codec.PagingResponse{IMSI: imsi}))

			dedicated(&codec.SetupMT{
				BearerCapability: codec.BearerSpeech,
				CallingNumber:    msisdn.BCD(),
			})
			Expect(st.CC()).To(Equal(ms.CCCallReceived))
			Expect(uplink()).To(Equal([]codec.Message{
				&codec.CallConfirmed{BearerCapability: codec.BearerSpeech},
				&codec.Alerting{},
			}))

			h.Advance(2.001)
			Expect(st.CC()).To(Equal(ms.CCConnectRequest))
			Expect(uplink()).To(ConsistOf(&codec.ConnectMT{}))

			dedicated(&codec.ConnectAck{})
			Expect(st.CC()).To(Equal(ms.CCActive))
			Expect(st.Stats().CallsConnected).To(Equal(uint64(1)))
		})

		It("should release after a network disconnect", func() {
			h.Radio(bcch, 0, &codec.PagingRequestType1{IMSI: imsi})
			assign()
			uplink()
			dedicated(&codec.SetupMT{})
			h.Advance(2.001)
			dedicated(&codec.ConnectAck{})
			uplink()

			dedicated(&codec.DisconnectByNetwork{Cause: codec.CauseNormalClearing})
			Expect(st.CC()).To(Equal(ms.CCReleaseRequest))

			dedicated(&codec.ReleaseComplete{})
			Expect(st.CC()).To(Equal(ms.CCNull))
		})

		It("should retransmit Release exactly once", func() {
			h.Radio(bcch, 0, &codec.PagingRequestType1{IMSI: imsi})
			assign()
			uplink()
			dedicated(&codec.SetupMT{})
			uplink()

			dedicated(&codec.DisconnectByNetwork{Cause: codec.CauseNormalClearing})
			h.Advance(h.Ctx.Timers.T308 + 0.001)
			Expect(st.CC()).To(Equal(ms.CCReleaseRequest))

			h.Advance(h.Ctx.Timers.T308)
			Expect(st.CC()).To(Equal(ms.CCNull))
			Expect(st.RR()).To(Equal(resource.RRIdle))

			releases := 0
			for _, m := range uplink() {
				if _, ok := m.(*codec.Release); ok {
					releases++
				}
			}

			Expect(releases).To(Equal(2))
			Expect(st.Stats().ForcedReleases).To(Equal(uint64(1)))
		})
	})

	Context("guards", func() {
		It("should drop call control while idle", func() {
			register()

			dedicated(&codec.ConnectAck{})

			Expect(st.CC()).To(Equal(ms.CCNull))
			Expect(st.Stats().MessagesDropped).To(Equal(uint64(1)))
		})

		It("should ignore everything while switched off", func() {
			h.Radio(bcch, 0, si3(1))

			Expect(st.RR()).To(Equal(resource.RRNull))
			Expect(uplink()).To(BeEmpty())
		})
	})

	Context("callee with a hang-up time", func() {
		BeforeEach(func() {
			cfg := ms.DefaultConfig(imsi, msisdn)
			cfg.HangUpAfter = 5

			var err error
			st, err = ms.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			h = nodetest.New("MS1", 100, st)
			register()
		})

		It("should clear the answered call itself", func() {
			h.Radio(bcch, 0, &codec.PagingRequestType1{IMSI: imsi})
			assign()
			uplink()
			dedicated(&codec.SetupMT{BearerCapability: codec.BearerSpeech})
			h.Advance(2.001)
			dedicated(&codec.ConnectAck{})
			Expect(st.CC()).To(Equal(ms.CCActive))
			uplink()

			h.Advance(4.9)
			Expect(st.CC()).To(Equal(ms.CCActive))

			h.Advance(0.2)
			Expect(st.CC()).To(Equal(ms.CCDisconnectRequest))
			Expect(uplink()).To(ContainElement(&codec.DisconnectByMS{
				Cause:    codec.CauseNormalClearing,
				Location: codec.LocationUser,
			}))

			dedicated(&codec.Release{Cause: codec.CauseNormalClearing})
			Expect(st.CC()).To(Equal(ms.CCNull))
			Expect(uplink()).To(ContainElement(
				BeAssignableToTypeOf(&codec.ReleaseComplete{})))
		})

		It("should reject a negative hang-up time", func() {
			cfg := ms.DefaultConfig(imsi, msisdn)
			cfg.HangUpAfter = -1

			_, err := ms.New(cfg)
			Expect(err).To(HaveOccurred())
		})
	})

	It("should move to the commanded channel on handover", func() {
		register()
		h.Command(node.Originate{Callee: callee, Duration: 100})
		assign()
		dedicated(&codec.CMServiceAccept{})
		dedicated(&codec.ConnectMO{})
		uplink()

		dedicated(&codec.RIHandoverCommand{
			CellIdentity:      2,
			LAC:               1,
			BCCH:              20,
			Channel:           22,
			Slot:              5,
			HandoverReference: 9,
		})

		Expect(h.MAC.Calls).To(ContainElement(nodetest.MACCall{
			Op: "Handover", Node: 100, Cell: 2, Channel: 22, Slot: 5,
		}))

		frames := h.DrainRadio()
		var signaling []nodetest.Frame
		for _, f := range frames {
			if f.Burst.Kind != transport.BurstTraffic {
				signaling = append(signaling, f)
			}
		}

		Expect(signaling).To(HaveLen(2))
		Expect(signaling[0].Channel).To(Equal(23))
		Expect(signaling[0].Slot).To(Equal(5))
		Expect(signaling[0].Message(codec.Uplink)).To(Equal(
			&codec.HandoverAccess{HandoverReference: 9}))
		Expect(signaling[1].Message(codec.Uplink)).To(Equal(
			&codec.RIHandoverComplete{}))

		ch, sl, ok := st.Dedicated()
		Expect(ok).To(BeTrue())
		Expect(ch).To(Equal(22))
		Expect(sl).To(Equal(5))
	})

	It("should detach when switched off", func() {
		register()

		h.Command(node.PowerOff{})
		Expect(st.MM()).To(Equal(ms.MMIMSIDetachInitiated))

		assign()
		Expect(uplink()).To(ConsistOf(&codec.IMSIDetachIndication{IMSI: imsi}))

		dedicated(&codec.ChannelRelease{})
		Expect(st.PoweredOff()).To(BeTrue())
		Expect(st.RR()).To(Equal(resource.RRNull))
		Expect(st.Stats().Detaches).To(Equal(uint64(1)))
	})
})
