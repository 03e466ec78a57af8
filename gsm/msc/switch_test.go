package msc_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/msc"
	"github.com/sarchlab/gsmsim/gsm/node/nodetest"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

const (
	mscID = 1
	bsA   = 10
	bsB   = 20
)

var (
	imsiA   = codec.MustIdentity("0010100001")
	imsiB   = codec.MustIdentity("0010100002")
	msisdnA = codec.MustIdentity("5550000001")
	msisdnB = codec.MustIdentity("5550000002")
)

type trafficFrame struct {
	Dst     uint32
	Header  transport.TrafficHeader
	Payload []byte
}

var _ = Describe("Switch", func() {
	var (
		sw *msc.Switch
		h  *nodetest.Harness
	)

	BeforeEach(func() {
		var err error
		sw, err = msc.New(msc.DefaultConfig(
			[]msc.Subscriber{
				{IMSI: imsiA, MSISDN: msisdnA},
				{IMSI: imsiB, MSISDN: msisdnB},
			},
			[]msc.Cell{
				{NodeID: bsA, CellIdentity: 1, LAC: 1},
				{NodeID: bsB, CellIdentity: 2, LAC: 1},
			},
		))
		Expect(err).NotTo(HaveOccurred())

		h = nodetest.New("MSC", mscID, sw)
		h.Start()
	})

	take := func() ([]nodetest.Signal, []trafficFrame) {
		var (
			signals []nodetest.Signal
			frames  []trafficFrame
		)

		for _, pkt := range h.IP.Take() {
			if pkt.Kind == transport.PacketTraffic {
				th, payload, err := transport.UnwrapTraffic(pkt.Data)
				Expect(err).NotTo(HaveOccurred())
				frames = append(frames, trafficFrame{pkt.Dst, th, payload})

				continue
			}

			s, err := nodetest.DecodeSignal(pkt, codec.Downlink)
			Expect(err).NotTo(HaveOccurred())
			signals = append(signals, s)
		}

		return signals, frames
	}

	names := func() []string {
		signals, _ := take()
		return nodetest.Names(signals)
	}

	cellOf := func(bs uint32) uint16 {
		if bs == bsA {
			return 1
		}

		return 2
	}

	initial := func(bs uint32, conn int32, m codec.DTAP) {
		h.Signaling(bs, transport.SCCPConnectRequest, conn,
			&codec.CompleteLayer3Info{
				CellIdentity: cellOf(bs),
				LAC:          1,
				L3:           codec.MustEncode(m),
			})
	}

	up := func(bs uint32, conn int32, m codec.Message) {
		h.Signaling(bs, transport.SCCPConnectionReference, conn, m)
	}

	attach := func(imsi codec.Identity, bs uint32) {
		initial(bs, 9, &codec.LocationUpdateRequest{IMSI: imsi})
		Expect(names()).To(Equal(
			[]string{"LocationUpdateAccept", "ChannelRelease"}))
		up(bs, 9, &codec.ClearComplete{})
	}

	originate := func() {
		attach(imsiA, bsA)
		attach(imsiB, bsB)

		initial(bsA, 0, &codec.CMServiceRequest{
			ServiceType: codec.ServiceMobileOriginatingCall,
			IMSI:        imsiA,
		})
		Expect(names()).To(Equal([]string{"CMServiceAccept"}))

		up(bsA, 0, &codec.SetupMO{
			BearerCapability: codec.BearerSpeech,
			CalledNumber:     msisdnB.BCD(),
		})
	}

	// connect runs a call from A to B up to the active state.
	connect := func() {
		originate()
		take()

		initial(bsB, 0, &codec.PagingResponse{IMSI: imsiB})
		up(bsB, 0, &codec.CallConfirmed{BearerCapability: codec.BearerSpeech})
		up(bsB, 0, &codec.Alerting{})
		up(bsB, 0, &codec.ConnectMT{})
		up(bsA, 0, &codec.ConnectAck{})
		take()
	}

	Context("mobility", func() {
		It("should register known subscribers", func() {
			attach(imsiA, bsA)

			e, ok := sw.VLR().Lookup(imsiA)
			Expect(ok).To(BeTrue())
			Expect(e.BSID).To(Equal(uint32(bsA)))
			Expect(e.Attached).To(BeTrue())
			Expect(sw.Calls()).To(BeEmpty())
		})

		It("should reject unknown subscribers", func() {
			initial(bsA, 3, &codec.LocationUpdateRequest{
				IMSI: codec.MustIdentity("0010199999"),
			})

			signals, _ := take()
			Expect(nodetest.Names(signals)).To(Equal(
				[]string{"LocationUpdateReject", "ChannelRelease"}))
			Expect(signals[0].Dst).To(Equal(uint32(bsA)))
			Expect(signals[0].Header.ConnectionID).To(Equal(int32(3)))
			Expect(signals[0].Message).To(Equal(&codec.LocationUpdateReject{
				Cause: codec.CauseIMSIUnknownInVLR,
			}))
		})

		It("should refuse calls from detached mobiles", func() {
			attach(imsiA, bsA)

			initial(bsA, 1, &codec.IMSIDetachIndication{IMSI: imsiA})
			Expect(names()).To(Equal([]string{"ChannelRelease"}))

			initial(bsA, 2, &codec.CMServiceRequest{IMSI: imsiA})
			signals, _ := take()
			Expect(signals[0].Message).To(Equal(&codec.CMServiceReject{
				Cause: codec.CauseIMSIUnknownInVLR,
			}))
			Expect(sw.Stats().Detaches).To(Equal(uint64(1)))
		})
	})

	Context("call setup", func() {
		It("should reject a second call request from the same mobile", func() {
			attach(imsiA, bsA)

			initial(bsA, 0, &codec.CMServiceRequest{IMSI: imsiA})
			Expect(names()).To(Equal([]string{"CMServiceAccept"}))

			initial(bsA, 1, &codec.CMServiceRequest{IMSI: imsiA})
			signals, _ := take()
			Expect(nodetest.Names(signals)).To(Equal(
				[]string{"CMServiceReject", "ChannelRelease"}))
			Expect(signals[0].Header.ConnectionID).To(Equal(int32(1)))

			Expect(sw.Calls()).To(HaveLen(1))
			Expect(sw.Stats().CallsRejected).To(Equal(uint64(1)))
		})

		It("should connect both mobiles", func() {
			originate()

			signals, frames := take()
			Expect(nodetest.Names(signals)).To(Equal(
				[]string{"CallProceeding", "Paging", "Paging"}))
			Expect([]uint32{signals[1].Dst, signals[2].Dst}).
				To(ConsistOf(uint32(bsA), uint32(bsB)))
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Dst).To(Equal(uint32(bsA)))
			Expect(frames[0].Header.MessageTypeCode).
				To(Equal(transport.TrafficConnectRequest))
			Expect(frames[0].Payload).To(Equal(transport.ConnectionPayload(0)))

			initial(bsB, 4, &codec.PagingResponse{IMSI: imsiB})
			signals, _ = take()
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Dst).To(Equal(uint32(bsB)))
			Expect(signals[0].Header.ConnectionID).To(Equal(int32(4)))
			Expect(signals[0].Message).To(Equal(&codec.SetupMT{
				BearerCapability: codec.BearerSpeech,
				CallingNumber:    msisdnA.BCD(),
			}))

			up(bsB, 4, &codec.CallConfirmed{BearerCapability: codec.BearerSpeech})
			signals, frames = take()
			Expect(signals).To(BeEmpty())
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Dst).To(Equal(uint32(bsB)))
			Expect(frames[0].Payload).To(Equal(transport.ConnectionPayload(4)))

			up(bsB, 4, &codec.Alerting{})
			signals, _ = take()
			Expect(nodetest.Names(signals)).To(Equal([]string{"Alerting"}))
			Expect(signals[0].Dst).To(Equal(uint32(bsA)))

			up(bsB, 4, &codec.ConnectMT{})
			signals, _ = take()
			Expect(nodetest.Names(signals)).To(Equal(
				[]string{"ConnectAck", "ConnectMO"}))
			Expect(signals[0].Dst).To(Equal(uint32(bsB)))
			Expect(signals[1].Dst).To(Equal(uint32(bsA)))

			up(bsA, 0, &codec.ConnectAck{})
			Expect(h.IP.Sent).To(BeEmpty())

			calls := sw.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Origin.CC).To(Equal(msc.CCActive))
			Expect(calls[0].Term.CC).To(Equal(msc.CCActive))
			Expect(calls[0].Origin.TrafficConnectionID).
				NotTo(Equal(calls[0].Term.TrafficConnectionID))
			Expect(calls[0].Origin.TrafficConnectionID).
				NotTo(Equal(transport.NoConnection))
			Expect(calls[0].Term.TrafficConnectionID).
				NotTo(Equal(transport.NoConnection))
			Expect(sw.TrafficInUse()).To(Equal(2))
			Expect(sw.Stats().CallsConnected).To(Equal(uint64(1)))
		})

		It("should relay bearer frames to the other cell", func() {
			connect()
			c := sw.Calls()[0]

			h.Traffic(bsA, transport.TrafficHeader{
				MessageTypeCode:     transport.TrafficData,
				TrafficConnectionID: c.Origin.TrafficConnectionID,
				SequenceNumber:      5,
			}, []byte{1, 2})

			_, frames := take()
			Expect(frames).To(Equal([]trafficFrame{{
				Dst: bsB,
				Header: transport.TrafficHeader{
					MessageTypeCode:     transport.TrafficData,
					TrafficConnectionID: c.Term.TrafficConnectionID,
					SequenceNumber:      5,
				},
				Payload: []byte{1, 2},
			}}))
		})

		It("should disconnect when the callee is unknown", func() {
			attach(imsiA, bsA)
			initial(bsA, 0, &codec.CMServiceRequest{IMSI: imsiA})
			up(bsA, 0, &codec.SetupMO{
				CalledNumber: codec.MustIdentity("5559999999").BCD(),
			})

			Expect(names()).To(Equal([]string{
				"CMServiceAccept", "CallProceeding", "DisconnectByNetwork",
			}))
		})

		It("should give up paging after three attempts", func() {
			originate()
			take()

			h.Advance(3*h.Ctx.Timers.T3113 + 0.01)

			signals, _ := take()
			Expect(nodetest.Names(signals)).To(Equal([]string{
				"Paging", "Paging", "Paging", "Paging", "DisconnectByNetwork",
			}))
			Expect(signals[4].Message.(*codec.DisconnectByNetwork).Cause).
				To(Equal(codec.CauseUserNotResponding))
		})

		It("should ignore unsolicited paging responses", func() {
			attach(imsiB, bsB)

			initial(bsB, 2, &codec.PagingResponse{IMSI: imsiB})

			Expect(names()).To(Equal([]string{"ChannelRelease"}))
			Expect(sw.Stats().MessagesDropped).To(Equal(uint64(1)))
		})

		It("should clear a call the caller never sets up", func() {
			attach(imsiA, bsA)
			initial(bsA, 0, &codec.CMServiceRequest{IMSI: imsiA})
			take()

			h.Advance(h.Ctx.Timers.UDT1 + 0.01)
			Expect(names()).To(Equal([]string{"ChannelRelease"}))

			up(bsA, 0, &codec.ClearComplete{})
			Expect(sw.Calls()).To(BeEmpty())
		})
	})

	Context("teardown", func() {
		It("should release both mobiles when the caller hangs up", func() {
			connect()

			up(bsA, 0, &codec.DisconnectByMS{Cause: codec.CauseNormalClearing})
			signals, _ := take()
			Expect(nodetest.Names(signals)).To(Equal(
				[]string{"Release", "DisconnectByNetwork"}))
			Expect(signals[0].Dst).To(Equal(uint32(bsA)))
			Expect(signals[1].Dst).To(Equal(uint32(bsB)))

			up(bsA, 0, &codec.ReleaseComplete{})
			Expect(names()).To(Equal([]string{"ChannelRelease"}))

			up(bsB, 0, &codec.Release{Cause: codec.CauseNormalClearing})
			Expect(names()).To(Equal(
				[]string{"ReleaseComplete", "ChannelRelease"}))

			up(bsA, 0, &codec.ClearComplete{})
			Expect(sw.Calls()).To(HaveLen(1))

			up(bsB, 0, &codec.ClearComplete{})
			Expect(sw.Calls()).To(BeEmpty())
			Expect(sw.TrafficInUse()).To(Equal(0))
			Expect(sw.Stats().CallsCompleted).To(Equal(uint64(1)))
		})

		It("should free the call when the mobiles stay silent", func() {
			connect()

			up(bsB, 0, &codec.DisconnectByMS{Cause: codec.CauseNormalClearing})
			take()

			t := h.Ctx.Timers
			h.Advance(t.T305 + t.T308 - 0.01)
			Expect(sw.Calls()).To(HaveLen(1))

			h.Advance(t.T308 + 0.02)

			Expect(sw.Calls()).To(BeEmpty())
			Expect(sw.TrafficInUse()).To(Equal(0))

			signals, _ := take()
			Expect(nodetest.Names(signals)).To(ContainElements(
				"Release", "ClearCommand"))
		})

		It("should drop the call when the radio link is lost", func() {
			connect()

			up(bsA, 0, &codec.ClearRequest{
				Cause: codec.AIFCauseRadioInterfaceFailure,
			})

			signals, _ := take()
			Expect(nodetest.Names(signals)).To(Equal(
				[]string{"ClearCommand", "ClearCommand"}))
			Expect(sw.Calls()).To(BeEmpty())
			Expect(sw.Stats().CallsDropped).To(Equal(uint64(1)))
		})
	})

	Context("handover", func() {
		required := func(lac, cell uint16) {
			up(bsA, 0, &codec.HandoverRequired{
				Cause:       codec.AIFCauseDownlinkStrength,
				ServingLAC:  1,
				ServingCell: 1,
				TargetLAC:   lac,
				TargetCell:  cell,
			})
		}

		It("should move the caller to the target cell", func() {
			connect()
			tid := sw.Calls()[0].Origin.TrafficConnectionID

			required(1, 2)
			signals, _ := take()
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Dst).To(Equal(uint32(bsB)))
			req := signals[0].Message.(*codec.HandoverRequest)
			Expect(req.TrafficConnectionID).To(Equal(tid))
			Expect(req.TargetCell).To(Equal(uint16(2)))

			cmd := codec.RIHandoverCommand{CellIdentity: 2, Channel: 22, Slot: 3}
			h.Signaling(bsB, transport.SCCPConnectRequest, 7,
				&codec.HandoverRequestAck{
					TempHandoverID: req.TempHandoverID,
					Command:        cmd,
				})
			signals, _ = take()
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Dst).To(Equal(uint32(bsA)))
			Expect(signals[0].Message).To(Equal(
				&codec.HandoverCommand{Command: cmd}))

			up(bsB, 7, &codec.HandoverDetect{})
			up(bsB, 7, &codec.HandoverComplete{
				Cause: codec.AIFCauseHandoverSuccessful,
			})
			signals, _ = take()
			Expect(nodetest.Names(signals)).To(Equal([]string{"ClearCommand"}))
			Expect(signals[0].Dst).To(Equal(uint32(bsA)))
			Expect(signals[0].Header.ConnectionID).To(Equal(int32(0)))

			up(bsA, 0, &codec.ClearComplete{})

			o := sw.Calls()[0].Origin
			Expect(o.BSID).To(Equal(uint32(bsB)))
			Expect(o.ConnectionID).To(Equal(int32(7)))
			Expect(o.RR).To(Equal(resource.RRDedicated))
			Expect(o.HandoverTrying).To(BeFalse())
			Expect(sw.Stats().Handovers).To(Equal(uint64(1)))

			h.Advance(h.Ctx.Timers.T3103 + 0.01)
			Expect(sw.Calls()).To(HaveLen(1))

			up(bsB, 7, &codec.DisconnectByMS{})
			signals, _ = take()
			Expect(signals[0].Dst).To(Equal(uint32(bsB)))
			Expect(signals[0].Header.ConnectionID).To(Equal(int32(7)))
		})

		It("should reject the handover when the target refuses", func() {
			connect()

			required(1, 2)
			signals, _ := take()
			req := signals[0].Message.(*codec.HandoverRequest)

			h.Signaling(bsB, transport.SCCPConnectionless,
				transport.NoConnection, &codec.HandoverFailure{
					Cause:          codec.AIFCauseNoRadioResource,
					TempHandoverID: req.TempHandoverID,
				})

			signals, _ = take()
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Dst).To(Equal(uint32(bsA)))
			Expect(signals[0].Message).To(Equal(&codec.HandoverRequiredReject{
				Cause: codec.AIFCauseNoRadioResource,
			}))
			Expect(sw.Calls()[0].Origin.HandoverTrying).To(BeFalse())
		})

		It("should reject an unknown target cell", func() {
			connect()

			required(1, 9)

			signals, _ := take()
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Message).To(Equal(&codec.HandoverRequiredReject{
				Cause: codec.AIFCauseInvalidCell,
			}))
		})

		It("should clear the target channel acknowledged after a hang-up", func() {
			connect()

			required(1, 2)
			signals, _ := take()
			req := signals[0].Message.(*codec.HandoverRequest)

			up(bsA, 0, &codec.DisconnectByMS{Cause: codec.CauseNormalClearing})
			Expect(names()).To(Equal(
				[]string{"Release", "DisconnectByNetwork"}))
			Expect(sw.Calls()[0].Origin.HandoverTrying).To(BeFalse())

			up(bsA, 0, &codec.ReleaseComplete{})
			Expect(names()).To(Equal([]string{"ChannelRelease"}))
			up(bsA, 0, &codec.ClearComplete{})

			h.Signaling(bsB, transport.SCCPConnectRequest, 7,
				&codec.HandoverRequestAck{
					TempHandoverID: req.TempHandoverID,
					Command:        codec.RIHandoverCommand{CellIdentity: 2},
				})
			signals, _ = take()
			Expect(nodetest.Names(signals)).To(Equal([]string{"ClearCommand"}))
			Expect(signals[0].Dst).To(Equal(uint32(bsB)))
			Expect(signals[0].Header.ConnectionID).To(Equal(int32(7)))

			up(bsB, 0, &codec.Release{Cause: codec.CauseNormalClearing})
			Expect(names()).To(Equal(
				[]string{"ReleaseComplete", "ChannelRelease"}))
			up(bsB, 0, &codec.ClearComplete{})
			Expect(sw.Calls()).To(BeEmpty())

			h.Advance(h.Ctx.Timers.T3103 + 0.01)
			Expect(names()).To(BeEmpty())
			Expect(sw.Stats().CallsDropped).To(Equal(uint64(0)))
		})

		It("should clear the reserved target channel on a hang-up", func() {
			connect()

			required(1, 2)
			signals, _ := take()
			req := signals[0].Message.(*codec.HandoverRequest)

			h.Signaling(bsB, transport.SCCPConnectRequest, 7,
				&codec.HandoverRequestAck{
					TempHandoverID: req.TempHandoverID,
					Command:        codec.RIHandoverCommand{CellIdentity: 2},
				})
			Expect(names()).To(Equal([]string{"HandoverCommand"}))

			up(bsA, 0, &codec.DisconnectByMS{Cause: codec.CauseNormalClearing})
			signals, _ = take()
			Expect(nodetest.Names(signals)).To(Equal(
				[]string{"ClearCommand", "Release", "DisconnectByNetwork"}))
			Expect(signals[0].Dst).To(Equal(uint32(bsB)))
			Expect(signals[0].Header.ConnectionID).To(Equal(int32(7)))
			Expect(signals[1].Dst).To(Equal(uint32(bsA)))
			Expect(sw.Stats().HandoverFailures).To(Equal(uint64(1)))
		})

		It("should drop the call when the handover does not finish", func() {
			connect()

			required(1, 2)
			take()

			h.Advance(h.Ctx.Timers.T3103 + 0.01)

			Expect(names()).To(Equal([]string{"ClearCommand", "ClearCommand"}))
			Expect(sw.Calls()).To(BeEmpty())
		})
	})
})
