package bs_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gsmsim/gsm/bs"
	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/node/nodetest"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

const (
	mscID  = 1
	bsID   = 10
	ctrlDL = 10
	ctrlUL = 11
)

var imsi = codec.MustIdentity("0010100001")

var _ = Describe("Station", func() {
	var (
		st *bs.Station
		h  *nodetest.Harness
	)

	BeforeEach(func() {
		h = nodetest.NewEmpty("BS1", bsID)

		var err error
		st, err = bs.New(bs.Config{
			CellIdentity: 1,
			LAC:          1,
			MSC:          mscID,
			Resources: resource.Config{
				ChannelStart: ctrlDL,
				ChannelCount: 4,
				ReleaseDelay: 2,
			},
			Neighbours: []handover.Neighbour{
				{CellIdentity: 2, LAC: 1, BCCH: 20, RxLevMin: -100},
			},
			Thresholds:     handover.DefaultThresholds(),
			HandoverMargin: 4,
			LinkLossLevel:  -110,
		}, h.Engine)
		Expect(err).NotTo(HaveOccurred())

		h.Bind(st)
		h.Start()
	})

	downlink := func() []nodetest.Frame {
		var out []nodetest.Frame
		for _, f := range h.DrainRadio() {
			if f.Burst.Kind == transport.BurstSignaling {
				out = append(out, f)
			}
		}

		return out
	}

	// seize runs random access and returns the assigned downlink channel
	// and slot.
	seize := func(ref uint8) (int, int) {
		downlink()
		h.Radio(ctrlUL, 0, &codec.ChannelRequest{RandomReference: ref})

		frames := downlink()
		Expect(frames).To(HaveLen(1))

		ia := frames[0].Message(codec.Downlink).(*codec.ImmediateAssignment)
		Expect(ia.RandomReference).To(Equal(ref))

		return int(ia.Channel), int(ia.Slot)
	}

	// connect seizes a slot and opens its A-interface connection.
	connect := func() (int, int, int32) {
		ch, sl := seize(0x05)
		h.Radio(ch+1, sl, &codec.CMServiceRequest{
			ServiceType: codec.ServiceMobileOriginatingCall,
			IMSI:        imsi,
		})

		signals := h.TakeSignals(codec.Uplink)
		Expect(signals).To(HaveLen(1))

		return ch, sl, signals[0].Header.ConnectionID
	}

	It("should open the control channel and broadcast system information", func() {
		Expect(h.MAC.Calls).To(ConsistOf(nodetest.MACCall{
			Op: "StartListen", Node: bsID, Channel: ctrlUL,
		}))

		frames := downlink()
		Expect(frames).To(HaveLen(1))
		Expect(frames[0].Slot).To(Equal(0))
		Expect(frames[0].Channel).To(Equal(ctrlDL))

		si := frames[0].Message(codec.Downlink).(*codec.SystemInformationType3)
		Expect(si.CellIdentity).To(Equal(uint16(1)))
		Expect(si.BCCH).To(Equal(uint16(ctrlDL)))
		Expect(si.NeighbourCount).To(Equal(uint8(1)))
		Expect(si.NeighbourCell[0]).To(Equal(uint16(2)))

		h.Advance(h.Ctx.Timers.BCCHRefresh*2 + 0.001)
		Expect(downlink()).To(HaveLen(2))
	})

	Context("random access", func() {
		It("should assign the first free slot", func() {
			ch, sl := seize(0xe3)

			Expect(ch).To(Equal(ctrlDL))
			Expect(sl).To(Equal(1))
			Expect(st.Resources().Slot(0, 1).RRState).
				To(Equal(resource.RRConnectionPending))
		})

		It("should take the slot back when the mobile never shows up", func() {
			seize(0xe3)

			h.Advance(h.Ctx.Timers.T3101 + 0.001)

			Expect(st.Resources().Slot(0, 1).InUse).To(BeFalse())
			Expect(st.Stats().AssignmentTimeouts).To(Equal(uint64(1)))
		})

		It("should open and close further channel pairs", func() {
			for i := 0; i < 7; i++ {
				seize(uint8(i))
			}

			ch, sl := seize(0x10)
			Expect(ch).To(Equal(ctrlDL + 2))
			Expect(sl).To(Equal(0))
			Expect(h.MAC.Calls).To(ContainElement(nodetest.MACCall{
				Op: "StartListen", Node: bsID, Channel: ctrlUL + 2,
			}))

			h.Advance(h.Ctx.Timers.T3101 + 0.001)
			Expect(h.MAC.Calls).To(ContainElement(nodetest.MACCall{
				Op: "StopListen", Node: bsID, Channel: ctrlUL + 2,
			}))
		})

		It("should count assignment failures", func() {
			for i := 0; i < 15; i++ {
				seize(uint8(i))
			}

			h.Radio(ctrlUL, 0, &codec.ChannelRequest{RandomReference: 0x1f})

			Expect(downlink()).To(BeEmpty())
			Expect(st.Stats().AssignmentFailures).To(Equal(uint64(1)))
		})
	})

	Context("dedicated connection", func() {
		It("should open a connection with the first message", func() {
			ch, sl := seize(0x05)
			h.Radio(ch+1, sl, &codec.LocationUpdateRequest{IMSI: imsi})

			signals := h.TakeSignals(codec.Uplink)
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Dst).To(Equal(uint32(mscID)))
			Expect(signals[0].Header.MessageTypeCode).
				To(Equal(transport.SCCPConnectRequest))
			Expect(signals[0].Header.ConnectionID).To(Equal(int32(0)))

			info := signals[0].Message.(*codec.CompleteLayer3Info)
			Expect(info.CellIdentity).To(Equal(uint16(1)))

			l3, err := codec.DecodeDTAP(info.L3, codec.Uplink)
			Expect(err).NotTo(HaveOccurred())
			Expect(l3).To(Equal(&codec.LocationUpdateRequest{IMSI: imsi}))

			slot := st.Resources().Slot(0, 1)
			Expect(slot.RRState).To(Equal(resource.RRDedicated))
			Expect(slot.IMSI).To(Equal(imsi))

			h.Advance(h.Ctx.Timers.T3101 + 0.001)
			Expect(slot.InUse).To(BeTrue())
		})

		It("should relay messages in both directions", func() {
			ch, sl, conn := connect()

			h.Radio(ch+1, sl, &codec.SetupMO{BearerCapability: codec.BearerSpeech})
			signals := h.TakeSignals(codec.Uplink)
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Header.MessageTypeCode).
				To(Equal(transport.SCCPConnectionReference))
			Expect(signals[0].Header.ConnectionID).To(Equal(conn))
			Expect(signals[0].Message).To(Equal(
				&codec.SetupMO{BearerCapability: codec.BearerSpeech}))

			h.Signaling(mscID, transport.SCCPConnectionReference, conn,
				&codec.CallProceeding{})
			frames := downlink()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Channel).To(Equal(ch))
			Expect(frames[0].Slot).To(Equal(sl))
			Expect(frames[0].Message(codec.Downlink)).
				To(Equal(&codec.CallProceeding{}))
		})

		It("should report idle after a channel release", func() {
			_, _, conn := connect()

			h.Signaling(mscID, transport.SCCPConnectionReference, conn,
				&codec.ChannelRelease{})
			Expect(downlink()).To(HaveLen(1))
			Expect(h.IP.Sent).To(BeEmpty())

			h.Advance(h.Ctx.Timers.T3111 + 0.001)

			signals := h.TakeSignals(codec.Uplink)
			Expect(nodetest.Names(signals)).To(Equal([]string{"ClearComplete"}))
			Expect(signals[0].Header.ConnectionID).To(Equal(conn))
			Expect(st.Resources().Slot(0, 1).InUse).To(BeFalse())
		})

		It("should clear on command", func() {
			_, _, conn := connect()

			h.Signaling(mscID, transport.SCCPConnectionReference, conn,
				&codec.ClearCommand{Cause: codec.AIFCauseCallControl})

			frames := downlink()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Message(codec.Downlink)).
				To(BeAssignableToTypeOf(&codec.ChannelRelease{}))
			Expect(nodetest.Names(h.TakeSignals(codec.Uplink))).
				To(Equal([]string{"ClearComplete"}))

			_, ok := st.Resources().SlotByConnection(conn)
			Expect(ok).To(BeFalse())
		})

		It("should page on the paging channel", func() {
			downlink()
			h.Signaling(mscID, transport.SCCPConnectionless,
				transport.NoConnection, &codec.Paging{IMSI: imsi, LAC: 1})

			frames := downlink()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Channel).To(Equal(ctrlDL))
			Expect(frames[0].Message(codec.Downlink)).To(Equal(
				&codec.PagingRequestType1{
					PageMode: codec.PagingModeNormal,
					IMSI:     imsi,
				}))
		})
	})

	Context("traffic", func() {
		It("should bind and carry bearer frames", func() {
			ch, sl, conn := connect()

			h.Traffic(mscID, transport.TrafficHeader{
				MessageTypeCode:     transport.TrafficConnectRequest,
				TrafficConnectionID: 42,
			}, transport.ConnectionPayload(conn))

			sent := h.IP.Take()
			Expect(sent).To(HaveLen(1))
			th, payload, err := transport.UnwrapTraffic(sent[0].Data)
			Expect(err).NotTo(HaveOccurred())
			Expect(th.MessageTypeCode).To(Equal(transport.TrafficConnectConfirm))
			Expect(th.TrafficConnectionID).To(Equal(int32(42)))
			Expect(payload).To(Equal(transport.ConnectionPayload(conn)))

			h.Burst(ch+1, sl, transport.Burst{
				Kind: transport.BurstTraffic,
				Data: []byte{1, 2, 3},
			})
			sent = h.IP.Take()
			Expect(sent).To(HaveLen(1))
			th, payload, err = transport.UnwrapTraffic(sent[0].Data)
			Expect(err).NotTo(HaveOccurred())
			Expect(th.MessageTypeCode).To(Equal(transport.TrafficData))
			Expect(payload).To(Equal([]byte{1, 2, 3}))

			downlink()
			h.Traffic(mscID, transport.TrafficHeader{
				MessageTypeCode:     transport.TrafficData,
				TrafficConnectionID: 42,
			}, []byte{9})
			frames := h.DrainRadio()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Burst.Kind).To(Equal(transport.BurstTraffic))
			Expect(frames[0].Channel).To(Equal(ch))
		})
	})

	Context("handover out", func() {
		report := func(dl float64) {
			slot := st.Resources().Slot(0, 1)
			h.Measure(slot.UplinkChannel, slot.Slot, handover.Report{
				DLLevel:         dl,
				ULLevel:         -60,
				NeighbourLevels: []float64{-60},
			})
		}

		It("should ask for a handover when the downlink fades", func() {
			_, _, conn := connect()

			for i := 0; i < 6; i++ {
				report(-100)
			}
			Expect(h.IP.Sent).To(BeEmpty())

			report(-100)
			signals := h.TakeSignals(codec.Uplink)
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Header.ConnectionID).To(Equal(conn))
			Expect(signals[0].Message).To(Equal(&codec.HandoverRequired{
				Cause:       codec.AIFCauseDownlinkStrength,
				ServingLAC:  1,
				ServingCell: 1,
				TargetLAC:   1,
				TargetCell:  2,
			}))

			report(-100)
			Expect(h.IP.Sent).To(BeEmpty())

			cmd := codec.RIHandoverCommand{CellIdentity: 2, Channel: 22, Slot: 4}
			h.Signaling(mscID, transport.SCCPConnectionReference, conn,
				&codec.HandoverCommand{Command: cmd})
			frames := downlink()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Message(codec.Downlink)).To(Equal(&cmd))

			h.Signaling(mscID, transport.SCCPConnectionReference, conn,
				&codec.ClearCommand{Cause: codec.AIFCauseHandoverSuccessful})
			Expect(downlink()).To(BeEmpty())
			Expect(nodetest.Names(h.TakeSignals(codec.Uplink))).
				To(Equal([]string{"ClearComplete"}))
		})

		It("should report a lost radio link once", func() {
			connect()

			report(-115)
			report(-115)

			Expect(nodetest.Names(h.TakeSignals(codec.Uplink))).
				To(Equal([]string{"ClearRequest"}))
		})
	})

	Context("handover in", func() {
		request := func(target uint16) {
			h.Signaling(mscID, transport.SCCPConnectionless,
				transport.NoConnection, &codec.HandoverRequest{
					ServingLAC:          1,
					ServingCell:         2,
					TargetLAC:           1,
					TargetCell:          target,
					Cause:               codec.AIFCauseDownlinkStrength,
					TrafficConnectionID: 7,
					TempHandoverID:      3,
				})
		}

		It("should reserve a channel and take the mobile over", func() {
			request(1)

			signals := h.TakeSignals(codec.Uplink)
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Header.MessageTypeCode).
				To(Equal(transport.SCCPConnectRequest))
			conn := signals[0].Header.ConnectionID

			ack := signals[0].Message.(*codec.HandoverRequestAck)
			Expect(ack.TempHandoverID).To(Equal(int32(3)))
			Expect(ack.Command.CellIdentity).To(Equal(uint16(1)))

			ch := int(ack.Command.Channel)
			sl := int(ack.Command.Slot)
			slot, ok := st.Resources().SlotByTraffic(7)
			Expect(ok).To(BeTrue())
			Expect(slot.ConnectionID).To(Equal(conn))

			h.Radio(ch+1, sl, &codec.HandoverAccess{HandoverReference: 0x7f})
			Expect(h.IP.Sent).To(BeEmpty())

			h.Radio(ch+1, sl, &codec.HandoverAccess{
				HandoverReference: ack.Command.HandoverReference,
			})
			h.Radio(ch+1, sl, &codec.RIHandoverComplete{})

			signals = h.TakeSignals(codec.Uplink)
			Expect(nodetest.Names(signals)).
				To(Equal([]string{"HandoverDetect", "HandoverComplete"}))
			Expect(signals[1].Header.ConnectionID).To(Equal(conn))
			Expect(slot.RRState).To(Equal(resource.RRDedicated))
			Expect(st.Stats().HandoversIn).To(Equal(uint64(1)))
		})

		It("should refuse a request for another cell", func() {
			request(9)

			signals := h.TakeSignals(codec.Uplink)
			Expect(signals).To(HaveLen(1))
			Expect(signals[0].Message).To(Equal(&codec.HandoverFailure{
				Cause:          codec.AIFCauseInvalidCell,
				TempHandoverID: 3,
			}))
		})
	})
})
