package bs

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

// HandleMeasurement feeds one SACCH report into the history of the slot
// and runs the handover decision on the new averages.
func (s *Station) HandleMeasurement(ctx *node.Context, evt *node.MeasurementEvent) {
	slot := s.res.SlotByUplink(evt.Channel, evt.Slot)
	if slot == nil || !slot.InUse || slot.RRState != resource.RRDedicated {
		return
	}

	slot.History.Add(evt.Report)
	slot.History.Average()

	avg, ok := slot.History.Latest()
	if !ok || slot.ConnectionID == resource.NoConnection {
		return
	}

	st := s.slots[slot]
	if avg.DLLevel < s.cfg.LinkLossLevel {
		if !st.linkLost {
			st.linkLost = true
			s.count(func(st *Stats) { st.RadioLinkFailures++ })
			ctx.Log.Info("radio link lost",
				zap.Stringer("imsi", slot.IMSI),
				zap.Float64("dl", avg.DLLevel))
			ctx.SendBSSMAP(s.cfg.MSC, transport.SCCPConnectionReference,
				slot.ConnectionID,
				&codec.ClearRequest{Cause: codec.AIFCauseRadioInterfaceFailure})
		}

		return
	}

	if slot.HandoverAttempted || slot.HandoverInProgress {
		return
	}

	cause, needed := handover.IsHandoverNeeded(slot.History, s.cfg.Thresholds)
	if !needed {
		return
	}

	target, ok := handover.SelectTarget(
		slot.History, s.cfg.Neighbours, s.cfg.HandoverMargin)
	if !ok {
		s.count(func(st *Stats) { st.HandoverTargetsMissing++ })
		return
	}

	slot.HandoverAttempted = true
	s.count(func(st *Stats) { st.HandoversRequired++ })

	ctx.Log.Info("handover required",
		zap.Stringer("imsi", slot.IMSI),
		zap.Stringer("cause", cause),
		zap.Uint16("target", target.CellIdentity))
	ctx.SendBSSMAP(s.cfg.MSC, transport.SCCPConnectionReference,
		slot.ConnectionID, &codec.HandoverRequired{
			Cause:       uint8(cause),
			ServingLAC:  s.cfg.LAC,
			ServingCell: s.cfg.CellIdentity,
			TargetLAC:   target.LAC,
			TargetCell:  target.CellIdentity,
		})
}
