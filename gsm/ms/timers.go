package ms

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
)

// HandleTimer reacts to the expiry of one of the mobile's timers.
func (s *Station) HandleTimer(ctx *node.Context, t *node.Timer) {
	switch t {
	case s.channelRequest:
		s.onChannelRequestTimeout(ctx)
	case s.t3210:
		s.onLocationUpdateTimeout(ctx)
	case s.t3211, s.t3213:
		if s.rr == resource.RRIdle && s.mm == MMIdle {
			s.startLocationUpdate(ctx, s.luType)
		}
	case s.t3212:
		s.onPeriodicUpdate(ctx)
	case s.t3230:
		if s.mm == MMWaitForOutgoingMMConnection {
			s.count(func(st *Stats) { st.CallsFailed++ })
			s.abortCall()
			s.localRelease(ctx)
		}
	case s.t3240:
		s.localRelease(ctx)
	case s.t303:
		s.onSetupTimeout(ctx)
	case s.t310:
		if s.cc == CCMOCallProceeding {
			s.disconnect(ctx, codec.CauseRecoveryOnTimerExpiry)
		}
	case s.t313:
		if s.cc == CCConnectRequest {
			s.disconnect(ctx, codec.CauseRecoveryOnTimerExpiry)
		}
	case s.t305:
		if s.cc == CCDisconnectRequest {
			s.releaseAttempts = 1
			s.sendRelease(ctx, codec.CauseRecoveryOnTimerExpiry)
		}
	case s.t308:
		s.onReleaseTimeout(ctx)
	case s.answer:
		if s.cc == CCCallReceived {
			s.sendUplink(ctx, &codec.ConnectMT{})
			s.cc = CCConnectRequest
			ctx.StartTimer(s.t313, ctx.Timers.T313)
		}
	case s.hangUp:
		if s.cc == CCActive {
			ctx.Log.Info("hanging up")
			s.disconnect(ctx, codec.CauseNormalClearing)
		}
	case s.trafficTx:
		s.sendTrafficFrame(ctx)
	default:
		ctx.Log.Warn("unknown timer", zap.String("timer", t.Name))
	}
}

func (s *Station) onChannelRequestTimeout(ctx *node.Context) {
	if s.rr != resource.RRConnectionPending {
		return
	}

	if s.requestAttempts <= s.cfg.MaxRetrans {
		s.sendChannelRequest(ctx)
		return
	}

	s.count(func(st *Stats) { st.ChannelRequestFailures++ })
	ctx.Log.Info("random access failed",
		zap.Int("attempts", s.requestAttempts))

	s.rr = resource.RRIdle

	switch s.pendingCause {
	case codec.EstablishLocationUpdating:
		if s.detaching {
			s.finishPowerOff(ctx)
			return
		}

		s.count(func(st *Stats) { st.LocationUpdateFailures++ })
		s.backToIdle(ctx)
		s.idle = IdleAttemptingToUpdate

		if s.t3213Retries < 2 {
			s.t3213Retries++
			ctx.StartTimer(s.t3213, ctx.Timers.T3213)
		}
	case codec.EstablishNormalCall:
		s.count(func(st *Stats) { st.CallsFailed++ })
		s.abortCall()
		s.backToIdle(ctx)
	default:
		s.backToIdle(ctx)
	}
}

func (s *Station) onLocationUpdateTimeout(ctx *node.Context) {
	if s.mm != MMLocationUpdatingInitiated {
		return
	}

	s.count(func(st *Stats) { st.LocationUpdateFailures++ })
	s.luAttempts++

	if s.rr == resource.RRDedicated {
		ctx.MAC.ChannelRelease(ctx.ID)
	}

	s.t3240.Cancel()
	s.rr = resource.RRIdle
	s.mm = MMIdle
	s.idle = IdleAttemptingToUpdate

	if s.luAttempts < 4 {
		ctx.StartTimer(s.t3211, ctx.Timers.T3211)
		return
	}

	s.update = NotUpdated
	ctx.StartTimer(s.t3212, ctx.Timers.T3212)
}

func (s *Station) onPeriodicUpdate(ctx *node.Context) {
	if s.update != Updated {
		return
	}

	if s.rr == resource.RRIdle && s.mm == MMIdle {
		s.startLocationUpdate(ctx, codec.LocationUpdatePeriodic)
		return
	}

	ctx.StartTimer(s.t3212, ctx.Timers.T3212)
}

func (s *Station) onSetupTimeout(ctx *node.Context) {
	if s.cc != CCMMConnectionPending && s.cc != CCCallInitiated {
		return
	}

	s.count(func(st *Stats) { st.CallsFailed++ })
	ctx.Log.Info("call setup timed out", zap.Stringer("cc", s.cc))

	s.abortCall()

	if s.rr == resource.RRConnectionPending {
		s.channelRequest.Cancel()
		s.rr = resource.RRIdle
		s.backToIdle(ctx)

		return
	}

	s.localRelease(ctx)
}

func (s *Station) onReleaseTimeout(ctx *node.Context) {
	if s.cc != CCReleaseRequest {
		return
	}

	if s.releaseAttempts < 2 {
		s.releaseAttempts++
		s.sendRelease(ctx, codec.CauseRecoveryOnTimerExpiry)

		return
	}

	s.count(func(st *Stats) { st.ForcedReleases++ })
	ctx.Log.Info("release not confirmed, clearing locally")

	s.abortCall()
	s.localRelease(ctx)
}

func (s *Station) sendTrafficFrame(ctx *node.Context) {
	if s.cc != CCActive {
		return
	}

	frame := make([]byte, max(s.cfg.TrafficFrameSize, 4))
	binary.BigEndian.PutUint32(frame, s.trafficSeq)
	s.trafficSeq++

	if ctx.SendTrafficFrame(s.slot, s.channel+1, frame) {
		s.count(func(st *Stats) { st.TrafficFramesSent++ })
	}

	ctx.StartTimer(s.trafficTx, ctx.Timers.Traffic)
}
