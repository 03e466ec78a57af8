package msc

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
)

// HandleTimer reacts to the expiry of a call timer.
func (s *Switch) HandleTimer(ctx *node.Context, t *node.Timer) {
	if c, ok := s.paging[t]; ok {
		s.onPagingTimeout(ctx, c)
		return
	}

	l, ok := s.legs[t]
	if !ok {
		ctx.Log.Warn("unknown timer", zap.String("timer", t.Name))
		return
	}

	c := l.Call()
	if !c.InUse {
		return
	}

	ctx.Log.Debug("timer expired",
		zap.String("timer", t.Name),
		zap.Int("call", c.Index),
		zap.Stringer("leg", l.Role))

	switch t {
	case l.udt1:
		s.clearCall(ctx, c, codec.CauseRecoveryOnTimerExpiry)
	case l.t301:
		s.clearCall(ctx, c, codec.CauseAlertingNoAnswer)
	case l.t303, l.t310, l.t313:
		s.clearCall(ctx, c, codec.CauseRecoveryOnTimerExpiry)
	case l.t305:
		l.releaseAttempts = 1
		s.sendRelease(ctx, l, codec.CauseRecoveryOnTimerExpiry)
	case l.t308:
		s.onReleaseTimeout(ctx, l)
	case l.t3103:
		ctx.Log.Info("handover timed out", zap.Stringer("imsi", l.IMSI))
		s.dropCall(ctx, c, codec.AIFCauseRadioInterfaceFailure)
	}
}

func (s *Switch) onPagingTimeout(ctx *node.Context, c *CallInfo) {
	if !c.InUse {
		return
	}

	if c.PagingAttempts < s.cfg.PagingAttempts {
		s.page(ctx, c)
		return
	}

	ctx.Log.Info("callee not responding", zap.Stringer("imsi", c.Term.IMSI))
	s.clearCall(ctx, c, codec.CauseUserNotResponding)
}

// onReleaseTimeout repeats the Release once, then clears the mobile's
// connection without waiting for it.
func (s *Switch) onReleaseTimeout(ctx *node.Context, l *Leg) {
	if l.releaseAttempts < 2 {
		l.releaseAttempts++
		s.sendRelease(ctx, l, codec.CauseRecoveryOnTimerExpiry)

		return
	}

	bs, conn := l.ActiveBS()
	s.clearCommand(ctx, bs, conn, codec.AIFCauseCallControl)

	l.CC = CCNull
	l.RR = resource.RRIdle
	s.releaseTraffic(l)
	s.abandonHandover(ctx, l)
	s.endHandover(l)
	s.freeCall(ctx, l.Call())
}
