// Package ms implements the Layer-3 protocol of a mobile station: radio
// resource management, mobility management and call control.
package ms

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/sim"
)

// Config describes one mobile.
type Config struct {
	IMSI   codec.Identity
	MSISDN codec.Identity

	// AutoAnswer makes the mobile accept incoming calls after AnswerDelay.
	// Otherwise it keeps ringing until the network gives up.
	AutoAnswer  bool
	AnswerDelay sim.VTimeInSec

	// HangUpAfter clears an answered call once it was active that long.
	// Zero leaves the clearing to the caller.
	HangUpAfter sim.VTimeInSec

	// MaxRetrans is the number of channel request repetitions.
	MaxRetrans int

	// TxInteger spreads channel request repetitions over that many TDMA
	// frames.
	TxInteger int

	// TrafficFrameSize is the payload size of one speech frame.
	TrafficFrameSize int
}

// DefaultConfig returns the configuration of an auto answering mobile.
func DefaultConfig(imsi, msisdn codec.Identity) Config {
	return Config{
		IMSI:             imsi,
		MSISDN:           msisdn,
		AutoAnswer:       true,
		AnswerDelay:      2,
		MaxRetrans:       4,
		TxInteger:        8,
		TrafficFrameSize: 33,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.IMSI.IsZero() {
		return fmt.Errorf("mobile has no IMSI")
	}

	if c.MaxRetrans < 0 {
		return fmt.Errorf("max retransmissions %d must not be negative",
			c.MaxRetrans)
	}

	if c.TxInteger <= 0 {
		return fmt.Errorf("tx integer %d must be positive", c.TxInteger)
	}

	if c.AnswerDelay < 0 {
		return fmt.Errorf("answer delay must not be negative")
	}

	if c.HangUpAfter < 0 {
		return fmt.Errorf("hang up time must not be negative")
	}

	return nil
}

// Stats counts what happened to the mobile.
type Stats struct {
	ChannelRequestsSent     uint64
	ChannelRequestFailures  uint64
	ImmediateAssignments    uint64
	PagingsReceived         uint64
	LocationUpdatesStarted  uint64
	LocationUpdatesAccepted uint64
	LocationUpdatesRejected uint64
	LocationUpdateFailures  uint64
	CallsOriginated         uint64
	CallsBlocked            uint64
	CallsReceived           uint64
	CallsConnected          uint64
	CallsCompleted          uint64
	CallsFailed             uint64
	CallsRejected           uint64
	CallsAborted            uint64
	ForcedReleases          uint64
	Handovers               uint64
	Detaches                uint64
	TrafficFramesSent       uint64
	TrafficFramesReceived   uint64
	MessagesDropped         uint64
}

type cellInfo struct {
	camped   bool
	identity uint16
	lac      uint16
	bcch     int
}

// Station is the mobile station role.
type Station struct {
	node.RoleBase

	cfg Config

	statsLock sync.Mutex
	stats     Stats

	rr         resource.RRState
	mm         MMState
	idle       IdleSubstate
	cc         CCState
	update     UpdateStatus
	poweredOff bool

	cell          cellInfo
	registeredLAC uint16

	channel int
	slot    int

	pendingRef      uint8
	pendingCause    codec.EstablishmentCause
	requestAttempts int

	luType       uint8
	luAttempts   int
	t3213Retries int
	detaching    bool

	callee          codec.Identity
	callDuration    sim.VTimeInSec
	releaseAttempts int
	trafficSeq      uint32

	t303, t305, t308, t310, t313              *node.Timer
	t3210, t3211, t3212, t3213, t3230, t3240  *node.Timer
	channelRequest, answer, hangUp, trafficTx *node.Timer
}

// New creates a switched off mobile.
func New(cfg Config) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Station{
		cfg:            cfg,
		rr:             resource.RRNull,
		mm:             MMNull,
		idle:           IdleNoCellAvailable,
		t303:           node.NewTimer("T303", 0),
		t305:           node.NewTimer("T305", 0),
		t308:           node.NewTimer("T308", 0),
		t310:           node.NewTimer("T310", 0),
		t313:           node.NewTimer("T313", 0),
		t3210:          node.NewTimer("T3210", 0),
		t3211:          node.NewTimer("T3211", 0),
		t3212:          node.NewTimer("T3212", 0),
		t3213:          node.NewTimer("T3213", 0),
		t3230:          node.NewTimer("T3230", 0),
		t3240:          node.NewTimer("T3240", 0),
		channelRequest: node.NewTimer("ChannelRequest", 0),
		answer:         node.NewTimer("Answer", 0),
		hangUp:         node.NewTimer("HangUp", 0),
		trafficTx:      node.NewTimer("Traffic", 0),
	}, nil
}

// Kind implements node.Role.
func (s *Station) Kind() node.Kind {
	return node.KindMS
}

// IMSI returns the subscriber identity of the mobile.
func (s *Station) IMSI() codec.Identity {
	return s.cfg.IMSI
}

// MSISDN returns the directory number of the mobile.
func (s *Station) MSISDN() codec.Identity {
	return s.cfg.MSISDN
}

// RR returns the radio resource state.
func (s *Station) RR() resource.RRState { return s.rr }

// MM returns the mobility management state.
func (s *Station) MM() MMState { return s.mm }

// Idle returns the idle sub-state, meaningful while MM is MMIdle.
func (s *Station) Idle() IdleSubstate { return s.idle }

// CC returns the call control state.
func (s *Station) CC() CCState { return s.cc }

// UpdateStatus returns the location update status.
func (s *Station) UpdateStatus() UpdateStatus { return s.update }

// PoweredOff tells if the mobile has been switched off.
func (s *Station) PoweredOff() bool { return s.poweredOff }

// Cell returns the identity and location area of the serving cell.
func (s *Station) Cell() (identity, lac uint16, camped bool) {
	return s.cell.identity, s.cell.lac, s.cell.camped
}

// Dedicated returns the downlink channel and slot of the dedicated
// connection.
func (s *Station) Dedicated() (channel, slot int, ok bool) {
	if s.rr != resource.RRDedicated {
		return 0, 0, false
	}

	return s.channel, s.slot, true
}

// Stats returns a snapshot of the counters.
func (s *Station) Stats() Stats {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()

	return s.stats
}

func (s *Station) count(f func(st *Stats)) {
	s.statsLock.Lock()
	f(&s.stats)
	s.statsLock.Unlock()
}

// Start powers the mobile on. It searches for a cell until system
// information arrives.
func (s *Station) Start(ctx *node.Context) {
	s.poweredOff = false
	s.detaching = false
	s.rr = resource.RRIdle
	s.mm = MMIdle
	s.idle = IdlePLMNSearch
	s.cc = CCNull
	s.luAttempts = 0
	s.t3213Retries = 0

	ctx.MAC.ChannelRelease(ctx.ID)
	ctx.Log.Info("powered on", zap.Stringer("imsi", s.cfg.IMSI))
}

// HandleCommand executes a user action.
func (s *Station) HandleCommand(ctx *node.Context, cmd node.Command) {
	switch c := cmd.(type) {
	case node.Originate:
		s.originate(ctx, c)
	case node.PowerOff:
		s.powerOff(ctx)
	default:
		s.RoleBase.HandleCommand(ctx, cmd)
	}
}

func (s *Station) originate(ctx *node.Context, c node.Originate) {
	if s.rr != resource.RRIdle || s.mm != MMIdle ||
		s.idle != IdleNormalService || s.cc != CCNull {
		s.count(func(st *Stats) { st.CallsBlocked++ })
		ctx.Log.Info("call not possible",
			zap.Stringer("callee", c.Callee),
			zap.Stringer("rr", s.rr),
			zap.Stringer("mm", s.mm),
			zap.Stringer("idle", s.idle),
			zap.Stringer("cc", s.cc))

		return
	}

	s.callee = c.Callee
	s.callDuration = c.Duration
	s.cc = CCMMConnectionPending
	s.mm = MMWaitForRRConnectionMMConnection
	ctx.StartTimer(s.t303, ctx.Timers.T303)
	s.count(func(st *Stats) { st.CallsOriginated++ })

	ctx.Log.Info("calling", zap.Stringer("callee", c.Callee))
	s.requestChannel(ctx, codec.EstablishNormalCall)
}

func (s *Station) powerOff(ctx *node.Context) {
	if s.poweredOff || s.rr == resource.RRNull {
		return
	}

	if s.rr == resource.RRIdle && s.mm == MMIdle && s.update == Updated {
		s.detaching = true
		s.mm = MMIMSIDetachInitiated
		s.requestChannel(ctx, codec.EstablishLocationUpdating)

		return
	}

	s.finishPowerOff(ctx)
}

func (s *Station) finishPowerOff(ctx *node.Context) {
	for _, t := range s.timers() {
		t.Cancel()
	}

	if s.rr == resource.RRDedicated {
		ctx.MAC.ChannelRelease(ctx.ID)
	}

	if s.detaching {
		s.count(func(st *Stats) { st.Detaches++ })
	}

	s.rr = resource.RRNull
	s.mm = MMNull
	s.cc = CCNull
	s.detaching = false
	s.poweredOff = true

	ctx.Log.Info("powered off")
}

func (s *Station) timers() []*node.Timer {
	return []*node.Timer{
		s.t303, s.t305, s.t308, s.t310, s.t313,
		s.t3210, s.t3211, s.t3212, s.t3213, s.t3230, s.t3240,
		s.channelRequest, s.answer, s.hangUp, s.trafficTx,
	}
}

func (s *Station) requestChannel(
	ctx *node.Context,
	cause codec.EstablishmentCause,
) {
	s.rr = resource.RRConnectionPending
	s.pendingCause = cause
	s.requestAttempts = 0

	s.sendChannelRequest(ctx)
}

func (s *Station) sendChannelRequest(ctx *node.Context) {
	req := codec.NewChannelRequest(s.pendingCause, uint8(ctx.Rand.Intn(32)))
	s.pendingRef = req.RandomReference
	s.requestAttempts++

	ctx.SendRadio(0, s.cell.bcch+1, codec.ChannelRACH, req)
	s.count(func(st *Stats) { st.ChannelRequestsSent++ })

	// The repetition goes out on a TDMA frame boundary.
	frames := s.cfg.TxInteger + ctx.Rand.Intn(s.cfg.TxInteger)
	now := ctx.Now()
	at := tdmaClock.NCyclesLater(frames, now+ctx.Timers.ChannelRequest)
	ctx.StartTimer(s.channelRequest, at-now)
}

var tdmaClock = sim.FreqFromPeriod(node.TDMAFrame)

func (s *Station) startLocationUpdate(ctx *node.Context, updateType uint8) {
	s.luType = updateType
	s.mm = MMWaitForRRConnectionLocationUpd
	s.count(func(st *Stats) { st.LocationUpdatesStarted++ })

	ctx.Log.Debug("location update",
		zap.Uint8("type", updateType),
		zap.Uint16("lac", s.cell.lac))
	s.requestChannel(ctx, codec.EstablishLocationUpdating)
}

func (s *Station) sendUplink(ctx *node.Context, m codec.DTAP) {
	ct := codec.ChannelSDCCH
	if s.cc == CCActive {
		ct = codec.ChannelFACCH
	}

	ctx.SendRadio(s.slot, s.channel+1, ct, m)
}

// backToIdle enters MM idle with the sub-state the update status calls
// for.
func (s *Station) backToIdle(ctx *node.Context) {
	s.mm = MMIdle

	switch s.update {
	case Updated:
		s.idle = IdleNormalService
		if !s.t3212.Active() {
			ctx.StartTimer(s.t3212, ctx.Timers.T3212)
		}
	case RoamingNotAllowed:
		s.idle = IdleLimitedService
	default:
		s.idle = IdleAttemptingToUpdate
	}
}

// localRelease drops the RR connection without talking to the network.
func (s *Station) localRelease(ctx *node.Context) {
	s.t3240.Cancel()
	s.t3210.Cancel()
	s.t3230.Cancel()
	s.channelRequest.Cancel()

	if s.cc != CCNull {
		s.abortCall()
		s.count(func(st *Stats) { st.CallsAborted++ })
	}

	if s.rr == resource.RRDedicated {
		ctx.MAC.ChannelRelease(ctx.ID)
	}

	s.rr = resource.RRIdle

	if s.detaching {
		s.finishPowerOff(ctx)
		return
	}

	s.backToIdle(ctx)
}

func (s *Station) abortCall() {
	s.cancelCallTimers()
	s.cc = CCNull
}

func (s *Station) cancelCallTimers() {
	for _, t := range []*node.Timer{
		s.t303, s.t305, s.t308, s.t310, s.t313,
		s.answer, s.hangUp, s.trafficTx,
	} {
		t.Cancel()
	}
}

func (s *Station) startActive(ctx *node.Context) {
	s.cc = CCActive
	s.count(func(st *Stats) { st.CallsConnected++ })

	if s.callDuration > 0 {
		ctx.StartTimer(s.hangUp, s.callDuration)
	}

	ctx.StartTimer(s.trafficTx, ctx.Timers.Traffic)
	ctx.Log.Info("call active")
}

func (s *Station) disconnect(ctx *node.Context, cause uint8) {
	s.cancelCallTimers()
	s.sendUplink(ctx, &codec.DisconnectByMS{
		Cause:    cause,
		Location: codec.LocationUser,
	})
	s.cc = CCDisconnectRequest
	ctx.StartTimer(s.t305, ctx.Timers.T305)
}

func (s *Station) sendRelease(ctx *node.Context, cause uint8) {
	s.sendUplink(ctx, &codec.Release{Cause: cause, Location: codec.LocationUser})
	s.cc = CCReleaseRequest
	ctx.StartTimer(s.t308, ctx.Timers.T308)
}

// callCleared returns call control to NULL once the release handshake is
// over. The RR connection stays until the network releases the channel.
func (s *Station) callCleared(ctx *node.Context) {
	s.cancelCallTimers()
	s.cc = CCNull
	s.mm = MMWaitForNetworkCommand
	ctx.StartTimer(s.t3240, ctx.Timers.T3240)
	s.count(func(st *Stats) { st.CallsCompleted++ })

	ctx.Log.Info("call cleared")
}
