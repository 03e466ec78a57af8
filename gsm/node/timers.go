package node

import (
	"fmt"
	"strings"
	"time"

	"github.com/sarchlab/gsmsim/sim"
)

// Radio timing constants.
const (
	// TDMAFrame is the duration of one eight slot TDMA frame.
	TDMAFrame sim.VTimeInSec = 0.004615

	// SACCHPeriod is the length of one SACCH multiframe, the period at
	// which measurement reports arrive.
	SACCHPeriod sim.VTimeInSec = 0.48
)

// TimerConfig holds the durations of every protocol and application timer.
type TimerConfig struct {
	T301  sim.VTimeInSec
	T303  sim.VTimeInSec
	T305  sim.VTimeInSec
	T308  sim.VTimeInSec
	T310  sim.VTimeInSec
	T313  sim.VTimeInSec
	T3101 sim.VTimeInSec
	T3103 sim.VTimeInSec
	T3111 sim.VTimeInSec
	T3113 sim.VTimeInSec
	T3210 sim.VTimeInSec
	T3211 sim.VTimeInSec
	T3212 sim.VTimeInSec
	T3213 sim.VTimeInSec
	T3230 sim.VTimeInSec
	T3240 sim.VTimeInSec
	UDT1  sim.VTimeInSec

	// ChannelRequest is the base wait before a channel request is repeated.
	// A random number of TDMA frames is added on top.
	ChannelRequest sim.VTimeInSec

	// BCCHRefresh is the period of the System Information broadcast.
	BCCHRefresh sim.VTimeInSec

	// Traffic is the interval between two traffic frames of an active call.
	Traffic sim.VTimeInSec
}

// DefaultTimers returns the GSM default timer values.
func DefaultTimers() TimerConfig {
	return TimerConfig{
		T301:           180,
		T303:           10,
		T305:           10,
		T308:           10,
		T310:           10,
		T313:           10,
		T3101:          0.5,
		T3103:          2,
		T3111:          0.2,
		T3113:          5,
		T3210:          10,
		T3211:          10,
		T3212:          360,
		T3213:          4,
		T3230:          15,
		T3240:          10,
		UDT1:           10,
		ChannelRequest: 0.25,
		BCCHRefresh:    5,
		Traffic:        0.02,
	}
}

// Override replaces the timers named in overrides. Names are matched
// case-insensitively against the field names, e.g. "t3212" or "traffic".
func (c *TimerConfig) Override(overrides map[string]time.Duration) error {
	for name, d := range overrides {
		p := c.field(name)
		if p == nil {
			return fmt.Errorf("unknown timer %q", name)
		}

		if d <= 0 {
			return fmt.Errorf("timer %q must be positive, got %s", name, d)
		}

		*p = sim.VTimeInSec(d.Seconds())
	}

	return nil
}

func (c *TimerConfig) field(name string) *sim.VTimeInSec {
	fields := map[string]*sim.VTimeInSec{
		"t301":           &c.T301,
		"t303":           &c.T303,
		"t305":           &c.T305,
		"t308":           &c.T308,
		"t310":           &c.T310,
		"t313":           &c.T313,
		"t3101":          &c.T3101,
		"t3103":          &c.T3103,
		"t3111":          &c.T3111,
		"t3113":          &c.T3113,
		"t3210":          &c.T3210,
		"t3211":          &c.T3211,
		"t3212":          &c.T3212,
		"t3213":          &c.T3213,
		"t3230":          &c.T3230,
		"t3240":          &c.T3240,
		"udt1":           &c.UDT1,
		"channelrequest": &c.ChannelRequest,
		"bcchrefresh":    &c.BCCHRefresh,
		"traffic":        &c.Traffic,
	}

	return fields[strings.ToLower(name)]
}
