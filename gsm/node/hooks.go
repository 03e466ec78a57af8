package node

import (
	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/sim"
)

// Interface names the link a signaling message travels on.
type Interface int

// Interfaces.
const (
	InterfaceRadio Interface = iota
	InterfaceA
)

func (i Interface) String() string {
	if i == InterfaceA {
		return "A"
	}

	return "Um"
}

// HookPosMsgSend triggers when a node sends a signaling message.
var HookPosMsgSend = &sim.HookPos{Name: "MsgSend"}

// HookPosMsgRecv triggers when a node accepts a decoded signaling message.
var HookPosMsgRecv = &sim.HookPos{Name: "MsgRecv"}

// MsgInfo is the hook item of HookPosMsgSend and HookPosMsgRecv.
type MsgInfo struct {
	Time      sim.VTimeInSec
	Node      string
	Interface Interface
	Message   codec.Message
}
