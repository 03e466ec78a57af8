// Package transport wraps Layer-3 messages for the links between the
// simulated nodes: the A-interface between base stations and the switch,
// the bearer traffic path, and the per slot radio queues drained by the
// medium access layer.
package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// SCCPMessageType is the message type code of the A-interface envelope.
type SCCPMessageType uint8

// A-interface envelope types.
const (
	SCCPConnectRequest      SCCPMessageType = 1
	SCCPConnectConfirm      SCCPMessageType = 2
	SCCPConnectionReference SCCPMessageType = 3
	SCCPConnectionless      SCCPMessageType = 4
)

func (t SCCPMessageType) String() string {
	switch t {
	case SCCPConnectRequest:
		return "CR"
	case SCCPConnectConfirm:
		return "CC"
	case SCCPConnectionReference:
		return "DT"
	case SCCPConnectionless:
		return "UDT"
	default:
		return fmt.Sprintf("SCCP(%d)", uint8(t))
	}
}

// TrafficMessageType is the message type code of the traffic envelope.
type TrafficMessageType uint8

// Traffic envelope types.
const (
	TrafficConnectRequest TrafficMessageType = 10
	TrafficConnectConfirm TrafficMessageType = 11
	TrafficData           TrafficMessageType = 12
)

// RoutingLabel carries the signaling point codes of the two ends.
type RoutingLabel struct {
	SourcePointCode [3]byte
	DestPointCode   [3]byte
}

// PointCode derives a point code from a node id.
func PointCode(nodeID uint32) [3]byte {
	return [3]byte{byte(nodeID >> 16), byte(nodeID >> 8), byte(nodeID)}
}

// NoConnection marks an envelope that belongs to no connection.
const NoConnection int32 = -1

// AInterfaceHeader prefixes every message between a BS and the MSC. The
// fields are encoded big endian in declaration order.
type AInterfaceHeader struct {
	ConnectionID    int32
	SourceNodeID    uint32
	RoutingLabel    RoutingLabel
	MessageTypeCode SCCPMessageType
}

// AInterfaceHeaderSize is the encoded size of an AInterfaceHeader.
var AInterfaceHeaderSize = binary.Size(AInterfaceHeader{})

// TrafficHeader prefixes every bearer frame between a BS and the MSC.
type TrafficHeader struct {
	TrafficConnectionID int32
	MessageTypeCode     TrafficMessageType
	SequenceNumber      int32
}

// TrafficHeaderSize is the encoded size of a TrafficHeader.
var TrafficHeaderSize = binary.Size(TrafficHeader{})

// ErrShortEnvelope is returned when the buffer cannot hold the header.
var ErrShortEnvelope = errors.New("envelope too short")

// WrapAInterface prefixes payload with the header.
func WrapAInterface(h AInterfaceHeader, payload []byte) []byte {
	return wrap(h, payload)
}

// UnwrapAInterface splits an A-interface envelope.
func UnwrapAInterface(b []byte) (AInterfaceHeader, []byte, error) {
	var h AInterfaceHeader

	payload, err := unwrap(b, &h, AInterfaceHeaderSize)

	return h, payload, err
}

// WrapTraffic prefixes payload with the header.
func WrapTraffic(h TrafficHeader, payload []byte) []byte {
	return wrap(h, payload)
}

// UnwrapTraffic splits a traffic envelope.
func UnwrapTraffic(b []byte) (TrafficHeader, []byte, error) {
	var h TrafficHeader

	payload, err := unwrap(b, &h, TrafficHeaderSize)

	return h, payload, err
}

func wrap(h any, payload []byte) []byte {
	buf := new(bytes.Buffer)

	// Writing a fixed size header into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.BigEndian, h)
	buf.Write(payload)

	return buf.Bytes()
}

func unwrap(b []byte, h any, size int) ([]byte, error) {
	if len(b) < size {
		return nil, ErrShortEnvelope
	}

	err := binary.Read(bytes.NewReader(b[:size]), binary.BigEndian, h)
	if err != nil {
		return nil, err
	}

	return b[size:], nil
}

// ConnectionPayload encodes the connection id a traffic connect request or
// confirm refers to.
func ConnectionPayload(connID int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(connID))
}

// ParseConnectionPayload is the reverse of ConnectionPayload.
func ParseConnectionPayload(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, ErrShortEnvelope
	}

	return int32(binary.BigEndian.Uint32(b)), nil
}

// Discrimination tells whether an A-interface payload is a BSS management
// message or a relayed DTAP message.
type Discrimination uint8

// BSSAP discrimination values.
const (
	DiscriminationBSSMAP Discrimination = 0
	DiscriminationDTAP   Discrimination = 1
)

// WrapBSSAP prefixes an encoded Layer-3 message with its discrimination.
func WrapBSSAP(d Discrimination, l3 []byte) []byte {
	out := make([]byte, 0, len(l3)+1)
	out = append(out, byte(d))

	return append(out, l3...)
}

// SplitBSSAP is the reverse of WrapBSSAP.
func SplitBSSAP(payload []byte) (Discrimination, []byte, error) {
	if len(payload) < 2 {
		return 0, nil, ErrShortEnvelope
	}

	d := Discrimination(payload[0])
	if d != DiscriminationBSSMAP && d != DiscriminationDTAP {
		return 0, nil, fmt.Errorf("unknown discrimination %d", payload[0])
	}

	return d, payload[1:], nil
}
