// Package codec builds and parses the fixed layout Layer-3 signaling
// messages exchanged between mobiles, base stations and the switch.
//
// DTAP messages start with a protocol discriminator and a message type,
// A-interface (BSSMAP) messages with the message type only. The radio access
// bursts have no header at all. All fields are big endian.
package codec

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
)

// Message is anything the codec can encode.
type Message interface {
	Name() string
}

// DTAP is a message exchanged between a mobile and the network.
type DTAP interface {
	Message
	Discriminator() ProtocolDiscriminator
	MessageType() uint8
}

// BSSMAP is a message exchanged between a BS and the MSC.
type BSSMAP interface {
	Message
	MessageType() uint8
}

// Direction disambiguates DTAP messages that share a type code.
type Direction int

// Directions of DTAP messages.
const (
	Uplink Direction = iota
	Downlink
)

// Errors returned by the decoders.
var (
	ErrShortMessage       = errors.New("message too short")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Encode serializes a message.
func Encode(m Message) ([]byte, error) {
	if bm, ok := m.(encoding.BinaryMarshaler); ok {
		return bm.MarshalBinary()
	}

	buf := new(bytes.Buffer)

	switch msg := m.(type) {
	case DTAP:
		buf.WriteByte(byte(msg.Discriminator()))
		buf.WriteByte(msg.MessageType())
	case BSSMAP:
		buf.WriteByte(msg.MessageType())
	}

	if binary.Size(m) > 0 {
		if err := binary.Write(buf, binary.BigEndian, m); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", m.Name(), err)
		}
	}

	return buf.Bytes(), nil
}

// MustEncode is like Encode but panics on error. It is meant for messages
// built by the simulator itself, which always have a valid layout.
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}

	return b
}

type dtapKey struct {
	pd  ProtocolDiscriminator
	typ uint8
	dir Direction
}

var dtapTable = map[dtapKey]func() DTAP{}

func registerDTAP(dir Direction, ctor func() DTAP) {
	m := ctor()
	dtapTable[dtapKey{m.Discriminator(), m.MessageType(), dir}] = ctor
}

func registerBoth(ctor func() DTAP) {
	registerDTAP(Uplink, ctor)
	registerDTAP(Downlink, ctor)
}

var bssmapTable = map[uint8]func() BSSMAP{}

func registerBSSMAP(ctor func() BSSMAP) {
	bssmapTable[ctor().MessageType()] = ctor
}

func init() {
	for _, ctor := range []func() DTAP{
		func() DTAP { return new(PagingResponse) },
		func() DTAP { return new(RIHandoverComplete) },
		func() DTAP { return new(LocationUpdateRequest) },
		func() DTAP { return new(CMServiceRequest) },
		func() DTAP { return new(IMSIDetachIndication) },
		func() DTAP { return new(SetupMO) },
		func() DTAP { return new(CallConfirmed) },
		func() DTAP { return new(ConnectMT) },
		func() DTAP { return new(DisconnectByMS) },
	} {
		registerDTAP(Uplink, ctor)
	}

	for _, ctor := range []func() DTAP{
		func() DTAP { return new(ImmediateAssignment) },
		func() DTAP { return new(PagingRequestType1) },
		func() DTAP { return new(ChannelRelease) },
		func() DTAP { return new(SystemInformationType3) },
		func() DTAP { return new(RIHandoverCommand) },
		func() DTAP { return new(LocationUpdateAccept) },
		func() DTAP { return new(LocationUpdateReject) },
		func() DTAP { return new(CMServiceAccept) },
		func() DTAP { return new(CMServiceReject) },
		func() DTAP { return new(SetupMT) },
		func() DTAP { return new(CallProceeding) },
		func() DTAP { return new(ConnectMO) },
		func() DTAP { return new(DisconnectByNetwork) },
	} {
		registerDTAP(Downlink, ctor)
	}

	registerBoth(func() DTAP { return new(Alerting) })
	registerBoth(func() DTAP { return new(ConnectAck) })
	registerBoth(func() DTAP { return new(Release) })
	registerBoth(func() DTAP { return new(ReleaseComplete) })

	for _, ctor := range []func() BSSMAP{
		func() BSSMAP { return new(Paging) },
		func() BSSMAP { return new(HandoverRequired) },
		func() BSSMAP { return new(HandoverRequiredReject) },
		func() BSSMAP { return new(HandoverRequest) },
		func() BSSMAP { return new(HandoverRequestAck) },
		func() BSSMAP { return new(HandoverCommand) },
		func() BSSMAP { return new(HandoverDetect) },
		func() BSSMAP { return new(HandoverComplete) },
		func() BSSMAP { return new(HandoverFailure) },
		func() BSSMAP { return new(ClearCommand) },
		func() BSSMAP { return new(ClearComplete) },
		func() BSSMAP { return new(ClearRequest) },
		func() BSSMAP { return new(CompleteLayer3Info) },
	} {
		registerBSSMAP(ctor)
	}
}

// PeekDiscriminator returns the protocol discriminator of an encoded DTAP
// message.
func PeekDiscriminator(b []byte) (ProtocolDiscriminator, error) {
	if len(b) < 2 {
		return 0, ErrShortMessage
	}

	return ProtocolDiscriminator(b[0]), nil
}

// DecodeDTAP parses a DTAP message travelling in the given direction.
func DecodeDTAP(b []byte, dir Direction) (DTAP, error) {
	if len(b) < 2 {
		return nil, ErrShortMessage
	}

	ctor, ok := dtapTable[dtapKey{ProtocolDiscriminator(b[0]), b[1], dir}]
	if !ok {
		return nil, fmt.Errorf("%w: pd 0x%02x type 0x%02x",
			ErrUnknownMessageType, b[0], b[1])
	}

	m := ctor()
	if err := readBody(b[2:], m); err != nil {
		return nil, err
	}

	return m, nil
}

// DecodeBSSMAP parses an A-interface message.
func DecodeBSSMAP(b []byte) (BSSMAP, error) {
	if len(b) < 1 {
		return nil, ErrShortMessage
	}

	ctor, ok := bssmapTable[b[0]]
	if !ok {
		return nil, fmt.Errorf("%w: bssmap type 0x%02x",
			ErrUnknownMessageType, b[0])
	}

	m := ctor()
	if um, ok := m.(encoding.BinaryUnmarshaler); ok {
		if err := um.UnmarshalBinary(b); err != nil {
			return nil, err
		}

		return m, nil
	}

	if err := readBody(b[1:], m); err != nil {
		return nil, err
	}

	return m, nil
}

// DecodeChannelRequest parses a RACH burst.
func DecodeChannelRequest(b []byte) (*ChannelRequest, error) {
	if len(b) != 1 {
		return nil, ErrShortMessage
	}

	return &ChannelRequest{RandomReference: b[0]}, nil
}

// DecodeHandoverAccess parses the access burst sent on a handover channel.
func DecodeHandoverAccess(b []byte) (*HandoverAccess, error) {
	if len(b) != 1 {
		return nil, ErrShortMessage
	}

	return &HandoverAccess{HandoverReference: b[0]}, nil
}

func readBody(b []byte, m Message) error {
	size := binary.Size(m)
	if size <= 0 {
		return nil
	}

	if len(b) < size {
		return fmt.Errorf("%s: %w", m.Name(), ErrShortMessage)
	}

	return binary.Read(bytes.NewReader(b), binary.BigEndian, m)
}
