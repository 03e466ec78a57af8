package codec

import (
	"encoding/binary"
	"fmt"
)

// Paging asks a BS to page a mobile.
type Paging struct {
	IMSI         Identity
	LAC          uint16
	CellIdentity uint16
}

// Name implements Message.
func (Paging) Name() string { return "Paging" }

// MessageType returns the message type code.
func (Paging) MessageType() uint8 { return TypePaging }

// HandoverRequired is raised by the serving BS when a better or healthier cell is needed.
type HandoverRequired struct {
	Cause       uint8
	ServingLAC  uint16
	ServingCell uint16
	TargetLAC   uint16
	TargetCell  uint16
}

// Name implements Message.
func (HandoverRequired) Name() string { return "HandoverRequired" }

// MessageType returns the message type code.
func (HandoverRequired) MessageType() uint8 { return TypeHandoverRequired }

// HandoverRequiredReject tells the serving BS that the handover will not happen.
type HandoverRequiredReject struct {
	Cause uint8
}

// Name implements Message.
func (HandoverRequiredReject) Name() string { return "HandoverRequiredReject" }

// MessageType returns the message type code.
func (HandoverRequiredReject) MessageType() uint8 { return TypeHandoverRequiredReject }

// HandoverRequest asks the target BS to reserve resources for an incoming mobile.
type HandoverRequest struct {
	ServingLAC          uint16
	ServingCell         uint16
	TargetLAC           uint16
	TargetCell          uint16
	Cause               uint8
	TrafficConnectionID int32
	TempHandoverID      int32
}

// Name implements Message.
func (HandoverRequest) Name() string { return "HandoverRequest" }

// MessageType returns the message type code.
func (HandoverRequest) MessageType() uint8 { return TypeHandoverRequest }

// HandoverRequestAck carries the radio command the target BS prepared.
type HandoverRequestAck struct {
	TempHandoverID int32
	Command        RIHandoverCommand
}

// Name implements Message.
func (HandoverRequestAck) Name() string { return "HandoverRequestAck" }

// MessageType returns the message type code.
func (HandoverRequestAck) MessageType() uint8 { return TypeHandoverRequestAck }

// HandoverCommand is relayed by the MSC to the serving BS.
type HandoverCommand struct {
	Command RIHandoverCommand
}

// Name implements Message.
func (HandoverCommand) Name() string { return "HandoverCommand" }

// MessageType returns the message type code.
func (HandoverCommand) MessageType() uint8 { return TypeHandoverCommand }

// HandoverDetect reports that the mobile reached the target channel.
type HandoverDetect struct{}

// Name implements Message.
func (HandoverDetect) Name() string { return "HandoverDetect" }

// MessageType returns the message type code.
func (HandoverDetect) MessageType() uint8 { return TypeHandoverDetect }

// HandoverComplete reports that the mobile finished the handover.
type HandoverComplete struct {
	Cause uint8
}

// Name implements Message.
func (HandoverComplete) Name() string { return "HandoverComplete" }

// MessageType returns the message type code.
func (HandoverComplete) MessageType() uint8 { return TypeHandoverComplete }

// HandoverFailure reports that the target BS could not serve the handover.
type HandoverFailure struct {
	Cause          uint8
	TempHandoverID int32
}

// Name implements Message.
func (HandoverFailure) Name() string { return "HandoverFailure" }

// MessageType returns the message type code.
func (HandoverFailure) MessageType() uint8 { return TypeHandoverFailure }

// ClearCommand tells a BS to release a connection.
type ClearCommand struct {
	Cause uint8
}

// Name implements Message.
func (ClearCommand) Name() string { return "ClearCommand" }

// MessageType returns the message type code.
func (ClearCommand) MessageType() uint8 { return TypeClearCommand }

// ClearComplete confirms a released connection.
type ClearComplete struct{}

// Name implements Message.
func (ClearComplete) Name() string { return "ClearComplete" }

// MessageType returns the message type code.
func (ClearComplete) MessageType() uint8 { return TypeClearComplete }

// ClearRequest asks the MSC to release a connection the BS lost.
type ClearRequest struct {
	Cause uint8
}

// Name implements Message.
func (ClearRequest) Name() string { return "ClearRequest" }

// MessageType returns the message type code.
func (ClearRequest) MessageType() uint8 { return TypeClearRequest }

// CompleteLayer3Info carries the first DTAP message of a new radio
// connection from the BS to the MSC together with the serving cell.
type CompleteLayer3Info struct {
	CellIdentity uint16
	LAC          uint16
	L3           []byte
}

// Name implements Message.
func (CompleteLayer3Info) Name() string { return "CompleteLayer3Info" }

// MessageType returns the message type code.
func (CompleteLayer3Info) MessageType() uint8 { return TypeCompleteLayer3Info }

// MarshalBinary encodes the message including its type code.
func (m CompleteLayer3Info) MarshalBinary() ([]byte, error) {
	if len(m.L3) > 0xff {
		return nil, fmt.Errorf("layer 3 payload of %d bytes is too long",
			len(m.L3))
	}

	b := make([]byte, 0, 6+len(m.L3))
	b = append(b, TypeCompleteLayer3Info)
	b = binary.BigEndian.AppendUint16(b, m.CellIdentity)
	b = binary.BigEndian.AppendUint16(b, m.LAC)
	b = append(b, uint8(len(m.L3)))
	b = append(b, m.L3...)

	return b, nil
}

// UnmarshalBinary decodes a message produced by MarshalBinary.
func (m *CompleteLayer3Info) UnmarshalBinary(b []byte) error {
	if len(b) < 6 || b[0] != TypeCompleteLayer3Info {
		return ErrShortMessage
	}

	n := int(b[5])
	if len(b) < 6+n {
		return ErrShortMessage
	}

	m.CellIdentity = binary.BigEndian.Uint16(b[1:3])
	m.LAC = binary.BigEndian.Uint16(b[3:5])
	m.L3 = append([]byte(nil), b[6:6+n]...)

	return nil
}
