package codec

// ChannelRequest is the one byte access burst sent on the RACH. The top
// three bits carry the establishment cause, the rest a random discriminator.
type ChannelRequest struct {
	RandomReference uint8
}

// NewChannelRequest combines a cause and a random discriminator.
func NewChannelRequest(cause EstablishmentCause, random uint8) *ChannelRequest {
	return &ChannelRequest{
		RandomReference: uint8(cause) | random&^establishmentCauseMask,
	}
}

// Cause returns the establishment cause of the request.
func (m ChannelRequest) Cause() EstablishmentCause {
	return EstablishmentCause(m.RandomReference & establishmentCauseMask)
}

// Name implements Message.
func (ChannelRequest) Name() string { return "ChannelRequest" }

// HandoverAccess is the access burst an MS sends on the new channel during
// handover.
type HandoverAccess struct {
	HandoverReference uint8
}

// Name implements Message.
func (HandoverAccess) Name() string { return "HandoverAccess" }

// ImmediateAssignment answers a channel request on the AGCH.
type ImmediateAssignment struct {
	RandomReference uint8
	Channel         uint16
	Slot            uint8
	ChannelType     ChannelType
	TimingAdvance   uint8
}

// Name implements Message.
func (ImmediateAssignment) Name() string { return "ImmediateAssignment" }

// Discriminator implements DTAP.
func (ImmediateAssignment) Discriminator() ProtocolDiscriminator { return PDRadioResource }

// MessageType implements DTAP.
func (ImmediateAssignment) MessageType() uint8 { return TypeImmediateAssignment }

// PagingRequestType1 pages one mobile on the PCH.
type PagingRequestType1 struct {
	PageMode      uint8
	ChannelNeeded uint8
	IMSI          Identity
}

// Name implements Message.
func (PagingRequestType1) Name() string { return "PagingRequestType1" }

// Discriminator implements DTAP.
func (PagingRequestType1) Discriminator() ProtocolDiscriminator { return PDRadioResource }

// MessageType implements DTAP.
func (PagingRequestType1) MessageType() uint8 { return TypePagingRequestType1 }

// PagingResponse is the first message of a mobile terminated connection.
type PagingResponse struct {
	CipheringKeySequence uint8
	IMSI                 Identity
}

// Name implements Message.
func (PagingResponse) Name() string { return "PagingResponse" }

// Discriminator implements DTAP.
func (PagingResponse) Discriminator() ProtocolDiscriminator { return PDRadioResource }

// MessageType implements DTAP.
func (PagingResponse) MessageType() uint8 { return TypePagingResponse }

// ChannelRelease ends the dedicated connection of a mobile.
type ChannelRelease struct {
	Cause uint8
}

// Name implements Message.
func (ChannelRelease) Name() string { return "ChannelRelease" }

// Discriminator implements DTAP.
func (ChannelRelease) Discriminator() ProtocolDiscriminator { return PDRadioResource }

// MessageType implements DTAP.
func (ChannelRelease) MessageType() uint8 { return TypeChannelRelease }

// SystemInformationType3 is broadcast on the BCCH of every cell.
type SystemInformationType3 struct {
	CellIdentity   uint16
	LAC            uint16
	BCCH           uint16
	T3212          uint16
	NeighbourCount uint8
	NeighbourBCCH  [NumNeighbourCells]uint16
	NeighbourCell  [NumNeighbourCells]uint16
	NeighbourLAC   [NumNeighbourCells]uint16
}

// Name implements Message.
func (SystemInformationType3) Name() string { return "SystemInformationType3" }

// Discriminator implements DTAP.
func (SystemInformationType3) Discriminator() ProtocolDiscriminator { return PDRadioResource }

// MessageType implements DTAP.
func (SystemInformationType3) MessageType() uint8 { return TypeSystemInformation3 }

// RIHandoverCommand tells a mobile which channel of which cell to move to.
type RIHandoverCommand struct {
	CellIdentity      uint16
	LAC               uint16
	BCCH              uint16
	Channel           uint16
	Slot              uint8
	HandoverReference uint8
}

// Name implements Message.
func (RIHandoverCommand) Name() string { return "RIHandoverCommand" }

// Discriminator implements DTAP.
func (RIHandoverCommand) Discriminator() ProtocolDiscriminator { return PDRadioResource }

// MessageType implements DTAP.
func (RIHandoverCommand) MessageType() uint8 { return TypeRIHandoverCommand }

// RIHandoverComplete is sent by the mobile on the new channel.
type RIHandoverComplete struct {
	Cause uint8
}

// Name implements Message.
func (RIHandoverComplete) Name() string { return "RIHandoverComplete" }

// Discriminator implements DTAP.
func (RIHandoverComplete) Discriminator() ProtocolDiscriminator { return PDRadioResource }

// MessageType implements DTAP.
func (RIHandoverComplete) MessageType() uint8 { return TypeRIHandoverComplete }
