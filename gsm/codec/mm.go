package codec

// LocationUpdateRequest registers a mobile in a location area.
type LocationUpdateRequest struct {
	UpdateType           uint8
	CipheringKeySequence uint8
	LAC                  uint16
	IMSI                 Identity
}

// Name implements Message.
func (LocationUpdateRequest) Name() string { return "LocationUpdateRequest" }

// Discriminator implements DTAP.
func (LocationUpdateRequest) Discriminator() ProtocolDiscriminator { return PDMobilityManagement }

// MessageType returns the message type code.
func (LocationUpdateRequest) MessageType() uint8 { return TypeLocationUpdateRequest }

// LocationUpdateAccept confirms the registration.
type LocationUpdateAccept struct {
	LAC uint16
}

// Name implements Message.
func (LocationUpdateAccept) Name() string { return "LocationUpdateAccept" }

// Discriminator implements DTAP.
func (LocationUpdateAccept) Discriminator() ProtocolDiscriminator { return PDMobilityManagement }

// MessageType returns the message type code.
func (LocationUpdateAccept) MessageType() uint8 { return TypeLocationUpdateAccept }

// LocationUpdateReject refuses the registration.
type LocationUpdateReject struct {
	Cause uint8
}

// Name implements Message.
func (LocationUpdateReject) Name() string { return "LocationUpdateReject" }

// Discriminator implements DTAP.
func (LocationUpdateReject) Discriminator() ProtocolDiscriminator { return PDMobilityManagement }

// MessageType returns the message type code.
func (LocationUpdateReject) MessageType() uint8 { return TypeLocationUpdateReject }

// CMServiceRequest asks for an MM connection to originate a call.
type CMServiceRequest struct {
	ServiceType uint8
	IMSI        Identity
}

// Name implements Message.
func (CMServiceRequest) Name() string { return "CMServiceRequest" }

// Discriminator implements DTAP.
func (CMServiceRequest) Discriminator() ProtocolDiscriminator { return PDMobilityManagement }

// MessageType returns the message type code.
func (CMServiceRequest) MessageType() uint8 { return TypeCMServiceRequest }

// CMServiceAccept grants the MM connection.
type CMServiceAccept struct{}

// Name implements Message.
func (CMServiceAccept) Name() string { return "CMServiceAccept" }

// Discriminator implements DTAP.
func (CMServiceAccept) Discriminator() ProtocolDiscriminator { return PDMobilityManagement }

// MessageType returns the message type code.
func (CMServiceAccept) MessageType() uint8 { return TypeCMServiceAccept }

// CMServiceReject refuses the MM connection.
type CMServiceReject struct {
	Cause uint8
}

// Name implements Message.
func (CMServiceReject) Name() string { return "CMServiceReject" }

// Discriminator implements DTAP.
func (CMServiceReject) Discriminator() ProtocolDiscriminator { return PDMobilityManagement }

// MessageType returns the message type code.
func (CMServiceReject) MessageType() uint8 { return TypeCMServiceReject }

// IMSIDetachIndication deregisters a mobile that is switching off.
type IMSIDetachIndication struct {
	IMSI Identity
}

// Name implements Message.
func (IMSIDetachIndication) Name() string { return "IMSIDetachIndication" }

// Discriminator implements DTAP.
func (IMSIDetachIndication) Discriminator() ProtocolDiscriminator { return PDMobilityManagement }

// MessageType returns the message type code.
func (IMSIDetachIndication) MessageType() uint8 { return TypeIMSIDetachIndication }
