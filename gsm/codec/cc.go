package codec

// SetupMO is the Setup a mobile sends to originate a call.
type SetupMO struct {
	BearerCapability uint8
	CalledNumber     BCDNumber
}

// Name implements Message.
func (SetupMO) Name() string { return "SetupMO" }

// Discriminator implements DTAP.
func (SetupMO) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (SetupMO) MessageType() uint8 { return TypeSetup }

// SetupMT is the Setup the network sends to the called mobile.
type SetupMT struct {
	BearerCapability uint8
	Signal           uint8
	CallingNumber    BCDNumber
}

// Name implements Message.
func (SetupMT) Name() string { return "SetupMT" }

// Discriminator implements DTAP.
func (SetupMT) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (SetupMT) MessageType() uint8 { return TypeSetup }

// CallProceeding tells the caller that the network is routing the call.
type CallProceeding struct {
	ProgressIndicator uint8
}

// Name implements Message.
func (CallProceeding) Name() string { return "CallProceeding" }

// Discriminator implements DTAP.
func (CallProceeding) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (CallProceeding) MessageType() uint8 { return TypeCallProceeding }

// CallConfirmed is the called mobile's answer to Setup.
type CallConfirmed struct {
	BearerCapability uint8
	Cause            uint8
}

// Name implements Message.
func (CallConfirmed) Name() string { return "CallConfirmed" }

// Discriminator implements DTAP.
func (CallConfirmed) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (CallConfirmed) MessageType() uint8 { return TypeCallConfirmed }

// Alerting signals that the called party is ringing.
type Alerting struct {
	ProgressIndicator uint8
}

// Name implements Message.
func (Alerting) Name() string { return "Alerting" }

// Discriminator implements DTAP.
func (Alerting) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (Alerting) MessageType() uint8 { return TypeAlerting }

// ConnectMO is the Connect the network sends to the calling mobile.
type ConnectMO struct {
	ProgressIndicator uint8
	ConnectedNumber   BCDNumber
}

// Name implements Message.
func (ConnectMO) Name() string { return "ConnectMO" }

// Discriminator implements DTAP.
func (ConnectMO) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (ConnectMO) MessageType() uint8 { return TypeConnect }

// ConnectMT is the Connect the called mobile sends when answering.
type ConnectMT struct {
	UserUser uint8
}

// Name implements Message.
func (ConnectMT) Name() string { return "ConnectMT" }

// Discriminator implements DTAP.
func (ConnectMT) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (ConnectMT) MessageType() uint8 { return TypeConnect }

// ConnectAck acknowledges a Connect.
type ConnectAck struct{}

// Name implements Message.
func (ConnectAck) Name() string { return "ConnectAck" }

// Discriminator implements DTAP.
func (ConnectAck) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (ConnectAck) MessageType() uint8 { return TypeConnectAck }

// DisconnectByMS is a Disconnect sent by a mobile.
type DisconnectByMS struct {
	Cause    uint8
	Location uint8
}

// Name implements Message.
func (DisconnectByMS) Name() string { return "DisconnectByMS" }

// Discriminator implements DTAP.
func (DisconnectByMS) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (DisconnectByMS) MessageType() uint8 { return TypeDisconnect }

// DisconnectByNetwork is a Disconnect sent by the network.
type DisconnectByNetwork struct {
	Cause             uint8
	Location          uint8
	ProgressIndicator uint8
}

// Name implements Message.
func (DisconnectByNetwork) Name() string { return "DisconnectByNetwork" }

// Discriminator implements DTAP.
func (DisconnectByNetwork) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (DisconnectByNetwork) MessageType() uint8 { return TypeDisconnect }

// Release releases the call after a Disconnect.
type Release struct {
	Cause    uint8
	Location uint8
}

// Name implements Message.
func (Release) Name() string { return "Release" }

// Discriminator implements DTAP.
func (Release) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (Release) MessageType() uint8 { return TypeRelease }

// ReleaseComplete ends the call control transaction.
type ReleaseComplete struct {
	Cause    uint8
	Location uint8
}

// Name implements Message.
func (ReleaseComplete) Name() string { return "ReleaseComplete" }

// Discriminator implements DTAP.
func (ReleaseComplete) Discriminator() ProtocolDiscriminator { return PDCallControl }

// MessageType returns the message type code.
func (ReleaseComplete) MessageType() uint8 { return TypeReleaseComplete }
