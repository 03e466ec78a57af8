package codec

// ProtocolDiscriminator identifies the Layer-3 sublayer of a DTAP message.
type ProtocolDiscriminator uint8

// Protocol discriminators.
const (
	PDCallControl        ProtocolDiscriminator = 0x03
	PDMobilityManagement ProtocolDiscriminator = 0x05
	PDRadioResource      ProtocolDiscriminator = 0x06
)

func (pd ProtocolDiscriminator) String() string {
	switch pd {
	case PDCallControl:
		return "CC"
	case PDMobilityManagement:
		return "MM"
	case PDRadioResource:
		return "RR"
	default:
		return "unknown"
	}
}

// Radio resource message types.
const (
	TypePagingRequestType1  uint8 = 0x21
	TypePagingResponse      uint8 = 0x27
	TypeImmediateAssignment uint8 = 0x3f
	TypeChannelRelease      uint8 = 0x0d
	TypeMeasurementReport   uint8 = 0x15
	TypeSystemInformation3  uint8 = 0x1b
	TypeRIHandoverCommand   uint8 = 0x2b
	TypeRIHandoverComplete  uint8 = 0x2c
)

// Mobility management message types.
const (
	TypeIMSIDetachIndication  uint8 = 0x01
	TypeLocationUpdateAccept  uint8 = 0x02
	TypeLocationUpdateReject  uint8 = 0x04
	TypeLocationUpdateRequest uint8 = 0x08
	TypeCMServiceAccept       uint8 = 0x21
	TypeCMServiceReject       uint8 = 0x22
	TypeCMServiceRequest      uint8 = 0x24
)

// Call control message types.
const (
	TypeAlerting        uint8 = 0x01
	TypeCallProceeding  uint8 = 0x02
	TypeSetup           uint8 = 0x05
	TypeConnect         uint8 = 0x07
	TypeCallConfirmed   uint8 = 0x08
	TypeConnectAck      uint8 = 0x0f
	TypeDisconnect      uint8 = 0x25
	TypeReleaseComplete uint8 = 0x2a
	TypeRelease         uint8 = 0x2d
)

// A-interface (BSSMAP) message types.
const (
	TypeHandoverRequest        uint8 = 0x10
	TypeHandoverRequired       uint8 = 0x11
	TypeHandoverRequestAck     uint8 = 0x12
	TypeHandoverCommand        uint8 = 0x13
	TypeHandoverComplete       uint8 = 0x14
	TypeHandoverFailure        uint8 = 0x16
	TypeHandoverRequiredReject uint8 = 0x1a
	TypeHandoverDetect         uint8 = 0x1b
	TypeClearCommand           uint8 = 0x20
	TypeClearComplete          uint8 = 0x21
	TypeClearRequest           uint8 = 0x22
	TypePaging                 uint8 = 0x52
	TypeCompleteLayer3Info     uint8 = 0x57
)

// EstablishmentCause occupies the top three bits of a channel request.
type EstablishmentCause uint8

// Establishment causes.
const (
	EstablishLocationUpdating EstablishmentCause = 0x00
	EstablishAnswerToPaging   EstablishmentCause = 0x40
	EstablishNormalCall       EstablishmentCause = 0xe0

	establishmentCauseMask = 0xe0
)

func (c EstablishmentCause) String() string {
	switch c {
	case EstablishLocationUpdating:
		return "location updating"
	case EstablishAnswerToPaging:
		return "answer to paging"
	case EstablishNormalCall:
		return "normal call"
	default:
		return "other"
	}
}

// Cause values carried by CC and MM messages.
const (
	CauseNormalClearing          uint8 = 0x10
	CauseCallCompletionFailed    uint8 = 0x11
	CauseUserNotResponding       uint8 = 0x12
	CauseAlertingNoAnswer        uint8 = 0x13
	CauseCallRejected            uint8 = 0x15
	CauseNormalUnspecified       uint8 = 0x1f
	CauseRecoveryOnTimerExpiry   uint8 = 0x66
	CauseIMSIUnknownInVLR        uint8 = 0x04
	CauseCongestion              uint8 = 0x16
	CauseServiceOptionNotSupport uint8 = 0x20
)

// Cause locations.
const (
	LocationUser                   uint8 = 0x00
	LocationPublicNetworkLocalUser uint8 = 0x02
)

// A-interface causes.
const (
	AIFCauseRadioInterfaceFailure uint8 = 0x01
	AIFCauseUplinkQuality         uint8 = 0x02
	AIFCauseUplinkStrength        uint8 = 0x03
	AIFCauseDownlinkQuality       uint8 = 0x04
	AIFCauseDownlinkStrength      uint8 = 0x05
	AIFCauseHandoverSuccessful    uint8 = 0x0b
	AIFCauseBetterCell            uint8 = 0x0c
	AIFCauseCallControl           uint8 = 0x09
	AIFCauseNoRadioResource       uint8 = 0x21
	AIFCauseInvalidCell           uint8 = 0x27
)

// Miscellaneous field values.
const (
	PagingModeNormal             uint8 = 0x01
	ProgressInBandInfo           uint8 = 0x32
	LocationUpdateNormal         uint8 = 0x00
	LocationUpdatePeriodic       uint8 = 0x01
	LocationUpdateIMSIAttach     uint8 = 0x02
	ServiceMobileOriginatingCall uint8 = 0x01
	BearerSpeech                 uint8 = 0x60
)

// ChannelType is the logical channel a radio frame travels on.
type ChannelType uint8

// Logical channel types.
const (
	ChannelFCCH ChannelType = iota
	ChannelSCH
	ChannelBCCH
	ChannelPCH
	ChannelAGCH
	ChannelRACH
	ChannelSDCCH
	ChannelSACCH
	ChannelFACCH
	ChannelTCH
)

var channelTypeNames = [...]string{
	"FCCH", "SCH", "BCCH", "PCH", "AGCH", "RACH",
	"SDCCH", "SACCH", "FACCH", "TCH",
}

func (c ChannelType) String() string {
	if int(c) < len(channelTypeNames) {
		return channelTypeNames[c]
	}

	return "unknown"
}

// NumNeighbourCells is the number of neighbours broadcast in system
// information.
const NumNeighbourCells = 6
