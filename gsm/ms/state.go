package ms

import "fmt"

// MMState is the mobility management state of the mobile.
type MMState int

// Mobility management states.
const (
	MMNull                            MMState = 0
	MMLocationUpdatingInitiated       MMState = 3
	MMWaitForOutgoingMMConnection     MMState = 5
	MMConnectionActive                MMState = 6
	MMIMSIDetachInitiated             MMState = 7
	MMWaitForNetworkCommand           MMState = 9
	MMWaitForRRConnectionLocationUpd  MMState = 13
	MMWaitForRRConnectionMMConnection MMState = 14
	MMIdle                            MMState = 19
)

var mmStateNames = map[MMState]string{
	MMNull:                            "MM_NULL",
	MMLocationUpdatingInitiated:       "LOCATION_UPDATING_INITIATED",
	MMWaitForOutgoingMMConnection:     "WAIT_FOR_OUTGOING_MM_CONNECTION",
	MMConnectionActive:                "MM_CONNECTION_ACTIVE",
	MMIMSIDetachInitiated:             "IMSI_DETACH_INITIATED",
	MMWaitForNetworkCommand:           "WAIT_FOR_NETWORK_COMMAND",
	MMWaitForRRConnectionLocationUpd:  "WAIT_FOR_RR_CONNECTION_LOCATION_UPDATE",
	MMWaitForRRConnectionMMConnection: "WAIT_FOR_RR_CONNECTION_MM_CONNECTION",
	MMIdle:                            "MM_IDLE",
}

func (s MMState) String() string {
	if n, ok := mmStateNames[s]; ok {
		return n
	}

	return fmt.Sprintf("MMState(%d)", int(s))
}

// IdleSubstate refines MMIdle.
type IdleSubstate int

// Idle sub-states.
const (
	IdleNormalService        IdleSubstate = 191
	IdleAttemptingToUpdate   IdleSubstate = 192
	IdleLimitedService       IdleSubstate = 193
	IdleNoIMSI               IdleSubstate = 194
	IdleNoCellAvailable      IdleSubstate = 195
	IdleLocationUpdateNeeded IdleSubstate = 196
	IdlePLMNSearch           IdleSubstate = 197
	IdlePLMNSearchNormal     IdleSubstate = 198
)

var idleSubstateNames = map[IdleSubstate]string{
	IdleNormalService:        "NORMAL_SERVICE",
	IdleAttemptingToUpdate:   "ATTEMPTING_TO_UPDATE",
	IdleLimitedService:       "LIMITED_SERVICE",
	IdleNoIMSI:               "NO_IMSI",
	IdleNoCellAvailable:      "NO_CELL_AVAILABLE",
	IdleLocationUpdateNeeded: "LOCATION_UPDATE_NEEDED",
	IdlePLMNSearch:           "PLMN_SEARCH",
	IdlePLMNSearchNormal:     "PLMN_SEARCH_NORMAL_SERVICE",
}

func (s IdleSubstate) String() string {
	if n, ok := idleSubstateNames[s]; ok {
		return n
	}

	return fmt.Sprintf("IdleSubstate(%d)", int(s))
}

// CCState is the call control state of the mobile's call.
type CCState int

// Call control states. The values are the U-state numbers.
const (
	CCNull                 CCState = 0
	CCCallInitiated        CCState = 1
	CCMOCallProceeding     CCState = 3
	CCCallDelivered        CCState = 4
	CCCallPresent          CCState = 6
	CCCallReceived         CCState = 7
	CCConnectRequest       CCState = 8
	CCMTCallConfirmed      CCState = 9
	CCActive               CCState = 10
	CCDisconnectRequest    CCState = 11
	CCDisconnectIndication CCState = 12
	CCReleaseRequest       CCState = 19
	CCMMConnectionPending  CCState = 100
)

var ccStateNames = map[CCState]string{
	CCNull:                 "NULL",
	CCCallInitiated:        "CALL_INITIATED",
	CCMOCallProceeding:     "MOBILE_ORIGINATING_CALL_PROCEEDING",
	CCCallDelivered:        "CALL_DELIVERED",
	CCCallPresent:          "CALL_PRESENT",
	CCCallReceived:         "CALL_RECEIVED",
	CCConnectRequest:       "CONNECT_REQUEST",
	CCMTCallConfirmed:      "MOBILE_TERMINATING_CALL_CONFIRMED",
	CCActive:               "ACTIVE",
	CCDisconnectRequest:    "DISCONNECT_REQUEST",
	CCDisconnectIndication: "DISCONNECT_INDICATION",
	CCReleaseRequest:       "RELEASE_REQUEST",
	CCMMConnectionPending:  "MM_CONNECTION_PENDING",
}

func (s CCState) String() string {
	if n, ok := ccStateNames[s]; ok {
		return n
	}

	return fmt.Sprintf("CCState(%d)", int(s))
}

// UpdateStatus is the location update status stored on the SIM.
type UpdateStatus int

// Update statuses.
const (
	NotUpdated UpdateStatus = iota
	Updated
	RoamingNotAllowed
)

func (s UpdateStatus) String() string {
	switch s {
	case Updated:
		return "U1_UPDATED"
	case RoamingNotAllowed:
		return "U3_ROAMING_NOT_ALLOWED"
	default:
		return "U2_NOT_UPDATED"
	}
}
