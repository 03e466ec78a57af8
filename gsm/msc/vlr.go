package msc

import (
	"sort"

	"github.com/sarchlab/gsmsim/gsm/codec"
)

// Subscriber is an HLR record.
type Subscriber struct {
	IMSI   codec.Identity
	MSISDN codec.Identity
}

// VLREntry is where a subscriber was last seen.
type VLREntry struct {
	IMSI         codec.Identity
	MSISDN       codec.Identity
	BSID         uint32
	LAC          uint16
	CellIdentity uint16
	Attached     bool
}

// VLR is the visitor location register of a switch. Only subscribers known
// to the home register can be registered.
type VLR struct {
	hlr      map[codec.Identity]codec.Identity
	byMSISDN map[codec.Identity]codec.Identity
	entries  map[codec.Identity]*VLREntry
}

// NewVLR creates an empty register backed by the given subscribers.
func NewVLR(subscribers []Subscriber) *VLR {
	v := &VLR{
		hlr:      make(map[codec.Identity]codec.Identity),
		byMSISDN: make(map[codec.Identity]codec.Identity),
		entries:  make(map[codec.Identity]*VLREntry),
	}

	for _, s := range subscribers {
		v.hlr[s.IMSI] = s.MSISDN
		v.byMSISDN[s.MSISDN] = s.IMSI
	}

	return v
}

// Subscribed tells if the IMSI is in the home register and returns its
// directory number.
func (v *VLR) Subscribed(imsi codec.Identity) (codec.Identity, bool) {
	msisdn, ok := v.hlr[imsi]
	return msisdn, ok
}

// Update registers a subscriber at a cell. It fails for unknown IMSIs.
func (v *VLR) Update(
	imsi codec.Identity,
	bsID uint32,
	lac, cell uint16,
) (VLREntry, bool) {
	msisdn, ok := v.hlr[imsi]
	if !ok {
		return VLREntry{}, false
	}

	e, ok := v.entries[imsi]
	if !ok {
		e = &VLREntry{IMSI: imsi, MSISDN: msisdn}
		v.entries[imsi] = e
	}

	e.BSID = bsID
	e.LAC = lac
	e.CellIdentity = cell
	e.Attached = true

	return *e, true
}

// Detach marks a subscriber as switched off. The location is kept.
func (v *VLR) Detach(imsi codec.Identity) bool {
	e, ok := v.entries[imsi]
	if !ok || !e.Attached {
		return false
	}

	e.Attached = false

	return true
}

// Lookup returns the entry of an IMSI.
func (v *VLR) Lookup(imsi codec.Identity) (VLREntry, bool) {
	e, ok := v.entries[imsi]
	if !ok {
		return VLREntry{}, false
	}

	return *e, true
}

// LookupMSISDN returns the entry of an attached subscriber by directory
// number.
func (v *VLR) LookupMSISDN(msisdn codec.Identity) (VLREntry, bool) {
	imsi, ok := v.byMSISDN[msisdn]
	if !ok {
		return VLREntry{}, false
	}

	e, ok := v.entries[imsi]
	if !ok || !e.Attached {
		return VLREntry{}, false
	}

	return *e, true
}

// Entries lists the register in IMSI order.
func (v *VLR) Entries() []VLREntry {
	out := make([]VLREntry, 0, len(v.entries))
	for _, e := range v.entries {
		out = append(out, *e)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].IMSI.String() < out[j].IMSI.String()
	})

	return out
}
