package codec

import (
	"errors"
	"fmt"
)

// IdentityLength is the number of digits of an IMSI or MSISDN.
const IdentityLength = 10

// Identity holds the decimal digits of an IMSI or MSISDN, one digit per byte.
type Identity [IdentityLength]byte

// BCDNumber is an Identity packed two digits per byte.
type BCDNumber [IdentityLength / 2]byte

// ErrInvalidDigit is returned when a string holds a non decimal digit.
var ErrInvalidDigit = errors.New("invalid decimal digit")

// IdentityFromString parses a string of exactly IdentityLength digits.
func IdentityFromString(s string) (Identity, error) {
	var id Identity

	if len(s) != IdentityLength {
		return id, fmt.Errorf("identity %q must have %d digits",
			s, IdentityLength)
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return id, fmt.Errorf("identity %q: %w", s, ErrInvalidDigit)
		}

		id[i] = s[i] - '0'
	}

	return id, nil
}

// MustIdentity is like IdentityFromString but panics on malformed input.
func MustIdentity(s string) Identity {
	id, err := IdentityFromString(s)
	if err != nil {
		panic(err)
	}

	return id
}

func (id Identity) String() string {
	b := make([]byte, IdentityLength)
	for i, d := range id {
		b[i] = '0' + d
	}

	return string(b)
}

// IsZero tells if no identity is stored.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// BCD packs the identity into a BCDNumber.
func (id Identity) BCD() BCDNumber {
	var n BCDNumber

	packed, _ := PackBCD(id.String())
	copy(n[:], packed)

	return n
}

// Identity unpacks the number. Filler digits are dropped, so a short number
// yields an error.
func (n BCDNumber) Identity() (Identity, error) {
	return IdentityFromString(UnpackBCD(n[:]))
}

// PackBCD packs decimal digits two per byte, low nibble first. An odd number
// of digits is padded with the 0xF filler.
func PackBCD(digits string) ([]byte, error) {
	out := make([]byte, (len(digits)+1)/2)

	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("bcd %q: %w", digits, ErrInvalidDigit)
		}

		d := c - '0'
		if i%2 == 0 {
			out[i/2] = d
		} else {
			out[i/2] |= d << 4
		}
	}

	if len(digits)%2 == 1 {
		out[len(out)-1] |= 0xf0
	}

	return out, nil
}

// UnpackBCD is the reverse of PackBCD. It stops at the first filler nibble.
func UnpackBCD(b []byte) string {
	out := make([]byte, 0, len(b)*2)

	for _, v := range b {
		lo, hi := v&0x0f, v>>4

		if lo > 9 {
			break
		}

		out = append(out, '0'+lo)

		if hi > 9 {
			break
		}

		out = append(out, '0'+hi)
	}

	return string(out)
}
