// Package nationalid normalizes and validates the national identifier used as
// the natural key of a person: a numeric body followed by a modulo-11 check
// digit ('0'-'9' or 'K').
//
// Every function is deterministic and side-effect free so the device and the
// sync server can run the same checks.
package nationalid

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/garrison/internal/common"
)

// minSignificant is the shortest accepted body+digit length.
const minSignificant = 8

// ID is a normalized identifier.
type ID struct {
	Body  string
	Digit byte
}

// String returns the canonical "<body>-<digit>" form stored locally and sent
// over the wire.
func (id ID) String() string {
	return id.Body + "-" + string(id.Digit)
}

// Normalize strips separators and any non-alphanumeric characters,
// upper-cases the rest and splits it into body and check digit. Leading zeros
// are not significant.
func Normalize(raw string) (ID, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	s := strings.TrimLeft(b.String(), "0")

	if len(s) < minSignificant {
		return ID{}, fmt.Errorf("%w: %q has fewer than %d significant characters", common.ErrInvalidFormat, raw, minSignificant)
	}

	body, digit := s[:len(s)-1], s[len(s)-1]
	if !isNumeric(body) {
		return ID{}, fmt.Errorf("%w: body of %q is not numeric", common.ErrInvalidFormat, raw)
	}
	if !(digit >= '0' && digit <= '9') && digit != 'K' {
		return ID{}, fmt.Errorf("%w: check digit of %q must be 0-9 or K", common.ErrInvalidFormat, raw)
	}

	return ID{Body: body, Digit: digit}, nil
}

// Checksum computes the check digit for a numeric body. Digits are weighted
// from the least significant one with weights cycling 2..7; the digit is
// 11 - sum%11, where 11 maps to '0' and 10 maps to 'K'.
func Checksum(body string) (byte, error) {
	if body == "" || !isNumeric(body) {
		return 0, fmt.Errorf("%w: body %q is not numeric", common.ErrInvalidFormat, body)
	}

	sum, weight := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}

	switch r := 11 - sum%11; r {
	case 11:
		return '0', nil
	case 10:
		return 'K', nil
	default:
		return byte('0' + r), nil
	}
}

// Validate reports whether raw is well formed and carries the correct check
// digit. Malformed input yields false, never an error.
func Validate(raw string) bool {
	id, err := Normalize(raw)
	if err != nil {
		return false
	}
	return id.Valid()
}

// Valid reports whether the check digit matches the body.
func (id ID) Valid() bool {
	want, err := Checksum(id.Body)
	if err != nil {
		return false
	}
	return want == id.Digit
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
