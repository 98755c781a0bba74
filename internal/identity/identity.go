// Package identity classifies the tax identifiers used to look up
// businesses: 15-character GSTINs and 10-character PANs.
package identity

import (
	"regexp"
	"strings"
)

type Kind int

const (
	Invalid Kind = iota
	GSTIN
	PAN
)

func (k Kind) String() string {
	switch k {
	case GSTIN:
		return "GSTIN"
	case PAN:
		return "PAN"
	}
	return "Invalid"
}

var (
	gstinPattern = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	panPattern   = regexp.MustCompile(`^[A-Z]{5}\d{4}[A-Z]$`)
)

// Normalize trims and upper-cases an identifier.
func Normalize(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// IsGSTIN reports whether v is a well-formed GSTIN, ignoring case.
func IsGSTIN(v string) bool {
	return gstinPattern.MatchString(strings.ToUpper(v))
}

// IsPAN reports whether v is a well-formed PAN, ignoring case.
func IsPAN(v string) bool {
	return panPattern.MatchString(strings.ToUpper(v))
}

// Classify trims v and returns its kind with the normalised token.
// The GSTIN check runs first; the two patterns cannot both match.
func Classify(v string) (Kind, string) {
	token := Normalize(v)
	switch {
	case IsGSTIN(token):
		return GSTIN, token
	case IsPAN(token):
		return PAN, token
	}
	return Invalid, token
}

// PANFromGSTIN returns the PAN embedded in characters 3 to 12 of a GSTIN.
func PANFromGSTIN(gstin string) (string, bool) {
	token := Normalize(gstin)
	if !IsGSTIN(token) {
		return "", false
	}
	return token[2:12], true
}
