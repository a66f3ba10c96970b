package payment

import (
	"strings"

	"github.com/wkarimi/kodisha/ports"
)

// NormalizePhone converts the accepted input formats (07XX..., +2547XX...,
// 2547XX...) to canonical 254XXXXXXXXX form. Returns ports.ErrInvalidPhone
// for anything else.
func NormalizePhone(msisdn string) (string, error) {
	s := strings.TrimSpace(msisdn)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "+")

	switch {
	case strings.HasPrefix(s, "254") && len(s) == 12:
		// already canonical
	case strings.HasPrefix(s, "0") && len(s) == 10:
		s = "254" + s[1:]
	case strings.HasPrefix(s, "7") && len(s) == 9:
		s = "254" + s
	case strings.HasPrefix(s, "1") && len(s) == 9:
		s = "254" + s
	default:
		return "", ports.ErrInvalidPhone
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ports.ErrInvalidPhone
		}
	}

	// Mobile prefixes only: 2547XX and 2541XX.
	if s[3] != '7' && s[3] != '1' {
		return "", ports.ErrInvalidPhone
	}
	return s, nil
}
