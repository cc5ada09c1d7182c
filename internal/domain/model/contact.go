package model

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Column widths of the attempt log.
const (
	MaxContactLen   = 255
	MaxPhoneLen     = 50
	MaxClientIPLen  = 45
	MaxCodeValueLen = 255
)

// Normalize trims every field, drops an email that does not parse and clamps
// each field to its stored width. Contact data is advisory, so invalid values
// are cleared or shortened rather than rejected.
func (c Contact) Normalize() Contact {
	out := Contact{
		Name:             Clamp(strings.TrimSpace(c.Name), MaxContactLen),
		Email:            strings.TrimSpace(c.Email),
		Phone:            Clamp(strings.TrimSpace(c.Phone), MaxPhoneLen),
		PurchaseLocation: Clamp(strings.TrimSpace(c.PurchaseLocation), MaxContactLen),
	}
	if out.Email != "" && (utf8.RuneCountInString(out.Email) > MaxContactLen || !ValidEmail(out.Email)) {
		out.Email = ""
	}
	return out
}

// Normalize trims the address and clamps it to its stored width.
func (c ClientInfo) Normalize() ClientInfo {
	return ClientInfo{
		IP:        Clamp(strings.TrimSpace(c.IP), MaxClientIPLen),
		UserAgent: c.UserAgent,
	}
}

func ValidEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

// Clamp cuts s to at most n runes. Invalid UTF-8 is replaced first so the
// result is always valid.
func Clamp(s string, n int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimSpace(s[:pos])
		}
		i++
	}
	return s
}
