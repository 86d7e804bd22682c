package ledger

import (
	"strings"

	"github.com/solarhub/marketplace/internal/model"
)

const maskRune = '*'

// Mask keeps the first visible characters of value and replaces the rest
// with asterisks. Characters are counted as runes.
func Mask(value string, visible int) string {
	if visible < 0 {
		visible = 0
	}
	runes := []rune(value)
	if len(runes) <= visible {
		return value
	}
	for i := visible; i < len(runes); i++ {
		runes[i] = maskRune
	}
	return string(runes)
}

// MaskEmail masks both the mailbox and the domain name, leaving the
// top-level domain readable: "maria@example.com" becomes "ma***@e******.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return Mask(email, 2)
	}
	local, domain := email[:at], email[at+1:]

	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 {
		return Mask(local, 2) + "@" + Mask(domain, 1)
	}
	return Mask(local, 2) + "@" + Mask(domain[:dot], 1) + domain[dot:]
}

// MaskOpportunity returns a copy of o with its contact fields masked.
// Unlocked opportunities are returned unchanged.
func MaskOpportunity(o model.Opportunity) model.Opportunity {
	if o.Unlocked {
		return o
	}
	o.ClientName = Mask(o.ClientName, 3)
	o.Email = MaskEmail(o.Email)
	o.Phone = Mask(o.Phone, 6)
	return o
}
