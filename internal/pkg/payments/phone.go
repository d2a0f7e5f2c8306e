package payments

import (
	"fmt"
	"regexp"
	"strings"
)

var msisdnPattern = regexp.MustCompile(`^254\d{9}$`)

// NormalizePhone canonicalizes a Kenyan subscriber number to the 254XXXXXXXXX
// MSISDN shape Daraja requires. Accepted inputs: "0712 345678",
// "+254712345678", "254712345678" and punctuation-littered variants thereof.
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return "", fmt.Errorf("%w: phone number is required", ErrValidation)
	}

	phone = strings.Join(strings.Fields(phone), "")
	phone = strings.TrimPrefix(phone, "+")
	phone = stripNonDigits(phone)
	if strings.HasPrefix(phone, "0") {
		phone = "254" + phone[1:]
	}

	if !msisdnPattern.MatchString(phone) {
		return "", fmt.Errorf("%w: invalid phone number format, use 0712345678 or 254712345678", ErrValidation)
	}
	return phone, nil
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
