package logging

import "strings"

// MaskEmail keeps the first two characters of the local part and the
// domain, e.g. "ta***@example.com".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local := []rune(email[:at])
	domain := email[at:]
	if len(local) <= 2 {
		return string(local) + "***" + domain
	}
	return string(local[:2]) + "***" + domain
}
