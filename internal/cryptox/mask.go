package cryptox

import (
	"strings"
	"unicode/utf8"
)

// MaskAccount hides the local part of an email address except its first
// character: "alice@example.com" becomes "a***@example.com". Values without
// an "@" are returned unchanged.
func MaskAccount(value string) string {
	at := strings.LastIndex(value, "@")
	if at < 0 {
		return value
	}

	local, domain := value[:at], value[at+1:]
	if local == "" {
		return "***@" + domain
	}

	r, _ := utf8.DecodeRuneInString(local)
	return string(r) + "***@" + domain
}
