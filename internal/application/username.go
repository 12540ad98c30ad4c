package application

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DeriveUsername builds a display name from the local part of email: the
// part is split on ".", empty tokens are dropped, and each token is
// capitalized. "ana.maria.horvat@example.com" becomes "Ana Maria Horvat".
func DeriveUsername(email string) string {
	local := strings.TrimSpace(email)
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}

	parts := strings.Split(local, ".")
	words := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		words = append(words, capitalize(part))
	}
	return strings.Join(words, " ")
}

func capitalize(word string) string {
	first, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(first)) + strings.ToLower(word[size:])
}
