package util

import (
	"net/mail"
	"strings"
)

// NormalizeSender extracts and normalizes an email address from a From header.
// - Decodes MIME encoded-words in the display name first
// - Parses RFC 5322 values like "Pitchfork <Newsletter+weekly@Pitchfork.COM>"
// - Lowercases
// - Strips +alias in the local part
// Returns empty string if parsing fails or the address is missing.
func NormalizeSender(fromHeader string) string {
	fromHeader = strings.TrimSpace(DecodeEncodedWords(fromHeader))
	if fromHeader == "" {
		return ""
	}
	addr, err := mail.ParseAddress(fromHeader)
	if err != nil || addr == nil {
		// Some headers are lists; take the first entry that parses.
		addr = nil
		for _, p := range strings.Split(fromHeader, ",") {
			a, e := mail.ParseAddress(strings.TrimSpace(p))
			if e == nil && a != nil {
				addr = a
				break
			}
		}
		if addr == nil {
			return ""
		}
	}

	email := strings.ToLower(strings.TrimSpace(addr.Address))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return email
	}
	local := email[:at]
	domain := email[at+1:]
	if plus := strings.IndexByte(local, '+'); plus > -1 {
		local = local[:plus]
	}
	return local + "@" + domain
}

// SenderMatches reports whether a raw From header names the expected sender.
// The comparison is on normalized addresses; when the header does not parse
// as an address it falls back to a case-insensitive substring test.
func SenderMatches(fromHeader, expected string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true
	}
	if got := NormalizeSender(fromHeader); got != "" {
		if want := NormalizeSender(expected); want != "" {
			return got == want
		}
	}
	return strings.Contains(
		strings.ToLower(DecodeEncodedWords(fromHeader)),
		strings.ToLower(expected),
	)
}

// SubjectMatches reports whether the decoded subject contains the expected
// subject, ignoring case.
func SubjectMatches(subjectHeader, expected string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true
	}
	return strings.Contains(
		strings.ToLower(DecodeEncodedWords(subjectHeader)),
		strings.ToLower(expected),
	)
}
