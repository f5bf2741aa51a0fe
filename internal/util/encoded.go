package util

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var encodedWordRe = regexp.MustCompile(`=\?([^?\s]+)\?([bBqQ])\?([^?\s]*)\?=`)

// DecodeEncodedWords decodes RFC 2047 encoded-word runs found in a header
// value, e.g. "=?UTF-8?B?QmVzdCBOZXcgQWxidW1z?=". The charset label is
// ignored and the decoded bytes are read as UTF-8. A run that fails to
// decode stays in its encoded form; the rest of the string is still decoded.
// Whitespace between two adjacent decoded runs is dropped.
func DecodeEncodedWords(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	matches := encodedWordRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	prevDecoded := false
	for _, m := range matches {
		gap := s[last:m[0]]
		decoded, ok := decodeWord(s[m[4]:m[5]], s[m[6]:m[7]])
		if !(ok && prevDecoded && strings.TrimSpace(gap) == "") {
			b.WriteString(gap)
		}
		if ok {
			b.WriteString(decoded)
		} else {
			b.WriteString(s[m[0]:m[1]])
		}
		prevDecoded = ok
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func decodeWord(encoding, text string) (string, bool) {
	var raw []byte
	switch strings.ToUpper(encoding) {
	case "B":
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "="))
			if err != nil {
				return "", false
			}
		}
		raw = b
	case "Q":
		b, ok := decodeQ(text)
		if !ok {
			return "", false
		}
		raw = b
	default:
		return "", false
	}
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

func decodeQ(text string) ([]byte, bool) {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '_':
			out = append(out, ' ')
		case '=':
			if i+2 >= len(text) {
				return nil, false
			}
			v, err := strconv.ParseUint(text[i+1:i+3], 16, 8)
			if err != nil {
				return nil, false
			}
			out = append(out, byte(v))
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out, true
}
