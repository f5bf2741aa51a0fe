package util

import "testing"

func TestNormalizeSender(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`Pitchfork <Newsletter@Pitchfork.COM>`, "newsletter@pitchfork.com"},
		{`"Pitchfork" <newsletter+weekly@pitchfork.com>`, "newsletter@pitchfork.com"},
		{`=?UTF-8?B?UGl0Y2hmb3Jr?= <newsletter@pitchfork.com>`, "newsletter@pitchfork.com"},
		{`best.new+tag@EXAMPLE.com`, "best.new@example.com"}, // dots preserved
		{`bad address`, ""},
		{`"A" <not-an-email> , "B" <c@D.com>`, "c@d.com"}, // list fallback picks first valid
		{``, ""},
	}
	for _, tc := range tests {
		if got := NormalizeSender(tc.in); got != tc.want {
			t.Errorf("NormalizeSender(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestSenderMatches(t *testing.T) {
	tests := []struct {
		from, expected string
		want           bool
	}{
		{`Pitchfork <newsletter@pitchfork.com>`, "newsletter@pitchfork.com", true},
		{`Pitchfork <NEWSLETTER+x@pitchfork.com>`, "newsletter@pitchfork.com", true},
		{`Someone <someone@else.com>`, "newsletter@pitchfork.com", false},
		{`Pitchfork Newsletter`, "pitchfork", true}, // unparsable header falls back to substring
		{`anything`, "", true},
	}
	for _, tc := range tests {
		if got := SenderMatches(tc.from, tc.expected); got != tc.want {
			t.Errorf("SenderMatches(%q, %q) = %v; want %v", tc.from, tc.expected, got, tc.want)
		}
	}
}

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		subject, expected string
		want              bool
	}{
		{"Best New Albums: February", "best new albums", true},
		{"=?UTF-8?Q?Best_New_Albums?=", "Best New Albums", true},
		{"Best New Tracks", "Best New Albums", false},
		{"", "", true},
	}
	for _, tc := range tests {
		if got := SubjectMatches(tc.subject, tc.expected); got != tc.want {
			t.Errorf("SubjectMatches(%q, %q) = %v; want %v", tc.subject, tc.expected, got, tc.want)
		}
	}
}
