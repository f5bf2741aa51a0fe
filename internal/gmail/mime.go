package gmail

import (
	"encoding/base64"
	"strings"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"

	"pitchlist/internal/model"
)

// toRawEmail keeps the raw From and Subject headers and the HTML body,
// falling back to the plain-text body.
func toRawEmail(uid uint32, msg *gmailv1.Message) model.RawEmail {
	e := model.RawEmail{UID: uid}
	if msg.InternalDate > 0 {
		e.Date = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload == nil {
		return e
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			e.From = h.Value
		case "subject":
			e.Subject = h.Value
		case "date":
			if t, ok := parseDate(h.Value); ok {
				e.Date = t
			}
		}
	}
	if html := partBody(msg.Payload, "text/html"); html != "" {
		e.Body = html
	} else {
		e.Body = partBody(msg.Payload, "text/plain")
	}
	return e
}

// partBody returns the decoded body of the first part of mimeType in a
// depth-first walk of the part tree.
func partBody(part *gmailv1.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if body := partBody(sub, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail uses unpadded base64url
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
}

func parseDate(h string) (time.Time, bool) {
	h = strings.TrimSpace(h)
	if h == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, h); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
