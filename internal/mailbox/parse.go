package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"pitchlist/internal/model"
)

// ParseMessage turns a raw RFC 822 message into a RawEmail. The body is the
// first text/html part, or the first text/plain part when there is no HTML.
// fallbackDate is used when the Date header is missing or unparsable.
func ParseMessage(uid uint32, raw []byte, fallbackDate time.Time) (model.RawEmail, error) {
	e := model.RawEmail{UID: uid, Date: fallbackDate}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return e, fmt.Errorf("parse message %d: %w", uid, err)
	}
	defer mr.Close()

	if d, err := mr.Header.Date(); err == nil && !d.IsZero() {
		e.Date = d
	}
	e.From = mr.Header.Get("From")
	e.Subject = mr.Header.Get("Subject")

	var html, plain string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep whatever was read before the broken part.
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		switch strings.ToLower(ct) {
		case "text/html":
			if html == "" {
				html = string(b)
			}
		case "text/plain", "":
			if plain == "" {
				plain = string(b)
			}
		}
	}

	if html != "" {
		e.Body = html
	} else {
		e.Body = plain
	}
	return e, nil
}
