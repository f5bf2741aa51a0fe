package gmail

import (
	"context"
	"fmt"
	"strings"

	"pitchlist/internal/model"
)

// SearchQuery builds the Gmail search for a sender and subject.
func SearchQuery(sender, subject string) string {
	var parts []string
	if sender != "" {
		parts = append(parts, "from:"+sender)
	}
	if subject != "" {
		parts = append(parts, `subject:"`+strings.ReplaceAll(subject, `"`, "")+`"`)
	}
	return strings.Join(parts, " ")
}

// Search lists every matching message in the inbox, paging until exhausted,
// and returns their synthetic UIDs in list order.
func (m *Mailbox) Search(ctx context.Context, sender, subject string) ([]uint32, error) {
	q := SearchQuery(sender, subject)
	list := m.svc.Users.Messages.List(user).
		Q(q).
		LabelIds("INBOX").
		MaxResults(500)

	var uids []uint32
	pageToken := ""
	for {
		if err := ctx.Err(); err != nil {
			return uids, err
		}
		call := list
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return uids, fmt.Errorf("list messages: %w", err)
		}
		for _, msg := range resp.Messages {
			uids = append(uids, m.uidFor(msg.Id))
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	m.logger.Info("search", "query", q, "matches", len(uids))
	return uids, nil
}

// FetchBatch downloads full messages one at a time in the order of uids.
// Messages that fail to download are logged and left out.
func (m *Mailbox) FetchBatch(ctx context.Context, uids []uint32) ([]model.RawEmail, error) {
	out := make([]model.RawEmail, 0, len(uids))
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, ok := m.messageID(uid)
		if !ok {
			m.logger.Warn("unknown uid", "uid", uid)
			continue
		}
		msg, err := m.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.logger.Warn("fetch failed", "uid", uid, "id", id, "err", err)
			continue
		}
		out = append(out, toRawEmail(uid, msg))
	}
	return out, nil
}
