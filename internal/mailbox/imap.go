// Package mailbox reads newsletter messages over IMAP and moves processed
// ones to the trash.
package mailbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"pitchlist/internal/model"
)

// Options configures an IMAP session.
type Options struct {
	Addr   string // host:port, TLS
	User   string
	Pass   string
	Source string // mailbox searched, e.g. INBOX
	Target string // archive mailbox; empty means auto-detect
	Pause  time.Duration
	DryRun bool
}

// Client is a logged-in IMAP session with the source mailbox selected.
type Client struct {
	c      *imapclient.Client
	opts   Options
	logger *log.Logger
}

// Dial connects, logs in and selects opts.Source.
func Dial(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Source == "" {
		opts.Source = "INBOX"
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := imapclient.DialTLS(opts.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s failed: %w", opts.Addr, err)
	}
	if err := c.Login(opts.User, opts.Pass).Wait(); err != nil {
		c.Close()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if _, err := c.Select(opts.Source, &imap.SelectOptions{ReadOnly: opts.DryRun}).Wait(); err != nil {
		c.Close()
		return nil, fmt.Errorf("select %s: %w", opts.Source, err)
	}
	return &Client{c: c, opts: opts, logger: logger.WithPrefix("imap")}, nil
}

// Search returns the UIDs of messages from sender whose subject contains
// subject, in server order.
func (m *Client) Search(ctx context.Context, sender, subject string) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := &imap.SearchCriteria{}
	if sender != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: sender})
	}
	if subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: subject})
	}
	data, err := m.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("SEARCH failed: %w", err)
	}
	uids := data.AllUIDs()
	out := make([]uint32, 0, len(uids))
	for _, u := range uids {
		out = append(out, uint32(u))
	}
	m.logger.Info("search", "mailbox", m.opts.Source, "matches", len(out))
	return out, nil
}

// FetchBatch downloads the given messages in one UID FETCH without marking
// them seen. Messages that cannot be parsed are logged and skipped.
func (m *Client) FetchBatch(ctx context.Context, uids []uint32) ([]model.RawEmail, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var set imap.UIDSet
	for _, u := range uids {
		set.AddNum(imap.UID(u))
	}
	section := &imap.FetchItemBodySection{Peek: true}
	msgs, err := m.c.Fetch(set, &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("FETCH failed: %w", err)
	}

	out := make([]model.RawEmail, 0, len(msgs))
	for _, msg := range msgs {
		raw := msg.FindBodySection(section)
		if len(raw) == 0 {
			m.logger.Warn("empty message body", "uid", msg.UID)
			continue
		}
		e, err := ParseMessage(uint32(msg.UID), raw, msg.InternalDate)
		if err != nil {
			m.logger.Warn("unparsable message", "uid", msg.UID, "err", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Archive moves every UID to the archive mailbox, one at a time with a
// pause in between. Failures are collected per UID.
func (m *Client) Archive(ctx context.Context, uids []uint32) (model.ArchiveReport, error) {
	target, err := m.resolveTarget()
	if err != nil {
		return model.ArchiveReport{}, err
	}
	if m.opts.DryRun {
		for _, uid := range uids {
			m.logger.Info("dry run: would move", "uid", uid, "to", target)
		}
		return model.ArchiveReport{Target: target}, nil
	}

	useMove := m.c.Caps().Has(imap.CapMove)
	rep := archiveEach(ctx, uids, m.opts.Pause, m.logger, func(uid uint32) error {
		set := imap.UIDSetNum(imap.UID(uid))
		if useMove {
			_, err := m.c.Move(set, target).Wait()
			return err
		}
		return m.copyDelete(set, target)
	})
	rep.Target = target

	if !useMove && len(rep.Moved) > 0 {
		if err := m.expunge(rep.Moved); err != nil {
			m.logger.Error("expunge failed", "err", err)
		}
	}
	m.logger.Info("archive done", "target", target, "moved", len(rep.Moved), "failed", len(rep.Failed))
	return rep, nil
}

func (m *Client) copyDelete(set imap.UIDSet, target string) error {
	if _, err := m.c.Copy(set, target).Wait(); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	store := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Silent: true, Flags: []imap.Flag{imap.FlagDeleted}}
	if err := m.c.Store(set, store, nil).Close(); err != nil {
		return fmt.Errorf("flag deleted: %w", err)
	}
	return nil
}

// expunge removes the flagged messages, limited to uids when the server
// supports UIDPLUS.
func (m *Client) expunge(uids []uint32) error {
	if m.c.Caps().Has(imap.CapUIDPlus) {
		var set imap.UIDSet
		for _, u := range uids {
			set.AddNum(imap.UID(u))
		}
		return m.c.UIDExpunge(set).Close()
	}
	return m.c.Expunge().Close()
}

// archiveEach runs move for every UID and sorts the outcome into the report.
// It stops early only when ctx is cancelled; the remaining UIDs count as
// failed.
func archiveEach(ctx context.Context, uids []uint32, pause time.Duration, logger *log.Logger, move func(uint32) error) model.ArchiveReport {
	var rep model.ArchiveReport
	for i, uid := range uids {
		if ctx.Err() != nil {
			rep.Failed = append(rep.Failed, uids[i:]...)
			return rep
		}
		if err := move(uid); err != nil {
			logger.Warn("move failed", "uid", uid, "err", err)
			rep.Failed = append(rep.Failed, uid)
		} else {
			logger.Debug("moved", "uid", uid)
			rep.Moved = append(rep.Moved, uid)
		}
		if pause > 0 && i < len(uids)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(pause):
			}
		}
	}
	return rep
}

func (m *Client) resolveTarget() (string, error) {
	if m.opts.Target != "" {
		return m.ensure(m.opts.Target)
	}
	boxes, err := m.c.List("", "*", nil).Collect()
	if err != nil {
		return "", fmt.Errorf("LIST failed: %w", err)
	}
	infos := make([]mailboxInfo, 0, len(boxes))
	delim := '/'
	for _, b := range boxes {
		infos = append(infos, mailboxInfo{Name: b.Mailbox, Attrs: b.Attrs})
		if strings.EqualFold(b.Mailbox, "INBOX") && b.Delim != 0 {
			delim = b.Delim
		}
	}
	if name := pickTrash(infos); name != "" {
		return name, nil
	}
	return m.ensure("INBOX" + string(delim) + "Trash")
}

// ensure creates name unless it already exists.
func (m *Client) ensure(name string) (string, error) {
	boxes, err := m.c.List("", name, nil).Collect()
	if err != nil {
		return "", fmt.Errorf("LIST %s: %w", name, err)
	}
	if len(boxes) > 0 {
		return name, nil
	}
	if m.opts.DryRun {
		m.logger.Info("dry run: would create mailbox", "name", name)
		return name, nil
	}
	if err := m.c.Create(name, nil).Wait(); err != nil {
		return "", fmt.Errorf("create mailbox %s: %w", name, err)
	}
	m.logger.Info("mailbox created", "name", name)
	return name, nil
}

// Close logs out and closes the connection.
func (m *Client) Close() error {
	if err := m.c.Logout().Wait(); err != nil {
		m.c.Close()
		return err
	}
	return m.c.Close()
}

type mailboxInfo struct {
	Name  string
	Attrs []imap.MailboxAttr
}

var trashKeywords = []string{"trash", "deleted", "papierkorb", "gelöscht", "eliminados"}

// pickTrash prefers the mailbox flagged \Trash, then the first one whose
// name contains a trash keyword. It returns "" when neither exists.
func pickTrash(boxes []mailboxInfo) string {
	for _, b := range boxes {
		for _, a := range b.Attrs {
			if strings.EqualFold(string(a), string(imap.MailboxAttrTrash)) {
				return b.Name
			}
		}
	}
	for _, b := range boxes {
		name := strings.ToLower(b.Name)
		for _, k := range trashKeywords {
			if strings.Contains(name, k) {
				return b.Name
			}
		}
	}
	return ""
}
