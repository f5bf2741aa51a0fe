// Package gmail reads newsletter messages through the Gmail API and moves
// processed ones to the trash.
package gmail

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// Options configures a Mailbox.
type Options struct {
	Pause  time.Duration // between trash calls
	DryRun bool
}

// Mailbox implements the pipeline mailbox over Gmail. Gmail message IDs are
// strings, so each one found by Search gets a synthetic UID that is valid
// for the lifetime of the Mailbox.
type Mailbox struct {
	svc    *gmailv1.Service
	opts   Options
	logger *log.Logger

	mu    sync.Mutex
	next  uint32
	ids   map[uint32]string
	byMsg map[string]uint32
}

// NewService creates a Gmail service on an authorised HTTP client. Extra
// options, such as option.WithEndpoint, are passed through.
func NewService(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*gmailv1.Service, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

func New(svc *gmailv1.Service, opts Options, logger *log.Logger) *Mailbox {
	if logger == nil {
		logger = log.Default()
	}
	return &Mailbox{
		svc:    svc,
		opts:   opts,
		logger: logger.WithPrefix("gmail"),
		ids:    make(map[uint32]string),
		byMsg:  make(map[string]uint32),
	}
}

// uidFor returns the synthetic UID of a message ID, assigning one if needed.
func (m *Mailbox) uidFor(id string) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uid, ok := m.byMsg[id]; ok {
		return uid
	}
	m.next++
	m.ids[m.next] = id
	m.byMsg[id] = m.next
	return m.next
}

func (m *Mailbox) messageID(uid uint32) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[uid]
	return id, ok
}

// Close releases nothing; the service has no connection of its own.
func (m *Mailbox) Close() error { return nil }
