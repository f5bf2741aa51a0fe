// Package aggregate groups extracted pairs by the calendar month of the
// email they came from.
package aggregate

import (
	"time"

	"github.com/charmbracelet/log"

	"pitchlist/internal/extract"
	"pitchlist/internal/model"
	"pitchlist/internal/util"
)

// MonthLayout is the bucket key format.
const MonthLayout = "2006-01"

// Aggregator consumes newsletter emails one at a time. It is not safe for
// concurrent use.
type Aggregator struct {
	sender  string
	subject string
	loc     *time.Location
	extract func(string) []model.Pair
	logger  *log.Logger

	months    []string
	buckets   map[string][]model.Pair
	processed model.UIDSet
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLocation sets the zone used to derive month keys. Defaults to the
// host's local zone.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithExtractor replaces extract.ExtractPairs.
func WithExtractor(fn func(string) []model.Pair) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.extract = fn
		}
	}
}

// New returns an Aggregator that accepts only emails from sender whose
// decoded subject contains subject.
func New(sender, subject string, logger *log.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	a := &Aggregator{
		sender:  sender,
		subject: subject,
		loc:     time.Local,
		extract: extract.ExtractPairs,
		logger:  logger.WithPrefix("aggregate"),
		buckets: make(map[string][]model.Pair),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Add processes one email and reports whether it contributed pairs.
// Emails from another sender or with another subject are skipped silently.
// An email that yields no pairs is logged and left out of the processed
// set so it stays in the mailbox.
func (a *Aggregator) Add(e model.RawEmail) bool {
	if !util.SenderMatches(e.From, a.sender) || !util.SubjectMatches(e.Subject, a.subject) {
		return false
	}
	pairs := model.DedupePairs(a.extract(e.Body))
	if len(pairs) == 0 {
		a.logger.Warn("no album pairs found", "uid", e.UID, "subject", util.DecodeEncodedWords(e.Subject), "date", e.Date.Format(time.RFC3339))
		return false
	}

	month := e.Date.In(a.loc).Format(MonthLayout)
	if _, ok := a.buckets[month]; !ok {
		a.months = append(a.months, month)
	}
	a.buckets[month] = append(a.buckets[month], pairs...)
	a.processed.Add(e.UID)
	a.logger.Debug("email aggregated", "uid", e.UID, "month", month, "pairs", len(pairs))
	return true
}

// AddAll feeds every email to Add.
func (a *Aggregator) AddAll(emails []model.RawEmail) {
	for _, e := range emails {
		a.Add(e)
	}
}

// Empty reports whether no bucket received a pair.
func (a *Aggregator) Empty() bool { return len(a.months) == 0 }

// Buckets returns the month buckets in first-seen order, each deduplicated
// across all emails of that month.
func (a *Aggregator) Buckets() []model.MonthBucket {
	out := make([]model.MonthBucket, 0, len(a.months))
	for _, m := range a.months {
		out = append(out, model.MonthBucket{
			Month: m,
			Pairs: model.DedupePairs(a.buckets[m]),
		})
	}
	return out
}

// Processed returns the UIDs of emails that yielded at least one pair.
func (a *Aggregator) Processed() []uint32 { return a.processed.UIDs() }
