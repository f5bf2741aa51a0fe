package model

import (
	"strings"
	"time"
)

// RawEmail is one fetched newsletter message. UID is 0 when the mailbox
// did not report a usable identifier.
type RawEmail struct {
	UID     uint32
	Date    time.Time
	From    string // raw From header, possibly MIME encoded-word
	Subject string // raw Subject header, possibly MIME encoded-word
	Body    string // HTML body, or plain text when no HTML part exists
}

// Pair is a validated (artist, album) candidate.
type Pair struct {
	Artist string
	Album  string
}

// Key is the case-insensitive identity used for deduplication.
func (p Pair) Key() string {
	return strings.ToLower(p.Artist + "::" + p.Album)
}

// DedupePairs returns pairs with case-insensitive duplicates removed,
// keeping the first occurrence and the original order.
func DedupePairs(pairs []Pair) []Pair {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		k := p.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// MonthBucket groups the pairs of all emails sent in one calendar month.
type MonthBucket struct {
	Month string // YYYY-MM
	Pairs []Pair
}

func (b MonthBucket) FilterValue() string { return b.Month }

// CatalogMatch is an album resolved from the catalog.
type CatalogMatch struct {
	ID      string
	Name    string
	Artists []string
	URI     string
}

// PlaylistTrack is one entry of a playlist as the catalog reports it.
type PlaylistTrack struct {
	TrackID string
	URI     string
	AlbumID string
	AddedAt time.Time
}

// Playlist is the subset of playlist metadata the tool needs.
type Playlist struct {
	ID     string
	Name   string
	Owner  string
	Public bool
}

// UIDSet is an insertion-ordered set of mailbox UIDs.
type UIDSet struct {
	order []uint32
	seen  map[uint32]struct{}
}

// Add inserts uid unless it is zero or already present.
func (s *UIDSet) Add(uid uint32) bool {
	if uid == 0 {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[uint32]struct{})
	}
	if _, ok := s.seen[uid]; ok {
		return false
	}
	s.seen[uid] = struct{}{}
	s.order = append(s.order, uid)
	return true
}

func (s *UIDSet) Contains(uid uint32) bool {
	_, ok := s.seen[uid]
	return ok
}

func (s *UIDSet) Len() int { return len(s.order) }

// UIDs returns a copy of the set in insertion order.
func (s *UIDSet) UIDs() []uint32 {
	out := make([]uint32, len(s.order))
	copy(out, s.order)
	return out
}

// ArchiveReport summarises a relocation of messages.
type ArchiveReport struct {
	Target string
	Moved  []uint32
	Failed []uint32
}

// OK reports whether every requested UID was moved.
func (r ArchiveReport) OK() bool { return len(r.Failed) == 0 }

// MonthResult is one playlist update, as recorded in the run ledger.
type MonthResult struct {
	Month        string
	PlaylistID   string
	PlaylistName string
	Pairs        int
	Added        int
	Unresolved   int
	RanAt        time.Time
}
