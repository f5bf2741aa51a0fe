// Package extract finds (artist, album) mentions in newsletter bodies.
//
// Three markup strategies run in order and add to one result list while
// it holds fewer than MaxPairs entries:
//
//  1. structured blocks: one pair per album-review container of the
//     newsletter template;
//  2. proximity: any bold link paired with the nearest emphasized text;
//  3. image metadata: "Artist: Album" or "Artist - Album" in alt/title.
//
// Only when the markup yields nothing, or cannot be processed at all, is
// the body reduced to text lines and matched against "Artist - Album" and
// "Album by Artist".
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"pitchlist/internal/model"
	"pitchlist/internal/util"
)

const (
	// MaxPairs caps the pairs returned for one body.
	MaxPairs = 10

	// ContainerClass marks the repeating review block of the newsletter.
	ContainerClass = "album-review"
	// ArtistClass marks the artist link inside a review block.
	ArtistClass = "artist-link"

	minNameLen = 2
	// proximitySiblings bounds how far the proximity strategy looks past
	// the block that holds the artist link.
	proximitySiblings = 4
)

var (
	// A hyphen only separates when spaced, so hyphenated names stay whole.
	imageColonRe = regexp.MustCompile(`^(.{2,80}?)\s*:\s*(.{2,140})$`)
	imageDashRe  = regexp.MustCompile(`^(.{2,80}?)(?:\s+-\s+|\s*[–—]\s*)(.{2,140})$`)
	dashLineRe   = regexp.MustCompile(`^(.+)(?:\s+-\s+|\s*[–—]\s*)(.+?)$`)
	// The album takes everything up to the last " by ".
	byLineRe    = regexp.MustCompile(`(?i)^(.+)\s+by\s+(.+?)$`)
	lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|li|tr|td|h[1-6]|table|blockquote)\s*>`)
)

// collector is the single validity gate shared by all strategies.
type collector struct {
	pairs []model.Pair
	seen  map[string]struct{}
}

func newCollector() *collector {
	return &collector{pairs: []model.Pair{}, seen: make(map[string]struct{})}
}

// add trims both names and accepts the pair unless either is shorter than
// two characters or the case-insensitive key was already added.
func (c *collector) add(artist, album string) bool {
	if c.full() {
		return false
	}
	artist = strings.TrimSpace(artist)
	album = strings.TrimSpace(album)
	if utf8.RuneCountInString(artist) < minNameLen || utf8.RuneCountInString(album) < minNameLen {
		return false
	}
	p := model.Pair{Artist: artist, Album: album}
	k := p.Key()
	if _, ok := c.seen[k]; ok {
		return false
	}
	c.seen[k] = struct{}{}
	c.pairs = append(c.pairs, p)
	return true
}

func (c *collector) full() bool { return len(c.pairs) >= MaxPairs }

// ExtractPairs returns at most MaxPairs deduplicated pairs in discovery
// order. It never fails; the worst case is an empty list.
func ExtractPairs(body string) []model.Pair {
	c := newCollector()
	if err := extractMarkup(body, c); err == nil && len(c.pairs) > 0 {
		return c.pairs
	}
	fb := newCollector()
	extractLines(body, fb)
	return fb.pairs
}

func extractMarkup(body string, c *collector) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("markup extraction: %v", r)
		}
	}()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	structuredBlocks(doc, c)
	if !c.full() {
		proximity(doc, c)
	}
	if !c.full() {
		imageMetadata(doc, c)
	}
	return nil
}

func structuredBlocks(doc *html.Node, c *collector) {
	containers := findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, ContainerClass)
	})
	for _, box := range containers {
		if c.full() {
			return
		}
		boldLink := func(n *html.Node) bool {
			return isLink(n) && closest(n, box, isBold) != nil
		}
		link := findFirst(box, func(n *html.Node) bool {
			return boldLink(n) && hasClass(n, ArtistClass)
		})
		if link == nil {
			link = findFirst(box, boldLink)
		}
		if link == nil {
			continue
		}

		var album string
		if para := closest(link, box, isParagraph); para != nil {
			for _, sib := range siblingsAfter(para) {
				if !isParagraph(sib) {
					continue
				}
				if album = firstText(sib, isEmphasized); album != "" {
					break
				}
			}
		}
		if album == "" {
			album = firstText(box, isEmphasized)
		}
		c.add(text(link), album)
	}
}

func proximity(doc *html.Node, c *collector) {
	links := findAll(doc, func(n *html.Node) bool {
		return isLink(n) && inside(n, isBold)
	})
	for _, link := range links {
		if c.full() {
			return
		}
		artist := text(link)
		if artist == "" {
			continue
		}
		if album := nearbyEmphasis(link); album != "" {
			c.add(artist, album)
		}
	}
}

// nearbyEmphasis looks for emphasized text in the block enclosing link,
// then in up to proximitySiblings element siblings after that block.
func nearbyEmphasis(link *html.Node) string {
	block := closest(link, nil, isBlock)
	if block == nil {
		return ""
	}
	notAroundLink := func(n *html.Node) bool {
		return isEmphasized(n) && !contains(n, link)
	}
	if t := firstText(block, notAroundLink); t != "" {
		return t
	}
	sibs := siblingsAfter(block)
	if len(sibs) > proximitySiblings {
		sibs = sibs[:proximitySiblings]
	}
	for _, sib := range sibs {
		if t := firstText(sib, notAroundLink); t != "" {
			return t
		}
	}
	return ""
}

func contains(n, target *html.Node) bool {
	for p := target; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

func imageMetadata(doc *html.Node, c *collector) {
	for _, img := range findAll(doc, isImage) {
		for _, name := range []string{"alt", "title"} {
			if c.full() {
				return
			}
			if artist, album, ok := splitImageText(strings.TrimSpace(attr(img, name))); ok {
				c.add(artist, album)
			}
		}
	}
}

// splitImageText splits "Artist: Album" or "Artist - Album" at whichever
// separator comes first.
func splitImageText(v string) (artist, album string, ok bool) {
	colon := imageColonRe.FindStringSubmatch(v)
	dash := imageDashRe.FindStringSubmatch(v)
	switch {
	case colon != nil && (dash == nil || len(colon[1]) <= len(dash[1])):
		return colon[1], colon[2], true
	case dash != nil:
		return dash[1], dash[2], true
	}
	return "", "", false
}

func extractLines(body string, c *collector) {
	for _, line := range textLines(body) {
		if c.full() {
			return
		}
		if m := dashLineRe.FindStringSubmatch(line); m != nil {
			c.add(m[1], m[2])
			continue
		}
		if m := byLineRe.FindStringSubmatch(line); m != nil {
			c.add(m[2], m[1])
		}
	}
}

// textLines reduces body to non-empty plain-text lines. Line breaks and
// closing block tags end a line before the markup is stripped.
func textLines(body string) []string {
	s := util.RemoveBlocks(body)
	s = lineBreakRe.ReplaceAllString(s, "\n")
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = util.StripMarkup(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
