package util

import (
	"regexp"
	"strings"
)

var (
	styleBlockRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe       = regexp.MustCompile(`\s+`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
		"&lt;", "<",
		"&gt;", ">",
	)
)

// StripMarkup reduces an HTML fragment to a single line of plain text:
// style and script blocks are dropped with their content, remaining tags
// are removed, a handful of named entities are decoded and whitespace runs
// collapse to one space.
//
// The passes repeat until the text stops changing, so entity-escaped markup
// such as "&lt;b&gt;" is removed as well and StripMarkup(StripMarkup(s))
// equals StripMarkup(s). Every pass that changes the text either shortens it
// or only rewrites whitespace to a single space, so the loop terminates.
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	out := stripOnce(s)
	for {
		next := stripOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func stripOnce(s string) string {
	s = RemoveBlocks(s)
	s = tagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// RemoveBlocks drops <style> and <script> elements including their content
// and leaves everything else untouched.
func RemoveBlocks(s string) string {
	s = styleBlockRe.ReplaceAllString(s, "")
	return scriptBlockRe.ReplaceAllString(s, "")
}
