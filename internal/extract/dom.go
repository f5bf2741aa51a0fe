package extract

import (
	"strings"

	"golang.org/x/net/html"
	a "golang.org/x/net/html/atom"
)

// matcher selects element nodes during a document walk.
type matcher func(n *html.Node) bool

func isElement(n *html.Node, atoms ...a.Atom) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, at := range atoms {
		if n.DataAtom == at {
			return true
		}
	}
	return false
}

func isBold(n *html.Node) bool       { return isElement(n, a.Strong, a.B) }
func isEmphasized(n *html.Node) bool { return isElement(n, a.Em, a.I) }
func isParagraph(n *html.Node) bool  { return isElement(n, a.P) }
func isLink(n *html.Node) bool       { return isElement(n, a.A) }
func isImage(n *html.Node) bool      { return isElement(n, a.Img) }

// isBlock reports whether n is a block-like element used as the search
// scope of the proximity strategy.
func isBlock(n *html.Node) bool {
	return isElement(n,
		a.P, a.Div, a.Td, a.Th, a.Tr, a.Li, a.Section, a.Article,
		a.Blockquote, a.Table, a.H1, a.H2, a.H3, a.H4, a.H5, a.H6,
	)
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// findAll returns every descendant of root, in document order, that m
// accepts. root itself is not considered.
func findAll(root *html.Node, m matcher) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if m(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// findFirst is findAll stopped at the first hit.
func findFirst(root *html.Node, m matcher) *html.Node {
	var found *html.Node
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if m(c) {
				found = c
				return true
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	if root != nil {
		walk(root)
	}
	return found
}

// text returns the whitespace-collapsed text content of n.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if isElement(n, a.Script, a.Style) {
				return
			}
			if n.DataAtom == a.Br {
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, at := range n.Attr {
		if strings.EqualFold(at.Key, name) {
			return at.Val
		}
	}
	return ""
}

// siblingsAfter returns the element siblings that follow n.
func siblingsAfter(n *html.Node) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			out = append(out, s)
		}
	}
	return out
}

// closest walks up from n (exclusive) and returns the first ancestor m
// accepts, stopping at limit.
func closest(n, limit *html.Node, m matcher) *html.Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil && p != limit; p = p.Parent {
		if m(p) {
			return p
		}
	}
	return nil
}

// inside reports whether n has an ancestor m accepts.
func inside(n *html.Node, m matcher) bool {
	return closest(n, nil, m) != nil
}

// firstText returns the text of the first node m accepts under root, or
// of root itself, that has non-empty text.
func firstText(root *html.Node, m matcher) string {
	if root == nil {
		return ""
	}
	if m(root) {
		if t := text(root); t != "" {
			return t
		}
	}
	for _, n := range findAll(root, m) {
		if t := text(n); t != "" {
			return t
		}
	}
	return ""
}
