package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pitchlist/internal/catalog"
	"pitchlist/internal/model"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	PaddingBottom(1)

func pairHeader(p model.Pair) string {
	return headerStyle.Render(fmt.Sprintf("Artist: %s\nAlbum:  %s", p.Artist, p.Album))
}

// queryLines lists the catalog searches tried for p, in order.
func queryLines(p model.Pair) string {
	var b strings.Builder
	for i, q := range catalog.QueryCandidates(p.Artist, p.Album) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return b.String()
}

func queriesFooter() string {
	return footerStyle.Render("esc: back  q: quit")
}
