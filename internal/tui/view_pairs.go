package tui

import (
	"github.com/charmbracelet/bubbles/list"

	"pitchlist/internal/model"
)

// pairItem wraps Pair for the list display.
type pairItem struct {
	model.Pair
}

func (p pairItem) FilterValue() string { return p.Artist + " " + p.Album }
func (p pairItem) Title() string       { return p.Album }
func (p pairItem) Description() string { return p.Artist }

func pairsFooter() string {
	return footerStyle.Render("enter: catalog queries  esc: back  q: quit")
}

// pairsToItems keeps the order in which the pairs were found.
func pairsToItems(pairs []model.Pair) []list.Item {
	items := make([]list.Item, len(pairs))
	for i, p := range pairs {
		items[i] = pairItem{p}
	}
	return items
}
