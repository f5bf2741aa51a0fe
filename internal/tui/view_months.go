package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"pitchlist/internal/catalog"
	"pitchlist/internal/model"
)

// monthItem wraps MonthBucket to customize list display.
type monthItem struct {
	model.MonthBucket
	prefix string
}

func (m monthItem) Title() string {
	return fmt.Sprintf("%s (%d)", m.Month, len(m.Pairs))
}

func (m monthItem) Description() string {
	return catalog.PlaylistName(m.prefix, m.Month)
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

func monthsFooter() string {
	return footerStyle.Render("enter: open  /: filter  q: quit")
}

func monthsToItems(buckets []model.MonthBucket, prefix string) []list.Item {
	items := make([]list.Item, len(buckets))
	for i, b := range buckets {
		items[i] = monthItem{MonthBucket: b, prefix: prefix}
	}
	return items
}
