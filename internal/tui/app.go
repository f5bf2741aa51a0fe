package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"pitchlist/internal/catalog"
	"pitchlist/internal/model"
)

type viewState int

const (
	viewLoading viewState = iota
	viewMonths            // month buckets
	viewPairs             // pairs within a month
	viewQueries           // catalog queries for one pair
)

// CollectFunc produces the month buckets to browse.
type CollectFunc func(ctx context.Context) ([]model.MonthBucket, error)

type AppModel struct {
	collect CollectFunc
	prefix  string
	Err     error
	status  string

	view          viewState
	buckets       []model.MonthBucket
	selectedMonth *model.MonthBucket
	selectedPair  *model.Pair

	monthsList    list.Model
	pairsList     list.Model
	queryViewport viewport.Model

	width, height int

	program *tea.Program
}

// SetProgram stores a reference to the tea.Program so goroutines can send
// progress messages back to the Update loop.
func (m *AppModel) SetProgram(p *tea.Program) {
	m.program = p
}

// Progress forwards a status line to a running program.
func (m *AppModel) Progress(status string) {
	if m.program != nil {
		m.program.Send(progressMsg(status))
	}
}

func NewAppModel(collect CollectFunc, prefix string) AppModel {
	ml := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	// Remove esc from the list's built-in Quit binding so it doesn't exit on home
	ml.KeyMap.Quit.SetKeys("q")

	return AppModel{
		collect:       collect,
		prefix:        prefix,
		status:        "Reading mailbox...",
		view:          viewLoading,
		monthsList:    ml,
		pairsList:     list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0),
		queryViewport: viewport.New(0, 0),
	}
}

func (m *AppModel) Init() tea.Cmd {
	return m.collectCmd()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listH := msg.Height - 4 // room for footer
		m.monthsList.SetSize(msg.Width, listH)
		m.pairsList.SetSize(msg.Width, listH)
		m.queryViewport.Width = msg.Width
		m.queryViewport.Height = msg.Height - 6 // room for header + footer
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case progressMsg:
		m.status = string(msg)
		return m, nil

	case collectedMsg:
		if msg.err != nil {
			m.Err = msg.err
			m.status = "Preview failed!"
			return m, tea.Quit
		}
		m.buckets = msg.buckets
		m.monthsList.SetItems(monthsToItems(m.buckets, m.prefix))
		m.monthsList.Title = fmt.Sprintf("Months (%d, %d albums)", len(m.buckets), totalPairs(m.buckets))
		m.view = viewMonths
		m.status = ""
		if len(m.buckets) == 0 {
			m.status = "No album pairs found in any email"
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.view {
	case viewMonths:
		m.monthsList, cmd = m.monthsList.Update(msg)
	case viewPairs:
		m.pairsList, cmd = m.pairsList.Update(msg)
	case viewQueries:
		m.queryViewport, cmd = m.queryViewport.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.view {
	case viewLoading:
		if key == "q" {
			return m, tea.Quit
		}

	case viewMonths:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.monthsList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.monthsList, cmd = m.monthsList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "enter":
			return m.enterMonth()
		}
		var cmd tea.Cmd
		m.monthsList, cmd = m.monthsList.Update(msg)
		return m, cmd

	case viewPairs:
		if m.pairsList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.pairsList, cmd = m.pairsList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewMonths
			m.selectedMonth = nil
			return m, nil
		case "enter":
			return m.enterPair()
		}
		var cmd tea.Cmd
		m.pairsList, cmd = m.pairsList.Update(msg)
		return m, cmd

	case viewQueries:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewPairs
			m.selectedPair = nil
			return m, nil
		}
		var cmd tea.Cmd
		m.queryViewport, cmd = m.queryViewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) enterMonth() (tea.Model, tea.Cmd) {
	selected, ok := m.monthsList.SelectedItem().(monthItem)
	if !ok {
		return m, nil
	}
	b := selected.MonthBucket
	m.selectedMonth = &b
	m.pairsList.SetItems(pairsToItems(b.Pairs))
	m.pairsList.Title = fmt.Sprintf("%s (%d albums)", catalog.PlaylistName(m.prefix, b.Month), len(b.Pairs))
	m.view = viewPairs
	return m, nil
}

func (m *AppModel) enterPair() (tea.Model, tea.Cmd) {
	selected, ok := m.pairsList.SelectedItem().(pairItem)
	if !ok {
		return m, nil
	}
	p := selected.Pair
	m.selectedPair = &p
	m.queryViewport.SetContent(pairHeader(p) + "\n\n" + queryLines(p))
	m.queryViewport.GotoTop()
	m.view = viewQueries
	return m, nil
}

func (m *AppModel) collectCmd() tea.Cmd {
	return func() tea.Msg {
		buckets, err := m.collect(context.Background())
		return collectedMsg{buckets: buckets, err: err}
	}
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n"
	}

	if m.view == viewLoading {
		if m.status != "" {
			return m.status + "\n"
		}
		return "Loading...\n"
	}

	var b strings.Builder

	switch m.view {
	case viewMonths:
		b.WriteString(m.monthsList.View())
		b.WriteString("\n")
		b.WriteString(monthsFooter())
	case viewPairs:
		b.WriteString(m.pairsList.View())
		b.WriteString("\n")
		b.WriteString(pairsFooter())
	case viewQueries:
		b.WriteString(m.queryViewport.View())
		b.WriteString("\n")
		b.WriteString(queriesFooter())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}

	return b.String()
}

func totalPairs(buckets []model.MonthBucket) int {
	n := 0
	for _, b := range buckets {
		n += len(b.Pairs)
	}
	return n
}
