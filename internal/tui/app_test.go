package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitchlist/internal/model"
)

var testBuckets = []model.MonthBucket{
	{Month: "2025-02", Pairs: []model.Pair{{Artist: "Radiohead", Album: "OK Computer"}}},
	{Month: "2025-01", Pairs: []model.Pair{{Artist: "Björk", Album: "Homogenic"}, {Artist: "Low", Album: "Double Negative"}}},
}

func loadedModel(t *testing.T) *AppModel {
	t.Helper()
	m := NewAppModel(func(context.Context) ([]model.MonthBucket, error) { return testBuckets, nil }, "Pitchfork Best Albums")
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	msg := m.Init()()
	m.Update(msg)
	require.Equal(t, viewMonths, m.view)
	return &m
}

func TestAppModel_BrowseMonthsAndPairs(t *testing.T) {
	m := loadedModel(t)
	assert.Len(t, m.monthsList.Items(), 2)
	assert.Contains(t, m.View(), "2025-02")

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, viewPairs, m.view)
	require.NotNil(t, m.selectedMonth)
	assert.Equal(t, "2025-02", m.selectedMonth.Month)
	assert.Equal(t, "Pitchfork Best Albums 2025-02 (1 albums)", m.pairsList.Title)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, viewQueries, m.view)
	assert.Contains(t, m.View(), `album:"OK Computer" artist:"Radiohead"`)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, viewPairs, m.view)
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, viewMonths, m.view)
	assert.Nil(t, m.selectedMonth)
}

func TestAppModel_CollectError(t *testing.T) {
	m := NewAppModel(func(context.Context) ([]model.MonthBucket, error) { return nil, errors.New("imap down") }, "p")
	_, cmd := m.Update(m.Init()())
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "imap down")
}

func TestAppModel_ProgressUpdatesStatus(t *testing.T) {
	m := NewAppModel(nil, "p")
	m.Update(progressMsg("fetching 3 / 10"))
	assert.Equal(t, "fetching 3 / 10\n", m.View())
}

func TestMonthItem(t *testing.T) {
	it := monthItem{MonthBucket: testBuckets[1], prefix: "Pitchfork Best Albums"}
	assert.Equal(t, "2025-01 (2)", it.Title())
	assert.Equal(t, "Pitchfork Best Albums 2025-01", it.Description())
	assert.Equal(t, "2025-01", it.FilterValue())
}
