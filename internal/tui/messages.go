package tui

import "pitchlist/internal/model"

// Async message types for Bubble Tea commands.

type collectedMsg struct {
	buckets []model.MonthBucket
	err     error
}

type progressMsg string
