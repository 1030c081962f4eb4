// Package tui implements the interactive review screen shown before a
// rewritten template is written to disk.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var (
	tabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(colorYellow).
			Padding(0, 1)

	tabInactive = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)
)

// --- Diff lines ---

var (
	diffAdded   = lipgloss.NewStyle().Foreground(colorGreen)
	diffDeleted = lipgloss.NewStyle().Foreground(colorRed)
	diffHunk    = lipgloss.NewStyle().Foreground(colorCyan)
	diffHeader  = lipgloss.NewStyle().Bold(true)
)

// --- Key bar ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	keyBarStyle = lipgloss.NewStyle().
			Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)
)
