package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/stepfix/pkg/diff"
	"github.com/ormasoftchile/stepfix/pkg/rewrite"
)

// Decision is the outcome of a review.
type Decision int

const (
	Pending Decision = iota
	Approved
	Aborted
)

func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case Aborted:
		return "aborted"
	}
	return "pending"
}

type tab int

const (
	tabReport tab = iota
	tabDiff
)

// Model is the Bubble Tea model of the review screen.
type Model struct {
	source   string
	report   string
	diff     string
	summary  string
	active   tab
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	decision Decision
}

// NewModel builds a review of the rewrite of source.
func NewModel(source string, rep *rewrite.Report, d *diff.DiffResult) Model {
	m := Model{source: source}
	if rep != nil {
		m.report = rep.Markdown()
	}
	if d != nil {
		m.diff = d.UnifiedDiff
		m.summary = d.FormatSummary()
	}
	return m
}

// Decision returns the reviewer's choice.
func (m Model) Decision() Decision { return m.decision }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w, h := max(msg.Width-2, 1), max(msg.Height-4, 1)
		if !m.ready {
			m.viewport = viewport.New(w, h)
			m.ready = true
		} else {
			m.viewport.Width, m.viewport.Height = w, h
		}
		m.viewport.SetContent(m.content())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Approve):
			m.decision = Approved
			return m, tea.Quit
		case key.Matches(msg, keys.Abort):
			m.decision = Aborted
			return m, tea.Quit
		case key.Matches(msg, keys.Switch):
			m.active = 1 - m.active
			if m.ready {
				m.viewport.SetContent(m.content())
				m.viewport.GotoTop()
			}
			return m, nil
		}
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) content() string {
	if m.active == tabDiff {
		return colorDiff(m.diff)
	}
	return renderMarkdown(m.report, max(m.width-4, 20))
}

// colorDiff styles unified diff lines.
func colorDiff(text string) string {
	if text == "" {
		return "No changes."
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			lines[i] = diffHeader.Render(l)
		case strings.HasPrefix(l, "@@"):
			lines[i] = diffHunk.Render(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = diffAdded.Render(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = diffDeleted.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "  Loading review..."
	}
	var b strings.Builder

	report, diffTab := tabInactive, tabInactive
	if m.active == tabReport {
		report = tabActive
	} else {
		diffTab = tabActive
	}
	b.WriteString(headerStyle.Render("stepfix review: " + m.source))
	b.WriteString(report.Render("Report"))
	b.WriteString(diffTab.Render("Diff"))
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	status := m.summary
	if m.viewport.TotalLineCount() > m.viewport.VisibleLineCount() {
		status += fmt.Sprintf("  %3.0f%%", m.viewport.ScrollPercent()*100)
	}
	b.WriteString(summaryStyle.Render(status))
	b.WriteString("\n")
	b.WriteString(keyBarText())
	return b.String()
}

// Review runs the review screen and returns the decision. A screen closed
// without a choice counts as aborted.
func Review(source string, rep *rewrite.Report, d *diff.DiffResult, opts ...tea.ProgramOption) (Decision, error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(NewModel(source, rep, d), opts...).Run()
	if err != nil {
		return Aborted, fmt.Errorf("review: %w", err)
	}
	m, ok := final.(Model)
	if !ok || m.decision == Pending {
		return Aborted, nil
	}
	return m.decision, nil
}
