package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wesm/leadhistory/internal/history"
	"github.com/wesm/leadhistory/internal/i18n"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	muted  = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Padding(0, 1)

	// Spinner style - NOT faint so it's visible
	spinnerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true)

	dateHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(muted)

	leadBubbleStyle = lipgloss.NewStyle()

	systemBubbleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#1f4e79", Dark: "#8fbcff"})

	footerStyle = lipgloss.NewStyle().
			Foreground(muted).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#b00020", Dark: "#ff6b6b"})

	loadingStyle = lipgloss.NewStyle().
			Italic(true)

	emptyStyle = lipgloss.NewStyle().
			Faint(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(muted).
			Italic(true)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}). // Amber for visibility
			Background(bgBase)
)

func (p pane) label() string {
	switch p {
	case paneTimeline:
		return "Timeline"
	case paneAnalysis:
		return "Analysis"
	default:
		return "Messages"
	}
}

// headerView renders the title bar and the pane tabs.
func (m Model) headerView() string {
	title := "Lead " + m.snap.LeadID
	if lead := LeadText(m.snap.Lead, m.width-4); lead != "" {
		title = lead
	}
	if m.loading() {
		title = spinnerStyle.Render(spinnerFrames[m.spinnerFrame]) + " " + title
	}
	line1 := titleBarStyle.Render(padRight(title, m.width-2))

	var tabs []string
	for _, p := range []pane{paneMessages, paneTimeline, paneAnalysis} {
		label := fmt.Sprintf("%d %s", int(p)+1, p.label())
		if p == m.pane {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return line1 + "\n" + padRight(strings.Join(tabs, ""), m.width)
}

// searchView renders the search bar of the message pane. Only the inputs
// for the active search type are shown.
func (m Model) searchView() string {
	typeLabel := "content"
	if m.snap.Search.Type == history.SearchDate {
		typeLabel = "date"
	}
	prefix := metaStyle.Render("[" + typeLabel + "] ")
	if m.snap.Search.DateVisible {
		from := i18n.T("filter.date_from", "From")
		to := i18n.T("filter.date_to", "To")
		return padRight(prefix+from+" "+m.fromInput.View()+"  "+to+" "+m.toInput.View(), m.width)
	}
	return padRight(prefix+m.queryInput.View(), m.width)
}

// footerView renders key hints, paging position and any flash message.
func (m Model) footerView() string {
	var keys []string
	switch {
	case m.focus != focusNone:
		keys = []string{"Enter apply", "Tab type", "Esc close"}
	case m.pane == paneMessages:
		keys = []string{"↑/↓", "/ search"}
		if m.snap.Messages.LoadMoreVisible {
			keys = append(keys, "m more")
		}
		keys = append(keys, "1-3 pane", "q quit")
	case m.pane == paneTimeline:
		keys = []string{"↑/↓", "t reload", "1-3 pane", "q quit"}
	default:
		keys = []string{"a analyze", "1-3 pane", "q quit"}
	}

	left := strings.Join(keys, " · ")
	if m.flashMessage != "" {
		left = flashStyle.Render(m.flashMessage)
	}
	pos := ""
	if m.pane == paneMessages && m.snap.Paging.CurrentPage > 0 {
		pos = fmt.Sprintf("page %d · %d msgs", m.snap.Paging.CurrentPage, len(m.snap.Messages.Messages))
	}
	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(pos)
	if gap < 1 {
		gap = 1
	}
	return footerStyle.Render(padRight(left+strings.Repeat(" ", gap)+pos, m.width-2))
}

// paneContent renders the active pane for the viewport.
func (m Model) paneContent() string {
	width := m.viewport.Width
	switch m.pane {
	case paneTimeline:
		return TimelineText(m.snap.Timeline, m.loc, width)
	case paneAnalysis:
		return AnalysisText(m.snap.Analysis, width)
	default:
		return MessagesText(m.snap.Messages, m.loc, width)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	parts := []string{m.headerView()}
	if m.pane == paneMessages {
		parts = append(parts, m.searchView())
	}
	parts = append(parts, m.viewport.View(), m.footerView())
	return strings.Join(parts, "\n")
}
