package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/wesm/leadhistory/internal/history"
)

// handleKeyPress processes keyboard input.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus != focusNone {
		return m.handleSearchKeys(msg)
	}

	if m2, cmd, handled := m.handleGlobalKeys(msg); handled {
		return m2, cmd
	}

	ctrl := m.ctrl
	switch msg.String() {
	case "/":
		if m.pane != paneMessages {
			m.setPane(paneMessages)
		}
		return m.focusSearch()

	case "m":
		if m.pane != paneMessages || !m.snap.Messages.LoadMoreVisible || m.snap.Messages.Loading {
			return m, nil
		}
		return m, m.dispatch(opLoadMore, ctrl.LoadMore)

	case "a":
		if m.snap.Analysis.Running {
			return m, nil
		}
		m.setPane(paneAnalysis)
		return m, m.dispatch(opAnalyze, ctrl.AnalyzeBehavior)

	case "t":
		if m.snap.Timeline.Loading {
			return m, nil
		}
		return m, m.dispatch(opTimeline, ctrl.LoadTimeline)

	case "r":
		return m.retry()

	case "g", "home":
		m.viewport.GotoTop()
		m.syncScroll()
		return m, nil

	case "G", "end":
		m.viewport.GotoBottom()
		m.syncScroll()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.syncScroll()
	return m, cmd
}

// handleGlobalKeys handles keys common to all panes (quit, pane switching).
// Returns (model, cmd, true) if the key was handled, or (model, nil, false) otherwise.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit(), tea.Quit, true
	case "1":
		m.setPane(paneMessages)
		return m, nil, true
	case "2":
		m.setPane(paneTimeline)
		return m, nil, true
	case "3":
		m.setPane(paneAnalysis)
		return m, nil, true
	case "tab":
		m.setPane((m.pane + 1) % 3)
		return m, nil, true
	case "shift+tab":
		m.setPane((m.pane + 2) % 3)
		return m, nil, true
	}
	return m, nil, false
}

// quit tears the controller down, which drops the saved scroll offset
// unless it was configured to keep it.
func (m Model) quit() Model {
	if err := m.ctrl.Close(); err != nil {
		m.flashMessage = err.Error()
	}
	m.quitting = true
	return m
}

// retry repeats the failed operation of the active pane.
func (m Model) retry() (tea.Model, tea.Cmd) {
	ctrl := m.ctrl
	switch m.pane {
	case paneMessages:
		if m.snap.Messages.Error == "" || m.snap.Messages.Loading {
			return m, nil
		}
		page := m.snap.Messages.FailedPage
		if page < 1 {
			page = 1
		}
		return m, m.dispatch(opMessages, func(ctx context.Context) error {
			return ctrl.LoadMessages(ctx, page)
		})

	case paneTimeline:
		if m.snap.Timeline.Error == "" || m.snap.Timeline.Loading {
			return m, nil
		}
		return m, m.dispatch(opTimeline, ctrl.LoadTimeline)

	default:
		if !m.snap.Analysis.Retryable || m.snap.Analysis.Running {
			return m, nil
		}
		return m, m.dispatch(opAnalyze, ctrl.AnalyzeBehavior)
	}
}

// focusSearch moves keyboard focus into the visible search input.
func (m Model) focusSearch() (tea.Model, tea.Cmd) {
	m.fromInput.Blur()
	m.toInput.Blur()
	m.queryInput.Blur()
	if m.snap.Search.DateVisible {
		m.focus = focusFrom
		return m, m.fromInput.Focus()
	}
	m.focus = focusQuery
	return m, m.queryInput.Focus()
}

// focused returns the input receiving keystrokes.
func (m *Model) focused() *textinput.Model {
	switch m.focus {
	case focusFrom:
		return &m.fromInput
	case focusTo:
		return &m.toInput
	default:
		return &m.queryInput
	}
}

// handleSearchKeys handles keys while a search input has focus.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit(), tea.Quit

	case "esc":
		m.focused().Blur()
		m.focus = focusNone
		m.debounceID++
		return m, nil

	case "enter":
		if m.focus == focusFrom {
			m.fromInput.Blur()
			m.focus = focusTo
			return m, m.toInput.Focus()
		}
		m.focused().Blur()
		m.focus = focusNone
		// Invalidate any pending debounce timer
		m.debounceID++
		return m, m.applySearch()

	case "tab":
		// Toggle search type; only the visible controls change.
		next := history.SearchDate
		if m.snap.Search.Type == history.SearchDate {
			next = history.SearchContent
		}
		m.ctrl.ToggleSearchType(next)
		m.snap = m.ctrl.Snapshot()
		m.debounceID++
		return m.focusSearch()

	default:
		var cmd tea.Cmd
		in := m.focused()
		*in, cmd = in.Update(msg)
		if m.focus != focusQuery {
			return m, cmd
		}

		m.debounceID++
		debounceID := m.debounceID
		debounceCmd := tea.Tick(m.searchDebounce, func(time.Time) tea.Msg {
			return searchDebounceMsg{debounceID: debounceID}
		})
		return m, tea.Batch(cmd, debounceCmd)
	}
}
