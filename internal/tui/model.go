// Package tui provides a terminal user interface for a lead's history.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/wesm/leadhistory/internal/history"
)

// Controller is the part of history.Controller the TUI drives.
type Controller interface {
	Initialize(ctx context.Context) error
	LoadMessages(ctx context.Context, page int) error
	LoadMore(ctx context.Context) error
	ApplySearch(ctx context.Context, f history.SearchFilter) error
	ToggleSearchType(t history.SearchType)
	LoadTimeline(ctx context.Context) error
	AnalyzeBehavior(ctx context.Context) error
	RecordScroll(top int)
	Close() error
	Snapshot() history.Snapshot
}

// Options configuration for TUI.
type Options struct {
	// Context bounds every request. Defaults to context.Background().
	Context context.Context

	// Location renders dates. Defaults to time.Local.
	Location *time.Location

	// SearchDebounce delays a content search after the last keystroke.
	SearchDebounce time.Duration
}

// DefaultSearchDebounce is used when Options.SearchDebounce is zero.
const DefaultSearchDebounce = 500 * time.Millisecond

type pane int

const (
	paneMessages pane = iota
	paneTimeline
	paneAnalysis
)

// focus is the search input receiving keystrokes.
type focus int

const (
	focusNone focus = iota
	focusQuery
	focusFrom
	focusTo
)

// op names the controller operation behind an opDoneMsg.
type op int

const (
	opInit op = iota
	opMessages
	opLoadMore
	opSearch
	opTimeline
	opAnalyze
)

// Model is the main TUI model following the Elm architecture.
type Model struct {
	ctrl           Controller
	ctx            context.Context
	loc            *time.Location
	searchDebounce time.Duration

	// Last state read from the controller.
	snap history.Snapshot

	pane  pane
	focus focus

	queryInput textinput.Model
	fromInput  textinput.Model
	toInput    textinput.Model

	viewport viewport.Model

	// Terminal dimensions
	width  int
	height int

	// Loading state
	pending       int  // controller operations in flight
	spinnerFrame  int  // Current frame index into spinnerFrames
	spinnerActive bool // True when spinner tick is running

	// Increment to cancel pending debounce timers
	debounceID uint64

	// Scroll persistence
	scrollRestored bool
	messagesOffset int // last message pane offset reported to the controller

	// Flash message (temporary notification)
	flashMessage   string
	flashExpiresAt time.Time

	quitting bool
}

// opDoneMsg is sent when a controller operation returns.
type opDoneMsg struct {
	op  op
	err error
}

// spinnerTickMsg advances the loading spinner animation.
type spinnerTickMsg struct{}

// searchDebounceMsg fires after debounce delay to trigger a search.
type searchDebounceMsg struct {
	debounceID uint64
}

// flashClearMsg clears the flash message after timeout.
type flashClearMsg struct{}

// spinnerFrames are the Braille dot animation frames for the loading spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinnerInterval is how fast the spinner animates.
const spinnerInterval = 80 * time.Millisecond

const flashDuration = 3 * time.Second

// New creates a new TUI model over ctrl. Init starts the initial loads.
func New(ctrl Controller, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DefaultSearchDebounce
	}

	qi := textinput.New()
	qi.Placeholder = "search messages (Tab: date)"
	qi.CharLimit = 200
	qi.Width = 40

	newDate := func() textinput.Model {
		ti := textinput.New()
		ti.Placeholder = "YYYY-MM-DD"
		ti.CharLimit = len(time.DateOnly)
		ti.Width = len(time.DateOnly) + 1
		return ti
	}

	return Model{
		ctrl:           ctrl,
		ctx:            opts.Context,
		loc:            opts.Location,
		searchDebounce: opts.SearchDebounce,
		snap:           ctrl.Snapshot(),
		queryInput:     qi,
		fromInput:      newDate(),
		toInput:        newDate(),
		viewport:       viewport.New(0, 0),
		pending:        1,
		spinnerActive:  true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.run(opInit, m.ctrl.Initialize),
		spinnerTick(),
	)
}

// run wraps a blocking controller call in a command.
func (m Model) run(o op, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() (msg tea.Msg) {
		// Recover from panics to prevent TUI from becoming unresponsive
		defer func() {
			if r := recover(); r != nil {
				msg = opDoneMsg{op: o, err: fmt.Errorf("controller panic: %v", r)}
			}
		}()
		return opDoneMsg{op: o, err: fn(ctx)}
	}
}

// dispatch starts a controller operation and the spinner.
func (m *Model) dispatch(o op, fn func(context.Context) error) tea.Cmd {
	m.pending++
	switch o {
	case opMessages, opLoadMore, opSearch:
		m.snap.Messages.Loading = true
		m.refreshContent()
	case opAnalyze:
		m.snap.Analysis.Running = true
		m.refreshContent()
	}
	return tea.Batch(m.run(o, fn), m.startSpinner())
}

// spinnerTick returns a command that fires a spinnerTickMsg after the spinner interval.
func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// startSpinner returns a spinnerTick command if the spinner isn't already active,
// and marks it as active. Call this when loading begins.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	m.spinnerFrame = 0
	return spinnerTick()
}

func (m Model) loading() bool {
	return m.pending > 0 || m.snap.Messages.Loading || m.snap.Timeline.Loading || m.snap.Analysis.Running
}

// showFlash displays a temporary notification.
func (m *Model) showFlash(text string) tea.Cmd {
	m.flashMessage = text
	m.flashExpiresAt = time.Now().Add(flashDuration)
	return tea.Tick(flashDuration, func(time.Time) tea.Msg { return flashClearMsg{} })
}

// layout sizes the viewport to the space between header and footer.
func (m *Model) layout() {
	chrome := 3 // title, tabs, footer
	if m.pane == paneMessages {
		chrome++ // search bar
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 1)
}

// refreshContent re-renders the active pane into the viewport.
func (m *Model) refreshContent() {
	if m.width == 0 {
		return
	}
	m.viewport.SetContent(m.paneContent())
}

// syncScroll reports a changed message pane offset to the controller,
// which persists it after scrolling pauses.
func (m *Model) syncScroll() {
	if m.pane != paneMessages || !m.scrollRestored {
		return
	}
	if off := m.viewport.YOffset; off != m.messagesOffset {
		m.messagesOffset = off
		m.ctrl.RecordScroll(off)
	}
}

// setPane switches the visible pane, keeping the message offset.
func (m *Model) setPane(p pane) {
	if p == m.pane {
		return
	}
	m.pane = p
	m.layout()
	m.refreshContent()
	if p == paneMessages {
		m.viewport.SetYOffset(m.messagesOffset)
	} else {
		m.viewport.GotoTop()
	}
}

// quietError reports whether err needs no user feedback beyond what the
// controller already rendered into its pane.
func quietError(err error) bool {
	return err == nil ||
		errors.Is(err, history.ErrBusy) ||
		errors.Is(err, history.ErrStale) ||
		errors.Is(err, history.ErrNoMorePages) ||
		errors.Is(err, history.ErrClosed) ||
		errors.Is(err, context.Canceled)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshContent()
		if m.pane == paneMessages && m.scrollRestored {
			m.viewport.SetYOffset(m.messagesOffset)
		}
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.syncScroll()
		return m, cmd

	case opDoneMsg:
		return m.handleOpDone(msg)

	case searchDebounceMsg:
		if msg.debounceID != m.debounceID {
			return m, nil
		}
		return m, m.applySearch()

	case spinnerTickMsg:
		if m.loading() {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
			return m, spinnerTick()
		}
		m.spinnerActive = false
		return m, nil

	case flashClearMsg:
		if !time.Now().Before(m.flashExpiresAt) {
			m.flashMessage = ""
		}
		return m, nil
	}

	return m, nil
}

// handleOpDone refreshes the view from the controller after an operation.
func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if m.pending > 0 {
		m.pending--
	}
	m.snap = m.ctrl.Snapshot()
	m.refreshContent()

	switch msg.op {
	case opInit:
		if !m.scrollRestored {
			m.scrollRestored = true
			if m.pane == paneMessages {
				m.viewport.SetYOffset(m.snap.Messages.ScrollTop)
			}
			m.messagesOffset = m.snap.Messages.ScrollTop
		}
	case opSearch:
		if m.pane == paneMessages && !errors.Is(msg.err, history.ErrStale) {
			m.viewport.GotoTop()
			m.syncScroll()
		}
	}

	if errors.Is(msg.err, history.ErrNoMorePages) {
		return m, m.showFlash("No more messages")
	}
	if !quietError(msg.err) && msg.op == opSearch {
		return m, m.showFlash(m.snap.Messages.Error)
	}
	return m, nil
}

// searchFilter builds the filter from the search inputs. Dates that do not
// parse leave the filter unchanged and return an error.
func (m Model) searchFilter() (history.SearchFilter, error) {
	f := m.snap.Filter
	f.Type = m.snap.Search.Type
	f.Query = m.queryInput.Value()
	f.DateFrom, f.DateTo = time.Time{}, time.Time{}

	for _, d := range []struct {
		in  textinput.Model
		dst *time.Time
	}{
		{m.fromInput, &f.DateFrom},
		{m.toInput, &f.DateTo},
	} {
		v := d.in.Value()
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation(time.DateOnly, v, m.loc)
		if err != nil {
			return f, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", v)
		}
		*d.dst = t
	}
	return f, nil
}

// applySearch runs a search with the current inputs.
func (m *Model) applySearch() tea.Cmd {
	f, err := m.searchFilter()
	if err != nil {
		return m.showFlash(err.Error())
	}
	// An unchanged filter is re-run only when its last load failed.
	if f.Normalize().Equal(m.snap.Filter) && m.snap.Messages.Error == "" {
		return nil
	}
	m.snap.Filter = f.Normalize()
	ctrl := m.ctrl
	return m.dispatch(opSearch, func(ctx context.Context) error {
		return ctrl.ApplySearch(ctx, f)
	})
}
