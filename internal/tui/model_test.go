package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/wesm/leadhistory/internal/history"
)

// fakeController records the operations the model drives and serves a
// fixed snapshot.
type fakeController struct {
	mu       sync.Mutex
	calls    []string
	snap     history.Snapshot
	searches []history.SearchFilter
	scrolls  []int
	closed   bool
	opErr    error
}

func (f *fakeController) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.opErr
}

func (f *fakeController) Initialize(context.Context) error { return f.record("Initialize") }
func (f *fakeController) LoadMessages(_ context.Context, page int) error {
	return f.record(fmt.Sprintf("LoadMessages(%d)", page))
}
func (f *fakeController) LoadMore(context.Context) error        { return f.record("LoadMore") }
func (f *fakeController) LoadTimeline(context.Context) error    { return f.record("LoadTimeline") }
func (f *fakeController) AnalyzeBehavior(context.Context) error { return f.record("AnalyzeBehavior") }

func (f *fakeController) ApplySearch(_ context.Context, filter history.SearchFilter) error {
	f.mu.Lock()
	f.searches = append(f.searches, filter)
	f.mu.Unlock()
	return f.record("ApplySearch")
}

func (f *fakeController) ToggleSearchType(t history.SearchType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ToggleSearchType")
	f.snap.Search = history.SearchControls{
		Type:         t,
		QueryVisible: t == history.SearchContent,
		DateVisible:  t == history.SearchDate,
	}
}

func (f *fakeController) RecordScroll(top int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, top)
}

func (f *fakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeController) Snapshot() history.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// newFakeController returns a controller whose message pane holds n
// messages on page 1.
func newFakeController(n int) *fakeController {
	msgs := make([]history.Message, n)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := range msgs {
		msgs[i] = history.Message{
			ID:           int64(i + 1),
			Content:      fmt.Sprintf("message %d", i+1),
			Sender:       "Taro",
			ReceivedDate: base.Add(time.Duration(i) * time.Minute),
			IsFromLead:   i%2 == 0,
		}
	}
	return &fakeController{snap: history.Snapshot{
		LeadID:   "42",
		Paging:   history.PagingState{CurrentPage: 1, HasMore: true},
		Filter:   history.SearchFilter{Type: history.SearchContent},
		Search:   history.SearchControls{Type: history.SearchContent, QueryVisible: true},
		Messages: history.MessagesPane{Messages: msgs, LoadMoreVisible: true},
		Timeline: history.TimelinePane{Loaded: true},
	}}
}

// collect runs cmd and returns the messages it produces, flattening
// batches. Commands that do not finish promptly (spinner and flash ticks,
// cursor blink) are dropped.
func collect(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, collect(t, c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// feed delivers msgs to the model and returns the messages produced in turn.
func feed(t *testing.T, m Model, msgs []tea.Msg) (Model, []tea.Msg) {
	t.Helper()
	var out []tea.Msg
	for _, msg := range msgs {
		next, cmd := m.Update(msg)
		m = next.(Model)
		out = append(out, collect(t, cmd)...)
	}
	return m, out
}

// settle feeds messages back into the model until no more arrive.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	msgs := collect(t, cmd)
	for i := 0; len(msgs) > 0 && i < 10; i++ {
		m, msgs = feed(t, m, msgs)
	}
	return m
}

func sendKey(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, s string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, r := range s {
		m, cmd = sendKey(t, m, runeKey(string(r)))
	}
	return m, cmd
}

// newTestModel builds a sized model over ctrl and completes Init.
func newTestModel(t *testing.T, ctrl *fakeController, opts Options) Model {
	t.Helper()
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	m := New(ctrl, opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	m = next.(Model)
	return settle(t, m, m.Init())
}

func TestInitRestoresSavedScroll(t *testing.T) {
	ctrl := newFakeController(60)
	ctrl.snap.Messages.ScrollTop = 12

	m := newTestModel(t, ctrl, Options{})

	if got := ctrl.callNames(); !slices.Contains(got, "Initialize") {
		t.Fatalf("calls = %v, want Initialize", got)
	}
	if m.viewport.YOffset != 12 {
		t.Errorf("YOffset = %d, want restored 12", m.viewport.YOffset)
	}
	if m.pending != 0 {
		t.Errorf("pending = %d, want 0 after init", m.pending)
	}
	if len(ctrl.scrolls) != 0 {
		t.Errorf("restoring must not record scroll, got %v", ctrl.scrolls)
	}
}

func TestScrollIsRecorded(t *testing.T) {
	ctrl := newFakeController(60)
	m := newTestModel(t, ctrl, Options{})

	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyDown})

	if want := []int{1, 2}; !slices.Equal(ctrl.scrolls, want) {
		t.Errorf("scrolls = %v, want %v", ctrl.scrolls, want)
	}

	// Other panes do not report their offset.
	m, _ = sendKey(t, m, runeKey("2"))
	_, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if len(ctrl.scrolls) != 2 {
		t.Errorf("timeline scroll was recorded: %v", ctrl.scrolls)
	}
}

func TestPaneSwitchKeepsMessageOffset(t *testing.T) {
	ctrl := newFakeController(60)
	ctrl.snap.Messages.ScrollTop = 5
	m := newTestModel(t, ctrl, Options{})

	m, _ = sendKey(t, m, runeKey("3"))
	if m.pane != paneAnalysis || m.viewport.YOffset != 0 {
		t.Fatalf("pane = %v offset = %d, want analysis at top", m.pane, m.viewport.YOffset)
	}
	m, _ = sendKey(t, m, runeKey("1"))
	if m.viewport.YOffset != 5 {
		t.Errorf("YOffset = %d, want 5 after returning to messages", m.viewport.YOffset)
	}
}

func TestLoadMoreKey(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{})

	m, cmd := sendKey(t, m, runeKey("m"))
	if cmd == nil {
		t.Fatal("m should start a load")
	}
	if !m.snap.Messages.Loading {
		t.Error("message pane should show loading while the page is fetched")
	}
	settle(t, m, cmd)
	if got := ctrl.callNames(); !slices.Contains(got, "LoadMore") {
		t.Errorf("calls = %v, want LoadMore", got)
	}
}

func TestLoadMoreHiddenWithoutNextPage(t *testing.T) {
	ctrl := newFakeController(3)
	ctrl.snap.Messages.LoadMoreVisible = false
	m := newTestModel(t, ctrl, Options{})

	_, cmd := sendKey(t, m, runeKey("m"))
	if cmd != nil {
		t.Error("m should do nothing without more pages")
	}
	if strings.Contains(stripANSI(m.View()), "Load more") {
		t.Error("load more hint should be hidden")
	}
}

func TestSearchIsDebounced(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{SearchDebounce: time.Millisecond})

	m, _ = sendKey(t, m, runeKey("/"))
	if m.focus != focusQuery {
		t.Fatalf("focus = %v, want query input", m.focus)
	}
	m, _ = typeText(t, m, "pri")

	// Timers from earlier keystrokes are ignored.
	m, out := feed(t, m, []tea.Msg{searchDebounceMsg{debounceID: m.debounceID - 1}})
	if len(out) != 0 || len(ctrl.searches) != 0 {
		t.Fatalf("stale debounce triggered a search: %v", ctrl.searches)
	}

	m, cmd := typeText(t, m, "ce")
	msgs := collect(t, cmd)
	var fired bool
	for _, msg := range msgs {
		if _, ok := msg.(searchDebounceMsg); ok {
			fired = true
		}
	}
	if !fired {
		t.Fatal("typing should schedule a debounced search")
	}
	m, out = feed(t, m, msgs)
	m, _ = feed(t, m, out)
	if m.pending != 0 {
		t.Errorf("pending = %d, want 0 once the search finished", m.pending)
	}

	if len(ctrl.searches) != 1 {
		t.Fatalf("searches = %d, want 1", len(ctrl.searches))
	}
	got := ctrl.searches[0]
	if got.Query != "price" || got.Type != history.SearchContent {
		t.Errorf("search = %+v, want content search for price", got)
	}
}

func TestSearchEnterAppliesImmediately(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{SearchDebounce: time.Hour})

	m, _ = sendKey(t, m, runeKey("/"))
	m, _ = typeText(t, m, "demo")
	m, cmd := sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != focusNone {
		t.Error("enter should leave the search bar")
	}
	settle(t, m, cmd)

	if len(ctrl.searches) != 1 || ctrl.searches[0].Query != "demo" {
		t.Errorf("searches = %+v, want one for demo", ctrl.searches)
	}
}

func TestSearchEnterRerunsFailedFilter(t *testing.T) {
	tests := []struct {
		name  string
		err   string
		wantN int
	}{
		{name: "after failure", err: "Failed to load messages. Please try again.", wantN: 1},
		{name: "unchanged and loaded", err: "", wantN: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController(0)
			ctrl.snap.Filter = history.SearchFilter{Type: history.SearchContent, Query: "demo"}.Normalize()
			ctrl.snap.Messages = history.MessagesPane{Error: tt.err}
			m := newTestModel(t, ctrl, Options{SearchDebounce: time.Hour})

			m, _ = sendKey(t, m, runeKey("/"))
			m, _ = typeText(t, m, "demo")
			m, cmd := sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
			settle(t, m, cmd)

			ctrl.mu.Lock()
			n := len(ctrl.searches)
			ctrl.mu.Unlock()
			if n != tt.wantN {
				t.Errorf("searches = %d, want %d", n, tt.wantN)
			}
		})
	}
}

func TestTabTogglesSearchTypeWithoutRequest(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{})
	before := len(ctrl.callNames())

	m, _ = sendKey(t, m, runeKey("/"))
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyTab})

	if !m.snap.Search.DateVisible || m.snap.Search.QueryVisible {
		t.Errorf("search controls = %+v, want date inputs only", m.snap.Search)
	}
	if m.focus != focusFrom {
		t.Errorf("focus = %v, want from-date input", m.focus)
	}
	if got := ctrl.callNames()[before:]; !slices.Equal(got, []string{"ToggleSearchType"}) {
		t.Errorf("calls after toggle = %v, want only ToggleSearchType", got)
	}
	if !strings.Contains(stripANSI(m.View()), "[date]") {
		t.Error("search bar should show the date controls")
	}
}

func TestDateSearch(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{})

	m, _ = sendKey(t, m, runeKey("/"))
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = typeText(t, m, "2024-02-01")
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != focusTo {
		t.Fatalf("focus = %v, want to-date input", m.focus)
	}
	m, _ = typeText(t, m, "2024-01-01")
	m, cmd := sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	settle(t, m, cmd)

	if len(ctrl.searches) != 1 {
		t.Fatalf("searches = %d, want 1", len(ctrl.searches))
	}
	got := ctrl.searches[0]
	if got.Type != history.SearchDate {
		t.Errorf("Type = %v, want date", got.Type)
	}
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.DateFrom.Equal(feb1) || !got.DateTo.Equal(jan1) {
		t.Errorf("dates = %v..%v, want inputs passed through", got.DateFrom, got.DateTo)
	}
}

func TestDateSearchRejectsBadDate(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{})

	m, _ = sendKey(t, m, runeKey("/"))
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = typeText(t, m, "2024-13-01")
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(ctrl.searches) != 0 {
		t.Errorf("bad date should not search, got %+v", ctrl.searches)
	}
	if !strings.Contains(m.flashMessage, "invalid date") {
		t.Errorf("flash = %q, want invalid date", m.flashMessage)
	}
}

func TestAnalyzeKey(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{})

	m, cmd := sendKey(t, m, runeKey("a"))
	if m.pane != paneAnalysis {
		t.Errorf("pane = %v, want analysis", m.pane)
	}
	if !m.snap.Analysis.Running {
		t.Error("analysis should show as running")
	}
	if !strings.Contains(stripANSI(m.View()), "Analyzing...") {
		t.Error("view should show the running state")
	}

	// The trigger is disabled while running.
	_, again := sendKey(t, m, runeKey("a"))
	if again != nil {
		t.Error("a second analyze should be ignored while running")
	}

	settle(t, m, cmd)
	var n int
	for _, c := range ctrl.callNames() {
		if c == "AnalyzeBehavior" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("AnalyzeBehavior calls = %d, want 1", n)
	}
}

func TestRetryByPane(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*history.Snapshot)
		keys  []string
		want  string
	}{
		{
			name: "messages first page",
			setup: func(s *history.Snapshot) {
				s.Messages = history.MessagesPane{Error: "Failed to load messages. Please try again."}
			},
			keys: []string{"r"},
			want: "LoadMessages(1)",
		},
		{
			name: "messages later page",
			setup: func(s *history.Snapshot) {
				s.Messages.Error = "Failed to load messages. Please try again."
				s.Messages.FailedPage = 2
			},
			keys: []string{"r"},
			want: "LoadMessages(2)",
		},
		{
			name: "messages after failed search",
			setup: func(s *history.Snapshot) {
				s.Filter = history.SearchFilter{Type: history.SearchContent, Query: "refund"}
				s.Messages = history.MessagesPane{Error: "Failed to load messages. Please try again.", FailedPage: 1}
				s.Paging = history.PagingState{CurrentPage: 1}
			},
			keys: []string{"r"},
			want: "LoadMessages(1)",
		},
		{
			name:  "timeline",
			setup: func(s *history.Snapshot) { s.Timeline.Error = "Failed to retrieve data" },
			keys:  []string{"2", "r"},
			want:  "LoadTimeline",
		},
		{
			name:  "analysis",
			setup: func(s *history.Snapshot) { s.Analysis = history.AnalysisPane{Error: "Lead not found", Retryable: true} },
			keys:  []string{"3", "r"},
			want:  "AnalyzeBehavior",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController(3)
			tt.setup(&ctrl.snap)
			m := newTestModel(t, ctrl, Options{})

			var cmd tea.Cmd
			for _, k := range tt.keys {
				m, cmd = sendKey(t, m, runeKey(k))
			}
			settle(t, m, cmd)
			if got := ctrl.callNames(); got[len(got)-1] != tt.want {
				t.Errorf("calls = %v, want last %s", got, tt.want)
			}
		})
	}
}

func TestRetryWithoutErrorDoesNothing(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{})
	if _, cmd := sendKey(t, m, runeKey("r")); cmd != nil {
		t.Error("r without an error should do nothing")
	}
}

func TestQuitClosesController(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{})

	m, cmd := sendKey(t, m, runeKey("q"))
	if !ctrl.closed {
		t.Error("quit should close the controller")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit should return tea.Quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestSearchTypingDoesNotQuit(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{SearchDebounce: time.Hour})

	m, _ = sendKey(t, m, runeKey("/"))
	m, _ = typeText(t, m, "q")
	if ctrl.closed || m.quitting {
		t.Error("q inside the search bar should be typed, not quit")
	}
	if m.queryInput.Value() != "q" {
		t.Errorf("query = %q, want q", m.queryInput.Value())
	}
}

func TestStaleAndBusyErrorsAreQuiet(t *testing.T) {
	ctrl := newFakeController(3)
	m := newTestModel(t, ctrl, Options{})

	for _, err := range []error{history.ErrBusy, history.ErrStale, context.Canceled} {
		m, _ = feed(t, m, []tea.Msg{opDoneMsg{op: opSearch, err: err}})
		if m.flashMessage != "" {
			t.Errorf("%v produced flash %q", err, m.flashMessage)
		}
	}
	m, _ = feed(t, m, []tea.Msg{opDoneMsg{op: opLoadMore, err: history.ErrNoMorePages}})
	if m.flashMessage != "No more messages" {
		t.Errorf("flash = %q, want No more messages", m.flashMessage)
	}
}

func TestViewShowsLeadAndTabs(t *testing.T) {
	ctrl := newFakeController(1)
	ctrl.snap.Lead = &history.Lead{ID: 42, Name: "Taro Yamada", Email: "taro@example.com", Status: "Pending"}
	m := newTestModel(t, ctrl, Options{})

	out := stripANSI(m.View())
	for _, want := range []string{"Taro Yamada", "taro@example.com", "[Pending]", "1 Messages", "2 Timeline", "3 Analysis", "message 1", "page 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}
