package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wesm/leadhistory/internal/i18n"
	"golang.org/x/sync/errgroup"
)

// DefaultScrollDebounce is the quiet period before a scroll offset is saved.
const DefaultScrollDebounce = 100 * time.Millisecond

// Options configures a Controller.
type Options struct {
	// ScrollStore persists scroll offsets. Defaults to a new MemoryScrollStore.
	ScrollStore ScrollStore

	// ScrollDebounce defaults to DefaultScrollDebounce.
	ScrollDebounce time.Duration

	// KeepScrollOnClose keeps the saved offset when the view is closed
	// instead of deleting it.
	KeepScrollOnClose bool

	Logger *slog.Logger
}

// SearchControls describes which search inputs are visible.
type SearchControls struct {
	Type         SearchType
	QueryVisible bool
	DateVisible  bool
}

// MessagesPane is the state of the message list.
type MessagesPane struct {
	Messages        []Message
	Loading         bool   // loading indicator is shown after the messages
	Error           string // localized; replaces the pane content when set
	LoadMoreVisible bool
	ScrollTop       int

	// FailedPage is the page whose last load failed, 0 when none did.
	// Retrying means loading this page again.
	FailedPage int
}

// TimelinePane is the state of the timeline. Error and Events are never
// both set.
type TimelinePane struct {
	Events  []TimelineEvent // sorted by date, newest first
	Loading bool
	Loaded  bool
	Error   string
}

// Empty reports whether a successful load returned no events.
func (p TimelinePane) Empty() bool {
	return p.Loaded && p.Error == "" && len(p.Events) == 0
}

// AnalysisPane is the state of the behavior analysis panel.
type AnalysisPane struct {
	Running   bool // the trigger is disabled while true
	Result    *Analysis
	Error     string
	Retryable bool
}

// Snapshot is a copy of everything the view renders.
type Snapshot struct {
	LeadID   string
	Paging   PagingState
	Filter   SearchFilter
	Search   SearchControls
	Messages MessagesPane
	Timeline TimelinePane
	Lead     *Lead
	Analysis AnalysisPane
}

// Controller coordinates message pagination, search, timeline retrieval,
// behavior analysis and scroll continuity for one lead's history view.
// All methods are safe for concurrent use.
type Controller struct {
	backend    Backend
	leadID     string
	scroll     ScrollStore
	keepScroll bool
	saver      *debouncer
	logger     *slog.Logger

	mu         sync.Mutex
	pager      *pager
	filter     SearchFilter
	searchType SearchType
	generation uint64 // bumped on every filter change
	cancelLoad context.CancelFunc
	loadDone   chan struct{}
	messages   MessagesPane

	timelineSeq uint64
	timeline    TimelinePane
	lead        *Lead

	analysis AnalysisPane

	scrollRestored bool
	closed         bool
}

// New creates a controller for the given lead.
func New(backend Backend, leadID string, opts Options) (*Controller, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return nil, ErrInvalidLeadID
	}
	if backend == nil {
		return nil, errors.New("history backend is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("lead", leadID)

	store := opts.ScrollStore
	if store == nil {
		store = NewMemoryScrollStore()
	}
	delay := opts.ScrollDebounce
	if delay <= 0 {
		delay = DefaultScrollDebounce
	}

	return &Controller{
		backend:    backend,
		leadID:     leadID,
		scroll:     store,
		keepScroll: opts.KeepScrollOnClose,
		saver:      newDebouncer(delay),
		logger:     logger,
		pager:      newPager(logger),
		filter:     SearchFilter{Type: SearchContent},
		searchType: SearchContent,
	}, nil
}

// LeadID returns the lead this controller is bound to.
func (c *Controller) LeadID() string {
	return c.leadID
}

// Paging returns the current pagination state.
func (c *Controller) Paging() PagingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pager.state()
}

// LoadMessages fetches one page of messages with the current filter.
// Page 1 replaces the list and later pages append to it. It returns
// ErrBusy without fetching when another load is in flight and ErrStale
// when the filter changed while the request was outstanding. Fetch
// failures are rendered into the pane and also returned.
func (c *Controller) LoadMessages(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	return c.loadPage(ctx, func() (int, error) { return page, nil })
}

// loadPage runs one message fetch. nextPage picks the page under the same
// lock that claims the single-flight slot, so a filter change cannot slip
// in between choosing the page and starting the request.
func (c *Controller) loadPage(ctx context.Context, nextPage func() (int, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.pager.loading() {
		c.mu.Unlock()
		c.logger.Debug("message load dropped")
		return ErrBusy
	}
	page, err := nextPage()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.pager.begin(); err != nil {
		c.mu.Unlock()
		return ErrBusy
	}
	gen := c.generation
	filter := c.filter
	loadCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancelLoad = cancel
	c.loadDone = done
	c.messages.Loading = true
	c.mu.Unlock()

	outcome := triggerLoadFailed
	var hasNext bool
	defer func() {
		cancel()
		c.mu.Lock()
		c.pager.finish(outcome, page, hasNext)
		c.messages.Loading = false
		c.cancelLoad = nil
		c.loadDone = nil
		c.mu.Unlock()
		close(done)
	}()

	c.logger.Debug("loading messages", "page", page, "query", filter.Query, "type", filter.Type)
	result, err := c.backend.ListMessages(loadCtx, c.leadID, page, filter)
	if err == nil && result == nil {
		err = ErrMalformedPayload
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		outcome = triggerLoadDiscarded
		c.logger.Debug("discarding stale message page", "page", page)
		return ErrStale
	}
	if err != nil {
		c.messages.Error = i18n.T("messages.load_failed", "Failed to load messages. Please try again.")
		c.messages.FailedPage = page
		c.logger.Warn("message load failed", "page", page, "error", err)
		return fmt.Errorf("load messages page %d: %w", page, err)
	}

	outcome = triggerLoadSucceeded
	hasNext = result.HasNext
	if page == 1 {
		c.messages.Messages = append([]Message(nil), result.Messages...)
	} else {
		c.messages.Messages = append(c.messages.Messages, result.Messages...)
	}
	c.messages.Error = ""
	c.messages.FailedPage = 0
	c.messages.LoadMoreVisible = result.HasNext
	return nil
}

// LoadMore loads the page after the current one. It is a no-op returning
// ErrNoMorePages or ErrBusy unless more pages exist and no load is in
// flight. The page cursor advances only when the load succeeds.
func (c *Controller) LoadMore(ctx context.Context) error {
	return c.loadPage(ctx, func() (int, error) {
		if !c.pager.hasMore {
			return 0, ErrNoMorePages
		}
		return c.pager.currentPage + 1, nil
	})
}

// ApplySearch replaces the filter, resets the cursor to page 1 and reloads.
// A load still in flight for the previous filter is cancelled and its
// response discarded.
func (c *Controller) ApplySearch(ctx context.Context, f SearchFilter) error {
	f = f.Normalize()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.filter = f
	c.searchType = f.Type
	c.generation++
	// Results of the previous filter never mix with the new one, even
	// when page 1 of the new filter fails to load.
	c.pager.currentPage = 1
	c.pager.hasMore = false
	c.messages.Messages = nil
	c.messages.LoadMoreVisible = false
	cancel, done := c.cancelLoad, c.loadDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := c.LoadMessages(ctx, 1)
	if errors.Is(err, ErrBusy) {
		// A concurrent search won the slot and is loading the newest filter.
		return nil
	}
	return err
}

// ToggleSearchType switches between content and date search controls.
// It never issues a request.
func (c *Controller) ToggleSearchType(t SearchType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t != SearchDate {
		t = SearchContent
	}
	c.searchType = t
}

// LoadTimeline fetches and renders the lead's timeline, and refreshes the
// lead panel when lead data accompanies it.
func (c *Controller) LoadTimeline(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.timelineSeq++
	seq := c.timelineSeq
	c.timeline.Loading = true
	c.mu.Unlock()

	tl, err := c.backend.GetTimeline(ctx, c.leadID)
	if err == nil && tl == nil {
		err = ErrMalformedPayload
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.timelineSeq || c.closed {
		return ErrStale
	}
	if err != nil {
		c.timeline = TimelinePane{Error: timelineErrorMessage(err)}
		c.logger.Warn("timeline load failed", "error", err)
		return fmt.Errorf("load timeline: %w", err)
	}

	events := append([]TimelineEvent(nil), tl.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.After(events[j].Date)
	})
	c.timeline = TimelinePane{Events: events, Loaded: true}
	if tl.Lead != nil {
		lead := *tl.Lead
		c.lead = &lead
	}
	return nil
}

func timelineErrorMessage(err error) string {
	if msg := serverMessageOf(err); msg != "" {
		return msg
	}
	if errors.Is(err, ErrMalformedPayload) {
		return i18n.T("timeline.fetch_failed", "Failed to retrieve data")
	}
	return i18n.T("timeline.load_failed", "Failed to load the timeline")
}

// AnalyzeBehavior runs the behavior analysis for the lead. The trigger is
// disabled for the duration of the call; a second call while one is
// running returns ErrBusy. Failures leave a retryable error in the pane.
func (c *Controller) AnalyzeBehavior(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.analysis.Running {
		c.mu.Unlock()
		return ErrBusy
	}
	c.analysis = AnalysisPane{Running: true}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.analysis.Running = false
		c.mu.Unlock()
	}()

	result, err := c.backend.AnalyzeLead(ctx, c.leadID)
	if err == nil && result == nil {
		err = ErrNoAnalysisData
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.analysis.Error = analysisErrorMessage(err)
		c.analysis.Retryable = true
		c.logger.Warn("behavior analysis failed", "error", err)
		return fmt.Errorf("analyze lead: %w", err)
	}
	c.analysis.Result = result
	return nil
}

func analysisErrorMessage(err error) string {
	if errors.Is(err, ErrNoAnalysisData) {
		return i18n.T("analysis.no_data", "No analysis data was returned")
	}
	status := httpStatusOf(err)
	switch {
	case status == http.StatusNotFound:
		return i18n.T("analysis.not_found", "Lead not found")
	case status >= 400:
		if msg := serverMessageOf(err); msg != "" {
			return msg
		}
		return i18n.Tf("analysis.http_error", "Analysis request failed (HTTP %d)", status)
	}
	return i18n.T("analysis.failed", "An error occurred during analysis")
}

// Initialize loads the first message page and the timeline concurrently,
// then restores the saved scroll offset once. Each load renders its own
// failure; the first error is returned after both have finished.
func (c *Controller) Initialize(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		err := c.LoadMessages(ctx, 1)
		c.restoreScroll(ctx)
		return err
	})
	g.Go(func() error {
		return c.LoadTimeline(ctx)
	})
	return g.Wait()
}

func (c *Controller) restoreScroll(ctx context.Context) {
	c.mu.Lock()
	if c.scrollRestored || c.closed {
		c.mu.Unlock()
		return
	}
	c.scrollRestored = true
	c.mu.Unlock()

	offset, ok, err := c.scroll.Get(ctx, ScrollKey(c.leadID))
	if err != nil {
		c.logger.Warn("read scroll position", "error", err)
		return
	}
	if !ok {
		return
	}
	c.mu.Lock()
	c.messages.ScrollTop = offset
	c.mu.Unlock()
	c.logger.Debug("restored scroll position", "offset", offset)
}

// RecordScroll notes the message pane's scroll offset and saves it once
// scrolling has paused for the debounce interval.
func (c *Controller) RecordScroll(top int) {
	if top < 0 {
		top = 0
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.messages.ScrollTop = top
	c.mu.Unlock()

	key := ScrollKey(c.leadID)
	c.saver.Do(func() {
		if err := c.scroll.Set(context.Background(), key, top); err != nil {
			c.logger.Warn("save scroll position", "error", err)
		}
	})
}

// Close tears the view down: any in-flight message load is cancelled and
// the saved scroll offset is deleted unless KeepScrollOnClose was set.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancelLoad
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.keepScroll {
		c.saver.Flush()
		c.saver.Stop()
		return nil
	}
	c.saver.Stop()
	if err := c.scroll.Delete(context.Background(), ScrollKey(c.leadID)); err != nil {
		return fmt.Errorf("delete scroll position: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		LeadID:   c.leadID,
		Paging:   c.pager.state(),
		Filter:   c.filter,
		Messages: c.messages,
		Timeline: c.timeline,
		Analysis: c.analysis,
		Search: SearchControls{
			Type:         c.searchType,
			QueryVisible: c.searchType == SearchContent,
			DateVisible:  c.searchType == SearchDate,
		},
	}
	s.Filter.MessageTypes = append([]string(nil), c.filter.MessageTypes...)
	s.Messages.Messages = append([]Message(nil), c.messages.Messages...)
	s.Timeline.Events = append([]TimelineEvent(nil), c.timeline.Events...)
	if c.lead != nil {
		lead := *c.lead
		s.Lead = &lead
	}
	if c.analysis.Result != nil {
		res := *c.analysis.Result
		s.Analysis.Result = &res
	}
	return s
}
