package history

import (
	"context"
	"log/slog"

	"github.com/qmuntal/stateless"
)

type pagerState string

const (
	stateIdle    pagerState = "Idle"
	stateLoading pagerState = "Loading"
)

type pagerTrigger string

const (
	triggerStartLoad     pagerTrigger = "StartLoad"
	triggerLoadSucceeded pagerTrigger = "LoadSucceeded"
	triggerLoadFailed    pagerTrigger = "LoadFailed"
	triggerLoadDiscarded pagerTrigger = "LoadDiscarded" // response superseded by a newer filter
)

// PagingState is a point-in-time view of the message pagination.
type PagingState struct {
	CurrentPage int
	HasMore     bool
	IsLoading   bool
}

// pager owns the message pagination cursor. The Idle/Loading machine is
// the single-flight guard for message fetches. Callers hold the
// controller mutex.
type pager struct {
	fsm         *stateless.StateMachine
	currentPage int
	hasMore     bool
}

func newPager(logger *slog.Logger) *pager {
	fsm := stateless.NewStateMachine(stateIdle)

	fsm.Configure(stateIdle).
		Permit(triggerStartLoad, stateLoading)

	fsm.Configure(stateLoading).
		Permit(triggerLoadSucceeded, stateIdle).
		Permit(triggerLoadFailed, stateIdle).
		Permit(triggerLoadDiscarded, stateIdle)

	fsm.OnTransitioned(func(_ context.Context, tr stateless.Transition) {
		logger.Debug("paging transition", "from", tr.Source, "to", tr.Destination, "trigger", tr.Trigger)
	})

	return &pager{fsm: fsm, currentPage: 1}
}

func (p *pager) loading() bool {
	return p.fsm.MustState() == stateLoading
}

// begin enters Loading. It fails with ErrBusy when a load is in flight.
func (p *pager) begin() error {
	if p.loading() {
		return ErrBusy
	}
	return p.fsm.Fire(triggerStartLoad)
}

// finish returns to Idle. A successful load commits page and hasMore;
// failed or discarded loads leave the cursor untouched.
func (p *pager) finish(trigger pagerTrigger, page int, hasMore bool) {
	if !p.loading() {
		return
	}
	_ = p.fsm.Fire(trigger)
	if trigger == triggerLoadSucceeded {
		p.currentPage = page
		p.hasMore = hasMore
	}
}

func (p *pager) state() PagingState {
	return PagingState{
		CurrentPage: p.currentPage,
		HasMore:     p.hasMore,
		IsLoading:   p.loading(),
	}
}
