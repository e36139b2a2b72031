// Package history implements the lead history view: paginated message
// loading with search, the lead timeline, behavior analysis and scroll
// position continuity for a single lead.
package history

import (
	"context"
	"strings"
	"time"
)

// SearchType selects which search controls are active.
type SearchType string

const (
	SearchContent SearchType = "content"
	SearchDate    SearchType = "date"
)

// ParseSearchType parses a search type, defaulting to SearchContent.
func ParseSearchType(s string) SearchType {
	if SearchType(strings.ToLower(strings.TrimSpace(s))) == SearchDate {
		return SearchDate
	}
	return SearchContent
}

// SearchFilter is the message search applied to every page request.
// It is replaced wholesale on each search submission.
type SearchFilter struct {
	Query    string
	Type     SearchType
	DateFrom time.Time // zero means empty
	DateTo   time.Time // zero means empty

	// Filter-preset variant parameters.
	MessageTypes []string
	Period       string
	Importance   string
}

// Normalize returns a copy of f with the type defaulted, the query trimmed
// and a reversed date range swapped into order.
func (f SearchFilter) Normalize() SearchFilter {
	out := f
	out.Query = strings.TrimSpace(f.Query)
	if out.Type != SearchDate {
		out.Type = SearchContent
	}
	if !out.DateFrom.IsZero() && !out.DateTo.IsZero() && out.DateFrom.After(out.DateTo) {
		out.DateFrom, out.DateTo = out.DateTo, out.DateFrom
	}
	if len(f.MessageTypes) > 0 {
		out.MessageTypes = append([]string(nil), f.MessageTypes...)
	}
	return out
}

// HasDateRange reports whether both ends of the date range are set.
func (f SearchFilter) HasDateRange() bool {
	return !f.DateFrom.IsZero() && !f.DateTo.IsZero()
}

// Equal reports whether two filters select the same messages.
func (f SearchFilter) Equal(o SearchFilter) bool {
	if f.Query != o.Query || f.Type != o.Type || f.Period != o.Period || f.Importance != o.Importance {
		return false
	}
	if !f.DateFrom.Equal(o.DateFrom) || !f.DateTo.Equal(o.DateTo) {
		return false
	}
	if len(f.MessageTypes) != len(o.MessageTypes) {
		return false
	}
	for i := range f.MessageTypes {
		if f.MessageTypes[i] != o.MessageTypes[i] {
			return false
		}
	}
	return true
}

// Message is a single message exchanged with a lead.
type Message struct {
	ID           int64
	Content      string // trusted HTML fragment, rendered as-is
	Sender       string
	ReceivedDate time.Time
	IsFromLead   bool
}

// MessagePage is one page of the message list.
type MessagePage struct {
	Messages    []Message
	HasNext     bool
	HasPrev     bool
	TotalPages  int
	CurrentPage int
}

// Lead is the lead summary that may accompany a timeline.
type Lead struct {
	ID     int64
	Name   string
	Email  string
	Status string
}

// Timeline is the set of events for a lead.
type Timeline struct {
	Events []TimelineEvent
	Lead   *Lead // nil when the payload carried no lead data
}

// CommunicationPatterns summarizes how a lead communicates.
type CommunicationPatterns struct {
	Frequency       string
	PreferredTime   string
	ResponseTime    string
	EngagementLevel string
}

// Analysis is the structured result of a behavior analysis.
type Analysis struct {
	Communication      CommunicationPatterns
	Interests          []string
	KeyPoints          []string
	RiskFactors        []string
	RecommendedActions []string
	Summary            string
}

// Backend is the subset of the CRM history API the controller needs.
type Backend interface {
	ListMessages(ctx context.Context, leadID string, page int, filter SearchFilter) (*MessagePage, error)
	GetTimeline(ctx context.Context, leadID string) (*Timeline, error)
	AnalyzeLead(ctx context.Context, leadID string) (*Analysis, error)
}
