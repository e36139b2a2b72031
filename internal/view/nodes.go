// Package view maps lead history state to deterministic view models and
// renders them as HTML fragments. Nothing here performs I/O.
package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wesm/leadhistory/internal/history"
	"github.com/wesm/leadhistory/internal/i18n"
	"golang.org/x/text/message"
)

// NodeKind distinguishes list entries.
type NodeKind int

const (
	// NodeSeparator is a date separator or date header.
	NodeSeparator NodeKind = iota
	// NodeItem is a message bubble or timeline event.
	NodeItem
)

// MessageBubble is one rendered message.
type MessageBubble struct {
	ID       int64
	Content  string // trusted HTML from the server
	Sender   string
	Time     string
	FromLead bool
}

// Class returns the CSS class of the bubble's row.
func (b MessageBubble) Class() string {
	if b.FromLead {
		return "from-lead"
	}
	return "from-system"
}

// MessageNode is either a date separator or a message bubble.
type MessageNode struct {
	Kind   NodeKind
	Date   string
	Bubble MessageBubble
}

func dayKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// MessageNodes lays out messages in order, inserting a date separator
// whenever the calendar date in loc differs from the previous message's.
// Passing the whole combined list yields exactly one separator per date
// boundary regardless of how the messages were paged in.
func MessageNodes(msgs []history.Message, loc *time.Location) []MessageNode {
	if loc == nil {
		loc = time.Local
	}
	nodes := make([]MessageNode, 0, len(msgs)*2)
	prev := "\x00"
	for _, m := range msgs {
		t := m.ReceivedDate
		if !t.IsZero() {
			t = t.In(loc)
		}
		if key := dayKey(t); key != prev {
			nodes = append(nodes, MessageNode{Kind: NodeSeparator, Date: i18n.DateLabel(t)})
			prev = key
		}
		nodes = append(nodes, MessageNode{
			Kind: NodeItem,
			Bubble: MessageBubble{
				ID:       m.ID,
				Content:  m.Content,
				Sender:   m.Sender,
				Time:     clock(t),
				FromLead: m.IsFromLead,
			},
		})
	}
	return nodes
}

func clock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return i18n.ClockTime(t)
}

// Style is the visual treatment of an event kind.
type Style struct {
	Icon  string // Font Awesome class
	Color string // CSS color of the icon badge
	Glyph string // terminal symbol
}

// EventStyle returns the style for an event type. Unknown types get a
// neutral style.
func EventStyle(t history.EventType) Style {
	switch t {
	case history.EventEmail:
		return Style{Icon: "fa-envelope", Color: "lightblue", Glyph: "✉"}
	case history.EventStatusChange:
		return Style{Icon: "fa-exchange-alt", Color: "khaki", Glyph: "⇄"}
	case history.EventScoreUpdate:
		return Style{Icon: "fa-chart-line", Color: "plum", Glyph: "↗"}
	case history.EventBehaviorAnalysis:
		return Style{Icon: "fa-brain", Color: "lightpink", Glyph: "◎"}
	case history.EventOpportunity:
		return Style{Icon: "fa-handshake", Color: "gold", Glyph: "◆"}
	case history.EventTask:
		return Style{Icon: "fa-tasks", Color: "lightsalmon", Glyph: "✓"}
	case history.EventSchedule:
		return Style{Icon: "fa-calendar-alt", Color: "lightseagreen", Glyph: "◷"}
	case "meeting":
		return Style{Icon: "fa-user-friends", Color: "lightgreen", Glyph: "☺"}
	case "call":
		return Style{Icon: "fa-phone", Color: "lightcoral", Glyph: "☎"}
	}
	return Style{Icon: "fa-info-circle", Color: "lightgrey", Glyph: "•"}
}

// Field is a labelled value.
type Field struct {
	Label string
	Value string
}

// EventItem is one rendered timeline event.
type EventItem struct {
	Type        history.EventType
	Title       string
	Description string
	Time        string
	Style       Style
	Metadata    []Field
}

// TimelineNode is either a date header or an event.
type TimelineNode struct {
	Kind  NodeKind
	Date  string
	Event EventItem
}

// TimelineNodes lays out events, which the caller has already sorted,
// under a date header whenever the calendar date in loc changes.
func TimelineNodes(events []history.TimelineEvent, loc *time.Location) []TimelineNode {
	if loc == nil {
		loc = time.Local
	}
	nodes := make([]TimelineNode, 0, len(events)*2)
	prev := "\x00"
	for _, e := range events {
		t := e.Date
		if !t.IsZero() {
			t = t.In(loc)
		}
		if key := dayKey(t); key != prev {
			nodes = append(nodes, TimelineNode{Kind: NodeSeparator, Date: i18n.ShortDate(t)})
			prev = key
		}
		desc := e.Description
		if strings.TrimSpace(desc) == "" {
			desc = i18n.T("event.no_details", "No details")
		}
		nodes = append(nodes, TimelineNode{
			Kind: NodeItem,
			Event: EventItem{
				Type:        e.Type,
				Title:       e.Title,
				Description: desc,
				Time:        clock(t),
				Style:       EventStyle(e.Type),
				Metadata:    EventMetadata(e.Detail),
			},
		})
	}
	return nodes
}

// EventMetadata formats the per-kind details of an event. Empty values
// are omitted.
func EventMetadata(d history.EventDetail) []Field {
	var fields []Field
	add := func(id, def, value string) {
		if value != "" {
			fields = append(fields, Field{Label: i18n.T(id, def), Value: value})
		}
	}

	switch d := d.(type) {
	case history.EmailDetail:
		add("event.meta.sender", "Sender", d.Sender)
		add("event.meta.subject", "Subject", d.Subject)
		if d.IsFromLead {
			add("event.meta.direction", "Direction", i18n.T("event.meta.from_lead", "From lead"))
		} else {
			add("event.meta.direction", "Direction", i18n.T("event.meta.to_lead", "To lead"))
		}
	case history.StatusChangeDetail:
		add("event.meta.old_status", "Before", d.OldStatus)
		add("event.meta.new_status", "After", d.NewStatus)
	case history.ScoreUpdateDetail:
		if d.OldScore != nil {
			add("event.meta.old_score", "Previous score", number(*d.OldScore))
		}
		add("event.meta.new_score", "Score", number(d.NewScore))
	case history.BehaviorAnalysisDetail:
		add("event.meta.analysis_type", "Analysis type", d.AnalysisType)
		if d.Confidence != nil {
			add("event.meta.confidence", "Confidence", percent(*d.Confidence))
		}
	case history.OpportunityDetail:
		add("event.meta.name", "Name", d.Name)
		add("event.meta.stage", "Stage", d.Stage)
		if d.Amount != nil {
			add("event.meta.amount", "Amount", number(*d.Amount))
		}
	case history.TaskDetail:
		add("event.meta.status", "Status", d.Status)
		add("event.meta.due", "Due", shortDate(d.DueDate))
	case history.ScheduleDetail:
		add("event.meta.start", "Starts", dateTime(d.StartTime))
		add("event.meta.end", "Ends", dateTime(d.EndTime))
		add("event.meta.location", "Location", d.Location)
	case history.GenericDetail:
		keys := make([]string, 0, len(d.Metadata))
		for k := range d.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := d.Metadata[k]; v != nil {
				fields = append(fields, Field{Label: k, Value: fmt.Sprint(v)})
			}
		}
	}
	return fields
}

// number formats n with the active language's digit grouping.
func number(n float64) string {
	p := message.NewPrinter(i18n.Language())
	if n == float64(int64(n)) {
		return p.Sprintf("%d", int64(n))
	}
	return p.Sprintf("%.2f", n)
}

// percent formats a confidence given either as a fraction or a percentage.
func percent(c float64) string {
	if c <= 1 {
		c *= 100
	}
	return fmt.Sprintf("%.0f%%", c)
}

func shortDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return i18n.ShortDate(t)
}

func dateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return i18n.ShortDate(t) + " " + i18n.ClockTime(t)
}

// LeadInfo is the lead panel.
type LeadInfo struct {
	Name   string
	Email  string
	Status string
}

// LeadPanel returns the lead panel, or nil when no lead data arrived.
func LeadPanel(l *history.Lead) *LeadInfo {
	if l == nil {
		return nil
	}
	name := l.Name
	if strings.TrimSpace(name) == "" {
		name = i18n.T("lead.unnamed", "No name")
	}
	return &LeadInfo{Name: name, Email: l.Email, Status: l.Status}
}

// AnalysisSection is one block of the behavior analysis breakdown.
// Exactly one of Fields, Items or Text is set.
type AnalysisSection struct {
	Title  string
	Fields []Field
	Items  []string
	Text   string
}

// AnalysisSections lays out an analysis. The communication section is
// always present; list sections and the summary are omitted when empty.
func AnalysisSections(a *history.Analysis) []AnalysisSection {
	if a == nil {
		return nil
	}
	unknown := i18n.T("analysis.unknown", "Unknown")
	orUnknown := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return unknown
		}
		return s
	}

	c := a.Communication
	sections := []AnalysisSection{{
		Title: i18n.T("analysis.section.communication", "Communication pattern"),
		Fields: []Field{
			{Label: i18n.T("analysis.field.frequency", "Frequency"), Value: orUnknown(c.Frequency)},
			{Label: i18n.T("analysis.field.preferred_time", "Preferred time"), Value: orUnknown(c.PreferredTime)},
			{Label: i18n.T("analysis.field.response_time", "Response time"), Value: orUnknown(c.ResponseTime)},
			{Label: i18n.T("analysis.field.engagement", "Engagement"), Value: orUnknown(c.EngagementLevel)},
		},
	}}

	lists := []struct {
		id, def string
		items   []string
	}{
		{"analysis.section.interests", "Interests", a.Interests},
		{"analysis.section.key_points", "Key points", a.KeyPoints},
		{"analysis.section.risks", "Risk factors", a.RiskFactors},
		{"analysis.section.actions", "Recommended actions", a.RecommendedActions},
	}
	for _, l := range lists {
		if len(l.items) > 0 {
			sections = append(sections, AnalysisSection{Title: i18n.T(l.id, l.def), Items: l.items})
		}
	}
	if strings.TrimSpace(a.Summary) != "" {
		sections = append(sections, AnalysisSection{
			Title: i18n.T("analysis.section.summary", "Summary"),
			Text:  a.Summary,
		})
	}
	return sections
}
