package history

import "time"

// EventType identifies the kind of a timeline event.
type EventType string

const (
	EventEmail            EventType = "email"
	EventStatusChange     EventType = "status_change"
	EventScoreUpdate      EventType = "score_update"
	EventBehaviorAnalysis EventType = "behavior_analysis"
	EventOpportunity      EventType = "opportunity"
	EventTask             EventType = "task"
	EventSchedule         EventType = "schedule"
)

// TimelineEvent is a dated occurrence associated with a lead.
type TimelineEvent struct {
	Type        EventType
	Title       string
	Description string
	Date        time.Time
	Detail      EventDetail
}

// EventDetail carries the per-kind metadata of a timeline event.
// The set of implementations is closed; see the variants below.
type EventDetail interface {
	eventType() EventType
}

// EmailDetail is the metadata of an email event.
type EmailDetail struct {
	Sender     string
	Subject    string
	IsFromLead bool
}

// StatusChangeDetail is the metadata of a lead status change.
type StatusChangeDetail struct {
	OldStatus string
	NewStatus string
}

// ScoreUpdateDetail is the metadata of a lead score change.
type ScoreUpdateDetail struct {
	OldScore *float64 // nil when the previous score is unknown
	NewScore float64
}

// BehaviorAnalysisDetail is the metadata of a recorded behavior analysis.
type BehaviorAnalysisDetail struct {
	AnalysisType string
	Confidence   *float64
}

// OpportunityDetail is the metadata of an opportunity event.
type OpportunityDetail struct {
	Name   string
	Stage  string
	Amount *float64
}

// TaskDetail is the metadata of a task event.
type TaskDetail struct {
	Status  string
	DueDate time.Time
}

// ScheduleDetail is the metadata of a scheduled item.
type ScheduleDetail struct {
	StartTime time.Time
	EndTime   time.Time
	Location  string
}

// GenericDetail holds the raw metadata of an event kind this client
// does not know about.
type GenericDetail struct {
	Kind     EventType
	Metadata map[string]any
}

func (EmailDetail) eventType() EventType            { return EventEmail }
func (StatusChangeDetail) eventType() EventType     { return EventStatusChange }
func (ScoreUpdateDetail) eventType() EventType      { return EventScoreUpdate }
func (BehaviorAnalysisDetail) eventType() EventType { return EventBehaviorAnalysis }
func (OpportunityDetail) eventType() EventType      { return EventOpportunity }
func (TaskDetail) eventType() EventType             { return EventTask }
func (ScheduleDetail) eventType() EventType         { return EventSchedule }
func (d GenericDetail) eventType() EventType        { return d.Kind }

// KindOf returns the event type implied by a detail value.
func KindOf(d EventDetail) EventType {
	if d == nil {
		return ""
	}
	return d.eventType()
}
