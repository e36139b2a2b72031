package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wesm/leadhistory/internal/history"
)

// messageResponse matches the API message format. Both snake_case and
// camelCase keys are accepted for the date and direction fields.
type messageResponse struct {
	ID              int64  `json:"id"`
	Content         string `json:"content"`
	Sender          string `json:"sender"`
	ReceivedDate    string `json:"received_date"`
	ReceivedDateAlt string `json:"receivedDate"`
	IsFromLead      *bool  `json:"is_from_lead"`
	IsFromLeadAlt   *bool  `json:"isFromLead"`
}

func (m messageResponse) toMessage() history.Message {
	date := m.ReceivedDate
	if date == "" {
		date = m.ReceivedDateAlt
	}
	fromLead := m.IsFromLead
	if fromLead == nil {
		fromLead = m.IsFromLeadAlt
	}
	return history.Message{
		ID:           m.ID,
		Content:      m.Content,
		Sender:       m.Sender,
		ReceivedDate: parseTime(date),
		IsFromLead:   fromLead != nil && *fromLead,
	}
}

// messagesResponse matches the API list messages response.
type messagesResponse struct {
	Messages    json.RawMessage `json:"messages"`
	HasNext     bool            `json:"has_next"`
	HasPrev     bool            `json:"has_prev"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
}

func (r messagesResponse) toPage(requested int) (*history.MessagePage, error) {
	if !isJSONArray(r.Messages) {
		return nil, fmt.Errorf("messages: %w", ErrMalformedPayload)
	}
	var raw []messageResponse
	if err := json.Unmarshal(r.Messages, &raw); err != nil {
		return nil, fmt.Errorf("messages: %w", ErrMalformedPayload)
	}

	page := &history.MessagePage{
		Messages:    make([]history.Message, len(raw)),
		HasNext:     r.HasNext,
		HasPrev:     r.HasPrev,
		TotalPages:  r.TotalPages,
		CurrentPage: r.CurrentPage,
	}
	if page.CurrentPage == 0 {
		page.CurrentPage = requested
	}
	for i, m := range raw {
		page.Messages[i] = m.toMessage()
	}
	return page, nil
}

// eventResponse matches one timeline entry.
type eventResponse struct {
	Type        string         `json:"type"`
	Date        string         `json:"date"`
	Timestamp   float64        `json:"timestamp"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	IsFromLead  bool           `json:"is_from_lead"`
	Metadata    map[string]any `json:"metadata"`
}

type leadResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// timelineResponse matches the object form of the timeline response.
type timelineResponse struct {
	errorBody
	Timeline json.RawMessage `json:"timeline"`
	Lead     *leadResponse   `json:"lead"`
}

// decodeTimeline accepts either the {success, timeline, lead} object or a
// bare array of events.
func decodeTimeline(status int, body []byte) (*history.Timeline, error) {
	body = bytes.TrimSpace(body)
	if isJSONArray(body) {
		events, err := decodeEvents(body)
		if err != nil {
			return nil, err
		}
		return &history.Timeline{Events: events}, nil
	}

	var tr timelineResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("timeline: %w", ErrMalformedPayload)
	}
	if tr.Success != nil && !*tr.Success {
		return nil, &APIError{StatusCode: status, Message: tr.message(), Code: tr.Code}
	}
	if !isJSONArray(tr.Timeline) {
		return nil, fmt.Errorf("timeline: %w", ErrMalformedPayload)
	}
	events, err := decodeEvents(tr.Timeline)
	if err != nil {
		return nil, err
	}

	tl := &history.Timeline{Events: events}
	if tr.Lead != nil {
		tl.Lead = &history.Lead{
			ID:     tr.Lead.ID,
			Name:   tr.Lead.Name,
			Email:  tr.Lead.Email,
			Status: tr.Lead.Status,
		}
	}
	return tl, nil
}

func decodeEvents(data []byte) ([]history.TimelineEvent, error) {
	var raw []eventResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("timeline events: %w", ErrMalformedPayload)
	}
	events := make([]history.TimelineEvent, len(raw))
	for i, e := range raw {
		events[i] = e.toEvent()
	}
	return events, nil
}

func (e eventResponse) toEvent() history.TimelineEvent {
	date := parseTime(e.Date)
	if date.IsZero() && e.Timestamp > 0 {
		sec, frac := math.Modf(e.Timestamp)
		date = time.Unix(int64(sec), int64(frac*1e9))
	}
	kind := history.EventType(e.Type)
	return history.TimelineEvent{
		Type:        kind,
		Title:       e.Title,
		Description: e.Description,
		Date:        date,
		Detail:      eventDetail(kind, e.IsFromLead, metadata(e.Metadata)),
	}
}

// metadata wraps an event's loosely typed metadata object.
type metadata map[string]any

func (m metadata) str(key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func (m metadata) num(key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

func (m metadata) boolean(key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

func (m metadata) date(key string) time.Time {
	return parseTime(m.str(key))
}

func eventDetail(kind history.EventType, fromLead bool, md metadata) history.EventDetail {
	switch kind {
	case history.EventEmail:
		if v, ok := md.boolean("is_from_lead"); ok {
			fromLead = v
		}
		return history.EmailDetail{Sender: md.str("sender"), Subject: md.str("subject"), IsFromLead: fromLead}
	case history.EventStatusChange:
		return history.StatusChangeDetail{OldStatus: md.str("old_status"), NewStatus: md.str("new_status")}
	case history.EventScoreUpdate:
		d := history.ScoreUpdateDetail{OldScore: md.num("old_score")}
		if n := md.num("new_score"); n != nil {
			d.NewScore = *n
		}
		return d
	case history.EventBehaviorAnalysis:
		return history.BehaviorAnalysisDetail{AnalysisType: md.str("analysis_type"), Confidence: md.num("confidence")}
	case history.EventOpportunity:
		return history.OpportunityDetail{Name: md.str("name"), Stage: md.str("stage"), Amount: md.num("amount")}
	case history.EventTask:
		return history.TaskDetail{Status: md.str("status"), DueDate: md.date("due_date")}
	case history.EventSchedule:
		return history.ScheduleDetail{StartTime: md.date("start_time"), EndTime: md.date("end_time"), Location: md.str("location")}
	}
	if len(md) == 0 {
		return nil
	}
	return history.GenericDetail{Kind: kind, Metadata: md}
}

// flexString decodes a JSON string, number or boolean into a string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = flexString(metadata{"v": v}.str("v"))
	return nil
}

type patternsResponse struct {
	Frequency       flexString `json:"frequency"`
	PreferredTime   flexString `json:"preferred_time"`
	ResponseTime    flexString `json:"response_time"`
	EngagementLevel flexString `json:"engagement_level"`
}

type analysisData struct {
	Patterns           *patternsResponse `json:"communication_patterns"`
	Interests          []flexString      `json:"interests"`
	KeyPoints          []flexString      `json:"key_points"`
	RiskFactors        []flexString      `json:"risk_factors"`
	RecommendedActions []flexString      `json:"recommended_actions"`
	Summary            flexString        `json:"analysis_summary"`
}

// analysisResponse matches the analyze endpoint's success and error forms.
type analysisResponse struct {
	errorBody
	Data *analysisData `json:"data"`
}

func (d *analysisData) toAnalysis() *history.Analysis {
	a := &history.Analysis{
		Interests:          strs(d.Interests),
		KeyPoints:          strs(d.KeyPoints),
		RiskFactors:        strs(d.RiskFactors),
		RecommendedActions: strs(d.RecommendedActions),
		Summary:            string(d.Summary),
	}
	if p := d.Patterns; p != nil {
		a.Communication = history.CommunicationPatterns{
			Frequency:       string(p.Frequency),
			PreferredTime:   string(p.PreferredTime),
			ResponseTime:    string(p.ResponseTime),
			EngagementLevel: string(p.EngagementLevel),
		}
	}
	return a
}

func strs(in []flexString) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func isJSONArray(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '['
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

// parseTime parses the date formats the API emits. Unparseable input
// yields the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
