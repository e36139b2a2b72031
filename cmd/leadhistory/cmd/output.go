package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/wesm/leadhistory/internal/history"
	"github.com/wesm/leadhistory/internal/view"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatHTML = "html"
	formatJSON = "json"
)

const defaultTextWidth = 100

func validateFormat(f string) error {
	switch f {
	case formatText, formatHTML, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, html or json)", f)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// prepareText disables styling when output is not a terminal and returns
// the width to lay text out in. COLUMNS overrides the default width.
func prepareText(w io.Writer) int {
	if !isTerminal(w) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 20 {
		return n
	}
	return defaultTextWidth
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func messagesJSON(s history.Snapshot) map[string]interface{} {
	msgs := make([]map[string]interface{}, len(s.Messages.Messages))
	for i, m := range s.Messages.Messages {
		msgs[i] = map[string]interface{}{
			"id":            m.ID,
			"content":       m.Content,
			"sender":        m.Sender,
			"received_date": formatTime(m.ReceivedDate),
			"is_from_lead":  m.IsFromLead,
		}
	}
	return map[string]interface{}{
		"lead_id":  s.LeadID,
		"page":     s.Paging.CurrentPage,
		"has_more": s.Paging.HasMore,
		"messages": msgs,
	}
}

func leadJSON(l *history.Lead) map[string]interface{} {
	if l == nil {
		return nil
	}
	return map[string]interface{}{
		"id":     l.ID,
		"name":   l.Name,
		"email":  l.Email,
		"status": l.Status,
	}
}

func timelineJSON(s history.Snapshot) map[string]interface{} {
	events := make([]map[string]interface{}, len(s.Timeline.Events))
	for i, e := range s.Timeline.Events {
		meta := map[string]string{}
		for _, f := range view.EventMetadata(e.Detail) {
			meta[f.Label] = f.Value
		}
		events[i] = map[string]interface{}{
			"type":        e.Type,
			"title":       e.Title,
			"description": e.Description,
			"date":        formatTime(e.Date),
			"kind":        history.KindOf(e.Detail),
			"metadata":    meta,
		}
	}
	return map[string]interface{}{
		"lead_id":  s.LeadID,
		"lead":     leadJSON(s.Lead),
		"timeline": events,
	}
}

func analysisJSON(s history.Snapshot) map[string]interface{} {
	a := s.Analysis.Result
	if a == nil {
		return map[string]interface{}{"lead_id": s.LeadID, "analysis": nil}
	}
	return map[string]interface{}{
		"lead_id": s.LeadID,
		"analysis": map[string]interface{}{
			"communication_patterns": map[string]string{
				"frequency":        a.Communication.Frequency,
				"preferred_time":   a.Communication.PreferredTime,
				"response_time":    a.Communication.ResponseTime,
				"engagement_level": a.Communication.EngagementLevel,
			},
			"interests":           a.Interests,
			"key_points":          a.KeyPoints,
			"risk_factors":        a.RiskFactors,
			"recommended_actions": a.RecommendedActions,
			"summary":             a.Summary,
		},
	}
}
