package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/wesm/leadhistory/internal/history"
	"github.com/wesm/leadhistory/internal/i18n"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// templateFuncs provides helper functions available in templates.
var templateFuncs = template.FuncMap{
	// trusted marks server-supplied message markup as safe
	"trusted": func(s string) template.HTML {
		return template.HTML(s)
	},
	// br escapes s and turns newlines into <br>
	"br": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
	"t": i18n.T,
}

var templates = template.Must(
	template.New("history").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.tmpl"),
)

// MessagesView is the template data of the message pane.
type MessagesView struct {
	Nodes     []MessageNode
	Loading   bool
	ShowError bool
	Error     string
	Empty     bool
	LoadMore  bool
}

// TimelineView is the template data of the timeline pane.
type TimelineView struct {
	Nodes   []TimelineNode
	Loading bool
	Error   string
	Empty   bool
}

// AnalysisView is the template data of the analysis panel.
type AnalysisView struct {
	Running   bool
	Error     string
	Retryable bool
	Sections  []AnalysisSection
}

// PageView is the template data of the whole history view.
type PageView struct {
	LeadID   string
	Lead     *LeadInfo
	Messages MessagesView
	Timeline TimelineView
	Analysis AnalysisView
}

// Messages builds the message pane view. An error replaces the list
// unless a retry is already loading.
func Messages(p history.MessagesPane, loc *time.Location) MessagesView {
	v := MessagesView{
		Loading:  p.Loading,
		LoadMore: p.LoadMoreVisible && !p.Loading,
	}
	if p.Error != "" && !p.Loading {
		v.ShowError = true
		v.Error = p.Error
		return v
	}
	v.Nodes = MessageNodes(p.Messages, loc)
	v.Empty = len(p.Messages) == 0 && !p.Loading
	return v
}

// Timeline builds the timeline pane view.
func Timeline(p history.TimelinePane, loc *time.Location) TimelineView {
	return TimelineView{
		Nodes:   TimelineNodes(p.Events, loc),
		Loading: p.Loading,
		Error:   p.Error,
		Empty:   p.Empty(),
	}
}

// Analysis builds the analysis panel view.
func Analysis(p history.AnalysisPane) AnalysisView {
	return AnalysisView{
		Running:   p.Running,
		Error:     p.Error,
		Retryable: p.Retryable,
		Sections:  AnalysisSections(p.Result),
	}
}

// Page builds the view of a whole snapshot.
func Page(s history.Snapshot, loc *time.Location) PageView {
	return PageView{
		LeadID:   s.LeadID,
		Lead:     LeadPanel(s.Lead),
		Messages: Messages(s.Messages, loc),
		Timeline: Timeline(s.Timeline, loc),
		Analysis: Analysis(s.Analysis),
	}
}

func render(w io.Writer, name string, data any) error {
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

// RenderPage writes the full history view as an HTML fragment.
func RenderPage(w io.Writer, s history.Snapshot, loc *time.Location) error {
	return render(w, "page", Page(s, loc))
}

// RenderMessages writes the message pane as an HTML fragment.
func RenderMessages(w io.Writer, p history.MessagesPane, loc *time.Location) error {
	return render(w, "messages", Messages(p, loc))
}

// RenderTimeline writes the timeline pane as an HTML fragment.
func RenderTimeline(w io.Writer, p history.TimelinePane, loc *time.Location) error {
	return render(w, "timeline", Timeline(p, loc))
}

// RenderAnalysis writes the analysis panel as an HTML fragment.
func RenderAnalysis(w io.Writer, p history.AnalysisPane) error {
	return render(w, "analysis", Analysis(p))
}
