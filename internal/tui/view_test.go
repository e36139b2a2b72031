package tui

import (
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/wesm/leadhistory/internal/history"
	"github.com/wesm/leadhistory/internal/testutil"
	"github.com/wesm/leadhistory/internal/testutil/ptr"
)

// ansiStart is the escape sequence prefix found in styled terminal output.
const ansiStart = "\x1b["

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestMessagesText(t *testing.T) {
	p := history.MessagesPane{
		Messages: []history.Message{
			{ID: 1, Content: "Hello", Sender: "Taro", ReceivedDate: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), IsFromLead: true},
			{ID: 2, Content: "Thanks for reaching out", Sender: "Sales", ReceivedDate: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)},
		},
		LoadMoreVisible: true,
	}
	out := stripANSI(MessagesText(p, time.UTC, 60))

	testutil.AssertContainsAll(t, out, "January 1, 2024", "January 2, 2024", "│ Hello", "Thanks for reaching out │", "✓✓", "m Load more")
	// Outgoing messages are right-aligned.
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Thanks for reaching out") && runewidth.StringWidth(line) != 60 {
			t.Errorf("outgoing line width = %d, want 60: %q", runewidth.StringWidth(line), line)
		}
	}
}

func TestMessagesTextStates(t *testing.T) {
	tests := []struct {
		name    string
		pane    history.MessagesPane
		want    string
		notWant string
	}{
		{"empty", history.MessagesPane{}, "No messages", "Load more"},
		{"error replaces list", history.MessagesPane{
			Messages: []history.Message{{ID: 1, Content: "hidden", ReceivedDate: time.Now()}},
			Error:    "Failed to load messages. Please try again.",
		}, "Failed to load messages. Please try again.", "hidden"},
		{"loading", history.MessagesPane{Loading: true, LoadMoreVisible: true}, "Loading messages...", "Load more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := stripANSI(MessagesText(tt.pane, time.UTC, 60))
			testutil.AssertContainsAll(t, out, tt.want)
			testutil.AssertContainsNone(t, out, tt.notWant)
		})
	}
}

func TestTimelineText(t *testing.T) {
	p := history.TimelinePane{
		Loaded: true,
		Events: []history.TimelineEvent{
			{
				Type:   history.EventScoreUpdate,
				Title:  "Score changed",
				Date:   time.Date(2024, 3, 2, 15, 4, 0, 0, time.UTC),
				Detail: history.ScoreUpdateDetail{OldScore: ptr.Float64(40), NewScore: 1250},
			},
			{
				Type:  history.EventType("note"),
				Title: "Note added",
				Date:  time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			},
		},
	}
	out := stripANSI(TimelineText(p, time.UTC, 80))

	testutil.AssertContainsAll(t, out, "Score changed", "Previous score: 40", "Score: 1,250", "Note added", "No details")
	if strings.Index(out, "Score changed") > strings.Index(out, "Note added") {
		t.Error("events should keep newest-first order")
	}
}

func TestTimelineTextStates(t *testing.T) {
	if out := stripANSI(TimelineText(history.TimelinePane{Loaded: true}, time.UTC, 80)); !strings.Contains(out, "No events to show in the timeline") {
		t.Errorf("empty timeline = %q", out)
	}
	if out := stripANSI(TimelineText(history.TimelinePane{Loading: true}, time.UTC, 80)); !strings.Contains(out, "Loading...") {
		t.Errorf("loading timeline = %q", out)
	}
	if out := stripANSI(TimelineText(history.TimelinePane{Error: "Failed to retrieve data"}, time.UTC, 80)); out != "Failed to retrieve data" {
		t.Errorf("error timeline = %q", out)
	}
}

func TestAnalysisText(t *testing.T) {
	p := history.AnalysisPane{Result: &history.Analysis{
		Communication: history.CommunicationPatterns{Frequency: "weekly"},
		Interests:     []string{"pricing"},
		Summary:       "Warm lead.",
	}}
	out := stripANSI(AnalysisText(p, 60))

	testutil.AssertContainsAll(t, out, "Communication pattern", "Frequency", "weekly", "Unknown", "Interests", "• pricing", "Summary", "Warm lead.")
	// Empty sections are omitted.
	testutil.AssertContainsNone(t, out, "Risk factors")
}

func TestAnalysisTextStates(t *testing.T) {
	tests := []struct {
		name string
		pane history.AnalysisPane
		want []string
	}{
		{"idle", history.AnalysisPane{}, []string{"a Analyze behavior"}},
		{"running", history.AnalysisPane{Running: true}, []string{"Analyzing..."}},
		{"retryable", history.AnalysisPane{Error: "Lead not found", Retryable: true}, []string{"Lead not found", "r Retry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := stripANSI(AnalysisText(tt.pane, 60))
			testutil.AssertContainsAll(t, out, tt.want...)
		})
	}
}

func TestLeadText(t *testing.T) {
	if got := LeadText(nil, 80); got != "" {
		t.Errorf("LeadText(nil) = %q, want empty", got)
	}
	got := stripANSI(LeadText(&history.Lead{Email: "a@example.com"}, 80))
	if got != "No name  a@example.com" {
		t.Errorf("LeadText = %q", got)
	}
}

func TestStyledOutputHasANSI(t *testing.T) {
	forceColorProfile(t)
	out := AnalysisText(history.AnalysisPane{Error: "Lead not found"}, 60)
	if !strings.Contains(out, ansiStart) {
		t.Errorf("expected styled output, got %q", out)
	}
	if stripANSI(out) != "Lead not found" {
		t.Errorf("stripped = %q", stripANSI(out))
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"fits", "hello", 10, []string{"hello"}},
		{"breaks at space", "hello brave world", 11, []string{"hello brave", "world"}},
		{"full width", "日本語テキスト", 6, []string{"日本語", "テキス", "ト"}},
		{"keeps newlines", "a\nb", 10, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertStrings(t, wrapText(tt.text, tt.width), tt.want...)
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("line one\nline two", 100); got != "line one line two" {
		t.Errorf("newlines not flattened: %q", got)
	}
	if got := truncateRunes("abcdefghij", 6); got != "abc..." {
		t.Errorf("truncateRunes = %q, want abc...", got)
	}
	if got := truncateRunes("日本語", 4); runewidth.StringWidth(got) > 4 {
		t.Errorf("truncateRunes width = %d, want <= 4", runewidth.StringWidth(got))
	}
}
