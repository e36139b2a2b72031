package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/wesm/leadhistory/internal/history"
	"github.com/wesm/leadhistory/internal/i18n"
	"github.com/wesm/leadhistory/internal/view"
)

// padRight pads a string with spaces to fill width terminal cells.
// Uses lipgloss.Width to correctly handle ANSI codes and full-width characters.
func padRight(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-sw)
}

// padLeft right-aligns s within width terminal cells.
func padLeft(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return strings.Repeat(" ", width-sw) + s
}

// truncateRunes truncates a string to fit within maxWidth terminal cells.
// Newlines and tabs are flattened so the result stays on one line.
func truncateRunes(s string, maxWidth int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")

	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// wrapText wraps text to fit within width terminal cells, preferring to
// break at spaces. Full-width characters count as two cells.
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 80
	}

	var result []string
	for _, line := range strings.Split(text, "\n") {
		if runewidth.StringWidth(line) <= width {
			result = append(result, line)
			continue
		}

		runes := []rune(line)
		for len(runes) > 0 {
			currentWidth := 0
			breakAt := 0
			lastSpace := -1

			for i, r := range runes {
				rw := runewidth.RuneWidth(r)
				if currentWidth+rw > width {
					break
				}
				currentWidth += rw
				breakAt = i + 1
				if r == ' ' {
					lastSpace = i
				}
			}

			if lastSpace > breakAt/2 && breakAt < len(runes) {
				breakAt = lastSpace
			}
			if breakAt == 0 {
				breakAt = 1
			}

			result = append(result, string(runes[:breakAt]))
			runes = runes[breakAt:]
			for len(runes) > 0 && runes[0] == ' ' {
				runes = runes[1:]
			}
		}
	}
	return result
}

// centered renders label between rule characters across width cells.
func centered(label string, width int) string {
	label = " " + label + " "
	side := (width - runewidth.StringWidth(label)) / 2
	if side < 2 {
		return label
	}
	rule := strings.Repeat("─", side)
	return padRight(rule+label+rule, width)
}

// bubbleWidth is the share of the pane a single message may occupy.
func bubbleWidth(width int) int {
	w := width * 3 / 4
	if w < 20 {
		w = width
	}
	return w
}

// MessagesText renders the message pane for a terminal of the given width.
// Messages from the lead sit on the left and outgoing messages on the
// right, with a rule marking each new day.
func MessagesText(p history.MessagesPane, loc *time.Location, width int) string {
	v := view.Messages(p, loc)
	var sb strings.Builder

	if v.ShowError {
		sb.WriteString(errorStyle.Render(v.Error))
		sb.WriteString("\n")
		sb.WriteString(hintStyle.Render("r " + i18n.T("analysis.retry", "Retry")))
		return sb.String()
	}
	if v.Empty {
		return emptyStyle.Render(i18n.T("messages.empty", "No messages"))
	}

	bw := bubbleWidth(width)
	for _, n := range v.Nodes {
		if n.Kind == view.NodeSeparator {
			sb.WriteString(separatorStyle.Render(centered(n.Date, width)))
			sb.WriteString("\n")
			continue
		}
		b := n.Bubble
		header := b.Sender + "  " + b.Time
		if !b.FromLead {
			header = b.Time + "  ✓✓"
			if b.Sender != "" {
				header = b.Sender + "  " + header
			}
		}
		lines := wrapText(b.Content, bw-2)
		if b.FromLead {
			sb.WriteString(metaStyle.Render(truncateRunes(header, width)))
			sb.WriteString("\n")
			for _, l := range lines {
				sb.WriteString(leadBubbleStyle.Render("│ " + l))
				sb.WriteString("\n")
			}
		} else {
			sb.WriteString(metaStyle.Render(padLeft(truncateRunes(header, width), width)))
			sb.WriteString("\n")
			for _, l := range lines {
				sb.WriteString(padLeft(systemBubbleStyle.Render(l+" │"), width))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}

	if v.Loading {
		sb.WriteString(loadingStyle.Render(i18n.T("messages.loading", "Loading messages...")))
		sb.WriteString("\n")
	}
	if v.LoadMore {
		sb.WriteString(hintStyle.Render("m " + i18n.T("messages.load_more", "Load more")))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// TimelineText renders the timeline pane, newest events first.
func TimelineText(p history.TimelinePane, loc *time.Location, width int) string {
	v := view.Timeline(p, loc)
	switch {
	case v.Error != "":
		return errorStyle.Render(v.Error)
	case v.Loading && len(v.Nodes) == 0:
		return loadingStyle.Render(i18n.T("timeline.loading", "Loading..."))
	case v.Empty:
		return emptyStyle.Render(i18n.T("timeline.empty", "No events to show in the timeline"))
	}

	var sb strings.Builder
	for _, n := range v.Nodes {
		if n.Kind == view.NodeSeparator {
			sb.WriteString(dateHeaderStyle.Render(n.Date))
			sb.WriteString("\n")
			continue
		}
		e := n.Event
		glyph := lipgloss.NewStyle().Foreground(lipgloss.Color(e.Style.Color)).Render(e.Style.Glyph)
		title := truncateRunes(e.Title, width-len(e.Time)-6)
		sb.WriteString(fmt.Sprintf("%s %s  %s\n", glyph, titleStyle.Render(title), metaStyle.Render(e.Time)))
		for _, l := range wrapText(e.Description, width-4) {
			sb.WriteString("    " + l + "\n")
		}
		for _, f := range e.Metadata {
			sb.WriteString(metaStyle.Render(truncateRunes(fmt.Sprintf("    %s: %s", f.Label, f.Value), width)))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// AnalysisText renders the behavior analysis panel.
func AnalysisText(p history.AnalysisPane, width int) string {
	v := view.Analysis(p)
	switch {
	case v.Running:
		return loadingStyle.Render(i18n.T("analysis.running", "Analyzing..."))
	case v.Error != "":
		s := errorStyle.Render(v.Error)
		if v.Retryable {
			s += "\n" + hintStyle.Render("r "+i18n.T("analysis.retry", "Retry"))
		}
		return s
	case len(v.Sections) == 0:
		return hintStyle.Render("a " + i18n.T("analysis.start", "Analyze behavior"))
	}

	var sb strings.Builder
	for _, s := range v.Sections {
		sb.WriteString(sectionStyle.Render(s.Title))
		sb.WriteString("\n")
		labelWidth := 0
		for _, f := range s.Fields {
			labelWidth = max(labelWidth, runewidth.StringWidth(f.Label))
		}
		for _, f := range s.Fields {
			sb.WriteString("  " + metaStyle.Render(runewidth.FillRight(f.Label, labelWidth)) + "  " + f.Value + "\n")
		}
		for _, item := range s.Items {
			lines := wrapText(item, width-4)
			for i, l := range lines {
				prefix := "    "
				if i == 0 {
					prefix = "  • "
				}
				sb.WriteString(prefix + l + "\n")
			}
		}
		if s.Text != "" {
			for _, l := range wrapText(s.Text, width-2) {
				sb.WriteString("  " + l + "\n")
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// LeadText renders the one-line lead panel, or "" before lead data arrives.
func LeadText(l *history.Lead, width int) string {
	info := view.LeadPanel(l)
	if info == nil {
		return ""
	}
	parts := []string{titleStyle.Render(info.Name)}
	if info.Email != "" {
		parts = append(parts, info.Email)
	}
	if info.Status != "" {
		parts = append(parts, "["+info.Status+"]")
	}
	return ansi.Truncate(strings.Join(parts, "  "), width, "…")
}
