package i18n

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// DateLabel formats the calendar date of t for date separators and
// timeline headers, e.g. "2024年1月1日" or "January 1, 2024".
func DateLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	base, _ := Language().Base()
	if base == japanese {
		return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
	}
	return t.Format("January 2, 2006")
}

// ShortDate formats t as a numeric date ("2024/01/01" in Japanese,
// "2024-01-01" otherwise).
func ShortDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	base, _ := Language().Base()
	if base == japanese {
		return t.Format("2006/01/02")
	}
	return t.Format("2006-01-02")
}

// ClockTime formats the time of day shown next to a message or event.
func ClockTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}

var japanese, _ = language.Japanese.Base()
