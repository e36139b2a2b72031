// Package i18n provides localized UI strings for leadhistory.
//
// Usage:
//
//	i18n.Init("ja")                                           // at startup
//	i18n.T("timeline.empty", "No events to show")             // simple string
//	i18n.Tf("analysis.http_error", "failed (HTTP %d)", code)  // with fmt args
package i18n

import (
	"embed"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	current   language.Tag = language.English
	mu        sync.RWMutex
)

// Init initializes the localizer for the given language tag.
// Unknown languages fall back to English. Safe to call more than once.
func Init(lang string) {
	mu.Lock()
	defer mu.Unlock()

	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, _ := localeFS.ReadDir("locales")
	for _, e := range entries {
		_, _ = bundle.LoadMessageFileFS(localeFS, "locales/"+e.Name())
	}

	localizer = i18n.NewLocalizer(bundle, lang, "en")

	current = language.English
	if tag, err := language.Parse(lang); err == nil {
		matcher := language.NewMatcher(bundle.LanguageTags())
		_, idx, conf := matcher.Match(tag)
		if conf != language.No {
			current = bundle.LanguageTags()[idx]
		}
	}
}

// Language returns the active language after fallback.
func Language() language.Tag {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// T returns the localized string for id, or defaultMsg when no
// translation exists or Init has not been called.
func T(id string, defaultMsg string) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()

	if l == nil {
		return defaultMsg
	}

	s, err := l.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:    id,
			Other: defaultMsg,
		},
	})
	if err != nil {
		return defaultMsg
	}
	return s
}

// Tf returns the localized string with fmt.Sprintf-style formatting.
func Tf(id string, defaultMsg string, args ...any) string {
	return fmt.Sprintf(T(id, defaultMsg), args...)
}

// ResolveLocale determines the active locale.
// Priority: LEADHISTORY_LANG > configLang > LC_ALL > LANG > "en"
func ResolveLocale(configLang string) string {
	if v := os.Getenv("LEADHISTORY_LANG"); v != "" {
		return v
	}
	if configLang != "" {
		return configLang
	}
	if v := os.Getenv("LC_ALL"); v != "" && v != "C" && v != "POSIX" {
		return normalizeLocale(v)
	}
	if v := os.Getenv("LANG"); v != "" && v != "C" && v != "POSIX" {
		return normalizeLocale(v)
	}
	return "en"
}

// normalizeLocale converts POSIX locale format to BCP 47.
// e.g., "ja_JP.UTF-8" -> "ja-JP"
func normalizeLocale(posix string) string {
	for i, c := range posix {
		if c == '.' || c == '@' {
			posix = posix[:i]
			break
		}
	}
	result := []byte(posix)
	for i := range result {
		if result[i] == '_' {
			result[i] = '-'
		}
	}
	return string(result)
}
