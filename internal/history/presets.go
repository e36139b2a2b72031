package history

import (
	"sort"

	"github.com/wesm/leadhistory/internal/i18n"
)

// FilterPreset is a named set of list-filter form values.
type FilterPreset struct {
	Name    string            `json:"name"`
	Filters map[string]string `json:"filters"`
}

// Label returns the localized display name of a built-in preset, or the
// preset name for user-defined ones.
func (p FilterPreset) Label() string {
	switch p.Name {
	case "today":
		return i18n.T("preset.today", "Today")
	case "pending":
		return i18n.T("preset.pending", "Pending")
	case "this_week":
		return i18n.T("preset.this_week", "This week")
	}
	return p.Name
}

// BuiltinPresets returns the presets offered on every list view.
func BuiltinPresets() []FilterPreset {
	return []FilterPreset{
		{Name: "today", Filters: map[string]string{"date_range": "today", "status": ""}},
		{Name: "pending", Filters: map[string]string{"status": "Pending", "date_range": ""}},
		{Name: "this_week", Filters: map[string]string{"date_range": "week", "status": ""}},
	}
}

// ApplyPreset overlays a preset onto form values and returns the result.
// Keys the preset sets to "" are cleared.
func ApplyPreset(values map[string]string, p FilterPreset) map[string]string {
	out := make(map[string]string, len(values)+len(p.Filters))
	for k, v := range values {
		out[k] = v
	}
	for k, v := range p.Filters {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// FilterTag is one active filter shown above a list.
type FilterTag struct {
	Key   string
	Label string
	Value string
}

// ActiveFilterTags returns a tag for every non-empty filter value except
// sort order and page, ordered by key.
func ActiveFilterTags(values map[string]string) []FilterTag {
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if v == "" || k == "sort_order" || k == "page" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]FilterTag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, FilterTag{Key: k, Label: filterLabel(k), Value: values[k]})
	}
	return tags
}

func filterLabel(key string) string {
	switch key {
	case "status":
		return i18n.T("filter.status", "Status")
	case "date_range":
		return i18n.T("filter.date_range", "Period")
	case "lead_search":
		return i18n.T("filter.lead_search", "Lead search")
	case "date_from":
		return i18n.T("filter.date_from", "From")
	case "date_to":
		return i18n.T("filter.date_to", "To")
	}
	return key
}

// ClampNonNegative clamps numeric filter inputs such as amounts at zero.
func ClampNonNegative(n float64) float64 {
	if n < 0 {
		return 0
	}
	return n
}
