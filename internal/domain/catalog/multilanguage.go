// Package catalog models the versioned font content a publisher endpoint
// serves: foundries, families, fonts, versions and the endpoint's own
// metadata. The types mirror the JSON wire format field for field.
package catalog

import (
	"sort"

	"golang.org/x/text/language"
)

// MultiLanguageText holds a text in one or more languages, keyed by
// ISO 639-1 code ("en", "de", ...).
type MultiLanguageText map[string]string

// Text resolves the best entry for the given locale preference list using
// BCP 47 matching. Falls back to English, then to any deterministic entry.
func (t MultiLanguageText) Text(locales []string) string {
	if len(t) == 0 {
		return ""
	}

	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]language.Tag, 0, len(keys))
	tagKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		tag, err := language.Parse(k)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		tagKeys = append(tagKeys, k)
	}

	if len(tags) > 0 {
		desired := make([]language.Tag, 0, len(locales))
		for _, l := range locales {
			if tag, err := language.Parse(l); err == nil {
				desired = append(desired, tag)
			}
		}
		if len(desired) > 0 {
			_, idx, conf := language.NewMatcher(tags).Match(desired...)
			if conf > language.No {
				return t[tagKeys[idx]]
			}
		}
	}

	if v, ok := t["en"]; ok {
		return v
	}
	return t[keys[0]]
}

// Empty reports whether no language carries a non-empty text.
func (t MultiLanguageText) Empty() bool {
	for _, v := range t {
		if v != "" {
			return false
		}
	}
	return true
}
