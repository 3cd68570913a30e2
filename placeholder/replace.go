package placeholder

import (
	"strings"
)

// Replace substitutes every known token in text with its value from data.
// Missing fields become empty strings; unknown tokens are left untouched.
func Replace(text string, data Data) string {
	if text == "" {
		return text
	}
	return NewReplacer(data).Replace(text)
}

// NewReplacer builds a single-pass literal replacer for data. The rules are
// derived from the catalog so they cannot drift from it.
func NewReplacer(data Data) *strings.Replacer {
	pairs := make([]string, 0, len(catalog)*2)
	for _, def := range catalog {
		pairs = append(pairs, def.Key, data.Get(def.Field()))
	}
	return strings.NewReplacer(pairs...)
}
