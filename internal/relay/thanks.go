package relay

import (
	"strings"
	"unicode"
)

// thankMatcher finds thank words in message text. Words match whole words
// case-insensitively; a trailing "*" turns a word into a prefix.
type thankMatcher struct {
	exact    map[string]struct{}
	prefixes []string
}

func newThankMatcher(words []string) *thankMatcher {
	m := &thankMatcher{exact: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if p, ok := strings.CutSuffix(w, "*"); ok {
			if p != "" {
				m.prefixes = append(m.prefixes, p)
			}
			continue
		}
		if w != "" {
			m.exact[w] = struct{}{}
		}
	}
	return m
}

// Match reports whether text contains a thank word.
func (m *thankMatcher) Match(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, ok := m.exact[w]; ok {
			return true
		}
		for _, p := range m.prefixes {
			if strings.HasPrefix(w, p) {
				return true
			}
		}
	}
	return false
}
