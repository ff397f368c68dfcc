// Package namematch finds the guild member a player most likely meant when
// the typed name does not match any username exactly.
//
// Candidates are first filtered by Double Metaphone overlap with the query
// and ranked by Jaro-Winkler similarity. A candidate with no phonetic overlap
// can still win, but only above a stricter threshold. Names are compared
// case-insensitively with common separators ('_', '.', '-') treated as spaces.
package namematch

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum similarity for candidates that share
// a phonetic code with the query.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum similarity for candidates without any
// phonetic overlap.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with default thresholds of 0.80 (phonetic) and 0.90
// (fuzzy).
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Result is the outcome of [Matcher.Best].
type Result struct {
	// Index is the position of the winning name in the candidate slice.
	Index int
	Name  string
	Score float64

	// Phonetic is set when the winner shared a Double Metaphone code with
	// the query.
	Phonetic bool
}

// Best returns the candidate closest to query. ok is false when no candidate
// clears its threshold. Exact case-insensitive matches score 1 and always
// win.
func (m *Matcher) Best(query string, names []string) (res Result, ok bool) {
	q := normalize(query)
	if q == "" || len(names) == 0 {
		return Result{}, false
	}
	qTokens := strings.Fields(q)
	qCodes := codes(qTokens)

	res.Index = -1
	for i, name := range names {
		n := normalize(name)
		if n == "" {
			continue
		}
		if n == q {
			return Result{Index: i, Name: name, Score: 1, Phonetic: true}, true
		}
		nTokens := strings.Fields(n)
		score := similarity(qTokens, nTokens, q, n)
		phonetic := overlaps(qCodes, codes(nTokens))

		switch {
		case phonetic && score >= m.phoneticThreshold:
			if !res.Phonetic || score > res.Score {
				res = Result{Index: i, Name: name, Score: score, Phonetic: true}
			}
		case !phonetic && !res.Phonetic && score >= m.fuzzyThreshold && score > res.Score:
			res = Result{Index: i, Name: name, Score: score}
		}
	}
	if res.Index < 0 {
		return Result{}, false
	}
	return res, true
}

var separators = strings.NewReplacer("_", " ", ".", " ", "-", " ")

func normalize(s string) string {
	return strings.Join(strings.Fields(separators.Replace(strings.ToLower(s))), " ")
}

// codes returns the union of primary and secondary Double Metaphone codes.
func codes(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			out[p] = struct{}{}
		}
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score over the full strings and, for
// multi-word names, the strings with spaces removed. Per-token pairs are not
// compared: a shared first name alone must not select a member.
func similarity(qTokens, nTokens []string, q, n string) float64 {
	score := matchr.JaroWinkler(q, n, false)
	if len(qTokens) > 1 || len(nTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(qTokens, ""), strings.Join(nTokens, ""), false); s > score {
			score = s
		}
	}
	return score
}
