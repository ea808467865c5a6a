package gazetteer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/rights-monitor/backend/internal/storage/models"
)

// Matcher finds district names that occur verbatim in a text.
type Matcher struct {
	entries []entry
}

type entry struct {
	name   string
	needle string
}

func NewMatcher(districts []models.District) *Matcher {
	entries := make([]entry, 0, len(districts))
	for _, d := range districts {
		needle := fold(d.Name)
		if needle == "" {
			continue
		}
		entries = append(entries, entry{name: d.Name, needle: needle})
	}
	return &Matcher{entries: entries}
}

// Match returns, in gazetteer order, each district name found in text as a
// whole word, ignoring case. A name listed under several municipalities is
// returned once.
func (m *Matcher) Match(text string) []string {
	haystack := fold(text)
	seen := make(map[string]bool)
	matches := []string{}

	for _, e := range m.entries {
		if seen[e.name] {
			continue
		}
		if containsWord(haystack, e.needle) {
			seen[e.name] = true
			matches = append(matches, e.name)
		}
	}

	return matches
}

func (m *Matcher) Len() int {
	return len(m.entries)
}

// fold lowercases s in NFC so composed and decomposed accents compare equal.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

func containsWord(text, word string) bool {
	start := 0
	for start <= len(text) {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)

		if boundaryBefore(text, i) && boundaryAfter(text, end) {
			return true
		}

		_, size := utf8.DecodeRuneInString(text[i:])
		start = i + size
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
