// Package lexicon rewrites interviewer text into forms the speech engines
// pronounce correctly, e.g. "SQL => sequel".
package lexicon

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const separator = "=>"

// Lexicon applies whole-word, case-insensitive substitutions in one pass.
// Replacements are never rewritten again.
type Lexicon struct {
	spoken  map[string]string
	pattern *regexp.Regexp
}

// Load reads a lexicon file. A missing or unset path yields an empty lexicon.
func Load(path string) (*Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil), nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("failed to read lexicon %q: %w", path, err)
	}

	lex, err := Parse(string(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %q: %w", path, err)
	}
	return lex, nil
}

// Parse compiles "term => spoken" lines. Blank lines and # comments are
// skipped; a later line for the same term wins.
func Parse(contents string) (*Lexicon, error) {
	terms := map[string]string{}
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		term, spoken, ok := strings.Cut(line, separator)
		term = strings.TrimSpace(term)
		if !ok || term == "" {
			return nil, fmt.Errorf("line %d: expected 'term %s spoken form'", index+1, separator)
		}
		terms[strings.ToLower(term)] = strings.TrimSpace(spoken)
	}
	return New(terms), nil
}

// New builds a lexicon from a term to spoken form map.
func New(terms map[string]string) *Lexicon {
	lex := &Lexicon{spoken: make(map[string]string, len(terms))}
	keys := make([]string, 0, len(terms))
	for term, spoken := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, seen := lex.spoken[key]; !seen {
			keys = append(keys, key)
		}
		lex.spoken[key] = strings.TrimSpace(spoken)
	}
	if len(keys) == 0 {
		return lex
	}

	// Longer terms first so "c++" wins over "c".
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, key := range keys {
		quoted[i] = regexp.QuoteMeta(key)
	}
	lex.pattern = regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
	return lex
}

// Len returns the number of terms.
func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}
	return len(l.spoken)
}

// Rewrite returns text with every known whole-word term replaced by its
// spoken form.
func (l *Lexicon) Rewrite(text string) string {
	if l == nil || l.pattern == nil || text == "" {
		return text
	}

	matches := l.pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, m := range matches {
		if !wordBoundary(text, m[0], m[1]) {
			continue
		}
		out.WriteString(text[last:m[0]])
		out.WriteString(l.spoken[strings.ToLower(text[m[0]:m[1]])])
		last = m[1]
	}
	out.WriteString(text[last:])
	return out.String()
}

func wordBoundary(text string, start int, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) && isWordRune(firstRune(text[start:end])) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		last, _ := utf8.DecodeLastRuneInString(text[start:end])
		if isWordRune(r) && isWordRune(last) {
			return false
		}
	}
	return true
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
