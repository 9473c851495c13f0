package settings

import (
	"regexp"
	"strings"
)

// TitleMatcher is a precompiled, case-insensitive matcher for SQL-LIKE style
// title patterns ("%account%", "%sales_rep%"). Patterns are compiled once at
// config parse time, not on every assignment call.
type TitleMatcher struct {
	pattern string
	re      *regexp.Regexp
}

// CompileTitlePattern converts a LIKE pattern into a TitleMatcher.
// "%" matches any run of characters and "_" any single character; everything
// else is literal.
func CompileTitlePattern(pattern string) (*TitleMatcher, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}

	return &TitleMatcher{pattern: pattern, re: re}, nil
}

// Match reports whether the agent title satisfies the pattern.
func (m *TitleMatcher) Match(title string) bool {
	return m.re.MatchString(title)
}

// Pattern returns the original LIKE pattern for audit output.
func (m *TitleMatcher) Pattern() string {
	return m.pattern
}

// MatchAny reports whether any matcher in the set matches the title.
func MatchAny(matchers []*TitleMatcher, title string) bool {
	for _, m := range matchers {
		if m.Match(title) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) ([]*TitleMatcher, error) {
	matchers := make([]*TitleMatcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := CompileTitlePattern(p)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}
