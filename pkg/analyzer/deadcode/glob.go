package deadcode

import (
	"regexp"
	"strings"
)

// GlobToRegexp translates a glob into an anchored regular expression:
// "*" matches any run of characters, "?" one character and "." is literal.
// Other regexp metacharacters are passed through unchanged.
func GlobToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("$")
	expr := b.String()
	for strings.Contains(expr, ".*.*") {
		expr = strings.ReplaceAll(expr, ".*.*", ".*")
	}
	return expr
}

// globMatcher is a compiled glob. A pattern that fails to compile matches
// nothing.
type globMatcher struct {
	pattern string
	re      *regexp.Regexp
}

func compileGlobs(patterns []string, onError func(pattern string, err error)) []globMatcher {
	out := make([]globMatcher, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(GlobToRegexp(p))
		if err != nil {
			if onError != nil {
				onError(p, err)
			}
			out = append(out, globMatcher{pattern: p})
			continue
		}
		out = append(out, globMatcher{pattern: p, re: re})
	}
	return out
}

func (m globMatcher) match(s string) bool {
	return m.re != nil && m.re.MatchString(s)
}

func matchAny(ms []globMatcher, s string) bool {
	for _, m := range ms {
		if m.match(s) {
			return true
		}
	}
	return false
}
