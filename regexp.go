package dnrconverter

import (
	"regexp"
	"strings"
)

// Heuristic limits of the regular expressions accepted by the declarative
// engine.  They are approximate: the engine rejects expressions by the size
// of the compiled program, which cannot be computed here exactly.
const (
	// MaxRegexpAlternatives is the maximum number of branches in an
	// alternation.
	MaxRegexpAlternatives = 15

	// MaxRegexpAlternativeLen is the maximum length of a single branch of an
	// alternation.
	MaxRegexpAlternativeLen = 31
)

// unsupportedRegexpSyntax are the constructs which the declarative engine does
// not support along with their descriptions.
var unsupportedRegexpSyntax = []struct {
	token  string
	reason string
}{
	{token: "(?!", reason: "negative lookahead"},
	{token: "(?=", reason: "positive lookahead"},
	{token: "(?<!", reason: "negative lookbehind"},
	{token: "(?<=", reason: "positive lookbehind"},
	{token: "(?<", reason: "named group"},
	{token: "(?P<", reason: "named group"},
}

// regexpProblem describes why a regular expression cannot be converted.
// tooComplex is true if the expression is valid but likely too complex.
type regexpProblem struct {
	reason     string
	tooComplex bool
}

// checkRegexp returns a non-nil problem if re cannot be used in a declarative
// rule.
func checkRegexp(re string) (p *regexpProblem) {
	for _, s := range unsupportedRegexpSyntax {
		if strings.Contains(re, s.token) {
			return &regexpProblem{reason: s.reason}
		}
	}

	if reason := checkRegexpTokens(re); reason != "" {
		return &regexpProblem{reason: reason}
	}

	if isTooComplexRegexp(re) {
		return &regexpProblem{tooComplex: true}
	}

	if _, err := regexp.Compile(re); err != nil {
		return &regexpProblem{reason: err.Error()}
	}

	return nil
}

// checkRegexpTokens walks re and returns the description of the first
// unsupported token: back-references, bounded quantifiers, and possessive
// quantifiers.  It returns an empty string if there are none.
func checkRegexpTokens(re string) (reason string) {
	inClass := false
	for i := 0; i < len(re); i++ {
		c := re[i]
		switch {
		case c == '\\':
			if i+1 < len(re) && re[i+1] >= '1' && re[i+1] <= '9' && !inClass {
				return "back-reference"
			}

			// Skip the escaped character.
			i++
		case inClass:
			inClass = c != ']'
		case c == '[':
			inClass = true
		case c == '{' && isBoundedQuantifier(re[i+1:]):
			return "bounded quantifier"
		case isQuantifier(c) && i+1 < len(re) && re[i+1] == '+' && i > 0:
			return "possessive quantifier"
		}
	}

	return ""
}

// isQuantifier returns true if c ends a quantifier.
func isQuantifier(c byte) (ok bool) {
	return c == '*' || c == '+' || c == '?' || c == '}'
}

// isBoundedQuantifier returns true if s, the text after an opening curly
// bracket, is the rest of a {n} or {n,m} quantifier.
func isBoundedQuantifier(s string) (ok bool) {
	end := strings.IndexByte(s, '}')
	if end <= 0 {
		return false
	}

	body := s[:end]
	for _, part := range strings.SplitN(body, ",", 2) {
		for _, c := range []byte(part) {
			if c < '0' || c > '9' {
				return false
			}
		}
	}

	return body[0] != ','
}

// isTooComplexRegexp returns true if re has an alternation with too many
// branches or with a too long branch.
func isTooComplexRegexp(re string) (ok bool) {
	branches := splitAlternation(re)
	if len(branches) < 2 {
		return false
	}

	if len(branches) > MaxRegexpAlternatives {
		return true
	}

	for _, b := range branches {
		if len(b) > MaxRegexpAlternativeLen {
			return true
		}
	}

	return false
}

// splitAlternation splits re by the unescaped vertical bars outside of
// character classes.
func splitAlternation(re string) (branches []string) {
	inClass := false
	start := 0
	for i := 0; i < len(re); i++ {
		switch c := re[i]; {
		case c == '\\':
			i++
		case inClass:
			inClass = c != ']'
		case c == '[':
			inClass = true
		case c == '|':
			branches = append(branches, re[start:i])
			start = i + 1
		}
	}

	return append(branches, re[start:])
}
