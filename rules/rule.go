package rules

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/AdguardTeam/dnrconverter/internal/ufnet"
	"github.com/AdguardTeam/golibs/errors"
)

// RuleSyntaxError represents an error while parsing a filtering rule
type RuleSyntaxError struct {
	msg      string
	ruleText string
}

// type check
var _ error = (*RuleSyntaxError)(nil)

// Error implements the [error] interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s, rule: %s", e.msg, e.ruleText)
}

var cosmeticRulesMarkers = []string{
	// HTML filtering
	"$$", "$@$",
	// Script rules
	"#%#", "#@%#",
	// Element hiding rules
	"##", "#@#",
	// CSS injection
	"#$#", "#@$#",
	// ExtCSS hiding rules
	"#?#", "#@?#",
	// ExtCSS injection rules
	"#$?#", "#@$?#",
}

func init() {
	// This is important for "findRuleMarker" function to sort markers in this
	// order.
	slices.SortStableFunc(cosmeticRulesMarkers, func(a, b string) (res int) {
		return len(b) - len(a)
	})
}

// NewRule creates a new network filtering rule from the specified line.  It
// returns nil if the line is empty, if it is a comment, or if it is a rule of
// a kind that is not a network rule, for example a cosmetic or a hosts-file
// rule.
func NewRule(line string, filterListID int) (r *NetworkRule, err error) {
	line = strings.TrimSpace(line)

	if !IsNetworkRuleText(line) {
		return nil, nil
	}

	return NewNetworkRule(line, filterListID)
}

// IsNetworkRuleText returns true if line looks like a network rule, which
// means that it is not empty, not a comment, not a cosmetic rule, and not a
// hosts-file rule.
func IsNetworkRuleText(line string) (ok bool) {
	return line != "" &&
		!isComment(line) &&
		!isCosmetic(line) &&
		!isHostRule(line)
}

// isComment checks if the line is a comment
func isComment(line string) bool {
	if len(line) == 0 {
		return false
	}

	switch line[0] {
	case '!':
		return true
	case '[':
		// Filter list headers like [Adblock Plus 2.0].
		return strings.HasSuffix(line, "]")
	case '#':
		if len(line) == 1 {
			return true
		}

		// Now we should check that this is not a cosmetic rule
		for _, marker := range cosmeticRulesMarkers {
			if startsAtIndexWith(line, 0, marker) {
				return false
			}
		}

		return true
	}

	return false
}

// isCosmetic checks if this is a cosmetic filtering rule
func isCosmetic(line string) bool {
	return findRuleMarker(line, cosmeticRulesMarkers, '#') != "" ||
		findRuleMarker(line, cosmeticRulesMarkers, '$') != ""
}

// isHostRule checks if this is an /etc/hosts-style rule, e.g.
// "0.0.0.0 example.org".
func isHostRule(line string) (ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return false
	}

	_, err := netip.ParseAddr(fields[0])

	return err == nil
}

// findRuleMarker looks for a cosmetic rule marker in the rule text and returns
// the marker found or empty string if nothing found.
//
// markers must be sorted by length, longest first.
func findRuleMarker(ruleText string, markers []string, firstMarkerChar byte) string {
	startIndex := strings.IndexByte(ruleText, firstMarkerChar)
	if startIndex == -1 {
		return ""
	}

	for _, marker := range markers {
		if startsAtIndexWith(ruleText, startIndex, marker) {
			return marker
		}
	}

	return ""
}

// startsAtIndexWith checks if str starts with the substr at the specified
// index.
func startsAtIndexWith(str string, startIndex int, substr string) bool {
	return strings.HasPrefix(str[startIndex:], substr)
}

// loadDomains loads $domain modifier domains
// domains is the list of domains
// sep is the separator character. for network rules it is '|'.
func loadDomains(domains string, sep string) (permittedDomains []string, restrictedDomains []string, err error) {
	if domains == "" {
		return nil, nil, errors.Error("no domains specified")
	}

	list := strings.Split(domains, sep)
	for i := 0; i < len(list); i++ {
		d := list[i]
		restricted := false
		if strings.HasPrefix(d, "~") {
			restricted = true
			d = d[1:]
		}

		if !isValidDomain(d) {
			return nil, nil, fmt.Errorf("invalid domain specified: %s", domains)
		}

		if restricted {
			restrictedDomains = append(restrictedDomains, d)
		} else {
			permittedDomains = append(permittedDomains, d)
		}
	}

	return permittedDomains, restrictedDomains, nil
}

// isValidDomain returns true if d is a valid domain name, a wildcard-TLD
// domain like "example.*", or a non-ASCII domain that will be converted later.
func isValidDomain(d string) (ok bool) {
	if d == "" {
		return false
	}

	if !ufnet.IsASCII(d) {
		return !strings.ContainsAny(d, " /|,")
	}

	return ufnet.IsDomainName(d) || IsWildcardTLD(d)
}

// IsWildcardTLD returns true if d is a domain with a wildcard top-level
// domain, e.g. "example.*".
func IsWildcardTLD(d string) (ok bool) {
	return strings.HasSuffix(d, ".*") && ufnet.IsDomainName(d[:len(d)-2])
}

// httpMethods is the set of HTTP methods supported by the $method modifier.
var httpMethods = []string{
	"connect",
	"delete",
	"get",
	"head",
	"options",
	"patch",
	"post",
	"put",
}

// loadMethods loads the $method modifier value.  Methods are separated by
// '|', restricted methods start with '~'.  Permitted and restricted methods
// cannot be mixed.
func loadMethods(value string) (permitted, restricted []string, err error) {
	if value == "" {
		return nil, nil, errors.Error("no methods specified")
	}

	for _, m := range strings.Split(value, "|") {
		isRestricted := strings.HasPrefix(m, "~")
		m = strings.ToLower(strings.TrimPrefix(m, "~"))
		if !slices.Contains(httpMethods, m) {
			return nil, nil, fmt.Errorf("invalid method specified: %s", value)
		}

		if isRestricted {
			restricted = append(restricted, m)
		} else {
			permitted = append(permitted, m)
		}
	}

	if len(permitted) > 0 && len(restricted) > 0 {
		return nil, nil, fmt.Errorf("permitted and restricted methods mixed: %s", value)
	}

	return permitted, restricted, nil
}
