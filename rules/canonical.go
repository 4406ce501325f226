package rules

import (
	"strings"
)

// modifierAliases maps short or legacy modifier names to their canonical
// names.
var modifierAliases = map[string]string{
	"1p":         "first-party",
	"3p":         "third-party",
	"css":        "stylesheet",
	"doc":        "document",
	"ehide":      "elemhide",
	"frame":      "subdocument",
	"from":       "domain",
	"ghide":      "generichide",
	"queryprune": "removeparam",
	"shide":      "specifichide",
	"xhr":        "xmlhttprequest",
}

// redirectAliases maps uBlock Origin redirect resource names to their
// canonical names.
var redirectAliases = map[string]string{
	"1x1.gif":                          "1x1-transparent.gif",
	"2x2.png":                          "2x2-transparent.png",
	"32x32.png":                        "32x32-transparent.png",
	"3x2.png":                          "3x2-transparent.png",
	"amazon_apstag.js":                 "amazon-apstag",
	"fingerprint2.js":                  "fingerprintjs2",
	"google-analytics_analytics.js":    "google-analytics",
	"google-analytics_ga.js":           "google-analytics-ga",
	"google-ima.js":                    "google-ima3",
	"googlesyndication_adsbygoogle.js": "googlesyndication-adsbygoogle",
	"googletagservices_gpt.js":         "googletagservices-gpt",
	"nobab.js":                         "prevent-bab",
	"noeval.js":                        "noeval",
	"nofab.js":                         "prevent-fab-3.2.0",
	"noop-0.1s.mp3":                    "noopmp3-0.1s",
	"noop-1s.mp4":                      "noopmp4-1s",
	"noop-vmap1.0.xml":                 "noopvmap-1.0",
	"noop.css":                         "noopcss",
	"noop.html":                        "noopframe",
	"noop.js":                          "noopjs",
	"noop.txt":                         "nooptext",
	"popads.js":                        "prevent-popads-net",
	"scorecardresearch_beacon.js":      "scorecardresearch-beacon",
}

// optionAll is the $all modifier, which is expanded into several rules.
const optionAll = "all"

// Canonicalize converts a rule text into one or more rule texts in the
// canonical syntax: modifier aliases are replaced with their canonical names
// and the $all modifier is expanded into a $document rule and a rule for all
// other request types.  Lines that are not network rules are returned as is.
// If nothing has been changed, the result contains ruleText itself.
func Canonicalize(ruleText string) (converted []string, err error) {
	line := strings.TrimSpace(ruleText)
	if !IsNetworkRuleText(line) {
		return []string{ruleText}, nil
	}

	pattern, options, allowlist, err := parseRuleText(line)
	if err != nil {
		return nil, err
	}

	if options == "" {
		return []string{ruleText}, nil
	}

	parts := splitWithEscapeCharacter(options, ',', '\\', false)
	changed := false
	hasAll := false
	canonical := make([]string, 0, len(parts))
	for _, opt := range parts {
		var c string
		c, changed = canonicalizeOption(opt, changed)
		if c == optionAll {
			hasAll = true
			changed = true

			continue
		}

		canonical = append(canonical, c)
	}

	if !changed {
		return []string{ruleText}, nil
	}

	prefix := pattern
	if allowlist {
		prefix = maskAllowlist + pattern
	}

	if !hasAll {
		return []string{joinRule(prefix, canonical)}, nil
	}

	withDocument := append([]string{"document"}, canonical...)

	return []string{
		joinRule(prefix, withDocument),
		joinRule(prefix, canonical),
	}, nil
}

// canonicalizeOption returns the canonical form of a single modifier.  changed
// is set to true if the modifier has been rewritten and stays true otherwise
// if it was true already.
func canonicalizeOption(opt string, wasChanged bool) (c string, changed bool) {
	name, value, hasValue := strings.Cut(opt, "=")

	negation := ""
	if strings.HasPrefix(name, "~") {
		negation = "~"
		name = name[1:]
	}

	changed = wasChanged
	if alias, ok := modifierAliases[name]; ok {
		name = alias
		changed = true
	}

	if hasValue && (name == "redirect" || name == "redirect-rule") {
		if alias, ok := redirectAliases[value]; ok {
			value = alias
			changed = true
		}
	}

	c = negation + name
	if hasValue {
		c += "=" + value
	}

	return c, changed
}

// joinRule builds a rule text from the prefix and the options escaping the
// separators inside the option values.
func joinRule(prefix string, options []string) (ruleText string) {
	if len(options) == 0 {
		return prefix
	}

	escaped := make([]string, 0, len(options))
	for _, o := range options {
		o = strings.ReplaceAll(o, ",", `\,`)
		o = strings.ReplaceAll(o, "$", `\$`)
		escaped = append(escaped, o)
	}

	return prefix + string(optionsDelimiter) + strings.Join(escaped, ",")
}
