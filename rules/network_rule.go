package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	maskAllowlist    = "@@"
	maskRegexRule    = "/"
	replaceOption    = "replace"
	optionsDelimiter = '$'
	escapeCharacter  = '\\'
)

// ErrTooWideRule is returned if the rule matches all urls but has no domain,
// denyallow, or dnstype restrictions and does not modify requests.
const ErrTooWideRule errors.Error = "the rule is too wide, add domain, denyallow, " +
	"or dnstype restrictions or make it more specific"

var reEscapedOptionsDelimiter = regexp.MustCompile(regexp.QuoteMeta("\\$"))

// NetworkRuleOption is the enumeration of various rule options.  In order to
// save memory, we store some options as a flag.
type NetworkRuleOption uint64

// NetworkRuleOption enumeration
const (
	OptionThirdParty NetworkRuleOption = 1 << iota // $third-party modifier
	OptionMatchCase                                // $match-case modifier
	OptionImportant                                // $important modifier
	OptionBadfilter                                // $badfilter modifier

	// Allowlist rules modifiers
	// Each of them can disable part of the functionality

	OptionElemhide     // $elemhide modifier
	OptionGenerichide  // $generichide modifier
	OptionSpecifichide // $specifichide modifier
	OptionGenericblock // $genericblock modifier
	OptionJsinject     // $jsinject modifier
	OptionUrlblock     // $urlblock modifier
	OptionContent      // $content modifier
	OptionExtension    // $extension modifier

	// Allowlist -- specific to Stealth mode
	OptionStealth // $stealth

	// OptionDocument is the $document modifier.  For allowlist rules it
	// disables filtering on the whole page.
	OptionDocument

	// Content-modifying, deprecated in favor of $redirect
	OptionEmpty // $empty
	OptionMp4   // $mp4

	// Blocking
	OptionPopup // $popup

	// Advanced
	OptionCsp          // $csp
	OptionReplace      // $replace
	OptionCookie       // $cookie
	OptionRedirect     // $redirect
	OptionRedirectRule // $redirect-rule
	OptionRemoveParam  // $removeparam
	OptionRemoveHeader // $removeheader

	// Blocklist-only options
	OptionBlocklistOnly = OptionPopup | OptionEmpty | OptionMp4

	// Allowlist-only options
	OptionAllowlistOnly = OptionElemhide | OptionGenericblock | OptionGenerichide |
		OptionSpecifichide | OptionJsinject | OptionUrlblock | OptionContent |
		OptionExtension | OptionStealth

	// Options that require a separate merge strategy in the declarative
	// converter
	OptionAdvancedGroups = OptionRemoveParam | OptionRemoveHeader | OptionCsp
)

// NetworkRule is a basic filtering rule
// https://kb.adguard.com/en/general/how-to-create-your-own-ad-filters#basic-rules
type NetworkRule struct {
	RuleText     string // RuleText is the rule text
	Allowlist    bool   // true if this is an exception rule
	FilterListID int    // Filter list identifier

	permittedDomains  []string // a list of permitted domains from the $domain modifier
	restrictedDomains []string // a list of restricted domains from the $domain modifier
	denyAllowDomains  []string // a list of excluded domains from the $denyallow modifier

	// permittedDNSTypes is the list of permitted DNS record type names from
	// the $dnstype modifier.
	permittedDNSTypes []RRType
	// restrictedDNSTypes is the list of restricted DNS record type names
	// from the $dnstype modifier.
	restrictedDNSTypes []RRType

	permittedMethods  []string // lowercase permitted HTTP methods from the $method modifier
	restrictedMethods []string // lowercase restricted HTTP methods from the $method modifier

	enabledOptions  NetworkRuleOption // Flag with all enabled rule options
	disabledOptions NetworkRuleOption // Flag with all disabled rule options

	permittedRequestTypes  RequestType // Flag with all permitted request types. 0 means ALL.
	restrictedRequestTypes RequestType // Flag with all restricted request types. 0 means NONE.

	// Values of the advanced modifiers.  Empty value means that the modifier
	// has no value, check the corresponding option to tell it apart from the
	// missing modifier.
	redirect     string
	removeParam  string
	removeHeader string
	csp          string
	cookie       string
	replace      string

	pattern string // Pattern is the basic rule pattern
}

// NewNetworkRule parses the rule text and returns a filter rule
func NewNetworkRule(ruleText string, filterListID int) (r *NetworkRule, err error) {
	// split rule into pattern and options

	var pattern, options string
	var allowlist bool
	pattern, options, allowlist, err = parseRuleText(ruleText)
	if err != nil {
		return nil, err
	}

	r = &NetworkRule{
		RuleText:     ruleText,
		Allowlist:    allowlist,
		FilterListID: filterListID,
		pattern:      pattern,
	}

	// parse options
	err = r.loadOptions(options)
	if err != nil {
		return nil, &RuleSyntaxError{msg: err.Error(), ruleText: ruleText}
	}

	// example.org/* -> example.org^
	if strings.HasSuffix(r.pattern, "/*") {
		r.pattern = r.pattern[:len(r.pattern)-len("/*")] + "^"
	}

	if r.isTooWide() {
		return nil, ErrTooWideRule
	}

	return r, nil
}

// isTooWide returns true if the rule pattern matches too much and the rule
// has no restrictions that narrow it down.
func (f *NetworkRule) isTooWide() (ok bool) {
	if !isTrivialPattern(f.pattern) {
		return false
	}

	return len(f.permittedDomains) == 0 &&
		len(f.denyAllowDomains) == 0 &&
		len(f.permittedDNSTypes) == 0 &&
		len(f.restrictedDNSTypes) == 0 &&
		f.enabledOptions&(OptionAdvancedGroups|OptionCookie|OptionBadfilter) == 0
}

// isTrivialPattern returns true if pattern matches every URL.
func isTrivialPattern(pattern string) (ok bool) {
	switch pattern {
	case "", "*", "|", "||", "|*", "||*", "*^", "^":
		return true
	default:
		return len(pattern) < 3
	}
}

// Text returns the rule text
func (f *NetworkRule) Text() string {
	return f.RuleText
}

// String returns the rule text
func (f *NetworkRule) String() string {
	return f.RuleText
}

// Pattern returns the basic rule pattern without the allowlist mask and the
// options.
func (f *NetworkRule) Pattern() (pattern string) {
	return f.pattern
}

// IsAllowlist returns true if this is an exception rule.
func (f *NetworkRule) IsAllowlist() (ok bool) {
	return f.Allowlist
}

// IsOptionEnabled returns true if the specified option is enabled
func (f *NetworkRule) IsOptionEnabled(option NetworkRuleOption) bool {
	return (f.enabledOptions & option) == option
}

// IsOptionDisabled returns true if the specified option is disabled
func (f *NetworkRule) IsOptionDisabled(option NetworkRuleOption) bool {
	return (f.disabledOptions & option) == option
}

// PermittedDomains returns the domains this rule is allowed on.
func (f *NetworkRule) PermittedDomains() (domains []string) {
	return f.permittedDomains
}

// RestrictedDomains returns the domains this rule is disabled on.
func (f *NetworkRule) RestrictedDomains() (domains []string) {
	return f.restrictedDomains
}

// DenyAllowDomains returns the request domains excluded by the $denyallow
// modifier.
func (f *NetworkRule) DenyAllowDomains() (domains []string) {
	return f.denyAllowDomains
}

// HasDNSTypes returns true if the rule has a $dnstype modifier.
func (f *NetworkRule) HasDNSTypes() (ok bool) {
	return len(f.permittedDNSTypes) > 0 || len(f.restrictedDNSTypes) > 0
}

// PermittedMethods returns the lowercase HTTP methods from the $method
// modifier.
func (f *NetworkRule) PermittedMethods() (methods []string) {
	return f.permittedMethods
}

// RestrictedMethods returns the lowercase HTTP methods excluded by the $method
// modifier.
func (f *NetworkRule) RestrictedMethods() (methods []string) {
	return f.restrictedMethods
}

// PermittedRequestTypes returns the flag with all permitted request types.  0
// means all types.
func (f *NetworkRule) PermittedRequestTypes() (t RequestType) {
	return f.permittedRequestTypes
}

// RestrictedRequestTypes returns the flag with all restricted request types.
// 0 means none.
func (f *NetworkRule) RestrictedRequestTypes() (t RequestType) {
	return f.restrictedRequestTypes
}

// RedirectValue returns the value of the $redirect or $redirect-rule
// modifier.
func (f *NetworkRule) RedirectValue() (v string) {
	return f.redirect
}

// RemoveParamValue returns the value of the $removeparam modifier.
func (f *NetworkRule) RemoveParamValue() (v string) {
	return f.removeParam
}

// RemoveHeaderValue returns the value of the $removeheader modifier.
func (f *NetworkRule) RemoveHeaderValue() (v string) {
	return f.removeHeader
}

// CSPValue returns the value of the $csp modifier.
func (f *NetworkRule) CSPValue() (v string) {
	return f.csp
}

// CookieValue returns the value of the $cookie modifier.
func (f *NetworkRule) CookieValue() (v string) {
	return f.cookie
}

// IsRegexRule returns true if rule's pattern is a regular expression
func (f *NetworkRule) IsRegexRule() bool {
	return len(f.pattern) > 1 &&
		strings.HasPrefix(f.pattern, maskRegexRule) &&
		strings.HasSuffix(f.pattern, maskRegexRule)
}

// RegexPattern returns the body of a regular expression pattern without the
// enclosing slashes.  It returns an empty string for non-regex rules.
func (f *NetworkRule) RegexPattern() (re string) {
	if !f.IsRegexRule() {
		return ""
	}

	return f.pattern[1 : len(f.pattern)-1]
}

// IsDocumentAllowlistRule checks if the rule is a document-level allowlist
// rule.  This means that the rule is supposed to disable or modify blocking of
// the page subrequests.  For instance, `@@||example.org^$urlblock` unblocks all
// sub-requests.
func (f *NetworkRule) IsDocumentAllowlistRule() (ok bool) {
	return f.Allowlist && (f.IsOptionEnabled(OptionDocument) ||
		f.IsOptionEnabled(OptionUrlblock))
}

// NegatesBadfilter only makes sense when the "f" rule has a `badfilter`
// modifier.  It returns true if the "f" rule negates the specified "r" rule.
func (f *NetworkRule) NegatesBadfilter(r *NetworkRule) bool {
	switch {
	case
		!f.IsOptionEnabled(OptionBadfilter),
		r.IsOptionEnabled(OptionBadfilter),
		f.Allowlist != r.Allowlist,
		f.pattern != r.pattern,
		f.permittedRequestTypes != r.permittedRequestTypes,
		f.restrictedRequestTypes != r.restrictedRequestTypes,
		(f.enabledOptions ^ OptionBadfilter) != r.enabledOptions,
		f.disabledOptions != r.disabledOptions,
		f.redirect != r.redirect,
		f.removeParam != r.removeParam,
		f.removeHeader != r.removeHeader,
		f.csp != r.csp,
		f.cookie != r.cookie,
		!stringSetsEqual(f.permittedDomains, r.permittedDomains),
		!stringSetsEqual(f.restrictedDomains, r.restrictedDomains),
		!stringSetsEqual(f.denyAllowDomains, r.denyAllowDomains),
		!stringSetsEqual(f.permittedMethods, r.permittedMethods),
		!stringSetsEqual(f.restrictedMethods, r.restrictedMethods),
		!slices.Equal(f.permittedDNSTypes, r.permittedDNSTypes),
		!slices.Equal(f.restrictedDNSTypes, r.restrictedDNSTypes):
		return false
	}

	return true
}

// setRequestType permits or forbids the specified request type
func (f *NetworkRule) setRequestType(requestType RequestType, permitted bool) {
	if permitted {
		f.permittedRequestTypes |= requestType
	} else {
		f.restrictedRequestTypes |= requestType
	}
}

// setOptionEnabled enables or disables the specified option
// it can return error if this option cannot be used with this type of rules
func (f *NetworkRule) setOptionEnabled(option NetworkRuleOption, enabled bool) error {
	if f.Allowlist && (option&OptionBlocklistOnly) == option {
		return fmt.Errorf("modifier cannot be used in an allowlist rule: %v", option)
	}

	if !f.Allowlist && (option&OptionAllowlistOnly) == option {
		return fmt.Errorf("modifier cannot be used in a blocking rule: %v", option)
	}

	if enabled {
		f.enabledOptions |= option
	} else {
		f.disabledOptions |= option
	}

	return nil
}

// loadOptions loads all the filtering rule options
// read the details on each here: https://kb.adguard.com/en/general/how-to-create-your-own-ad-filters#basic-rules
func (f *NetworkRule) loadOptions(options string) error {
	if options == "" {
		return nil
	}

	optionsParts := splitWithEscapeCharacter(options, ',', '\\', false)
	for i := 0; i < len(optionsParts); i++ {
		option := optionsParts[i]
		valueIndex := strings.Index(option, "=")
		optionName := option
		optionValue := ""
		if valueIndex > 0 {
			optionName = option[:valueIndex]
			optionValue = option[valueIndex+1:]
		}

		err := f.loadOption(optionName, optionValue)
		if err != nil {
			return err
		}
	}

	// Rules of these types can be applied to documents only
	// $jsinject, $elemhide, $urlblock, $genericblock, $generichide,
	// $specifichide and $content for allowlist rules.
	// $popup - for url blocking
	if f.IsOptionEnabled(OptionJsinject) || f.IsOptionEnabled(OptionElemhide) ||
		f.IsOptionEnabled(OptionContent) || f.IsOptionEnabled(OptionUrlblock) ||
		f.IsOptionEnabled(OptionGenericblock) || f.IsOptionEnabled(OptionGenerichide) ||
		f.IsOptionEnabled(OptionSpecifichide) || f.IsOptionEnabled(OptionExtension) ||
		f.IsOptionEnabled(OptionPopup) {
		f.permittedRequestTypes = TypeDocument
	}

	return f.validateAdvanced()
}

// validateAdvanced checks the values of the advanced modifiers that depend on
// the other modifiers.
func (f *NetworkRule) validateAdvanced() (err error) {
	if f.IsOptionEnabled(OptionCsp) && f.csp == "" && !f.Allowlist {
		return errors.Error("$csp modifier requires a value in blocking rules")
	}

	if f.IsOptionEnabled(OptionRemoveHeader) && f.removeHeader == "" && !f.Allowlist {
		return errors.Error("$removeheader modifier requires a value in blocking rules")
	}

	if f.IsOptionEnabled(OptionRedirect) && f.IsOptionEnabled(OptionRedirectRule) {
		return errors.Error("$redirect and $redirect-rule cannot be used together")
	}

	return nil
}

// setAdvanced enables an advanced option and stores its value.  An advanced
// option cannot be specified twice.
func (f *NetworkRule) setAdvanced(option NetworkRuleOption, dst *string, value string) (err error) {
	if f.IsOptionEnabled(option) {
		return fmt.Errorf("duplicate advanced modifier: %v", option)
	}

	f.enabledOptions |= option
	*dst = value

	return nil
}

// loadOption loads specified option with its value (optional)
//
//nolint:gocyclo
func (f *NetworkRule) loadOption(name, value string) error {
	if t, ok := requestTypeNames[strings.TrimPrefix(name, "~")]; ok {
		f.setRequestType(t, !strings.HasPrefix(name, "~"))

		return nil
	}

	switch name {
	// General options
	case "third-party", "~first-party":
		return f.setOptionEnabled(OptionThirdParty, true)
	case "~third-party", "first-party":
		return f.setOptionEnabled(OptionThirdParty, false)
	case "match-case":
		return f.setOptionEnabled(OptionMatchCase, true)
	case "~match-case":
		return f.setOptionEnabled(OptionMatchCase, false)
	case "important":
		return f.setOptionEnabled(OptionImportant, true)
	case "badfilter":
		return f.setOptionEnabled(OptionBadfilter, true)

	// $dnstype, the DNS request record type filter.
	case "dnstype":
		permitted, restricted, err := loadDNSTypes(value)
		f.permittedDNSTypes = permitted
		f.restrictedDNSTypes = restricted

		return err

	// $domain -- limits the rule for selected source domains
	case "domain":
		permitted, restricted, err := loadDomains(value, "|")
		f.permittedDomains = permitted
		f.restrictedDomains = restricted

		return err

	// $denyallow -- disables the rule for the selected request domains
	case "denyallow":
		permitted, restricted, err := loadDomains(value, "|")
		if err != nil {
			return err
		}

		if len(restricted) > 0 || len(permitted) == 0 {
			return fmt.Errorf("invalid $denyallow value: %s", value)
		}

		f.denyAllowDomains = permitted

		return nil

	// $method -- limits the rule for selected HTTP methods
	case "method":
		permitted, restricted, err := loadMethods(value)
		f.permittedMethods = permitted
		f.restrictedMethods = restricted

		return err

	// Document-level allowlist rules
	case "elemhide":
		return f.setOptionEnabled(OptionElemhide, true)
	case "generichide":
		return f.setOptionEnabled(OptionGenerichide, true)
	case "specifichide":
		return f.setOptionEnabled(OptionSpecifichide, true)
	case "genericblock":
		return f.setOptionEnabled(OptionGenericblock, true)
	case "jsinject":
		return f.setOptionEnabled(OptionJsinject, true)
	case "urlblock":
		return f.setOptionEnabled(OptionUrlblock, true)
	case "content":
		return f.setOptionEnabled(OptionContent, true)

	// $extension can be also disabled
	case "extension":
		return f.setOptionEnabled(OptionExtension, true)
	case "~extension":
		f.enabledOptions &^= OptionExtension

		return nil

	// $document
	case "document":
		f.setRequestType(TypeDocument, true)

		return f.setOptionEnabled(OptionDocument, true)
	case "~document":
		f.setRequestType(TypeDocument, false)

		return nil

	// Stealth mode
	case "stealth":
		return f.setOptionEnabled(OptionStealth, true)

	// $popup blocking options
	case "popup":
		return f.setOptionEnabled(OptionPopup, true)

	// $empty and $mp4
	case "empty":
		return f.setOptionEnabled(OptionEmpty, true)
	case "mp4":
		return f.setOptionEnabled(OptionMp4, true)

	// Advanced modifiers
	case "csp":
		return f.setAdvanced(OptionCsp, &f.csp, value)
	case "replace":
		return f.setAdvanced(OptionReplace, &f.replace, value)
	case "cookie":
		return f.setAdvanced(OptionCookie, &f.cookie, value)
	case "redirect":
		return f.setAdvanced(OptionRedirect, &f.redirect, value)
	case "redirect-rule":
		return f.setAdvanced(OptionRedirectRule, &f.redirect, value)
	case "removeparam":
		return f.setAdvanced(OptionRemoveParam, &f.removeParam, value)
	case "removeheader":
		return f.setAdvanced(OptionRemoveHeader, &f.removeHeader, value)
	}

	return fmt.Errorf("unknown filter modifier: %s=%s", name, value)
}

// parseRuleText splits the rule text in multiple parts:
// pattern -- a basic rule pattern (which can be easily converted into a regex)
// options -- a string with all rule options
// allowlist -- indicates if rule is "allowlist" (e.g. it should unblock requests, not block them)
func parseRuleText(ruleText string) (pattern, options string, allowlist bool, err error) {
	startIndex := 0
	if strings.HasPrefix(ruleText, maskAllowlist) {
		allowlist = true
		startIndex = len(maskAllowlist)
	}

	if len(ruleText) <= startIndex {
		return "", "", false, fmt.Errorf("the rule %s is too short", ruleText)
	}

	// Setting pattern to rule text (for the case of empty options)
	pattern = ruleText[startIndex:]

	// Avoid parsing options inside of a regex rule
	if strings.HasPrefix(pattern, maskRegexRule) &&
		strings.HasSuffix(pattern, maskRegexRule) &&
		!strings.Contains(pattern, replaceOption+"=") {
		return pattern, "", allowlist, nil
	}

	foundEscaped := false
	for i := len(ruleText) - 2; i >= startIndex; i-- {
		c := ruleText[i]

		if c == optionsDelimiter {
			if i > startIndex && ruleText[i-1] == escapeCharacter {
				foundEscaped = true
			} else {
				pattern = ruleText[startIndex:i]
				options = ruleText[i+1:]

				if foundEscaped {
					// Find and replace escaped options delimiter
					options = reEscapedOptionsDelimiter.ReplaceAllString(options, string(optionsDelimiter))
				}

				// Options delimiter was found, exiting loop
				break
			}
		}
	}

	return pattern, options, allowlist, nil
}
