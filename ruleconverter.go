package dnrconverter

import (
	"strings"

	"github.com/AdguardTeam/dnrconverter/dnr"
	"github.com/AdguardTeam/dnrconverter/internal/ufnet"
	"github.com/AdguardTeam/dnrconverter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// Priorities of the declarative rules.  The declarative engine orders the
// matched rules of different action types on its own, so the priorities only
// break ties within the same action type.
const (
	priorityDocumentAllowlist  = 100_000
	priorityImportantAllowlist = 10_000
	priorityImportant          = 1_000
	priorityAllowlist          = 100
	priorityDefault            = 1
)

// Names of the headers modified by the header rules.
const (
	headerCSP       = "content-security-policy"
	headerCookie    = "cookie"
	headerSetCookie = "set-cookie"
)

// errNonASCIIPattern is returned when a pattern contains non-ASCII characters
// outside of its hostname.
const errNonASCIIPattern errors.Error = "non-ascii characters outside of the hostname"

// removeHeaderRequestPrefix is the prefix of the $removeheader values that
// target request headers.
const removeHeaderRequestPrefix = "request:"

// unsupportedOptions are the modifiers that have no declarative equivalent.
var unsupportedOptions = []struct {
	name   string
	option rules.NetworkRuleOption
}{
	{name: "elemhide", option: rules.OptionElemhide},
	{name: "generichide", option: rules.OptionGenerichide},
	{name: "specifichide", option: rules.OptionSpecifichide},
	{name: "genericblock", option: rules.OptionGenericblock},
	{name: "jsinject", option: rules.OptionJsinject},
	{name: "content", option: rules.OptionContent},
	{name: "extension", option: rules.OptionExtension},
	{name: "stealth", option: rules.OptionStealth},
	{name: "popup", option: rules.OptionPopup},
	{name: "replace", option: rules.OptionReplace},
	{name: "mp4", option: rules.OptionMp4},
	{name: "redirect-rule", option: rules.OptionRedirectRule},
}

// actionOptions are the modifiers that determine the action of a blocking
// rule.  At most one of them may be used in a rule.
var actionOptions = []struct {
	name   string
	option rules.NetworkRuleOption
}{
	{name: "removeparam", option: rules.OptionRemoveParam},
	{name: "removeheader", option: rules.OptionRemoveHeader},
	{name: "csp", option: rules.OptionCsp},
	{name: "cookie", option: rules.OptionCookie},
	{name: "redirect", option: rules.OptionRedirect},
	{name: "empty", option: rules.OptionEmpty},
}

// allowlistUnsupportedOptions are the modifiers that cannot be used in the
// allowlist rules.
var allowlistUnsupportedOptions = []struct {
	name   string
	option rules.NetworkRuleOption
}{
	{name: "csp", option: rules.OptionCsp},
	{name: "removeheader", option: rules.OptionRemoveHeader},
	{name: "redirect", option: rules.OptionRedirect},
	{name: "removeparam", option: rules.OptionRemoveParam},
	{name: "cookie", option: rules.OptionCookie},
}

// resourceTypes maps the request types to the declarative resource types.
var resourceTypes = map[rules.RequestType]dnr.ResourceType{
	rules.TypeDocument:       dnr.ResourceTypeMainFrame,
	rules.TypeSubdocument:    dnr.ResourceTypeSubFrame,
	rules.TypeScript:         dnr.ResourceTypeScript,
	rules.TypeStylesheet:     dnr.ResourceTypeStylesheet,
	rules.TypeObject:         dnr.ResourceTypeObject,
	rules.TypeImage:          dnr.ResourceTypeImage,
	rules.TypeXmlhttprequest: dnr.ResourceTypeXMLHTTPRequest,
	rules.TypeMedia:          dnr.ResourceTypeMedia,
	rules.TypeFont:           dnr.ResourceTypeFont,
	rules.TypeWebsocket:      dnr.ResourceTypeWebSocket,
	rules.TypePing:           dnr.ResourceTypePing,
	rules.TypeOther:          dnr.ResourceTypeOther,
}

// frameTypes are the request types to which the allowAllRequests action is
// applicable.
const frameTypes = rules.TypeDocument | rules.TypeSubdocument

// allRequestTypes is the mask of all request types.
const allRequestTypes = rules.TypeDocument | rules.TypeSubdocument | rules.TypeScript |
	rules.TypeStylesheet | rules.TypeObject | rules.TypeImage | rules.TypeXmlhttprequest |
	rules.TypeMedia | rules.TypeFont | rules.TypeWebsocket | rules.TypePing | rules.TypeOther

// ruleConverter converts single indexed rules into declarative rules.  It is
// shared by all group converters.
type ruleConverter struct {
	// resourcesPath is the path to the web-accessible resources, it is empty
	// if not set.
	resourcesPath string
}

// convert converts ir into a declarative rule without an id.  warn is not nil
// if the rule has been converted with some of its domains dropped.  err is an
// *InvalidOptionError if the conversion is impossible because of the options,
// otherwise it is a [RuleConversionError].
func (c *ruleConverter) convert(ir *IndexedRule) (r *dnr.Rule, warn *UnsupportedDomainsError, err error) {
	err = checkApplicability(ir)
	if err != nil {
		return nil, nil, err
	}

	r = &dnr.Rule{
		Priority: priority(ir.Rule),
	}

	r.Action, err = c.action(ir)
	if err != nil {
		return nil, nil, err
	}

	var dropped []string
	r.Condition, dropped, err = condition(ir, r)
	if err != nil {
		return nil, nil, err
	}

	err = checkConverted(ir, r)
	if err != nil {
		return nil, nil, err
	}

	if len(dropped) > 0 {
		warn = &UnsupportedDomainsError{
			conversionError: conversionError{source: ir, declarative: r},
			Domains:         dropped,
		}
	}

	return r, warn, nil
}

// checkApplicability returns an *UnsupportedModifierError if ir uses a
// modifier that cannot be expressed with a declarative rule.
func checkApplicability(ir *IndexedRule) (err error) {
	nr := ir.Rule
	unsupported := func(modifier, reason string) (err error) {
		return &UnsupportedModifierError{
			conversionError: conversionError{source: ir},
			Modifier:        modifier,
			Reason:          reason,
		}
	}

	if nr.HasDNSTypes() {
		return unsupported("dnstype", "")
	}

	for _, o := range unsupportedOptions {
		if nr.IsOptionEnabled(o.option) {
			return unsupported(o.name, "")
		}
	}

	if nr.IsAllowlist() {
		for _, o := range allowlistUnsupportedOptions {
			if nr.IsOptionEnabled(o.option) {
				return unsupported(o.name, "allowlist rules are not supported")
			}
		}

		return nil
	}

	var used []string
	for _, o := range actionOptions {
		if nr.IsOptionEnabled(o.option) {
			used = append(used, o.name)
		}
	}

	if len(used) > 1 {
		return unsupported(used[1], "cannot be used with $"+used[0])
	}

	if nr.IsOptionEnabled(rules.OptionCookie) && nr.CookieValue() != "" {
		return unsupported("cookie", "only removing all cookies is supported")
	}

	if nr.IsOptionEnabled(rules.OptionRemoveParam) {
		v := nr.RemoveParamValue()
		if strings.HasPrefix(v, "~") || strings.HasPrefix(v, "/") {
			return unsupported("removeparam", "negation and regular expressions are not supported")
		}
	}

	return nil
}

// priority returns the priority of the declarative rule converted from nr.
func priority(nr *rules.NetworkRule) (p int) {
	important := nr.IsOptionEnabled(rules.OptionImportant)
	switch {
	case nr.IsDocumentAllowlistRule():
		return priorityDocumentAllowlist
	case nr.IsAllowlist() && important:
		return priorityImportantAllowlist
	case important:
		return priorityImportant
	case nr.IsAllowlist():
		return priorityAllowlist
	default:
		return priorityDefault
	}
}

// action returns the action of the declarative rule converted from ir.
func (c *ruleConverter) action(ir *IndexedRule) (a dnr.Action, err error) {
	nr := ir.Rule
	if nr.IsAllowlist() {
		if nr.IsDocumentAllowlistRule() {
			return dnr.Action{Type: dnr.ActionTypeAllowAllRequests}, nil
		}

		return dnr.Action{Type: dnr.ActionTypeAllow}, nil
	}

	switch {
	case nr.IsOptionEnabled(rules.OptionRemoveParam):
		return removeParamAction(nr.RemoveParamValue()), nil
	case nr.IsOptionEnabled(rules.OptionRemoveHeader):
		return removeHeaderAction(nr.RemoveHeaderValue()), nil
	case nr.IsOptionEnabled(rules.OptionCsp):
		return dnr.Action{
			Type: dnr.ActionTypeModifyHeaders,
			ResponseHeaders: []dnr.ModifyHeaderInfo{{
				Header:    headerCSP,
				Operation: dnr.HeaderOperationAppend,
				Value:     nr.CSPValue(),
			}},
		}, nil
	case nr.IsOptionEnabled(rules.OptionCookie):
		return dnr.Action{
			Type: dnr.ActionTypeModifyHeaders,
			RequestHeaders: []dnr.ModifyHeaderInfo{{
				Header:    headerCookie,
				Operation: dnr.HeaderOperationRemove,
			}},
			ResponseHeaders: []dnr.ModifyHeaderInfo{{
				Header:    headerSetCookie,
				Operation: dnr.HeaderOperationRemove,
			}},
		}, nil
	case nr.IsOptionEnabled(rules.OptionRedirect):
		return c.redirectAction(ir, nr.RedirectValue())
	case nr.IsOptionEnabled(rules.OptionEmpty):
		return c.redirectAction(ir, redirectEmpty)
	default:
		return dnr.Action{Type: dnr.ActionTypeBlock}, nil
	}
}

// redirectAction returns the action redirecting to the resource with the
// specified name.
func (c *ruleConverter) redirectAction(ir *IndexedRule, name string) (a dnr.Action, err error) {
	if c.resourcesPath == "" {
		return a, &InvalidOptionError{
			Err:    ErrNoResourcesPath,
			Option: "ResourcesPath",
			Value:  c.resourcesPath,
		}
	}

	path, ok := redirectPath(c.resourcesPath, name)
	if !ok {
		return a, &UnknownRedirectError{
			conversionError: conversionError{source: ir},
			Name:            name,
		}
	}

	return dnr.Action{
		Type:     dnr.ActionTypeRedirect,
		Redirect: &dnr.Redirect{ExtensionPath: path},
	}, nil
}

// removeParamAction returns the action removing the query parameter param.
// An empty param removes the whole query.
func removeParamAction(param string) (a dnr.Action) {
	t := &dnr.URLTransform{}
	if param == "" {
		t.Query = new(string)
	} else {
		t.QueryTransform = &dnr.QueryTransform{RemoveParams: []string{param}}
	}

	return dnr.Action{
		Type:     dnr.ActionTypeRedirect,
		Redirect: &dnr.Redirect{Transform: t},
	}
}

// removeHeaderAction returns the action removing the header specified by the
// $removeheader value v.
func removeHeaderAction(v string) (a dnr.Action) {
	a = dnr.Action{Type: dnr.ActionTypeModifyHeaders}
	if name, ok := strings.CutPrefix(v, removeHeaderRequestPrefix); ok {
		a.RequestHeaders = []dnr.ModifyHeaderInfo{{
			Header:    name,
			Operation: dnr.HeaderOperationRemove,
		}}
	} else {
		a.ResponseHeaders = []dnr.ModifyHeaderInfo{{
			Header:    v,
			Operation: dnr.HeaderOperationRemove,
		}}
	}

	return a
}

// condition returns the condition of the declarative rule r converted from
// ir.  dropped are the domains that have been dropped as unsupported.
func condition(ir *IndexedRule, r *dnr.Rule) (cond dnr.Condition, dropped []string, err error) {
	nr := ir.Rule

	err = setPattern(&cond, nr)
	if err != nil {
		return cond, nil, &InvalidPatternError{
			conversionError: conversionError{source: ir},
			Err:             err,
		}
	}

	if nr.IsOptionEnabled(rules.OptionThirdParty) {
		cond.DomainType = dnr.DomainTypeThirdParty
	} else if nr.IsOptionDisabled(rules.OptionThirdParty) {
		cond.DomainType = dnr.DomainTypeFirstParty
	}

	var d []string
	cond.InitiatorDomains, d = asciiDomains(nr.PermittedDomains())
	dropped = append(dropped, d...)
	if len(nr.PermittedDomains()) > 0 && len(cond.InitiatorDomains) == 0 {
		r.Condition = cond

		return cond, nil, &EmptyDomainsError{
			conversionError: conversionError{source: ir, declarative: r},
		}
	}

	cond.ExcludedInitiatorDomains, d = asciiDomains(nr.RestrictedDomains())
	dropped = append(dropped, d...)
	cond.ExcludedRequestDomains, d = asciiDomains(nr.DenyAllowDomains())
	dropped = append(dropped, d...)

	for _, m := range nr.PermittedMethods() {
		cond.RequestMethods = append(cond.RequestMethods, dnr.RequestMethod(m))
	}

	for _, m := range nr.RestrictedMethods() {
		cond.ExcludedRequestMethods = append(cond.ExcludedRequestMethods, dnr.RequestMethod(m))
	}

	cond.IsURLFilterCaseSensitive = nr.IsOptionEnabled(rules.OptionMatchCase)

	ok := setResourceTypes(&cond, nr, r.Action.Type)
	if !ok {
		r.Condition = cond

		return cond, nil, &EmptyResourcesError{
			conversionError: conversionError{source: ir, declarative: r},
		}
	}

	return cond, dropped, nil
}

// setPattern sets the url filter or the regular expression filter of cond
// from the pattern of nr.
func setPattern(cond *dnr.Condition, nr *rules.NetworkRule) (err error) {
	if nr.IsRegexRule() {
		cond.RegexFilter = nr.RegexPattern()

		return nil
	}

	pattern := nr.Pattern()
	if strings.HasPrefix(pattern, "||*") {
		pattern = pattern[len("||"):]
	}

	if !ufnet.IsASCII(pattern) {
		pattern, err = asciiPattern(pattern)
		if err != nil {
			return err
		}
	}

	cond.URLFilter = pattern

	return nil
}

// asciiPattern converts the hostname of the pattern into its ASCII form.  The
// rest of the pattern must be ASCII.
func asciiPattern(pattern string) (ascii string, err error) {
	host, rest, ok := ufnet.SplitPatternHost(pattern)
	if !ok || !ufnet.IsASCII(rest) {
		return "", errNonASCIIPattern
	}

	host, err = ufnet.ToASCII(host)
	if err != nil {
		return "", err
	}

	return "||" + host + rest, nil
}

// asciiDomains converts domains into their ASCII form.  Domains that cannot be
// used in a declarative rule are returned as dropped.
func asciiDomains(domains []string) (ascii, dropped []string) {
	for _, d := range domains {
		if rules.IsWildcardTLD(d) {
			dropped = append(dropped, d)

			continue
		}

		a, err := ufnet.ToASCII(d)
		if err != nil {
			dropped = append(dropped, d)

			continue
		}

		ascii = append(ascii, a)
	}

	return ascii, dropped
}

// setResourceTypes sets the resource types of cond from the request types of
// nr considering the action type.  ok is false if no resource type is left.
func setResourceTypes(cond *dnr.Condition, nr *rules.NetworkRule, at dnr.ActionType) (ok bool) {
	permitted := nr.PermittedRequestTypes()
	restricted := nr.RestrictedRequestTypes()

	if permitted == 0 {
		switch {
		case at == dnr.ActionTypeAllowAllRequests:
			permitted = frameTypes
		case nr.IsOptionEnabled(rules.OptionCsp):
			permitted = frameTypes
		case restricted == 0:
			return true
		case restricted&allRequestTypes == allRequestTypes:
			return false
		default:
			cond.ExcludedResourceTypes = toResourceTypes(restricted)

			return true
		}
	}

	types := permitted &^ restricted
	if at == dnr.ActionTypeAllowAllRequests {
		types &= frameTypes
	}

	if types == 0 {
		return false
	}

	cond.ResourceTypes = toResourceTypes(types)

	return true
}

// toResourceTypes converts the request types into declarative resource types.
func toResourceTypes(t rules.RequestType) (res []dnr.ResourceType) {
	for _, rt := range t.Types() {
		res = append(res, resourceTypes[rt])
	}

	return res
}

// checkConverted checks the converted rule r for the constructs the
// declarative engine rejects.
func checkConverted(ir *IndexedRule, r *dnr.Rule) (err error) {
	if !r.IsRegexp() {
		return nil
	}

	p := checkRegexp(r.Condition.RegexFilter)
	if p == nil {
		return nil
	}

	ce := conversionError{source: ir, declarative: r}
	if p.tooComplex {
		return &TooComplexRegexpError{conversionError: ce}
	}

	return &UnsupportedRegexpError{conversionError: ce, Reason: p.reason}
}
