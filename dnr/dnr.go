// Package dnr contains the model of declarative network request rules, the
// static JSON rules consumed by the built-in request filtering engine of a
// browser.
package dnr

import (
	"slices"
)

// ActionType is the type of the action of a declarative rule.
type ActionType string

// ActionType values.
const (
	ActionTypeBlock            ActionType = "block"
	ActionTypeRedirect         ActionType = "redirect"
	ActionTypeAllow            ActionType = "allow"
	ActionTypeUpgradeScheme    ActionType = "upgradeScheme"
	ActionTypeModifyHeaders    ActionType = "modifyHeaders"
	ActionTypeAllowAllRequests ActionType = "allowAllRequests"
)

// ResourceType is the type of the resource a request is made for.
type ResourceType string

// ResourceType values.
const (
	ResourceTypeMainFrame      ResourceType = "main_frame"
	ResourceTypeSubFrame       ResourceType = "sub_frame"
	ResourceTypeStylesheet     ResourceType = "stylesheet"
	ResourceTypeScript         ResourceType = "script"
	ResourceTypeImage          ResourceType = "image"
	ResourceTypeFont           ResourceType = "font"
	ResourceTypeObject         ResourceType = "object"
	ResourceTypeXMLHTTPRequest ResourceType = "xmlhttprequest"
	ResourceTypePing           ResourceType = "ping"
	ResourceTypeCSPReport      ResourceType = "csp_report"
	ResourceTypeMedia          ResourceType = "media"
	ResourceTypeWebSocket      ResourceType = "websocket"
	ResourceTypeWebTransport   ResourceType = "webtransport"
	ResourceTypeWebBundle      ResourceType = "webbundle"
	ResourceTypeOther          ResourceType = "other"
)

// DomainType is the type of the request domain relative to the initiator.
type DomainType string

// DomainType values.
const (
	DomainTypeFirstParty DomainType = "firstParty"
	DomainTypeThirdParty DomainType = "thirdParty"
)

// RequestMethod is the HTTP method of a request in lower case.
type RequestMethod string

// RequestMethod values.
const (
	RequestMethodConnect RequestMethod = "connect"
	RequestMethodDelete  RequestMethod = "delete"
	RequestMethodGet     RequestMethod = "get"
	RequestMethodHead    RequestMethod = "head"
	RequestMethodOptions RequestMethod = "options"
	RequestMethodPatch   RequestMethod = "patch"
	RequestMethodPost    RequestMethod = "post"
	RequestMethodPut     RequestMethod = "put"
	RequestMethodOther   RequestMethod = "other"
)

// HeaderOperation is the operation performed on a header.
type HeaderOperation string

// HeaderOperation values.
const (
	HeaderOperationAppend HeaderOperation = "append"
	HeaderOperationSet    HeaderOperation = "set"
	HeaderOperationRemove HeaderOperation = "remove"
)

// ModifyHeaderInfo describes a modification of a single header.
type ModifyHeaderInfo struct {
	Header    string          `json:"header"`
	Operation HeaderOperation `json:"operation"`
	Value     string          `json:"value,omitempty"`
}

// QueryKeyValue is a query parameter to add or replace.
type QueryKeyValue struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	ReplaceOnly bool   `json:"replaceOnly,omitempty"`
}

// QueryTransform describes a transformation of the URL query.
type QueryTransform struct {
	RemoveParams       []string        `json:"removeParams,omitempty"`
	AddOrReplaceParams []QueryKeyValue `json:"addOrReplaceParams,omitempty"`
}

// URLTransform describes a transformation of the URL.
type URLTransform struct {
	// Query is the new query.  A non-nil pointer to an empty string removes
	// the whole query.
	Query          *string         `json:"query,omitempty"`
	QueryTransform *QueryTransform `json:"queryTransform,omitempty"`
	Scheme         string          `json:"scheme,omitempty"`
	Host           string          `json:"host,omitempty"`
	Path           string          `json:"path,omitempty"`
}

// Redirect describes how a request is redirected.  Exactly one of the fields
// must be set.
type Redirect struct {
	ExtensionPath     string        `json:"extensionPath,omitempty"`
	Transform         *URLTransform `json:"transform,omitempty"`
	URL               string        `json:"url,omitempty"`
	RegexSubstitution string        `json:"regexSubstitution,omitempty"`
}

// Action is the action taken when a declarative rule is matched.
type Action struct {
	Type            ActionType         `json:"type"`
	Redirect        *Redirect          `json:"redirect,omitempty"`
	RequestHeaders  []ModifyHeaderInfo `json:"requestHeaders,omitempty"`
	ResponseHeaders []ModifyHeaderInfo `json:"responseHeaders,omitempty"`
}

// Condition is the condition under which a declarative rule is matched.
// URLFilter and RegexFilter are mutually exclusive, and so are ResourceTypes
// and ExcludedResourceTypes.
type Condition struct {
	URLFilter                string          `json:"urlFilter,omitempty"`
	RegexFilter              string          `json:"regexFilter,omitempty"`
	DomainType               DomainType      `json:"domainType,omitempty"`
	InitiatorDomains         []string        `json:"initiatorDomains,omitempty"`
	ExcludedInitiatorDomains []string        `json:"excludedInitiatorDomains,omitempty"`
	RequestDomains           []string        `json:"requestDomains,omitempty"`
	ExcludedRequestDomains   []string        `json:"excludedRequestDomains,omitempty"`
	ResourceTypes            []ResourceType  `json:"resourceTypes,omitempty"`
	ExcludedResourceTypes    []ResourceType  `json:"excludedResourceTypes,omitempty"`
	RequestMethods           []RequestMethod `json:"requestMethods,omitempty"`
	ExcludedRequestMethods   []RequestMethod `json:"excludedRequestMethods,omitempty"`
	IsURLFilterCaseSensitive bool            `json:"isUrlFilterCaseSensitive,omitempty"`
}

// Rule is a declarative rule.
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
}

// safeActions are the action types that do not modify requests.
var safeActions = []ActionType{
	ActionTypeBlock,
	ActionTypeAllow,
	ActionTypeAllowAllRequests,
	ActionTypeUpgradeScheme,
}

// IsSafe returns true if the rule does not modify the request or the
// response.
func (r *Rule) IsSafe() (ok bool) {
	return slices.Contains(safeActions, r.Action.Type)
}

// IsRegexp returns true if the condition of the rule uses a regular
// expression.
func (r *Rule) IsRegexp() (ok bool) {
	return r.Condition.RegexFilter != ""
}

// Clone returns a deep copy of r.
func (r *Rule) Clone() (c *Rule) {
	c = &Rule{
		Action:    r.Action.clone(),
		Condition: r.Condition.clone(),
		ID:        r.ID,
		Priority:  r.Priority,
	}

	return c
}

// clone returns a deep copy of a.
func (a Action) clone() (c Action) {
	c = Action{
		Type:            a.Type,
		RequestHeaders:  slices.Clone(a.RequestHeaders),
		ResponseHeaders: slices.Clone(a.ResponseHeaders),
	}

	if a.Redirect == nil {
		return c
	}

	redirect := *a.Redirect
	if t := redirect.Transform; t != nil {
		transform := *t
		if t.Query != nil {
			q := *t.Query
			transform.Query = &q
		}

		if qt := t.QueryTransform; qt != nil {
			transform.QueryTransform = &QueryTransform{
				RemoveParams:       slices.Clone(qt.RemoveParams),
				AddOrReplaceParams: slices.Clone(qt.AddOrReplaceParams),
			}
		}

		redirect.Transform = &transform
	}

	c.Redirect = &redirect

	return c
}

// clone returns a deep copy of c.
func (c Condition) clone() (cloned Condition) {
	cloned = c
	cloned.InitiatorDomains = slices.Clone(c.InitiatorDomains)
	cloned.ExcludedInitiatorDomains = slices.Clone(c.ExcludedInitiatorDomains)
	cloned.RequestDomains = slices.Clone(c.RequestDomains)
	cloned.ExcludedRequestDomains = slices.Clone(c.ExcludedRequestDomains)
	cloned.ResourceTypes = slices.Clone(c.ResourceTypes)
	cloned.ExcludedResourceTypes = slices.Clone(c.ExcludedResourceTypes)
	cloned.RequestMethods = slices.Clone(c.RequestMethods)
	cloned.ExcludedRequestMethods = slices.Clone(c.ExcludedRequestMethods)

	return cloned
}
