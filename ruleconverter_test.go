package dnrconverter

import (
	"testing"

	"github.com/AdguardTeam/dnrconverter/dnr"
	"github.com/AdguardTeam/dnrconverter/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFilterID is the filter identifier for tests.
const testFilterID = 1

// newTestIndexedRule parses text into an indexed rule with the specified
// index.
func newTestIndexedRule(tb testing.TB, text string, idx int) (ir *IndexedRule) {
	tb.Helper()

	nr, err := rules.NewRule(text, testFilterID)
	require.NoError(tb, err)
	require.NotNil(tb, nr)

	return newIndexedRule(nr, testFilterID, idx)
}

func TestRuleConverter_convert(t *testing.T) {
	t.Parallel()

	c := &ruleConverter{resourcesPath: "/war"}

	emptyQuery := ""

	testCases := []struct {
		want *dnr.Rule
		name string
		in   string
	}{{
		want: &dnr.Rule{
			Priority:  priorityDefault,
			Action:    dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "block",
		in:   "||example.org^",
	}, {
		want: &dnr.Rule{
			Priority:  priorityAllowlist,
			Action:    dnr.Action{Type: dnr.ActionTypeAllow},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "allow",
		in:   "@@||example.org^",
	}, {
		want: &dnr.Rule{
			Priority: priorityDocumentAllowlist,
			Action:   dnr.Action{Type: dnr.ActionTypeAllowAllRequests},
			Condition: dnr.Condition{
				URLFilter:     "||example.org^",
				ResourceTypes: []dnr.ResourceType{dnr.ResourceTypeMainFrame},
			},
		},
		name: "document_allowlist",
		in:   "@@||example.org^$document",
	}, {
		want: &dnr.Rule{
			Priority:  priorityImportant,
			Action:    dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "important",
		in:   "||example.org^$important",
	}, {
		want: &dnr.Rule{
			Priority:  priorityImportantAllowlist,
			Action:    dnr.Action{Type: dnr.ActionTypeAllow},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "important_allowlist",
		in:   "@@||example.org^$important",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action:   dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{
				URLFilter:                "||example.org^",
				DomainType:               dnr.DomainTypeThirdParty,
				InitiatorDomains:         []string{"a.com"},
				ExcludedInitiatorDomains: []string{"b.com"},
				ResourceTypes:            []dnr.ResourceType{dnr.ResourceTypeScript},
			},
		},
		name: "condition",
		in:   "||example.org^$script,third-party,domain=a.com|~b.com",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action:   dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{
				URLFilter:             "||example.org^",
				DomainType:            dnr.DomainTypeFirstParty,
				ExcludedResourceTypes: []dnr.ResourceType{dnr.ResourceTypeScript},
			},
		},
		name: "excluded_types",
		in:   "||example.org^$~script,~third-party",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action:   dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{
				URLFilter:                "||example.org^",
				IsURLFilterCaseSensitive: true,
				RequestMethods:           []dnr.RequestMethod{dnr.RequestMethodGet, dnr.RequestMethodPost},
			},
		},
		name: "match_case_methods",
		in:   "||example.org^$match-case,method=get|post",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action:   dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{
				URLFilter:              "||example.org^",
				InitiatorDomains:       []string{"a.com"},
				ExcludedRequestDomains: []string{"x.com", "y.com"},
			},
		},
		name: "denyallow",
		in:   "||example.org^$domain=a.com,denyallow=x.com|y.com",
	}, {
		want: &dnr.Rule{
			Priority:  priorityDefault,
			Action:    dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{URLFilter: "||xn--e1afmkfd.xn--p1ai^"},
		},
		name: "punycode",
		in:   "||пример.рф^",
	}, {
		want: &dnr.Rule{
			Priority:  priorityDefault,
			Action:    dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{URLFilter: "*example.org^"},
		},
		name: "host_wildcard",
		in:   "||*example.org^",
	}, {
		want: &dnr.Rule{
			Priority:  priorityDefault,
			Action:    dnr.Action{Type: dnr.ActionTypeBlock},
			Condition: dnr.Condition{RegexFilter: `banner\d+`},
		},
		name: "regexp",
		in:   `/banner\d+/`,
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeRedirect,
				Redirect: &dnr.Redirect{
					ExtensionPath: "/war/noopjs.js",
				},
			},
			Condition: dnr.Condition{
				URLFilter:     "||example.org/ads.js",
				ResourceTypes: []dnr.ResourceType{dnr.ResourceTypeScript},
			},
		},
		name: "redirect",
		in:   "||example.org/ads.js$script,redirect=noopjs",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeRedirect,
				Redirect: &dnr.Redirect{
					ExtensionPath: "/war/nooptext.js",
				},
			},
			Condition: dnr.Condition{URLFilter: "||example.org/ads.js"},
		},
		name: "empty",
		in:   "||example.org/ads.js$empty",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeRedirect,
				Redirect: &dnr.Redirect{
					Transform: &dnr.URLTransform{
						QueryTransform: &dnr.QueryTransform{
							RemoveParams: []string{"utm_source"},
						},
					},
				},
			},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "removeparam",
		in:   "||example.org^$removeparam=utm_source",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeRedirect,
				Redirect: &dnr.Redirect{
					Transform: &dnr.URLTransform{Query: &emptyQuery},
				},
			},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "removeparam_all",
		in:   "||example.org^$removeparam",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeModifyHeaders,
				RequestHeaders: []dnr.ModifyHeaderInfo{{
					Header:    "x-client",
					Operation: dnr.HeaderOperationRemove,
				}},
			},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "removeheader_request",
		in:   "||example.org^$removeheader=request:x-client",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeModifyHeaders,
				ResponseHeaders: []dnr.ModifyHeaderInfo{{
					Header:    "refresh",
					Operation: dnr.HeaderOperationRemove,
				}},
			},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "removeheader_response",
		in:   "||example.org^$removeheader=refresh",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeModifyHeaders,
				ResponseHeaders: []dnr.ModifyHeaderInfo{{
					Header:    headerCSP,
					Operation: dnr.HeaderOperationAppend,
					Value:     "script-src 'self'",
				}},
			},
			Condition: dnr.Condition{
				URLFilter: "||example.org^",
				ResourceTypes: []dnr.ResourceType{
					dnr.ResourceTypeMainFrame,
					dnr.ResourceTypeSubFrame,
				},
			},
		},
		name: "csp",
		in:   "||example.org^$csp=script-src 'self'",
	}, {
		want: &dnr.Rule{
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeModifyHeaders,
				RequestHeaders: []dnr.ModifyHeaderInfo{{
					Header:    headerCookie,
					Operation: dnr.HeaderOperationRemove,
				}},
				ResponseHeaders: []dnr.ModifyHeaderInfo{{
					Header:    headerSetCookie,
					Operation: dnr.HeaderOperationRemove,
				}},
			},
			Condition: dnr.Condition{URLFilter: "||example.org^"},
		},
		name: "cookie",
		in:   "||example.org^$cookie",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, warn, err := c.convert(newTestIndexedRule(t, tc.in, 0))
			require.NoError(t, err)

			assert.Nil(t, warn)
			assert.Equal(t, tc.want, r)
		})
	}
}

func TestRuleConverter_convert_errors(t *testing.T) {
	t.Parallel()

	c := &ruleConverter{resourcesPath: "/war"}

	testCases := []struct {
		check func(t *testing.T, err error)
		name  string
		in    string
	}{{
		check: checkUnsupportedModifier("elemhide"),
		name:  "elemhide",
		in:    "@@||example.org^$elemhide",
	}, {
		check: checkUnsupportedModifier("dnstype"),
		name:  "dnstype",
		in:    "||example.org^$dnstype=A",
	}, {
		check: checkUnsupportedModifier("removeparam"),
		name:  "allowlist_removeparam",
		in:    "@@||example.org^$removeparam=p",
	}, {
		check: checkUnsupportedModifier("removeparam"),
		name:  "negated_removeparam",
		in:    "||example.org^$removeparam=~p",
	}, {
		check: checkUnsupportedModifier("cookie"),
		name:  "cookie_value",
		in:    "||example.org^$cookie=name",
	}, {
		check: checkUnsupportedModifier("redirect-rule"),
		name:  "redirect_rule",
		in:    "||example.org^$redirect-rule=noopjs",
	}, {
		check: func(t *testing.T, err error) {
			t.Helper()

			emptyErr := &EmptyResourcesError{}
			require.ErrorAs(t, err, &emptyErr)

			assert.NotNil(t, emptyErr.DeclarativeRule())
		},
		name: "empty_resources",
		in:   "||example.org^$script,~script",
	}, {
		check: func(t *testing.T, err error) {
			t.Helper()

			emptyErr := &EmptyDomainsError{}
			require.ErrorAs(t, err, &emptyErr)
		},
		name: "empty_domains",
		in:   "||example.org^$domain=example.*",
	}, {
		check: func(t *testing.T, err error) {
			t.Helper()

			reErr := &UnsupportedRegexpError{}
			require.ErrorAs(t, err, &reErr)

			assert.Equal(t, "positive lookahead", reErr.Reason)
			assert.Equal(t, "(?=a)b", reErr.DeclarativeRule().Condition.RegexFilter)
		},
		name: "lookahead",
		in:   "/(?=a)b/",
	}, {
		check: func(t *testing.T, err error) {
			t.Helper()

			reErr := &TooComplexRegexpError{}
			require.ErrorAs(t, err, &reErr)
		},
		name: "too_complex",
		in:   "/a|b|c|d|e|f|g|h|i|j|k|l|m|n|o|p/",
	}, {
		check: func(t *testing.T, err error) {
			t.Helper()

			redirErr := &UnknownRedirectError{}
			require.ErrorAs(t, err, &redirErr)

			assert.Equal(t, "unknown-resource", redirErr.Name)
		},
		name: "unknown_redirect",
		in:   "||example.org^$redirect=unknown-resource",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ir := newTestIndexedRule(t, tc.in, 3)
			r, _, err := c.convert(ir)
			require.Error(t, err)

			assert.Nil(t, r)
			tc.check(t, err)

			convErr, ok := err.(RuleConversionError)
			require.True(t, ok)

			assert.Same(t, ir, convErr.SourceRule())
		})
	}
}

// checkUnsupportedModifier returns a function checking that the error is an
// *UnsupportedModifierError for the modifier.
func checkUnsupportedModifier(modifier string) (f func(t *testing.T, err error)) {
	return func(t *testing.T, err error) {
		t.Helper()

		modErr := &UnsupportedModifierError{}
		require.ErrorAs(t, err, &modErr)

		assert.Equal(t, modifier, modErr.Modifier)
	}
}

func TestRuleConverter_convert_warning(t *testing.T) {
	t.Parallel()

	c := &ruleConverter{}

	r, warn, err := c.convert(newTestIndexedRule(t, "||example.org^$domain=a.com|example.*", 0))
	require.NoError(t, err)
	require.NotNil(t, r)
	require.NotNil(t, warn)

	assert.Equal(t, []string{"a.com"}, r.Condition.InitiatorDomains)
	assert.Equal(t, []string{"example.*"}, warn.Domains)
	assert.Same(t, r, warn.DeclarativeRule())
}

func TestRuleConverter_convert_noResourcesPath(t *testing.T) {
	t.Parallel()

	c := &ruleConverter{}

	_, _, err := c.convert(newTestIndexedRule(t, "||example.org^$redirect=noopjs", 0))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNoResourcesPath)
	assert.True(t, isFatal(err))
}

func TestPriority(t *testing.T) {
	t.Parallel()

	// Precedence: document allowlist > important allowlist > important >
	// allowlist > default.
	ordered := []string{
		"@@||example.org^$document",
		"@@||example.org^$important",
		"||example.org^$important",
		"@@||example.org^",
		"||example.org^",
	}

	prev := 0
	for i, text := range ordered {
		p := priority(newTestIndexedRule(t, text, 0).Rule)
		if i > 0 {
			assert.Less(t, p, prev, text)
		}

		prev = p
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	assert.False(t, isFatal(errors.Error("test")))
	assert.True(t, isFatal(&InvalidOptionError{Err: ErrNoResourcesPath}))
}
