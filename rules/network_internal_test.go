package rules

import (
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkRule_parseRuleText(t *testing.T) {
	testCases := []struct {
		wantAllowlist assert.BoolAssertionFunc
		name          string
		in            string
		wantPattern   string
		wantOptions   string
	}{{
		wantAllowlist: assert.False,
		name:          "url",
		in:            "||example.org^",
		wantPattern:   "||example.org^",
		wantOptions:   "",
	}, {
		wantAllowlist: assert.False,
		name:          "url_with_options",
		in:            "||example.org^$third-party",
		wantPattern:   "||example.org^",
		wantOptions:   "third-party",
	}, {
		wantAllowlist: assert.True,
		name:          "allowlist_url_with_options",
		in:            "@@||example.org^$third-party",
		wantPattern:   "||example.org^",
		wantOptions:   "third-party",
	}, {
		wantAllowlist: assert.False,
		name:          "path_with_options",
		in:            "||example.org/this$is$path$third-party",
		wantPattern:   "||example.org/this$is$path",
		wantOptions:   "third-party",
	}, {
		wantAllowlist: assert.False,
		name:          "options_only",
		in:            "$removeparam=utm_source",
		wantPattern:   "",
		wantOptions:   "removeparam=utm_source",
	}, {
		wantAllowlist: assert.False,
		name:          "regex",
		in:            "/regex/",
		wantPattern:   "/regex/",
		wantOptions:   "",
	}, {
		wantAllowlist: assert.True,
		name:          "allowlist_regex",
		in:            "@@/regex/",
		wantPattern:   "/regex/",
		wantOptions:   "",
	}, {
		wantAllowlist: assert.False,
		name:          "regex_with_options",
		in:            "/regex/$script",
		wantPattern:   "/regex/",
		wantOptions:   "script",
	}, {
		wantAllowlist: assert.False,
		name:          "single_slash",
		in:            "/",
		wantPattern:   "/",
		wantOptions:   "",
	}, {
		wantAllowlist: assert.False,
		name:          "escaped_dollar",
		in:            "||example.org^$removeparam=\\$foo",
		wantPattern:   "||example.org^",
		wantOptions:   "removeparam=$foo",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pattern, options, allowlist, err := parseRuleText(tc.in)
			require.NoError(t, err)

			assert.Equal(t, tc.wantPattern, pattern)
			assert.Equal(t, tc.wantOptions, options)
			tc.wantAllowlist(t, allowlist)
		})
	}

	t.Run("bad_rule", func(t *testing.T) {
		_, _, _, err := parseRuleText("@@")
		testutil.AssertErrorMsg(t, "the rule @@ is too short", err)
	})
}

func TestNetworkRule_NegatesBadfilter(t *testing.T) {
	testCases := []struct {
		want      assert.BoolAssertionFunc
		name      string
		rule      string
		badfilter string
	}{{
		want:      assert.True,
		name:      "success",
		rule:      "*$image,domain=example.org",
		badfilter: "*$image,domain=example.org,badfilter",
	}, {
		want:      assert.False,
		name:      "no_image",
		rule:      "*$image,domain=example.org",
		badfilter: "*$domain=example.org,badfilter",
	}, {
		want:      assert.True,
		name:      "badfilter_first",
		rule:      "*$image,domain=example.org",
		badfilter: "*$image,badfilter,domain=example.org",
	}, {
		want:      assert.False,
		name:      "several_domains",
		rule:      "*$image,domain=example.org|example.com",
		badfilter: "*$image,domain=example.org,badfilter",
	}, {
		want:      assert.True,
		name:      "domains_order",
		rule:      "*$image,domain=example.org|example.com",
		badfilter: "*$image,domain=example.com|example.org,badfilter",
	}, {
		want:      assert.True,
		name:      "allowlist_success",
		rule:      "@@*$image,domain=example.org",
		badfilter: "@@*$image,domain=example.org,badfilter",
	}, {
		want:      assert.False,
		name:      "allowlist_over_badfilter",
		rule:      "@@*$image,domain=example.org",
		badfilter: "*$image,domain=example.org,badfilter",
	}, {
		want:      assert.True,
		name:      "same_removeparam",
		rule:      "$removeparam=utm,domain=example.org",
		badfilter: "$removeparam=utm,domain=example.org,badfilter",
	}, {
		want:      assert.False,
		name:      "different_removeparam",
		rule:      "$removeparam=utm,domain=example.org",
		badfilter: "$removeparam=gclid,domain=example.org,badfilter",
	}, {
		want:      assert.True,
		name:      "methods_order",
		rule:      "||example.org^$method=get|post",
		badfilter: "||example.org^$method=post|get,badfilter",
	}, {
		want:      assert.False,
		name:      "badfilter_negates_badfilter",
		rule:      "||example.org^$badfilter",
		badfilter: "||example.org^$badfilter",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewNetworkRule(tc.rule, -1)
			require.NoError(t, err)
			require.NotNil(t, r)

			b, err := NewNetworkRule(tc.badfilter, -1)
			require.NoError(t, err)
			require.NotNil(t, b)

			tc.want(t, b.NegatesBadfilter(r))
		})
	}
}

func TestLoadMethods(t *testing.T) {
	t.Parallel()

	permitted, restricted, err := loadMethods("GET|post")
	require.NoError(t, err)

	assert.Equal(t, []string{"get", "post"}, permitted)
	assert.Empty(t, restricted)

	permitted, restricted, err = loadMethods("~delete")
	require.NoError(t, err)

	assert.Empty(t, permitted)
	assert.Equal(t, []string{"delete"}, restricted)

	_, _, err = loadMethods("~get|post")
	testutil.AssertErrorMsg(t, "permitted and restricted methods mixed: ~get|post", err)

	_, _, err = loadMethods("fetch")
	testutil.AssertErrorMsg(t, "invalid method specified: fetch", err)
}

func TestLoadDNSTypes(t *testing.T) {
	t.Parallel()

	permitted, restricted, err := loadDNSTypes("AAAA|~a")
	require.NoError(t, err)

	assert.Equal(t, []RRType{dns.TypeAAAA}, permitted)
	assert.Equal(t, []RRType{dns.TypeA}, restricted)

	_, _, err = loadDNSTypes("")
	testutil.AssertErrorMsg(t, "empty dns types", err)

	_, _, err = loadDNSTypes("A|NONE_SUCH")
	testutil.AssertErrorMsg(t, `dns type 1: unknown type "NONE_SUCH"`, err)
}
