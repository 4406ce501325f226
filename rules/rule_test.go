package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRule(t *testing.T) {
	testCases := []struct {
		name string
		in   string
	}{{
		name: "empty",
		in:   "",
	}, {
		name: "whitespace",
		in:   "   ",
	}, {
		name: "comment",
		in:   "! Title: Test",
	}, {
		name: "hash_comment",
		in:   "# comment",
	}, {
		name: "header",
		in:   "[Adblock Plus 2.0]",
	}, {
		name: "element_hiding",
		in:   "example.org##.banner",
	}, {
		name: "generic_element_hiding",
		in:   "##.banner",
	}, {
		name: "scriptlet",
		in:   "example.org#%#//scriptlet('abort-on-property-read', 'alert')",
	}, {
		name: "html_filtering",
		in:   "example.org$$script[tag-content=\"ads\"]",
	}, {
		name: "hosts",
		in:   "0.0.0.0 example.org",
	}, {
		name: "hosts_ipv6",
		in:   "::1 localhost",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRule(tc.in, 1)
			require.NoError(t, err)

			assert.Nil(t, r)
		})
	}

	t.Run("network", func(t *testing.T) {
		r, err := NewRule("  ||example.org^$script  ", 1)
		require.NoError(t, err)
		require.NotNil(t, r)

		assert.Equal(t, "||example.org^$script", r.Text())
		assert.Equal(t, 1, r.FilterListID)
	})
}

func TestIsWildcardTLD(t *testing.T) {
	assert.True(t, IsWildcardTLD("example.*"))
	assert.True(t, IsWildcardTLD("sub.example.*"))
	assert.False(t, IsWildcardTLD("example.org"))
	assert.False(t, IsWildcardTLD("*.example.org"))
	assert.False(t, IsWildcardTLD(".*"))
}
