package filterlist_test

import (
	"testing"

	"github.com/AdguardTeam/dnrconverter/filterlist"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageIdx(t *testing.T) {
	t.Parallel()

	idx := filterlist.StorageIdx(2, 21)
	assert.Equal(t, int64(0x0000000200000015), idx)

	listID, ruleIdx := filterlist.SplitStorageIdx(idx)
	assert.Equal(t, 2, listID)
	assert.Equal(t, 21, ruleIdx)
}

func TestRuleStorage(t *testing.T) {
	t.Parallel()

	list1 := &filterlist.StringRuleList{
		ID:        1,
		RulesText: "||example.org\n! test\n##banner",
	}
	list2 := &filterlist.StringRuleList{
		ID:        2,
		RulesText: "||example.com$3p\n! test\n||example.net^$all",
	}

	s, err := filterlist.NewRuleStorage(slogutil.NewDiscardLogger(), []filterlist.RuleList{
		list1,
		list2,
	})
	require.NoError(t, err)
	text, err := s.RetrieveRuleText(filterlist.StorageIdx(2, 0))
	require.NoError(t, err)

	assert.Equal(t, "||example.com$3p", text)

	nrs, err := s.RetrieveNetworkRules(filterlist.StorageIdx(1, 0))
	require.NoError(t, err)
	require.Len(t, nrs, 1)

	assert.Equal(t, "||example.org", nrs[0].Text())
	assert.Equal(t, 1, nrs[0].FilterListID)

	nrs, err = s.RetrieveNetworkRules(filterlist.StorageIdx(2, 0))
	require.NoError(t, err)
	require.Len(t, nrs, 1)

	assert.Equal(t, "||example.com$third-party", nrs[0].Text())

	nrs, err = s.RetrieveNetworkRules(filterlist.StorageIdx(2, 2))
	require.NoError(t, err)
	require.Len(t, nrs, 2)

	assert.Equal(t, "||example.net^$document", nrs[0].Text())
	assert.Equal(t, "||example.net^", nrs[1].Text())

	// Cosmetic rules are not network rules.
	nrs, err = s.RetrieveNetworkRules(filterlist.StorageIdx(1, 2))
	require.NoError(t, err)

	assert.Empty(t, nrs)
	assert.Equal(t, 4, s.GetCacheSize())

	// The cache is cleared on close, the rules are still available.
	require.NoError(t, s.Close())
	assert.Zero(t, s.GetCacheSize())

	nrs, err = s.RetrieveNetworkRules(filterlist.StorageIdx(1, 0))
	require.NoError(t, err)
	require.Len(t, nrs, 1)

	assert.Equal(t, 1, s.GetCacheSize())

	_, err = s.RetrieveRuleText(filterlist.StorageIdx(3, 0))
	testutil.AssertErrorMsg(t, "list 3 does not exist", err)
}

func TestNewRuleStorage_duplicate(t *testing.T) {
	t.Parallel()

	_, err := filterlist.NewRuleStorage(slogutil.NewDiscardLogger(), []filterlist.RuleList{
		&filterlist.StringRuleList{ID: 1},
		&filterlist.StringRuleList{ID: 1},
	})
	testutil.AssertErrorMsg(t, "list at index 1: duplicate list id: 1", err)
}
