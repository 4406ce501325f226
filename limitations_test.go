package dnrconverter

import (
	"testing"

	"github.com/AdguardTeam/dnrconverter/dnr"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConvertedRule returns a converted rule with the specified id, action
// type, and regexp flag having a single source with index idx.
func newTestConvertedRule(id, idx int, at dnr.ActionType, isRegexp bool) (cr *convertedRule) {
	r := &dnr.Rule{
		ID:       id,
		Priority: priorityDefault,
		Action:   dnr.Action{Type: at},
	}

	if isRegexp {
		r.Condition.RegexFilter = "a+"
	} else {
		r.Condition.URLFilter = "||example.org^"
	}

	return &convertedRule{
		rule: r,
		sources: []*IndexedRule{{
			FilterID: testFilterID,
			Index:    idx,
		}},
	}
}

// ids returns the ids of the rules of crs.
func ids(crs []*convertedRule) (res []int) {
	for _, cr := range crs {
		res = append(res, cr.rule.ID)
	}

	return res
}

func TestLimits_enforce(t *testing.T) {
	t.Parallel()

	crs := []*convertedRule{
		newTestConvertedRule(10, 0, dnr.ActionTypeBlock, false),
		newTestConvertedRule(11, 1, dnr.ActionTypeRedirect, false),
		newTestConvertedRule(12, 2, dnr.ActionTypeBlock, true),
		newTestConvertedRule(13, 3, dnr.ActionTypeModifyHeaders, false),
		newTestConvertedRule(14, 4, dnr.ActionTypeAllow, true),
		newTestConvertedRule(15, 5, dnr.ActionTypeAllow, false),
	}

	one, four := 1, 4

	t.Run("no_limits", func(t *testing.T) {
		t.Parallel()

		kept, lims := (&limits{}).enforce(crs, 1)
		assert.Equal(t, crs, kept)
		assert.Empty(t, lims)
	})

	t.Run("unsafe", func(t *testing.T) {
		t.Parallel()

		kept, lims := (&limits{maxUnsafe: &one}).enforce(crs, 1)
		assert.Equal(t, []int{10, 11, 12, 14, 15}, ids(kept))
		require.Len(t, lims, 1)

		unsafeErr := &TooManyUnsafeRulesError{}
		require.ErrorAs(t, lims[0], &unsafeErr)

		assert.Equal(t, []Source{{FilterID: testFilterID, Index: 3}}, unsafeErr.ExcludedSources())
		assert.Equal(t, 1, unsafeErr.Overflow())
		assert.Equal(t, 1, unsafeErr.Max())
		testutil.AssertErrorMsg(t, "rule set 1: too many unsafe rules: limit is 1, 1 rules excluded", unsafeErr)
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		kept, lims := (&limits{
			maxRules:  &four,
			maxUnsafe: &one,
			maxRegexp: &one,
		}).enforce(crs, 2)

		// The unsafe limit drops 13, the total one drops 15, and the regexp
		// one drops 14.
		assert.Equal(t, []int{10, 11, 12}, ids(kept))
		require.Len(t, lims, 3)

		assert.IsType(t, (*TooManyUnsafeRulesError)(nil), lims[0])
		assert.IsType(t, (*TooManyRulesError)(nil), lims[1])
		assert.IsType(t, (*TooManyRegexpRulesError)(nil), lims[2])

		assert.Equal(t, []Source{{FilterID: testFilterID, Index: 5}}, lims[1].ExcludedSources())
		assert.Equal(t, []Source{{FilterID: testFilterID, Index: 4}}, lims[2].ExcludedSources())
	})
}

func TestCheckRuleIDs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		wantErr error
		name    string
		ids     []int
	}{{
		wantErr: nil,
		name:    "valid",
		ids:     []int{2, 3, maxRuleID},
	}, {
		wantErr: ErrDuplicateRuleID,
		name:    "duplicate",
		ids:     []int{2, 3, 2},
	}, {
		wantErr: ErrRuleIDOutOfRange,
		name:    "zero",
		ids:     []int{0},
	}, {
		wantErr: ErrRuleIDOutOfRange,
		name:    "too_big",
		ids:     []int{maxRuleID + 1},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			crs := make([]*convertedRule, 0, len(tc.ids))
			for i, id := range tc.ids {
				crs = append(crs, newTestConvertedRule(id, i, dnr.ActionTypeBlock, false))
			}

			err := checkRuleIDs(crs)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}
