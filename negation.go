package dnrconverter

import (
	"context"
	"fmt"
	"slices"

	"github.com/AdguardTeam/dnrconverter/filterlist"
	"github.com/AdguardTeam/dnrconverter/rules"
)

// badfilterIndex is the set of $badfilter rules indexed by their pattern
// hashes.
type badfilterIndex map[uint64][]*rules.NetworkRule

// newBadfilterIndex returns the index of the $badfilter rules from all groups.
func newBadfilterIndex(groups []*groupedRules) (idx badfilterIndex) {
	idx = badfilterIndex{}
	for _, g := range groups {
		for _, ir := range g[GroupBadFilter] {
			idx.add(ir.PatternHash, ir.Rule)
		}
	}

	return idx
}

// add adds a $badfilter rule with the specified pattern hash to the index.
func (idx badfilterIndex) add(h uint64, nr *rules.NetworkRule) {
	idx[h] = append(idx[h], nr)
}

// negates returns true if any $badfilter rule from the index negates ir.
func (idx badfilterIndex) negates(ir *IndexedRule) (ok bool) {
	return idx.negatesRule(ir.PatternHash, ir.Rule)
}

// negatesRule returns true if any $badfilter rule from the index negates nr
// with the specified pattern hash.
func (idx badfilterIndex) negatesRule(h uint64, nr *rules.NetworkRule) (ok bool) {
	for _, bf := range idx[h] {
		if bf.NegatesBadfilter(nr) {
			return true
		}
	}

	return false
}

// applyBadfilters removes the rules negated by the $badfilter rules in idx
// from every group except [GroupBadFilter] of every filter.  It returns the
// number of removed rules.
func applyBadfilters(groups []*groupedRules, idx badfilterIndex) (removed int) {
	if len(idx) == 0 {
		return 0
	}

	for _, g := range groups {
		for grp := range g {
			if RulesGroup(grp) == GroupBadFilter {
				continue
			}

			before := len(g[grp])
			g[grp] = slices.DeleteFunc(g[grp], idx.negates)
			removed += before - len(g[grp])
		}
	}

	return removed
}

// DeclarativeRulesToCancel are the declarative rules of a static rule set
// which are negated by the $badfilter rules of a dynamic conversion.
type DeclarativeRulesToCancel struct {
	// RuleSetID is the identifier of the static rule set.
	RuleSetID int

	// DisableRuleIDs are the identifiers of the declarative rules that must
	// be disabled.
	DisableRuleIDs []int
}

// staticBadfilterIndex returns the index of the $badfilter rules retained by
// the static rule sets.
func staticBadfilterIndex(static []*RuleSet) (idx badfilterIndex, errs []error) {
	idx = badfilterIndex{}
	for _, rs := range static {
		for _, text := range rs.BadFilterRules() {
			nr, err := rules.NewRule(text, 0)
			if err != nil {
				errs = append(errs, fmt.Errorf("rule set %d: badfilter rule: %w", rs.ID(), err))

				continue
			} else if nr == nil {
				continue
			}

			idx.add(patternHash(nr), nr)
		}
	}

	return idx, errs
}

// rulesToCancel finds the declarative rules of the static rule sets negated by
// the $badfilter rules in idx.  A declarative rule is canceled only if all of
// its source rules are negated.  The static rule set contents are loaded if
// needed, a rule set that cannot be loaded contributes an error.
func rulesToCancel(
	ctx context.Context,
	static []*RuleSet,
	idx badfilterIndex,
) (res []*DeclarativeRulesToCancel, errs []error) {
	if len(idx) == 0 {
		return nil, nil
	}

	for _, rs := range static {
		ids, err := rs.negatedRuleIDs(ctx, idx)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule set %d: %w", rs.ID(), err))

			continue
		}

		if len(ids) > 0 {
			res = append(res, &DeclarativeRulesToCancel{
				RuleSetID:      rs.ID(),
				DisableRuleIDs: ids,
			})
		}
	}

	return res, errs
}

// negatedRuleIDs returns the sorted identifiers of the declarative rules of rs
// whose every source rule is negated by a $badfilter rule from idx.
func (rs *RuleSet) negatedRuleIDs(ctx context.Context, idx badfilterIndex) (ids []int, err error) {
	var candidates []Source
	for h := range idx {
		candidates = append(candidates, rs.hashMap.Lookup(h)...)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	content, err := rs.LoadContent(ctx)
	if err != nil {
		return nil, err
	}

	negated := map[Source]bool{}
	for _, src := range candidates {
		negated[src], err = sourceNegated(content.Storage, src, idx)
		if err != nil {
			return nil, err
		}
	}

	seen := map[int]struct{}{}
	for _, src := range candidates {
		if !negated[src] {
			continue
		}

		for _, id := range content.SourceMap.RuleIDs(src) {
			if _, dup := seen[id]; dup {
				continue
			}

			seen[id] = struct{}{}

			var all bool
			all, err = allSourcesNegated(content, id, negated, idx)
			if err != nil {
				return nil, err
			} else if all {
				ids = append(ids, id)
			}
		}
	}

	slices.Sort(ids)

	return ids, nil
}

// sourceNegated returns true if any rule produced by the source line is
// negated by a $badfilter rule from idx.  err is returned if the source line
// cannot be parsed again.
func sourceNegated(s *filterlist.RuleStorage, src Source, idx badfilterIndex) (ok bool, err error) {
	nrs, err := s.RetrieveNetworkRules(filterlist.StorageIdx(src.FilterID, src.Index))
	if err != nil {
		return false, fmt.Errorf("source %d:%d: %w", src.FilterID, src.Index, err)
	}

	for _, nr := range nrs {
		if idx.negatesRule(patternHash(nr), nr) {
			return true, nil
		}
	}

	return false, nil
}

// allSourcesNegated returns true if all sources of the declarative rule with
// the specified id are negated.  known caches the results.
func allSourcesNegated(
	c *RuleSetContent,
	id int,
	known map[Source]bool,
	idx badfilterIndex,
) (ok bool, err error) {
	for _, src := range c.SourceMap.Sources(id) {
		negated, found := known[src]
		if !found {
			negated, err = sourceNegated(c.Storage, src, idx)
			if err != nil {
				return false, err
			}

			known[src] = negated
		}

		if !negated {
			return false, nil
		}
	}

	return true, nil
}
