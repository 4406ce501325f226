package dnrconverter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/AdguardTeam/dnrconverter/filterlist"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"golang.org/x/sync/errgroup"
)

// PerFilterResult is the result of [ConvertPerFilter].
type PerFilterResult struct {
	// RuleSets are the rule sets of the filters that have been converted in
	// the order of the filters.
	RuleSets []*RuleSet

	// Errors are the errors of the filters, lines, and rules that have not
	// been converted along with the warnings of the converted rules.
	Errors []error

	// Limitations are the reports about the rules excluded because of the
	// limits.
	Limitations []Limitation
}

// SingleResult is the result of [ConvertToSingle].
type SingleResult struct {
	// RuleSet is the rule set with the rules of all filters.
	RuleSet *RuleSet

	// Errors are the errors of the filters, lines, and rules that have not
	// been converted along with the warnings of the converted rules.
	Errors []error

	// Limitations are the reports about the rules excluded because of the
	// limits.
	Limitations []Limitation
}

// DynamicResult is the result of [ConvertDynamic].
type DynamicResult struct {
	// RuleSet is the rule set with the rules of all dynamic filters.
	RuleSet *RuleSet

	// DeclarativeRulesToCancel are the declarative rules of the static rule
	// sets negated by the $badfilter rules of the dynamic filters.
	DeclarativeRulesToCancel []*DeclarativeRulesToCancel

	// Errors are the errors of the filters, lines, and rules that have not
	// been converted along with the warnings of the converted rules.
	Errors []error

	// Limitations are the reports about the rules excluded because of the
	// limits.
	Limitations []Limitation
}

// ConvertPerFilter converts each filter into its own rule set with the id of
// the filter.  $badfilter rules negate the rules of all filters.  err is only
// returned if the options are invalid or the conversion is broken, the
// problems with single filters and rules are reported in the result.  A nil
// opts is the same as empty options.
func ConvertPerFilter(
	ctx context.Context,
	filters []filterlist.RuleList,
	opts *Options,
) (res *PerFilterResult, err error) {
	c, err := newConversion(opts, filters)
	if err != nil {
		return nil, err
	}

	states, errs := c.scan(ctx, filters, nil)
	c.negate(ctx, states)

	err = c.convertGroups(ctx, states)
	if err != nil {
		return nil, err
	}

	res = &PerFilterResult{
		Errors: errs,
	}

	for _, s := range states {
		rs, rsErrs, lims, buildErr := c.build(ctx, s.scan.list.GetID(), []*filterState{s})
		if buildErr != nil {
			return nil, buildErr
		}

		res.RuleSets = append(res.RuleSets, rs)
		res.Errors = append(res.Errors, rsErrs...)
		res.Limitations = append(res.Limitations, lims...)
	}

	return res, nil
}

// ConvertToSingle converts all filters into a single rule set with the id from
// the options.  See [ConvertPerFilter] for the error handling.
func ConvertToSingle(
	ctx context.Context,
	filters []filterlist.RuleList,
	opts *Options,
) (res *SingleResult, err error) {
	c, err := newConversion(opts, filters)
	if err != nil {
		return nil, err
	}

	states, errs := c.scan(ctx, filters, nil)
	c.negate(ctx, states)

	err = c.convertGroups(ctx, states)
	if err != nil {
		return nil, err
	}

	rs, rsErrs, lims, err := c.build(ctx, c.opts.RuleSetID, states)
	if err != nil {
		return nil, err
	}

	return &SingleResult{
		RuleSet:     rs,
		Errors:      append(errs, rsErrs...),
		Limitations: lims,
	}, nil
}

// ConvertDynamic converts the dynamic filters into a single rule set with the
// id from the options.  The $badfilter rules of the static rule sets negate
// the rules of the dynamic filters, and the $badfilter rules of the dynamic
// filters negate the declarative rules of the static rule sets, see
// [DynamicResult.DeclarativeRulesToCancel].  static must not contain nil
// rule sets.  See [ConvertPerFilter] for the error handling.
func ConvertDynamic(
	ctx context.Context,
	filters []filterlist.RuleList,
	static []*RuleSet,
	opts *Options,
) (res *DynamicResult, err error) {
	c, err := newConversion(opts, filters)
	if err != nil {
		return nil, err
	}

	if i := slices.Index(static, nil); i >= 0 {
		return nil, fmt.Errorf("static rule set at index %d: %w", i, ErrNoRuleSet)
	}

	staticIdx, errs := staticBadfilterIndex(static)

	var keep scanPredicate
	if len(staticIdx) > 0 {
		keep = func(ir *IndexedRule) (ok bool) {
			return !staticIdx.negates(ir)
		}
	}

	states, scanErrs := c.scan(ctx, filters, keep)
	errs = append(errs, scanErrs...)
	dynamicIdx := c.negate(ctx, states)

	err = c.convertGroups(ctx, states)
	if err != nil {
		return nil, err
	}

	rs, rsErrs, lims, err := c.build(ctx, c.opts.RuleSetID, states)
	if err != nil {
		return nil, err
	}

	toCancel, cancelErrs := rulesToCancel(ctx, static, dynamicIdx)

	errs = append(errs, rsErrs...)

	return &DynamicResult{
		RuleSet:                  rs,
		DeclarativeRulesToCancel: toCancel,
		Errors:                   append(errs, cancelErrs...),
		Limitations:              lims,
	}, nil
}

// filterState is the state of the conversion of a single filter.
type filterState struct {
	// scan is the result of scanning the filter.
	scan *scanResult

	// groups are the scanned rules partitioned into groups.
	groups *groupedRules

	// converted are the results of converting the groups.
	converted [groupsNum]*groupResult
}

// conversion is a single conversion call.  The id minter is shared by all rule
// sets of the call.
type conversion struct {
	logger    *slog.Logger
	opts      *Options
	converter *ruleConverter
	minter    *idMinter
}

// newConversion validates opts and the identifiers of filters and returns a
// new conversion.
func newConversion(opts *Options, filters []filterlist.RuleList) (c *conversion, err error) {
	if opts == nil {
		opts = &Options{}
	}

	err = opts.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating options: %w", err)
	}

	err = validateFilterIDs(filters)
	if err != nil {
		return nil, fmt.Errorf("validating filters: %w", err)
	}

	return &conversion{
		logger: opts.logger(),
		opts:   opts,
		converter: &ruleConverter{
			resourcesPath: opts.ResourcesPath,
		},
		minter: newIDMinter(),
	}, nil
}

// validateFilterIDs returns an error if two filters have the same identifier.
func validateFilterIDs(filters []filterlist.RuleList) (err error) {
	seen := make(map[int]struct{}, len(filters))
	for i, l := range filters {
		id := l.GetID()
		if _, ok := seen[id]; ok {
			return fmt.Errorf("filter at index %d: %w: %d", i, ErrDuplicateFilterID, id)
		}

		seen[id] = struct{}{}
	}

	return nil
}

// scan scans and groups the filters concurrently.  The filters that cannot be
// read are reported in errs and skipped, states keep the order of the rest.
func (c *conversion) scan(
	ctx context.Context,
	filters []filterlist.RuleList,
	keep scanPredicate,
) (states []*filterState, errs []error) {
	all := make([]*filterState, len(filters))
	filterErrs := make([]error, len(filters))
	maxScanned := c.opts.maxScanned()

	g := &errgroup.Group{}
	for i, l := range filters {
		g.Go(func() (err error) {
			res, scanErr := scanFilter(l, keep, maxScanned)
			if scanErr != nil {
				filterErrs[i] = scanErr

				return nil
			}

			all[i] = &filterState{
				scan:   res,
				groups: groupRules(res.rules),
			}

			return nil
		})
	}

	// The tasks never fail, the errors of the filters are collected above.
	_ = g.Wait()

	for i, s := range all {
		if err := filterErrs[i]; err != nil {
			c.logger.WarnContext(ctx, "skipping filter", slogutil.KeyError, err)
			errs = append(errs, err)

			continue
		}

		c.logger.DebugContext(
			ctx,
			"scanned filter",
			"id", s.scan.list.GetID(),
			"rules", len(s.scan.rules),
			"errors", len(s.scan.errs),
		)

		errs = append(errs, s.scan.errs...)
		states = append(states, s)
	}

	return states, errs
}

// negate removes the rules negated by the $badfilter rules of all states and
// returns the index of those $badfilter rules.
func (c *conversion) negate(ctx context.Context, states []*filterState) (idx badfilterIndex) {
	groups := make([]*groupedRules, 0, len(states))
	for _, s := range states {
		groups = append(groups, s.groups)
	}

	idx = newBadfilterIndex(groups)
	removed := applyBadfilters(groups, idx)
	c.logger.DebugContext(ctx, "applied badfilter rules", "patterns", len(idx), "removed", removed)

	return idx
}

// convertGroups converts the groups of all states concurrently.
func (c *conversion) convertGroups(ctx context.Context, states []*filterState) (err error) {
	g, _ := errgroup.WithContext(ctx)
	for _, s := range states {
		for grp := range groupsNum {
			g.Go(func() (err error) {
				res, err := convertGroup(c.converter, grp, s.groups[grp])
				if err != nil {
					return fmt.Errorf("filter %d: group %s: %w", s.scan.list.GetID(), grp, err)
				}

				s.converted[grp] = res

				return nil
			})
		}
	}

	return g.Wait()
}

// build mints the ids of the converted rules of states, enforces the limits,
// and assembles the rule set.  err is only returned if the conversion is
// broken.
func (c *conversion) build(
	ctx context.Context,
	id int,
	states []*filterState,
) (rs *RuleSet, errs []error, lims []Limitation, err error) {
	var crs []*convertedRule
	var badFilterRules []string
	scans := make([]*scanResult, 0, len(states))
	for _, s := range states {
		scans = append(scans, s.scan)
		for _, res := range s.converted {
			crs = append(crs, res.rules...)
			errs = append(errs, res.errs...)
		}

		for _, ir := range s.groups[GroupBadFilter] {
			badFilterRules = append(badFilterRules, ir.Rule.Text())
		}
	}

	for _, cr := range crs {
		cr.rule.ID = c.minter.mint(cr.sources[0])
	}

	kept, lims := c.opts.limits().enforce(crs, id)
	for _, l := range lims {
		c.logger.InfoContext(ctx, "rules excluded", "rule_set", id, slogutil.KeyError, l)
	}

	err = checkRuleIDs(kept)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rule set %d: %w", id, err)
	}

	for _, cr := range kept {
		errs = append(errs, cr.warnings...)
	}

	rs, err = assembleRuleSet(c.logger, id, kept, badFilterRules, scans)
	if err != nil {
		return nil, nil, nil, err
	}

	c.logger.DebugContext(
		ctx,
		"assembled rule set",
		"id", id,
		"rules", rs.RulesCount(),
		"unsafe", rs.UnsafeRulesCount(),
		"regexp", rs.RegexpRulesCount(),
	)

	return rs, errs, lims, nil
}
