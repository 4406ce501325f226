package dnrconverter

import (
	"strings"

	"github.com/AdguardTeam/dnrconverter/filterlist"
	"github.com/AdguardTeam/dnrconverter/internal/fasthash"
	"github.com/AdguardTeam/dnrconverter/rules"
	"github.com/cespare/xxhash/v2"
)

// IndexedRule is a network rule with its position in the source filter and
// the hashes used for negation and id minting.
type IndexedRule struct {
	// Rule is the parsed network rule.
	Rule *rules.NetworkRule

	// FilterID is the identifier of the source filter.
	FilterID int

	// Index is the 0-based line index of the rule in the source filter.
	Index int

	// PatternHash is the hash of the matching pattern of the rule.
	PatternHash uint64
}

// newIndexedRule returns a new *IndexedRule for nr read from the line with the
// specified index.
func newIndexedRule(nr *rules.NetworkRule, filterID, idx int) (ir *IndexedRule) {
	return &IndexedRule{
		Rule:        nr,
		FilterID:    filterID,
		Index:       idx,
		PatternHash: patternHash(nr),
	}
}

// patternHash returns the hash of the matching pattern of nr.  Rules that can
// negate each other have the same pattern hash.
func patternHash(nr *rules.NetworkRule) (h uint64) {
	return xxhash.Sum64String(nr.Pattern())
}

// TextHash returns the salted hash of the rule text used as the base of the
// declarative rule id.
func (r *IndexedRule) TextHash(salt uint32) (h uint32) {
	return fasthash.Salted(r.Rule.Text(), salt)
}

// Source returns the source reference of the rule.
func (r *IndexedRule) Source() (src Source) {
	return Source{
		FilterID: r.FilterID,
		Index:    r.Index,
	}
}

// scanPredicate returns false if the rule must be dropped during the scan.
type scanPredicate func(ir *IndexedRule) (keep bool)

// scanResult is the result of scanning a single filter.
type scanResult struct {
	// conversions maps canonical rule texts to the original lines.
	conversions map[string]string

	// list is the scanned filter.
	list filterlist.RuleList

	// rules are the scanned network rules in source order.
	rules []*IndexedRule

	// errs are the scan errors.
	errs []error

	// rawText is the raw text of the filter.
	rawText string
}

// scanFilter reads the lines of list and converts them into indexed rules.
// keep may be nil.  maxScanned is the scan ceiling, zero means no ceiling.
// err is only returned if the filter contents are unavailable, per-line
// errors are collected in the result.
func scanFilter(list filterlist.RuleList, keep scanPredicate, maxScanned int) (res *scanResult, err error) {
	lines, err := list.Lines()
	if err != nil {
		return nil, &FilterError{Err: err, FilterID: list.GetID()}
	}

	filterID := list.GetID()
	s := filterlist.NewRuleScanner(lines, filterID)
	res = &scanResult{
		list:    list,
		rawText: strings.Join(lines, "\n"),
	}

	scanned := 0
	for s.Scan() {
		nr, idx := s.Rule()
		if maxScanned > 0 && scanned >= maxScanned {
			res.errs = append(res.errs, &TooManyScannedRulesError{
				FilterID:  filterID,
				LineIndex: idx,
				Limit:     maxScanned,
			})

			break
		}

		scanned++
		ir := newIndexedRule(nr, filterID, idx)
		if keep != nil && !keep(ir) {
			continue
		}

		res.rules = append(res.rules, ir)
	}

	res.errs = append(s.Errors(), res.errs...)
	res.conversions = s.ConversionMap()

	return res, nil
}
