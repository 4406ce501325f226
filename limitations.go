package dnrconverter

import (
	"fmt"

	"github.com/AdguardTeam/dnrconverter/dnr"
)

// Limitation is a report about the converted rules excluded from a rule set
// because one of the limits has been exceeded.  Limitations are not failures,
// the rule set is still valid.
type Limitation interface {
	error

	// ExcludedSources returns the sources of the excluded rules.
	ExcludedSources() (srcs []Source)

	// Overflow returns the number of excluded declarative rules.
	Overflow() (n int)

	// Max returns the exceeded limit.
	Max() (n int)
}

// limitation is the common part of the limitation reports.
type limitation struct {
	excluded  []Source
	overflow  int
	max       int
	ruleSetID int
}

// ExcludedSources implements the [Limitation] interface for *limitation.
func (l *limitation) ExcludedSources() (srcs []Source) {
	return l.excluded
}

// Overflow implements the [Limitation] interface for *limitation.
func (l *limitation) Overflow() (n int) {
	return l.overflow
}

// Max implements the [Limitation] interface for *limitation.
func (l *limitation) Max() (n int) {
	return l.max
}

// message returns the error message of a limitation of the specified kind.
func (l *limitation) message(kind string) (msg string) {
	return fmt.Sprintf(
		"rule set %d: too many %s rules: limit is %d, %d rules excluded",
		l.ruleSetID,
		kind,
		l.max,
		l.overflow,
	)
}

// TooManyRulesError is reported when the total number of declarative rules
// exceeds the limit.
type TooManyRulesError struct {
	limitation
}

// type check
var _ Limitation = (*TooManyRulesError)(nil)

// Error implements the [error] interface for *TooManyRulesError.
func (e *TooManyRulesError) Error() (msg string) {
	return e.message("declarative")
}

// TooManyUnsafeRulesError is reported when the number of unsafe declarative
// rules exceeds the limit.
type TooManyUnsafeRulesError struct {
	limitation
}

// type check
var _ Limitation = (*TooManyUnsafeRulesError)(nil)

// Error implements the [error] interface for *TooManyUnsafeRulesError.
func (e *TooManyUnsafeRulesError) Error() (msg string) {
	return e.message("unsafe")
}

// TooManyRegexpRulesError is reported when the number of declarative rules
// with regular expressions exceeds the limit.
type TooManyRegexpRulesError struct {
	limitation
}

// type check
var _ Limitation = (*TooManyRegexpRulesError)(nil)

// Error implements the [error] interface for *TooManyRegexpRulesError.
func (e *TooManyRegexpRulesError) Error() (msg string) {
	return e.message("regexp")
}

// limits are the optional limits of a rule set.  nil means no limit.
type limits struct {
	maxRules  *int
	maxUnsafe *int
	maxRegexp *int
}

// enforce excludes the rules exceeding the limits keeping the emission order.
// The unsafe limit is applied first, then the total one, and then the regexp
// one on the already trimmed rules.  It returns one report per exceeded
// limit.
func (l *limits) enforce(crs []*convertedRule, ruleSetID int) (kept []*convertedRule, lims []Limitation) {
	kept = crs

	if l.maxUnsafe != nil {
		var excl *limitation
		kept, excl = dropOverLimit(kept, *l.maxUnsafe, func(r *dnr.Rule) (ok bool) {
			return !r.IsSafe()
		})
		if excl != nil {
			excl.ruleSetID = ruleSetID
			lims = append(lims, &TooManyUnsafeRulesError{limitation: *excl})
		}
	}

	if l.maxRules != nil {
		var excl *limitation
		kept, excl = dropOverLimit(kept, *l.maxRules, nil)
		if excl != nil {
			excl.ruleSetID = ruleSetID
			lims = append(lims, &TooManyRulesError{limitation: *excl})
		}
	}

	if l.maxRegexp != nil {
		var excl *limitation
		kept, excl = dropOverLimit(kept, *l.maxRegexp, (*dnr.Rule).IsRegexp)
		if excl != nil {
			excl.ruleSetID = ruleSetID
			lims = append(lims, &TooManyRegexpRulesError{limitation: *excl})
		}
	}

	return kept, lims
}

// dropOverLimit keeps the first maxNum rules matching counted, or the first
// maxNum rules at all if counted is nil.  excl is nil if no rule has been
// dropped.
func dropOverLimit(
	crs []*convertedRule,
	maxNum int,
	counted func(r *dnr.Rule) (ok bool),
) (kept []*convertedRule, excl *limitation) {
	kept = make([]*convertedRule, 0, len(crs))
	n := 0
	for _, cr := range crs {
		if counted != nil && !counted(cr.rule) {
			kept = append(kept, cr)

			continue
		}

		n++
		if n <= maxNum {
			kept = append(kept, cr)

			continue
		}

		if excl == nil {
			excl = &limitation{max: maxNum}
		}

		excl.overflow++
		for _, ir := range cr.sources {
			excl.excluded = append(excl.excluded, ir.Source())
		}
	}

	return kept, excl
}

// checkRuleIDs returns an error if the ids of crs are not unique or out of
// range.  Such an error means a defect in the conversion.
func checkRuleIDs(crs []*convertedRule) (err error) {
	seen := make(map[int]struct{}, len(crs))
	for _, cr := range crs {
		id := cr.rule.ID
		if id < metadataRuleID || id > maxRuleID {
			return fmt.Errorf("rule id %d: %w", id, ErrRuleIDOutOfRange)
		}

		if _, ok := seen[id]; ok {
			return fmt.Errorf("rule id %d: %w", id, ErrDuplicateRuleID)
		}

		seen[id] = struct{}{}
	}

	return nil
}
