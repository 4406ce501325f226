package dnrconverter

import (
	"fmt"

	"github.com/AdguardTeam/dnrconverter/dnr"
	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrTooManyScannedRules is returned when the scan ceiling is reached.
	ErrTooManyScannedRules errors.Error = "too many scanned rules"

	// ErrNoResourcesPath is returned when a redirect rule is converted without
	// the web-accessible resources path.
	ErrNoResourcesPath errors.Error = "resources path is required to convert redirect rules"

	// ErrDuplicateRuleID is returned when two converted declarative rules
	// have the same id.
	ErrDuplicateRuleID errors.Error = "duplicate declarative rule id"

	// ErrRuleIDOutOfRange is returned when a converted declarative rule has
	// an id out of the allowed range.
	ErrRuleIDOutOfRange errors.Error = "declarative rule id out of range"

	// ErrDuplicateFilterID is returned when two filters of a conversion call
	// have the same identifier.
	ErrDuplicateFilterID errors.Error = "duplicate filter id"

	// ErrNoRuleSet is returned when the static rule set for negation is nil.
	ErrNoRuleSet errors.Error = "no rule set"
)

// RuleConversionError is an error that occurred while converting a single
// rule.  The source rule is always known, the declarative rule is nil if the
// conversion stopped before it has been built.
type RuleConversionError interface {
	error

	// SourceRule returns the rule that has been converted.
	SourceRule() (r *IndexedRule)

	// DeclarativeRule returns the candidate declarative rule, possibly
	// invalid, or nil.
	DeclarativeRule() (r *dnr.Rule)
}

// conversionError is the common part of rule conversion errors.
type conversionError struct {
	source      *IndexedRule
	declarative *dnr.Rule
}

// SourceRule implements the [RuleConversionError] interface for
// conversionError.
func (e *conversionError) SourceRule() (r *IndexedRule) {
	return e.source
}

// DeclarativeRule implements the [RuleConversionError] interface for
// conversionError.
func (e *conversionError) DeclarativeRule() (r *dnr.Rule) {
	return e.declarative
}

// prefix returns the description of the source rule for error messages.
func (e *conversionError) prefix() (s string) {
	return fmt.Sprintf(
		"filter %d: line %d: %q",
		e.source.FilterID,
		e.source.Index,
		e.source.Rule.Text(),
	)
}

// UnsupportedModifierError is returned when the rule has a modifier which has
// no declarative equivalent.
type UnsupportedModifierError struct {
	conversionError

	// Modifier is the name of the modifier.
	Modifier string

	// Reason is an optional clarification.
	Reason string
}

// type check
var _ RuleConversionError = (*UnsupportedModifierError)(nil)

// Error implements the [error] interface for *UnsupportedModifierError.
func (e *UnsupportedModifierError) Error() (msg string) {
	msg = fmt.Sprintf("%s: unsupported modifier $%s", e.prefix(), e.Modifier)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	return msg
}

// UnsupportedRegexpError is returned when the regular expression of the rule
// uses syntax not supported by the declarative engine.
type UnsupportedRegexpError struct {
	conversionError

	// Reason describes the unsupported syntax.
	Reason string
}

// type check
var _ RuleConversionError = (*UnsupportedRegexpError)(nil)

// Error implements the [error] interface for *UnsupportedRegexpError.
func (e *UnsupportedRegexpError) Error() (msg string) {
	return fmt.Sprintf("%s: unsupported regexp: %s", e.prefix(), e.Reason)
}

// TooComplexRegexpError is returned when the regular expression of the rule
// is likely to be rejected by the declarative engine as too complex.
type TooComplexRegexpError struct {
	conversionError
}

// type check
var _ RuleConversionError = (*TooComplexRegexpError)(nil)

// Error implements the [error] interface for *TooComplexRegexpError.
func (e *TooComplexRegexpError) Error() (msg string) {
	return fmt.Sprintf("%s: regexp is too complex", e.prefix())
}

// EmptyResourcesError is returned when the resource types of the rule
// contradict each other.
type EmptyResourcesError struct {
	conversionError
}

// type check
var _ RuleConversionError = (*EmptyResourcesError)(nil)

// Error implements the [error] interface for *EmptyResourcesError.
func (e *EmptyResourcesError) Error() (msg string) {
	return fmt.Sprintf("%s: empty resource types", e.prefix())
}

// EmptyDomainsError is returned when no permitted domain of the rule can be
// converted.
type EmptyDomainsError struct {
	conversionError
}

// type check
var _ RuleConversionError = (*EmptyDomainsError)(nil)

// Error implements the [error] interface for *EmptyDomainsError.
func (e *EmptyDomainsError) Error() (msg string) {
	return fmt.Sprintf("%s: no permitted domains left after conversion", e.prefix())
}

// UnsupportedDomainsError is a warning returned when some domains of a
// converted rule have been dropped.  The rule is converted.
type UnsupportedDomainsError struct {
	conversionError

	// Domains are the dropped domains.
	Domains []string
}

// type check
var _ RuleConversionError = (*UnsupportedDomainsError)(nil)

// Error implements the [error] interface for *UnsupportedDomainsError.
func (e *UnsupportedDomainsError) Error() (msg string) {
	return fmt.Sprintf("%s: dropped unsupported domains %q", e.prefix(), e.Domains)
}

// InvalidPatternError is returned when the pattern of the rule cannot be
// converted into a url filter.
type InvalidPatternError struct {
	conversionError

	// Err is the underlying error, if any.
	Err error
}

// type check
var (
	_ RuleConversionError = (*InvalidPatternError)(nil)
	_ errors.Wrapper      = (*InvalidPatternError)(nil)
)

// Error implements the [error] interface for *InvalidPatternError.
func (e *InvalidPatternError) Error() (msg string) {
	return fmt.Sprintf("%s: invalid pattern: %s", e.prefix(), e.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *InvalidPatternError.
func (e *InvalidPatternError) Unwrap() (err error) {
	return e.Err
}

// UnknownRedirectError is returned when the redirect resource of the rule is
// unknown.
type UnknownRedirectError struct {
	conversionError

	// Name is the name of the redirect resource.
	Name string
}

// type check
var _ RuleConversionError = (*UnknownRedirectError)(nil)

// Error implements the [error] interface for *UnknownRedirectError.
func (e *UnknownRedirectError) Error() (msg string) {
	return fmt.Sprintf("%s: unknown redirect resource %q", e.prefix(), e.Name)
}

// TooManyScannedRulesError is returned when the scan ceiling is reached.  The
// rules starting from LineIndex are not scanned.
type TooManyScannedRulesError struct {
	// FilterID is the identifier of the filter.
	FilterID int

	// LineIndex is the index of the line at which the scan stopped.
	LineIndex int

	// Limit is the scan ceiling.
	Limit int
}

// type check
var _ errors.Wrapper = (*TooManyScannedRulesError)(nil)

// Error implements the [error] interface for *TooManyScannedRulesError.
func (e *TooManyScannedRulesError) Error() (msg string) {
	return fmt.Sprintf(
		"filter %d: line %d: %s: limit is %d",
		e.FilterID,
		e.LineIndex,
		ErrTooManyScannedRules,
		e.Limit,
	)
}

// Unwrap implements the [errors.Wrapper] interface for
// *TooManyScannedRulesError.
func (e *TooManyScannedRulesError) Unwrap() (err error) {
	return ErrTooManyScannedRules
}

// FilterError is returned when a whole filter cannot be converted, for
// example when its contents are unavailable.  Other filters of the batch are
// converted anyway.
type FilterError struct {
	// Err is the underlying error.
	Err error

	// FilterID is the identifier of the filter.
	FilterID int
}

// type check
var _ errors.Wrapper = (*FilterError)(nil)

// Error implements the [error] interface for *FilterError.
func (e *FilterError) Error() (msg string) {
	return fmt.Sprintf("filter %d: %s", e.FilterID, e.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *FilterError.
func (e *FilterError) Unwrap() (err error) {
	return e.Err
}

// InvalidOptionError is returned when the conversion options are invalid.
type InvalidOptionError struct {
	// Err is the underlying error.
	Err error

	// Option is the name of the option.
	Option string

	// Value is the string representation of the invalid value.
	Value string
}

// type check
var _ errors.Wrapper = (*InvalidOptionError)(nil)

// Error implements the [error] interface for *InvalidOptionError.
func (e *InvalidOptionError) Error() (msg string) {
	return fmt.Sprintf("option %s: bad value %q: %s", e.Option, e.Value, e.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *InvalidOptionError.
func (e *InvalidOptionError) Unwrap() (err error) {
	return e.Err
}
