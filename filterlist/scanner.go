package filterlist

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/dnrconverter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// ScanError is an error that occurred while parsing a single line of a rule
// list.  Scan errors are recoverable: the scanner skips the line and
// continues.
type ScanError struct {
	// Err is the underlying parsing error.
	Err error

	// Line is the trimmed text of the line.
	Line string

	// FilterID is the identifier of the rule list.
	FilterID int

	// LineIndex is the 0-based index of the line in the rule list.
	LineIndex int
}

// type check
var _ errors.Wrapper = (*ScanError)(nil)

// Error implements the [error] interface for *ScanError.
func (e *ScanError) Error() (msg string) {
	return fmt.Sprintf("filter %d: line %d: %q: %s", e.FilterID, e.LineIndex, e.Line, e.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *ScanError.
func (e *ScanError) Unwrap() (err error) {
	return e.Err
}

// RuleScanner implements an interface for reading network filtering rules
// from the lines of a rule list.  One line can produce several rules when its
// canonical form expands, all of them share the line index.
type RuleScanner struct {
	// conversions maps the canonical rule texts to the original lines they
	// have been produced from.  Only rewritten lines are present.
	conversions map[string]string

	// current is the rule returned by the last successful Scan.
	current *rules.NetworkRule

	// lines are the lines of the rule list.
	lines []string

	// pending are the rules of the current line that have not been returned
	// yet.
	pending []*rules.NetworkRule

	// errs are the scan errors collected so far.
	errs []error

	// listID is the identifier of the rule list.
	listID int

	// lineIdx is the index of the line being processed.
	lineIdx int

	// currentIdx is the line index of current.
	currentIdx int
}

// NewRuleScanner returns a new RuleScanner over lines.  listID is the rule
// list identifier set to each scanned rule.
func NewRuleScanner(lines []string, listID int) (s *RuleScanner) {
	return &RuleScanner{
		conversions: map[string]string{},
		lines:       lines,
		listID:      listID,
		lineIdx:     -1,
	}
}

// Scan advances the RuleScanner to the next rule, which will then be available
// through the Rule method.  It returns false when the scan stops by reaching
// the end of the input.
func (s *RuleScanner) Scan() (ok bool) {
	for len(s.pending) == 0 {
		if s.lineIdx+1 >= len(s.lines) {
			s.lineIdx = len(s.lines)
			s.current = nil

			return false
		}

		s.lineIdx++
		s.pending = s.readLine(s.lineIdx)
	}

	s.current, s.pending = s.pending[0], s.pending[1:]
	s.currentIdx = s.lineIdx

	return true
}

// Rule returns the most recent rule generated by a call to Scan, and the index
// of the line this rule was read from.
func (s *RuleScanner) Rule() (r *rules.NetworkRule, idx int) {
	return s.current, s.currentIdx
}

// Errors returns the scan errors collected so far.  Each error is a
// *ScanError.
func (s *RuleScanner) Errors() (errs []error) {
	return s.errs
}

// ConversionMap returns the map of canonical rule texts to the original lines.
func (s *RuleScanner) ConversionMap() (m map[string]string) {
	return s.conversions
}

// readLine parses the line with the specified index, records the errors and
// the conversions, and returns the parsed rules.
func (s *RuleScanner) readLine(idx int) (nrs []*rules.NetworkRule) {
	text := strings.TrimSpace(s.lines[idx])

	nrs, err := parseLine(text, s.listID)
	if err != nil {
		s.errs = append(s.errs, &ScanError{
			Err:       err,
			Line:      text,
			FilterID:  s.listID,
			LineIndex: idx,
		})
	}

	for _, nr := range nrs {
		if nr.RuleText != text {
			s.conversions[nr.RuleText] = text
		}
	}

	return nrs
}

// parseLine canonicalizes the trimmed line and parses the results into
// network rules.  nrs contains all the rules that have been parsed
// successfully even if err is not nil.
func parseLine(text string, listID int) (nrs []*rules.NetworkRule, err error) {
	if !rules.IsNetworkRuleText(text) {
		return nil, nil
	}

	canonical, err := rules.Canonicalize(text)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, c := range canonical {
		var nr *rules.NetworkRule
		nr, err = rules.NewRule(c, listID)
		if err != nil {
			errs = append(errs, err)
		} else if nr != nil {
			nrs = append(nrs, nr)
		}
	}

	return nrs, errors.Join(errs...)
}
