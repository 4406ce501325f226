package filterlist

import (
	"sync"
)

// StringRuleList represents a string-based rule list.
type StringRuleList struct {
	// linesOnce makes sure that RulesText is split only once.
	linesOnce sync.Once

	// RulesText is the string with filtering rules, one per line.
	RulesText string

	// lines is the result of splitting RulesText.
	lines []string

	// ID is the rule list ID.
	ID int
}

// type check
var _ RuleList = (*StringRuleList)(nil)

// GetID implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) GetID() (id int) {
	return l.ID
}

// Lines implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) Lines() (lines []string, err error) {
	l.linesOnce.Do(func() {
		l.lines = splitLines(l.RulesText)
	})

	return l.lines, nil
}

// RetrieveRuleText implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) RetrieveRuleText(idx int) (text string, err error) {
	lines, _ := l.Lines()

	return retrieveLine(lines, idx)
}

// Close implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) Close() (err error) {
	return nil
}
