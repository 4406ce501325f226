package dnrconverter

import (
	"fmt"

	"github.com/AdguardTeam/dnrconverter/rules"
)

// RulesGroup is the class of rules that require the same conversion and
// merge strategy.
type RulesGroup uint8

// RulesGroup values.  The order of the values is the emission order of the
// converted groups.
const (
	GroupRegular RulesGroup = iota
	GroupRemoveParam
	GroupRemoveHeader
	GroupCsp
	GroupBadFilter

	groupsNum
)

// String implements the [fmt.Stringer] interface for RulesGroup.
func (g RulesGroup) String() (s string) {
	switch g {
	case GroupRegular:
		return "regular"
	case GroupRemoveParam:
		return "removeparam"
	case GroupRemoveHeader:
		return "removeheader"
	case GroupCsp:
		return "csp"
	case GroupBadFilter:
		return "badfilter"
	default:
		return fmt.Sprintf("!bad_group_%d", uint8(g))
	}
}

// groupOf returns the group of nr.  $badfilter takes precedence over the
// other group-determining modifiers.
func groupOf(nr *rules.NetworkRule) (g RulesGroup) {
	switch {
	case nr.IsOptionEnabled(rules.OptionBadfilter):
		return GroupBadFilter
	case nr.IsOptionEnabled(rules.OptionRemoveParam):
		return GroupRemoveParam
	case nr.IsOptionEnabled(rules.OptionRemoveHeader):
		return GroupRemoveHeader
	case nr.IsOptionEnabled(rules.OptionCsp):
		return GroupCsp
	default:
		return GroupRegular
	}
}

// groupedRules are the rules of a single filter partitioned into groups.
type groupedRules [groupsNum][]*IndexedRule

// groupRules partitions irs into groups keeping the source order.
func groupRules(irs []*IndexedRule) (g *groupedRules) {
	g = &groupedRules{}
	for _, ir := range irs {
		grp := groupOf(ir.Rule)
		g[grp] = append(g[grp], ir)
	}

	return g
}

// len returns the total number of rules in all groups.
func (g *groupedRules) len() (n int) {
	for _, irs := range g {
		n += len(irs)
	}

	return n
}
