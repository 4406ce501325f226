package dnrconverter

import (
	"math"
)

// Ranges of the declarative rule ids.
const (
	// metadataRuleID is the id of the metadata pseudo-rule of a serialized
	// rule set.  It is never minted for converted rules.
	metadataRuleID = 1

	// minRuleID is the minimum id of a converted rule.
	minRuleID = 2

	// maxRuleID is the maximum id of a declarative rule.
	maxRuleID = math.MaxInt32
)

// idMinter mints unique declarative rule ids from the hashes of the rule
// texts.  The ids of unchanged rules stay the same between conversions unless
// they collide with the ids of the preceding rules.  idMinter is not safe for
// concurrent use.
type idMinter struct {
	used map[int]struct{}
}

// newIDMinter returns a new properly initialized *idMinter.
func newIDMinter() (m *idMinter) {
	return &idMinter{
		used: map[int]struct{}{},
	}
}

// mint returns a new unique id for ir.  The salt of the text hash is
// increased until a free id is found.
func (m *idMinter) mint(ir *IndexedRule) (id int) {
	for salt := uint32(0); ; salt++ {
		id = hashToID(ir.TextHash(salt))
		if _, ok := m.used[id]; !ok {
			m.used[id] = struct{}{}

			return id
		}
	}
}

// hashToID maps the text hash h into the range of the converted rule ids.
func hashToID(h uint32) (id int) {
	return int(uint64(h)%(maxRuleID-minRuleID+1)) + minRuleID
}
