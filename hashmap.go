package dnrconverter

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// hashMapBase is the base of the hashes in the serialized rules hash map.
const hashMapBase = 36

// RulesHashMap maps the pattern hashes of the source rules to their sources.
// It allows finding the rules that may be negated by a $badfilter rule
// without loading the rule set content.
type RulesHashMap struct {
	sources map[uint64][]Source
}

// newRulesHashMap returns a new empty *RulesHashMap.
func newRulesHashMap() (m *RulesHashMap) {
	return &RulesHashMap{
		sources: map[uint64][]Source{},
	}
}

// add adds the source with the specified pattern hash.
func (m *RulesHashMap) add(h uint64, src Source) {
	m.sources[h] = append(m.sources[h], src)
}

// Lookup returns the sources of the rules with the pattern hash h.
func (m *RulesHashMap) Lookup(h uint64) (srcs []Source) {
	return m.sources[h]
}

// Len returns the number of distinct hashes in m.
func (m *RulesHashMap) Len() (n int) {
	return len(m.sources)
}

// Serialize returns the compact string form of m.  Each hash is mapped to a
// flat array of filter identifier and index pairs.
func (m *RulesHashMap) Serialize() (s string, err error) {
	data := make(map[string][]int, len(m.sources))
	for h, srcs := range m.sources {
		flat := make([]int, 0, len(srcs)*2)
		for _, src := range srcs {
			flat = append(flat, src.FilterID, src.Index)
		}

		data[strconv.FormatUint(h, hashMapBase)] = flat
	}

	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding rules hash map: %w", err)
	}

	return string(b), nil
}

// DeserializeRulesHashMap parses the string returned by
// [RulesHashMap.Serialize].
func DeserializeRulesHashMap(s string) (m *RulesHashMap, err error) {
	var data map[string][]int
	err = json.Unmarshal([]byte(s), &data)
	if err != nil {
		return nil, fmt.Errorf("decoding rules hash map: %w", err)
	}

	m = newRulesHashMap()
	for k, flat := range data {
		h, parseErr := strconv.ParseUint(k, hashMapBase, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("rules hash map: bad hash %q: %w", k, parseErr)
		}

		if len(flat)%2 != 0 {
			return nil, fmt.Errorf("rules hash map: hash %q: odd number of values", k)
		}

		for i := 0; i < len(flat); i += 2 {
			m.add(h, Source{FilterID: flat[i], Index: flat[i+1]})
		}
	}

	return m, nil
}
