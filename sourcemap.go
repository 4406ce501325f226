package dnrconverter

import (
	"encoding/json"
	"fmt"
)

// Source is the position of a source rule.
type Source struct {
	// FilterID is the identifier of the filter.
	FilterID int

	// Index is the 0-based line index of the rule in the filter.
	Index int
}

// sourceEntry is a single entry of a source map.
type sourceEntry struct {
	src Source
	id  int
}

// SourceMap maps declarative rule ids to the source rules they have been
// converted from and back.  A declarative rule may have several sources if
// rules have been merged.  SourceMap is immutable after the conversion.
type SourceMap struct {
	byID     map[int][]Source
	bySource map[Source][]int
	entries  []sourceEntry
}

// newSourceMap returns a new empty *SourceMap.
func newSourceMap() (sm *SourceMap) {
	return &SourceMap{
		byID:     map[int][]Source{},
		bySource: map[Source][]int{},
	}
}

// add adds a mapping between the declarative rule id and src.
func (sm *SourceMap) add(id int, src Source) {
	sm.entries = append(sm.entries, sourceEntry{src: src, id: id})
	sm.byID[id] = append(sm.byID[id], src)
	sm.bySource[src] = append(sm.bySource[src], id)
}

// Sources returns the sources of the declarative rule with the specified id.
func (sm *SourceMap) Sources(id int) (srcs []Source) {
	return sm.byID[id]
}

// RuleIDs returns the ids of the declarative rules converted from src.
func (sm *SourceMap) RuleIDs(src Source) (ids []int) {
	return sm.bySource[src]
}

// Len returns the number of entries in the source map.
func (sm *SourceMap) Len() (n int) {
	return len(sm.entries)
}

// MarshalJSON implements the [json.Marshaler] interface for *SourceMap.  The
// entries are encoded as [id, index, filterID] arrays.
func (sm *SourceMap) MarshalJSON() (b []byte, err error) {
	tuples := make([][3]int, 0, len(sm.entries))
	for _, e := range sm.entries {
		tuples = append(tuples, [3]int{e.id, e.src.Index, e.src.FilterID})
	}

	return json.Marshal(tuples)
}

// UnmarshalJSON implements the [json.Unmarshaler] interface for *SourceMap.
func (sm *SourceMap) UnmarshalJSON(b []byte) (err error) {
	var tuples [][3]int
	err = json.Unmarshal(b, &tuples)
	if err != nil {
		return fmt.Errorf("source map: %w", err)
	}

	*sm = *newSourceMap()
	for _, t := range tuples {
		sm.add(t[0], Source{FilterID: t[2], Index: t[1]})
	}

	return nil
}
