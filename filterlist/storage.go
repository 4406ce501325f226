package filterlist

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/AdguardTeam/dnrconverter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// RuleStorage is an abstraction that combines several rule lists.  It allows
// retrieving rules by their storage index.
//
// The idea is to keep rules in their original text format and create them in
// a lazy manner only when we really need them.  Converted rule sets keep
// storage indexes of the source rules instead of the rules themselves.  The
// rules are created (see [RuleStorage.RetrieveNetworkRules]) only when they
// are requested.
//
// Storage index is an int64 value that actually consists of two int32 values:
// one is the rule list identifier, and the second is the index of the rule
// inside of that list.
type RuleStorage struct {
	// logger is used to report closing of the storage.
	logger *slog.Logger

	// cacheMu protects cache.
	cacheMu *sync.RWMutex

	// cache with the rules which were retrieved.
	cache map[int64][]*rules.NetworkRule

	// listsMap is a map with rule lists.  map key is the list ID.
	listsMap map[int]RuleList

	// lists is an array of rules lists which can be accessed using this
	// RuleStorage.
	lists []RuleList
}

// NewRuleStorage creates a new instance of the RuleStorage and validates the
// list of rules specified.  logger must not be nil.
func NewRuleStorage(logger *slog.Logger, lists []RuleList) (s *RuleStorage, err error) {
	if lists == nil {
		lists = make([]RuleList, 0)
	}

	listsMap := make(map[int]RuleList, len(lists))
	for i, list := range lists {
		id := list.GetID()
		if _, ok := listsMap[id]; ok {
			return nil, fmt.Errorf("list at index %d: duplicate list id: %d", i, id)
		}

		listsMap[id] = list
	}

	return &RuleStorage{
		logger:   logger,
		cacheMu:  &sync.RWMutex{},
		cache:    map[int64][]*rules.NetworkRule{},
		listsMap: listsMap,
		lists:    lists,
	}, nil
}

// StorageIdx converts pair of listID and rule list index to a single int64
// storage index.
func StorageIdx(listID, ruleIdx int) (storageIdx int64) {
	return int64(listID)<<32 | int64(ruleIdx)&0xFFFFFFFF
}

// SplitStorageIdx converts the storage index to the rule list identifier and
// the index of the rule in the list.
func SplitStorageIdx(storageIdx int64) (listID, ruleIdx int) {
	return int(storageIdx >> 32), int(int32(storageIdx))
}

// RetrieveRuleText returns the text of the rule with the specified storage
// index.
func (s *RuleStorage) RetrieveRuleText(storageIdx int64) (text string, err error) {
	listID, ruleIdx := SplitStorageIdx(storageIdx)

	list, ok := s.listsMap[listID]
	if !ok {
		return "", fmt.Errorf("list %d does not exist", listID)
	}

	return list.RetrieveRuleText(ruleIdx)
}

// RetrieveNetworkRules looks for the filtering rule in this storage and
// returns the network rules it is canonicalized into.  The result is empty if
// the line is not a network rule.
func (s *RuleStorage) RetrieveNetworkRules(storageIdx int64) (nrs []*rules.NetworkRule, err error) {
	var ok bool
	func() {
		s.cacheMu.RLock()
		defer s.cacheMu.RUnlock()

		nrs, ok = s.cache[storageIdx]
	}()
	if ok {
		return nrs, nil
	}

	text, err := s.RetrieveRuleText(storageIdx)
	if err != nil {
		return nil, err
	}

	listID, _ := SplitStorageIdx(storageIdx)
	nrs, err = parseLine(text, listID)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[storageIdx] = nrs

	return nrs, nil
}

// Close closes the rule lists of the storage and clears the cache.  The
// storage can still be used after that, the lists are read again on demand.
func (s *RuleStorage) Close() (err error) {
	if len(s.lists) == 0 {
		return nil
	}

	var errs []error
	for _, l := range s.lists {
		err = l.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}

	func() {
		s.cacheMu.Lock()
		defer s.cacheMu.Unlock()

		s.logger.Debug("closing rule storage", "lists", len(s.lists), "cached", len(s.cache))

		clear(s.cache)
	}()

	return errors.Annotate(errors.Join(errs...), "closing rule lists: %w")
}

// GetCacheSize returns the size of the in-memory rules cache.
func (s *RuleStorage) GetCacheSize() (sz int) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	return len(s.cache)
}
