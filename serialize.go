package dnrconverter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AdguardTeam/dnrconverter/dnr"
	"github.com/AdguardTeam/dnrconverter/filterlist"
	"github.com/AdguardTeam/golibs/errors"
)

// ErrNoMetadata is returned when a serialized rule set does not start with
// the metadata rule.
const ErrNoMetadata errors.Error = "no metadata rule"

// metadataURLFilter is the URL filter of the metadata rule.  It never matches
// a real request.
const metadataURLFilter = "|adguard-metadata-rule:"

// metadataRule is the first rule of a serialized rule set.  It carries the
// data of the rule set in its metadata field.
type metadataRule struct {
	dnr.Rule

	Metadata string `json:"metadata"`
}

// ruleSetMetadata is the data of a serialized rule set.
type ruleSetMetadata struct {
	// RawFilters are the texts of the source filters by their identifiers.
	RawFilters map[int]string `json:"rawFilterList"`

	// ConversionMap maps the canonical rule texts to the original ones.
	ConversionMap map[string]string `json:"conversionMap,omitempty"`

	// Data is the data available without loading the content.
	Data ruleSetData `json:"data"`

	// LazyData is the data required to load the content.
	LazyData ruleSetLazyData `json:"lazyData"`

	// ID is the identifier of the rule set.
	ID int `json:"id"`
}

// ruleSetData is the eagerly loaded part of the rule set data.
type ruleSetData struct {
	RulesHashMap     string   `json:"rulesHashMap"`
	BadFilterRules   []string `json:"badFilterRules"`
	RulesCount       int      `json:"rulesCount"`
	UnsafeRulesCount int      `json:"unsafeRulesCount"`
	RegexpRulesCount int      `json:"regexpRulesCount"`
}

// ruleSetLazyData is the lazily loaded part of the rule set data.
type ruleSetLazyData struct {
	SourceMap json.RawMessage `json:"sourceMap"`
	FilterIDs []int           `json:"filterIds"`
}

// newMetadataRule returns the metadata rule carrying the encoded metadata.
func newMetadataRule(metadata string) (r *metadataRule) {
	return &metadataRule{
		Metadata: metadata,
		Rule: dnr.Rule{
			ID:       metadataRuleID,
			Priority: priorityDefault,
			Action: dnr.Action{
				Type: dnr.ActionTypeAllow,
			},
			Condition: dnr.Condition{
				URLFilter:     metadataURLFilter,
				ResourceTypes: []dnr.ResourceType{dnr.ResourceTypeOther},
			},
		},
	}
}

// Serialize returns the compact JSON document of the rule set: an array of
// declarative rules starting with the metadata rule.  The content is loaded
// if necessary.
func (rs *RuleSet) Serialize(ctx context.Context) (b []byte, err error) {
	c, err := rs.LoadContent(ctx)
	if err != nil {
		return nil, err
	}

	hashMap, err := rs.hashMap.Serialize()
	if err != nil {
		return nil, fmt.Errorf("rule set %d: %w", rs.id, err)
	}

	sourceMap, err := json.Marshal(c.SourceMap)
	if err != nil {
		return nil, fmt.Errorf("rule set %d: encoding source map: %w", rs.id, err)
	}

	md := &ruleSetMetadata{
		RawFilters:    rs.rawFilters,
		ConversionMap: rs.conversions,
		Data: ruleSetData{
			RulesHashMap:     hashMap,
			BadFilterRules:   rs.badFilterRules,
			RulesCount:       rs.rulesCount,
			UnsafeRulesCount: rs.unsafeRulesCount,
			RegexpRulesCount: rs.regexpRulesCount,
		},
		LazyData: ruleSetLazyData{
			SourceMap: sourceMap,
			FilterIDs: rs.filterIDs,
		},
		ID: rs.id,
	}

	mdb, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("rule set %d: encoding metadata: %w", rs.id, err)
	}

	doc := make([]any, 0, len(c.Rules)+1)
	doc = append(doc, newMetadataRule(string(mdb)))
	for _, r := range c.Rules {
		doc = append(doc, r)
	}

	b, err = json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("rule set %d: encoding rules: %w", rs.id, err)
	}

	return b, nil
}

// Deserialize parses the document returned by [RuleSet.Serialize].  The
// declarative rules and the source map are only decoded when the content is
// loaded.  logger must not be nil.
func Deserialize(logger *slog.Logger, b []byte) (rs *RuleSet, err error) {
	var raw []json.RawMessage
	err = json.Unmarshal(b, &raw)
	if err != nil {
		return nil, fmt.Errorf("decoding rule set: %w", err)
	}

	if len(raw) == 0 {
		return nil, ErrNoMetadata
	}

	mr := &metadataRule{}
	err = json.Unmarshal(raw[0], mr)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata rule: %w", err)
	} else if mr.ID != metadataRuleID || mr.Metadata == "" {
		return nil, ErrNoMetadata
	}

	md := &ruleSetMetadata{}
	err = json.Unmarshal([]byte(mr.Metadata), md)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	hashMap, err := DeserializeRulesHashMap(md.Data.RulesHashMap)
	if err != nil {
		return nil, err
	}

	rawRules := raw[1:]

	return newRuleSet(&ruleSetConfig{
		logger:           logger,
		loader:           newDeserializedLoader(logger, rawRules, md),
		hashMap:          hashMap,
		rawFilters:       md.RawFilters,
		conversions:      md.ConversionMap,
		badFilterRules:   md.Data.BadFilterRules,
		filterIDs:        md.LazyData.FilterIDs,
		id:               md.ID,
		rulesCount:       md.Data.RulesCount,
		unsafeRulesCount: md.Data.UnsafeRulesCount,
		regexpRulesCount: md.Data.RegexpRulesCount,
	}), nil
}

// newDeserializedLoader returns the loader that decodes the rules and the
// source map of a deserialized rule set and builds the storage from the raw
// filter texts.
func newDeserializedLoader(
	logger *slog.Logger,
	rawRules []json.RawMessage,
	md *ruleSetMetadata,
) (l contentLoader) {
	return func(_ context.Context) (c *RuleSetContent, err error) {
		c = &RuleSetContent{
			SourceMap: newSourceMap(),
			Rules:     make([]*dnr.Rule, 0, len(rawRules)),
		}

		for i, rr := range rawRules {
			r := &dnr.Rule{}
			err = json.Unmarshal(rr, r)
			if err != nil {
				return nil, fmt.Errorf("decoding rule at index %d: %w", i+1, err)
			}

			c.Rules = append(c.Rules, r)
		}

		err = json.Unmarshal(md.LazyData.SourceMap, c.SourceMap)
		if err != nil {
			return nil, err
		}

		lists := make([]filterlist.RuleList, 0, len(md.LazyData.FilterIDs))
		for _, id := range md.LazyData.FilterIDs {
			text, ok := md.RawFilters[id]
			if !ok {
				return nil, fmt.Errorf("filter %d: %w", id, filterlist.ErrSourceUnavailable)
			}

			lists = append(lists, &filterlist.StringRuleList{
				RulesText: text,
				ID:        id,
			})
		}

		c.Storage, err = filterlist.NewRuleStorage(logger, lists)
		if err != nil {
			return nil, fmt.Errorf("creating storage: %w", err)
		}

		return c, nil
	}
}
