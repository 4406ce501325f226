package dnrconverter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AdguardTeam/dnrconverter/dnr"
	"github.com/AdguardTeam/dnrconverter/filterlist"
	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/sync/singleflight"
)

// contentFlightKey is the single-flight key of the content loading.
const contentFlightKey = "content"

// RuleSetContent is the part of a rule set loaded on demand.
type RuleSetContent struct {
	// SourceMap maps the declarative rules to their source rules.
	SourceMap *SourceMap

	// Storage provides the texts of the source rules.
	Storage *filterlist.RuleStorage

	// Rules are the declarative rules of the rule set.
	Rules []*dnr.Rule
}

// contentLoader loads the content of a rule set.
type contentLoader func(ctx context.Context) (c *RuleSetContent, err error)

// OriginalRule is a source rule of a declarative rule.
type OriginalRule struct {
	// Text is the text of the source line.
	Text string

	Source
}

// RuleSet is a set of declarative rules along with the data required to map
// them to their sources and to cancel them with $badfilter rules later.  The
// declarative rules and the source map are loaded on demand, see
// [RuleSet.LoadContent].
type RuleSet struct {
	// content is the loaded content, it is nil if the content is not loaded.
	content atomic.Pointer[RuleSetContent]

	// logger is used to log the content loading.
	logger *slog.Logger

	// flight makes sure that only one content load is in progress.
	flight *singleflight.Group

	// loadMu is held during loading and unloading the content.
	loadMu *sync.Mutex

	// loader loads the content.
	loader contentLoader

	// hashMap maps the pattern hashes of the source rules to their sources.
	hashMap *RulesHashMap

	// rawFilters are the texts of the source filters by their identifiers.
	rawFilters map[int]string

	// conversions maps the canonical rule texts to the original ones.
	conversions map[string]string

	// badFilterRules are the texts of the $badfilter rules of the rule set.
	badFilterRules []string

	// filterIDs are the sorted identifiers of the source filters.
	filterIDs []int

	id               int
	rulesCount       int
	unsafeRulesCount int
	regexpRulesCount int
}

// ruleSetConfig is the configuration of a new rule set.
type ruleSetConfig struct {
	logger         *slog.Logger
	loader         contentLoader
	hashMap        *RulesHashMap
	rawFilters     map[int]string
	conversions    map[string]string
	badFilterRules []string
	filterIDs      []int
	id             int

	rulesCount       int
	unsafeRulesCount int
	regexpRulesCount int
}

// newRuleSet returns a new *RuleSet with unloaded content.
func newRuleSet(c *ruleSetConfig) (rs *RuleSet) {
	return &RuleSet{
		logger:           c.logger,
		flight:           &singleflight.Group{},
		loadMu:           &sync.Mutex{},
		loader:           c.loader,
		hashMap:          c.hashMap,
		rawFilters:       c.rawFilters,
		conversions:      c.conversions,
		badFilterRules:   c.badFilterRules,
		filterIDs:        c.filterIDs,
		id:               c.id,
		rulesCount:       c.rulesCount,
		unsafeRulesCount: c.unsafeRulesCount,
		regexpRulesCount: c.regexpRulesCount,
	}
}

// assembleRuleSet builds the rule set from the converted rules with minted
// ids.  scans are the results of scanning the source filters.
func assembleRuleSet(
	logger *slog.Logger,
	id int,
	crs []*convertedRule,
	badFilterRules []string,
	scans []*scanResult,
) (rs *RuleSet, err error) {
	content := &RuleSetContent{
		SourceMap: newSourceMap(),
		Rules:     make([]*dnr.Rule, 0, len(crs)),
	}

	conf := &ruleSetConfig{
		logger:         logger,
		hashMap:        newRulesHashMap(),
		rawFilters:     make(map[int]string, len(scans)),
		conversions:    map[string]string{},
		badFilterRules: badFilterRules,
		id:             id,
		rulesCount:     len(crs),
	}

	for _, cr := range crs {
		content.Rules = append(content.Rules, cr.rule)
		for _, ir := range cr.sources {
			content.SourceMap.add(cr.rule.ID, ir.Source())
			conf.hashMap.add(ir.PatternHash, ir.Source())
		}

		if !cr.rule.IsSafe() {
			conf.unsafeRulesCount++
		}

		if cr.rule.IsRegexp() {
			conf.regexpRulesCount++
		}
	}

	lists := make([]filterlist.RuleList, 0, len(scans))
	for _, s := range scans {
		lists = append(lists, s.list)
		conf.rawFilters[s.list.GetID()] = s.rawText
		conf.filterIDs = append(conf.filterIDs, s.list.GetID())
		for k, v := range s.conversions {
			conf.conversions[k] = v
		}
	}

	slices.Sort(conf.filterIDs)

	content.Storage, err = filterlist.NewRuleStorage(logger, lists)
	if err != nil {
		return nil, fmt.Errorf("rule set %d: creating storage: %w", id, err)
	}

	conf.loader = func(_ context.Context) (c *RuleSetContent, err error) {
		return content, nil
	}

	rs = newRuleSet(conf)
	rs.content.Store(content)

	return rs, nil
}

// ID returns the identifier of the rule set.
func (rs *RuleSet) ID() (id int) {
	return rs.id
}

// RulesCount returns the number of declarative rules in the rule set.
func (rs *RuleSet) RulesCount() (n int) {
	return rs.rulesCount
}

// UnsafeRulesCount returns the number of unsafe declarative rules in the rule
// set.
func (rs *RuleSet) UnsafeRulesCount() (n int) {
	return rs.unsafeRulesCount
}

// RegexpRulesCount returns the number of declarative rules with regular
// expressions in the rule set.
func (rs *RuleSet) RegexpRulesCount() (n int) {
	return rs.regexpRulesCount
}

// BadFilterRules returns the texts of the $badfilter rules of the rule set.
func (rs *RuleSet) BadFilterRules() (texts []string) {
	return rs.badFilterRules
}

// RulesHashMap returns the map of the pattern hashes of the source rules.
func (rs *RuleSet) RulesHashMap() (m *RulesHashMap) {
	return rs.hashMap
}

// FilterIDs returns the sorted identifiers of the source filters.
func (rs *RuleSet) FilterIDs() (ids []int) {
	return rs.filterIDs
}

// IsContentLoaded returns true if the content of the rule set is loaded.
func (rs *RuleSet) IsContentLoaded() (ok bool) {
	return rs.content.Load() != nil
}

// LoadContent returns the content of the rule set loading it if necessary.
// Concurrent calls share a single load.  It is safe for concurrent use.
func (rs *RuleSet) LoadContent(ctx context.Context) (c *RuleSetContent, err error) {
	if c = rs.content.Load(); c != nil {
		return c, nil
	}

	v, err, _ := rs.flight.Do(contentFlightKey, func() (v any, err error) {
		rs.loadMu.Lock()
		defer rs.loadMu.Unlock()

		if loaded := rs.content.Load(); loaded != nil {
			return loaded, nil
		}

		rs.logger.DebugContext(ctx, "loading rule set content", "id", rs.id)

		loaded, err := rs.loader(ctx)
		if err != nil {
			return nil, err
		}

		rs.content.Store(loaded)

		return loaded, nil
	})
	if err != nil {
		return nil, errors.Annotate(err, "rule set %d: loading content: %w", rs.id)
	}

	return v.(*RuleSetContent), nil
}

// UnloadContent frees the loaded content and closes its storage.  If the
// content is being loaded, it waits for the load to finish first.  It is safe
// for concurrent use.
func (rs *RuleSet) UnloadContent() (err error) {
	rs.loadMu.Lock()
	defer rs.loadMu.Unlock()

	c := rs.content.Swap(nil)
	if c == nil {
		return nil
	}

	rs.logger.Debug("unloading rule set content", "id", rs.id, "cached", c.Storage.GetCacheSize())

	return errors.Annotate(c.Storage.Close(), "rule set %d: unloading content: %w", rs.id)
}

// DeclarativeRules returns the declarative rules of the rule set.
func (rs *RuleSet) DeclarativeRules(ctx context.Context) (rules []*dnr.Rule, err error) {
	c, err := rs.LoadContent(ctx)
	if err != nil {
		return nil, err
	}

	return c.Rules, nil
}

// RulesByDeclarativeID returns the source rules of the declarative rule with
// the specified id.  The result is empty if there is no such rule.
func (rs *RuleSet) RulesByDeclarativeID(ctx context.Context, id int) (rules []*OriginalRule, err error) {
	c, err := rs.LoadContent(ctx)
	if err != nil {
		return nil, err
	}

	for _, src := range c.SourceMap.Sources(id) {
		var text string
		text, err = c.Storage.RetrieveRuleText(filterlist.StorageIdx(src.FilterID, src.Index))
		if err != nil {
			return nil, fmt.Errorf("rule %d: source %d:%d: %w", id, src.FilterID, src.Index, err)
		}

		rules = append(rules, &OriginalRule{
			Text:   text,
			Source: src,
		})
	}

	return rules, nil
}

// DeclarativeRulesIDsBySource returns the ids of the declarative rules
// converted from the rule at src.
func (rs *RuleSet) DeclarativeRulesIDsBySource(ctx context.Context, src Source) (ids []int, err error) {
	c, err := rs.LoadContent(ctx)
	if err != nil {
		return nil, err
	}

	return c.SourceMap.RuleIDs(src), nil
}
