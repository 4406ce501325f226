package dnrconverter

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/dnrconverter/dnr"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/cespare/xxhash/v2"
)

// cspSeparator separates the merged CSP directives.
const cspSeparator = "; "

// convertedRule is a declarative rule along with its source rules.
type convertedRule struct {
	// rule is the converted declarative rule.  Its id is zero until it is
	// minted.
	rule *dnr.Rule

	// sources are the rules the declarative rule has been converted from in
	// source order.  The first one defines the id.
	sources []*IndexedRule

	// warnings are the errors that did not prevent the conversion.  They are
	// dropped along with the rule.
	warnings []error
}

// groupResult is the result of converting a single group.
type groupResult struct {
	// rules are the converted rules in source order of their first sources.
	rules []*convertedRule

	// errs are the errors of the rules that have not been converted.
	errs []error
}

// mergeStrategy describes how the rules of a group are merged.
type mergeStrategy struct {
	// strip removes the mergeable payload from the rule.
	strip func(r *dnr.Rule)

	// merge adds the payload of src to dst.
	merge func(dst, src *dnr.Rule)
}

// convertGroup converts the rules of the group g.  err is only returned if the
// whole conversion must be aborted.
func convertGroup(c *ruleConverter, g RulesGroup, irs []*IndexedRule) (res *groupResult, err error) {
	switch g {
	case GroupRegular:
		return convertRules(c, irs, nil)
	case GroupRemoveParam:
		return convertRules(c, irs, &mergeStrategy{
			strip: stripRemoveParams,
			merge: mergeRemoveParams,
		})
	case GroupRemoveHeader:
		return convertRules(c, irs, &mergeStrategy{
			strip: stripHeaders,
			merge: mergeHeaders,
		})
	case GroupCsp:
		return convertRules(c, irs, &mergeStrategy{
			strip: stripHeaders,
			merge: mergeCSP,
		})
	case GroupBadFilter:
		return &groupResult{}, nil
	default:
		return nil, fmt.Errorf("converting rules: unexpected group %s", g)
	}
}

// convertRules converts irs one by one.  If ms is not nil, the rules that only
// differ in the mergeable payload are merged into the first one.
func convertRules(c *ruleConverter, irs []*IndexedRule, ms *mergeStrategy) (res *groupResult, err error) {
	res = &groupResult{}
	templates := map[uint64]*convertedRule{}
	for _, ir := range irs {
		r, warn, convErr := c.convert(ir)
		if convErr != nil {
			if isFatal(convErr) {
				return nil, convErr
			}

			res.errs = append(res.errs, convErr)

			continue
		}

		cr := &convertedRule{
			rule:    r,
			sources: []*IndexedRule{ir},
		}
		if warn != nil {
			cr.warnings = append(cr.warnings, warn)
		}

		if ms == nil {
			res.rules = append(res.rules, cr)

			continue
		}

		key, keyErr := templateKey(r, ms.strip)
		if keyErr != nil {
			return nil, fmt.Errorf("rule at line %d: %w", ir.Index, keyErr)
		}

		if first, ok := templates[key]; ok {
			ms.merge(first.rule, r)
			first.sources = append(first.sources, ir)
			first.warnings = append(first.warnings, cr.warnings...)

			continue
		}

		templates[key] = cr
		res.rules = append(res.rules, cr)
	}

	return res, nil
}

// isFatal returns true if err must abort the conversion.
func isFatal(err error) (ok bool) {
	var optErr *InvalidOptionError

	return errors.As(err, &optErr)
}

// templateKey returns the fingerprint of r with its mergeable payload removed
// by strip.
func templateKey(r *dnr.Rule, strip func(r *dnr.Rule)) (key uint64, err error) {
	tmpl := r.Clone()
	strip(tmpl)

	b, err := json.Marshal(tmpl)
	if err != nil {
		return 0, fmt.Errorf("encoding template: %w", err)
	}

	return xxhash.Sum64(b), nil
}

// stripRemoveParams removes the query parameters from the action of r.
func stripRemoveParams(r *dnr.Rule) {
	if t := transformOf(r); t != nil && t.QueryTransform != nil {
		t.QueryTransform.RemoveParams = nil
	}
}

// mergeRemoveParams adds the query parameters removed by src to dst.
func mergeRemoveParams(dst, src *dnr.Rule) {
	dt, st := transformOf(dst), transformOf(src)
	if dt == nil || st == nil || dt.QueryTransform == nil || st.QueryTransform == nil {
		return
	}

	for _, p := range st.QueryTransform.RemoveParams {
		if !slices.Contains(dt.QueryTransform.RemoveParams, p) {
			dt.QueryTransform.RemoveParams = append(dt.QueryTransform.RemoveParams, p)
		}
	}
}

// transformOf returns the URL transform of the action of r or nil.
func transformOf(r *dnr.Rule) (t *dnr.URLTransform) {
	if r.Action.Redirect == nil {
		return nil
	}

	return r.Action.Redirect.Transform
}

// stripHeaders removes the header modifications from the action of r.
func stripHeaders(r *dnr.Rule) {
	r.Action.RequestHeaders = nil
	r.Action.ResponseHeaders = nil
}

// mergeHeaders adds the header modifications of src to dst.
func mergeHeaders(dst, src *dnr.Rule) {
	dst.Action.RequestHeaders = appendHeaders(dst.Action.RequestHeaders, src.Action.RequestHeaders)
	dst.Action.ResponseHeaders = appendHeaders(dst.Action.ResponseHeaders, src.Action.ResponseHeaders)
}

// appendHeaders appends the header modifications from src that are not in dst
// yet.
func appendHeaders(dst, src []dnr.ModifyHeaderInfo) (res []dnr.ModifyHeaderInfo) {
	for _, h := range src {
		if !slices.Contains(dst, h) {
			dst = append(dst, h)
		}
	}

	return dst
}

// mergeCSP joins the CSP directives of src to the ones of dst.
func mergeCSP(dst, src *dnr.Rule) {
	if len(dst.Action.ResponseHeaders) == 0 || len(src.Action.ResponseHeaders) == 0 {
		return
	}

	dh := &dst.Action.ResponseHeaders[0]
	sv := src.Action.ResponseHeaders[0].Value
	if slices.Contains(strings.Split(dh.Value, cspSeparator), sv) {
		return
	}

	dh.Value += cspSeparator + sv
}
