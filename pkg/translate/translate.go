// Package translate converts source-dialect rules into target-dialect
// fragments. Translation is pure and deterministic: the same rule always
// yields the same fragment (or the same absence of one), and the lossy
// cases follow an explicit degradation table rather than best-effort
// emulation.
package translate

import (
	"github.com/nook-browser/shield/pkg/contentblocker"
	"github.com/nook-browser/shield/pkg/rule"
)

// Disposition classifies the outcome of translating one rule.
type Disposition int

const (
	// DispositionEmitted means the fragment carries the rule's semantics
	// exactly (within the target dialect's matching model).
	DispositionEmitted Disposition = iota
	// DispositionDegraded means a fragment was emitted with deliberately
	// weakened semantics.
	DispositionDegraded
	// DispositionDropped means no fragment can represent the rule.
	DispositionDropped
)

// Reason names why a rule was degraded or dropped.
type Reason string

const (
	// ReasonRedirectDowngraded marks redirect actions compiled as blocks.
	ReasonRedirectDowngraded Reason = "redirect_downgraded"
	// ReasonHeadersUnsupported marks modifyHeaders rules, which the target
	// dialect cannot express at all.
	ReasonHeadersUnsupported Reason = "modify_headers_unsupported"
	// ReasonActionUnsupported marks action tags with no translation row.
	ReasonActionUnsupported Reason = "action_unsupported"
	// ReasonResourceTypesUnmapped marks rules whose resource-type allow
	// list contains only types the target cannot name; emitting an
	// unconstrained fragment would overmatch, so none is emitted.
	ReasonResourceTypesUnmapped Reason = "resource_types_unmapped"
	// ReasonDomainListConflict marks rules carrying both a domain allow
	// and deny list; the trigger can hold one, the allow list wins.
	ReasonDomainListConflict Reason = "domain_list_conflict"
)

// Result reports the outcome of a single-rule translation.
type Result struct {
	Disposition Disposition
	Reasons     []Reason
}

// Summary aggregates translation outcomes across a compilation pass. The
// compilation itself still succeeds when rules degrade; the summary is how
// callers learn what the artifact does not cover.
type Summary struct {
	Total   int `json:"total"`
	Emitted int `json:"emitted"`
	// Degraded counts rules that produced a fragment with weakened
	// semantics. Degraded rules are included in Emitted.
	Degraded int `json:"degraded"`
	Dropped  int `json:"dropped"`
	// RuleIDs lists the affected rule ids per degradation reason.
	RuleIDs map[Reason][]int `json:"ruleIds,omitempty"`
}

func (s *Summary) observe(id int, res Result) {
	s.Total++
	switch res.Disposition {
	case DispositionEmitted:
		s.Emitted++
	case DispositionDegraded:
		s.Emitted++
		s.Degraded++
	case DispositionDropped:
		s.Dropped++
	}
	for _, reason := range res.Reasons {
		if s.RuleIDs == nil {
			s.RuleIDs = make(map[Reason][]int)
		}
		s.RuleIDs[reason] = append(s.RuleIDs[reason], id)
	}
}

// Translator maps rules to fragments. It is stateless and safe for
// concurrent use.
type Translator struct{}

// New returns a Translator.
func New() *Translator {
	return &Translator{}
}

// TranslateRule converts one rule. A nil fragment means the rule has no
// target-dialect representation; the Result says why.
func (t *Translator) TranslateRule(r rule.Rule) (*contentblocker.Rule, Result) {
	actionType, disp, reason := translateAction(r.Action.Type)
	res := Result{Disposition: disp}
	if reason != "" {
		res.Reasons = append(res.Reasons, reason)
	}
	if disp == DispositionDropped {
		return nil, res
	}

	resourceTypes, expressible := mapResourceTypes(r.Condition.ResourceTypes, r.Condition.ExcludedResourceTypes)
	if !expressible {
		return nil, Result{
			Disposition: DispositionDropped,
			Reasons:     append(res.Reasons, ReasonResourceTypesUnmapped),
		}
	}

	pattern := r.Condition.RegexFilter
	if pattern == "" {
		pattern = ConvertPattern(r.Condition.URLFilter)
	}

	ifDomain, unlessDomain, domainConflict := resolveDomainLists(
		r.Condition.InitiatorDomains,
		r.Condition.ExcludedInitiatorDomains,
		r.Condition.RequestDomains,
		r.Condition.ExcludedRequestDomains,
	)
	if domainConflict {
		res.Disposition = DispositionDegraded
		res.Reasons = append(res.Reasons, ReasonDomainListConflict)
	}

	frag := &contentblocker.Rule{
		Trigger: contentblocker.Trigger{
			URLFilter:                pattern,
			URLFilterIsCaseSensitive: r.Condition.CaseSensitive != nil && *r.Condition.CaseSensitive,
			IfDomain:                 ifDomain,
			UnlessDomain:             unlessDomain,
			ResourceType:             resourceTypes,
			LoadType:                 translateLoadType(r.Condition.DomainType),
		},
		Action: contentblocker.Action{Type: actionType},
	}
	return frag, res
}

// TranslateAll converts rules in order, dropping fragment-less ones, and
// returns the surviving fragments with the pass summary.
func (t *Translator) TranslateAll(rules []rule.Rule) ([]contentblocker.Rule, Summary) {
	frags := make([]contentblocker.Rule, 0, len(rules))
	var sum Summary
	for _, r := range rules {
		frag, res := t.TranslateRule(r)
		sum.observe(r.ID, res)
		if frag != nil {
			frags = append(frags, *frag)
		}
	}
	return frags, sum
}
