package rule

import (
	"encoding/json"
	"fmt"

	"github.com/nook-browser/shield/pkg/errdefs"
)

// Issue records one rejected entry of a batch parse. Batch operations skip
// invalid entries rather than aborting, so callers receive the accepted
// rules and the issues side by side.
type Issue struct {
	// Index is the entry's position in the submitted document.
	Index int
	// RuleID is the entry's id when one could be decoded, 0 otherwise.
	RuleID int
	// Err is the classified parse failure.
	Err error
}

func (i Issue) String() string {
	if i.RuleID != 0 {
		return fmt.Sprintf("entry %d (id %d): %v", i.Index, i.RuleID, i.Err)
	}
	return fmt.Sprintf("entry %d: %v", i.Index, i.Err)
}

// ParseRule decodes a single untyped rule into the typed model.
//
// The decode is strict about rule identity and action tagging and permissive
// about everything else: a missing or non-integer id, a missing action, an
// unrecognized action.type, or a condition that is not an object reject the
// rule with an invalid_rule error, while optional fields that are absent or
// carry the wrong JSON type are treated as absent.
func ParseRule(data []byte) (Rule, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Rule{}, errdefs.New(errdefs.KindInvalidRule, "", "rule is not a JSON object")
	}

	var r Rule

	idRaw, ok := top["id"]
	if !ok {
		return Rule{}, errdefs.New(errdefs.KindInvalidRule, "", "id is required")
	}
	if err := json.Unmarshal(idRaw, &r.ID); err != nil {
		return Rule{}, errdefs.New(errdefs.KindInvalidRule, "", "id must be an integer")
	}
	if r.ID < 1 {
		return Rule{}, errdefs.Newf(errdefs.KindInvalidRule, "", "id must be >= 1, got %d", r.ID)
	}

	r.Priority = optInt(top, "priority")

	actRaw, ok := top["action"]
	if !ok {
		return Rule{}, errdefs.Newf(errdefs.KindInvalidRule, "", "rule %d: action is required", r.ID)
	}
	action, err := parseAction(actRaw)
	if err != nil {
		return Rule{}, errdefs.Newf(errdefs.KindInvalidRule, "", "rule %d: %v", r.ID, err)
	}
	r.Action = action

	if condRaw, ok := top["condition"]; ok {
		cond, err := parseCondition(condRaw)
		if err != nil {
			return Rule{}, errdefs.Newf(errdefs.KindInvalidRule, "", "rule %d: %v", r.ID, err)
		}
		r.Condition = cond
	}

	return r, nil
}

// ParseRules decodes an ordered rule document (a JSON array). Invalid
// entries are skipped and reported as issues; only a document that is not a
// JSON array at the top level is a hard error.
func ParseRules(data []byte) ([]Rule, []Issue, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, errdefs.New(errdefs.KindInvalidRule, "", "rule document is not a JSON array")
	}
	rules, issues := ParseRawRules(items)
	return rules, issues, nil
}

// ParseRawRules decodes a batch of already-split rule entries, skipping and
// reporting invalid ones.
func ParseRawRules(items []json.RawMessage) ([]Rule, []Issue) {
	rules := make([]Rule, 0, len(items))
	var issues []Issue
	for i, item := range items {
		r, err := ParseRule(item)
		if err != nil {
			issues = append(issues, Issue{Index: i, RuleID: peekID(item), Err: err})
			continue
		}
		rules = append(rules, r)
	}
	return rules, issues
}

func parseAction(raw json.RawMessage) (Action, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Action{}, fmt.Errorf("action must be an object")
	}

	typRaw, ok := fields["type"]
	if !ok {
		return Action{}, fmt.Errorf("action.type is required")
	}
	var typ string
	if err := json.Unmarshal(typRaw, &typ); err != nil {
		return Action{}, fmt.Errorf("action.type must be a string")
	}
	a := Action{Type: ActionType(typ)}
	if !a.Type.Valid() {
		return Action{}, fmt.Errorf("action.type %q unrecognized", typ)
	}

	if raw, ok := fields["redirect"]; ok {
		var rd Redirect
		if json.Unmarshal(raw, &rd) == nil {
			a.Redirect = &rd
		}
	}
	a.RequestHeaders = optHeaders(fields, "requestHeaders")
	a.ResponseHeaders = optHeaders(fields, "responseHeaders")

	return a, nil
}

func parseCondition(raw json.RawMessage) (Condition, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Condition{}, fmt.Errorf("condition must be an object")
	}

	c := Condition{
		URLFilter:     optString(fields, "urlFilter"),
		RegexFilter:   optString(fields, "regexFilter"),
		CaseSensitive: optBoolPtr(fields, "isUrlFilterCaseSensitive"),

		InitiatorDomains:         optStrings(fields, "initiatorDomains"),
		ExcludedInitiatorDomains: optStrings(fields, "excludedInitiatorDomains"),
		RequestDomains:           optStrings(fields, "requestDomains"),
		ExcludedRequestDomains:   optStrings(fields, "excludedRequestDomains"),

		ResourceTypes:         toResourceTypes(optStrings(fields, "resourceTypes")),
		ExcludedResourceTypes: toResourceTypes(optStrings(fields, "excludedResourceTypes")),

		RequestMethods:         toMethods(optStrings(fields, "requestMethods")),
		ExcludedRequestMethods: toMethods(optStrings(fields, "excludedRequestMethods")),

		DomainType: DomainType(optString(fields, "domainType")),

		TabIDs:         optInts(fields, "tabIds"),
		ExcludedTabIDs: optInts(fields, "excludedTabIds"),
	}

	if c.URLFilter != "" && c.RegexFilter != "" {
		return Condition{}, fmt.Errorf("urlFilter and regexFilter are mutually exclusive")
	}

	return c, nil
}

// peekID best-effort extracts an id for issue reporting from an entry that
// failed full parsing.
func peekID(data []byte) int {
	var probe struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0
	}
	return probe.ID
}

// Permissive optional decoding: a field that is absent or fails to decode
// into its expected type is treated as absent.

func optString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func optInt(fields map[string]json.RawMessage, key string) int {
	raw, ok := fields[key]
	if !ok {
		return 0
	}
	var n int
	if json.Unmarshal(raw, &n) != nil {
		return 0
	}
	return n
}

func optBoolPtr(fields map[string]json.RawMessage, key string) *bool {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var b bool
	if json.Unmarshal(raw, &b) != nil {
		return nil
	}
	return &b
}

func optStrings(fields map[string]json.RawMessage, key string) []string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var ss []string
	if json.Unmarshal(raw, &ss) != nil {
		return nil
	}
	return ss
}

func optInts(fields map[string]json.RawMessage, key string) []int {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var ns []int
	if json.Unmarshal(raw, &ns) != nil {
		return nil
	}
	return ns
}

func optHeaders(fields map[string]json.RawMessage, key string) []HeaderInfo {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var hs []HeaderInfo
	if json.Unmarshal(raw, &hs) != nil {
		return nil
	}
	return hs
}

func toResourceTypes(ss []string) []ResourceType {
	if len(ss) == 0 {
		return nil
	}
	out := make([]ResourceType, len(ss))
	for i, s := range ss {
		out[i] = ResourceType(s)
	}
	return out
}

func toMethods(ss []string) []RequestMethod {
	if len(ss) == 0 {
		return nil
	}
	out := make([]RequestMethod, len(ss))
	for i, s := range ss {
		out[i] = RequestMethod(s)
	}
	return out
}
