// Package contentblocker models the restricted target dialect consumed by
// the downstream matching runtime: JSON documents of trigger/action pairs.
// Field names and vocabularies follow the runtime's wire format exactly.
package contentblocker

import (
	"encoding/json"
)

// ActionType is the target dialect's action vocabulary. It is deliberately
// small: the runtime can block, exempt, or force https, nothing else.
type ActionType string

const (
	// ActionBlock blocks the matched load.
	ActionBlock ActionType = "block"
	// ActionIgnorePreviousRules exempts the matched load from all earlier
	// rules in the document.
	ActionIgnorePreviousRules ActionType = "ignore-previous-rules"
	// ActionMakeHTTPS upgrades the matched load to https.
	ActionMakeHTTPS ActionType = "make-https"
)

// Resource-type vocabulary of the target dialect.
const (
	ResourceDocument   = "document"
	ResourceImage      = "image"
	ResourceStyleSheet = "style-sheet"
	ResourceScript     = "script"
	ResourceFont       = "font"
	ResourceRaw        = "raw"
	ResourceMedia      = "media"
	ResourcePing       = "ping"
	ResourceWebSocket  = "websocket"
	ResourcePopup      = "popup"
	ResourceSVG        = "svg-document"
)

// Load-type vocabulary.
const (
	LoadTypeFirstParty = "first-party"
	LoadTypeThirdParty = "third-party"
)

// Trigger describes what a rule matches. URLFilter is a regular expression
// evaluated against the full request URL; domain lists constrain the page
// the request originates from. A trigger carries either IfDomain or
// UnlessDomain, never both.
type Trigger struct {
	URLFilter                string   `json:"url-filter"`
	URLFilterIsCaseSensitive bool     `json:"url-filter-is-case-sensitive,omitempty"`
	IfDomain                 []string `json:"if-domain,omitempty"`
	UnlessDomain             []string `json:"unless-domain,omitempty"`
	ResourceType             []string `json:"resource-type,omitempty"`
	LoadType                 []string `json:"load-type,omitempty"`
}

// Action names what the runtime does on a match.
type Action struct {
	Type ActionType `json:"type"`
}

// Rule is one trigger/action pair, the "fragment" unit of a compiled
// document.
type Rule struct {
	Trigger Trigger `json:"trigger"`
	Action  Action  `json:"action"`
}

// MatchAllPattern matches every URL. Used when a source rule carries no
// filter at all.
const MatchAllPattern = ".*"

// MarshalDocument serializes rules into the document format submitted to
// the compilation service: a JSON array in input order. Struct-driven
// encoding keeps the output deterministic for identical input.
func MarshalDocument(rules []Rule) ([]byte, error) {
	if rules == nil {
		rules = []Rule{}
	}
	return json.Marshal(rules)
}

// UnmarshalDocument is the inverse of MarshalDocument, used by tooling that
// inspects compiled documents.
func UnmarshalDocument(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}
