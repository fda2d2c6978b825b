// Package rule defines the typed model for the declarative network-rule
// dialect that clients author rules in, plus the permissive parser that
// turns untyped rule documents into model values.
package rule

// ActionType tags the action variant of a rule.
type ActionType string

const (
	// ActionBlock blocks the matched request.
	ActionBlock ActionType = "block"
	// ActionAllow exempts the matched request from earlier blocking rules.
	ActionAllow ActionType = "allow"
	// ActionAllowAllRequests exempts an entire document subtree.
	ActionAllowAllRequests ActionType = "allowAllRequests"
	// ActionUpgradeScheme rewrites http requests to https.
	ActionUpgradeScheme ActionType = "upgradeScheme"
	// ActionRedirect redirects the matched request. The compiled target
	// dialect cannot express redirects; see the translator's degradation
	// table.
	ActionRedirect ActionType = "redirect"
	// ActionModifyHeaders rewrites request or response headers. Not
	// expressible in the target dialect; such rules are dropped from the
	// compiled artifact.
	ActionModifyHeaders ActionType = "modifyHeaders"
)

// Valid reports whether t is a recognized action tag.
func (t ActionType) Valid() bool {
	switch t {
	case ActionBlock, ActionAllow, ActionAllowAllRequests,
		ActionUpgradeScheme, ActionRedirect, ActionModifyHeaders:
		return true
	}
	return false
}

// DomainType scopes a rule to same-site or cross-site requests.
type DomainType string

const (
	DomainTypeFirstParty DomainType = "firstParty"
	DomainTypeThirdParty DomainType = "thirdParty"
)

// ResourceType is the source dialect's request-type vocabulary.
type ResourceType string

const (
	ResourceMainFrame      ResourceType = "main_frame"
	ResourceSubFrame       ResourceType = "sub_frame"
	ResourceStylesheet     ResourceType = "stylesheet"
	ResourceScript         ResourceType = "script"
	ResourceImage          ResourceType = "image"
	ResourceFont           ResourceType = "font"
	ResourceObject         ResourceType = "object"
	ResourceXMLHTTPRequest ResourceType = "xmlhttprequest"
	ResourcePing           ResourceType = "ping"
	ResourceCSPReport      ResourceType = "csp_report"
	ResourceMedia          ResourceType = "media"
	ResourceWebSocket      ResourceType = "websocket"
	ResourceWebTransport   ResourceType = "webtransport"
	ResourceWebBundle      ResourceType = "webbundle"
	ResourceOther          ResourceType = "other"
)

// RequestMethod is the HTTP method vocabulary. Carried by the model for
// completeness; the target dialect cannot match on methods.
type RequestMethod string

const (
	MethodConnect RequestMethod = "connect"
	MethodDelete  RequestMethod = "delete"
	MethodGet     RequestMethod = "get"
	MethodHead    RequestMethod = "head"
	MethodOptions RequestMethod = "options"
	MethodPatch   RequestMethod = "patch"
	MethodPost    RequestMethod = "post"
	MethodPut     RequestMethod = "put"
	MethodOther   RequestMethod = "other"
)

// HeaderOperation is the modifyHeaders edit verb.
type HeaderOperation string

const (
	HeaderAppend HeaderOperation = "append"
	HeaderSet    HeaderOperation = "set"
	HeaderRemove HeaderOperation = "remove"
)

// HeaderInfo is one header edit of a modifyHeaders action.
type HeaderInfo struct {
	Header    string          `json:"header"`
	Operation HeaderOperation `json:"operation"`
	Value     string          `json:"value,omitempty"`
}

// Redirect carries the redirect target of a redirect action.
type Redirect struct {
	URL               string `json:"url,omitempty"`
	ExtensionPath     string `json:"extensionPath,omitempty"`
	RegexSubstitution string `json:"regexSubstitution,omitempty"`
}

// Action is the tagged action variant of a rule.
type Action struct {
	Type            ActionType   `json:"type"`
	Redirect        *Redirect    `json:"redirect,omitempty"`
	RequestHeaders  []HeaderInfo `json:"requestHeaders,omitempty"`
	ResponseHeaders []HeaderInfo `json:"responseHeaders,omitempty"`
}

// Condition is the match condition of a rule. All fields are optional; an
// empty condition matches every request.
type Condition struct {
	// URLFilter is a pattern in the dialect's anchor syntax: a leading
	// "||" anchors at a domain boundary, "^" matches a separator, "*" any
	// sequence. Mutually exclusive with RegexFilter.
	URLFilter string `json:"urlFilter,omitempty"`
	// RegexFilter is a raw regular expression alternative to URLFilter.
	RegexFilter string `json:"regexFilter,omitempty"`
	// CaseSensitive applies to URLFilter/RegexFilter matching. Absent
	// means case-insensitive.
	CaseSensitive *bool `json:"isUrlFilterCaseSensitive,omitempty"`

	InitiatorDomains         []string `json:"initiatorDomains,omitempty"`
	ExcludedInitiatorDomains []string `json:"excludedInitiatorDomains,omitempty"`
	RequestDomains           []string `json:"requestDomains,omitempty"`
	ExcludedRequestDomains   []string `json:"excludedRequestDomains,omitempty"`

	ResourceTypes         []ResourceType `json:"resourceTypes,omitempty"`
	ExcludedResourceTypes []ResourceType `json:"excludedResourceTypes,omitempty"`

	RequestMethods         []RequestMethod `json:"requestMethods,omitempty"`
	ExcludedRequestMethods []RequestMethod `json:"excludedRequestMethods,omitempty"`

	DomainType DomainType `json:"domainType,omitempty"`

	TabIDs         []int `json:"tabIds,omitempty"`
	ExcludedTabIDs []int `json:"excludedTabIds,omitempty"`
}

// Rule is one immutable filter rule. ID is unique within a tier; Priority
// is carried for the source dialect's conflict resolution but does not
// influence translation order.
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority,omitempty"`
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
}
