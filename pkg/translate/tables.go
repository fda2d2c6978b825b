package translate

import (
	"github.com/nook-browser/shield/pkg/contentblocker"
	"github.com/nook-browser/shield/pkg/rule"
)

// resourceTypeMap is the explicit source→target resource-type table. Both
// navigation types collapse into "document"; xmlhttprequest maps to the
// target's untyped-load category. Source types absent from the table have
// no target equivalent and are dropped from emitted lists.
var resourceTypeMap = map[rule.ResourceType]string{
	rule.ResourceMainFrame:      contentblocker.ResourceDocument,
	rule.ResourceSubFrame:       contentblocker.ResourceDocument,
	rule.ResourceStylesheet:     contentblocker.ResourceStyleSheet,
	rule.ResourceScript:         contentblocker.ResourceScript,
	rule.ResourceImage:          contentblocker.ResourceImage,
	rule.ResourceFont:           contentblocker.ResourceFont,
	rule.ResourceXMLHTTPRequest: contentblocker.ResourceRaw,
	rule.ResourcePing:           contentblocker.ResourcePing,
	rule.ResourceMedia:          contentblocker.ResourceMedia,
	rule.ResourceWebSocket:      contentblocker.ResourceWebSocket,
}

// mappableResourceOrder fixes the emission order of resource-type lists so
// the serialized document is identical for identical rule sets regardless
// of input ordering.
var mappableResourceOrder = []string{
	contentblocker.ResourceDocument,
	contentblocker.ResourceStyleSheet,
	contentblocker.ResourceScript,
	contentblocker.ResourceImage,
	contentblocker.ResourceFont,
	contentblocker.ResourceRaw,
	contentblocker.ResourceMedia,
	contentblocker.ResourcePing,
	contentblocker.ResourceWebSocket,
}

// mapResourceTypes resolves the include/exclude resource-type lists into the
// target list. An empty result with ok=false means the rule constrained
// itself to types the target dialect cannot name at all, so no fragment can
// honor it. A nil result with ok=true means "unconstrained".
func mapResourceTypes(include, exclude []rule.ResourceType) (types []string, ok bool) {
	if len(include) == 0 && len(exclude) == 0 {
		return nil, true
	}

	allowed := make(map[string]bool, len(mappableResourceOrder))
	if len(include) > 0 {
		for _, rt := range include {
			if target, known := resourceTypeMap[rt]; known {
				allowed[target] = true
			}
		}
		if len(allowed) == 0 {
			return nil, false
		}
	} else {
		// Exclude-only conditions start from the full mappable vocabulary.
		for _, target := range mappableResourceOrder {
			allowed[target] = true
		}
	}

	for _, rt := range exclude {
		if target, known := resourceTypeMap[rt]; known {
			delete(allowed, target)
		}
	}
	if len(allowed) == 0 {
		return nil, false
	}
	if len(allowed) == len(mappableResourceOrder) {
		return nil, true
	}

	out := make([]string, 0, len(allowed))
	for _, target := range mappableResourceOrder {
		if allowed[target] {
			out = append(out, target)
		}
	}
	return out, true
}

// translateAction is the deterministic action table. A dropped action
// returns an empty target type.
func translateAction(t rule.ActionType) (contentblocker.ActionType, Disposition, Reason) {
	switch t {
	case rule.ActionBlock:
		return contentblocker.ActionBlock, DispositionEmitted, ""
	case rule.ActionAllow, rule.ActionAllowAllRequests:
		// Both allow variants collapse into the target's single exception
		// semantic.
		return contentblocker.ActionIgnorePreviousRules, DispositionEmitted, ""
	case rule.ActionUpgradeScheme:
		return contentblocker.ActionMakeHTTPS, DispositionEmitted, ""
	case rule.ActionRedirect:
		// The target dialect cannot redirect. Degraded to a block, never to
		// an exception.
		return contentblocker.ActionBlock, DispositionDegraded, ReasonRedirectDowngraded
	case rule.ActionModifyHeaders:
		return "", DispositionDropped, ReasonHeadersUnsupported
	default:
		return "", DispositionDropped, ReasonActionUnsupported
	}
}

func translateLoadType(dt rule.DomainType) []string {
	switch dt {
	case rule.DomainTypeFirstParty:
		return []string{contentblocker.LoadTypeFirstParty}
	case rule.DomainTypeThirdParty:
		return []string{contentblocker.LoadTypeThirdParty}
	default:
		return nil
	}
}
