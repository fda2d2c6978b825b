package translate

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeDomains lowercases, NFC-normalizes, and deduplicates a domain
// list, prefixing each entry with the target dialect's wildcard-subdomain
// marker. Order of first occurrence is preserved.
func normalizeDomains(domains []string) []string {
	if len(domains) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = norm.NFC.String(strings.ToLower(strings.TrimSpace(d)))
		d = strings.TrimSuffix(d, ".")
		if d == "" {
			continue
		}
		if !strings.HasPrefix(d, "*") {
			d = "*" + d
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// resolveDomainLists picks the allow/deny domain pair for a trigger.
// Initiator lists are authoritative; request-domain lists are the fallback
// when both initiator lists are absent. The target trigger cannot carry
// both an allow and a deny list, so the allow list wins and the discarded
// deny list is reported as a conflict.
func resolveDomainLists(initiator, excludedInitiator, request, excludedRequest []string) (ifDomain, unlessDomain []string, conflict bool) {
	allow, deny := initiator, excludedInitiator
	if len(allow) == 0 && len(deny) == 0 {
		allow, deny = request, excludedRequest
	}

	if len(allow) > 0 {
		return normalizeDomains(allow), nil, len(deny) > 0
	}
	return nil, normalizeDomains(deny), false
}
