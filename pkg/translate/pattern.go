package translate

import (
	"strings"

	"github.com/nook-browser/shield/pkg/contentblocker"
)

// ConvertPattern rewrites a source-dialect URL filter into the target
// dialect's regular-expression syntax.
//
// Token mapping:
//
//	"||" (leading)  broad wildcard prefix ".*" reaching the domain boundary
//	"|"  (leading)  start anchor "^"
//	"|"  (trailing) end anchor "$"
//	"^"             separator class "[/:?]"
//	"*"             any sequence ".*"
//	"."             escaped literal "\."
//
// Every other regex metacharacter is escaped so it matches literally. An
// empty filter converts to the match-everything pattern.
func ConvertPattern(filter string) string {
	if filter == "" {
		return contentblocker.MatchAllPattern
	}

	var b strings.Builder
	var endAnchor bool
	switch {
	case strings.HasPrefix(filter, "||"):
		// The domain-boundary anchor widens to an explicit any-prefix; the
		// target engine has no notion of "domain boundary".
		filter = filter[2:]
		b.WriteString(".*")
	case strings.HasPrefix(filter, "|"):
		filter = filter[1:]
		b.WriteByte('^')
	}
	if strings.HasSuffix(filter, "|") {
		filter = filter[:len(filter)-1]
		endAnchor = true
	}

	for _, r := range filter {
		switch r {
		case '*':
			b.WriteString(".*")
		case '^':
			b.WriteString("[/:?]")
		case '.', '+', '?', '(', ')', '[', ']', '{', '}', '|', '\\', '$':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	if endAnchor {
		b.WriteByte('$')
	}
	return b.String()
}
