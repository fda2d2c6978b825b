package translate

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nook-browser/shield/pkg/contentblocker"
	"github.com/nook-browser/shield/pkg/rule"
)

func TestConvertPattern(t *testing.T) {
	cases := []struct {
		filter string
		want   string
	}{
		{"", ".*"},
		{"||example.com^", `.*example\.com[/:?]`},
		{"||ads.example^", `.*ads\.example[/:?]`},
		{"||example.com/banner*img", `.*example\.com/banner.*img`},
		{"tracker", "tracker"},
		{"*", ".*"},
		{"|https://example.com/path|", `^https://example\.com/path$`},
		{"|http:", "^http:"},
		{"ads|", "ads$"},
		{"a+b?c", `a\+b\?c`},
		{"(test)[1]{2}", `\(test\)\[1\]\{2\}`},
		{"a|b", `a\|b`},
		{"back\\slash", `back\\slash`},
		{"price$", `price\$`},
		{"||", ".*"},
	}

	for _, tc := range cases {
		t.Run(tc.filter, func(t *testing.T) {
			assert.Equal(t, tc.want, ConvertPattern(tc.filter))
		})
	}
}

func TestConvertPatternDomainBoundaryEquivalence(t *testing.T) {
	// The compiled form of "||example.com^" must match the domain at a
	// boundary followed by a separator, per the dialect contract.
	re := regexp.MustCompile(ConvertPattern("||example.com^"))

	assert.True(t, re.MatchString("https://example.com/ads.js"))
	assert.True(t, re.MatchString("https://sub.example.com:8080"))
	assert.True(t, re.MatchString("http://example.com?q=1"))
	assert.False(t, re.MatchString("https://example.com"))    // no trailing separator
	assert.False(t, re.MatchString("https://example.org/ad")) // dot is literal
}

func TestTranslateMinimalBlockRule(t *testing.T) {
	tr := New()
	frag, res := tr.TranslateRule(rule.Rule{ID: 1, Action: rule.Action{Type: rule.ActionBlock}})

	require.NotNil(t, frag)
	assert.Equal(t, DispositionEmitted, res.Disposition)
	assert.Equal(t, contentblocker.MatchAllPattern, frag.Trigger.URLFilter)
	assert.Equal(t, contentblocker.ActionBlock, frag.Action.Type)
	assert.False(t, frag.Trigger.URLFilterIsCaseSensitive)
}

func TestActionTable(t *testing.T) {
	cases := []struct {
		src     rule.ActionType
		want    contentblocker.ActionType
		disp    Disposition
		hasFrag bool
	}{
		{rule.ActionBlock, contentblocker.ActionBlock, DispositionEmitted, true},
		{rule.ActionAllow, contentblocker.ActionIgnorePreviousRules, DispositionEmitted, true},
		{rule.ActionAllowAllRequests, contentblocker.ActionIgnorePreviousRules, DispositionEmitted, true},
		{rule.ActionUpgradeScheme, contentblocker.ActionMakeHTTPS, DispositionEmitted, true},
		{rule.ActionRedirect, contentblocker.ActionBlock, DispositionDegraded, true},
		{rule.ActionModifyHeaders, "", DispositionDropped, false},
	}

	tr := New()
	for _, tc := range cases {
		t.Run(string(tc.src), func(t *testing.T) {
			frag, res := tr.TranslateRule(rule.Rule{ID: 1, Action: rule.Action{Type: tc.src}})
			assert.Equal(t, tc.disp, res.Disposition)
			if !tc.hasFrag {
				assert.Nil(t, frag)
				return
			}
			require.NotNil(t, frag)
			assert.Equal(t, tc.want, frag.Action.Type)
		})
	}
}

func TestRedirectNeverBecomesException(t *testing.T) {
	tr := New()
	frag, res := tr.TranslateRule(rule.Rule{
		ID:     5,
		Action: rule.Action{Type: rule.ActionRedirect, Redirect: &rule.Redirect{URL: "https://safe.example"}},
		Condition: rule.Condition{
			URLFilter:        "||tracking.example^",
			InitiatorDomains: []string{"news.example"},
		},
	})

	require.NotNil(t, frag)
	assert.Equal(t, contentblocker.ActionBlock, frag.Action.Type)
	assert.NotEqual(t, contentblocker.ActionIgnorePreviousRules, frag.Action.Type)
	assert.Contains(t, res.Reasons, ReasonRedirectDowngraded)
}

func TestModifyHeadersDroppedRegardlessOfCondition(t *testing.T) {
	tr := New()
	conditions := []rule.Condition{
		{},
		{URLFilter: "||example.com^"},
		{RegexFilter: "^https://.*"},
		{ResourceTypes: []rule.ResourceType{rule.ResourceScript}},
		{InitiatorDomains: []string{"a.example"}, DomainType: rule.DomainTypeThirdParty},
	}
	for _, cond := range conditions {
		frag, res := tr.TranslateRule(rule.Rule{
			ID:        9,
			Action:    rule.Action{Type: rule.ActionModifyHeaders},
			Condition: cond,
		})
		assert.Nil(t, frag)
		assert.Equal(t, DispositionDropped, res.Disposition)
		assert.Contains(t, res.Reasons, ReasonHeadersUnsupported)
	}
}

func TestCaseSensitivityOnlyWhenTrue(t *testing.T) {
	tr := New()
	yes, no := true, false

	frag, _ := tr.TranslateRule(rule.Rule{ID: 1, Action: rule.Action{Type: rule.ActionBlock},
		Condition: rule.Condition{URLFilter: "Track", CaseSensitive: &yes}})
	require.NotNil(t, frag)
	assert.True(t, frag.Trigger.URLFilterIsCaseSensitive)

	frag, _ = tr.TranslateRule(rule.Rule{ID: 2, Action: rule.Action{Type: rule.ActionBlock},
		Condition: rule.Condition{URLFilter: "Track", CaseSensitive: &no}})
	require.NotNil(t, frag)
	assert.False(t, frag.Trigger.URLFilterIsCaseSensitive)

	frag, _ = tr.TranslateRule(rule.Rule{ID: 3, Action: rule.Action{Type: rule.ActionBlock},
		Condition: rule.Condition{URLFilter: "Track"}})
	require.NotNil(t, frag)
	assert.False(t, frag.Trigger.URLFilterIsCaseSensitive)
}

func TestResourceTypeMapping(t *testing.T) {
	tr := New()

	t.Run("navigation collapses to document", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 1, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{ResourceTypes: []rule.ResourceType{rule.ResourceMainFrame, rule.ResourceSubFrame}}})
		require.NotNil(t, frag)
		assert.Equal(t, []string{contentblocker.ResourceDocument}, frag.Trigger.ResourceType)
	})

	t.Run("one to one mappings", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 2, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{ResourceTypes: []rule.ResourceType{
				rule.ResourceWebSocket, rule.ResourceStylesheet, rule.ResourceXMLHTTPRequest,
			}}})
		require.NotNil(t, frag)
		// Canonical vocabulary order, not input order.
		assert.Equal(t, []string{
			contentblocker.ResourceStyleSheet,
			contentblocker.ResourceRaw,
			contentblocker.ResourceWebSocket,
		}, frag.Trigger.ResourceType)
	})

	t.Run("unmappable entries dropped from list", func(t *testing.T) {
		frag, res := tr.TranslateRule(rule.Rule{ID: 3, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{ResourceTypes: []rule.ResourceType{rule.ResourceObject, rule.ResourceScript}}})
		require.NotNil(t, frag)
		assert.Equal(t, []string{contentblocker.ResourceScript}, frag.Trigger.ResourceType)
		assert.Equal(t, DispositionEmitted, res.Disposition)
	})

	t.Run("fully unmappable allow list drops the rule", func(t *testing.T) {
		frag, res := tr.TranslateRule(rule.Rule{ID: 4, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{ResourceTypes: []rule.ResourceType{rule.ResourceObject, rule.ResourceCSPReport}}})
		assert.Nil(t, frag)
		assert.Equal(t, DispositionDropped, res.Disposition)
		assert.Contains(t, res.Reasons, ReasonResourceTypesUnmapped)
	})

	t.Run("exclude only emits complement", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 5, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{ExcludedResourceTypes: []rule.ResourceType{rule.ResourceScript}}})
		require.NotNil(t, frag)
		assert.NotContains(t, frag.Trigger.ResourceType, contentblocker.ResourceScript)
		assert.Contains(t, frag.Trigger.ResourceType, contentblocker.ResourceDocument)
		assert.Len(t, frag.Trigger.ResourceType, 8)
	})

	t.Run("unconstrained emits no list", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 6, Action: rule.Action{Type: rule.ActionBlock}})
		require.NotNil(t, frag)
		assert.Nil(t, frag.Trigger.ResourceType)
	})

	t.Run("excluding only unmappable types stays unconstrained", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 7, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{ExcludedResourceTypes: []rule.ResourceType{rule.ResourceObject}}})
		require.NotNil(t, frag)
		assert.Nil(t, frag.Trigger.ResourceType)
	})
}

func TestDomainScoping(t *testing.T) {
	tr := New()

	t.Run("initiator allow list", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 1, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{InitiatorDomains: []string{"Example.COM", "news.example"}}})
		require.NotNil(t, frag)
		assert.Equal(t, []string{"*example.com", "*news.example"}, frag.Trigger.IfDomain)
		assert.Nil(t, frag.Trigger.UnlessDomain)
	})

	t.Run("initiator deny list", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 2, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{ExcludedInitiatorDomains: []string{"docs.example."}}})
		require.NotNil(t, frag)
		assert.Nil(t, frag.Trigger.IfDomain)
		assert.Equal(t, []string{"*docs.example"}, frag.Trigger.UnlessDomain)
	})

	t.Run("allow wins over deny", func(t *testing.T) {
		frag, res := tr.TranslateRule(rule.Rule{ID: 3, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{
				InitiatorDomains:         []string{"a.example"},
				ExcludedInitiatorDomains: []string{"b.example"},
			}})
		require.NotNil(t, frag)
		assert.Equal(t, []string{"*a.example"}, frag.Trigger.IfDomain)
		assert.Nil(t, frag.Trigger.UnlessDomain)
		assert.Equal(t, DispositionDegraded, res.Disposition)
		assert.Contains(t, res.Reasons, ReasonDomainListConflict)
	})

	t.Run("request domains as fallback", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 4, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{RequestDomains: []string{"cdn.example"}}})
		require.NotNil(t, frag)
		assert.Equal(t, []string{"*cdn.example"}, frag.Trigger.IfDomain)
	})

	t.Run("initiator presence suppresses request fallback", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 5, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{
				InitiatorDomains: []string{"page.example"},
				RequestDomains:   []string{"cdn.example"},
			}})
		require.NotNil(t, frag)
		assert.Equal(t, []string{"*page.example"}, frag.Trigger.IfDomain)
	})

	t.Run("duplicates collapse after normalization", func(t *testing.T) {
		frag, _ := tr.TranslateRule(rule.Rule{ID: 6, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{InitiatorDomains: []string{"example.com", "EXAMPLE.com", "café.fr", "café.fr"}}})
		require.NotNil(t, frag)
		assert.Equal(t, []string{"*example.com", "*café.fr"}, frag.Trigger.IfDomain)
	})
}

func TestLoadType(t *testing.T) {
	tr := New()

	frag, _ := tr.TranslateRule(rule.Rule{ID: 1, Action: rule.Action{Type: rule.ActionBlock},
		Condition: rule.Condition{DomainType: rule.DomainTypeThirdParty}})
	require.NotNil(t, frag)
	assert.Equal(t, []string{contentblocker.LoadTypeThirdParty}, frag.Trigger.LoadType)

	frag, _ = tr.TranslateRule(rule.Rule{ID: 2, Action: rule.Action{Type: rule.ActionBlock},
		Condition: rule.Condition{DomainType: rule.DomainTypeFirstParty}})
	require.NotNil(t, frag)
	assert.Equal(t, []string{contentblocker.LoadTypeFirstParty}, frag.Trigger.LoadType)

	frag, _ = tr.TranslateRule(rule.Rule{ID: 3, Action: rule.Action{Type: rule.ActionBlock}})
	require.NotNil(t, frag)
	assert.Nil(t, frag.Trigger.LoadType)
}

func TestRegexFilterPassThrough(t *testing.T) {
	tr := New()
	frag, _ := tr.TranslateRule(rule.Rule{ID: 1, Action: rule.Action{Type: rule.ActionBlock},
		Condition: rule.Condition{RegexFilter: `^https?://ads\d+\.example/`}})
	require.NotNil(t, frag)
	assert.Equal(t, `^https?://ads\d+\.example/`, frag.Trigger.URLFilter)
}

func TestTranslateAllSummary(t *testing.T) {
	tr := New()
	rules := []rule.Rule{
		{ID: 1, Action: rule.Action{Type: rule.ActionBlock}, Condition: rule.Condition{URLFilter: "||a.example^"}},
		{ID: 2, Action: rule.Action{Type: rule.ActionModifyHeaders}},
		{ID: 3, Action: rule.Action{Type: rule.ActionRedirect}},
		{ID: 4, Action: rule.Action{Type: rule.ActionAllow}},
		{ID: 5, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{ResourceTypes: []rule.ResourceType{rule.ResourceWebBundle}}},
	}

	frags, sum := tr.TranslateAll(rules)

	assert.Len(t, frags, 3)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 3, sum.Emitted)
	assert.Equal(t, 1, sum.Degraded)
	assert.Equal(t, 2, sum.Dropped)
	assert.Equal(t, []int{2}, sum.RuleIDs[ReasonHeadersUnsupported])
	assert.Equal(t, []int{3}, sum.RuleIDs[ReasonRedirectDowngraded])
	assert.Equal(t, []int{5}, sum.RuleIDs[ReasonResourceTypesUnmapped])

	// Emission preserves input order.
	assert.Equal(t, contentblocker.ActionBlock, frags[0].Action.Type)
	assert.Equal(t, contentblocker.ActionBlock, frags[1].Action.Type) // degraded redirect
	assert.Equal(t, contentblocker.ActionIgnorePreviousRules, frags[2].Action.Type)
}

func TestTranslateAllDeterministic(t *testing.T) {
	tr := New()
	rules := []rule.Rule{
		{ID: 1, Action: rule.Action{Type: rule.ActionBlock},
			Condition: rule.Condition{URLFilter: "||x.example^", InitiatorDomains: []string{"B.example", "a.example"}}},
		{ID: 2, Action: rule.Action{Type: rule.ActionUpgradeScheme},
			Condition: rule.Condition{ResourceTypes: []rule.ResourceType{rule.ResourceImage, rule.ResourceScript}}},
	}

	fragsA, sumA := tr.TranslateAll(rules)
	fragsB, sumB := tr.TranslateAll(rules)

	assert.Equal(t, fragsA, fragsB)
	assert.Equal(t, sumA, sumB)

	docA, err := contentblocker.MarshalDocument(fragsA)
	require.NoError(t, err)
	docB, err := contentblocker.MarshalDocument(fragsB)
	require.NoError(t, err)
	assert.Equal(t, docA, docB)
}
