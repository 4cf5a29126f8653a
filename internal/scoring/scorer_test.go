package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/allowlist"
	"github.com/savegrandma/phishguard/internal/core"
)

func newTestScorer(t *testing.T, trusted ...string) *Scorer {
	t.Helper()
	allow := allowlist.New(0, zap.NewNop())
	for _, email := range trusted {
		require.True(t, allow.Add(email))
	}
	return NewScorer(allow, zap.NewNop(), true, true)
}

func TestAnalyzeAllowlistedSender(t *testing.T) {
	scorer := newTestScorer(t, "support@gmail.com")

	result := scorer.Analyze(&core.Record{
		SenderName:  "Microsoft Support",
		SenderEmail: "Support@Gmail.com",
		Subject:     "Urgent: Verify your account immediately",
		Body:        "Your account is overdue. Click here to verify immediately.",
	})

	assert.True(t, result.WasAllowlisted)
	assert.False(t, result.IsSuspicious)
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Indicators)
}

func TestAnalyzeImpersonatedSender(t *testing.T) {
	scorer := newTestScorer(t)

	result := scorer.Analyze(&core.Record{
		SenderName:  "Microsoft Support",
		SenderEmail: "support@gmail.com",
		Subject:     "Urgent: Verify your account immediately",
		Body:        "Your account is overdue. Click here to verify immediately.",
	})

	assert.False(t, result.WasAllowlisted)
	assert.True(t, result.IsSuspicious)
	assert.GreaterOrEqual(t, result.Score, 3)
	kinds := indicatorKinds(result)
	assert.Contains(t, kinds, core.IndicatorDisplayNameMismatch)
}

func TestAnalyzeRegularEmail(t *testing.T) {
	scorer := newTestScorer(t)

	result := scorer.Analyze(&core.Record{
		SenderName:  "John Doe",
		SenderEmail: "john@example.com",
		Subject:     "Regular email",
		Body:        "This is a regular email with no suspicious content.",
	})

	assert.False(t, result.IsSuspicious)
	assert.Equal(t, 0, result.Score)
}

func TestVerdictMatchesThreshold(t *testing.T) {
	scorer := newTestScorer(t)

	records := []*core.Record{
		{SenderName: "Totally Different", SenderEmail: "xqzw@offsite.net"},
		{SenderEmail: "noreply@example.com"},
		{SenderName: "Billing", SenderEmail: "billing@example.com", Subject: "wire transfer needed"},
		{
			SenderName:  "Prize Dept",
			SenderEmail: "qqq@spam.example",
			Subject:     "gift card",
			Body:        "Dear customer, your cash prize disbursement and gift card await. Send your wallet seed phrase.",
		},
	}
	for _, rec := range records {
		result := scorer.Analyze(rec)
		assert.Equal(t, result.Score >= SuspicionThreshold, result.IsSuspicious,
			"verdict must match threshold for %q", rec.SenderEmail)
	}
}

func TestMissingDisplayName(t *testing.T) {
	scorer := newTestScorer(t)

	result := scorer.Analyze(&core.Record{SenderEmail: "noreply@example.com", SenderName: "   "})
	kinds := indicatorKinds(result)
	assert.Contains(t, kinds, core.IndicatorNoSenderName)
	assert.NotContains(t, kinds, core.IndicatorDisplayNameMismatch)
}

func TestFinancialTermsNeedTwoCategoriesInBody(t *testing.T) {
	scorer := newTestScorer(t)

	// "overdue" alone is a single category.
	one := scorer.Analyze(&core.Record{
		SenderName:  "Example",
		SenderEmail: "billing@example.com",
		Body:        "Your invoice is overdue.",
	})
	assert.NotContains(t, indicatorKinds(one), core.IndicatorFinancialTerms)

	two := scorer.Analyze(&core.Record{
		SenderName:  "Example",
		SenderEmail: "billing@example.com",
		Body:        "Your payment is overdue. Complete the wire transfer today.",
	})
	assert.Contains(t, indicatorKinds(two), core.IndicatorFinancialTerms)
}

func TestFinancialTermInSubjectStacksWithBody(t *testing.T) {
	scorer := newTestScorer(t)

	result := scorer.Analyze(&core.Record{
		SenderName:  "Example",
		SenderEmail: "billing@example.com",
		Subject:     "Loan approved",
		Body:        "Your payment is overdue. Complete the wire transfer today.",
	})
	kinds := indicatorKinds(result)
	assert.Contains(t, kinds, core.IndicatorFinancialTerms)
	assert.Contains(t, kinds, core.IndicatorFinancialTermsSubject)
}

func TestGenericGreeting(t *testing.T) {
	scorer := newTestScorer(t)

	result := scorer.Analyze(&core.Record{
		SenderName:  "Example",
		SenderEmail: "info@example.com",
		Body:        "Dear valued customer, we have an update for you.",
	})
	assert.Contains(t, indicatorKinds(result), core.IndicatorGenericGreeting)
}

func TestUrgencyLanguageNeedsTwoMatches(t *testing.T) {
	scorer := newTestScorer(t)

	one := scorer.Analyze(&core.Record{
		SenderName:  "Example",
		SenderEmail: "info@example.com",
		Body:        "Please reply when convenient. This is urgent.",
	})
	assert.NotContains(t, indicatorKinds(one), core.IndicatorUrgencyLanguage)

	two := scorer.Analyze(&core.Record{
		SenderName:  "Example",
		SenderEmail: "info@example.com",
		Subject:     "Action required",
		Body:        "Verify your account immediately.",
	})
	assert.Contains(t, indicatorKinds(two), core.IndicatorUrgencyLanguage)
}

func TestSuspiciousSenderDomain(t *testing.T) {
	scorer := newTestScorer(t)

	tld := scorer.Analyze(&core.Record{SenderName: "winner", SenderEmail: "winner@prizes.tk"})
	assert.Contains(t, indicatorKinds(tld), core.IndicatorSuspiciousDomain)

	ip := scorer.Analyze(&core.Record{SenderName: "admin", SenderEmail: "admin@192.168.10.5"})
	assert.Contains(t, indicatorKinds(ip), core.IndicatorSuspiciousDomain)

	ok := scorer.Analyze(&core.Record{SenderName: "admin", SenderEmail: "admin@example.com"})
	assert.NotContains(t, indicatorKinds(ok), core.IndicatorSuspiciousDomain)
}

func TestDisplayNameMismatch(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		senderEmail string
		replyTo     string
		mismatch    bool
	}{
		{"local part in name", "John Example", "john@corp.com", "", false},
		{"domain brand in name", "DUPR Pickleball", "noreply@pb.dupr.com", "", false},
		{"two-part domain brand", "Cline Updates", "news@cline.bot", "", false},
		{"abbreviated local part", "Alan Ragatz", "aragatz@corp.com", "", false},
		{"name prefix of local", "Sam", "samantha@corp.com", "", false},
		{"normalized punctuation", "Pay-Pal", "service@paypal.com", "", false},
		{"reply-to rescues", "Acme Billing", "mailer@sendgrid.example", "billing@acme.com", false},
		{"brand impersonation", "Microsoft Support", "support@gmail.com", "", true},
		{"no shared characters", "QQQQ", "zzz@offsite.net", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := displayNameMismatch(tt.displayName, tt.senderEmail, tt.replyTo)
			assert.Equal(t, tt.mismatch, got)
		})
	}
}

func TestFuzzyNameMatchBoundaries(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		local       string
		match       bool
	}{
		{"exact token", "alan smith", "alan", true},
		{"token prefix of local", "alan ragatz", "aragatz", true},
		{"short prefix too short", "al x", "a", false},
		{"first letter and close length", "alan", "alfred", true},
		{"first letter but far length", "al", "alexanderson", false},
		{"character overlap ratio", "nora", "aaron", true},
		{"empty local", "anyone", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, fuzzyNameMatch(tt.displayName, tt.local))
		})
	}
}

func TestHasSignificantOverlap(t *testing.T) {
	assert.True(t, hasSignificantOverlap("microsoftsupport", "microsoft"))
	assert.True(t, hasSignificantOverlap("granny", "grannysmith"))
	assert.False(t, hasSignificantOverlap("abc", "abcd"))
	assert.False(t, hasSignificantOverlap("", "anything"))
}

func indicatorKinds(result *core.Result) []core.IndicatorKind {
	kinds := make([]core.IndicatorKind, 0, len(result.Indicators))
	for _, ind := range result.Indicators {
		kinds = append(kinds, ind.Kind)
	}
	return kinds
}
