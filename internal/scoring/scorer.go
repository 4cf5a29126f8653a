// Package scoring implements the weighted phishing heuristics that
// turn a record into a suspicion score and verdict.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

// SuspicionThreshold is the fixed score at or above which a record is
// flagged as suspicious.
const SuspicionThreshold = 3

// Fuzzy display-name matching boundaries. These are tunables validated
// by table-driven tests, not derived quantities.
const (
	minSubstringOverlap = 4
	minNameTokenLen     = 3
	maxNameLenDelta     = 3
	charOverlapRatio    = 0.6
	minOverlapChars     = 3
)

// Generic role words carry no identity: "Microsoft Support" sharing
// "support" with support@gmail.com is exactly the impersonation
// pattern the mismatch check exists to catch.
var genericNameTokens = map[string]struct{}{
	"support": {}, "security": {}, "admin": {}, "info": {}, "help": {},
	"service": {}, "team": {}, "billing": {}, "noreply": {}, "sales": {},
	"contact": {}, "account": {}, "alert": {}, "notification": {},
	"notifications": {}, "mail": {}, "email": {}, "customer": {},
	"official": {}, "update": {}, "updates": {},
}

// AllowlistChecker is the one question the scorer asks of the
// allow-list store.
type AllowlistChecker interface {
	Contains(email string) bool
}

// Scorer computes a suspicion score for a record. Deterministic; its
// only read-side dependency is the allow-list.
type Scorer struct {
	allowlist    AllowlistChecker
	logger       *zap.Logger
	urgencyCheck bool
	domainCheck  bool
}

// NewScorer creates a scorer. The urgency and sender-domain checks are
// optional richer-variant heuristics and can be disabled.
func NewScorer(allowlist AllowlistChecker, logger *zap.Logger, urgencyCheck, domainCheck bool) *Scorer {
	return &Scorer{
		allowlist:    allowlist,
		logger:       logger,
		urgencyCheck: urgencyCheck,
		domainCheck:  domainCheck,
	}
}

// Analyze scores a record against the phishing heuristics. Allow-listed
// senders short-circuit to a zero, not-suspicious result.
func (s *Scorer) Analyze(rec *core.Record) *core.Result {
	if rec.SenderEmail != "" && s.allowlist.Contains(rec.SenderEmail) {
		s.logger.Debug("Sender is allow-listed, skipping analysis",
			zap.String("sender", rec.SenderEmail))
		return &core.Result{WasAllowlisted: true}
	}

	score := 0
	var indicators []core.Indicator

	addIndicator := func(kind core.IndicatorKind, weight int, detail, description string) {
		score += weight
		indicators = append(indicators, core.Indicator{
			Kind:        kind,
			Weight:      weight,
			Detail:      detail,
			Description: description,
		})
	}

	// Display name mismatch (+3)
	if strings.TrimSpace(rec.SenderName) != "" && rec.SenderEmail != "" &&
		displayNameMismatch(rec.SenderName, rec.SenderEmail, rec.ReplyTo) {
		addIndicator(core.IndicatorDisplayNameMismatch, 3,
			fmt.Sprintf("Display: %q vs Sender: %q", rec.SenderName, rec.SenderEmail),
			"Display name does not match sender email address")
	}

	// Missing display name (+1)
	if strings.TrimSpace(rec.SenderName) == "" {
		addIndicator(core.IndicatorNoSenderName, 1,
			"No display name provided",
			"Email has no sender display name")
	}

	// Financial-lure terms. Two or more distinct categories in the
	// body are suspicious; one category in the subject alone is.
	bodyText := rec.Body
	if bodyText == "" {
		bodyText = rec.Snippet
	}
	if bodyText != "" {
		if n := countMatches(financialTermPatterns, bodyText); n >= 2 {
			addIndicator(core.IndicatorFinancialTerms, 1,
				fmt.Sprintf("%d financial terms detected", n),
				"Email content contains multiple financial terms commonly used in phishing")
		}
	}
	if rec.Subject != "" {
		if found := firstMatches(financialTermPatterns, rec.Subject); len(found) >= 1 {
			addIndicator(core.IndicatorFinancialTermsSubject, 1,
				strings.Join(found, ", "),
				"Subject line contains financial terms commonly used in phishing")
		}
	}

	// Generic greeting (+2)
	if bodyText != "" {
		if found := firstMatches(genericGreetingPatterns, bodyText); len(found) >= 1 {
			addIndicator(core.IndicatorGenericGreeting, 2,
				strings.Join(found, ", "),
				"Email uses generic, impersonal greetings commonly found in phishing")
		}
	}

	// Urgency language (+1)
	if s.urgencyCheck {
		combined := rec.Subject + "\n" + bodyText
		if n := countMatches(urgencyPatterns, combined); n >= 2 {
			addIndicator(core.IndicatorUrgencyLanguage, 1,
				fmt.Sprintf("%d urgency phrases detected", n),
				"Email pressures the reader to act or verify immediately")
		}
	}

	// Suspicious sender domain (+2)
	if s.domainCheck {
		if domain := domainOf(rec.SenderEmail); domain != "" && isSuspiciousDomain(domain) {
			addIndicator(core.IndicatorSuspiciousDomain, 2,
				domain,
				"Sender domain is a frequently abused free TLD or a bare IP address")
		}
	}

	result := &core.Result{
		Score:        score,
		IsSuspicious: score >= SuspicionThreshold,
		Indicators:   indicators,
	}
	if result.IsSuspicious {
		s.logger.Debug("Suspicious email detected",
			zap.Int("score", score),
			zap.Int("indicators", len(indicators)),
			zap.String("sender", rec.SenderEmail),
			zap.String("subject", rec.Subject))
	}
	return result
}

func domainOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func localPartOf(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return strings.ToLower(email[:at])
}

func isSuspiciousDomain(domain string) bool {
	if ipv4DomainPattern.MatchString(domain) {
		return true
	}
	for _, p := range suspiciousDomainPatterns {
		if p.MatchString(domain) {
			return true
		}
	}
	return false
}

// displayNameMismatch reports whether the display name shares no
// meaningful overlap with the sender address (or, when present and
// different, the reply-to address). The matching is deliberately
// multi-path and favors precision over recall: a legitimate short-name
// sender should never be accused.
func displayNameMismatch(displayName, senderEmail, replyTo string) bool {
	if displayName == "" || senderEmail == "" {
		return false
	}
	if nameMatchesAddress(displayName, senderEmail) {
		return false
	}
	if replyTo != "" && !strings.EqualFold(replyTo, senderEmail) &&
		nameMatchesAddress(displayName, replyTo) {
		return false
	}
	return true
}

// nameMatchesAddress runs the exact, normalized and fuzzy matching
// paths between a display name and one email address. Local-part
// comparisons run against a display name stripped of generic role
// words; domain and company comparisons use the full display name.
func nameMatchesAddress(displayName, email string) bool {
	local := localPartOf(email)
	domain := domainOf(email)
	company := companyNameFromDomain(domain)

	localDisplay := stripGenericTokens(displayName)
	if localDisplay == "" {
		localDisplay = strings.ToLower(displayName)
	}

	displayLower := strings.ToLower(displayName)
	normDisplay := normalizeAlnum(displayName)
	normLocalDisplay := normalizeAlnum(localDisplay)
	normCompany := normalizeAlnum(company)
	normLocal := normalizeAlnum(local)

	if local != "" && strings.Contains(localDisplay, local) {
		return true
	}
	if domain != "" && strings.Contains(displayLower, domain) {
		return true
	}
	if company != "" && strings.Contains(displayLower, company) {
		return true
	}
	if normCompany != "" && normDisplay != "" &&
		(strings.Contains(normDisplay, normCompany) || strings.Contains(normCompany, normDisplay)) {
		return true
	}
	if normLocal != "" && normLocalDisplay != "" &&
		(strings.Contains(normLocalDisplay, normLocal) || strings.Contains(normLocal, normLocalDisplay)) {
		return true
	}
	if hasSignificantOverlap(normDisplay, normCompany) || hasSignificantOverlap(normLocalDisplay, normLocal) {
		return true
	}
	return fuzzyNameMatch(localDisplay, local)
}

// stripGenericTokens lower-cases the display name and drops role words
// from genericNameTokens. Returns "" when nothing identifying remains,
// so a plain "Support" display name falls back to full matching.
func stripGenericTokens(displayName string) string {
	var kept []string
	for _, tok := range strings.Fields(strings.ToLower(displayName)) {
		if _, generic := genericNameTokens[strings.Trim(tok, ".,:;-")]; generic {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// companyNameFromDomain extracts the brand token from a domain:
// "dupr" from both "dupr.com" and "pb.dupr.com".
func companyNameFromDomain(domain string) string {
	if domain == "" {
		return ""
	}
	parts := strings.Split(domain, ".")
	if len(parts) >= 3 {
		return parts[1]
	}
	return parts[0]
}

// normalizeAlnum lower-cases and strips everything outside [a-z0-9].
func normalizeAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hasSignificantOverlap reports whether two normalized strings share a
// substring of at least minSubstringOverlap characters.
func hasSignificantOverlap(a, b string) bool {
	if len(a) < minSubstringOverlap || len(b) < minSubstringOverlap {
		return false
	}
	longer, shorter := a, b
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	if strings.Contains(longer, shorter) {
		return true
	}
	for i := 0; i+minSubstringOverlap <= len(shorter); i++ {
		if strings.Contains(longer, shorter[i:i+minSubstringOverlap]) {
			return true
		}
	}
	return false
}

// fuzzyNameMatch checks each word of the display name against the
// address local part: exact, prefix/suffix, abbreviated form with a
// matching first letter, or high per-character overlap.
func fuzzyNameMatch(displayName, local string) bool {
	if local == "" {
		return false
	}
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || r == ' ' {
			return r
		}
		return -1
	}, strings.ToLower(displayName))

	for _, token := range strings.Fields(cleaned) {
		if token == local {
			return true
		}
		if len(local) >= minNameTokenLen && strings.HasPrefix(token, local) {
			return true
		}
		if len(token) >= minNameTokenLen && strings.HasPrefix(local, token) {
			return true
		}
		if len(token) >= minNameTokenLen && len(local) >= minNameTokenLen &&
			token[0] == local[0] &&
			abs(len(token)-len(local)) <= maxNameLenDelta {
			return true
		}
		shorter, longer := token, local
		if len(shorter) > len(longer) {
			shorter, longer = longer, shorter
		}
		matching := 0
		for _, r := range shorter {
			if strings.ContainsRune(longer, r) {
				matching++
			}
		}
		if matching >= minOverlapChars &&
			matching >= int(math.Ceil(float64(len(shorter))*charOverlapRatio)) {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
