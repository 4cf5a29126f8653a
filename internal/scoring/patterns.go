package scoring

import (
	"regexp"
)

// Financial-lure categories commonly used in phishing. Two or more
// distinct category matches in the body are suspicious; a single match
// in the subject line is suspicious on its own.
var financialTermPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)overdue|past due|late payment|collection`),
	regexp.MustCompile(`(?i)wire transfer|money transfer|bank transfer`),
	regexp.MustCompile(`(?i)gift card|prepaid card|voucher|coupon`),
	regexp.MustCompile(`(?i)credit score|credit report|credit monitoring`),
	regexp.MustCompile(`(?i)loan|mortgage|debt consolidation`),
	regexp.MustCompile(`(?i)investment|trading|forex|cryptocurrency|investment opportunity`),
	regexp.MustCompile(`(?i)ico|token|token sale|nft|mint|seed|seed phrase|wallet`),
	regexp.MustCompile(`(?i)send`),
	regexp.MustCompile(`(?i)disbursement|airdrop|cash prize`),
	regexp.MustCompile(`(?i)\bssa\b`),
}

// Generic, impersonal greetings.
var genericGreetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)dear user|dear customer|dear valued customer`),
	regexp.MustCompile(`(?i)hello user|hello customer`),
	regexp.MustCompile(`(?i)dear account holder|dear member`),
	regexp.MustCompile(`(?i)dear sir/madam|to whom it may concern`),
	regexp.MustCompile(`(?i)dear client|dear subscriber`),
	regexp.MustCompile(`(?i)greetings user|greetings customer`),
}

// Urgency, verification and call-to-action language. Two or more
// matches across subject+body trigger the urgency indicator.
var urgencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)urgent|immediately|right away|as soon as possible`),
	regexp.MustCompile(`(?i)act now|action required|final notice|last chance`),
	regexp.MustCompile(`(?i)verify your (account|identity|information)`),
	regexp.MustCompile(`(?i)click here|click below|follow this link`),
	regexp.MustCompile(`(?i)your account (has been|will be) (suspended|locked|closed|deactivated)`),
	regexp.MustCompile(`(?i)confirm your (account|identity|password|details)`),
	regexp.MustCompile(`(?i)within (24|48) hours|expires? (today|soon)`),
}

// Free and disposable TLDs frequently abused by throwaway senders.
var suspiciousDomainPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.(tk|ml|ga|cf|gq)$`),
	regexp.MustCompile(`(?i)\.(top|xyz|click|link|loan|work)$`),
}

// Bare IPv4 literal used as a sender domain.
var ipv4DomainPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

func countMatches(patterns []*regexp.Regexp, text string) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

func firstMatches(patterns []*regexp.Regexp, text string) []string {
	var found []string
	for _, p := range patterns {
		if m := p.FindString(text); m != "" {
			found = append(found, m)
		}
	}
	return found
}
