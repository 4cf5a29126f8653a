package core

import (
	"time"
)

// Record is a structured snapshot of one inbound message's visible
// metadata, as extracted from an inbox view. The engine only reads it.
type Record struct {
	ThreadID    string `json:"thread_id,omitempty"`
	SenderName  string `json:"sender_name,omitempty"`
	SenderEmail string `json:"sender_email,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Body        string `json:"body,omitempty"`
	ReplyTo     string `json:"reply_to,omitempty"`
}

// IndicatorKind identifies one scoring heuristic.
type IndicatorKind string

const (
	IndicatorDisplayNameMismatch   IndicatorKind = "display_name_mismatch"
	IndicatorNoSenderName          IndicatorKind = "no_sender_name"
	IndicatorFinancialTerms        IndicatorKind = "financial_terms"
	IndicatorFinancialTermsSubject IndicatorKind = "financial_terms_subject"
	IndicatorGenericGreeting       IndicatorKind = "generic_greeting"
	IndicatorUrgencyLanguage       IndicatorKind = "urgency_language"
	IndicatorSuspiciousDomain      IndicatorKind = "suspicious_domain"
)

// Indicator is one triggered heuristic with its weight and a
// human-readable explanation.
type Indicator struct {
	Kind        IndicatorKind `json:"kind"`
	Weight      int           `json:"weight"`
	Detail      string        `json:"detail"`
	Description string        `json:"description"`
}

// Result is the outcome of analyzing a single record.
//
// IsSuspicious is always Score >= the suspicion threshold, except for
// allow-listed senders, which short-circuit to a zero score.
type Result struct {
	Score          int         `json:"score"`
	IsSuspicious   bool        `json:"is_suspicious"`
	Indicators     []Indicator `json:"indicators"`
	WasAllowlisted bool        `json:"was_allowlisted"`
}

// CounterKind names one of the three recognized usage counters.
type CounterKind string

const (
	CounterScanned     CounterKind = "scanned"
	CounterThreats     CounterKind = "threats"
	CounterAllowlisted CounterKind = "allowlisted"
)

// SessionStats are counters that reset on every process start.
type SessionStats struct {
	Scanned      int64     `json:"scanned"`
	Threats      int64     `json:"threats"`
	SessionStart time.Time `json:"session_start"`
}

// PersistentStats are cumulative counters that survive restarts.
// Allowlisted tracks the allow-list's current size and can decrease;
// the other fields are monotonic.
type PersistentStats struct {
	TotalThreatsEver int64     `json:"total_threats_ever"`
	TotalScannedEver int64     `json:"total_scanned_ever"`
	Allowlisted      int64     `json:"allowlisted"`
	LastUpdated      time.Time `json:"last_updated"`
}

// StatsSnapshot is the dual-horizon statistics view.
type StatsSnapshot struct {
	Session    SessionStats    `json:"session"`
	Persistent PersistentStats `json:"persistent"`
}

// FlatStats is the legacy flat counter view offered to older
// consumers. It is derived on read, never stored as a second truth.
type FlatStats struct {
	Scanned     int64 `json:"scanned"`
	Threats     int64 `json:"threats"`
	Allowlisted int64 `json:"allowlisted"`
}

// Flat derives the legacy view from a snapshot.
func (s StatsSnapshot) Flat() FlatStats {
	return FlatStats{
		Scanned:     s.Session.Scanned,
		Threats:     s.Session.Threats,
		Allowlisted: s.Persistent.Allowlisted,
	}
}

// AllowlistStatus summarizes allow-list occupancy for UI consumers.
type AllowlistStatus struct {
	Count  int  `json:"count"`
	Max    int  `json:"max"`
	IsFull bool `json:"is_full"`
}
