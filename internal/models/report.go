package models

import (
	"time"
)

// ReportKind identifies which parser handles a raw report submission.
type ReportKind string

const (
	ReportKindSpy    ReportKind = "spy"
	ReportKindAttack ReportKind = "attack"
)

// SpyReport holds the facts extracted from one spy report about a target
// kingdom at one point in time. Every field except Target is best-effort:
// a missing line in the source text leaves the zero value (or nil pointer)
// rather than failing the parse.
type SpyReport struct {
	ID           string              `json:"id"`
	Target       string              `json:"target"`
	Alliance     string              `json:"alliance,omitempty"`
	Honour       *float64            `json:"honour,omitempty"`
	Ranking      *int64              `json:"ranking,omitempty"`
	Networth     *int64              `json:"networth,omitempty"`
	SpiesSent    *int64              `json:"spies_sent,omitempty"`
	SpiesLost    *int64              `json:"spies_lost,omitempty"`
	Result       string              `json:"result,omitempty"`
	Castles      *int64              `json:"castles,omitempty"`
	DefensePower *int64              `json:"defense_power,omitempty"`
	Troops       map[string]int64    `json:"troops"`
	Resources    map[string]int64    `json:"resources"`
	Research     map[string]int64    `json:"research"`
	Settlements  []SettlementMention `json:"settlements"`
	SubmittedBy  string              `json:"submitted_by,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// AttackReport holds the facts extracted from one attack report.
type AttackReport struct {
	ID              string              `json:"id"`
	Target          string              `json:"target"`
	TargetNetworth  *int64              `json:"target_networth,omitempty"`
	ReceivedAt      *time.Time          `json:"received_at,omitempty"`
	Result          string              `json:"result,omitempty"`
	Gains           map[string]int64    `json:"gains"`
	Casualties      map[string]Casualty `json:"casualties"`
	Settlements     []SettlementMention `json:"settlements"`
	SettlementEvent SettlementEvent     `json:"settlement_event"`
	SubmittedBy     string              `json:"submitted_by,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// Casualty is one unit line from an attack report casualty list.
type Casualty struct {
	Lost int64 `json:"lost"`
	Sent int64 `json:"sent"`
}

// SettlementMention is one named settlement found in free report text.
// Level and Tier are optional; a mention can carry either, both, or neither.
type SettlementMention struct {
	Name  string `json:"name"`
	Level *int64 `json:"level,omitempty"`
	Tier  string `json:"tier,omitempty"` // "small" | "medium" | "large" | ""
}

// SettlementEvent classifies what an attack report says happened to a
// settlement, derived from phrase markers in the report body.
type SettlementEvent string

const (
	SettlementEventSeen       SettlementEvent = "seen"
	SettlementEventTakeFailed SettlementEvent = "take_attempt_failed"
	SettlementEventCaptured   SettlementEvent = "captured"
	SettlementEventBreached   SettlementEvent = "breached"
)

// SettlementObservation is one persisted sighting of a settlement, filed
// under the kingdom the source report was about.
type SettlementObservation struct {
	ID             int64     `json:"id"`
	Kingdom        string    `json:"kingdom"`
	SettlementName string    `json:"settlement_name"`
	Level          *int64    `json:"level,omitempty"`
	Tier           string    `json:"tier,omitempty"`
	SourceReportID string    `json:"source_report_id"`
	ObservedAt     time.Time `json:"observed_at"`
}
