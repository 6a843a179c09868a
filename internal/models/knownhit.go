package models

import (
	"time"
)

// KnownHit is one calibration data point mapping a computed power ratio to
// an observed attack outcome. Rows are created either manually or derived
// automatically by joining an attack report to the nearest preceding spy
// report on the same target. At most one auto-derived row exists per attack
// report; AttackReportID carries that linkage.
type KnownHit struct {
	ID               int64      `json:"id"`
	Target           string     `json:"target"`
	RawRatio         float64    `json:"raw_ratio"`
	CalibratedRatio  *float64   `json:"calibrated_ratio,omitempty"`
	PredictedOutcome string     `json:"predicted_outcome,omitempty"`
	ActualOutcome    string     `json:"actual_outcome,omitempty"`
	AttackPower      float64    `json:"attack_power"`
	DefensePower     float64    `json:"defense_power"`
	LandTaken        *int64     `json:"land_taken,omitempty"`
	AttackReportID   string     `json:"attack_report_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ObservedAt       *time.Time `json:"observed_at,omitempty"`
}
