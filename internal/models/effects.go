package models

// Settlement is the live-fetched shape of one settlement owned by a player,
// including its building list when a detail fetch succeeded.
type Settlement struct {
	SettlementID int64      `json:"settlement_id"`
	Name         string     `json:"name"`
	Buildings    []Building `json:"buildings"`
}

// Building is one building row from a settlement detail fetch. EffectText is
// the game's free-text effect description, e.g.
// "+[LEVELx5]% Food generation, max effect amount 50%".
type Building struct {
	BuildingType string `json:"building_type"`
	Level        int64  `json:"level"`
	EffectText   string `json:"effect_text"`
}

// EffectTotal is the aggregated percentage effect for one effect key across
// all of a player's settlements.
type EffectTotal struct {
	EffectKey     string         `json:"effect_key"`
	Label         string         `json:"label"`
	TotalPct      float64        `json:"total_pct"`
	CapPct        *float64       `json:"cap_pct,omitempty"`
	AppliedPct    float64        `json:"applied_pct"`
	CapReached    bool           `json:"cap_reached"`
	BuildingCount int            `json:"building_count"`
	Sources       []EffectSource `json:"sources"`
}

// EffectSource records one building's contribution to an EffectTotal.
type EffectSource struct {
	Settlement   string  `json:"settlement"`
	BuildingType string  `json:"building_type"`
	Level        int64   `json:"level"`
	DeltaPct     float64 `json:"delta_pct"`
}
