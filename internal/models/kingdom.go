package models

import (
	"time"
)

// KingdomRank is one row of the top-kingdoms rankings snapshot. The poller
// overwrites these rows on every fetch; FetchedAt records snapshot age.
type KingdomRank struct {
	KingdomID int64     `json:"kingdom_id"`
	Kingdom   string    `json:"kingdom"`
	Alliance  *string   `json:"alliance,omitempty"`
	Ranking   *int64    `json:"ranking,omitempty"`
	Networth  *int64    `json:"networth,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NetworthPoint is one sample of a kingdom's networth over time.
type NetworthPoint struct {
	Kingdom  string    `json:"kingdom"`
	Networth int64     `json:"networth"`
	TickTime time.Time `json:"tick_time"`
}

// TrackedKingdom names a kingdom the networth poller samples each tick.
type TrackedKingdom struct {
	Name      string `json:"name"`
	KingdomID int64  `json:"kingdom_id"`
}
