package models

import (
	"time"
)

// Alliance groups app users for shared report visibility.
type Alliance struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// AllianceMembership links an app user to an alliance with a role.
type AllianceMembership struct {
	ID         int64     `json:"id"`
	AllianceID int64     `json:"alliance_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// AppUser is one known user of the app, keyed by their external identity.
type AppUser struct {
	UserID      string               `json:"user_id"`
	Username    string               `json:"username"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Memberships []AllianceMembership `json:"memberships,omitempty"`
}

// GameConnection stores a user's linked game account. The game session token
// is held encrypted at rest; Token is only populated on the way in.
type GameConnection struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AccountID int64     `json:"account_id"`
	KingdomID int64     `json:"kingdom_id"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminNote is one free-text operational note left on the admin board.
type AdminNote struct {
	ID            int64     `json:"id"`
	Note          string    `json:"note"`
	CreatedBy     string    `json:"created_by"`
	CreatedByName string    `json:"created_by_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
