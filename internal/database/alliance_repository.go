package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/reconhub/reconhub/internal/models"
)

// PostgresAllianceRepository implements alliance and membership storage using
// PostgreSQL.
type PostgresAllianceRepository struct {
	db *sql.DB
}

// NewPostgresAllianceRepository creates a new PostgreSQL alliance repository.
func NewPostgresAllianceRepository(db *sql.DB) *PostgresAllianceRepository {
	return &PostgresAllianceRepository{db: db}
}

// Upsert creates an alliance or renames it when the slug already exists.
func (r *PostgresAllianceRepository) Upsert(ctx context.Context, name, slug string) (*models.Alliance, error) {
	name = strings.TrimSpace(name)
	slug = strings.ToLower(strings.TrimSpace(slug))
	if name == "" || slug == "" {
		return nil, fmt.Errorf("alliance name and slug are required")
	}

	query := `
		INSERT INTO alliances (name, slug, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, slug, created_at
	`

	var alliance models.Alliance
	err := r.db.QueryRowContext(ctx, query, name, slug).Scan(
		&alliance.ID,
		&alliance.Name,
		&alliance.Slug,
		&alliance.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert alliance: %w", err)
	}
	return &alliance, nil
}

// List retrieves all alliances with their active member counts, by name.
func (r *PostgresAllianceRepository) List(ctx context.Context) ([]models.Alliance, error) {
	query := `
		SELECT a.id, a.name, a.slug, a.created_at, COUNT(m.id)::int AS members
		FROM alliances a
		LEFT JOIN alliance_memberships m
		  ON m.alliance_id = a.id AND m.status = 'active'
		GROUP BY a.id, a.name, a.slug, a.created_at
		ORDER BY a.name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alliances: %w", err)
	}
	defer rows.Close()

	var out []models.Alliance
	for rows.Next() {
		var a models.Alliance
		if err := rows.Scan(&a.ID, &a.Name, &a.Slug, &a.CreatedAt, &a.Members); err != nil {
			return nil, fmt.Errorf("failed to scan alliance: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AssignMembership makes a user an active member of an alliance, creating
// the user row on first sight. Re-assigning updates the role and reactivates
// the membership.
func (r *PostgresAllianceRepository) AssignMembership(ctx context.Context, allianceID int64, userID, username, role string) (*models.AllianceMembership, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = "member"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin membership tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO app_users (user_id, username, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username = CASE
				WHEN EXCLUDED.username = '' THEN app_users.username
				ELSE EXCLUDED.username
			END,
			updated_at = NOW()
	`, userID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert app user: %w", err)
	}

	var m models.AllianceMembership
	err = tx.QueryRowContext(ctx, `
		INSERT INTO alliance_memberships (alliance_id, user_id, role, status, created_at)
		VALUES ($1, $2, $3, 'active', NOW())
		ON CONFLICT (alliance_id, user_id) DO UPDATE SET
			role   = EXCLUDED.role,
			status = 'active'
		RETURNING id, alliance_id, user_id, role, status, created_at
	`, allianceID, userID, role).Scan(
		&m.ID,
		&m.AllianceID,
		&m.UserID,
		&m.Role,
		&m.Status,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert alliance membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit membership tx: %w", err)
	}
	return &m, nil
}

// RemoveMembership deactivates a user's membership in an alliance.
func (r *PostgresAllianceRepository) RemoveMembership(ctx context.Context, allianceID int64, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alliance_memberships
		SET status = 'removed'
		WHERE alliance_id = $1 AND user_id = $2
	`, allianceID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove alliance membership: %w", err)
	}
	return nil
}

// ListUsers retrieves app users with their memberships, newest activity
// first. An empty search returns everyone up to the limit.
func (r *PostgresAllianceRepository) ListUsers(ctx context.Context, search string, limit int) ([]models.AppUser, error) {
	if limit <= 0 {
		limit = 500
	}
	if limit > 2000 {
		limit = 2000
	}

	query := `
		SELECT user_id, username, created_at, updated_at
		FROM app_users
	`
	args := []interface{}{}
	if s := strings.TrimSpace(search); s != "" {
		query += ` WHERE user_id ILIKE $1 OR COALESCE(username, '') ILIKE $1`
		args = append(args, "%"+s+"%")
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list app users: %w", err)
	}
	defer rows.Close()

	var users []models.AppUser
	index := make(map[string]int)
	for rows.Next() {
		var u models.AppUser
		var username sql.NullString
		if err := rows.Scan(&u.UserID, &username, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan app user: %w", err)
		}
		u.Username = username.String
		index[u.UserID] = len(users)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return users, nil
	}

	memberships, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.alliance_id, m.user_id, m.role, m.status, m.created_at
		FROM alliance_memberships m
		ORDER BY m.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer memberships.Close()

	for memberships.Next() {
		var m models.AllianceMembership
		if err := memberships.Scan(&m.ID, &m.AllianceID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		if i, ok := index[m.UserID]; ok {
			users[i].Memberships = append(users[i].Memberships, m)
		}
	}
	return users, memberships.Err()
}
