package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reconhub/reconhub/internal/models"
)

// PostgresUserRepository stores linked game-account connections. Game session
// tokens arrive already encrypted; this layer never sees plaintext.
type PostgresUserRepository struct {
	db *sql.DB
}

// NewPostgresUserRepository creates a new PostgreSQL user repository.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// UpsertConnection stores or refreshes a user's game-account link.
func (r *PostgresUserRepository) UpsertConnection(ctx context.Context, conn models.GameConnection, tokenEnc string) error {
	query := `
		INSERT INTO user_kg_connections
			(user_id, username, account_id, kingdom_id, token_enc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username   = EXCLUDED.username,
			account_id = EXCLUDED.account_id,
			kingdom_id = EXCLUDED.kingdom_id,
			token_enc  = EXCLUDED.token_enc,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		conn.UserID,
		nullString(conn.Username),
		conn.AccountID,
		conn.KingdomID,
		tokenEnc,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game connection: %w", err)
	}
	return nil
}

// GetConnection retrieves a user's game-account link and the encrypted
// token. Returns (nil, "", nil) when the user has no connection.
func (r *PostgresUserRepository) GetConnection(ctx context.Context, userID string) (*models.GameConnection, string, error) {
	query := `
		SELECT user_id, username, account_id, kingdom_id, token_enc, created_at, updated_at
		FROM user_kg_connections
		WHERE user_id = $1
	`

	var conn models.GameConnection
	var username sql.NullString
	var tokenEnc string

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&conn.UserID,
		&username,
		&conn.AccountID,
		&conn.KingdomID,
		&tokenEnc,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to query game connection: %w", err)
	}

	conn.Username = username.String
	return &conn, tokenEnc, nil
}

// DeleteConnection removes a user's game-account link.
func (r *PostgresUserRepository) DeleteConnection(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM user_kg_connections WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete game connection: %w", err)
	}
	return nil
}

// CountConnections returns the number of linked game accounts.
func (r *PostgresUserRepository) CountConnections(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_kg_connections").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count game connections: %w", err)
	}
	return count, nil
}
