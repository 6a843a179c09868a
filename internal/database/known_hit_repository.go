package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reconhub/reconhub/internal/models"
)

// PostgresKnownHitRepository implements known hit storage using PostgreSQL.
type PostgresKnownHitRepository struct {
	db *sql.DB
}

// NewPostgresKnownHitRepository creates a new PostgreSQL known hit repository.
func NewPostgresKnownHitRepository(db *sql.DB) *PostgresKnownHitRepository {
	return &PostgresKnownHitRepository{db: db}
}

// Insert stores a known hit. Derived hits carry an attack report id with a
// unique constraint; re-deriving the same attack is a no-op. Returns whether
// a row was actually inserted.
func (r *PostgresKnownHitRepository) Insert(ctx context.Context, hit models.KnownHit) (bool, error) {
	query := `
		INSERT INTO known_hits (
			target, raw_ratio, calibrated_ratio, predicted_outcome,
			actual_outcome, attack_power, defense_power, land_taken,
			attack_report_id, observed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (attack_report_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		hit.Target,
		hit.RawRatio,
		hit.CalibratedRatio,
		nullString(hit.PredictedOutcome),
		nullString(hit.ActualOutcome),
		hit.AttackPower,
		hit.DefensePower,
		hit.LandTaken,
		nullString(hit.AttackReportID),
		hit.ObservedAt,
		hit.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert known hit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read known hit insert result: %w", err)
	}
	return affected > 0, nil
}

// List retrieves known hits ordered newest first, optionally filtered by target.
func (r *PostgresKnownHitRepository) List(ctx context.Context, target string, limit int) ([]models.KnownHit, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, target, raw_ratio, calibrated_ratio, predicted_outcome,
		       actual_outcome, attack_power, defense_power, land_taken,
		       attack_report_id, observed_at, created_at
		FROM known_hits
	`
	args := []interface{}{}
	if target != "" {
		query += ` WHERE LOWER(target) = LOWER($1)`
		args = append(args, target)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list known hits: %w", err)
	}
	defer rows.Close()

	var hits []models.KnownHit
	for rows.Next() {
		var hit models.KnownHit
		var predicted, actual, attackReportID sql.NullString

		err := rows.Scan(
			&hit.ID,
			&hit.Target,
			&hit.RawRatio,
			&hit.CalibratedRatio,
			&predicted,
			&actual,
			&hit.AttackPower,
			&hit.DefensePower,
			&hit.LandTaken,
			&attackReportID,
			&hit.ObservedAt,
			&hit.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan known hit: %w", err)
		}

		hit.PredictedOutcome = predicted.String
		hit.ActualOutcome = actual.String
		hit.AttackReportID = attackReportID.String
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Count returns the total number of known hits.
func (r *PostgresKnownHitRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM known_hits").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count known hits: %w", err)
	}
	return count, nil
}
