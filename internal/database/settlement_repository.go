package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reconhub/reconhub/internal/models"
)

// PostgresSettlementRepository stores settlement sightings extracted from
// report text, keyed by the kingdom the source report was about.
type PostgresSettlementRepository struct {
	db *sql.DB
}

// NewPostgresSettlementRepository creates a new PostgreSQL settlement repository.
func NewPostgresSettlementRepository(db *sql.DB) *PostgresSettlementRepository {
	return &PostgresSettlementRepository{db: db}
}

// InsertObservations stores settlement sightings. Re-running extraction over
// a report is safe: the unique constraint swallows repeats.
func (r *PostgresSettlementRepository) InsertObservations(ctx context.Context, observations []models.SettlementObservation) error {
	if len(observations) == 0 {
		return nil
	}

	query := `
		INSERT INTO settlement_observations (
			kingdom, settlement_name, level, tier, source_report_id, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	for _, obs := range observations {
		_, err := r.db.ExecContext(ctx, query,
			obs.Kingdom,
			obs.SettlementName,
			obs.Level,
			nullString(obs.Tier),
			obs.SourceReportID,
			obs.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement observation: %w", err)
		}
	}
	return nil
}

// ListByKingdom retrieves sightings for one kingdom, newest first.
func (r *PostgresSettlementRepository) ListByKingdom(ctx context.Context, kingdom string, limit int) ([]models.SettlementObservation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, kingdom, settlement_name, level, tier, source_report_id, observed_at
		FROM settlement_observations
		WHERE LOWER(kingdom) = LOWER($1)
		ORDER BY observed_at DESC
		LIMIT %d
	`, limit)

	rows, err := r.db.QueryContext(ctx, query, kingdom)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ListRecent retrieves the latest sightings across all kingdoms.
func (r *PostgresSettlementRepository) ListRecent(ctx context.Context, limit int) ([]models.SettlementObservation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, kingdom, settlement_name, level, tier, source_report_id, observed_at
		FROM settlement_observations
		ORDER BY observed_at DESC
		LIMIT %d
	`, limit)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Count returns the total number of settlement observations.
func (r *PostgresSettlementRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM settlement_observations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count settlement observations: %w", err)
	}
	return count, nil
}

func scanObservations(rows *sql.Rows) ([]models.SettlementObservation, error) {
	var out []models.SettlementObservation
	for rows.Next() {
		var obs models.SettlementObservation
		var tier sql.NullString

		err := rows.Scan(
			&obs.ID,
			&obs.Kingdom,
			&obs.SettlementName,
			&obs.Level,
			&tier,
			&obs.SourceReportID,
			&obs.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement observation: %w", err)
		}
		obs.Tier = tier.String
		out = append(out, obs)
	}
	return out, rows.Err()
}
