package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reconhub/reconhub/internal/models"
)

// PostgresRankingRepository stores the top-kingdoms rankings snapshot and the
// networth-over-time history the pollers collect.
type PostgresRankingRepository struct {
	db *sql.DB
}

// NewPostgresRankingRepository creates a new PostgreSQL ranking repository.
func NewPostgresRankingRepository(db *sql.DB) *PostgresRankingRepository {
	return &PostgresRankingRepository{db: db}
}

// UpsertTopKingdoms replaces the stored snapshot rows for the given kingdoms.
func (r *PostgresRankingRepository) UpsertTopKingdoms(ctx context.Context, rows []models.KingdomRank) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO kg_top_kingdoms (kingdom_id, kingdom, alliance, ranking, networth, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (kingdom_id) DO UPDATE SET
			kingdom    = EXCLUDED.kingdom,
			alliance   = EXCLUDED.alliance,
			ranking    = EXCLUDED.ranking,
			networth   = EXCLUDED.networth,
			fetched_at = EXCLUDED.fetched_at
	`

	for _, row := range rows {
		_, err := r.db.ExecContext(ctx, query,
			row.KingdomID,
			row.Kingdom,
			row.Alliance,
			row.Ranking,
			row.Networth,
			row.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert kingdom ranking: %w", err)
		}
	}
	return nil
}

// ListTopKingdoms retrieves the current snapshot ordered by ranking.
func (r *PostgresRankingRepository) ListTopKingdoms(ctx context.Context, limit int) ([]models.KingdomRank, error) {
	if limit <= 0 {
		limit = 300
	}

	query := fmt.Sprintf(`
		SELECT kingdom_id, kingdom, alliance, ranking, networth, fetched_at
		FROM kg_top_kingdoms
		ORDER BY ranking ASC NULLS LAST
		LIMIT %d
	`, limit)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list top kingdoms: %w", err)
	}
	defer rows.Close()

	var out []models.KingdomRank
	for rows.Next() {
		var rank models.KingdomRank
		var alliance sql.NullString

		err := rows.Scan(
			&rank.KingdomID,
			&rank.Kingdom,
			&alliance,
			&rank.Ranking,
			&rank.Networth,
			&rank.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kingdom ranking: %w", err)
		}
		if alliance.Valid {
			rank.Alliance = &alliance.String
		}
		out = append(out, rank)
	}
	return out, rows.Err()
}

// LatestSnapshotTime returns when the rankings snapshot was last refreshed,
// or the zero time when no snapshot exists.
func (r *PostgresRankingRepository) LatestSnapshotTime(ctx context.Context) (time.Time, error) {
	var fetched sql.NullTime
	err := r.db.QueryRowContext(ctx, "SELECT MAX(fetched_at) FROM kg_top_kingdoms").Scan(&fetched)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query rankings snapshot time: %w", err)
	}
	return fetched.Time, nil
}

// InsertNetworthPoints appends networth samples. A sample for the same
// kingdom and tick already stored is skipped.
func (r *PostgresRankingRepository) InsertNetworthPoints(ctx context.Context, points []models.NetworthPoint) error {
	if len(points) == 0 {
		return nil
	}

	query := `
		INSERT INTO nw_history (kingdom, networth, tick_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (kingdom, tick_time) DO NOTHING
	`

	for _, p := range points {
		_, err := r.db.ExecContext(ctx, query, p.Kingdom, p.Networth, p.TickTime)
		if err != nil {
			return fmt.Errorf("failed to insert networth point: %w", err)
		}
	}
	return nil
}

// ListNetworth retrieves samples for one kingdom since the given time,
// oldest first.
func (r *PostgresRankingRepository) ListNetworth(ctx context.Context, kingdom string, since time.Time) ([]models.NetworthPoint, error) {
	query := `
		SELECT kingdom, networth, tick_time
		FROM nw_history
		WHERE LOWER(kingdom) = LOWER($1) AND tick_time >= $2
		ORDER BY tick_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, kingdom, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list networth history: %w", err)
	}
	defer rows.Close()

	var out []models.NetworthPoint
	for rows.Next() {
		var p models.NetworthPoint
		if err := rows.Scan(&p.Kingdom, &p.Networth, &p.TickTime); err != nil {
			return nil, fmt.Errorf("failed to scan networth point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestTickTime returns the most recent networth sample time, or the zero
// time when no samples exist.
func (r *PostgresRankingRepository) LatestTickTime(ctx context.Context) (time.Time, error) {
	var tick sql.NullTime
	err := r.db.QueryRowContext(ctx, "SELECT MAX(tick_time) FROM nw_history").Scan(&tick)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest networth tick: %w", err)
	}
	return tick.Time, nil
}
