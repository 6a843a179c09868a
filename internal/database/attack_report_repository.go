package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/reconhub/reconhub/internal/models"
)

// PostgresAttackReportRepository implements attack report storage using PostgreSQL.
type PostgresAttackReportRepository struct {
	db *sql.DB
}

// NewPostgresAttackReportRepository creates a new PostgreSQL attack report repository.
func NewPostgresAttackReportRepository(db *sql.DB) *PostgresAttackReportRepository {
	return &PostgresAttackReportRepository{db: db}
}

const attackReportColumns = `
	id, target, target_networth, received_at, result, gains, casualties,
	settlements, settlement_event, submitted_by, created_at
`

// Insert stores a parsed attack report together with its raw audit blob.
// Returns ErrDuplicate when the content hash is already stored.
func (r *PostgresAttackReportRepository) Insert(ctx context.Context, report models.AttackReport, contentHash string, rawGzip []byte) error {
	gainsJSON, err := json.Marshal(report.Gains)
	if err != nil {
		return fmt.Errorf("failed to marshal gains: %w", err)
	}
	casualtiesJSON, err := json.Marshal(report.Casualties)
	if err != nil {
		return fmt.Errorf("failed to marshal casualties: %w", err)
	}
	settlementsJSON, err := json.Marshal(report.Settlements)
	if err != nil {
		return fmt.Errorf("failed to marshal settlements: %w", err)
	}

	query := `
		INSERT INTO attack_reports (
			id, target, target_networth, received_at, result, gains,
			casualties, settlements, settlement_event, submitted_by,
			content_hash, raw_gzip, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.Target,
		report.TargetNetworth,
		report.ReceivedAt,
		nullString(report.Result),
		gainsJSON,
		casualtiesJSON,
		settlementsJSON,
		string(report.SettlementEvent),
		nullString(report.SubmittedBy),
		contentHash,
		rawGzip,
		report.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert attack report: %w", err)
	}
	return nil
}

// GetByID retrieves an attack report by its ID. Returns (nil, nil) when absent.
func (r *PostgresAttackReportRepository) GetByID(ctx context.Context, id string) (*models.AttackReport, error) {
	query := `SELECT ` + attackReportColumns + ` FROM attack_reports WHERE id = $1`
	report, err := r.scanReport(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attack report by id: %w", err)
	}
	return report, nil
}

// List retrieves recent attack reports, optionally filtered by target.
func (r *PostgresAttackReportRepository) List(ctx context.Context, target string, limit int) ([]models.AttackReport, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + attackReportColumns + ` FROM attack_reports`
	args := []interface{}{}
	if target != "" {
		query += ` WHERE LOWER(target) = LOWER($1)`
		args = append(args, target)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attack reports: %w", err)
	}
	defer rows.Close()

	var reports []models.AttackReport
	for rows.Next() {
		report, err := r.scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attack report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

// ListRawAfter returns raw report rows with seq greater than lastSeq, in seq
// order, for backfill scans.
func (r *PostgresAttackReportRepository) ListRawAfter(ctx context.Context, lastSeq int64, limit int) ([]RawReportRow, error) {
	return listRawAfter(ctx, r.db, "attack_reports", lastSeq, limit)
}

// Count returns the total number of stored attack reports.
func (r *PostgresAttackReportRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attack_reports").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attack reports: %w", err)
	}
	return count, nil
}

func (r *PostgresAttackReportRepository) scanReport(row rowScanner) (*models.AttackReport, error) {
	var report models.AttackReport
	var result, submittedBy sql.NullString
	var event string
	var gainsJSON, casualtiesJSON, settlementsJSON []byte

	err := row.Scan(
		&report.ID,
		&report.Target,
		&report.TargetNetworth,
		&report.ReceivedAt,
		&result,
		&gainsJSON,
		&casualtiesJSON,
		&settlementsJSON,
		&event,
		&submittedBy,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Result = result.String
	report.SubmittedBy = submittedBy.String
	report.SettlementEvent = models.SettlementEvent(event)

	if err := json.Unmarshal(gainsJSON, &report.Gains); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gains: %w", err)
	}
	if err := json.Unmarshal(casualtiesJSON, &report.Casualties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal casualties: %w", err)
	}
	if err := json.Unmarshal(settlementsJSON, &report.Settlements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlements: %w", err)
	}
	return &report, nil
}
