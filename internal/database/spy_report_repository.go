package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reconhub/reconhub/internal/models"
)

// PostgresSpyReportRepository implements spy report storage using PostgreSQL.
type PostgresSpyReportRepository struct {
	db *sql.DB
}

// NewPostgresSpyReportRepository creates a new PostgreSQL spy report repository.
func NewPostgresSpyReportRepository(db *sql.DB) *PostgresSpyReportRepository {
	return &PostgresSpyReportRepository{db: db}
}

const spyReportColumns = `
	id, target, alliance, honour, ranking, networth, spies_sent, spies_lost,
	result, castles, defense_power, troops, resources, research, settlements,
	submitted_by, created_at
`

// Insert stores a parsed spy report together with its raw audit blob.
// Returns ErrDuplicate when the content hash is already stored.
func (r *PostgresSpyReportRepository) Insert(ctx context.Context, report models.SpyReport, contentHash string, rawGzip []byte) error {
	troopsJSON, err := json.Marshal(report.Troops)
	if err != nil {
		return fmt.Errorf("failed to marshal troops: %w", err)
	}
	resourcesJSON, err := json.Marshal(report.Resources)
	if err != nil {
		return fmt.Errorf("failed to marshal resources: %w", err)
	}
	researchJSON, err := json.Marshal(report.Research)
	if err != nil {
		return fmt.Errorf("failed to marshal research: %w", err)
	}
	settlementsJSON, err := json.Marshal(report.Settlements)
	if err != nil {
		return fmt.Errorf("failed to marshal settlements: %w", err)
	}

	query := `
		INSERT INTO spy_reports (
			id, target, alliance, honour, ranking, networth, spies_sent,
			spies_lost, result, castles, defense_power, troops, resources,
			research, settlements, submitted_by, content_hash, raw_gzip,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.Target,
		nullString(report.Alliance),
		report.Honour,
		report.Ranking,
		report.Networth,
		report.SpiesSent,
		report.SpiesLost,
		nullString(report.Result),
		report.Castles,
		report.DefensePower,
		troopsJSON,
		resourcesJSON,
		researchJSON,
		settlementsJSON,
		nullString(report.SubmittedBy),
		contentHash,
		rawGzip,
		report.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert spy report: %w", err)
	}
	return nil
}

// GetByID retrieves a spy report by its ID. Returns (nil, nil) when absent.
func (r *PostgresSpyReportRepository) GetByID(ctx context.Context, id string) (*models.SpyReport, error) {
	query := `SELECT ` + spyReportColumns + ` FROM spy_reports WHERE id = $1`
	report, err := r.scanReport(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query spy report by id: %w", err)
	}
	return report, nil
}

// FindPrior returns the latest spy report on the target taken at or before
// the given time, or (nil, nil) when no such report exists.
func (r *PostgresSpyReportRepository) FindPrior(ctx context.Context, target string, at time.Time) (*models.SpyReport, error) {
	query := `
		SELECT ` + spyReportColumns + `
		FROM spy_reports
		WHERE LOWER(target) = LOWER($1) AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	report, err := r.scanReport(r.db.QueryRowContext(ctx, query, target, at))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prior spy report: %w", err)
	}
	return report, nil
}

// List retrieves recent spy reports, optionally filtered by target.
func (r *PostgresSpyReportRepository) List(ctx context.Context, target string, limit int) ([]models.SpyReport, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + spyReportColumns + ` FROM spy_reports`
	args := []interface{}{}
	if target != "" {
		query += ` WHERE LOWER(target) = LOWER($1)`
		args = append(args, target)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list spy reports: %w", err)
	}
	defer rows.Close()

	var reports []models.SpyReport
	for rows.Next() {
		report, err := r.scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan spy report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

// ListRawAfter returns raw report rows with seq greater than lastSeq, in seq
// order, for backfill scans.
func (r *PostgresSpyReportRepository) ListRawAfter(ctx context.Context, lastSeq int64, limit int) ([]RawReportRow, error) {
	return listRawAfter(ctx, r.db, "spy_reports", lastSeq, limit)
}

// Count returns the total number of stored spy reports.
func (r *PostgresSpyReportRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spy_reports").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count spy reports: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresSpyReportRepository) scanReport(row rowScanner) (*models.SpyReport, error) {
	var report models.SpyReport
	var alliance, result, submittedBy sql.NullString
	var troopsJSON, resourcesJSON, researchJSON, settlementsJSON []byte

	err := row.Scan(
		&report.ID,
		&report.Target,
		&alliance,
		&report.Honour,
		&report.Ranking,
		&report.Networth,
		&report.SpiesSent,
		&report.SpiesLost,
		&result,
		&report.Castles,
		&report.DefensePower,
		&troopsJSON,
		&resourcesJSON,
		&researchJSON,
		&settlementsJSON,
		&submittedBy,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Alliance = alliance.String
	report.Result = result.String
	report.SubmittedBy = submittedBy.String

	if err := json.Unmarshal(troopsJSON, &report.Troops); err != nil {
		return nil, fmt.Errorf("failed to unmarshal troops: %w", err)
	}
	if err := json.Unmarshal(resourcesJSON, &report.Resources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resources: %w", err)
	}
	if err := json.Unmarshal(researchJSON, &report.Research); err != nil {
		return nil, fmt.Errorf("failed to unmarshal research: %w", err)
	}
	if err := json.Unmarshal(settlementsJSON, &report.Settlements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlements: %w", err)
	}
	return &report, nil
}

// RawReportRow is one stored report's raw text envelope, used by backfill.
type RawReportRow struct {
	Seq       int64
	ID        string
	Target    string
	RawGzip   []byte
	CreatedAt time.Time
}

func listRawAfter(ctx context.Context, db *sql.DB, table string, lastSeq int64, limit int) ([]RawReportRow, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT seq, id, target, raw_gzip, created_at
		FROM %s
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT %d
	`, table, limit)

	rows, err := db.QueryContext(ctx, query, lastSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw reports from %s: %w", table, err)
	}
	defer rows.Close()

	var out []RawReportRow
	for rows.Next() {
		var row RawReportRow
		if err := rows.Scan(&row.Seq, &row.ID, &row.Target, &row.RawGzip, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw report row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
