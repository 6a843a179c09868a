package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reconhub/reconhub/internal/models"
)

// PostgresNoteRepository stores the admin note board.
type PostgresNoteRepository struct {
	db *sql.DB
}

// NewPostgresNoteRepository creates a new PostgreSQL admin-note repository.
func NewPostgresNoteRepository(db *sql.DB) *PostgresNoteRepository {
	return &PostgresNoteRepository{db: db}
}

// InsertNote stores a note and returns it with its assigned id.
func (r *PostgresNoteRepository) InsertNote(ctx context.Context, note, createdBy, createdByName string) (*models.AdminNote, error) {
	query := `
		INSERT INTO admin_notes (note_text, created_by, created_by_name, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, note_text, created_by, created_by_name, created_at
	`

	created, err := r.scanNote(r.db.QueryRowContext(ctx, query, note, createdBy, nullString(createdByName)))
	if err != nil {
		return nil, fmt.Errorf("failed to insert admin note: %w", err)
	}
	return created, nil
}

// ListNotes retrieves notes newest first.
func (r *PostgresNoteRepository) ListNotes(ctx context.Context, limit int) ([]models.AdminNote, error) {
	if limit <= 0 {
		limit = 200
	}

	query := fmt.Sprintf(`
		SELECT id, note_text, created_by, created_by_name, created_at
		FROM admin_notes
		ORDER BY created_at DESC, id DESC
		LIMIT %d
	`, limit)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin notes: %w", err)
	}
	defer rows.Close()

	var notes []models.AdminNote
	for rows.Next() {
		note, err := r.scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin note: %w", err)
		}
		notes = append(notes, *note)
	}
	return notes, rows.Err()
}

func (r *PostgresNoteRepository) scanNote(row rowScanner) (*models.AdminNote, error) {
	var note models.AdminNote
	var createdByName sql.NullString

	err := row.Scan(&note.ID, &note.Note, &note.CreatedBy, &createdByName, &note.CreatedAt)
	if err != nil {
		return nil, err
	}
	note.CreatedByName = createdByName.String
	return &note, nil
}
