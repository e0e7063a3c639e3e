// Package applications persists technician applications. The four nested
// submission sections and the documents object live in JSONB columns and
// are (de)serialized only at this boundary.
package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/dbx"
	"github.com/ateliertech/portal/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const applicationColumns = `id, applicant_id, personal_info, professional_info, background, additional_info, documents, status, admin_notes, technician_id, submitted_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	personal, professional, background, additional, documents, err := marshalSections(app)
	if err != nil {
		return nil, err
	}

	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.Status = models.StatusPending
	now := time.Now()
	app.SubmittedAt = now
	app.UpdatedAt = now

	query :=
		`INSERT INTO applications (id, applicant_id, personal_info, professional_info, background, additional_info, documents, status, admin_notes, submitted_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 `

	_, err = r.db.ExecContext(ctx, query,
		app.ID, app.ApplicantID, personal, professional, background, additional, documents,
		app.Status, app.AdminNotes, app.SubmittedAt, app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return app, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	app, err := scanApplication(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return app, nil
}

func (r *PostgresRepository) List(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateStatusIf(ctx context.Context, id string, from []models.ApplicationStatus, to models.ApplicationStatus, notes string) (bool, error) {
	placeholders := make([]string, len(from))
	args := []any{id, to, notes}
	for i, s := range from {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, s)
	}

	query := fmt.Sprintf(
		`UPDATE applications SET status = $2, admin_notes = $3, updated_at = now()
		 WHERE id = $1 AND status IN (%s)`, strings.Join(placeholders, ", "))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) LinkTechnician(ctx context.Context, id, technicianID string) error {
	query := `UPDATE applications SET technician_id = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, technicianID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// --- (de)serialization helpers ---

func marshalSections(app *models.Application) (personal, professional, background, additional, documents []byte, err error) {
	if personal, err = json.Marshal(app.Personal); err != nil {
		return
	}
	if professional, err = json.Marshal(app.Professional); err != nil {
		return
	}
	if background, err = json.Marshal(app.Background); err != nil {
		return
	}
	if additional, err = json.Marshal(app.Additional); err != nil {
		return
	}
	documents, err = json.Marshal(app.Documents)
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	app := &models.Application{}
	var personal, professional, background, additional, documents []byte
	var technicianID sql.NullString

	err := row.Scan(&app.ID, &app.ApplicantID, &personal, &professional, &background, &additional,
		&documents, &app.Status, &app.AdminNotes, &technicianID, &app.SubmittedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if technicianID.Valid {
		app.TechnicianID = &technicianID.String
	}

	if err := json.Unmarshal(personal, &app.Personal); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(professional, &app.Professional); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(background, &app.Background); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(additional, &app.Additional); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(documents, &app.Documents); err != nil {
		return nil, err
	}

	return app, nil
}
