package technicians

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

const technicianColumns = `id, name, surname, email, phone, specialization, password_hash, status, is_temporary_password, temporary_password_expires, must_change_password, password_reset_token, password_reset_expires, created_at`

func (r *PostgresRepository) Create(ctx context.Context, t *models.Technician) (*models.Technician, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now()

	query :=
		`INSERT INTO technicians (id, name, surname, email, phone, specialization, password_hash, status, is_temporary_password, temporary_password_expires, must_change_password, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 `

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Surname, t.Email, t.Phone, t.Specialization, t.PasswordHash,
		t.Status, t.IsTemporaryPassword, t.TemporaryPasswordExpires, t.MustChangePassword, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetForTemporaryChange(ctx context.Context, email string) (*models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians
		 WHERE email = $1 AND is_temporary_password AND must_change_password`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Technician, error) {
	t := &models.Technician{}
	var tempExpires, resetExpires sql.NullTime
	var resetToken sql.NullString

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&t.ID, &t.Name, &t.Surname, &t.Email, &t.Phone, &t.Specialization, &t.PasswordHash,
		&t.Status, &t.IsTemporaryPassword, &tempExpires, &t.MustChangePassword,
		&resetToken, &resetExpires, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if tempExpires.Valid {
		t.TemporaryPasswordExpires = &tempExpires.Time
	}
	if resetToken.Valid {
		t.PasswordResetToken = &resetToken.String
	}
	if resetExpires.Valid {
		t.PasswordResetExpires = &resetExpires.Time
	}
	return t, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query :=
		`UPDATE technicians
		 SET password_hash = $2,
		     is_temporary_password = FALSE,
		     temporary_password_expires = NULL,
		     must_change_password = FALSE,
		     password_reset_token = NULL,
		     password_reset_expires = NULL
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, passwordHash)
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

func (r *PostgresRepository) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	query :=
		`UPDATE technicians
		 SET password_reset_token = $2, password_reset_expires = $3
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, token, expires)
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

func (r *PostgresRepository) ClearResetTokenIfMatch(ctx context.Context, token, passwordHash string) (bool, error) {
	query :=
		`UPDATE technicians
		 SET password_hash = $2,
		     password_reset_token = NULL,
		     password_reset_expires = NULL,
		     is_temporary_password = FALSE,
		     temporary_password_expires = NULL,
		     must_change_password = FALSE
		 WHERE password_reset_token = $1 AND password_reset_expires > now()`

	res, err := r.db.ExecContext(ctx, query, token, passwordHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
