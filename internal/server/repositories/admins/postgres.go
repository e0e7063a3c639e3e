package admins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/dbx"
	"github.com/ateliertech/portal/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query :=
		`SELECT id, email, password_hash, password_reset_token, password_reset_expires, created_at
		 FROM admins
		 WHERE email = $1`

	a := &models.Admin{}
	var resetToken sql.NullString
	var resetExpires sql.NullTime

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &resetToken, &resetExpires, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if resetToken.Valid {
		a.PasswordResetToken = &resetToken.String
	}
	if resetExpires.Valid {
		a.PasswordResetExpires = &resetExpires.Time
	}
	return a, nil
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	query :=
		`UPDATE admins
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
		`UPDATE admins
		 SET password_hash = $2, password_reset_token = NULL, password_reset_expires = NULL
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
