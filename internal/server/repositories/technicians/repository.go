package technicians

import (
	"context"
	"time"

	"github.com/ateliertech/portal/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Technician) (*models.Technician, error)

	GetByEmail(ctx context.Context, email string) (*models.Technician, error)

	// GetForTemporaryChange finds the technician by e-mail but only while
	// the temporary credential is still pending redemption
	// (is_temporary_password AND must_change_password). An already-consumed
	// token therefore resolves to nothing.
	GetForTemporaryChange(ctx context.Context, email string) (*models.Technician, error)

	// UpdatePassword stores a new hash and clears the temporary-password
	// flags and any pending reset token.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetResetToken stores a reset token and its expiry on the row,
	// overwriting any prior pending reset.
	SetResetToken(ctx context.Context, id, token string, expires time.Time) error

	// ClearResetTokenIfMatch updates the password hash and clears the reset
	// token and all temporary-password flags, but only on the row whose
	// stored token equals `token` and whose stored expiry is in the future.
	// Returns false when no row matched. The single conditional UPDATE is
	// what gives reset tokens their single-use semantics under concurrency.
	ClearResetTokenIfMatch(ctx context.Context, token, passwordHash string) (bool, error)
}
