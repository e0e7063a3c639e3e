package admins

import (
	"context"
	"time"

	"github.com/ateliertech/portal/internal/server/models"
)

type Repository interface {
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)

	// SetResetToken stores a reset token and expiry, superseding any prior
	// pending reset.
	SetResetToken(ctx context.Context, id, token string, expires time.Time) error

	// ClearResetTokenIfMatch behaves like the technicians variant: one
	// conditional UPDATE keyed on the stored token and a live expiry.
	ClearResetTokenIfMatch(ctx context.Context, token, passwordHash string) (bool, error)
}
