package applications

import (
	"context"

	"github.com/ateliertech/portal/internal/server/models"
)

type Repository interface {
	// Create persists a new application with status pending and returns it
	// with its generated id and timestamps set.
	Create(ctx context.Context, app *models.Application) (*models.Application, error)

	Get(ctx context.Context, id string) (*models.Application, error)

	// List returns applications, optionally filtered by status ("" = all),
	// newest first.
	List(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error)

	// UpdateStatusIf conditionally moves the application to status `to` and
	// stores the notes, but only while the current status is one of `from`.
	// Returns false when no row matched, i.e. the transition lost a race or
	// the application is already terminal.
	UpdateStatusIf(ctx context.Context, id string, from []models.ApplicationStatus, to models.ApplicationStatus, notes string) (bool, error)

	LinkTechnician(ctx context.Context, id, technicianID string) error

	Delete(ctx context.Context, id string) error
}
