package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ateliertech/portal/internal/dbx"
	sc "github.com/ateliertech/portal/internal/server/config"
	"github.com/ateliertech/portal/internal/server/models"
	"github.com/ateliertech/portal/internal/server/password"
	"github.com/ateliertech/portal/internal/server/repositories/repomanager"
)

// CredentialIssuer derives a technician account from an approved
// application: generates and hashes a temporary password, sets the
// must-change flags and expiry, persists the technician row, and links it
// back to the application.
type CredentialIssuer struct {
	repomanager repomanager.RepositoryManager
	hasher      password.Hasher
	tempTTL     time.Duration
}

func NewCredentialIssuer(m repomanager.RepositoryManager, hasher password.Hasher, cfg *sc.Config) *CredentialIssuer {
	return &CredentialIssuer{
		repomanager: m,
		hasher:      hasher,
		tempTTL:     cfg.TemporaryPasswordValidityDuration,
	}
}

// Provisioned is the outcome of a successful provisioning. The temporary
// password exists in plain text only here, on its way into the
// notification e-mail.
type Provisioned struct {
	TechnicianID      string
	TemporaryPassword string
	Expires           time.Time
}

// Provision runs against the supplied handle, which the caller is expected
// to make transactional: the technician insert and the application link
// must commit or fail as one unit with the status change driving them.
func (ci *CredentialIssuer) Provision(ctx context.Context, tx dbx.DBTX, app *models.Application) (*Provisioned, error) {
	name, surname := splitFullName(app.Personal.FullName)

	tempPassword, err := password.GenerateTemporary()
	if err != nil {
		return nil, fmt.Errorf("error generating temporary password: %w", err)
	}

	hash, err := ci.hasher.Hash(ctx, tempPassword)
	if err != nil {
		return nil, fmt.Errorf("error hashing temporary password: %w", err)
	}

	expires := time.Now().Add(ci.tempTTL)

	technician := &models.Technician{
		Name:                     name,
		Surname:                  surname,
		Email:                    app.Personal.Email,
		Phone:                    app.Personal.Phone,
		Specialization:           app.Professional.Specialization,
		PasswordHash:             hash,
		Status:                   models.TechnicianActive,
		IsTemporaryPassword:      true,
		TemporaryPasswordExpires: &expires,
		MustChangePassword:       true,
	}

	techRepo := ci.repomanager.Technicians(tx)
	created, err := techRepo.Create(ctx, technician)
	if err != nil {
		return nil, fmt.Errorf("error creating technician: %w", err)
	}

	appRepo := ci.repomanager.Applications(tx)
	if err := appRepo.LinkTechnician(ctx, app.ID, created.ID); err != nil {
		return nil, fmt.Errorf("error linking technician: %w", err)
	}

	return &Provisioned{
		TechnicianID:      created.ID,
		TemporaryPassword: tempPassword,
		Expires:           expires,
	}, nil
}

// splitFullName splits on the first space: "Jean Marc Dupont" becomes
// ("Jean", "Marc Dupont").
func splitFullName(fullName string) (name, surname string) {
	fullName = strings.TrimSpace(fullName)
	if i := strings.Index(fullName, " "); i >= 0 {
		return fullName[:i], strings.TrimSpace(fullName[i+1:])
	}
	return fullName, ""
}
