package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/logging"
	"github.com/ateliertech/portal/internal/server/auth"
	sc "github.com/ateliertech/portal/internal/server/config"
	"github.com/ateliertech/portal/internal/server/mail"
	"github.com/ateliertech/portal/internal/server/models"
	"github.com/ateliertech/portal/internal/server/password"
	"github.com/ateliertech/portal/internal/server/repositories/repomanager"
)

// User roles accepted by the shared password-reset flow.
const (
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

// AuthService implements the credential flows: the gated technician login,
// both temporary-password redemption paths, and the password-reset flow
// shared by admins and technicians.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.Service
	hasher      password.Hasher
	mailer      mail.Mailer
	config      *sc.Config
	logger      logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.Service,
	hasher password.Hasher, mailer mail.Mailer, cfg *sc.Config, logger logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		hasher:      hasher,
		mailer:      mailer,
		config:      cfg,
		logger:      logger.With("module", "auth_service"),
	}
}

// LoginResult is returned on successful technician or admin login.
type LoginResult struct {
	AccessToken        string
	MustChangePassword bool
	Technician         *models.Technician
	Admin              *models.Admin
}

// LoginTechnician authenticates a technician. Account-status gating runs
// before the password comparison; an active account with an elapsed
// temporary password is rejected with its own reason even when the
// password would match.
func (s *AuthService) LoginTechnician(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	repo := s.repomanager.Technicians(s.db)
	t, err := repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, common.ErrInternal
	}

	if err := gateTechnician(t); err != nil {
		return nil, err
	}

	ok, err := s.hasher.Compare(ctx, plainPassword, t.PasswordHash)
	if err != nil {
		return nil, common.ErrInternal
	}
	if !ok {
		return nil, common.ErrUnauthorized
	}

	token, err := s.tokens.Issue(t.Email, auth.KindAccess, s.config.AccessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}

	return &LoginResult{
		AccessToken:        token,
		MustChangePassword: t.MustChangePassword,
		Technician:         t,
	}, nil
}

// gateTechnician applies the §login ordering: status checks first, then the
// temporary-password expiry, and only then may the caller compare hashes.
func gateTechnician(t *models.Technician) error {
	switch t.Status {
	case models.TechnicianActive:
		// fall through to the temporary-password check
	case models.TechnicianPendingApproval:
		return &GateError{Reason: GateReasonPending}
	case models.TechnicianInactive:
		return &GateError{Reason: GateReasonInactive}
	case models.TechnicianRejected:
		return &GateError{Reason: GateReasonRejected}
	default:
		return &GateError{Reason: GateReasonStatusInvalid}
	}

	if t.IsTemporaryPassword && t.TemporaryPasswordExpires != nil && time.Now().After(*t.TemporaryPasswordExpires) {
		return &GateError{Reason: GateReasonTempPassExpired}
	}
	return nil
}

// LoginAdmin authenticates a back-office account. No status machinery:
// admins are either present or not.
func (s *AuthService) LoginAdmin(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	repo := s.repomanager.Admins(s.db)
	a, err := repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, common.ErrInternal
	}

	ok, err := s.hasher.Compare(ctx, plainPassword, a.PasswordHash)
	if err != nil {
		return nil, common.ErrInternal
	}
	if !ok {
		return nil, common.ErrUnauthorized
	}

	token, err := s.tokens.Issue(a.Email, auth.KindAccess, s.config.AccessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}

	return &LoginResult{AccessToken: token, Admin: a}, nil
}

// ChangePassword is redemption path A (login-first): the technician proves
// the current password and picks a new one, which clears the
// temporary-password flags.
func (s *AuthService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	repo := s.repomanager.Technicians(s.db)
	t, err := repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnauthorized
		}
		return common.ErrInternal
	}

	ok, err := s.hasher.Compare(ctx, currentPassword, t.PasswordHash)
	if err != nil {
		return common.ErrInternal
	}
	if !ok {
		return common.ErrUnauthorized
	}

	if checks := password.CheckPolicy(newPassword); !checks.Valid() {
		return &WeakPasswordError{Checks: checks}
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return common.ErrInternal
	}

	return repo.UpdatePassword(ctx, t.ID, hash)
}

// ChangeTemporaryPassword is redemption path B (token-direct): the token
// from the approval e-mail authenticates the change without a login. The
// lookup requires the must-change flags to still be set, so a consumed
// token resolves to nothing.
func (s *AuthService) ChangeTemporaryPassword(ctx context.Context, token, newPassword string) error {
	info, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if info.Kind != auth.KindTemporaryPassword {
		return common.ErrInvalidToken
	}
	if info.Expired {
		return common.ErrTokenExpired
	}

	repo := s.repomanager.Technicians(s.db)
	t, err := repo.GetForTemporaryChange(ctx, info.SubjectEmail)
	if err != nil {
		return err
	}

	if t.TemporaryPasswordExpires != nil && time.Now().After(*t.TemporaryPasswordExpires) {
		return common.ErrTokenExpired
	}

	if checks := password.CheckPolicy(newPassword); !checks.Valid() {
		return &WeakPasswordError{Checks: checks}
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return common.ErrInternal
	}

	return repo.UpdatePassword(ctx, t.ID, hash)
}

// RequestReset starts the shared password-reset flow. An unknown e-mail is
// NOT an error: the caller always sees success, so the endpoint cannot be
// used to enumerate accounts. A repeated request overwrites the stored
// token, which makes the earlier one unusable before its natural expiry.
func (s *AuthService) RequestReset(ctx context.Context, email, userType string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var id string
	switch userType {
	case RoleAdmin:
		a, err := s.repomanager.Admins(s.db).GetByEmail(ctx, email)
		if err != nil {
			return s.swallowUnknownAccount(ctx, email, err)
		}
		id = a.ID
	default:
		t, err := s.repomanager.Technicians(s.db).GetByEmail(ctx, email)
		if err != nil {
			return s.swallowUnknownAccount(ctx, email, err)
		}
		id = t.ID
	}

	token, err := s.tokens.Issue(email, auth.KindPasswordReset, s.config.ResetTokenValidityDuration)
	if err != nil {
		return common.ErrInternal
	}
	expires := time.Now().Add(s.config.ResetTokenValidityDuration)

	switch userType {
	case RoleAdmin:
		err = s.repomanager.Admins(s.db).SetResetToken(ctx, id, token, expires)
	default:
		err = s.repomanager.Technicians(s.db).SetResetToken(ctx, id, token, expires)
	}
	if err != nil {
		return common.ErrInternal
	}

	subject, body := mail.ResetEmail(token, s.config.PortalBaseURL, expires)
	if result := s.mailer.Send(ctx, email, subject, body); !result.Success {
		s.logger.Error(ctx, "reset e-mail failed", "error", fmt.Sprintf("%v", result.Err))
	}
	return nil
}

func (s *AuthService) swallowUnknownAccount(ctx context.Context, email string, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		s.logger.Info(ctx, "reset requested for unknown account")
		return nil
	}
	return common.ErrInternal
}

// RedeemReset finishes the reset flow. Beyond the signature/kind/expiry of
// the bearer token, the token must still equal the value stored on the
// user row; the match-and-clear is a single conditional UPDATE, so two
// concurrent redemptions cannot both succeed.
func (s *AuthService) RedeemReset(ctx context.Context, token, newPassword string) error {
	info, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if info.Kind != auth.KindPasswordReset {
		return common.ErrInvalidToken
	}
	if info.Expired {
		return common.ErrTokenExpired
	}

	if checks := password.CheckPolicy(newPassword); !checks.Valid() {
		return &WeakPasswordError{Checks: checks}
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return common.ErrInternal
	}

	ok, err := s.repomanager.Technicians(s.db).ClearResetTokenIfMatch(ctx, token, hash)
	if err != nil {
		return common.ErrInternal
	}
	if !ok {
		ok, err = s.repomanager.Admins(s.db).ClearResetTokenIfMatch(ctx, token, hash)
		if err != nil {
			return common.ErrInternal
		}
	}
	if !ok {
		// Signed correctly but superseded or already used.
		return common.ErrInvalidToken
	}
	return nil
}

// VerifyAccessToken validates a bearer session token and returns the
// subject e-mail.
func (s *AuthService) VerifyAccessToken(token string) (string, error) {
	info, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	if info.Kind != auth.KindAccess {
		return "", common.ErrInvalidToken
	}
	if info.Expired {
		return "", common.ErrTokenExpired
	}
	return info.SubjectEmail, nil
}
