package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/dbx"
	"github.com/ateliertech/portal/internal/logging"
	"github.com/ateliertech/portal/internal/server/auth"
	sc "github.com/ateliertech/portal/internal/server/config"
	"github.com/ateliertech/portal/internal/server/intake"
	"github.com/ateliertech/portal/internal/server/mail"
	"github.com/ateliertech/portal/internal/server/models"
	"github.com/ateliertech/portal/internal/server/repositories/repomanager"
)

// legalFrom maps a target status to the statuses a transition may start
// from. pending is initial only and never a target.
var legalFrom = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.StatusReviewing: {models.StatusPending},
	models.StatusApproved:  {models.StatusPending, models.StatusReviewing},
	models.StatusRejected:  {models.StatusPending, models.StatusReviewing},
}

// ApplicationService handles the application lifecycle: submission with
// staged uploads, the status state machine with its provisioning side
// effects, and deletion with document cleanup.
type ApplicationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	stager      *intake.Stager
	issuer      *CredentialIssuer
	tokens      *auth.Service
	mailer      mail.Mailer
	config      *sc.Config
	logger      logging.Logger
}

func NewApplicationService(db *sql.DB, m repomanager.RepositoryManager, stager *intake.Stager,
	issuer *CredentialIssuer, tokens *auth.Service, mailer mail.Mailer, cfg *sc.Config, logger logging.Logger) *ApplicationService {
	return &ApplicationService{
		db:          db,
		repomanager: m,
		stager:      stager,
		issuer:      issuer,
		tokens:      tokens,
		mailer:      mailer,
		config:      cfg,
		logger:      logger.With("module", "application_service"),
	}
}

// SubmitResult is returned to the applicant on a successful submission.
type SubmitResult struct {
	ApplicationID     string `json:"applicationId"`
	ApplicantID       string `json:"applicantId"`
	Status            string `json:"status"`
	DocumentsUploaded int    `json:"documentsUploaded"`
}

// Submit validates the submission, stages its documents, and persists the
// application. Validation failures surface before any upload; an upload or
// persistence failure removes every document staged for this submission
// before the error propagates.
func (s *ApplicationService) Submit(ctx context.Context, sub intake.Submission, files intake.SubmissionFiles) (*SubmitResult, error) {
	sanitized, res := intake.ValidateSubmission(sub)
	if !res.Valid {
		return nil, &InvalidSubmissionError{Problems: res.Errors}
	}

	applicantID := intake.ApplicantID(time.Now().UnixMilli(), sanitized.Personal.FullName)

	docs, staged, err := s.stager.Stage(ctx, applicantID, files)
	if err != nil {
		return nil, err
	}

	app := &models.Application{
		ApplicantID:  applicantID,
		Personal:     sanitized.Personal,
		Professional: sanitized.Professional,
		Background:   sanitized.Background,
		Additional:   sanitized.Additional,
		Documents:    *docs,
	}

	repo := s.repomanager.Applications(s.db)
	created, err := repo.Create(ctx, app)
	if err != nil {
		// Uploads succeeded but the record did not: same full compensation.
		s.stager.Rollback(ctx, staged)
		return nil, fmt.Errorf("error creating application: %w", err)
	}

	s.logger.Info(ctx, "application submitted", "application_id", created.ID, "applicant_id", applicantID)

	return &SubmitResult{
		ApplicationID:     created.ID,
		ApplicantID:       applicantID,
		Status:            string(created.Status),
		DocumentsUploaded: len(staged),
	}, nil
}

func (s *ApplicationService) Get(ctx context.Context, id string) (*models.Application, error) {
	return s.repomanager.Applications(s.db).Get(ctx, id)
}

func (s *ApplicationService) List(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
	return s.repomanager.Applications(s.db).List(ctx, status)
}

// TransitionResult reports the applied transition. EmailSent is false only
// when a notification was due and failed to send; non-terminal transitions
// owe no mail and always report true. A failed send never undoes the
// transition.
type TransitionResult struct {
	Application *models.Application
	EmailSent   bool
}

// Transition moves the application to target and runs the terminal side
// effects: approval provisions a technician account and mails the
// temporary credentials, rejection mails the stated reason. The stored
// status is re-read and the update is conditional on the allowed
// from-states, so a concurrent admin action cannot double-provision.
func (s *ApplicationService) Transition(ctx context.Context, id string, target models.ApplicationStatus, notes string) (*TransitionResult, error) {
	from, ok := legalFrom[target]
	if !ok {
		return nil, fmt.Errorf("%w: cannot transition to %q", common.ErrConflict, target)
	}

	repo := s.repomanager.Applications(s.db)
	app, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status.Terminal() {
		return nil, fmt.Errorf("%w: application already %s", common.ErrConflict, app.Status)
	}

	var provisioned *Provisioned

	if target == models.StatusApproved {
		// Status change, technician row, and application link are one unit:
		// a provisioning failure leaves no partial account and no approved
		// status behind.
		err = dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
			txRepo := s.repomanager.Applications(tx)
			moved, err := txRepo.UpdateStatusIf(ctx, id, from, target, notes)
			if err != nil {
				return err
			}
			if !moved {
				return fmt.Errorf("%w: application is no longer %s", common.ErrConflict, app.Status)
			}
			provisioned, err = s.issuer.Provision(ctx, tx, app)
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		moved, err := repo.UpdateStatusIf(ctx, id, from, target, notes)
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, fmt.Errorf("%w: application is no longer in a state allowing %s", common.ErrConflict, target)
		}
	}

	emailSent := true
	if target.Terminal() {
		emailSent = s.notifyTransition(ctx, app, target, notes, provisioned)
	}

	updated, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &TransitionResult{Application: updated, EmailSent: emailSent}, nil
}

// Approve is the shorthand admin action for Transition(approved).
func (s *ApplicationService) Approve(ctx context.Context, id, notes string) (*TransitionResult, error) {
	return s.Transition(ctx, id, models.StatusApproved, notes)
}

// notifyTransition dispatches the terminal-transition e-mail, best-effort.
func (s *ApplicationService) notifyTransition(ctx context.Context, app *models.Application,
	target models.ApplicationStatus, notes string, provisioned *Provisioned) bool {

	var subject, body string
	switch target {
	case models.StatusApproved:
		token, err := s.tokens.Issue(app.Personal.Email, auth.KindTemporaryPassword, s.config.TemporaryPasswordValidityDuration)
		if err != nil {
			s.logger.Error(ctx, "temporary password token issue failed", "application_id", app.ID, "error", err.Error())
		}
		subject, body = mail.TemporaryPasswordEmail(app.Personal.FullName, app.Personal.Email,
			provisioned.TemporaryPassword, token, provisioned.Expires, s.config.PortalBaseURL)
	case models.StatusRejected:
		subject, body = mail.RejectionEmail(app.Personal.FullName, notes)
	default:
		return false
	}

	result := s.mailer.Send(ctx, app.Personal.Email, subject, body)
	if !result.Success {
		s.logger.Error(ctx, "notification e-mail failed", "application_id", app.ID,
			"target", string(target), "error", fmt.Sprintf("%v", result.Err))
		return false
	}
	return true
}

// Delete removes the application and its documents. Document deletion runs
// first and is best-effort; if the record delete then fails the documents
// are already gone and the record remains — that state is logged and the
// error surfaced, no recovery is attempted.
func (s *ApplicationService) Delete(ctx context.Context, id string) error {
	repo := s.repomanager.Applications(s.db)
	app, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	ids := documentIDs(&app.Documents)
	s.stager.Rollback(ctx, ids)

	if err := repo.Delete(ctx, id); err != nil {
		s.logger.Error(ctx, "record delete failed after document cleanup",
			"application_id", id, "deleted_documents", len(ids), "error", err.Error())
		return err
	}

	s.logger.Info(ctx, "application deleted", "application_id", id, "documents", len(ids))
	return nil
}

func documentIDs(docs *models.ApplicationDocuments) []string {
	ids := []string{}
	if docs.CV.PublicID != "" {
		ids = append(ids, docs.CV.PublicID)
	}
	for _, d := range docs.Diplomas {
		ids = append(ids, d.PublicID)
	}
	if docs.MotivationLetter != nil && docs.MotivationLetter.PublicID != "" {
		ids = append(ids, docs.MotivationLetter.PublicID)
	}
	return ids
}
