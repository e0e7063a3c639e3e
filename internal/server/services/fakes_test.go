package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/dbx"
	"github.com/ateliertech/portal/internal/logging"
	sc "github.com/ateliertech/portal/internal/server/config"
	"github.com/ateliertech/portal/internal/server/intake"
	"github.com/ateliertech/portal/internal/server/mail"
	"github.com/ateliertech/portal/internal/server/models"
	"github.com/ateliertech/portal/internal/server/repositories/admins"
	"github.com/ateliertech/portal/internal/server/repositories/applications"
	"github.com/ateliertech/portal/internal/server/repositories/technicians"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *sc.Config {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	return cfg
}

type fakeApplicationsRepo struct {
	apps      map[string]*models.Application
	nextID    int
	createErr error
	deleteErr error
}

func newFakeApplicationsRepo() *fakeApplicationsRepo {
	return &fakeApplicationsRepo{apps: map[string]*models.Application{}}
}

func (r *fakeApplicationsRepo) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	stored := *app
	stored.ID = fmt.Sprintf("app-%d", r.nextID)
	stored.Status = models.StatusPending
	stored.SubmittedAt = time.Now()
	stored.UpdatedAt = stored.SubmittedAt
	r.apps[stored.ID] = &stored
	return &stored, nil
}

func (r *fakeApplicationsRepo) Get(ctx context.Context, id string) (*models.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (r *fakeApplicationsRepo) List(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
	var out []*models.Application
	for _, app := range r.apps {
		if status == "" || app.Status == status {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeApplicationsRepo) UpdateStatusIf(ctx context.Context, id string, from []models.ApplicationStatus, to models.ApplicationStatus, notes string) (bool, error) {
	app, ok := r.apps[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range from {
		if app.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	app.Status = to
	app.AdminNotes = notes
	app.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeApplicationsRepo) LinkTechnician(ctx context.Context, id, technicianID string) error {
	app, ok := r.apps[id]
	if !ok {
		return common.ErrNotFound
	}
	app.TechnicianID = &technicianID
	return nil
}

func (r *fakeApplicationsRepo) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.apps[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.apps, id)
	return nil
}

type fakeTechniciansRepo struct {
	byEmail   map[string]*models.Technician
	nextID    int
	createErr error
}

func newFakeTechniciansRepo() *fakeTechniciansRepo {
	return &fakeTechniciansRepo{byEmail: map[string]*models.Technician{}}
}

func (r *fakeTechniciansRepo) Create(ctx context.Context, t *models.Technician) (*models.Technician, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	stored := *t
	stored.ID = fmt.Sprintf("tech-%d", r.nextID)
	stored.CreatedAt = time.Now()
	r.byEmail[stored.Email] = &stored
	return &stored, nil
}

func (r *fakeTechniciansRepo) GetByEmail(ctx context.Context, email string) (*models.Technician, error) {
	t, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTechniciansRepo) GetForTemporaryChange(ctx context.Context, email string) (*models.Technician, error) {
	t, ok := r.byEmail[email]
	if !ok || !t.IsTemporaryPassword || !t.MustChangePassword {
		return nil, common.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTechniciansRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	for _, t := range r.byEmail {
		if t.ID == id {
			t.PasswordHash = passwordHash
			t.IsTemporaryPassword = false
			t.TemporaryPasswordExpires = nil
			t.MustChangePassword = false
			t.PasswordResetToken = nil
			t.PasswordResetExpires = nil
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeTechniciansRepo) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	for _, t := range r.byEmail {
		if t.ID == id {
			t.PasswordResetToken = &token
			t.PasswordResetExpires = &expires
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeTechniciansRepo) ClearResetTokenIfMatch(ctx context.Context, token, passwordHash string) (bool, error) {
	for _, t := range r.byEmail {
		if t.PasswordResetToken != nil && *t.PasswordResetToken == token &&
			t.PasswordResetExpires != nil && t.PasswordResetExpires.After(time.Now()) {
			t.PasswordHash = passwordHash
			t.PasswordResetToken = nil
			t.PasswordResetExpires = nil
			t.IsTemporaryPassword = false
			t.TemporaryPasswordExpires = nil
			t.MustChangePassword = false
			return true, nil
		}
	}
	return false, nil
}

type fakeAdminsRepo struct {
	byEmail map[string]*models.Admin
}

func newFakeAdminsRepo() *fakeAdminsRepo {
	return &fakeAdminsRepo{byEmail: map[string]*models.Admin{}}
}

func (r *fakeAdminsRepo) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	a, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAdminsRepo) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	for _, a := range r.byEmail {
		if a.ID == id {
			a.PasswordResetToken = &token
			a.PasswordResetExpires = &expires
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeAdminsRepo) ClearResetTokenIfMatch(ctx context.Context, token, passwordHash string) (bool, error) {
	for _, a := range r.byEmail {
		if a.PasswordResetToken != nil && *a.PasswordResetToken == token &&
			a.PasswordResetExpires != nil && a.PasswordResetExpires.After(time.Now()) {
			a.PasswordHash = passwordHash
			a.PasswordResetToken = nil
			a.PasswordResetExpires = nil
			return true, nil
		}
	}
	return false, nil
}

// fakeRepoManager vends the same fakes regardless of the handle, so code
// running "inside a transaction" sees the same state as code outside it.
type fakeRepoManager struct {
	apps  *fakeApplicationsRepo
	techs *fakeTechniciansRepo
	adms  *fakeAdminsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		apps:  newFakeApplicationsRepo(),
		techs: newFakeTechniciansRepo(),
		adms:  newFakeAdminsRepo(),
	}
}

func (m *fakeRepoManager) Applications(db dbx.DBTX) applications.Repository { return m.apps }
func (m *fakeRepoManager) Technicians(db dbx.DBTX) technicians.Repository   { return m.techs }
func (m *fakeRepoManager) Admins(db dbx.DBTX) admins.Repository             { return m.adms }
func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) mail.Result {
	if m.fail {
		return mail.Result{Success: false, Err: errors.New("smtp unreachable")}
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: html})
	return mail.Result{Success: true, MessageID: fmt.Sprintf("msg-%d", len(m.sent))}
}

type fakeStore struct {
	uploads int
	deleted []string
	failAt  int // fail the n-th upload (1-based); 0 = never
}

func (s *fakeStore) Upload(ctx context.Context, data []byte, filename, kind, ownerID string) (models.DocHandle, error) {
	s.uploads++
	if s.failAt != 0 && s.uploads == s.failAt {
		return models.DocHandle{}, fmt.Errorf("%w: upload refused", common.ErrUpstream)
	}
	return models.DocHandle{
		PublicID:     fmt.Sprintf("applications/%s/%s/%d", ownerID, kind, s.uploads),
		URL:          fmt.Sprintf("http://blob.local/%s/%d", kind, s.uploads),
		ResourceType: kind,
		Format:       "pdf",
		Bytes:        int64(len(data)),
		CreatedAt:    time.Now(),
	}, nil
}

func (s *fakeStore) Delete(ctx context.Context, publicID string) (bool, error) {
	s.deleted = append(s.deleted, publicID)
	return true, nil
}

// fakeHasher keeps the hashing visible: Hash prefixes, Compare strips.
type fakeHasher struct{}

func (fakeHasher) Hash(ctx context.Context, plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (fakeHasher) Compare(ctx context.Context, plain, digest string) (bool, error) {
	return strings.TrimPrefix(digest, "hashed:") == plain, nil
}

func validSubmission() intake.Submission {
	return intake.Submission{
		Personal: models.PersonalInfo{
			FullName: "Jean Dupont",
			Email:    "jean.dupont@example.fr",
			Phone:    "06 12 34 56 78",
			Location: "Lyon",
		},
		Professional: models.ProfessionalInfo{
			Specialization:  "smartphones",
			YearsExperience: 4,
		},
	}
}

func validFiles() intake.SubmissionFiles {
	return intake.SubmissionFiles{
		CV: &intake.FileUpload{
			Filename:    "cv.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.4 cv"),
		},
		Diplomas: []*intake.FileUpload{
			{Filename: "bts.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 bts")},
		},
		MotivationLetter: &intake.FileUpload{
			Filename:    "lettre.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.4 lettre"),
		},
	}
}
