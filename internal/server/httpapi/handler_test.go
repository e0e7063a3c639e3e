package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/dbx"
	"github.com/ateliertech/portal/internal/logging"
	"github.com/ateliertech/portal/internal/server/auth"
	sc "github.com/ateliertech/portal/internal/server/config"
	"github.com/ateliertech/portal/internal/server/intake"
	"github.com/ateliertech/portal/internal/server/mail"
	"github.com/ateliertech/portal/internal/server/models"
	"github.com/ateliertech/portal/internal/server/repositories/admins"
	"github.com/ateliertech/portal/internal/server/repositories/applications"
	"github.com/ateliertech/portal/internal/server/repositories/technicians"
	"github.com/ateliertech/portal/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory collaborators ---

type memApps struct {
	apps   map[string]*models.Application
	nextID int
}

func (r *memApps) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	r.nextID++
	stored := *app
	stored.ID = fmt.Sprintf("app-%d", r.nextID)
	stored.Status = models.StatusPending
	stored.SubmittedAt = time.Now()
	stored.UpdatedAt = stored.SubmittedAt
	r.apps[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *memApps) Get(ctx context.Context, id string) (*models.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (r *memApps) List(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
	var out []*models.Application
	for _, app := range r.apps {
		if status == "" || app.Status == status {
			copied := *app
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memApps) UpdateStatusIf(ctx context.Context, id string, from []models.ApplicationStatus, to models.ApplicationStatus, notes string) (bool, error) {
	app, ok := r.apps[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if app.Status == f {
			app.Status = to
			app.AdminNotes = notes
			app.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (r *memApps) LinkTechnician(ctx context.Context, id, technicianID string) error {
	app, ok := r.apps[id]
	if !ok {
		return common.ErrNotFound
	}
	app.TechnicianID = &technicianID
	return nil
}

func (r *memApps) Delete(ctx context.Context, id string) error {
	if _, ok := r.apps[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.apps, id)
	return nil
}

type memTechs struct {
	byEmail map[string]*models.Technician
	nextID  int
}

func (r *memTechs) Create(ctx context.Context, t *models.Technician) (*models.Technician, error) {
	r.nextID++
	stored := *t
	stored.ID = fmt.Sprintf("tech-%d", r.nextID)
	stored.CreatedAt = time.Now()
	r.byEmail[stored.Email] = &stored
	copied := stored
	return &copied, nil
}

func (r *memTechs) GetByEmail(ctx context.Context, email string) (*models.Technician, error) {
	t, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memTechs) GetForTemporaryChange(ctx context.Context, email string) (*models.Technician, error) {
	t, ok := r.byEmail[email]
	if !ok || !t.IsTemporaryPassword || !t.MustChangePassword {
		return nil, common.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memTechs) UpdatePassword(ctx context.Context, id, passwordHash string) error {
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

func (r *memTechs) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	for _, t := range r.byEmail {
		if t.ID == id {
			t.PasswordResetToken = &token
			t.PasswordResetExpires = &expires
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *memTechs) ClearResetTokenIfMatch(ctx context.Context, token, passwordHash string) (bool, error) {
	for _, t := range r.byEmail {
		if t.PasswordResetToken != nil && *t.PasswordResetToken == token &&
			t.PasswordResetExpires != nil && t.PasswordResetExpires.After(time.Now()) {
			t.PasswordHash = passwordHash
			t.PasswordResetToken = nil
			t.PasswordResetExpires = nil
			return true, nil
		}
	}
	return false, nil
}

type memAdmins struct {
	byEmail map[string]*models.Admin
}

func (r *memAdmins) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	a, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memAdmins) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	for _, a := range r.byEmail {
		if a.ID == id {
			a.PasswordResetToken = &token
			a.PasswordResetExpires = &expires
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *memAdmins) ClearResetTokenIfMatch(ctx context.Context, token, passwordHash string) (bool, error) {
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

type memManager struct {
	apps  *memApps
	techs *memTechs
	adms  *memAdmins
}

func (m *memManager) Applications(db dbx.DBTX) applications.Repository    { return m.apps }
func (m *memManager) Technicians(db dbx.DBTX) technicians.Repository      { return m.techs }
func (m *memManager) Admins(db dbx.DBTX) admins.Repository                { return m.adms }
func (m *memManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

type memMailer struct{ sent int }

func (m *memMailer) Send(ctx context.Context, to, subject, html string) mail.Result {
	m.sent++
	return mail.Result{Success: true, MessageID: fmt.Sprintf("msg-%d", m.sent)}
}

type memStore struct {
	uploads int
	deleted []string
}

func (s *memStore) Upload(ctx context.Context, data []byte, filename, kind, ownerID string) (models.DocHandle, error) {
	s.uploads++
	return models.DocHandle{
		PublicID:     fmt.Sprintf("applications/%s/%s/%d", ownerID, kind, s.uploads),
		ResourceType: kind,
		Bytes:        int64(len(data)),
		CreatedAt:    time.Now(),
	}, nil
}

func (s *memStore) Delete(ctx context.Context, publicID string) (bool, error) {
	s.deleted = append(s.deleted, publicID)
	return true, nil
}

type memHasher struct{}

func (memHasher) Hash(ctx context.Context, plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (memHasher) Compare(ctx context.Context, plain, digest string) (bool, error) {
	return strings.TrimPrefix(digest, "hashed:") == plain, nil
}

// --- fixture ---

type apiFixture struct {
	server  *httptest.Server
	manager *memManager
	mailer  *memMailer
	store   *memStore
	tokens  *auth.Service
	mock    sqlmock.Sqlmock
	pingErr error
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &sc.Config{}
	cfg.LoadDefaults()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	manager := &memManager{
		apps:  &memApps{apps: map[string]*models.Application{}},
		techs: &memTechs{byEmail: map[string]*models.Technician{}},
		adms:  &memAdmins{byEmail: map[string]*models.Admin{}},
	}
	mailer := &memMailer{}
	store := &memStore{}
	tokens := auth.NewService(cfg.SecretKey)
	stager := intake.NewStager(store, logger)
	issuer := services.NewCredentialIssuer(manager, memHasher{}, cfg)

	appService := services.NewApplicationService(db, manager, stager, issuer, tokens, mailer, cfg, logger)
	authService := services.NewAuthService(db, manager, tokens, memHasher{}, mailer, cfg, logger)

	f := &apiFixture{
		manager: manager,
		mailer:  mailer,
		store:   store,
		tokens:  tokens,
		mock:    mock,
	}
	handler := NewHandler(appService, authService, func() error { return f.pingErr }, logger)
	f.server = httptest.NewServer(handler)
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) adminToken(t *testing.T) string {
	t.Helper()
	token, err := f.tokens.Issue("boss@example.fr", auth.KindAccess, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func submissionBody(t *testing.T, email string, withCV bool) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	data := map[string]any{
		"personalInfo": map[string]any{
			"fullName": "Jean Dupont",
			"email":    email,
			"phone":    "0612345678",
			"location": "Lyon",
		},
		"professionalInfo": map[string]any{
			"specialization":  "smartphones",
			"yearsExperience": 4,
		},
		"background":     map[string]any{},
		"additionalInfo": map[string]any{},
	}
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("data", string(payload)))

	if withCV {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="cv"; filename="cv.pdf"`)
		header.Set("Content-Type", "application/pdf")
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4"))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func (f *apiFixture) submit(t *testing.T, email string) string {
	t.Helper()

	body, contentType := submissionBody(t, email, true)
	resp, err := f.server.Client().Post(f.server.URL+"/api/technician-applications", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var env struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.True(t, env.Success)
	return env.Data["applicationId"].(string)
}

// --- tests ---

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp, env := f.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	f.pingErr = errors.New("db down")
	resp, env = f.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestSubmitEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	id := f.submit(t, "jean@example.fr")
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, f.store.uploads)
}

func TestSubmitEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)

	body, contentType := submissionBody(t, "not-an-email", true)
	resp, err := f.server.Client().Post(f.server.URL+"/api/technician-applications", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Errors)
	assert.Equal(t, 0, f.store.uploads)
}

func TestSubmitEndpointMissingCV(t *testing.T) {
	f := newAPIFixture(t)

	body, contentType := submissionBody(t, "jean@example.fr", false)
	resp, err := f.server.Client().Post(f.server.URL+"/api/technician-applications", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/technician-applications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env := f.do(t, http.MethodGet, "/api/technician-applications", f.adminToken(t), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestGetApplicationEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.submit(t, "jean@example.fr")

	resp, env := f.do(t, http.MethodGet, "/api/technician-applications/"+id, f.adminToken(t), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	resp, _ = f.do(t, http.MethodGet, "/api/technician-applications/missing", f.adminToken(t), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApproveEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.submit(t, "jean@example.fr")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, env := f.do(t, http.MethodPost, "/api/technician-applications/"+id+"/approve",
		f.adminToken(t), map[string]string{"notes": "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, string(models.StatusApproved), data["status"])
	assert.NotEmpty(t, data["technicianId"])
	assert.Equal(t, true, data["emailSent"])
	assert.Equal(t, 1, f.mailer.sent)

	// A second approval conflicts.
	resp, _ = f.do(t, http.MethodPost, "/api/technician-applications/"+id+"/approve",
		f.adminToken(t), map[string]string{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStatusEndpointReject(t *testing.T) {
	f := newAPIFixture(t)
	id := f.submit(t, "jean@example.fr")

	resp, env := f.do(t, http.MethodPatch, "/api/technician-applications/"+id+"/status",
		f.adminToken(t), map[string]string{"status": "rejected", "notes": "no openings"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := env.Data.(map[string]any)
	assert.Equal(t, string(models.StatusRejected), data["status"])
	assert.Equal(t, 1, f.mailer.sent)
}

func TestDeleteEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.submit(t, "jean@example.fr")

	resp, _ := f.do(t, http.MethodDelete, "/api/technician-applications/"+id, f.adminToken(t), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, f.store.deleted, 1)

	resp, _ = f.do(t, http.MethodDelete, "/api/technician-applications/"+id, f.adminToken(t), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTechnicianLoginEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.manager.techs.byEmail["jean@example.fr"] = &models.Technician{
		ID:           "tech-1",
		Email:        "jean@example.fr",
		PasswordHash: "hashed:secret",
		Status:       models.TechnicianActive,
	}

	resp, env := f.do(t, http.MethodPost, "/api/auth/technician/login", "",
		map[string]string{"email": "jean@example.fr", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := env.Data.(map[string]any)
	assert.NotEmpty(t, data["accessToken"])
	assert.Equal(t, false, data["mustChangePassword"])

	resp, _ = f.do(t, http.MethodPost, "/api/auth/technician/login", "",
		map[string]string{"email": "jean@example.fr", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTechnicianLoginGateReason(t *testing.T) {
	f := newAPIFixture(t)
	f.manager.techs.byEmail["jean@example.fr"] = &models.Technician{
		ID:           "tech-1",
		Email:        "jean@example.fr",
		PasswordHash: "hashed:secret",
		Status:       models.TechnicianInactive,
	}

	resp, env := f.do(t, http.MethodPost, "/api/auth/technician/login", "",
		map[string]string{"email": "jean@example.fr", "password": "secret"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "inactive", env.Reason)
}

func TestForgotPasswordEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	// Unknown accounts get the same answer as known ones.
	resp, env := f.do(t, http.MethodPost, "/api/auth/forgot-password", "",
		map[string]string{"email": "nobody@example.fr", "userType": "technician"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, 0, f.mailer.sent)
}

func TestResetPasswordEndpointInvalidToken(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/auth/reset-password", "",
		map[string]string{"token": "garbage", "newPassword": "Str0ng!Passw0rd"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
