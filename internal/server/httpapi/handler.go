// Package httpapi exposes the portal's REST surface: application intake
// and lifecycle for admins, and the credential endpoints for technicians
// and admins.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/logging"
	"github.com/ateliertech/portal/internal/server/intake"
	"github.com/ateliertech/portal/internal/server/models"
	"github.com/ateliertech/portal/internal/server/services"
)

// Multipart submissions are capped well above the 5 MB per-file limit so
// oversized files fail the stager's check, not an opaque body limit.
const maxSubmissionBytes = 64 << 20

type handler struct {
	applications *services.ApplicationService
	auth         *services.AuthService
	ping         func() error
	logger       logging.Logger
}

// NewHandler returns a mux exposing the portal REST API. ping reports
// database reachability for the health endpoint.
func NewHandler(applications *services.ApplicationService, auth *services.AuthService,
	ping func() error, logger logging.Logger) http.Handler {
	h := &handler{
		applications: applications,
		auth:         auth,
		ping:         ping,
		logger:       logger.With("module", "httpapi"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/api/technician-applications", h.applicationsRoot)
	mux.HandleFunc("/api/technician-applications/", h.applicationResources)
	mux.HandleFunc("/api/auth/technician/login", h.technicianLogin)
	mux.HandleFunc("/api/auth/technician/change-password", h.changePassword)
	mux.HandleFunc("/api/auth/technician/change-temporary-password", h.changeTemporaryPassword)
	mux.HandleFunc("/api/auth/admin/login", h.adminLogin)
	mux.HandleFunc("/api/auth/forgot-password", h.forgotPassword)
	mux.HandleFunc("/api/auth/reset-password", h.resetPassword)
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.ping(); err != nil {
		writeErrorStatus(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAdmin gates the back-office routes on a bearer session token.
// Authorization policy beyond that is out of scope here.
func (h *handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		writeErrorStatus(w, http.StatusUnauthorized, "missing bearer token")
		return false
	}
	if _, err := h.auth.VerifyAccessToken(token); err != nil {
		writeErrorStatus(w, http.StatusUnauthorized, "invalid bearer token")
		return false
	}
	return true
}

func (h *handler) applicationsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submitApplication(w, r)
	case http.MethodGet:
		if !h.requireAdmin(w, r) {
			return
		}
		status := models.ApplicationStatus(r.URL.Query().Get("status"))
		apps, err := h.applications.List(r.Context(), status)
		if err != nil {
			writeError(w, err)
			return
		}
		views := make([]applicationView, 0, len(apps))
		for _, a := range apps {
			views = append(views, toApplicationView(a))
		}
		writeJSON(w, http.StatusOK, views)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)

	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var sub intake.Submission
	if err := json.Unmarshal([]byte(r.FormValue("data")), &sub); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid data field")
		return
	}

	files, err := collectFiles(r.MultipartForm)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.applications.Submit(r.Context(), sub, files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// collectFiles reads the submission uploads into memory in staging order:
// cv, diploma_0..N, motivationLetter.
func collectFiles(form *multipart.Form) (intake.SubmissionFiles, error) {
	var files intake.SubmissionFiles

	cv, err := readFirst(form, "cv")
	if err != nil {
		return files, err
	}
	files.CV = cv

	for i := 0; ; i++ {
		d, err := readFirst(form, fmt.Sprintf("diploma_%d", i))
		if err != nil {
			return files, err
		}
		if d == nil {
			break
		}
		files.Diplomas = append(files.Diplomas, d)
	}

	letter, err := readFirst(form, "motivationLetter")
	if err != nil {
		return files, err
	}
	files.MotivationLetter = letter

	return files, nil
}

func readFirst(form *multipart.Form, field string) (*intake.FileUpload, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, nil
	}
	fh := headers[0]

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read file %q", common.ErrValidation, field)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read file %q", common.ErrValidation, field)
	}

	return &intake.FileUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *handler) applicationResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/technician-applications"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]

	if !h.requireAdmin(w, r) {
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			app, err := h.applications.Get(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toApplicationView(app))
		case http.MethodDelete:
			if err := h.applications.Delete(r.Context(), id); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "status":
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Status string `json:"status"`
			Notes  string `json:"notes"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
			return
		}
		h.transition(w, r, id, models.ApplicationStatus(payload.Status), payload.Notes)
	case "approve":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Notes string `json:"notes"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
			return
		}
		h.transition(w, r, id, models.StatusApproved, payload.Notes)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) transition(w http.ResponseWriter, r *http.Request, id string, target models.ApplicationStatus, notes string) {
	result, err := h.applications.Transition(r.Context(), id, target, notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applicationId": result.Application.ID,
		"status":        result.Application.Status,
		"technicianId":  result.Application.TechnicianID,
		"emailSent":     result.EmailSent,
	})
}

func (h *handler) technicianLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.auth.LoginTechnician(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":        result.AccessToken,
		"mustChangePassword": result.MustChangePassword,
		"technician": map[string]any{
			"id":             result.Technician.ID,
			"name":           result.Technician.Name,
			"surname":        result.Technician.Surname,
			"email":          result.Technician.Email,
			"specialization": result.Technician.Specialization,
		},
	})
}

func (h *handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.auth.LoginAdmin(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": result.AccessToken,
		"admin": map[string]any{
			"id":    result.Admin.ID,
			"email": result.Admin.Email,
		},
	})
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email           string `json:"email"`
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), payload.Email, payload.CurrentPassword, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *handler) changeTemporaryPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.ChangeTemporaryPassword(r.Context(), payload.Token, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		UserType string `json:"userType"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Always succeeds from the caller's point of view, known account or not.
	if err := h.auth.RequestReset(r.Context(), payload.Email, payload.UserType); err != nil {
		h.logger.Error(r.Context(), "reset request failed", "error", err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "if the account exists, an e-mail has been sent"})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.RedeemReset(r.Context(), payload.Token, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// applicationView is the wire shape of an application for admin listings.
type applicationView struct {
	ID           string                      `json:"applicationId"`
	ApplicantID  string                      `json:"applicantId"`
	Personal     models.PersonalInfo         `json:"personalInfo"`
	Professional models.ProfessionalInfo     `json:"professionalInfo"`
	Background   models.Background           `json:"background"`
	Additional   models.AdditionalInfo       `json:"additionalInfo"`
	Documents    models.ApplicationDocuments `json:"documents"`
	Status       models.ApplicationStatus    `json:"status"`
	AdminNotes   string                      `json:"adminNotes"`
	TechnicianID *string                     `json:"technicianId"`
	SubmittedAt  time.Time                   `json:"submittedAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

func toApplicationView(a *models.Application) applicationView {
	return applicationView{
		ID:           a.ID,
		ApplicantID:  a.ApplicantID,
		Personal:     a.Personal,
		Professional: a.Professional,
		Background:   a.Background,
		Additional:   a.Additional,
		Documents:    a.Documents,
		Status:       a.Status,
		AdminNotes:   a.AdminNotes,
		TechnicianID: a.TechnicianID,
		SubmittedAt:  a.SubmittedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
