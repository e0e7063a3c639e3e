package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/logging"
	"github.com/ateliertech/portal/internal/server/blob"
	"github.com/ateliertech/portal/internal/server/models"
)

const maxFileBytes = 5 * 1024 * 1024

// Document kinds as stored in the blob store.
const (
	KindCV               = "cv"
	KindDiploma          = "diploma"
	KindMotivationLetter = "motivationLetter"
)

var allowedMIME = map[string]map[string]bool{
	KindCV: {
		"application/pdf":    true,
		"application/msword": true,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	},
	KindMotivationLetter: {
		"application/pdf":    true,
		"application/msword": true,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	},
	KindDiploma: {
		"application/pdf": true,
		"image/jpeg":      true,
		"image/png":       true,
	},
}

// FileUpload is one file of a multipart submission, fully read into memory.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmissionFiles groups the uploads of one submission in staging order.
// CV is required; diplomas and the motivation letter are optional.
type SubmissionFiles struct {
	CV               *FileUpload
	Diplomas         []*FileUpload
	MotivationLetter *FileUpload
}

// Stager uploads submission documents to the blob store and guarantees that
// any failure after partial progress removes every handle created in the
// same submission. Compensation is best-effort: deletion failures are
// logged, never propagated.
type Stager struct {
	store  blob.Store
	logger logging.Logger
}

func NewStager(store blob.Store, logger logging.Logger) *Stager {
	return &Stager{store: store, logger: logger.With("module", "document_stager")}
}

// Stage validates and uploads the files in order (CV, diplomas, motivation
// letter). On any validation or upload failure at step k it deletes all
// handles accumulated so far and returns the error: no partial document set
// survives. On success the returned public ids cover every created handle,
// so the caller can run the same compensation if its own persistence step
// fails afterwards.
func (s *Stager) Stage(ctx context.Context, ownerID string, files SubmissionFiles) (*models.ApplicationDocuments, []string, error) {
	if files.CV == nil {
		return nil, nil, fmt.Errorf("%w: cv file is required", common.ErrValidation)
	}

	var staged []string

	fail := func(err error) (*models.ApplicationDocuments, []string, error) {
		s.Rollback(ctx, staged)
		return nil, nil, err
	}

	if err := checkFile(files.CV, KindCV); err != nil {
		return fail(err)
	}
	cv, err := s.store.Upload(ctx, files.CV.Data, files.CV.Filename, KindCV, ownerID)
	if err != nil {
		return fail(err)
	}
	staged = append(staged, cv.PublicID)

	docs := &models.ApplicationDocuments{CV: cv}

	for i, d := range files.Diplomas {
		if err := checkFile(d, KindDiploma); err != nil {
			return fail(fmt.Errorf("diploma_%d: %w", i, err))
		}
		h, err := s.store.Upload(ctx, d.Data, d.Filename, KindDiploma, ownerID)
		if err != nil {
			return fail(err)
		}
		staged = append(staged, h.PublicID)
		docs.Diplomas = append(docs.Diplomas, h)
	}

	if files.MotivationLetter != nil {
		if err := checkFile(files.MotivationLetter, KindMotivationLetter); err != nil {
			return fail(err)
		}
		h, err := s.store.Upload(ctx, files.MotivationLetter.Data, files.MotivationLetter.Filename, KindMotivationLetter, ownerID)
		if err != nil {
			return fail(err)
		}
		staged = append(staged, h.PublicID)
		docs.MotivationLetter = &h
	}

	return docs, staged, nil
}

// Rollback deletes the given handles best-effort. Failures are logged with
// the surviving ids and swallowed.
func (s *Stager) Rollback(ctx context.Context, publicIDs []string) {
	for _, id := range publicIDs {
		if _, err := s.store.Delete(ctx, id); err != nil {
			s.logger.Error(ctx, "compensation delete failed", "public_id", id, "error", err.Error())
		}
	}
}

func checkFile(f *FileUpload, kind string) error {
	if int64(len(f.Data)) > maxFileBytes {
		return fmt.Errorf("%w: file %q exceeds 5 MB", common.ErrValidation, f.Filename)
	}
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !allowedMIME[kind][ct] {
		return fmt.Errorf("%w: file %q has unsupported type %q for %s", common.ErrValidation, f.Filename, ct, kind)
	}
	return nil
}
