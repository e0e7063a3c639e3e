// Package blob defines the document-store contract consumed by the intake
// workflow and its S3-compatible implementation.
package blob

import (
	"context"

	"github.com/ateliertech/portal/internal/server/models"
)

// Store is the external blob-store collaborator. Upload returns an opaque
// handle owned by the caller until explicitly deleted; Delete is expected
// to be best-effort idempotent (deleting an absent object is not an error).
type Store interface {
	Upload(ctx context.Context, data []byte, filename, kind, ownerID string) (models.DocHandle, error)
	Delete(ctx context.Context, publicID string) (bool, error)
}
