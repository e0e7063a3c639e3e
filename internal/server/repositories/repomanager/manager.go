// Package repomanager vends repository implementations bound to a DBTX, so
// a service can run the same repository code against *sql.DB or inside a
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ateliertech/portal/internal/dbx"
	"github.com/ateliertech/portal/internal/server/repositories/admins"
	"github.com/ateliertech/portal/internal/server/repositories/applications"
	"github.com/ateliertech/portal/internal/server/repositories/technicians"
)

type RepositoryManager interface {
	Applications(db dbx.DBTX) applications.Repository
	Technicians(db dbx.DBTX) technicians.Repository
	Admins(db dbx.DBTX) admins.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
