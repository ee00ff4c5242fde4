package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/shares"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same code inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Profiles(db dbx.DBTX) profiles.Repository
	Documents(db dbx.DBTX) documents.Repository
	Shares(db dbx.DBTX) shares.Repository
}
