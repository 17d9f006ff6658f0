package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/archivia/internal/dbx"
	"github.com/dmitrijs2005/archivia/internal/server/repositories/documentfiles"
	"github.com/dmitrijs2005/archivia/internal/server/repositories/documents"
	"github.com/dmitrijs2005/archivia/internal/server/repositories/files"
)

// RepositoryManager vends repositories bound to a DBTX, so that the same
// code runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Documents(db dbx.DBTX) documents.Repository
	Files(db dbx.DBTX) files.Repository
	DocumentFiles(db dbx.DBTX) documentfiles.Repository
}
