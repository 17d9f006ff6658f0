package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/archivia/internal/server/migrations"
	"github.com/dmitrijs2005/archivia/internal/server/repositories/documentfiles"
	"github.com/dmitrijs2005/archivia/internal/server/repositories/documents"
	"github.com/dmitrijs2005/archivia/internal/server/repositories/files"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)
	var m RepositoryManager = NewPostgresRepositoryManager()

	assert.IsType(t, &documents.PostgresRepository{}, m.Documents(db))
	assert.IsType(t, &files.PostgresRepository{}, m.Files(db))
	assert.IsType(t, &documentfiles.PostgresRepository{}, m.DocumentFiles(db))
}

func TestRunMigrations_Success(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), db))
}

func TestRunMigrations_Error(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
	assert.EqualError(t, err, "boom")
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_documents.sql", "00002_files.sql", "00003_document_files.sql"}, names)
}
