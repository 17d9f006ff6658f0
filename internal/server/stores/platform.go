package stores

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/archivia/internal/common"
	"github.com/dmitrijs2005/archivia/internal/dbx"
	"github.com/dmitrijs2005/archivia/internal/server/models"
	"github.com/dmitrijs2005/archivia/internal/server/repositories/repomanager"
)

// Postgres is the PlatformStore backed by the relational repositories.
type Postgres struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewPostgres(db *sql.DB, repos repomanager.RepositoryManager) *Postgres {
	return &Postgres{db: db, repos: repos}
}

func platformError(op string, err error) error {
	if err == nil {
		return nil
	}
	var kind error
	switch {
	case errors.Is(err, common.ErrNotFound):
		kind = common.ErrNotFound
	case dbx.IsUniqueViolation(err):
		kind = common.ErrConflict
	case dbx.PgCode(err) == dbx.CodeForeignKeyViolation:
		kind = common.ErrNotFound
	case dbx.IsServerError(err):
		kind = common.ErrStoreFailure
	default:
		kind = common.ErrStoreUnavailable
	}
	return common.NewStoreError(common.StorePlatform, op, kind, err)
}

func (p *Postgres) CreateDocument(ctx context.Context, doc *models.Document) error {
	return platformError("create document", p.repos.Documents(p.db).Create(ctx, doc))
}

func (p *Postgres) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := p.repos.Documents(p.db).GetByID(ctx, id)
	return doc, platformError("get document", err)
}

func (p *Postgres) ListDocuments(ctx context.Context, ownerID string, offset, limit int) ([]*models.DocumentSummary, error) {
	docs, err := p.repos.Documents(p.db).ListByOwner(ctx, ownerID, offset, limit)
	return docs, platformError("list documents", err)
}

func (p *Postgres) SetMetadataRef(ctx context.Context, id, ref string) error {
	return platformError("set metadata ref", p.repos.Documents(p.db).SetMetadataRef(ctx, id, ref))
}

func (p *Postgres) TouchDocument(ctx context.Context, id string) error {
	return platformError("touch document", p.repos.Documents(p.db).Touch(ctx, id))
}

func (p *Postgres) DeleteDocument(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		links := p.repos.DocumentFiles(tx)
		files := p.repos.Files(tx)

		attached, err := links.ListByDocument(ctx, id)
		if err != nil {
			return err
		}
		if _, err := links.DeleteByDocument(ctx, id); err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(attached))
		for _, vf := range attached {
			if _, ok := seen[vf.File.ID]; ok {
				continue
			}
			seen[vf.File.ID] = struct{}{}

			n, err := files.CountReferences(ctx, vf.File.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if err := files.Delete(ctx, vf.File.ID); err != nil {
				return err
			}
		}

		return p.repos.Documents(tx).Delete(ctx, id)
	})
	return platformError("delete document", err)
}

func (p *Postgres) FindFile(ctx context.Context, ownerID, storageKey string) (*models.File, error) {
	f, err := p.repos.Files(p.db).GetByStorageKey(ctx, ownerID, storageKey)
	return f, platformError("find file", err)
}

func (p *Postgres) GetFile(ctx context.Context, id string) (*models.File, error) {
	f, err := p.repos.Files(p.db).GetByID(ctx, id)
	return f, platformError("get file", err)
}

func (p *Postgres) CreateFile(ctx context.Context, file *models.File) error {
	return platformError("create file", p.repos.Files(p.db).Create(ctx, file))
}

func (p *Postgres) DeleteFile(ctx context.Context, id string) error {
	return platformError("delete file", p.repos.Files(p.db).Delete(ctx, id))
}

func (p *Postgres) FileReferences(ctx context.Context, fileID string) (int, error) {
	n, err := p.repos.Files(p.db).CountReferences(ctx, fileID)
	return n, platformError("count references", err)
}

func (p *Postgres) Attach(ctx context.Context, files []*models.File, completed []string, assocs []*models.DocumentFile) error {
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fr := p.repos.Files(tx)
		for _, f := range files {
			if err := fr.Create(ctx, f); err != nil {
				return err
			}
		}
		for _, id := range completed {
			if err := fr.MarkUploaded(ctx, id); err != nil {
				return err
			}
		}
		lr := p.repos.DocumentFiles(tx)
		for _, a := range assocs {
			if err := lr.Create(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	return platformError("attach files", err)
}

func (p *Postgres) Detach(ctx context.Context, assocIDs, fileIDs, reopened []string) error {
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lr := p.repos.DocumentFiles(tx)
		for _, id := range assocIDs {
			if err := lr.Delete(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
		}

		fr := p.repos.Files(tx)
		release := func(ids []string, op func(context.Context, string) error) error {
			for _, id := range ids {
				n, err := fr.CountReferences(ctx, id)
				if err != nil {
					return err
				}
				if n > 0 {
					continue
				}
				if err := op(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
					return err
				}
			}
			return nil
		}
		if err := release(fileIDs, fr.Delete); err != nil {
			return err
		}
		return release(reopened, fr.MarkPending)
	})
	return platformError("detach files", err)
}

func (p *Postgres) ListDocumentFiles(ctx context.Context, documentID string) ([]models.ViewFile, error) {
	files, err := p.repos.DocumentFiles(p.db).ListByDocument(ctx, documentID)
	return files, platformError("list document files", err)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return platformError("ping", p.db.PingContext(ctx))
}
