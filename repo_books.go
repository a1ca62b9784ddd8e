package booknetwork

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Books is the persistence surface for the catalog.
type Books interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Book, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Book, error)
	Create(ctx context.Context, record *Book) (*Book, error)
	Update(ctx context.Context, record *Book) (*Book, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *Book) (*Book, error)
	ListDisplayable(ctx context.Context, viewerID uuid.UUID, page, size int) (*Page[*Book], error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, page, size int) (*Page[*Book], error)
}

type books struct {
	repository.Repository[*Book]
	db *bun.DB
}

var _ Books = (*books)(nil)

func NewBooksRepository(db *bun.DB) Books {
	repo := repository.NewRepository[*Book](db, repository.ModelHandlers[*Book]{
		NewRecord: func() *Book { return &Book{} },
		GetID: func(b *Book) uuid.UUID {
			if b == nil {
				return uuid.Nil
			}
			return b.ID
		},
		SetID: func(b *Book, id uuid.UUID) {
			if b != nil {
				b.ID = id
			}
		},
		GetIdentifier: func() string { return "id" },
	})

	return &books{Repository: repo, db: db}
}

func (a *books) GetByID(ctx context.Context, id uuid.UUID) (*Book, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *books) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Book, error) {
	record := &Book{}
	err := tx.NewSelect().
		Model(record).
		Relation("Owner").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(ErrBookNotFound, ErrBookNotFound.Category, ErrBookNotFound.Message).
				WithTextCode(ErrBookNotFound.TextCode).
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query book")
	}
	return record, nil
}

func (a *books) Create(ctx context.Context, record *Book) (*Book, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.Create(ctx, record)
}

func (a *books) Update(ctx context.Context, record *Book) (*Book, error) {
	return a.Repository.Update(ctx, record)
}

func (a *books) UpdateTx(ctx context.Context, tx bun.IDB, record *Book) (*Book, error) {
	return a.Repository.UpdateTx(ctx, tx, record)
}

// ListDisplayable pages through books other members can see: shareable, not
// archived, and not owned by the viewer.
func (a *books) ListDisplayable(ctx context.Context, viewerID uuid.UUID, page, size int) (*Page[*Book], error) {
	var records []*Book
	q := a.db.NewSelect().
		Model(&records).
		Relation("Owner").
		Where("?TableAlias.shareable = ?", true).
		Where("?TableAlias.archived = ?", false).
		Where("?TableAlias.owner_id != ?", viewerID).
		Order("created_at DESC")

	return paginateBooks(ctx, q, &records, page, size)
}

func (a *books) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, size int) (*Page[*Book], error) {
	var records []*Book
	q := a.db.NewSelect().
		Model(&records).
		Relation("Owner").
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("created_at DESC")

	return paginateBooks(ctx, q, &records, page, size)
}

func paginateBooks(ctx context.Context, q *bun.SelectQuery, records *[]*Book, page, size int) (*Page[*Book], error) {
	page, size = normalizePage(page, size)

	total, err := q.Limit(size).Offset(page * size).ScanAndCount(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list books")
	}

	return NewPage(*records, page, size, total), nil
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func normalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
