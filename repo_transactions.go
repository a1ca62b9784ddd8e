package booknetwork

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BookTransactions tracks loans: one open record per borrowed book, closed by
// the return-then-approve handshake.
type BookTransactions interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *BookTransaction) (*BookTransaction, error)
	FindOutstandingForBookTx(ctx context.Context, tx bun.IDB, bookID uuid.UUID) (*BookTransaction, error)
	FindOutstandingForBorrowerTx(ctx context.Context, tx bun.IDB, bookID, borrowerID uuid.UUID) (*BookTransaction, error)
	FindAwaitingApprovalTx(ctx context.Context, tx bun.IDB, bookID uuid.UUID) (*BookTransaction, error)
	MarkReturnedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	ApproveReturnTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	ListBorrowedBy(ctx context.Context, borrowerID uuid.UUID, page, size int) (*Page[*BookTransaction], error)
	ListReturnedTo(ctx context.Context, ownerID uuid.UUID, page, size int) (*Page[*BookTransaction], error)
}

type bookTransactions struct {
	repository.Repository[*BookTransaction]
	db *bun.DB
}

var _ BookTransactions = (*bookTransactions)(nil)

func NewBookTransactionsRepository(db *bun.DB) BookTransactions {
	repo := repository.NewRepository[*BookTransaction](db, repository.ModelHandlers[*BookTransaction]{
		NewRecord: func() *BookTransaction { return &BookTransaction{} },
		GetID: func(t *BookTransaction) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *BookTransaction, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string { return "id" },
	})

	return &bookTransactions{Repository: repo, db: db}
}

func (a *bookTransactions) CreateTx(ctx context.Context, tx bun.IDB, record *BookTransaction) (*BookTransaction, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record)
}

// FindOutstandingForBookTx returns the open loan for a book regardless of who
// holds it, or nil when the book sits on the shelf.
func (a *bookTransactions) FindOutstandingForBookTx(ctx context.Context, tx bun.IDB, bookID uuid.UUID) (*BookTransaction, error) {
	return a.findOne(ctx, tx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.book_id = ?", bookID).
			Where("(?TableAlias.returned = ? OR ?TableAlias.return_approved = ?)", false, false)
	})
}

func (a *bookTransactions) FindOutstandingForBorrowerTx(ctx context.Context, tx bun.IDB, bookID, borrowerID uuid.UUID) (*BookTransaction, error) {
	return a.findOne(ctx, tx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.book_id = ?", bookID).
			Where("?TableAlias.borrower_id = ?", borrowerID).
			Where("(?TableAlias.returned = ? OR ?TableAlias.return_approved = ?)", false, false)
	})
}

// FindAwaitingApprovalTx returns the loan the borrower flagged returned but the
// owner has not yet approved.
func (a *bookTransactions) FindAwaitingApprovalTx(ctx context.Context, tx bun.IDB, bookID uuid.UUID) (*BookTransaction, error) {
	return a.findOne(ctx, tx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.book_id = ?", bookID).
			Where("?TableAlias.returned = ?", true).
			Where("?TableAlias.return_approved = ?", false)
	})
}

func (a *bookTransactions) findOne(ctx context.Context, tx bun.IDB, apply func(*bun.SelectQuery) *bun.SelectQuery) (*BookTransaction, error) {
	record := &BookTransaction{}
	err := apply(tx.NewSelect().Model(record)).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query book transaction")
	}
	return record, nil
}

func (a *bookTransactions) MarkReturnedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.setFlag(ctx, tx, id, "returned")
}

func (a *bookTransactions) ApproveReturnTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.setFlag(ctx, tx, id, "return_approved")
}

func (a *bookTransactions) setFlag(ctx context.Context, tx bun.IDB, id uuid.UUID, column string) error {
	res, err := tx.NewUpdate().
		Model((*BookTransaction)(nil)).
		Set(column+" = ?", true).
		Where("id = ?", id).
		Where(column+" = ?", false).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update book transaction")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return goerrors.Wrap(ErrLoanRecordNotFound, ErrLoanRecordNotFound.Category, ErrLoanRecordNotFound.Message).
			WithTextCode(ErrLoanRecordNotFound.TextCode).
			WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}

func (a *bookTransactions) ListBorrowedBy(ctx context.Context, borrowerID uuid.UUID, page, size int) (*Page[*BookTransaction], error) {
	var records []*BookTransaction
	q := a.db.NewSelect().
		Model(&records).
		Relation("Book").
		Where("?TableAlias.borrower_id = ?", borrowerID).
		Order("created_at DESC")

	return a.paginate(ctx, q, &records, page, size)
}

// ListReturnedTo pages through loans of the owner's books that borrowers have
// flagged returned, approved or not.
func (a *bookTransactions) ListReturnedTo(ctx context.Context, ownerID uuid.UUID, page, size int) (*Page[*BookTransaction], error) {
	var records []*BookTransaction
	q := a.db.NewSelect().
		Model(&records).
		Relation("Book").
		Join("JOIN books AS b ON b.id = book_transaction.book_id").
		Where("b.owner_id = ?", ownerID).
		Where("?TableAlias.returned = ?", true).
		Order("created_at DESC")

	return a.paginate(ctx, q, &records, page, size)
}

func (a *bookTransactions) paginate(ctx context.Context, q *bun.SelectQuery, records *[]*BookTransaction, page, size int) (*Page[*BookTransaction], error) {
	page, size = normalizePage(page, size)

	total, err := q.Limit(size).Offset(page * size).ScanAndCount(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list book transactions")
	}

	return NewPage(*records, page, size, total), nil
}
