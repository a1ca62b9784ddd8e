package booknetwork

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LendingService drives the borrow/return/approve state machine and the
// catalog around it. Mutating operations on a single book are serialized by a
// per-book lock plus a storage transaction.
type LendingService struct {
	repo    RepositoryManager
	storage FileStorage
	logger  Logger
	locks   *keyedMutex
}

func NewLendingService(repo RepositoryManager) *LendingService {
	return &LendingService{
		repo:   repo,
		logger: defLogger{},
		locks:  newKeyedMutex(),
	}
}

func (s *LendingService) WithLogger(l Logger) *LendingService {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *LendingService) WithFileStorage(storage FileStorage) *LendingService {
	s.storage = storage
	return s
}

// SaveBook persists a new book owned by the caller. New books start
// unarchived; shareable comes from the payload.
func (s *LendingService) SaveBook(ctx context.Context, caller Identity, book *Book) (*Book, error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}

	book.OwnerID = callerID
	book.Archived = false

	return s.repo.Books().Create(ctx, book)
}

func (s *LendingService) FindBookByID(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.repo.Books().GetByID(ctx, id)
}

// ListDisplayableBooks pages through books the caller could borrow.
func (s *LendingService) ListDisplayableBooks(ctx context.Context, caller Identity, page, size int) (*Page[*Book], error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}
	return s.repo.Books().ListDisplayable(ctx, callerID, page, size)
}

func (s *LendingService) ListOwnedBooks(ctx context.Context, caller Identity, page, size int) (*Page[*Book], error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}
	return s.repo.Books().ListByOwner(ctx, callerID, page, size)
}

func (s *LendingService) ListBorrowedBooks(ctx context.Context, caller Identity, page, size int) (*Page[*BookTransaction], error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}
	return s.repo.BookTransactions().ListBorrowedBy(ctx, callerID, page, size)
}

func (s *LendingService) ListReturnedBooks(ctx context.Context, caller Identity, page, size int) (*Page[*BookTransaction], error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}
	return s.repo.BookTransactions().ListReturnedTo(ctx, callerID, page, size)
}

// Borrow opens a loan for the caller. Guards run in a fixed order so callers
// always get the most specific refusal: missing book, not lendable, own book,
// already held by the caller, already held by someone else.
func (s *LendingService) Borrow(ctx context.Context, caller Identity, bookID uuid.UUID) (*BookTransaction, error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(bookID.String())
	defer unlock()

	var record *BookTransaction
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		book, err := s.repo.Books().GetByIDTx(ctx, tx, bookID)
		if err != nil {
			return err
		}

		if !book.AvailableForSharing() {
			return refuse(ErrNotShareable, bookID)
		}

		if book.OwnedBy(callerID) {
			return refuse(ErrSelfBorrowForbidden, bookID)
		}

		mine, err := s.repo.BookTransactions().FindOutstandingForBorrowerTx(ctx, tx, bookID, callerID)
		if err != nil {
			return err
		}
		if mine != nil {
			return refuse(ErrAlreadyBorrowedByCaller, bookID)
		}

		open, err := s.repo.BookTransactions().FindOutstandingForBookTx(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if open != nil {
			return refuse(ErrAlreadyBorrowed, bookID)
		}

		record, err = s.repo.BookTransactions().CreateTx(ctx, tx, &BookTransaction{
			BookID:     bookID,
			BorrowerID: callerID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ReturnBook flags the caller's open loan as returned. Only the borrower who
// holds the book can do this, and only once.
func (s *LendingService) ReturnBook(ctx context.Context, caller Identity, bookID uuid.UUID) (*BookTransaction, error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(bookID.String())
	defer unlock()

	var record *BookTransaction
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		book, err := s.repo.Books().GetByIDTx(ctx, tx, bookID)
		if err != nil {
			return err
		}

		if !book.AvailableForSharing() {
			return refuse(ErrNotShareable, bookID)
		}

		if book.OwnedBy(callerID) {
			return refuse(ErrSelfBorrowForbidden, bookID)
		}

		record, err = s.repo.BookTransactions().FindOutstandingForBorrowerTx(ctx, tx, bookID, callerID)
		if err != nil {
			return err
		}
		if record == nil || record.Returned {
			return refuse(ErrNotBorrowed, bookID)
		}

		if err := s.repo.BookTransactions().MarkReturnedTx(ctx, tx, record.ID); err != nil {
			return err
		}
		record.Returned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ApproveReturn closes the loan. Only the book's owner can approve, and only
// after the borrower flagged the return.
func (s *LendingService) ApproveReturn(ctx context.Context, caller Identity, bookID uuid.UUID) (*BookTransaction, error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(bookID.String())
	defer unlock()

	var record *BookTransaction
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		book, err := s.repo.Books().GetByIDTx(ctx, tx, bookID)
		if err != nil {
			return err
		}

		if !book.AvailableForSharing() {
			return refuse(ErrNotShareable, bookID)
		}

		if !book.OwnedBy(callerID) {
			return refuse(ErrNotOwner, bookID)
		}

		record, err = s.repo.BookTransactions().FindAwaitingApprovalTx(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if record == nil {
			return refuse(ErrReturnNotRequested, bookID)
		}

		if err := s.repo.BookTransactions().ApproveReturnTx(ctx, tx, record.ID); err != nil {
			return err
		}
		record.ReturnApproved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ToggleShareable flips the shareable flag. Owner only. Open loans are not
// affected; the flag gates new borrows.
func (s *LendingService) ToggleShareable(ctx context.Context, caller Identity, bookID uuid.UUID) (*Book, error) {
	return s.toggle(ctx, caller, bookID, func(b *Book) {
		b.Shareable = !b.Shareable
	})
}

// ToggleArchived flips the archived flag. Owner only.
func (s *LendingService) ToggleArchived(ctx context.Context, caller Identity, bookID uuid.UUID) (*Book, error) {
	return s.toggle(ctx, caller, bookID, func(b *Book) {
		b.Archived = !b.Archived
	})
}

func (s *LendingService) toggle(ctx context.Context, caller Identity, bookID uuid.UUID, mutate func(*Book)) (*Book, error) {
	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(bookID.String())
	defer unlock()

	var book *Book
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		book, err = s.repo.Books().GetByIDTx(ctx, tx, bookID)
		if err != nil {
			return err
		}

		if !book.OwnedBy(callerID) {
			return refuse(ErrNotOwner, bookID)
		}

		mutate(book)
		book, err = s.repo.Books().UpdateTx(ctx, tx, book)
		return err
	})
	if err != nil {
		return nil, err
	}

	return book, nil
}

// UploadBookCover stores the cover bytes and records the reference on the
// book. Owner only.
func (s *LendingService) UploadBookCover(ctx context.Context, caller Identity, bookID uuid.UUID, filename string, data []byte) (*Book, error) {
	if s.storage == nil {
		return nil, goerrors.New("file storage is not configured", goerrors.CategoryInternal)
	}
	if len(data) == 0 {
		return nil, goerrors.New("cover file is empty", goerrors.CategoryBadInput)
	}

	callerID, err := callerUUID(caller)
	if err != nil {
		return nil, err
	}

	book, err := s.repo.Books().GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if !book.OwnedBy(callerID) {
		return nil, refuse(ErrNotOwner, bookID)
	}

	ref, err := s.storage.SaveFile(ctx, callerID.String(), filename, data)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store book cover")
	}

	book.BookCover = ref
	return s.repo.Books().Update(ctx, book)
}

func callerUUID(caller Identity) (uuid.UUID, error) {
	if caller == nil {
		return uuid.Nil, goerrors.New("caller identity is required", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	id, err := uuid.Parse(caller.ID())
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryAuth, "caller identity has an invalid id").
			WithCode(goerrors.CodeUnauthorized)
	}

	return id, nil
}

func refuse(sentinel *goerrors.Error, bookID uuid.UUID) error {
	return goerrors.Wrap(sentinel, sentinel.Category, sentinel.Message).
		WithTextCode(sentinel.TextCode).
		WithMetadata(map[string]any{"book_id": bookID.String()})
}

// keyedMutex hands out one mutex per live key. Entries are reference counted
// and removed when the last holder unlocks, so the map does not grow with the
// catalog.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*keyedLock{}}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
