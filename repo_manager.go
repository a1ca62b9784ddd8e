package booknetwork

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Roles() Roles
	Books() Books
	BookTransactions() BookTransactions
	ActivationTokens() ActivationTokens
}

type mngr struct {
	db               *bun.DB
	users            Users
	roles            Roles
	books            Books
	bookTransactions BookTransactions
	activationTokens ActivationTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:               db,
		users:            NewUsersRepository(db),
		roles:            NewRolesRepository(db),
		books:            NewBooksRepository(db),
		bookTransactions: NewBookTransactionsRepository(db),
		activationTokens: NewActivationTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.books == nil {
		return errors.New("repository books should be initialized")
	}

	if m.bookTransactions == nil {
		return errors.New("repository bookTransactions should be initialized")
	}

	if m.activationTokens == nil {
		return errors.New("repository activationTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Books() Books {
	return m.books
}

func (m mngr) BookTransactions() BookTransactions {
	return m.bookTransactions
}

func (m mngr) ActivationTokens() ActivationTokens {
	return m.activationTokens
}
