package booknetwork

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivationTokens stores one-time account activation codes.
type ActivationTokens interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *ActivationToken) (*ActivationToken, error)
	GetByCodeTx(ctx context.Context, tx bun.IDB, code string) (*ActivationToken, error)
	CodeInUseTx(ctx context.Context, tx bun.IDB, code string, now time.Time) (bool, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
}

type activationTokens struct {
	repository.Repository[*ActivationToken]
	db *bun.DB
}

var _ ActivationTokens = (*activationTokens)(nil)

func NewActivationTokensRepository(db *bun.DB) ActivationTokens {
	repo := repository.NewRepository[*ActivationToken](db, repository.ModelHandlers[*ActivationToken]{
		NewRecord: func() *ActivationToken { return &ActivationToken{} },
		GetID: func(t *ActivationToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *ActivationToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string { return "code" },
	})

	return &activationTokens{Repository: repo, db: db}
}

func (a *activationTokens) CreateTx(ctx context.Context, tx bun.IDB, record *ActivationToken) (*ActivationToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record)
}

// GetByCodeTx returns the most recent token issued for the code, with the
// owning user loaded. Codes can be reissued after expiry so created_at breaks
// the tie.
func (a *activationTokens) GetByCodeTx(ctx context.Context, tx bun.IDB, code string) (*ActivationToken, error) {
	record := &ActivationToken{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.code = ?", code).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(ErrActivationTokenNotFound, ErrActivationTokenNotFound.Category, ErrActivationTokenNotFound.Message).
				WithTextCode(ErrActivationTokenNotFound.TextCode)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query activation token")
	}
	return record, nil
}

// CodeInUseTx reports whether a token live at the given instant already
// carries the code. Expired and consumed tokens release the code for reuse.
func (a *activationTokens) CodeInUseTx(ctx context.Context, tx bun.IDB, code string, now time.Time) (bool, error) {
	count, err := tx.NewSelect().
		Model((*ActivationToken)(nil)).
		Where("?TableAlias.code = ?", code).
		Where("?TableAlias.validated_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		Count(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check activation code")
	}
	return count > 0, nil
}

// ConsumeTx marks the token used. The guard on validated_at makes the consume
// first-writer-wins: a second caller sees zero rows and gets TOKEN_ALREADY_USED.
func (a *activationTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	res, err := tx.NewUpdate().
		Model((*ActivationToken)(nil)).
		Set("validated_at = ?", at).
		Where("id = ?", id).
		Where("validated_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume activation token")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read consume result")
	}
	if rows == 0 {
		return goerrors.Wrap(ErrActivationTokenUsed, ErrActivationTokenUsed.Category, ErrActivationTokenUsed.Message).
			WithTextCode(ErrActivationTokenUsed.TextCode)
	}
	return nil
}
