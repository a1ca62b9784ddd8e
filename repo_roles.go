package booknetwork

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles manages the role catalog and user role assignments.
type Roles interface {
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	EnsureSeeded(ctx context.Context, names ...string) error
	AssignTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string { return "name" },
	})

	return &roles{Repository: repo, db: db}
}

func (a *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(ErrRoleNotInitialized, ErrRoleNotInitialized.Category, ErrRoleNotInitialized.Message).
				WithTextCode(ErrRoleNotInitialized.TextCode).
				WithMetadata(map[string]any{"name": name})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query role")
	}
	return record, nil
}

// EnsureSeeded inserts any missing roles. Meant to run once at startup; safe to
// run again on every boot.
func (a *roles) EnsureSeeded(ctx context.Context, names ...string) error {
	for _, name := range names {
		record := &Role{ID: uuid.New(), Name: name}
		_, err := a.db.NewInsert().
			Model(record).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to seed role").
				WithMetadata(map[string]any{"name": name})
		}
	}
	return nil
}

func (a *roles) AssignTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	link := &UserRole{UserID: userID, RoleID: roleID}
	if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign role").
			WithMetadata(map[string]any{
				"user_id": userID.String(),
				"role_id": roleID.String(),
			})
	}
	return nil
}
