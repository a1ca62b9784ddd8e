package booknetwork

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UseHashid bool
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates a disabled account, assigns the default role,
// and issues an activation token, all in one transaction. The activation email
// goes out after commit.
type RegisterUserHandler struct {
	repo   RepositoryManager
	issuer *ActivationIssuer
	mailer Mailer
	config Config
	logger Logger
}

func NewRegisterUserHandler(repo RepositoryManager, mailer Mailer, config Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:   repo,
		issuer: NewActivationIssuer(repo.ActivationTokens()),
		mailer: mailer,
		config: config,
		logger: defLogger{},
	}
}

func (h *RegisterUserHandler) WithLogger(l Logger) *RegisterUserHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *RegisterUserHandler) WithActivationIssuer(issuer *ActivationIssuer) *RegisterUserHandler {
	if issuer != nil {
		h.issuer = issuer
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (uuid.UUID, error) {
	select {
	case <-ctx.Done():
		return uuid.Nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (uuid.UUID, error) {
	user := &User{}
	var token *ActivationToken

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.repo.Users().ExistsByEmailTx(ctx, tx, event.Email)
		if err != nil {
			return err
		}
		if taken {
			return goerrors.Wrap(ErrDuplicateEmail, ErrDuplicateEmail.Category, ErrDuplicateEmail.Message).
				WithTextCode(ErrDuplicateEmail.TextCode).
				WithMetadata(map[string]any{"email": event.Email})
		}

		role, err := h.repo.Roles().GetByNameTx(ctx, tx, DefaultRoleName)
		if err != nil {
			return err
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Enabled = false
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if err = h.repo.Roles().AssignTx(ctx, tx, user.ID, role.ID); err != nil {
			return err
		}

		if token, err = h.issuer.IssueTx(ctx, tx, user); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return uuid.Nil, richErr
		}

		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if err := h.sendActivationEmail(ctx, user, token); err != nil {
		// account exists either way; caller learns the email did not go out
		h.logger.Warn("activation email dispatch failed: %v", err)
		return user.ID, goerrors.Wrap(err, ErrActivationDispatch.Category, ErrActivationDispatch.Message).
			WithTextCode(ErrActivationDispatch.TextCode).
			WithMetadata(map[string]any{"user_id": user.ID.String()})
	}

	return user.ID, nil
}

func (h *RegisterUserHandler) sendActivationEmail(ctx context.Context, user *User, token *ActivationToken) error {
	if h.mailer == nil {
		return nil
	}

	return h.mailer.Send(ctx, MailMessage{
		To:             user.Email,
		ToName:         user.FullName(),
		Subject:        "Account activation",
		Template:       "activate_account",
		ActivationURL:  h.config.GetActivationURL(),
		ActivationCode: token.Code,
	})
}
