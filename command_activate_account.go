package booknetwork

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	Code string `json:"token"`
}

func (e ActivateAccountMessage) Type() string { return "user.activate" }

// ActivateAccountHandler consumes an activation code and enables the account.
// Consume and enable commit together; under concurrent activation exactly one
// caller wins and the rest get TOKEN_ALREADY_USED.
type ActivateAccountHandler struct {
	repo   RepositoryManager
	issuer *ActivationIssuer
	mailer Mailer
	config Config
	logger Logger
	now    func() time.Time
}

func NewActivateAccountHandler(repo RepositoryManager, mailer Mailer, config Config) *ActivateAccountHandler {
	return &ActivateAccountHandler{
		repo:   repo,
		issuer: NewActivationIssuer(repo.ActivationTokens()),
		mailer: mailer,
		config: config,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *ActivateAccountHandler) WithLogger(l Logger) *ActivateAccountHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *ActivateAccountHandler) WithClock(now func() time.Time) *ActivateAccountHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *ActivateAccountHandler) WithActivationIssuer(issuer *ActivationIssuer) *ActivateAccountHandler {
	if issuer != nil {
		h.issuer = issuer
	}
	return h
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var expired *ActivationToken

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := h.repo.ActivationTokens().GetByCodeTx(ctx, tx, event.Code)
		if err != nil {
			return err
		}

		if token.Consumed() {
			return goerrors.Wrap(ErrActivationTokenUsed, ErrActivationTokenUsed.Category, ErrActivationTokenUsed.Message).
				WithTextCode(ErrActivationTokenUsed.TextCode)
		}

		if token.Expired(h.now()) {
			expired = token
			return goerrors.Wrap(ErrActivationTokenExpired, ErrActivationTokenExpired.Category, ErrActivationTokenExpired.Message).
				WithTextCode(ErrActivationTokenExpired.TextCode)
		}

		if err := h.repo.Users().EnableTx(ctx, tx, token.UserID); err != nil {
			return err
		}

		return h.repo.ActivationTokens().ConsumeTx(ctx, tx, token.ID, h.now())
	})

	if err == nil {
		return nil
	}

	if expired != nil {
		// fresh code goes out so the user can try again; the failed attempt
		// still reports expiry
		if resendErr := h.resend(ctx, expired); resendErr != nil {
			h.logger.Warn("activation token resend failed: %v", resendErr)
		}
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "account activation transaction failed")
}

func (h *ActivateAccountHandler) resend(ctx context.Context, stale *ActivationToken) error {
	if stale.User == nil {
		user, err := h.repo.Users().GetByID(ctx, stale.UserID)
		if err != nil {
			return err
		}
		stale.User = user
	}

	var fresh *ActivationToken
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		fresh, err = h.issuer.IssueTx(ctx, tx, stale.User)
		return err
	})
	if err != nil {
		return err
	}

	if h.mailer == nil {
		return nil
	}

	return h.mailer.Send(ctx, MailMessage{
		To:             stale.User.Email,
		ToName:         stale.User.FullName(),
		Subject:        "Account activation",
		Template:       "activate_account",
		ActivationURL:  h.config.GetActivationURL(),
		ActivationCode: fresh.Code,
	})
}
