package booknetwork

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const (
	activationCodeLength      = 6
	activationTokenTTL        = 15 * time.Minute
	activationCodeMaxAttempts = 5
)

// GenerateActivationCode returns a random numeric code of the given length.
// Uses crypto/rand so codes are not guessable from previous ones.
func GenerateActivationCode(length int) (string, error) {
	if length <= 0 {
		return "", goerrors.New("activation code length must be positive", goerrors.CategoryBadInput)
	}

	const digits = "0123456789"
	out := make([]byte, length)
	max := big.NewInt(int64(len(digits)))

	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate activation code")
		}
		out[i] = digits[n.Int64()]
	}

	return string(out), nil
}

// ActivationIssuer mints activation tokens inside a caller-owned transaction.
type ActivationIssuer struct {
	tokens ActivationTokens
	ttl    time.Duration
	now    func() time.Time
}

func NewActivationIssuer(tokens ActivationTokens) *ActivationIssuer {
	return &ActivationIssuer{
		tokens: tokens,
		ttl:    activationTokenTTL,
		now:    time.Now,
	}
}

// WithTTL overrides the token lifetime. Mostly useful in tests.
func (a *ActivationIssuer) WithTTL(ttl time.Duration) *ActivationIssuer {
	if ttl > 0 {
		a.ttl = ttl
	}
	return a
}

// WithClock overrides the time source.
func (a *ActivationIssuer) WithClock(now func() time.Time) *ActivationIssuer {
	if now != nil {
		a.now = now
	}
	return a
}

// IssueTx creates a fresh token for the user, retrying on live-code collisions.
// After activationCodeMaxAttempts the last code is used as is; with 6 digits
// the residual collision odds are acceptable for a 15 minute window.
func (a *ActivationIssuer) IssueTx(ctx context.Context, tx bun.IDB, user *User) (*ActivationToken, error) {
	if user == nil {
		return nil, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	var code string
	for attempt := 0; attempt < activationCodeMaxAttempts; attempt++ {
		generated, err := GenerateActivationCode(activationCodeLength)
		if err != nil {
			return nil, err
		}
		code = generated

		inUse, err := a.tokens.CodeInUseTx(ctx, tx, code, a.now())
		if err != nil {
			return nil, err
		}
		if !inUse {
			break
		}
	}

	issuedAt := a.now()
	record := &ActivationToken{
		Code:      code,
		UserID:    user.ID,
		ExpiresAt: issuedAt.Add(a.ttl),
	}

	return a.tokens.CreateTx(ctx, tx, record)
}
