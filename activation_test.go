package booknetwork_test

import (
	"context"
	"testing"
	"time"

	booknetwork "github.com/aaronwittchen/book-network"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
)

func TestGenerateActivationCode(t *testing.T) {
	t.Run("produces codes of the requested length", func(t *testing.T) {
		code, err := booknetwork.GenerateActivationCode(6)
		assert.NoError(t, err)
		assert.Len(t, code, 6)
	})

	t.Run("produces only digits", func(t *testing.T) {
		code, err := booknetwork.GenerateActivationCode(32)
		assert.NoError(t, err)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "unexpected rune %q", r)
		}
	})

	t.Run("rejects non-positive lengths", func(t *testing.T) {
		_, err := booknetwork.GenerateActivationCode(0)
		assert.Error(t, err)
		_, err = booknetwork.GenerateActivationCode(-1)
		assert.Error(t, err)
	})

	t.Run("codes vary between calls", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 10; i++ {
			code, err := booknetwork.GenerateActivationCode(6)
			assert.NoError(t, err)
			seen[code] = true
		}
		assert.Greater(t, len(seen), 1)
	})
}

func TestActivationIssuer_IssueTx(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a six digit token with the configured TTL", func(t *testing.T) {
		repo := newFakeRepoManager()
		user := repo.users.seed(&booknetwork.User{Email: "reader@example.com"})

		issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		issuer := booknetwork.NewActivationIssuer(repo.ActivationTokens()).
			WithClock(func() time.Time { return issuedAt })

		token, err := issuer.IssueTx(ctx, bun.Tx{}, user)
		assert.NoError(t, err)
		assert.Len(t, token.Code, 6)
		assert.Equal(t, user.ID, token.UserID)
		assert.True(t, token.ExpiresAt.Equal(issuedAt.Add(15*time.Minute)))
		assert.Nil(t, token.ValidatedAt)
	})

	t.Run("requires a user", func(t *testing.T) {
		repo := newFakeRepoManager()
		issuer := booknetwork.NewActivationIssuer(repo.ActivationTokens())

		_, err := issuer.IssueTx(ctx, bun.Tx{}, nil)
		assert.Error(t, err)
	})

	t.Run("custom TTL is honored", func(t *testing.T) {
		repo := newFakeRepoManager()
		user := repo.users.seed(&booknetwork.User{Email: "reader@example.com"})

		issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		issuer := booknetwork.NewActivationIssuer(repo.ActivationTokens()).
			WithTTL(time.Hour).
			WithClock(func() time.Time { return issuedAt })

		token, err := issuer.IssueTx(ctx, bun.Tx{}, user)
		assert.NoError(t, err)
		assert.True(t, token.ExpiresAt.Equal(issuedAt.Add(time.Hour)))
	})

	t.Run("collision check follows the issuer clock", func(t *testing.T) {
		repo := newFakeRepoManager()
		user := repo.users.seed(&booknetwork.User{Email: "reader@example.com"})

		issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		issuer := booknetwork.NewActivationIssuer(repo.ActivationTokens()).
			WithClock(func() time.Time { return issuedAt })

		token, err := issuer.IssueTx(ctx, bun.Tx{}, user)
		assert.NoError(t, err)

		inUse, err := repo.ActivationTokens().CodeInUseTx(ctx, bun.Tx{}, token.Code, issuedAt)
		assert.NoError(t, err)
		assert.True(t, inUse)

		// once the clock passes the TTL the code is free for reuse
		inUse, err = repo.ActivationTokens().CodeInUseTx(ctx, bun.Tx{}, token.Code, issuedAt.Add(16*time.Minute))
		assert.NoError(t, err)
		assert.False(t, inUse)
	})

	t.Run("tokens get distinct ids", func(t *testing.T) {
		repo := newFakeRepoManager()
		user := repo.users.seed(&booknetwork.User{Email: "reader@example.com"})
		issuer := booknetwork.NewActivationIssuer(repo.ActivationTokens())

		t1, err := issuer.IssueTx(ctx, bun.Tx{}, user)
		assert.NoError(t, err)
		t2, err := issuer.IssueTx(ctx, bun.Tx{}, user)
		assert.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, t1.ID)
		assert.NotEqual(t, t1.ID, t2.ID)
	})
}

func TestActivationToken_State(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh token is neither consumed nor expired", func(t *testing.T) {
		tok := &booknetwork.ActivationToken{ExpiresAt: now.Add(15 * time.Minute)}
		assert.False(t, tok.Consumed())
		assert.False(t, tok.Expired(now))
	})

	t.Run("past expiry it reports expired", func(t *testing.T) {
		tok := &booknetwork.ActivationToken{ExpiresAt: now.Add(-time.Second)}
		assert.True(t, tok.Expired(now))
	})

	t.Run("exactly at expiry it is still valid", func(t *testing.T) {
		tok := &booknetwork.ActivationToken{ExpiresAt: now}
		assert.False(t, tok.Expired(now))
	})

	t.Run("consumed once validated", func(t *testing.T) {
		tok := &booknetwork.ActivationToken{ExpiresAt: now, ValidatedAt: &now}
		assert.True(t, tok.Consumed())
	})
}
