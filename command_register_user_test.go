package booknetwork_test

import (
	"context"
	"errors"
	"testing"

	booknetwork "github.com/aaronwittchen/book-network"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegisterUserHandler_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a disabled user with role and activation token", func(t *testing.T) {
		repo := newFakeRepoManager()
		role := repo.roles.seed(booknetwork.DefaultRoleName)
		mailer := &recordingMailer{}

		handler := booknetwork.NewRegisterUserHandler(repo, mailer, testConfig{})

		id, err := handler.Execute(ctx, booknetwork.RegisterUserMessage{
			FirstName: "Avid",
			LastName:  "Reader",
			Email:     "reader@example.com",
			Password:  "s3cure-password",
		})

		assert.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)

		user, err := repo.users.GetByID(ctx, id)
		assert.NoError(t, err)
		assert.False(t, user.Enabled)
		assert.NotEqual(t, "s3cure-password", user.PasswordHash)
		assert.NoError(t, booknetwork.ComparePasswordAndHash("s3cure-password", user.PasswordHash))

		assert.Len(t, repo.roles.assignments, 1)
		assert.Equal(t, id, repo.roles.assignments[0][0])
		assert.Equal(t, role.ID, repo.roles.assignments[0][1])

		assert.Len(t, repo.tokens.records, 1)
		assert.Equal(t, id, repo.tokens.records[0].UserID)

		sent := mailer.sent()
		assert.Len(t, sent, 1)
		assert.Equal(t, "reader@example.com", sent[0].To)
		assert.Equal(t, "Account activation", sent[0].Subject)
		assert.Equal(t, repo.tokens.records[0].Code, sent[0].ActivationCode)
	})

	t.Run("rejects duplicate emails", func(t *testing.T) {
		repo := newFakeRepoManager()
		repo.roles.seed(booknetwork.DefaultRoleName)
		repo.users.seed(&booknetwork.User{Email: "reader@example.com"})

		handler := booknetwork.NewRegisterUserHandler(repo, &recordingMailer{}, testConfig{})

		id, err := handler.Execute(ctx, booknetwork.RegisterUserMessage{
			FirstName: "Avid",
			LastName:  "Reader",
			Email:     "reader@example.com",
			Password:  "s3cure-password",
		})

		assert.Equal(t, uuid.Nil, id)
		var richErr *goerrors.Error
		assert.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, booknetwork.TextCodeDuplicateEmail, richErr.TextCode)
	})

	t.Run("fails when the default role is missing", func(t *testing.T) {
		repo := newFakeRepoManager()
		handler := booknetwork.NewRegisterUserHandler(repo, &recordingMailer{}, testConfig{})

		_, err := handler.Execute(ctx, booknetwork.RegisterUserMessage{
			FirstName: "Avid",
			LastName:  "Reader",
			Email:     "reader@example.com",
			Password:  "s3cure-password",
		})

		var richErr *goerrors.Error
		assert.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, booknetwork.TextCodeRoleNotInitialized, richErr.TextCode)
	})

	t.Run("rejects empty passwords", func(t *testing.T) {
		repo := newFakeRepoManager()
		repo.roles.seed(booknetwork.DefaultRoleName)
		handler := booknetwork.NewRegisterUserHandler(repo, &recordingMailer{}, testConfig{})

		_, err := handler.Execute(ctx, booknetwork.RegisterUserMessage{
			FirstName: "Avid",
			LastName:  "Reader",
			Email:     "reader@example.com",
		})
		assert.Error(t, err)
	})

	t.Run("mail failure still leaves the account in place", func(t *testing.T) {
		repo := newFakeRepoManager()
		repo.roles.seed(booknetwork.DefaultRoleName)
		mailer := &recordingMailer{Fail: errors.New("smtp down")}

		handler := booknetwork.NewRegisterUserHandler(repo, mailer, testConfig{})

		id, err := handler.Execute(ctx, booknetwork.RegisterUserMessage{
			FirstName: "Avid",
			LastName:  "Reader",
			Email:     "reader@example.com",
			Password:  "s3cure-password",
		})

		assert.NotEqual(t, uuid.Nil, id)
		var richErr *goerrors.Error
		assert.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, booknetwork.TextCodeActivationDispatch, richErr.TextCode)

		_, lookupErr := repo.users.GetByID(ctx, id)
		assert.NoError(t, lookupErr)
	})

	t.Run("hashid produces deterministic ids", func(t *testing.T) {
		repo := newFakeRepoManager()
		repo.roles.seed(booknetwork.DefaultRoleName)
		handler := booknetwork.NewRegisterUserHandler(repo, &recordingMailer{}, testConfig{})

		id, err := handler.Execute(ctx, booknetwork.RegisterUserMessage{
			FirstName: "Avid",
			LastName:  "Reader",
			Email:     "reader@example.com",
			Password:  "s3cure-password",
			UseHashid: true,
		})
		assert.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
	})
}
