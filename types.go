package booknetwork

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the minimal logging surface used across the package.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated principal.
type Identity interface {
	ID() string
	Email() string
	FullName() string
	Roles() []string
}

// Authenticator exchanges credentials for a signed bearer token.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
}

// IdentityProvider verifies credentials and resolves identities from storage.
// VerifyIdentity enforces the enabled/locked account checks.
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator hashes and verifies credentials.
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// TokenService issues and validates signed bearer tokens.
type TokenService interface {
	Generate(identity Identity) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
	ExtractSubject(tokenString string) (string, error)
}

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// Mailer delivers transactional mail. Implementations must not block the
// caller's storage transaction; dispatch happens after commit.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailMessage carries everything the email collaborator needs to render and
// deliver an activation message.
type MailMessage struct {
	To             string
	ToName         string
	Subject        string
	Template       string
	ActivationURL  string
	ActivationCode string
}

// FileStorage persists uploaded artifacts (book covers) and returns a
// reference usable for later retrieval.
type FileStorage interface {
	SaveFile(ctx context.Context, ownerID, filename string, data []byte) (string, error)
}

// Config holds auth options.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetActivationURL() string
}

// Clock abstracts time for the activation/token expiry checks.
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] BOOKNET "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] BOOKNET "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] BOOKNET "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] BOOKNET "+newline(format), args...)
}

func newline(format string) string {
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}
	return format
}
