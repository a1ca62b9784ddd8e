package booknetwork_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	booknetwork "github.com/aaronwittchen/book-network"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// testIdentity is a plain Identity value for driving services in tests.
type testIdentity struct {
	id       string
	email    string
	fullName string
	roles    []string
}

func (t testIdentity) ID() string       { return t.id }
func (t testIdentity) Email() string    { return t.email }
func (t testIdentity) FullName() string { return t.fullName }
func (t testIdentity) Roles() []string  { return t.roles }

func identityFor(id uuid.UUID, email string) testIdentity {
	return testIdentity{id: id.String(), email: email, fullName: "Test User", roles: []string{"USER"}}
}

// fakeRepoManager is an in-memory RepositoryManager. RunInTx has no rollback;
// tests exercise guard behavior, not storage atomicity.
type fakeRepoManager struct {
	users  *fakeUsers
	roles  *fakeRoles
	books  *fakeBooks
	loans  *fakeLoans
	tokens *fakeTokens
}

func newFakeRepoManager() *fakeRepoManager {
	users := &fakeUsers{records: map[uuid.UUID]*booknetwork.User{}}
	return &fakeRepoManager{
		users:  users,
		roles:  &fakeRoles{byName: map[string]*booknetwork.Role{}},
		books:  &fakeBooks{records: map[uuid.UUID]*booknetwork.Book{}},
		loans:  &fakeLoans{},
		tokens: &fakeTokens{users: users},
	}
}

func (m *fakeRepoManager) Validate() error { return nil }
func (m *fakeRepoManager) MustValidate()   {}

func (m *fakeRepoManager) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(context.Context, bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return f(ctx, bun.Tx{})
	}
}

func (m *fakeRepoManager) Users() booknetwork.Users                       { return m.users }
func (m *fakeRepoManager) Roles() booknetwork.Roles                       { return m.roles }
func (m *fakeRepoManager) Books() booknetwork.Books                       { return m.books }
func (m *fakeRepoManager) BookTransactions() booknetwork.BookTransactions { return m.loans }
func (m *fakeRepoManager) ActivationTokens() booknetwork.ActivationTokens { return m.tokens }

var _ booknetwork.RepositoryManager = (*fakeRepoManager)(nil)

type fakeUsers struct {
	mu      sync.Mutex
	records map[uuid.UUID]*booknetwork.User
}

func (f *fakeUsers) seed(u *booknetwork.User) *booknetwork.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.records[u.ID] = u
	return u
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*booknetwork.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.records[id]; ok {
		return u, nil
	}
	return nil, booknetwork.ErrIdentityNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*booknetwork.User, error) {
	return f.GetByEmailTx(ctx, nil, email)
}

func (f *fakeUsers) GetByEmailTx(_ context.Context, _ bun.IDB, email string) (*booknetwork.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.records {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, booknetwork.ErrIdentityNotFound
}

func (f *fakeUsers) ExistsByEmailTx(_ context.Context, _ bun.IDB, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.records {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) CreateTx(_ context.Context, _ bun.IDB, record *booknetwork.User) (*booknetwork.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.records[record.ID] = record
	return record, nil
}

func (f *fakeUsers) EnableTx(_ context.Context, _ bun.IDB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[id]
	if !ok {
		return booknetwork.ErrIdentityNotFound
	}
	u.Enabled = true
	return nil
}

type fakeRoles struct {
	mu          sync.Mutex
	byName      map[string]*booknetwork.Role
	assignments [][2]uuid.UUID
}

func (f *fakeRoles) seed(name string) *booknetwork.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	role := &booknetwork.Role{ID: uuid.New(), Name: name}
	f.byName[name] = role
	return role
}

func (f *fakeRoles) GetByNameTx(_ context.Context, _ bun.IDB, name string) (*booknetwork.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byName[name]; ok {
		return r, nil
	}
	return nil, booknetwork.ErrRoleNotInitialized
}

func (f *fakeRoles) EnsureSeeded(_ context.Context, names ...string) error {
	for _, n := range names {
		f.seed(n)
	}
	return nil
}

func (f *fakeRoles) AssignTx(_ context.Context, _ bun.IDB, userID, roleID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments = append(f.assignments, [2]uuid.UUID{userID, roleID})
	return nil
}

type fakeBooks struct {
	mu      sync.Mutex
	records map[uuid.UUID]*booknetwork.Book
}

func (f *fakeBooks) seed(b *booknetwork.Book) *booknetwork.Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	f.records[b.ID] = b
	return b
}

func (f *fakeBooks) GetByID(ctx context.Context, id uuid.UUID) (*booknetwork.Book, error) {
	return f.GetByIDTx(ctx, nil, id)
}

func (f *fakeBooks) GetByIDTx(_ context.Context, _ bun.IDB, id uuid.UUID) (*booknetwork.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.records[id]; ok {
		return b, nil
	}
	return nil, booknetwork.ErrBookNotFound
}

func (f *fakeBooks) Create(_ context.Context, record *booknetwork.Book) (*booknetwork.Book, error) {
	return f.seed(record), nil
}

func (f *fakeBooks) Update(_ context.Context, record *booknetwork.Book) (*booknetwork.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.ID] = record
	return record, nil
}

func (f *fakeBooks) UpdateTx(ctx context.Context, _ bun.IDB, record *booknetwork.Book) (*booknetwork.Book, error) {
	return f.Update(ctx, record)
}

func (f *fakeBooks) ListDisplayable(_ context.Context, viewerID uuid.UUID, page, size int) (*booknetwork.Page[*booknetwork.Book], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*booknetwork.Book
	for _, b := range f.records {
		if b.AvailableForSharing() && !b.OwnedBy(viewerID) {
			out = append(out, b)
		}
	}
	return booknetwork.NewPage(out, page, size, len(out)), nil
}

func (f *fakeBooks) ListByOwner(_ context.Context, ownerID uuid.UUID, page, size int) (*booknetwork.Page[*booknetwork.Book], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*booknetwork.Book
	for _, b := range f.records {
		if b.OwnedBy(ownerID) {
			out = append(out, b)
		}
	}
	return booknetwork.NewPage(out, page, size, len(out)), nil
}

type fakeLoans struct {
	mu      sync.Mutex
	records []*booknetwork.BookTransaction
}

func (f *fakeLoans) CreateTx(_ context.Context, _ bun.IDB, record *booknetwork.BookTransaction) (*booknetwork.BookTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeLoans) FindOutstandingForBookTx(_ context.Context, _ bun.IDB, bookID uuid.UUID) (*booknetwork.BookTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.BookID == bookID && r.Outstanding() {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeLoans) FindOutstandingForBorrowerTx(_ context.Context, _ bun.IDB, bookID, borrowerID uuid.UUID) (*booknetwork.BookTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.BookID == bookID && r.BorrowerID == borrowerID && r.Outstanding() {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeLoans) FindAwaitingApprovalTx(_ context.Context, _ bun.IDB, bookID uuid.UUID) (*booknetwork.BookTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.BookID == bookID && r.Returned && !r.ReturnApproved {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeLoans) MarkReturnedTx(_ context.Context, _ bun.IDB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id && !r.Returned {
			r.Returned = true
			return nil
		}
	}
	return booknetwork.ErrLoanRecordNotFound
}

func (f *fakeLoans) ApproveReturnTx(_ context.Context, _ bun.IDB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id && !r.ReturnApproved {
			r.ReturnApproved = true
			return nil
		}
	}
	return booknetwork.ErrLoanRecordNotFound
}

func (f *fakeLoans) ListBorrowedBy(_ context.Context, borrowerID uuid.UUID, page, size int) (*booknetwork.Page[*booknetwork.BookTransaction], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*booknetwork.BookTransaction
	for _, r := range f.records {
		if r.BorrowerID == borrowerID {
			out = append(out, r)
		}
	}
	return booknetwork.NewPage(out, page, size, len(out)), nil
}

func (f *fakeLoans) ListReturnedTo(_ context.Context, _ uuid.UUID, page, size int) (*booknetwork.Page[*booknetwork.BookTransaction], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*booknetwork.BookTransaction
	for _, r := range f.records {
		if r.Returned {
			out = append(out, r)
		}
	}
	return booknetwork.NewPage(out, page, size, len(out)), nil
}

type fakeTokens struct {
	mu      sync.Mutex
	records []*booknetwork.ActivationToken
	users   *fakeUsers
}

func (f *fakeTokens) CreateTx(_ context.Context, _ bun.IDB, record *booknetwork.ActivationToken) (*booknetwork.ActivationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeTokens) GetByCodeTx(ctx context.Context, _ bun.IDB, code string) (*booknetwork.ActivationToken, error) {
	f.mu.Lock()
	var found *booknetwork.ActivationToken
	for _, r := range f.records {
		if r.Code == code {
			found = r
		}
	}
	f.mu.Unlock()

	if found == nil {
		return nil, booknetwork.ErrActivationTokenNotFound
	}

	// hand back a copy so callers see a row snapshot, as a real query would
	f.mu.Lock()
	snapshot := *found
	f.mu.Unlock()

	if snapshot.User == nil && f.users != nil {
		if u, err := f.users.GetByID(ctx, snapshot.UserID); err == nil {
			snapshot.User = u
		}
	}
	return &snapshot, nil
}

func (f *fakeTokens) CodeInUseTx(_ context.Context, _ bun.IDB, code string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Code == code && !r.Consumed() && !r.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokens) ConsumeTx(_ context.Context, _ bun.IDB, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			if r.ValidatedAt != nil {
				return booknetwork.ErrActivationTokenUsed
			}
			stamp := at
			r.ValidatedAt = &stamp
			return nil
		}
	}
	return booknetwork.ErrActivationTokenNotFound
}

// recordingMailer captures outgoing messages; Fail makes Send error.
type recordingMailer struct {
	mu       sync.Mutex
	Messages []booknetwork.MailMessage
	Fail     error
}

func (m *recordingMailer) Send(_ context.Context, msg booknetwork.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *recordingMailer) sent() []booknetwork.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]booknetwork.MailMessage(nil), m.Messages...)
}

// testConfig satisfies booknetwork.Config with sane defaults.
type testConfig struct {
	signingKey string
	expiration int
}

func (c testConfig) GetSigningKey() string {
	if c.signingKey == "" {
		return "test-signing-key"
	}
	return c.signingKey
}

func (c testConfig) GetSigningMethod() string { return "HS256" }
func (c testConfig) GetContextKey() string    { return "user" }

func (c testConfig) GetTokenExpiration() int {
	if c.expiration == 0 {
		return 24
	}
	return c.expiration
}

func (c testConfig) GetTokenLookup() string   { return "header:Authorization" }
func (c testConfig) GetAuthScheme() string    { return "Bearer" }
func (c testConfig) GetIssuer() string        { return "test-issuer" }
func (c testConfig) GetAudience() []string    { return []string{"test-audience"} }
func (c testConfig) GetActivationURL() string { return "http://localhost/auth/activate-account" }
