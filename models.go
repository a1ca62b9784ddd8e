package booknetwork

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultRoleName is the role granted to every new registration. It must be
// seeded before the first register call; see Roles.EnsureSeeded.
const DefaultRoleName = "USER"

// Timestamps is the audit value embedded in every persisted record.
type Timestamps struct {
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// User is the account model. Users start disabled and become enabled exactly
// once, through account activation.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName     string    `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string    `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email         string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	Enabled       bool      `bun:"enabled" json:"enabled,omitempty"`
	AccountLocked bool      `bun:"account_locked" json:"account_locked,omitempty"`
	Roles         []*Role   `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	Timestamps
}

// FullName joins first and last name for token claims and email salutations.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RoleNames returns the eagerly fetched role set as plain strings.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// Role is a named permission group.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string    `bun:"name,notnull,unique" json:"name,omitempty"`
	Timestamps
}

// UserRole is the users<->roles join record.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:usrrol"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"-"`
}

// ActivationToken is a short-lived one-time code proving control of the
// registered email. ValidatedAt is set exactly once, on consumption.
type ActivationToken struct {
	bun.BaseModel `bun:"table:activation_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code          string     `bun:"code,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ValidatedAt   *time.Time `bun:"validated_at,nullzero" json:"validated_at,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Timestamps
}

// Consumed reports whether the token has already been used.
func (t *ActivationToken) Consumed() bool {
	return t.ValidatedAt != nil
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *ActivationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Book is an owner-listed title that others may borrow while it is shareable
// and not archived.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:bok"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Title         string    `bun:"title,notnull" json:"title,omitempty"`
	AuthorName    string    `bun:"author_name,notnull" json:"author_name,omitempty"`
	ISBN          string    `bun:"isbn" json:"isbn,omitempty"`
	Synopsis      string    `bun:"synopsis" json:"synopsis,omitempty"`
	BookCover     string    `bun:"book_cover" json:"book_cover,omitempty"`
	Archived      bool      `bun:"archived" json:"archived"`
	Shareable     bool      `bun:"shareable" json:"shareable"`
	OwnerID       uuid.UUID `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	Owner         *User     `bun:"rel:belongs-to,join:owner_id=id" json:"owner,omitempty"`
	Timestamps
}

// AvailableForSharing reports whether the book may be borrowed at all.
func (b *Book) AvailableForSharing() bool {
	return b.Shareable && !b.Archived
}

// OwnedBy reports whether the given user owns this book.
func (b *Book) OwnedBy(userID uuid.UUID) bool {
	return b.OwnerID == userID
}

// BookTransaction is one borrowing transaction for a book+borrower pair.
// A transaction is outstanding until the book is returned and the return is
// approved by the owner; only then does the book become borrowable again.
type BookTransaction struct {
	bun.BaseModel  `bun:"table:book_transactions,alias:btx"`
	ID             uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	BookID         uuid.UUID `bun:"book_id,notnull,type:uuid" json:"book_id,omitempty"`
	Book           *Book     `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
	BorrowerID     uuid.UUID `bun:"borrower_id,notnull,type:uuid" json:"borrower_id,omitempty"`
	Borrower       *User     `bun:"rel:belongs-to,join:borrower_id=id" json:"borrower,omitempty"`
	Returned       bool      `bun:"returned" json:"returned"`
	ReturnApproved bool      `bun:"return_approved" json:"return_approved"`
	Timestamps
}

// Outstanding reports whether this transaction still blocks the book.
func (t *BookTransaction) Outstanding() bool {
	return !t.Returned || !t.ReturnApproved
}

// Page is the pagination envelope returned by listing queries.
type Page[T any] struct {
	Content       []T  `json:"content"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	TotalElements int  `json:"total_elements"`
	TotalPages    int  `json:"total_pages"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

// NewPage builds the envelope from a slice plus the total row count.
func NewPage[T any](content []T, number, size, total int) *Page[T] {
	if size <= 0 {
		size = 1
	}
	pages := (total + size - 1) / size
	return &Page[T]{
		Content:       content,
		Number:        number,
		Size:          size,
		TotalElements: total,
		TotalPages:    pages,
		First:         number == 0,
		Last:          number >= pages-1,
	}
}
