package booknetwork

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients. They are part of the wire contract and
// must stay stable across releases.
const (
	TextCodeDuplicateEmail          = "DUPLICATE_EMAIL"
	TextCodeRoleNotInitialized      = "ROLE_NOT_INITIALIZED"
	TextCodeInvalidCreds            = "INVALID_CREDENTIALS"
	TextCodeAccountLocked           = "ACCOUNT_LOCKED"
	TextCodeAccountDisabled         = "ACCOUNT_DISABLED"
	TextCodeTokenNotFound           = "TOKEN_NOT_FOUND"
	TextCodeTokenAlreadyUsed        = "TOKEN_ALREADY_USED"
	TextCodeTokenExpired            = "TOKEN_EXPIRED"
	TextCodeTokenMalformed          = "TOKEN_MALFORMED"
	TextCodeNotShareable            = "NOT_SHAREABLE"
	TextCodeSelfBorrowForbidden     = "SELF_BORROW_FORBIDDEN"
	TextCodeAlreadyBorrowedByCaller = "ALREADY_BORROWED_BY_CALLER"
	TextCodeAlreadyBorrowed         = "ALREADY_BORROWED"
	TextCodeNotBorrowed             = "NOT_BORROWED"
	TextCodeNotOwner                = "NOT_OWNER"
	TextCodeReturnNotRequested      = "RETURN_NOT_REQUESTED"
	TextCodeNotFound                = "NOT_FOUND"
	TextCodeActivationDispatch      = "ACTIVATION_EMAIL_FAILED"
)

// Credential and activation errors.
var (
	// ErrDuplicateEmail rejects a registration for an email already in use.
	ErrDuplicateEmail = goerrors.New("email already in use", goerrors.CategoryConflict).
				WithTextCode(TextCodeDuplicateEmail)

	// ErrRoleNotInitialized means the default USER role is missing. This is a
	// startup invariant violation, not a caller mistake.
	ErrRoleNotInitialized = goerrors.New("default role USER was not initialized", goerrors.CategoryInternal).
				WithTextCode(TextCodeRoleNotInitialized)

	// ErrMismatchedHashAndPassword is the generic bad-credentials error.
	ErrMismatchedHashAndPassword = goerrors.New("email or password is incorrect", goerrors.CategoryAuth).
					WithTextCode(TextCodeInvalidCreds)

	ErrAccountLocked = goerrors.New("user account is locked", goerrors.CategoryAuth).
				WithTextCode(TextCodeAccountLocked)

	ErrAccountDisabled = goerrors.New("user account is disabled", goerrors.CategoryAuth).
				WithTextCode(TextCodeAccountDisabled)

	ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
				WithTextCode(TextCodeNotFound)

	ErrActivationTokenNotFound = goerrors.New("invalid activation token", goerrors.CategoryBadInput).
					WithTextCode(TextCodeTokenNotFound)

	ErrActivationTokenUsed = goerrors.New("activation token has already been used", goerrors.CategoryBadInput).
				WithTextCode(TextCodeTokenAlreadyUsed)

	// ErrActivationTokenExpired also signals that a fresh code was emailed.
	ErrActivationTokenExpired = goerrors.New("activation token expired, a new token has been sent to your email", goerrors.CategoryBadInput).
					WithTextCode(TextCodeTokenExpired)

	// ErrActivationDispatch surfaces a failed activation email without rolling
	// back the registration that triggered it.
	ErrActivationDispatch = goerrors.New("account created but the activation email could not be sent", goerrors.CategoryOperation).
				WithTextCode(TextCodeActivationDispatch)

	ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput)
)

// Bearer token errors.
var (
	ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired)

	ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed)
)

// Lending errors.
var (
	ErrBookNotFound = goerrors.New("book not found", goerrors.CategoryNotFound).
			WithTextCode(TextCodeNotFound)

	ErrLoanRecordNotFound = goerrors.New("loan record not found", goerrors.CategoryNotFound).
				WithTextCode(TextCodeNotFound)

	ErrNotShareable = goerrors.New("the requested book cannot be borrowed since it is archived or not shareable", goerrors.CategoryConflict).
			WithTextCode(TextCodeNotShareable)

	ErrSelfBorrowForbidden = goerrors.New("you cannot borrow or return your own book", goerrors.CategoryAuthz).
				WithTextCode(TextCodeSelfBorrowForbidden)

	ErrAlreadyBorrowedByCaller = goerrors.New("you already borrowed this book and it is still not returned or the return is not approved", goerrors.CategoryConflict).
					WithTextCode(TextCodeAlreadyBorrowedByCaller)

	ErrAlreadyBorrowed = goerrors.New("the requested book is already borrowed", goerrors.CategoryConflict).
				WithTextCode(TextCodeAlreadyBorrowed)

	ErrNotBorrowed = goerrors.New("you did not borrow this book", goerrors.CategoryConflict).
			WithTextCode(TextCodeNotBorrowed)

	ErrNotOwner = goerrors.New("this operation is reserved to the book owner", goerrors.CategoryAuthz).
			WithTextCode(TextCodeNotOwner)

	ErrReturnNotRequested = goerrors.New("the book is not returned yet, you cannot approve its return", goerrors.CategoryConflict).
				WithTextCode(TextCodeReturnNotRequested)
)

// IsBusinessError reports whether err is an expected, caller-recoverable
// business-rule violation rather than an infrastructure failure. Business
// errors map to 4xx and are never logged as server errors.
func IsBusinessError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	switch richErr.Category {
	case goerrors.CategoryInternal, goerrors.CategoryOperation:
		return false
	default:
		return true
	}
}

// IsTokenExpiredError will check for expired bearer tokens, including errors
// produced by jwt parsing before they are wrapped.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for undecodable bearer tokens.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
