// Package booknetwork implements the core of a library-lending backend:
// credential and activation lifecycle, bearer-token issuance, and the
// book borrow/return/approve state machine.
//
// Account lifecycle:
//   - Users register disabled and prove control of their email through a
//     short-lived six-digit activation code. Activation enables the account
//     exactly once; codes are one-time use and expire after fifteen minutes.
//   - Authentication verifies credentials through an IdentityProvider and
//     issues a signed JWT carrying subject=email plus fullName/email claims.
//
// Lending:
//   - LendingService guards every borrow/return/approve transition with a
//     per-book lock plus a storage transaction, so a book can never carry
//     two outstanding loan records.
//
// Repositories are built on uptrace/bun through go-repository-bun; errors
// carry goliatone/go-errors categories and stable text codes that the HTTP
// layer maps onto status codes.
package booknetwork
