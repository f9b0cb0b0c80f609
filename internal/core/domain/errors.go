package domain

import "errors"

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrConsistency signals that available_copies would leave the range
	// [0, total_copies]. This is a bug, never a business outcome: the
	// transaction must abort and the error surfaces as an internal error.
	ErrConsistency = errors.New("catalog consistency violation")
)

// Book errors
var (
	ErrBookNotFound       = errors.New("book not found")
	ErrBookUnavailable    = errors.New("book unavailable")
	ErrBookHasActiveLoans = errors.New("book has active loans")
	ErrISBNTaken          = errors.New("a book with this ISBN already exists")
)

// User errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserHasActiveLoans = errors.New("user has active loans")
	ErrEmailTaken         = errors.New("email already in use")
	ErrStudentIDTaken     = errors.New("student id already in use")
)

// Loan errors
var (
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanAlreadyReturned = errors.New("loan already returned")
	ErrNotLoanOwner        = errors.New("loan belongs to another user")
)
