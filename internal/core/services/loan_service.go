package services

import (
	"context"
	"time"

	"libris/internal/adapters/persistence/models"
	"libris/internal/adapters/persistence/repositories"
	"libris/internal/core/domain"
)

// Actor is the caller identity resolved by the auth middleware.
type Actor struct {
	UserID uint
	Role   domain.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// LoanService enacts the borrow/return state machine. All mutations run
// through the Transactor so the book counter and the loan row always move
// together; correctness under concurrent requests comes from the storage
// layer's row locks, not from in-process mutexes, so the service stays safe
// across multiple replicas.
type LoanService struct {
	tx       repositories.Transactor
	bookRepo repositories.BookRepository
	loanRepo repositories.LoanRepository
	now      func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(
	tx repositories.Transactor,
	bookRepo repositories.BookRepository,
	loanRepo repositories.LoanRepository,
) *LoanService {
	return &LoanService{
		tx:       tx,
		bookRepo: bookRepo,
		loanRepo: loanRepo,
		now:      time.Now,
	}
}

// Borrow lends one copy of a book to the actor.
//
// The whole operation is a single transaction:
//  1. lock the book row (concurrent borrowers on the same book block here)
//  2. reject if the book is missing or has no available copy
//  3. insert the active loan, due in 14 days
//  4. decrement available_copies
//
// Because the availability check runs under the row lock, at most k of any
// number of concurrent borrows can succeed when k copies are available.
// Any failure after step 1 rolls back every write.
func (s *LoanService) Borrow(ctx context.Context, actor Actor, bookID uint) (*models.Loan, error) {
	var loan *models.Loan

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		book, err := s.bookRepo.GetForUpdate(ctx, bookID)
		if err != nil {
			return err
		}
		if book.AvailableCopies <= 0 {
			return domain.ErrBookUnavailable
		}

		now := s.now()
		loan = &models.Loan{
			BookID:   bookID,
			UserID:   actor.UserID,
			Status:   string(domain.LoanStatusActive),
			LoanDate: now,
			DueDate:  now.Add(domain.LoanPeriod),
		}
		if err := s.loanRepo.Create(ctx, loan); err != nil {
			return err
		}
		return s.bookRepo.DecrementAvailable(ctx, bookID)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Return marks a loan as returned and releases the copy back to the catalog.
// Only the loan's owner or an admin may return it. Returning an already
// returned loan fails with ErrLoanAlreadyReturned and never touches the
// counter, so a double return cannot double-increment availability.
func (s *LoanService) Return(ctx context.Context, actor Actor, loanID uint) (*models.Loan, error) {
	// Cheap pre-checks outside the transaction; the status is re-validated
	// under the row lock before anything is written.
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, domain.ErrNotLoanOwner
	}
	if !loan.IsActive() {
		return nil, domain.ErrLoanAlreadyReturned
	}

	var returned *models.Loan
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.loanRepo.GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return domain.ErrLoanAlreadyReturned
		}

		// Serialize with borrows of the same book before touching the counter.
		if _, err := s.bookRepo.GetForUpdate(ctx, current.BookID); err != nil {
			return err
		}

		now := s.now()
		current.Status = string(domain.LoanStatusReturned)
		current.ReturnDate = &now
		if err := s.loanRepo.Update(ctx, current); err != nil {
			return err
		}
		if err := s.bookRepo.IncrementAvailable(ctx, current.BookID); err != nil {
			return err
		}
		returned = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}

// GetByID gets a loan; non-admins can only see their own loans.
func (s *LoanService) GetByID(ctx context.Context, actor Actor, loanID uint) (*models.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return loan, nil
}

// ListLoansInput represents loan listing input
type ListLoansInput struct {
	Status string
	UserID uint
	BookID uint
	Page   int
	Limit  int
}

// List lists loans with filters. Authorization is the route's concern
// (admin-only); reads carry no invariant risk.
func (s *LoanService) List(ctx context.Context, input ListLoansInput) ([]*models.Loan, int64, error) {
	filter := repositories.LoanFilter{
		Status: input.Status,
		UserID: input.UserID,
		BookID: input.BookID,
	}
	return s.loanRepo.List(ctx, filter, offsetOf(input.Page, input.Limit), limitOf(input.Limit))
}

// ListForUser lists a user's loans. Non-admins may only list their own.
func (s *LoanService) ListForUser(ctx context.Context, actor Actor, userID uint, page, limit int) ([]*models.Loan, int64, error) {
	if userID != actor.UserID && !actor.IsAdmin() {
		return nil, 0, domain.ErrForbidden
	}
	filter := repositories.LoanFilter{UserID: userID}
	return s.loanRepo.List(ctx, filter, offsetOf(page, limit), limitOf(limit))
}

// ListOverdue lists active loans past their due date, classified at read
// time. Nothing is ever stored for overdue; the comparison is the source of
// truth. Non-admins see only their own overdue loans.
func (s *LoanService) ListOverdue(ctx context.Context, actor Actor, page, limit int) ([]*models.Loan, int64, error) {
	filter := repositories.LoanFilter{
		OverdueOnly: true,
		Now:         s.now(),
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	return s.loanRepo.List(ctx, filter, offsetOf(page, limit), limitOf(limit))
}

// Now returns the service clock reading, for handlers rendering loans.
func (s *LoanService) Now() time.Time {
	return s.now()
}

func limitOf(limit int) int {
	if limit < 1 {
		return 10
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func offsetOf(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limitOf(limit)
}
