package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/core/domain"
)

var testClock = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newLoanServiceForTest(store *memStore) (*LoanService, *fakeBookRepo, *fakeLoanRepo) {
	bookRepo := &fakeBookRepo{store: store}
	loanRepo := &fakeLoanRepo{store: store}
	svc := NewLoanService(&fakeTransactor{store: store}, bookRepo, loanRepo)
	svc.now = func() time.Time { return testClock }
	return svc, bookRepo, loanRepo
}

func TestBorrowCreatesActiveLoanAndDecrementsAvailability(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(2, 2)

	loan, err := svc.Borrow(context.Background(), Actor{UserID: 7, Role: domain.RoleStudent}, book.ID)
	require.NoError(t, err)

	assert.Equal(t, book.ID, loan.BookID)
	assert.Equal(t, uint(7), loan.UserID)
	assert.Equal(t, string(domain.LoanStatusActive), loan.Status)
	assert.Equal(t, testClock, loan.LoanDate)
	assert.Equal(t, testClock.Add(domain.LoanPeriod), loan.DueDate)
	assert.Nil(t, loan.ReturnDate)

	assert.Equal(t, 1, store.bookByID(book.ID).AvailableCopies)
}

func TestBorrowUnavailableBook(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(3, 0)

	_, err := svc.Borrow(context.Background(), Actor{UserID: 7}, book.ID)
	require.ErrorIs(t, err, domain.ErrBookUnavailable)

	assert.Equal(t, 0, store.loanCount())
	assert.Equal(t, 0, store.bookByID(book.ID).AvailableCopies)
}

func TestBorrowMissingBook(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)

	_, err := svc.Borrow(context.Background(), Actor{UserID: 7}, 999)
	require.ErrorIs(t, err, domain.ErrBookNotFound)
}

func TestBorrowRollsBackLoanOnCounterFailure(t *testing.T) {
	store := newMemStore()
	svc, bookRepo, _ := newLoanServiceForTest(store)
	book := store.addBook(2, 2)
	bookRepo.failDecrement = true

	_, err := svc.Borrow(context.Background(), Actor{UserID: 7}, book.ID)
	require.ErrorIs(t, err, domain.ErrConsistency)

	// The inserted loan row must not survive the failed transaction.
	assert.Equal(t, 0, store.loanCount())
	assert.Equal(t, 2, store.bookByID(book.ID).AvailableCopies)
}

func TestConcurrentBorrowsNeverOvercommit(t *testing.T) {
	const copies = 3
	const attempts = 10

	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(copies, copies)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(context.Background(), Actor{UserID: uint(i + 1)}, book.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrBookUnavailable)
		}
	}
	assert.Equal(t, copies, succeeded)
	assert.Equal(t, 0, store.bookByID(book.ID).AvailableCopies)
	assert.Equal(t, copies, store.activeLoansByBook(book.ID))
}

func TestSingleCopyContention(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(1, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(context.Background(), Actor{UserID: uint(i + 1)}, book.ID)
		}(i)
	}
	wg.Wait()

	// Exactly one of the two racing borrowers gets the copy.
	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], domain.ErrBookUnavailable)
	} else {
		assert.ErrorIs(t, errs[0], domain.ErrBookUnavailable)
		assert.NoError(t, errs[1])
	}
	assert.Equal(t, 0, store.bookByID(book.ID).AvailableCopies)
	assert.Equal(t, 1, store.activeLoansByBook(book.ID))
}

func TestReturnReleasesCopy(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(1, 1)
	actor := Actor{UserID: 7, Role: domain.RoleStudent}

	loan, err := svc.Borrow(context.Background(), actor, book.ID)
	require.NoError(t, err)

	returned, err := svc.Return(context.Background(), actor, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, string(domain.LoanStatusReturned), returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, testClock, *returned.ReturnDate)
	assert.Equal(t, 1, store.bookByID(book.ID).AvailableCopies)
}

func TestReturnAlreadyReturnedLoan(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(1, 1)
	actor := Actor{UserID: 7}

	loan, err := svc.Borrow(context.Background(), actor, book.ID)
	require.NoError(t, err)
	_, err = svc.Return(context.Background(), actor, loan.ID)
	require.NoError(t, err)

	// A second return is rejected and must not increment availability again.
	_, err = svc.Return(context.Background(), actor, loan.ID)
	require.ErrorIs(t, err, domain.ErrLoanAlreadyReturned)
	assert.Equal(t, 1, store.bookByID(book.ID).AvailableCopies)
}

func TestReturnAbortsWhenIncrementWouldExceedTotal(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	actor := Actor{UserID: 7}

	// An active loan next to a full shelf means the counter was corrupted
	// earlier; the increment must abort, not push past total_copies.
	book := store.addBook(1, 1)
	loan := store.addLoan(book.ID, actor.UserID, string(domain.LoanStatusActive), testClock.Add(time.Hour))

	_, err := svc.Return(context.Background(), actor, loan.ID)
	require.ErrorIs(t, err, domain.ErrConsistency)

	// The whole transaction rolled back: loan still active, counter untouched.
	got, err := svc.GetByID(context.Background(), actor, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.LoanStatusActive), got.Status)
	assert.Nil(t, got.ReturnDate)
	assert.Equal(t, 1, store.bookByID(book.ID).AvailableCopies)
}

func TestReturnRequiresOwnerOrAdmin(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(2, 2)
	owner := Actor{UserID: 7, Role: domain.RoleStudent}

	loan, err := svc.Borrow(context.Background(), owner, book.ID)
	require.NoError(t, err)

	_, err = svc.Return(context.Background(), Actor{UserID: 8, Role: domain.RoleStudent}, loan.ID)
	require.ErrorIs(t, err, domain.ErrNotLoanOwner)

	// An admin may return on the borrower's behalf.
	returned, err := svc.Return(context.Background(), Actor{UserID: 1, Role: domain.RoleAdmin}, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.LoanStatusReturned), returned.Status)
}

func TestReturnMissingLoan(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)

	_, err := svc.Return(context.Background(), Actor{UserID: 7}, 999)
	require.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestConservationUnderMixedTraffic(t *testing.T) {
	const copies = 5
	const users = 20

	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(copies, copies)

	// Every user borrows and immediately tries to return, all concurrently.
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := Actor{UserID: uint(i + 1)}
			loan, err := svc.Borrow(context.Background(), actor, book.ID)
			if err != nil {
				return
			}
			if i%2 == 0 {
				_, _ = svc.Return(context.Background(), actor, loan.ID)
			}
		}(i)
	}
	wg.Wait()

	book2 := store.bookByID(book.ID)
	active := store.activeLoansByBook(book.ID)
	assert.Equal(t, copies, book2.TotalCopies)
	assert.GreaterOrEqual(t, book2.AvailableCopies, 0)
	assert.LessOrEqual(t, book2.AvailableCopies, book2.TotalCopies)
	assert.Equal(t, book2.TotalCopies, book2.AvailableCopies+active)
}

func TestOverdueIsDerivedAtReadTime(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(3, 1)
	actor := Actor{UserID: 7, Role: domain.RoleStudent}

	overdueLoan := store.addLoan(book.ID, actor.UserID, string(domain.LoanStatusActive), testClock.Add(-time.Second))
	store.addLoan(book.ID, actor.UserID, string(domain.LoanStatusActive), testClock.Add(time.Hour))

	loans, total, err := svc.ListOverdue(context.Background(), actor, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, loans, 1)
	assert.Equal(t, overdueLoan.ID, loans[0].ID)

	// Returning the loan removes it from the overdue view; nothing about
	// overdue is ever written.
	_, err = svc.Return(context.Background(), actor, overdueLoan.ID)
	require.NoError(t, err)

	loans, total, err = svc.ListOverdue(context.Background(), actor, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, loans)
}

func TestListOverdueScopesNonAdminsToOwnLoans(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(5, 5)

	mine := store.addLoan(book.ID, 7, string(domain.LoanStatusActive), testClock.Add(-time.Hour))
	store.addLoan(book.ID, 8, string(domain.LoanStatusActive), testClock.Add(-time.Hour))

	loans, total, err := svc.ListOverdue(context.Background(), Actor{UserID: 7, Role: domain.RoleStudent}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, loans, 1)
	assert.Equal(t, mine.ID, loans[0].ID)

	_, total, err = svc.ListOverdue(context.Background(), Actor{UserID: 1, Role: domain.RoleAdmin}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestGetByIDVisibility(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(1, 1)
	loan := store.addLoan(book.ID, 7, string(domain.LoanStatusActive), testClock.Add(time.Hour))

	got, err := svc.GetByID(context.Background(), Actor{UserID: 7, Role: domain.RoleStudent}, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, got.ID)

	_, err = svc.GetByID(context.Background(), Actor{UserID: 8, Role: domain.RoleStudent}, loan.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.GetByID(context.Background(), Actor{UserID: 1, Role: domain.RoleAdmin}, loan.ID)
	require.NoError(t, err)
}

func TestListForUserScope(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(3, 3)
	store.addLoan(book.ID, 7, string(domain.LoanStatusActive), testClock.Add(time.Hour))
	store.addLoan(book.ID, 8, string(domain.LoanStatusActive), testClock.Add(time.Hour))

	_, _, err := svc.ListForUser(context.Background(), Actor{UserID: 7, Role: domain.RoleStudent}, 8, 1, 10)
	require.ErrorIs(t, err, domain.ErrForbidden)

	loans, total, err := svc.ListForUser(context.Background(), Actor{UserID: 7, Role: domain.RoleStudent}, 7, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, loans, 1)
	assert.Equal(t, uint(7), loans[0].UserID)

	loans, _, err = svc.ListForUser(context.Background(), Actor{UserID: 1, Role: domain.RoleAdmin}, 8, 1, 10)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, uint(8), loans[0].UserID)
}

func TestListFiltersAndPagination(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newLoanServiceForTest(store)
	book := store.addBook(10, 10)
	for i := 0; i < 5; i++ {
		store.addLoan(book.ID, uint(i+1), string(domain.LoanStatusActive), testClock.Add(time.Hour))
	}
	store.addLoan(book.ID, 6, string(domain.LoanStatusReturned), testClock.Add(time.Hour))

	loans, total, err := svc.List(context.Background(), ListLoansInput{Status: string(domain.LoanStatusActive), Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, loans, 3)

	loans, total, err = svc.List(context.Background(), ListLoansInput{Status: string(domain.LoanStatusActive), Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, loans, 2)

	_, total, err = svc.List(context.Background(), ListLoansInput{Status: string(domain.LoanStatusReturned)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
