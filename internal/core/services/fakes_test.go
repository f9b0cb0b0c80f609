package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"libris/internal/adapters/persistence/models"
	"libris/internal/adapters/persistence/repositories"
	"libris/internal/core/domain"
)

// memStore is an in-memory stand-in for the database. A single mutex plays
// the role of the row locks: the fake transactor holds it for the whole
// transaction and restores a snapshot on error, so transactional tests see
// the same serialization and rollback behavior the real storage gives.
type memStore struct {
	mu     sync.Mutex
	books  map[uint]*models.Book
	loans  map[uint]*models.Loan
	users  map[uint]*models.User
	nextID uint
}

func newMemStore() *memStore {
	return &memStore{
		books: make(map[uint]*models.Book),
		loans: make(map[uint]*models.Loan),
		users: make(map[uint]*models.User),
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

// addBook seeds a book outside any transaction.
func (s *memStore) addBook(total, available int) *models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	book := &models.Book{
		ID:              s.id(),
		Title:           "Seed Title",
		Author:          "Seed Author",
		TotalCopies:     total,
		AvailableCopies: available,
	}
	s.books[book.ID] = book
	return copyBook(book)
}

// addLoan seeds a loan outside any transaction.
func (s *memStore) addLoan(bookID, userID uint, status string, due time.Time) *models.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan := &models.Loan{
		ID:       s.id(),
		BookID:   bookID,
		UserID:   userID,
		Status:   status,
		LoanDate: due.Add(-domain.LoanPeriod),
		DueDate:  due,
	}
	s.loans[loan.ID] = loan
	return copyLoan(loan)
}

// addUser seeds a user outside any transaction.
func (s *memStore) addUser(email, passwordHash string, role string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &models.User{
		ID:        s.id(),
		Email:     email,
		Password:  passwordHash,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	}
	s.users[user.ID] = user
	c := *user
	return &c
}

func (s *memStore) bookByID(id uint) *models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyBook(s.books[id])
}

func (s *memStore) loanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loans)
}

func (s *memStore) activeLoansByBook(bookID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.loans {
		if l.BookID == bookID && l.IsActive() {
			n++
		}
	}
	return n
}

func copyBook(b *models.Book) *models.Book {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func copyLoan(l *models.Loan) *models.Loan {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// fakeTxKey marks a context as running inside a fake transaction.
type fakeTxKey struct{}

func inTx(ctx context.Context) bool {
	return ctx.Value(fakeTxKey{}) != nil
}

// lock acquires the store mutex unless the caller is already inside a
// transaction that holds it.
func (s *memStore) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type fakeTransactor struct {
	store *memStore
}

func (t *fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	snapBooks := make(map[uint]*models.Book, len(t.store.books))
	for id, b := range t.store.books {
		snapBooks[id] = copyBook(b)
	}
	snapLoans := make(map[uint]*models.Loan, len(t.store.loans))
	for id, l := range t.store.loans {
		snapLoans[id] = copyLoan(l)
	}

	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		t.store.books = snapBooks
		t.store.loans = snapLoans
		return err
	}
	return nil
}

type fakeBookRepo struct {
	store *memStore

	// failDecrement makes DecrementAvailable fail after the loan row has
	// been inserted, to exercise rollback.
	failDecrement bool
}

func (r *fakeBookRepo) Create(ctx context.Context, book *models.Book) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	book.ID = r.store.id()
	r.store.books[book.ID] = copyBook(book)
	return nil
}

func (r *fakeBookRepo) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	book, ok := r.store.books[id]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return copyBook(book), nil
}

func (r *fakeBookRepo) GetForUpdate(ctx context.Context, id uint) (*models.Book, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeBookRepo) List(ctx context.Context, filter repositories.BookFilter, offset, limit int) ([]*models.Book, int64, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	var books []*models.Book
	for _, b := range r.store.books {
		books = append(books, copyBook(b))
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, int64(len(books)), nil
}

func (r *fakeBookRepo) Update(ctx context.Context, book *models.Book) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	if _, ok := r.store.books[book.ID]; !ok {
		return domain.ErrBookNotFound
	}
	r.store.books[book.ID] = copyBook(book)
	return nil
}

func (r *fakeBookRepo) Delete(ctx context.Context, id uint) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	if _, ok := r.store.books[id]; !ok {
		return domain.ErrBookNotFound
	}
	delete(r.store.books, id)
	return nil
}

func (r *fakeBookRepo) DecrementAvailable(ctx context.Context, id uint) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	if r.failDecrement {
		return domain.ErrConsistency
	}
	book, ok := r.store.books[id]
	if !ok || book.AvailableCopies <= 0 {
		return domain.ErrConsistency
	}
	book.AvailableCopies--
	return nil
}

func (r *fakeBookRepo) IncrementAvailable(ctx context.Context, id uint) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	book, ok := r.store.books[id]
	if !ok || book.AvailableCopies >= book.TotalCopies {
		return domain.ErrConsistency
	}
	book.AvailableCopies++
	return nil
}

func (r *fakeBookRepo) ExistsByISBN(ctx context.Context, isbn string, excludeID uint) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	for _, b := range r.store.books {
		if b.ID != excludeID && b.ISBN != nil && *b.ISBN == isbn {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookRepo) ListGenres(ctx context.Context) ([]string, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	seen := make(map[string]bool)
	var genres []string
	for _, b := range r.store.books {
		if b.Genre != nil && !seen[*b.Genre] {
			seen[*b.Genre] = true
			genres = append(genres, *b.Genre)
		}
	}
	sort.Strings(genres)
	return genres, nil
}

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	user.ID = r.store.id()
	c := *user
	r.store.users[user.ID] = &c
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *user
	return &c, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	for _, user := range r.store.users {
		if user.Email == email {
			c := *user
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	if _, ok := r.store.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	c := *user
	r.store.users[user.ID] = &c
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uint) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	if _, ok := r.store.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.store.users, id)
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	var users []*models.User
	for _, user := range r.store.users {
		c := *user
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, int64(len(users)), nil
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	for _, user := range r.store.users {
		if user.ID != excludeID && user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) ExistsByStudentID(ctx context.Context, studentID string, excludeID uint) (bool, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	for _, user := range r.store.users {
		if user.ID != excludeID && user.StudentID != nil && *user.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

type fakeRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens []*models.RefreshToken
}

func (r *fakeRefreshTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *token
	r.tokens = append(r.tokens, &c)
	return nil
}

func (r *fakeRefreshTokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash {
			c := *t
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRefreshTokenRepo) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) RevokeAllByUserID(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.tokens[:0]
	for _, t := range r.tokens {
		if !t.IsExpired() {
			kept = append(kept, t)
		}
	}
	r.tokens = kept
	return nil
}

func (r *fakeRefreshTokenRepo) activeCount(userID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeLoanRepo struct {
	store *memStore
}

func (r *fakeLoanRepo) Create(ctx context.Context, loan *models.Loan) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	loan.ID = r.store.id()
	r.store.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (r *fakeLoanRepo) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	loan, ok := r.store.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	return copyLoan(loan), nil
}

func (r *fakeLoanRepo) GetForUpdate(ctx context.Context, id uint) (*models.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeLoanRepo) Update(ctx context.Context, loan *models.Loan) error {
	unlock := r.store.lock(ctx)
	defer unlock()
	if _, ok := r.store.loans[loan.ID]; !ok {
		return domain.ErrLoanNotFound
	}
	r.store.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (r *fakeLoanRepo) List(ctx context.Context, filter repositories.LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	var loans []*models.Loan
	for _, l := range r.store.loans {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.UserID != 0 && l.UserID != filter.UserID {
			continue
		}
		if filter.BookID != 0 && l.BookID != filter.BookID {
			continue
		}
		if filter.OverdueOnly && !l.IsOverdueAt(filter.Now) {
			continue
		}
		loans = append(loans, copyLoan(l))
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })
	total := int64(len(loans))
	if offset >= len(loans) {
		return nil, total, nil
	}
	loans = loans[offset:]
	if limit > 0 && limit < len(loans) {
		loans = loans[:limit]
	}
	return loans, total, nil
}

func (r *fakeLoanRepo) CountActiveByBook(ctx context.Context, bookID uint) (int64, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	var n int64
	for _, l := range r.store.loans {
		if l.BookID == bookID && l.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *fakeLoanRepo) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	var n int64
	for _, l := range r.store.loans {
		if l.UserID == userID && l.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *fakeLoanRepo) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	var n int64
	for _, l := range r.store.loans {
		if l.IsOverdueAt(now) {
			n++
		}
	}
	return n, nil
}

func (r *fakeLoanRepo) CountDueBetween(ctx context.Context, from, to time.Time) (int64, error) {
	unlock := r.store.lock(ctx)
	defer unlock()
	var n int64
	for _, l := range r.store.loans {
		if l.IsActive() && !l.DueDate.Before(from) && !l.DueDate.After(to) {
			n++
		}
	}
	return n, nil
}
