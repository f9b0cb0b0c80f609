package repositories

import (
	"context"
	"time"

	"libris/internal/adapters/persistence/models"
)

// Transactor runs a function inside a single database transaction.
// The transaction handle travels in the context; repository calls made with
// that context join the transaction. Any error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// BookFilter narrows book listings.
type BookFilter struct {
	Title     string
	Author    string
	Genre     string
	SortBy    string
	SortOrder string
}

// BookRepository defines book repository interface
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id uint) (*models.Book, error)
	// GetForUpdate loads a book row under an exclusive write-intent lock.
	// Must be called inside a Transactor transaction; concurrent callers on
	// the same book block until the owning transaction commits or rolls back.
	GetForUpdate(ctx context.Context, id uint) (*models.Book, error)
	List(ctx context.Context, filter BookFilter, offset, limit int) ([]*models.Book, int64, error)
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id uint) error
	// DecrementAvailable subtracts one available copy. Fails with
	// domain.ErrConsistency if the count would drop below zero.
	DecrementAvailable(ctx context.Context, id uint) error
	// IncrementAvailable adds one available copy back. Fails with
	// domain.ErrConsistency if the count would exceed total_copies.
	IncrementAvailable(ctx context.Context, id uint) error
	ExistsByISBN(ctx context.Context, isbn string, excludeID uint) (bool, error)
	ListGenres(ctx context.Context) ([]string, error)
}

// LoanFilter narrows loan listings.
type LoanFilter struct {
	Status      string
	UserID      uint
	BookID      uint
	OverdueOnly bool
	Now         time.Time
}

// LoanRepository defines loan repository interface
type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	GetByID(ctx context.Context, id uint) (*models.Loan, error)
	// GetForUpdate loads a loan row under an exclusive lock, for the return
	// transition's re-validation inside the transaction.
	GetForUpdate(ctx context.Context, id uint) (*models.Loan, error)
	Update(ctx context.Context, loan *models.Loan) error
	List(ctx context.Context, filter LoanFilter, offset, limit int) ([]*models.Loan, int64, error)
	CountActiveByBook(ctx context.Context, bookID uint) (int64, error)
	CountActiveByUser(ctx context.Context, userID uint) (int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
	CountDueBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error)
	ExistsByStudentID(ctx context.Context, studentID string, excludeID uint) (bool, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context) error
}
