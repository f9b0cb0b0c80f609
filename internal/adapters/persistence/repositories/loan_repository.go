package repositories

import (
	"context"
	"errors"
	"time"

	"libris/internal/adapters/persistence/models"
	"libris/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loanRepository implements LoanRepository interface
type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// Create creates a new loan
func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return conn(ctx, r.db).Create(loan).Error
}

// GetByID gets a loan by ID with its book and user
func (r *loanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := conn(ctx, r.db).
		Preload("Book").
		Preload("User").
		Where("id = ?", id).
		First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// GetForUpdate loads the loan row with SELECT ... FOR UPDATE so the return
// transition can re-validate the status inside its transaction.
func (r *loanRepository) GetForUpdate(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// Update updates a loan
func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return conn(ctx, r.db).Save(loan).Error
}

// List lists loans with filters and pagination, newest first
func (r *loanRepository) List(ctx context.Context, filter LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	query := conn(ctx, r.db).Model(&models.Loan{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.BookID != 0 {
		query = query.Where("book_id = ?", filter.BookID)
	}
	if filter.OverdueOnly {
		query = query.Where("status = ? AND due_date < ?", domain.LoanStatusActive, filter.Now)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var loans []*models.Loan
	err := query.
		Preload("Book").
		Preload("User").
		Order("loan_date DESC").
		Offset(offset).
		Limit(limit).
		Find(&loans).Error
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// CountActiveByBook counts active loans referencing a book
func (r *loanRepository) CountActiveByBook(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Loan{}).
		Where("book_id = ? AND status = ?", bookID, domain.LoanStatusActive).
		Count(&count).Error
	return count, err
}

// CountActiveByUser counts active loans referencing a user
func (r *loanRepository) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Loan{}).
		Where("user_id = ? AND status = ?", userID, domain.LoanStatusActive).
		Count(&count).Error
	return count, err
}

// CountOverdue counts active loans past their due date at the given instant
func (r *loanRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Loan{}).
		Where("status = ? AND due_date < ?", domain.LoanStatusActive, now).
		Count(&count).Error
	return count, err
}

// CountDueBetween counts active loans whose due date falls in [from, to)
func (r *loanRepository) CountDueBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Loan{}).
		Where("status = ? AND due_date >= ? AND due_date < ?", domain.LoanStatusActive, from, to).
		Count(&count).Error
	return count, err
}
