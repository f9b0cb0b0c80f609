package repositories

import (
	"context"
	"errors"

	"libris/internal/adapters/persistence/models"
	"libris/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// bookRepository implements BookRepository interface
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create creates a new book
func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	return conn(ctx, r.db).Create(book).Error
}

// GetByID gets a book by ID
func (r *bookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := conn(ctx, r.db).Where("id = ?", id).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

// GetForUpdate loads the book row with SELECT ... FOR UPDATE. Concurrent
// transactions locking the same book serialize here until commit/rollback.
func (r *bookRepository) GetForUpdate(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

// List lists books with filters, whitelisted sorting and pagination
func (r *bookRepository) List(ctx context.Context, filter BookFilter, offset, limit int) ([]*models.Book, int64, error) {
	query := conn(ctx, r.db).Model(&models.Book{})

	if filter.Title != "" {
		query = query.Where("title LIKE ?", "%"+filter.Title+"%")
	}
	if filter.Author != "" {
		query = query.Where("author LIKE ?", "%"+filter.Author+"%")
	}
	if filter.Genre != "" {
		query = query.Where("genre = ?", filter.Genre)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(orderClause(filter.SortBy, filter.SortOrder))

	var books []*models.Book
	if err := query.Offset(offset).Limit(limit).Find(&books).Error; err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// orderClause maps user-supplied sort parameters onto a whitelist.
// Unknown fields fall back to title ASC.
func orderClause(sortBy, sortOrder string) string {
	switch sortBy {
	case "title", "author", "publication_year", "created_at":
	default:
		sortBy = "title"
	}
	if sortOrder != "DESC" {
		sortOrder = "ASC"
	}
	return sortBy + " " + sortOrder
}

// Update updates a book
func (r *bookRepository) Update(ctx context.Context, book *models.Book) error {
	return conn(ctx, r.db).Save(book).Error
}

// Delete deletes a book
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	res := conn(ctx, r.db).Delete(&models.Book{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

// DecrementAvailable subtracts one available copy. The WHERE guard keeps the
// counter from going negative: zero affected rows means the caller's
// availability check was violated, which is a consistency error.
func (r *bookRepository) DecrementAvailable(ctx context.Context, id uint) error {
	res := conn(ctx, r.db).Model(&models.Book{}).
		Where("id = ? AND available_copies > 0", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConsistency
	}
	return nil
}

// IncrementAvailable adds one available copy back. Exceeding total_copies
// means a prior invariant breach; it aborts instead of clamping.
func (r *bookRepository) IncrementAvailable(ctx context.Context, id uint) error {
	res := conn(ctx, r.db).Model(&models.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConsistency
	}
	return nil
}

// ExistsByISBN checks whether another book already uses the ISBN
func (r *bookRepository) ExistsByISBN(ctx context.Context, isbn string, excludeID uint) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Book{}).
		Where("isbn = ? AND id != ?", isbn, excludeID).
		Count(&count).Error
	return count > 0, err
}

// ListGenres returns the distinct non-null genres in the catalog
func (r *bookRepository) ListGenres(ctx context.Context) ([]string, error) {
	var genres []string
	err := conn(ctx, r.db).Model(&models.Book{}).
		Distinct("genre").
		Where("genre IS NOT NULL").
		Order("genre").
		Pluck("genre", &genres).Error
	return genres, err
}
