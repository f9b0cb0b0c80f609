package services

import (
	"context"

	"libris/internal/adapters/persistence/models"
	"libris/internal/adapters/persistence/repositories"
	"libris/internal/core/domain"
)

// BookService handles catalog management. Availability is only ever touched
// through the loan engine or through the total-copies re-derivation here,
// both under the book row lock.
type BookService struct {
	tx       repositories.Transactor
	bookRepo repositories.BookRepository
	loanRepo repositories.LoanRepository
}

// NewBookService creates a new book service
func NewBookService(
	tx repositories.Transactor,
	bookRepo repositories.BookRepository,
	loanRepo repositories.LoanRepository,
) *BookService {
	return &BookService{
		tx:       tx,
		bookRepo: bookRepo,
		loanRepo: loanRepo,
	}
}

// CreateBookInput represents create book input
type CreateBookInput struct {
	Title           string
	Author          string
	Genre           string
	ISBN            string
	Description     string
	PublicationYear int
	TotalCopies     int
}

// Create adds a book to the catalog. A new book starts with every copy
// available.
func (s *BookService) Create(ctx context.Context, input CreateBookInput) (*models.Book, error) {
	if input.TotalCopies < 1 {
		input.TotalCopies = 1
	}

	if input.ISBN != "" {
		taken, err := s.bookRepo.ExistsByISBN(ctx, input.ISBN, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrISBNTaken
		}
	}

	book := &models.Book{
		Title:           input.Title,
		Author:          input.Author,
		Description:     input.Description,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
	}
	if input.Genre != "" {
		book.Genre = &input.Genre
	}
	if input.ISBN != "" {
		book.ISBN = &input.ISBN
	}
	if input.PublicationYear != 0 {
		book.PublicationYear = &input.PublicationYear
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// GetByID gets a book by ID
func (s *BookService) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	return s.bookRepo.GetByID(ctx, id)
}

// List lists books with filters and pagination
func (s *BookService) List(ctx context.Context, filter repositories.BookFilter, page, limit int) ([]*models.Book, int64, error) {
	return s.bookRepo.List(ctx, filter, offsetOf(page, limit), limitOf(limit))
}

// ListGenres returns the distinct genres in the catalog
func (s *BookService) ListGenres(ctx context.Context) ([]string, error) {
	return s.bookRepo.ListGenres(ctx)
}

// UpdateBookInput represents update book input. Nil fields are left unchanged.
type UpdateBookInput struct {
	Title           *string
	Author          *string
	Genre           *string
	ISBN            *string
	Description     *string
	PublicationYear *int
	TotalCopies     *int
}

// Update edits a book. Changing total_copies re-derives available_copies
// from the active loan count under the row lock, so the invariant
// available = total - active survives the edit. Shrinking the total below
// the number of copies currently on loan is rejected.
func (s *BookService) Update(ctx context.Context, id uint, input UpdateBookInput) (*models.Book, error) {
	if input.ISBN != nil && *input.ISBN != "" {
		taken, err := s.bookRepo.ExistsByISBN(ctx, *input.ISBN, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrISBNTaken
		}
	}

	var updated *models.Book
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		book, err := s.bookRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if input.Title != nil {
			book.Title = *input.Title
		}
		if input.Author != nil {
			book.Author = *input.Author
		}
		if input.Genre != nil {
			if *input.Genre == "" {
				book.Genre = nil
			} else {
				book.Genre = input.Genre
			}
		}
		if input.ISBN != nil {
			if *input.ISBN == "" {
				book.ISBN = nil
			} else {
				book.ISBN = input.ISBN
			}
		}
		if input.Description != nil {
			book.Description = *input.Description
		}
		if input.PublicationYear != nil {
			book.PublicationYear = input.PublicationYear
		}

		if input.TotalCopies != nil && *input.TotalCopies != book.TotalCopies {
			if *input.TotalCopies < 1 {
				return domain.ErrInvalidInput
			}
			active, err := s.loanRepo.CountActiveByBook(ctx, id)
			if err != nil {
				return err
			}
			if int64(*input.TotalCopies) < active {
				return domain.ErrBookHasActiveLoans
			}
			book.TotalCopies = *input.TotalCopies
			book.AvailableCopies = *input.TotalCopies - int(active)
		}

		if err := s.bookRepo.Update(ctx, book); err != nil {
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a book. Forbidden while any active loan references it;
// returned loans keep their audit trail but do not block deletion.
func (s *BookService) Delete(ctx context.Context, id uint) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.bookRepo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		active, err := s.loanRepo.CountActiveByBook(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return domain.ErrBookHasActiveLoans
		}
		return s.bookRepo.Delete(ctx, id)
	})
}
