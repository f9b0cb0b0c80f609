package handlers

import (
	"errors"
	"strconv"

	"libris/internal/adapters/persistence/repositories"
	"libris/internal/core/domain"
	"libris/internal/core/services"
	"libris/internal/pkg/pagination"
	"libris/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles book catalog endpoints
type BookHandler struct {
	bookService *services.BookService
}

// NewBookHandler creates a new book handler
func NewBookHandler(bookService *services.BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

// parseID parses a numeric path parameter
func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// List lists books
// @Summary List books
// @Description List books with title/author search, genre filter, sorting and pagination
// @Tags Books
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param title query string false "Title search"
// @Param author query string false "Author search"
// @Param genre query string false "Genre filter"
// @Param sort_by query string false "Sort field (title, author, publication_year, created_at)"
// @Param sort_order query string false "ASC or DESC"
// @Success 200 {object} pagination.Response
// @Router /books [get]
func (h *BookHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	filter := repositories.BookFilter{
		Title:     c.Query("title"),
		Author:    c.Query("author"),
		Genre:     c.Query("genre"),
		SortBy:    c.Query("sort_by", "title"),
		SortOrder: c.Query("sort_order", "ASC"),
	}

	books, total, err := h.bookService.List(c.Context(), filter, params.Page, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list books")
	}
	return c.JSON(pagination.NewResponse(books, params, total))
}

// Get returns a single book
// @Summary Get book
// @Description Get a book by ID
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	book, err := h.bookService.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to load book")
	}
	return response.Success(c, "", book)
}

// CreateBookRequest represents create book request
type CreateBookRequest struct {
	Title           string `json:"title" validate:"required,max=255"`
	Author          string `json:"author" validate:"required,max=255"`
	Genre           string `json:"genre" validate:"omitempty,max=100"`
	ISBN            string `json:"isbn" validate:"omitempty,max=20"`
	Description     string `json:"description"`
	PublicationYear int    `json:"publication_year" validate:"omitempty,gte=0"`
	TotalCopies     int    `json:"total_copies" validate:"omitempty,gte=1"`
}

// Create adds a book to the catalog
// @Summary Create book
// @Description Add a book to the catalog (admin only)
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateBookRequest true "Book data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /books [post]
func (h *BookHandler) Create(c *fiber.Ctx) error {
	var req CreateBookRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}

	book, err := h.bookService.Create(c.Context(), services.CreateBookInput{
		Title:           req.Title,
		Author:          req.Author,
		Genre:           req.Genre,
		ISBN:            req.ISBN,
		Description:     req.Description,
		PublicationYear: req.PublicationYear,
		TotalCopies:     req.TotalCopies,
	})
	if err != nil {
		if errors.Is(err, domain.ErrISBNTaken) {
			return response.Conflict(c, "A book with this ISBN already exists")
		}
		return response.InternalServerError(c, "Failed to create book")
	}

	return response.Created(c, "Book created", book)
}

// UpdateBookRequest represents update book request; omitted fields are left
// unchanged
type UpdateBookRequest struct {
	Title           *string `json:"title" validate:"omitempty,max=255"`
	Author          *string `json:"author" validate:"omitempty,max=255"`
	Genre           *string `json:"genre" validate:"omitempty,max=100"`
	ISBN            *string `json:"isbn" validate:"omitempty,max=20"`
	Description     *string `json:"description"`
	PublicationYear *int    `json:"publication_year" validate:"omitempty,gte=0"`
	TotalCopies     *int    `json:"total_copies" validate:"omitempty,gte=1"`
}

// Update edits a book
// @Summary Update book
// @Description Update a book; changing total copies re-derives availability (admin only)
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body UpdateBookRequest true "Fields to update"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	var req UpdateBookRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}

	book, err := h.bookService.Update(c.Context(), id, services.UpdateBookInput{
		Title:           req.Title,
		Author:          req.Author,
		Genre:           req.Genre,
		ISBN:            req.ISBN,
		Description:     req.Description,
		PublicationYear: req.PublicationYear,
		TotalCopies:     req.TotalCopies,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, domain.ErrISBNTaken):
			return response.Conflict(c, "A book with this ISBN already exists")
		case errors.Is(err, domain.ErrBookHasActiveLoans):
			return response.Conflict(c, "Total copies cannot drop below the number of copies on loan")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Total copies must be at least 1")
		default:
			return response.InternalServerError(c, "Failed to update book")
		}
	}

	return response.Success(c, "Book updated", book)
}

// Delete removes a book
// @Summary Delete book
// @Description Delete a book without active loans (admin only)
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /books/{id} [delete]
func (h *BookHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	if err := h.bookService.Delete(c.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, domain.ErrBookHasActiveLoans):
			return response.Conflict(c, "Book has active loans and cannot be deleted")
		default:
			return response.InternalServerError(c, "Failed to delete book")
		}
	}
	return response.Success(c, "Book deleted", nil)
}

// Genres lists the distinct genres
// @Summary List genres
// @Description List the distinct genres present in the catalog
// @Tags Books
// @Produce json
// @Success 200 {object} response.Response
// @Router /books/genres/list [get]
func (h *BookHandler) Genres(c *fiber.Ctx) error {
	genres, err := h.bookService.ListGenres(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to list genres")
	}
	return response.Success(c, "", genres)
}
