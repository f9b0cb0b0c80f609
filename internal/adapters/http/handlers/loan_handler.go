package handlers

import (
	"errors"

	"libris/internal/adapters/persistence/models"
	"libris/internal/core/domain"
	"libris/internal/core/services"
	"libris/internal/pkg/pagination"
	"libris/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles loan endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// actorFrom builds the caller identity set by the auth middleware
func actorFrom(c *fiber.Ctx) services.Actor {
	userID, _ := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)
	return services.Actor{
		UserID: userID,
		Role:   domain.Role(role),
	}
}

// loanResponses renders loans with the overdue flag evaluated at one instant
func (h *LoanHandler) loanResponses(loans []*models.Loan) []*models.LoanResponse {
	now := h.loanService.Now()
	responses := make([]*models.LoanResponse, 0, len(loans))
	for _, loan := range loans {
		responses = append(responses, loan.ToResponse(now))
	}
	return responses
}

// BorrowRequest represents a borrow request
type BorrowRequest struct {
	BookID uint `json:"book_id" validate:"required"`
}

// Borrow lends a book copy to the caller
// @Summary Borrow book
// @Description Borrow one copy of a book for 14 days
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BorrowRequest true "Book to borrow"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Borrow(c *fiber.Ctx) error {
	var req BorrowRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.BookID == 0 {
		return response.BadRequest(c, "Book ID is required")
	}

	loan, err := h.loanService.Borrow(c.Context(), actorFrom(c), req.BookID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, domain.ErrBookUnavailable):
			return response.Conflict(c, "No copies of this book are available")
		default:
			return response.InternalServerError(c, "Failed to borrow book")
		}
	}

	return response.Created(c, "Book borrowed", loan.ToResponse(h.loanService.Now()))
}

// Return marks a loan as returned
// @Summary Return loan
// @Description Return a borrowed book; owner or admin only
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{id}/return [put]
func (h *LoanHandler) Return(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.Return(c.Context(), actorFrom(c), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, domain.ErrNotLoanOwner):
			return response.Forbidden(c, "You cannot return this loan")
		case errors.Is(err, domain.ErrLoanAlreadyReturned):
			return response.Conflict(c, "This loan has already been returned")
		default:
			return response.InternalServerError(c, "Failed to return book")
		}
	}

	return response.Success(c, "Book returned", loan.ToResponse(h.loanService.Now()))
}

// List lists all loans with filters
// @Summary List loans
// @Description List loans filtered by status, user or book (admin only)
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param status query string false "Loan status (active, returned)"
// @Param user_id query int false "Filter by user"
// @Param book_id query int false "Filter by book"
// @Success 200 {object} pagination.Response
// @Router /loans [get]
func (h *LoanHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	input := services.ListLoansInput{
		Status: c.Query("status"),
		UserID: uint(c.QueryInt("user_id")),
		BookID: uint(c.QueryInt("book_id")),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	loans, total, err := h.loanService.List(c.Context(), input)
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}
	return c.JSON(pagination.NewResponse(h.loanResponses(loans), params, total))
}

// ListByUser lists a user's loans
// @Summary List user loans
// @Description List loans of a user; self or admin only
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} pagination.Response
// @Failure 403 {object} response.Response
// @Router /loans/user/{userId} [get]
func (h *LoanHandler) ListByUser(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	params := pagination.GetParams(c)
	loans, total, err := h.loanService.ListForUser(c.Context(), actorFrom(c), userID, params.Page, params.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return response.Forbidden(c, "You cannot view these loans")
		}
		return response.InternalServerError(c, "Failed to list loans")
	}
	return c.JSON(pagination.NewResponse(h.loanResponses(loans), params, total))
}

// ListOverdue lists overdue loans
// @Summary List overdue loans
// @Description List active loans past their due date; non-admins see their own only
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} pagination.Response
// @Router /loans/overdue [get]
func (h *LoanHandler) ListOverdue(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	loans, total, err := h.loanService.ListOverdue(c.Context(), actorFrom(c), params.Page, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list overdue loans")
	}
	return c.JSON(pagination.NewResponse(h.loanResponses(loans), params, total))
}

// Get returns a single loan
// @Summary Get loan
// @Description Get a loan by ID; owner or admin only
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.GetByID(c.Context(), actorFrom(c), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You cannot view this loan")
		default:
			return response.InternalServerError(c, "Failed to load loan")
		}
	}
	return response.Success(c, "", loan.ToResponse(h.loanService.Now()))
}
