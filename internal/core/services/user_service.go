package services

import (
	"context"

	"libris/internal/adapters/persistence/models"
	"libris/internal/adapters/persistence/repositories"
	"libris/internal/core/domain"
	"libris/internal/pkg/password"
)

// UserService handles user management
type UserService struct {
	userRepo  repositories.UserRepository
	loanRepo  repositories.LoanRepository
	tokenRepo repositories.RefreshTokenRepository
}

// NewUserService creates a new user service
func NewUserService(
	userRepo repositories.UserRepository,
	loanRepo repositories.LoanRepository,
	tokenRepo repositories.RefreshTokenRepository,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		loanRepo:  loanRepo,
		tokenRepo: tokenRepo,
	}
}

// GetByID gets a user with their active loan count. Non-admins can only see
// themselves.
func (s *UserService) GetByID(ctx context.Context, actor Actor, id uint) (*models.UserResponse, error) {
	if id != actor.UserID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := user.ToResponse()
	resp.ActiveLoans, err = s.loanRepo.CountActiveByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// List lists users with their active loan counts
func (s *UserService) List(ctx context.Context, page, limit int) ([]*models.UserResponse, int64, error) {
	users, total, err := s.userRepo.List(ctx, offsetOf(page, limit), limitOf(limit))
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*models.UserResponse, 0, len(users))
	for _, user := range users {
		resp := user.ToResponse()
		resp.ActiveLoans, err = s.loanRepo.CountActiveByUser(ctx, user.ID)
		if err != nil {
			return nil, 0, err
		}
		responses = append(responses, resp)
	}
	return responses, total, nil
}

// UpdateUserInput represents update user input. Nil fields are left unchanged.
type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	StudentID *string
	Role      *string
}

// Update edits a user. Self or admin only; the role field is admin only.
func (s *UserService) Update(ctx context.Context, actor Actor, id uint, input UpdateUserInput) (*models.User, error) {
	if id != actor.UserID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if input.Role != nil && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil && *input.Email != user.Email {
		taken, err := s.userRepo.ExistsByEmail(ctx, *input.Email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrEmailTaken
		}
		user.Email = *input.Email
	}
	if input.StudentID != nil && *input.StudentID != "" {
		taken, err := s.userRepo.ExistsByStudentID(ctx, *input.StudentID, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrStudentIDTaken
		}
		user.StudentID = input.StudentID
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Role != nil {
		switch domain.Role(*input.Role) {
		case domain.RoleStudent, domain.RoleAdmin:
			user.Role = *input.Role
		default:
			return nil, domain.ErrInvalidInput
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword changes a user's password. A user changing their own
// password must supply the current one; admins may reset without it.
func (s *UserService) ChangePassword(ctx context.Context, actor Actor, id uint, currentPassword, newPassword string) error {
	if id != actor.UserID && !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if !password.Validate(newPassword) {
		return domain.ErrInvalidInput
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !actor.IsAdmin() && !password.Verify(currentPassword, user.Password) {
		return domain.ErrUnauthorized
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	user.Password = hashed
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	// Every outstanding session dies with the old password.
	return s.tokenRepo.RevokeAllByUserID(ctx, id)
}

// Delete removes a user. Forbidden while they hold an active loan.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return err
	}

	active, err := s.loanRepo.CountActiveByUser(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return domain.ErrUserHasActiveLoans
	}

	// A deleted user must not be able to refresh a session.
	if err := s.tokenRepo.RevokeAllByUserID(ctx, id); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, id)
}
