package models

import (
	"time"

	"libris/internal/core/domain"

	"gorm.io/gorm"
)

// User represents users table
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string     `gorm:"size:255;not null" json:"-"`
	FirstName string     `gorm:"size:50;not null" json:"first_name"`
	LastName  string     `gorm:"size:50;not null" json:"last_name"`
	StudentID *string    `gorm:"uniqueIndex;size:20" json:"student_id"`
	Role      string     `gorm:"size:20;default:'student'" json:"role"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(domain.RoleAdmin)
}

// UserResponse DTO
type UserResponse struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	StudentID   *string   `json:"student_id,omitempty"`
	Role        string    `json:"role"`
	ActiveLoans int64     `json:"active_loans"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		StudentID: u.StudentID,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Book represents books table.
// AvailableCopies is maintained eagerly by the loan engine:
// available_copies = total_copies - count(active loans for this book).
type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null;index" json:"title"`
	Author          string    `gorm:"size:255;not null;index" json:"author"`
	Genre           *string   `gorm:"size:100;index" json:"genre"`
	ISBN            *string   `gorm:"uniqueIndex;size:20" json:"isbn"`
	Description     string    `gorm:"type:text" json:"description"`
	PublicationYear *int      `json:"publication_year"`
	TotalCopies     int       `gorm:"not null;default:1" json:"total_copies"`
	AvailableCopies int       `gorm:"not null;default:1" json:"available_copies"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// Loan represents loans table. Rows are append-mostly: borrow creates a loan,
// return mutates it exactly once, nothing ever deletes it.
type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	BookID     uint       `gorm:"index;not null" json:"book_id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	Status     string     `gorm:"size:20;not null;default:'active';index" json:"status"`
	LoanDate   time.Time  `gorm:"not null" json:"loan_date"`
	DueDate    time.Time  `gorm:"not null;index" json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	Book       Book       `gorm:"foreignKey:BookID" json:"-"`
	User       User       `gorm:"foreignKey:UserID" json:"-"`
}

func (Loan) TableName() string {
	return "loans"
}

// IsActive reports whether the loan has not been returned yet.
func (l *Loan) IsActive() bool {
	return l.Status == string(domain.LoanStatusActive)
}

// IsOverdueAt reports whether the loan is overdue at the given instant.
// Returned loans are never overdue.
func (l *Loan) IsOverdueAt(now time.Time) bool {
	return l.IsActive() && l.DueDate.Before(now)
}

// LoanResponse DTO, with the joined book/user fields the listings expose.
type LoanResponse struct {
	ID         uint       `json:"id"`
	BookID     uint       `json:"book_id"`
	UserID     uint       `json:"user_id"`
	Status     string     `json:"status"`
	LoanDate   time.Time  `json:"loan_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Overdue    bool       `json:"overdue"`
	BookTitle  string     `json:"book_title,omitempty"`
	BookAuthor string     `json:"book_author,omitempty"`
	UserName   string     `json:"user_name,omitempty"`
	UserEmail  string     `json:"user_email,omitempty"`
}

func (l *Loan) ToResponse(now time.Time) *LoanResponse {
	resp := &LoanResponse{
		ID:         l.ID,
		BookID:     l.BookID,
		UserID:     l.UserID,
		Status:     l.Status,
		LoanDate:   l.LoanDate,
		DueDate:    l.DueDate,
		ReturnDate: l.ReturnDate,
		Overdue:    l.IsOverdueAt(now),
	}
	if l.Book.ID != 0 {
		resp.BookTitle = l.Book.Title
		resp.BookAuthor = l.Book.Author
	}
	if l.User.ID != 0 {
		resp.UserName = l.User.FirstName + " " + l.User.LastName
		resp.UserEmail = l.User.Email
	}
	return resp
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// AutoMigrate creates or updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Book{},
		&Loan{},
		&RefreshToken{},
	)
}
