package services

import (
	"context"
	"time"

	"libris/internal/core/domain"

	"gorm.io/gorm"
)

// StatsService aggregates the admin overview numbers. Read-only raw queries
// off the shared connection; no invariant risk.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// OverviewData represents the admin statistics overview
type OverviewData struct {
	// User statistics
	TotalUsers         int64 `json:"total_users"`
	TotalStudents      int64 `json:"total_students"`
	TotalAdmins        int64 `json:"total_admins"`
	NewUsersLast30Days int64 `json:"new_users_last_30_days"`

	// Catalog statistics
	TotalBooks      int64 `json:"total_books"`
	TotalCopies     int64 `json:"total_copies"`
	AvailableCopies int64 `json:"available_copies"`

	// Loan statistics
	ActiveLoans  int64 `json:"active_loans"`
	OverdueLoans int64 `json:"overdue_loans"`
	LoansToday   int64 `json:"loans_today"`

	// Most borrowed books, all time
	TopBooks []TopBook `json:"top_books"`
}

// TopBook represents a most-borrowed book entry
type TopBook struct {
	BookID    uint   `json:"book_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	LoanCount int64  `json:"loan_count"`
}

// GetOverview returns the admin statistics overview
func (s *StatsService) GetOverview(ctx context.Context) (*OverviewData, error) {
	data := &OverviewData{}
	now := time.Now()
	db := s.db.WithContext(ctx)

	// User counts
	db.Table("users").Count(&data.TotalUsers)
	db.Table("users").Where("role = ?", domain.RoleStudent).Count(&data.TotalStudents)
	db.Table("users").Where("role = ?", domain.RoleAdmin).Count(&data.TotalAdmins)
	db.Table("users").Where("created_at >= ?", now.AddDate(0, 0, -30)).Count(&data.NewUsersLast30Days)

	// Catalog counts
	db.Table("books").Count(&data.TotalBooks)
	db.Table("books").Select("COALESCE(SUM(total_copies), 0)").Scan(&data.TotalCopies)
	db.Table("books").Select("COALESCE(SUM(available_copies), 0)").Scan(&data.AvailableCopies)

	// Loan counts; overdue is the read-time predicate, never a stored flag
	db.Table("loans").Where("status = ?", domain.LoanStatusActive).Count(&data.ActiveLoans)
	db.Table("loans").
		Where("status = ? AND due_date < ?", domain.LoanStatusActive, now).
		Count(&data.OverdueLoans)

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	db.Table("loans").Where("loan_date >= ?", startOfDay).Count(&data.LoansToday)

	// Top borrowed books
	err := db.Table("loans").
		Select("loans.book_id, books.title, books.author, COUNT(*) as loan_count").
		Joins("JOIN books ON books.id = loans.book_id").
		Group("loans.book_id, books.title, books.author").
		Order("loan_count DESC").
		Limit(5).
		Scan(&data.TopBooks).Error
	if err != nil {
		return nil, err
	}

	return data, nil
}
