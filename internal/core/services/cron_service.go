package services

import (
	"context"
	"log"
	"time"

	"libris/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
)

// CronService runs the scheduled maintenance jobs: the daily overdue report
// and refresh token cleanup. The overdue sweep is purely observational; the
// due-date comparison at read time stays the source of truth, and no job
// ever mutates loan state.
type CronService struct {
	loanRepo  repositories.LoanRepository
	tokenRepo repositories.RefreshTokenRepository
	cron      *cron.Cron
}

// NewCronService creates a new cron service
func NewCronService(
	loanRepo repositories.LoanRepository,
	tokenRepo repositories.RefreshTokenRepository,
) *CronService {
	return &CronService{
		loanRepo:  loanRepo,
		tokenRepo: tokenRepo,
		cron:      cron.New(),
	}
}

// Start registers and launches the scheduled jobs
func (s *CronService) Start() error {
	// Overdue report every morning at 08:00
	if _, err := s.cron.AddFunc("0 8 * * *", s.reportOverdue); err != nil {
		return err
	}

	// Purge expired refresh tokens nightly
	if _, err := s.cron.AddFunc("30 3 * * *", s.cleanupTokens); err != nil {
		return err
	}

	s.cron.Start()
	log.Println("✅ Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Cron service stopped")
}

// reportOverdue logs the current overdue count and how many loans fall due
// within the next two days
func (s *CronService) reportOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	overdue, err := s.loanRepo.CountOverdue(ctx, now)
	if err != nil {
		log.Printf("❌ Overdue report query error: %v", err)
		return
	}

	dueSoon, err := s.loanRepo.CountDueBetween(ctx, now, now.Add(48*time.Hour))
	if err != nil {
		log.Printf("❌ Due-soon report query error: %v", err)
		return
	}

	log.Printf("📚 Loan report: %d overdue, %d due within 48h", overdue, dueSoon)
}

// cleanupTokens deletes expired refresh tokens
func (s *CronService) cleanupTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.tokenRepo.DeleteExpired(ctx); err != nil {
		log.Printf("❌ Refresh token cleanup error: %v", err)
	}
}
