package domain

import "time"

// Role represents user role in the system
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// LoanStatus represents the lifecycle state of a loan.
// A loan is created active and transitions to returned exactly once.
// Overdue is not a status: it is derived from due_date at read time.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
)

// LoanPeriod is the fixed borrowing period. Due date = loan date + LoanPeriod.
const LoanPeriod = 14 * 24 * time.Hour
