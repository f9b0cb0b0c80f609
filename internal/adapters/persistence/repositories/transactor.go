package repositories

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// gormTransactor implements Transactor on top of gorm transactions.
type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a new gorm-backed transactor
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// WithinTx runs fn inside a single transaction. The *gorm.DB transaction
// handle is stored in the context so repository calls join it. gorm commits
// when fn returns nil and rolls back on error or panic; a cancelled context
// aborts the transaction as well, so no partial write ever becomes visible.
func (t *gormTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction handle carried by ctx, or the fallback
// connection when the call runs outside a transaction.
func conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}
