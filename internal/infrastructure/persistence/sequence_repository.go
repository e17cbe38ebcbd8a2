package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chantier/backend/internal/domain/invoicing"
	"gorm.io/gorm"
)

const nextSequenceSQL = `INSERT INTO invoice_sequences (type, year, last_value, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (type, year) DO UPDATE
SET last_value = invoice_sequences.last_value + 1, updated_at = excluded.updated_at
RETURNING last_value`

// GormSequenceRepository claims invoice numbers from the invoice_sequences table.
// Each claim runs in its own short transaction so the counter advances even
// when the caller's invoice insert later fails (numbers may have gaps, never repeats).
type GormSequenceRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormSequenceRepository creates a sequence repository. timeout bounds the wait
// for the per (type, year) row lock; zero disables the bound.
func NewGormSequenceRepository(db *gorm.DB, timeout time.Duration) *GormSequenceRepository {
	return &GormSequenceRepository{db: db, timeout: timeout}
}

var _ invoicing.NumberSequence = (*GormSequenceRepository)(nil)

// Next atomically increments and returns the counter for (t, year)
func (r *GormSequenceRepository) Next(ctx context.Context, t invoicing.Type, year int) (int64, error) {
	claimCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		claimCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var value int64
	err := r.db.WithContext(claimCtx).Transaction(func(tx *gorm.DB) error {
		if r.timeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.timeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return tx.Raw(nextSequenceSQL, string(t), year, time.Now()).Scan(&value).Error
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if isContention(err) {
			return 0, invoicing.ErrNumberingContention
		}
		return 0, fmt.Errorf("failed to claim invoice number: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("failed to claim invoice number: sequence returned %d", value)
	}
	return value, nil
}

// isContention reports lock waits, serialization failures and our own timeout
func isContention(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch sqlState(err) {
	case sqlStateLockNotAvailable, sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateQueryCanceled:
		return true
	}
	return false
}
