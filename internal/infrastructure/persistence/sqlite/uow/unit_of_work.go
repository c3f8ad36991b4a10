package uow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ballotscan/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with a gorm transaction. The
// transaction handle travels in the context, so store methods called inside
// fn all hit the same transaction. Sheet updates that touch both sides of a
// ballot go through this so a crash can never leave one side adjudicated.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)
