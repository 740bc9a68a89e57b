package service

import (
	"context"
	"time"

	"bookswap/internal/repository"

	"gorm.io/gorm"
)

// inTx runs fn in one transaction; repositories called with the ctx passed to
// fn join it. A nil db runs fn directly, which the stub-based tests rely on.
func inTx(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if db == nil {
		return fn(ctx)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repository.WithTx(ctx, tx))
	})
}

func utcNow() time.Time {
	return time.Now().UTC()
}
