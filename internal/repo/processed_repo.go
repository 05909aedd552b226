// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records transactions whose outcomes have been
// reconciled so a restart never replays them.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/punkhunt/internal/domain"
)

// MarkProcessed inserts the hash. It returns ErrDuplicate when the hash was
// already recorded, which callers treat as "already reconciled".
func MarkProcessed(ctx context.Context, db *gorm.DB, hash, lane string, amount int64) error {
	rec := &domain.ProcessedTransaction{
		Hash:   strings.ToLower(hash),
		Lane:   lane,
		Amount: amount,
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// IsProcessed reports whether hash was already reconciled.
func IsProcessed(ctx context.Context, db *gorm.DB, hash string) (bool, error) {
	var rec domain.ProcessedTransaction
	err := db.WithContext(ctx).Select("hash").Where("hash = ?", strings.ToLower(hash)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecentProcessed lists the most recently reconciled transactions, newest
// first, capped at limit.
func RecentProcessed(ctx context.Context, db *gorm.DB, limit int) ([]domain.ProcessedTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.ProcessedTransaction
	err := db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
