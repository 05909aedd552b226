// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the short-lived balance snapshots that
// warm a user store before its first poll.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/punkhunt/internal/domain"
)

// SaveBalanceSnapshot upserts the snapshot for b.Address.
func SaveBalanceSnapshot(ctx context.Context, db *gorm.DB, b domain.UserBalances, at time.Time) error {
	rec := &domain.BalanceSnapshot{
		Address:       strings.ToLower(b.Address),
		DuckBalance:   b.DuckBalance,
		ZapperBalance: b.ZapperBalance,
		ZapCount:      b.ZapCount,
		FetchedAt:     at.UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"duck_balance", "zapper_balance", "zap_count", "fetched_at"}),
	}).Create(rec).Error
}

// GetBalanceSnapshot returns the snapshot for address when it is younger
// than ttl at now; otherwise ErrNotFound.
func GetBalanceSnapshot(ctx context.Context, db *gorm.DB, address string, ttl time.Duration, now time.Time) (*domain.UserBalances, time.Time, error) {
	var rec domain.BalanceSnapshot
	err := db.WithContext(ctx).
		Where("address = ? AND fetched_at > ?", strings.ToLower(address), now.Add(-ttl).UTC()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return &domain.UserBalances{
		Address:       rec.Address,
		DuckBalance:   rec.DuckBalance,
		ZapperBalance: rec.ZapperBalance,
		ZapCount:      rec.ZapCount,
	}, rec.FetchedAt, nil
}

// DeleteBalanceSnapshot drops the snapshot for address. Missing rows are not
// an error.
func DeleteBalanceSnapshot(ctx context.Context, db *gorm.DB, address string) error {
	return db.WithContext(ctx).
		Where("address = ?", strings.ToLower(address)).
		Delete(&domain.BalanceSnapshot{}).Error
}
