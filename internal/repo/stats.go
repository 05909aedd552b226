// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries over the
// reconciliation history used by lane status views.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/punkhunt/internal/domain"
)

// LaneStats returns the number of reconciled transactions for lane and the
// timestamp of the latest one (nil when there are none).
func LaneStats(ctx context.Context, db *gorm.DB, lane string) (count int64, lastAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ProcessedTransaction{}).Where("lane = ?", lane)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
