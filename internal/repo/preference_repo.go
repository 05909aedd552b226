// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds key/value preferences such as the sound
// toggle.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/punkhunt/internal/domain"
)

// Preference keys.
const (
	PrefSoundEnabled = "sound.enabled"
)

// GetPreference returns the stored value for key or ErrNotFound.
func GetPreference(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var p domain.Preference
	err := db.WithContext(ctx).Where("key = ?", key).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	return p.Value, err
}

// SetPreference upserts key=value.
func SetPreference(ctx context.Context, db *gorm.DB, key, value string) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&domain.Preference{Key: key, Value: value}).Error
}
