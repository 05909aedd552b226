package domain

import "time"

// Idempotency binds a client-supplied Idempotency-Key to the attempt it
// created, keyed by (address, lane, key). A replayed submit returns the
// original attempt instead of touching the controller again.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Address    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_address_lane_key,priority:1"`
	Lane       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_address_lane_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_address_lane_key,priority:3"`
	AttemptSeq uint64    `gorm:"type:INTEGER NOT NULL"`
	AttemptID  string    `gorm:"type:TEXT"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
