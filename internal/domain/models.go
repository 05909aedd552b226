package domain

import "time"

// ProcessedTransaction records a transaction hash whose outcomes were
// already reconciled. The primary key makes reconciliation idempotent across
// restarts.
type ProcessedTransaction struct {
	Hash      string    `gorm:"type:varchar(66);primaryKey"`
	Lane      string    `gorm:"type:varchar(16);not null;index"`
	Amount    int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

// TableName returns the database table name for ProcessedTransaction.
func (ProcessedTransaction) TableName() string { return "processed_transactions" }

// BalanceSnapshot is the short-lived per-address balance cache used to warm
// a user store before its first poll completes.
type BalanceSnapshot struct {
	Address       string    `gorm:"type:varchar(42);primaryKey"`
	DuckBalance   int64     `gorm:"not null"`
	ZapperBalance int64     `gorm:"not null"`
	ZapCount      int64     `gorm:"not null"`
	FetchedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for BalanceSnapshot.
func (BalanceSnapshot) TableName() string { return "balance_snapshots" }

// Preference is a simple key/value user preference (e.g. sound on/off).
type Preference struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName returns the database table name for Preference.
func (Preference) TableName() string { return "preferences" }
