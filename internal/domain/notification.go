package domain

import "time"

// OutcomeKind classifies one decoded SentZapper log.
type OutcomeKind string

const (
	OutcomeMiss            OutcomeKind = "miss"
	OutcomeHitOwnDuck      OutcomeKind = "hit_own_duck"
	OutcomeHitOpponentDuck OutcomeKind = "hit_opponent_duck"
	OutcomeUnknown         OutcomeKind = "unknown"
)

// DecodedOutcome is derived from one matching log of a confirmed shoot
// transaction. TokenID is only meaningful for the two hit kinds.
type DecodedOutcome struct {
	Kind                OutcomeKind
	TokenID             uint64
	SourceTransactionID string
}

// Style is the color category a view uses for a notification.
type Style string

const (
	StyleSuccess Style = "success"
	StyleMiss    Style = "miss"
	StyleSelfHit Style = "self_hit"
	StyleInfo    Style = "info"
)

// Notification is one user-facing outcome message.
type Notification struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Lane          Lane      `json:"lane,omitempty"`
	Style         Style     `json:"style"`
	CreatedAt     time.Time `json:"created_at"`
}
