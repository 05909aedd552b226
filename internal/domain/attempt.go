// Package domain defines the value types shared by the transaction lifecycle,
// reconciliation, and notification layers, plus the GORM persistence records
// the companion keeps in SQLite.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Lane identifies one independent action lane. Each lane has at most one
// transaction attempt in flight.
type Lane string

const (
	LaneMintDucks   Lane = "mint-ducks"
	LaneMintZappers Lane = "mint-zappers"
	LaneShoot       Lane = "shoot"
)

// Lanes lists every lane in display order.
var Lanes = []Lane{LaneMintDucks, LaneMintZappers, LaneShoot}

// ParseLane maps a user-supplied lane name to a Lane. It accepts the
// canonical names and a few aliases used by the CLI.
func ParseLane(s string) (Lane, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mint-ducks", "ducks", "duck":
		return LaneMintDucks, nil
	case "mint-zappers", "zappers", "zapper":
		return LaneMintZappers, nil
	case "shoot", "send-zappers", "hunt":
		return LaneShoot, nil
	}
	return "", fmt.Errorf("unknown lane %q", s)
}

// Stage is the lifecycle stage of a transaction attempt.
type Stage string

const (
	StageIdle       Stage = "idle"
	StagePreparing  Stage = "preparing"
	StagePending    Stage = "pending"
	StageConfirming Stage = "confirming"
	StageConfirmed  Stage = "confirmed"
	StageFailed     Stage = "failed"
)

// transitions is the complete legal transition table. Anything not listed
// is rejected by CanTransition.
var transitions = map[Stage][]Stage{
	StageIdle:       {StagePreparing},
	StagePreparing:  {StagePending, StageFailed},
	StagePending:    {StageConfirming, StageFailed},
	StageConfirming: {StageConfirmed, StageFailed},
	StageConfirmed:  {StageIdle},
	StageFailed:     {StageIdle},
}

// CanTransition reports whether moving from s to next is legal.
func (s Stage) CanTransition(next Stage) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// IsTransacting reports whether an attempt in this stage is still in flight.
func (s Stage) IsTransacting() bool {
	return s == StagePreparing || s == StagePending || s == StageConfirming
}

// IsTerminal reports whether s is Confirmed or Failed.
func (s Stage) IsTerminal() bool {
	return s == StageConfirmed || s == StageFailed
}

// TransactionAttempt is a read-only snapshot of one lane's current attempt.
// The controller owns the live value; callers only ever see copies.
type TransactionAttempt struct {
	Lane          Lane      `json:"lane"`
	Seq           uint64    `json:"seq"`
	ID            string    `json:"id,omitempty"` // tx hash, empty while preparing
	Stage         Stage     `json:"stage"`
	PayloadAmount int64     `json:"payload_amount,omitempty"`
	Error         string    `json:"error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsTransacting mirrors Stage.IsTransacting for view convenience.
func (a TransactionAttempt) IsTransacting() bool { return a.Stage.IsTransacting() }
