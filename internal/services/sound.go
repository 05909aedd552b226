package services

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
	"github.com/tbourn/punkhunt/internal/repo"
)

// Sound cue keys. Action cues fire when a lane action is invoked, before
// validation; notification cues fire on every queue push.
const (
	CueDucks    = "ducks"
	CueZappMint = "zappmint"
	CueBurn     = "burn"
)

// SoundSink plays a cue. Implementations must not block.
type SoundSink interface {
	Play(cue string)
}

// laneCue maps a lane to the cue its button plays.
func laneCue(l domain.Lane) string {
	switch l {
	case domain.LaneMintDucks:
		return CueDucks
	case domain.LaneMintZappers:
		return CueZappMint
	case domain.LaneShoot:
		return CueBurn
	}
	return ""
}

// styleCue maps a notification style to its cue.
func styleCue(s domain.Style) string { return "notify_" + string(s) }

// SoundEvent is the payload published on the sound topic.
type SoundEvent struct {
	Cue string `json:"cue"`
}

// SoundBoard publishes cues on the hub while sound is enabled. The toggle is
// persisted as a preference when a database is configured.
type SoundBoard struct {
	hub *events.Hub
	db  *gorm.DB

	mu      sync.RWMutex
	enabled bool
}

// NewSoundBoard loads the persisted toggle (default on).
func NewSoundBoard(ctx context.Context, hub *events.Hub, db *gorm.DB) *SoundBoard {
	b := &SoundBoard{hub: hub, db: db, enabled: true}
	if db != nil {
		if v, err := repo.GetPreference(ctx, db, repo.PrefSoundEnabled); err == nil {
			if on, perr := strconv.ParseBool(v); perr == nil {
				b.enabled = on
			}
		}
	}
	return b
}

// Play publishes cue unless sound is muted.
func (b *SoundBoard) Play(cue string) {
	if cue == "" || !b.Enabled() {
		return
	}
	b.hub.Publish(events.TopicSound, SoundEvent{Cue: cue})
}

// Enabled reports the current toggle.
func (b *SoundBoard) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// SetEnabled flips the toggle and persists it.
func (b *SoundBoard) SetEnabled(ctx context.Context, on bool) error {
	b.mu.Lock()
	b.enabled = on
	b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	if err := repo.SetPreference(ctx, b.db, repo.PrefSoundEnabled, strconv.FormatBool(on)); err != nil {
		log.Warn().Err(err).Msg("persist sound preference failed")
		return err
	}
	return nil
}
