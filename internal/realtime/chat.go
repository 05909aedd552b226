package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/punkhunt/internal/cache"
	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
)

// Server event names.
const (
	EventChatHistory       = "chatHistory"
	EventNewChatMessage    = "newChatMessage"
	EventContractEvent     = "contractEvent"
	EventGameStateUpdate   = "gameStateUpdate"
	EventLeaderboardUpdate = "leaderboardUpdate"
	EventChatMessage       = "chatMessage" // outgoing
)

// DefaultHistoryLimit bounds the retained chat log.
const DefaultHistoryLimit = 200

const gameRefreshTimeout = 10 * time.Second

// Transport is the emitting half of a Socket.
type Transport interface {
	Emit(event string, args ...any) error
	Connected() bool
}

// LeaderboardSink accepts pushed leaderboard updates.
type LeaderboardSink interface {
	PushLeaderboard(lb domain.Leaderboard)
}

// GameRefresher reloads game data when the server reports a state change.
type GameRefresher interface {
	Refresh(ctx context.Context) (cache.GameSnapshot, error)
}

// ContractEvent is the payload of contractEvent.
type ContractEvent struct {
	Type            string          `json:"type"`
	RemainingSupply *int64          `json:"remainingSupply,omitempty"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}

// ChatFeed keeps the trollbox log and relays server pushes to the hub.
// Messages are only appended when the server broadcasts them.
type ChatFeed struct {
	transport   Transport
	hub         *events.Hub
	leaderboard LeaderboardSink
	game        GameRefresher
	limit       int

	mu        sync.RWMutex
	msgs      []domain.ChatMessage
	seen      map[string]struct{}
	gameEnded bool
}

// FeedOptions wires optional collaborators.
type FeedOptions struct {
	Hub          *events.Hub
	Leaderboard  LeaderboardSink
	Game         GameRefresher
	HistoryLimit int
}

// NewChatFeed builds a feed that sends through t. Register HandleEvent on
// the socket to feed it.
func NewChatFeed(t Transport, opts FeedOptions) *ChatFeed {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &ChatFeed{
		transport:   t,
		hub:         opts.Hub,
		leaderboard: opts.Leaderboard,
		game:        opts.Game,
		limit:       opts.HistoryLimit,
		seen:        map[string]struct{}{},
	}
}

// messageKey identifies a message. Server ids win; without one the
// timestamp, user and text triple is used, which can merge two identical
// messages sent in the same millisecond.
func messageKey(m domain.ChatMessage) string {
	if m.ID != "" {
		return "id:" + m.ID
	}
	return fmt.Sprintf("h:%d|%s|%s", m.Timestamp, m.User, m.Message)
}

// HandleEvent is the socket callback.
func (f *ChatFeed) HandleEvent(event string, args []json.RawMessage) {
	if len(args) == 0 {
		return
	}
	switch event {
	case EventChatHistory:
		var history []domain.ChatMessage
		if err := json.Unmarshal(args[0], &history); err != nil {
			log.Debug().Err(err).Msg("chat: bad history payload")
			return
		}
		f.replace(history)

	case EventNewChatMessage:
		var m domain.ChatMessage
		if err := json.Unmarshal(args[0], &m); err != nil {
			log.Debug().Err(err).Msg("chat: bad message payload")
			return
		}
		if f.add(m) {
			f.hub.Publish(events.TopicChat, m)
		}

	case EventContractEvent:
		var ev ContractEvent
		if err := json.Unmarshal(args[0], &ev); err != nil {
			log.Debug().Err(err).Msg("chat: bad contract event")
			return
		}
		ev.Raw = args[0]
		if ev.Type == "PlayerEliminated" && ev.RemainingSupply != nil && *ev.RemainingSupply == 1 {
			f.mu.Lock()
			f.gameEnded = true
			f.mu.Unlock()
			log.Info().Msg("chat: game ended, one duck remaining")
		}
		f.hub.Publish(events.TopicContract, ev)

	case EventGameStateUpdate:
		if f.game != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), gameRefreshTimeout)
				defer cancel()
				if _, err := f.game.Refresh(ctx); err != nil {
					log.Debug().Err(err).Msg("chat: game refresh after push failed")
				}
			}()
		}

	case EventLeaderboardUpdate:
		var lb domain.Leaderboard
		if err := json.Unmarshal(args[0], &lb); err != nil {
			log.Debug().Err(err).Msg("chat: bad leaderboard payload")
			return
		}
		if f.leaderboard != nil {
			f.leaderboard.PushLeaderboard(lb)
		}
	}
}

func (f *ChatFeed) replace(history []domain.ChatMessage) {
	f.mu.Lock()
	f.msgs = f.msgs[:0]
	f.seen = make(map[string]struct{}, len(history))
	for _, m := range history {
		f.appendLocked(m)
	}
	f.mu.Unlock()
}

func (f *ChatFeed) add(m domain.ChatMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendLocked(m)
}

func (f *ChatFeed) appendLocked(m domain.ChatMessage) bool {
	k := messageKey(m)
	if _, dup := f.seen[k]; dup {
		return false
	}
	f.seen[k] = struct{}{}
	f.msgs = append(f.msgs, m)
	if over := len(f.msgs) - f.limit; over > 0 {
		for _, old := range f.msgs[:over] {
			delete(f.seen, messageKey(old))
		}
		f.msgs = append([]domain.ChatMessage(nil), f.msgs[over:]...)
	}
	return true
}

// History returns a copy of the log, oldest first.
func (f *ChatFeed) History() []domain.ChatMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.ChatMessage, len(f.msgs))
	copy(out, f.msgs)
	return out
}

// GameEnded reports whether a contract event announced the last duck.
func (f *ChatFeed) GameEnded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.gameEnded
}

// Connected reports whether the transport is up.
func (f *ChatFeed) Connected() bool {
	return f.transport != nil && f.transport.Connected()
}

type outgoing struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// Send emits a chat message. The caller validates; the message appears in
// History only once the server broadcasts it back.
func (f *ChatFeed) Send(user, text string) error {
	if f.transport == nil {
		return ErrNotConnected
	}
	return f.transport.Emit(EventChatMessage, outgoing{User: user, Message: text})
}
