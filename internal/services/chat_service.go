package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/punkhunt/internal/domain"
)

// DefaultChatMaxLen matches the server's per-message limit.
const DefaultChatMaxLen = 200

// ChatFeed is the realtime chat channel.
type ChatFeed interface {
	History() []domain.ChatMessage
	GameEnded() bool
	Connected() bool
	Send(user, text string) error
}

// ChatService validates outgoing trollbox messages and pages the history.
type ChatService struct {
	// Feed is the realtime channel messages travel over.
	Feed ChatFeed
	// Game supplies the winner check; optional.
	Game GameReader

	// MaxLen caps messages by rune length.
	MaxLen int
}

// NewChatService constructs a ChatService with the server's length limit.
func NewChatService(feed ChatFeed, game GameReader) *ChatService {
	return &ChatService{Feed: feed, Game: game, MaxLen: DefaultChatMaxLen}
}

// Send trims and clips text and emits it as the short form of address. The
// message shows up in History once the server broadcasts it.
func (s *ChatService) Send(ctx context.Context, address, text string) (domain.ChatMessage, error) {
	tr := otel.Tracer("services/ChatService")
	_, span := tr.Start(ctx, "Send", trace.WithAttributes(attribute.Int("len", len(text))))
	defer span.End()

	text = s.clip(strings.TrimSpace(text))
	switch {
	case text == "":
		return domain.ChatMessage{}, ErrEmptyMessage
	case strings.TrimSpace(address) == "":
		return domain.ChatMessage{}, ErrWalletDisconnected
	case s.closed():
		return domain.ChatMessage{}, ErrChatClosed
	case s.Feed == nil || !s.Feed.Connected():
		return domain.ChatMessage{}, ErrNotConnected
	}

	msg := domain.ChatMessage{User: ShortAddress(address), Message: text}
	if err := s.Feed.Send(msg.User, msg.Message); err != nil {
		span.RecordError(err)
		return domain.ChatMessage{}, ErrNotConnected
	}
	return msg, nil
}

func (s *ChatService) closed() bool {
	if s.Feed != nil && s.Feed.GameEnded() {
		return true
	}
	return s.Game != nil && s.Game.Snapshot().Data.IsGameOver()
}

// History returns the newest messages, oldest first. limit <= 0 returns
// everything.
func (s *ChatService) History(limit int) []domain.ChatMessage {
	if s.Feed == nil {
		return []domain.ChatMessage{}
	}
	all := s.Feed.History()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

// Closed reports whether sending is disabled because the game ended.
func (s *ChatService) Closed() bool { return s.closed() }

// clip truncates text to the configured maximum rune length.
func (s *ChatService) clip(text string) string {
	if s.MaxLen > 0 && utf8.RuneCountInString(text) > s.MaxLen {
		return string([]rune(text)[:s.MaxLen])
	}
	return text
}
