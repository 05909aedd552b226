// Package realtime is a minimal Socket.IO v5 client (Engine.IO v4, websocket
// transport only) and the chat feed built on it.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Emit while no session is open.
var ErrNotConnected = errors.New("socket not connected")

// Engine.IO and Socket.IO packet prefixes used on the websocket transport.
const (
	pktOpen       = "0"
	pktClose      = "1"
	pktPing       = "2"
	pktPong       = "3"
	pktConnect    = "40"
	pktDisconnect = "41"
	pktEvent      = "42"
	pktConnectErr = "44"
)

const (
	writeWait          = 10 * time.Second
	handshakeWait      = 10 * time.Second
	defaultPingWindow  = 45 * time.Second
	defaultInitialWait = time.Second
	defaultMaxWait     = 30 * time.Second
)

// EventFunc receives one Socket.IO event with its JSON arguments.
type EventFunc func(event string, args []json.RawMessage)

// Socket keeps one Socket.IO session alive, reconnecting with exponential
// backoff until its context ends.
type Socket struct {
	url        string
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	handler EventFunc
	onState func(connected bool)

	connected atomic.Bool
}

// SocketOption configures a Socket.
type SocketOption func(*Socket)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) SocketOption {
	return func(s *Socket) { s.dialer = d }
}

// WithBackOff overrides the reconnect policy.
func WithBackOff(f func() backoff.BackOff) SocketOption {
	return func(s *Socket) { s.newBackOff = f }
}

// WithStateFunc registers a callback for connect and disconnect.
func WithStateFunc(f func(connected bool)) SocketOption {
	return func(s *Socket) { s.onState = f }
}

// NewSocket creates a client for the server at baseURL (http, https, ws or
// wss). Nothing is dialed until Run.
func NewSocket(baseURL string, opts ...SocketOption) (*Socket, error) {
	u, err := EndpointURL(baseURL)
	if err != nil {
		return nil, err
	}
	s := &Socket{
		url:    u,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeWait},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = defaultInitialWait
			b.MaxInterval = defaultMaxWait
			return b
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// EndpointURL converts a server base URL into its Engine.IO websocket
// endpoint.
func EndpointURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("realtime url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("realtime url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("realtime url: missing host")
	}
	u.Path = "/socket.io/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	return u.String(), nil
}

// Handle sets the event callback. Call it before Run.
func (s *Socket) Handle(f EventFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = f
}

// Connected reports whether a namespace session is open.
func (s *Socket) Connected() bool { return s.connected.Load() }

// Run dials and serves sessions until ctx is done. Dial and session errors
// are logged and retried.
func (s *Socket) Run(ctx context.Context) error {
	b := s.newBackOff()
	for {
		err := s.session(ctx, b)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("realtime: giving up: %w", err)
		}
		log.Warn().Err(err).Dur("retry_in", wait).Msg("realtime session ended")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// session runs one connection from dial to close.
func (s *Socket) session(ctx context.Context, b backoff.BackOff) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	window, err := s.handshake(conn)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.setConnected(true)
	b.Reset()
	log.Info().Str("url", s.url).Msg("realtime connected")

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		s.setConnected(false)
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(window))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		msg := string(data)
		switch {
		case msg == pktPing:
			if err := s.write(conn, pktPong); err != nil {
				return err
			}
		case strings.HasPrefix(msg, pktEvent):
			s.dispatch(msg[len(pktEvent):])
		case strings.HasPrefix(msg, pktDisconnect), msg == pktClose:
			return errors.New("server closed the session")
		}
	}
}

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
}

// handshake consumes the Engine.IO open packet, joins the default namespace
// and returns the read window implied by the server's ping settings.
func (s *Socket) handshake(conn *websocket.Conn) (time.Duration, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("handshake: %w", err)
	}
	msg := string(data)
	if !strings.HasPrefix(msg, pktOpen) {
		return 0, fmt.Errorf("handshake: unexpected packet %q", msg)
	}
	var open openPacket
	if err := json.Unmarshal([]byte(msg[len(pktOpen):]), &open); err != nil {
		return 0, fmt.Errorf("handshake: %w", err)
	}
	window := defaultPingWindow
	if open.PingInterval > 0 {
		window = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	}

	if err := s.write(conn, pktConnect); err != nil {
		return 0, err
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("namespace connect: %w", err)
		}
		msg := string(data)
		switch {
		case strings.HasPrefix(msg, pktConnectErr):
			return 0, fmt.Errorf("namespace connect refused: %s", msg[len(pktConnectErr):])
		case strings.HasPrefix(msg, pktConnect):
			return window, nil
		case msg == pktPing:
			if err := s.write(conn, pktPong); err != nil {
				return 0, err
			}
		}
	}
}

func (s *Socket) dispatch(payload string) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &parts); err != nil || len(parts) == 0 {
		log.Debug().Err(err).Msg("realtime: malformed event")
		return
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		log.Debug().Err(err).Msg("realtime: event without name")
		return
	}
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(name, parts[1:])
	}
}

// Emit sends an event with JSON-encodable arguments.
func (s *Socket) Emit(event string, args ...any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || !s.Connected() {
		return ErrNotConnected
	}
	body, err := json.Marshal(append([]any{event}, args...))
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return s.write(conn, pktEvent+string(body))
}

func (s *Socket) write(conn *websocket.Conn, msg string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *Socket) setConnected(on bool) {
	if s.connected.Swap(on) == on {
		return
	}
	if s.onState != nil {
		s.onState(on)
	}
}
