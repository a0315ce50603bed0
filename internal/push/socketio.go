package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"lora-control/internal/lora"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO packet types, carried inside an Engine.IO message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// SocketIO subscribes to one event on the default namespace of a Socket.IO
// server using the websocket transport only.
type SocketIO struct {
	URL            string
	Event          string
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Logger         *slog.Logger
}

// Endpoint converts an http(s) base URL into the Engine.IO websocket URL.
func (s *SocketIO) Endpoint() (string, error) {
	u, err := url.Parse(strings.TrimSpace(s.URL))
	if err != nil {
		return "", fmt.Errorf("push url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("push url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	return u.String(), nil
}

func (s *SocketIO) event() string {
	if s.Event == "" {
		return DefaultEvent
	}
	return s.Event
}

func (s *SocketIO) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *SocketIO) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// Subscribe dials once synchronously so a bad URL fails fast, then keeps the
// connection alive in the background, redialing after ReconnectDelay.
func (s *SocketIO) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	endpoint, err := s.Endpoint()
	if err != nil {
		return nil, err
	}
	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	delay := s.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}

	go func() {
		defer close(done)
		for {
			closed := make(chan struct{})
			go func(c *websocket.Conn) {
				select {
				case <-ctx.Done():
					_ = c.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
					c.Close()
				case <-closed:
				}
			}(conn)
			err := s.serve(conn, h)
			close(closed)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			s.logger().Warn("push disconnected", "err", err, "retry_in", delay)

			for {
				if !sleepCtx(ctx, delay) {
					return
				}
				conn, err = s.dial(ctx, endpoint)
				if err == nil {
					s.logger().Info("push reconnected", "url", endpoint)
					break
				}
				s.logger().Debug("push reconnect failed", "err", err)
			}
		}
	}()

	return &handle{stop: cancel, done: done}, nil
}

// serve runs the read loop for one connection until it fails.
func (s *SocketIO) serve(conn *websocket.Conn, h Handler) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		reply, patch, err := s.handleFrame(msg)
		if err != nil {
			s.logger().Debug("push frame ignored", "err", err)
			continue
		}
		if reply != "" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return err
			}
		}
		if patch != nil {
			h(patch)
		}
	}
}

var errServerClosed = errors.New("server closed the engine.io session")

// handleFrame interprets one Engine.IO text frame and returns what to send
// back and the decoded patch, if the frame carried the subscribed event.
func (s *SocketIO) handleFrame(msg []byte) (string, []lora.Actuator, error) {
	if len(msg) == 0 {
		return "", nil, errors.New("empty frame")
	}
	switch msg[0] {
	case eioOpen:
		return string([]byte{eioMessage, sioConnect}), nil, nil
	case eioPing:
		return string([]byte{eioPong}) + string(msg[1:]), nil, nil
	case eioClose:
		return "", nil, errServerClosed
	case eioMessage:
	default:
		return "", nil, fmt.Errorf("unhandled engine.io packet %q", msg[0])
	}

	body := msg[1:]
	if len(body) == 0 {
		return "", nil, errors.New("empty socket.io packet")
	}
	switch body[0] {
	case sioConnect:
		s.logger().Debug("push connected", "payload", string(body[1:]))
		return "", nil, nil
	case sioConnectError:
		return "", nil, fmt.Errorf("socket.io connect error: %s", body[1:])
	case sioDisconnect:
		return string([]byte{eioMessage, sioConnect}), nil, nil
	case sioEvent:
		name, data, err := decodeEvent(body[1:])
		if err != nil {
			return "", nil, err
		}
		if name != s.event() {
			return "", nil, nil
		}
		patch, err := Decode(data)
		if err != nil {
			return "", nil, err
		}
		return "", patch, nil
	default:
		return "", nil, fmt.Errorf("unhandled socket.io packet %q", body[0])
	}
}

// decodeEvent splits `[<ack id>]["name", data]` into the event name and its
// first argument. Events on other namespaces are rejected.
func decodeEvent(b []byte) (string, json.RawMessage, error) {
	if len(b) > 0 && b[0] == '/' {
		return "", nil, errors.New("event on a non-default namespace")
	}
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	var args []json.RawMessage
	if err := json.Unmarshal(b[i:], &args); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("event without a name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	if len(args) < 2 {
		return name, nil, errors.New("event without data")
	}
	return name, args[1], nil
}
