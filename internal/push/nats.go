package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS receives actuator arrays on one subject.
type NATS struct {
	URL     string
	Subject string
	Logger  *slog.Logger
}

type natsSubscription struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	once   sync.Once
	closed chan struct{}
}

func (s *natsSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.sub.Unsubscribe()
		s.conn.Close()
	})
	return err
}

func (n *NATS) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	if n.Subject == "" {
		return nil, errors.New("nats: subject is required")
	}
	url := n.URL
	if url == "" {
		url = nats.DefaultURL
	}
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(url,
		nats.Name("loractl"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}

	sub, err := nc.Subscribe(n.Subject, func(msg *nats.Msg) {
		patch, err := Decode(msg.Data)
		if err != nil {
			logger.Debug("nats payload ignored", "subject", msg.Subject, "err", err)
			return
		}
		h(patch)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe %s: %w", n.Subject, err)
	}

	s := &natsSubscription{conn: nc, sub: sub, closed: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
		case <-s.closed:
			return
		}
		_ = s.Unsubscribe()
	}()
	return s, nil
}
