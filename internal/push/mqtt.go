package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTT receives actuator arrays published on a single topic. The topic is
// subscribed again on every (re)connect.
type MQTT struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Logger   *slog.Logger

	ConnectTimeout time.Duration
}

type mqttSubscription struct {
	client mqtt.Client
	topic  string
	once   sync.Once
	closed chan struct{}
}

func (s *mqttSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		if s.client.IsConnected() {
			tok := s.client.Unsubscribe(s.topic)
			if tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
				err = fmt.Errorf("unsubscribe %s: %w", s.topic, tok.Error())
			}
		}
		s.client.Disconnect(250)
	})
	return err
}

func (m *MQTT) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	if m.Broker == "" || m.Topic == "" {
		return nil, errors.New("mqtt: broker and topic are required")
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clientID := m.ClientID
	if clientID == "" {
		clientID = "loractl-" + uuid.NewString()
	}
	timeout := m.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		patch, err := Decode(msg.Payload())
		if err != nil {
			logger.Debug("mqtt payload ignored", "topic", msg.Topic(), "err", err)
			return
		}
		h(patch)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.Broker).
		SetClientID(clientID).
		SetOrderMatters(true).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout).
		SetKeepAlive(60 * time.Second)
	if m.Username != "" {
		opts.SetUsername(m.Username)
		opts.SetPassword(m.Password)
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		tok := c.Subscribe(m.Topic, m.QoS, onMessage)
		tok.Wait()
		if err := tok.Error(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", m.Topic, "err", err)
			return
		}
		logger.Debug("mqtt subscribed", "topic", m.Topic, "qos", m.QoS)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "err", err)
	})

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", m.Broker, err)
	}

	sub := &mqttSubscription{client: client, topic: m.Topic, closed: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
		case <-sub.closed:
			return
		}
		_ = sub.Unsubscribe()
	}()
	return sub, nil
}
