// Package push delivers live actuator snapshots from the backend's push
// channel. Every transport hands the handler a patch in receipt order, one
// delivery at a time.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lora-control/internal/lora"
)

// DefaultEvent is the event name the backend emits actuator state under.
const DefaultEvent = "estado-actuadores"

var ErrUnknownTransport = errors.New("unknown push transport")

type Handler func(patch []lora.Actuator)

// Subscription is a disposable handle. Unsubscribe stops deliveries and waits
// for the transport to shut down.
type Subscription interface {
	Unsubscribe() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) (Subscription, error)
}

// Decode reads a push payload. The backend normally sends an array, but a
// lone snapshot object is accepted too.
func Decode(payload []byte) ([]lora.Actuator, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	if payload[0] == '{' {
		var one lora.Actuator
		if err := json.Unmarshal(payload, &one); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		return []lora.Actuator{one}, nil
	}
	var many []lora.Actuator
	if err := json.Unmarshal(payload, &many); err != nil {
		return nil, fmt.Errorf("decode snapshots: %w", err)
	}
	return many, nil
}

type Config struct {
	// Transport is one of socketio, mqtt, nats or poll.
	Transport string
	URL       string
	Event     string

	MQTTBroker   string
	MQTTTopic    string
	MQTTUser     string
	MQTTPassword string

	NATSURL     string
	NATSSubject string

	PollInterval   time.Duration
	ReconnectDelay time.Duration
}

// Lister is the polling source, normally *lora.Client.
type Lister interface {
	ListActuators(ctx context.Context) ([]lora.Actuator, error)
}

// New builds the subscriber selected by cfg.Transport.
func New(cfg Config, source Lister, logger *slog.Logger) (Subscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", "socketio", "socket.io", "ws":
		return &SocketIO{URL: cfg.URL, Event: cfg.Event, ReconnectDelay: cfg.ReconnectDelay, Logger: logger}, nil
	case "mqtt":
		return &MQTT{Broker: cfg.MQTTBroker, Topic: cfg.MQTTTopic, Username: cfg.MQTTUser, Password: cfg.MQTTPassword, Logger: logger}, nil
	case "nats":
		return &NATS{URL: cfg.NATSURL, Subject: cfg.NATSSubject, Logger: logger}, nil
	case "poll":
		return &Poll{Source: source, Interval: cfg.PollInterval, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}

// handle is the Subscription shared by the goroutine-backed transports.
type handle struct {
	stop func()
	done <-chan struct{}
}

func (h *handle) Unsubscribe() error {
	h.stop()
	<-h.done
	return nil
}

// Done is closed once the transport goroutine has exited.
func (h *handle) Done() <-chan struct{} { return h.done }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
