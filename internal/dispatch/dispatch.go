// Package dispatch turns a requested action into one command request and
// tracks it through the pending tracker until it settles.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lora-control/internal/lora"
	"lora-control/internal/pending"
)

// Commander issues a single control request to the backend.
type Commander interface {
	Command(ctx context.Context, id string, action lora.Action) error
}

// Notifier surfaces transient user-facing messages.
type Notifier interface {
	Success(msg string)
	Warn(msg string)
	Error(msg string)
}

// Journal records settled outcomes. Implementations must be safe for concurrent use.
type Journal interface {
	Record(ctx context.Context, o Outcome) error
}

// AliasResolver maps a device id to its display alias.
type AliasResolver interface {
	Alias(id string) string
}

type Status string

const (
	StatusOK       Status = "ok"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

type Outcome struct {
	ID      string      `json:"id"`
	Alias   string      `json:"alias"`
	Action  lora.Action `json:"accion"`
	Status  Status      `json:"estado"`
	Message string      `json:"mensaje"`
	Err     error       `json:"-"`
	At      time.Time   `json:"fecha"`
}

func (o Outcome) OK() bool { return o.Status == StatusOK }

// Timeout reports whether the request was cut off by the command timeout.
func (o Outcome) Timeout() bool {
	return o.Status == StatusFailed && errors.Is(o.Err, context.DeadlineExceeded)
}

type Dispatcher struct {
	commander Commander
	tracker   *pending.Tracker
	aliases   AliasResolver
	notifier  Notifier
	journal   Journal
	timeout   time.Duration
	logger    *slog.Logger
}

type Option func(*Dispatcher)

func WithJournal(j Journal) Option { return func(d *Dispatcher) { d.journal = j } }

func WithNotifier(n Notifier) Option { return func(d *Dispatcher) { d.notifier = n } }

func WithTimeout(timeout time.Duration) Option { return func(d *Dispatcher) { d.timeout = timeout } }

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func New(commander Commander, tracker *pending.Tracker, aliases AliasResolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		commander: commander,
		tracker:   tracker,
		aliases:   aliases,
		notifier:  discard{},
		timeout:   15 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs action on id and notifies the user of the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, id string, action lora.Action) Outcome {
	alias := d.aliases.Alias(id)
	o := d.Execute(ctx, id, alias, action)
	switch o.Status {
	case StatusOK:
		d.notifier.Success(o.Message)
	default:
		d.notifier.Error("❌ " + o.Message)
	}
	return o
}

// Execute performs the request without notifying. A successful request leaves
// the pending entry in place; the next merge that shows the expected state
// clears it. Rejections and transport errors clear it right away, unless a
// newer action for the same device has replaced it meanwhile.
func (d *Dispatcher) Execute(ctx context.Context, id, alias string, action lora.Action) Outcome {
	o := Outcome{ID: id, Alias: alias, Action: action}
	token := d.tracker.Set(id, action)

	reqCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	err := d.commander.Command(reqCtx, id, action)
	o.At = time.Now()
	o.Err = err

	var apiErr *lora.APIError
	switch {
	case err == nil:
		o.Status = StatusOK
		o.Message = fmt.Sprintf("✅ %s %s correctamente", alias, action.Past())
		d.logger.Debug("command accepted", "id", id, "alias", alias, "action", action)
	case errors.As(err, &apiErr):
		d.tracker.ClearIf(id, token)
		o.Status = StatusRejected
		o.Message = apiErr.Message
		if o.Message == "" {
			o.Message = fmt.Sprintf("Error al %s %s", action, alias)
		}
		d.logger.Warn("command rejected", "id", id, "alias", alias, "action", action, "status", apiErr.Status, "message", apiErr.Message)
	default:
		d.tracker.ClearIf(id, token)
		o.Status = StatusFailed
		o.Message = fmt.Sprintf("Error inesperado al procesar %s", alias)
		d.logger.Error("command failed", "id", id, "alias", alias, "action", action, "err", err)
	}

	if d.journal != nil {
		if jerr := d.journal.Record(context.WithoutCancel(ctx), o); jerr != nil {
			d.logger.Warn("journal write failed", "id", id, "err", jerr)
		}
	}
	return o
}

type discard struct{}

func (discard) Success(string) {}
func (discard) Warn(string)    {}
func (discard) Error(string)   {}
