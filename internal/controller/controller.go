// Package controller owns the session state: the device registry, the
// pending tracker and the services that act on them. Nothing else holds
// registry or pending state.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lora-control/internal/dispatch"
	"lora-control/internal/groups"
	"lora-control/internal/lora"
	"lora-control/internal/pending"
	"lora-control/internal/push"
	"lora-control/internal/registry"
	"lora-control/internal/schedules"
	"lora-control/internal/view"
)

// Backend is everything the controller needs from the remote API.
type Backend interface {
	dispatch.Commander
	push.Lister
	groups.Backend
	schedules.Backend
}

type Options struct {
	Backend    Backend
	Subscriber push.Subscriber
	Notifier   dispatch.Notifier
	Journal    dispatch.Journal

	Locale           string
	CompanyID        string
	CommandTimeout   time.Duration
	PendingTTL       time.Duration
	GroupCacheTTL    time.Duration
	GroupConcurrency int

	Logger *slog.Logger
}

// DeviceView is a device as presented, with its in-flight action if any.
type DeviceView struct {
	lora.Actuator
	Pending lora.Action `json:"pendiente,omitempty"`
}

type Controller struct {
	backend    Backend
	subscriber push.Subscriber
	notifier   dispatch.Notifier
	registry   *registry.Registry
	tracker    *pending.Tracker
	dispatcher *dispatch.Dispatcher
	projector  *view.Projector
	groups     *groups.Service
	schedules  *schedules.Service
	pendingTTL time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	notify   chan struct{}
	onChange func(updated []lora.Actuator)
}

func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = silent{}
	}
	locale := opts.Locale
	if locale == "" {
		locale = "es"
	}

	reg := registry.New()
	tracker := pending.NewTracker()
	projector := view.NewProjector(locale)

	dopts := []dispatch.Option{dispatch.WithNotifier(notifier), dispatch.WithLogger(logger)}
	if opts.CommandTimeout > 0 {
		dopts = append(dopts, dispatch.WithTimeout(opts.CommandTimeout))
	}
	if opts.Journal != nil {
		dopts = append(dopts, dispatch.WithJournal(opts.Journal))
	}
	d := dispatch.New(opts.Backend, tracker, reg, dopts...)

	return &Controller{
		backend:    opts.Backend,
		subscriber: opts.Subscriber,
		notifier:   notifier,
		registry:   reg,
		tracker:    tracker,
		dispatcher: d,
		projector:  projector,
		groups: groups.NewService(opts.Backend, d, projector, groups.Config{
			CompanyID:   opts.CompanyID,
			CacheTTL:    opts.GroupCacheTTL,
			Concurrency: opts.GroupConcurrency,
			Logger:      logger,
		}),
		schedules:  schedules.NewService(opts.Backend, logger),
		pendingTTL: opts.PendingTTL,
		logger:     logger,
		notify:     make(chan struct{}),
	}
}

func (c *Controller) Groups() *groups.Service       { return c.groups }
func (c *Controller) Schedules() *schedules.Service { return c.schedules }
func (c *Controller) Registry() *registry.Registry  { return c.registry }
func (c *Controller) Pending() *pending.Tracker     { return c.tracker }
func (c *Controller) Projector() *view.Projector    { return c.projector }

// OnChange registers a callback run after every merge with the devices it
// touched. Set it before Watch.
func (c *Controller) OnChange(fn func(updated []lora.Actuator)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Load fetches the fleet and replaces the registry.
func (c *Controller) Load(ctx context.Context) error {
	devices, err := c.backend.ListActuators(ctx)
	if err != nil {
		return fmt.Errorf("load actuators: %w", err)
	}
	c.registry.Load(devices)
	c.logger.Debug("registry loaded", "devices", len(devices))
	c.changed()
	return nil
}

// Apply merges a push patch and clears every pending action the merged
// snapshots already satisfy.
func (c *Controller) Apply(patch []lora.Actuator) {
	updated := c.registry.Merge(patch)
	for _, d := range updated {
		action, ok := c.tracker.Get(d.ID)
		if ok && c.tracker.ClearIfSatisfied(d) {
			c.logger.Debug("pending cleared by merge", "id", d.ID, "action", action)
		}
	}
	c.changed()

	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil && len(updated) > 0 {
		fn(updated)
	}
}

// Watch subscribes to the push channel and sweeps stale pending entries until
// ctx is done.
func (c *Controller) Watch(ctx context.Context) error {
	stop, err := c.Start(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	stop()
	return nil
}

// Start subscribes Apply to the push channel before returning, then sweeps
// stale pending entries in the background. The returned stop function
// unsubscribes and waits for the sweeper to exit.
func (c *Controller) Start(ctx context.Context) (stop func(), err error) {
	if c.subscriber == nil {
		return nil, errors.New("no push subscriber configured")
	}
	sub, err := c.subscriber.Subscribe(ctx, c.Apply)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if c.pendingTTL <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(sweepInterval(c.pendingTTL))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.Sweep(now)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			if err := sub.Unsubscribe(); err != nil {
				c.logger.Debug("unsubscribe failed", "err", err)
			}
		})
	}, nil
}

func sweepInterval(ttl time.Duration) time.Duration {
	every := ttl / 4
	if every > 5*time.Second {
		every = 5 * time.Second
	}
	if every < 100*time.Millisecond {
		every = 100 * time.Millisecond
	}
	return every
}

// Sweep drops pending entries older than the configured TTL and warns once
// per dropped entry.
func (c *Controller) Sweep(now time.Time) []pending.Entry {
	expired := c.tracker.Expire(now, c.pendingTTL)
	for _, e := range expired {
		alias := c.registry.Alias(e.ID)
		c.logger.Warn("pending action expired", "id", e.ID, "action", e.Action, "since", e.Since)
		c.notifier.Warn(fmt.Sprintf("⚠️ %s no confirmó %s tras %s", alias, e.Action, c.pendingTTL))
	}
	if len(expired) > 0 {
		c.changed()
	}
	return expired
}

// Act resolves ref against the registry and dispatches action to it.
func (c *Controller) Act(ctx context.Context, ref string, action lora.Action) (dispatch.Outcome, error) {
	d, err := c.registry.Resolve(ref)
	if err != nil {
		return dispatch.Outcome{}, fmt.Errorf("%w: %q", err, ref)
	}
	o := c.dispatcher.Dispatch(ctx, d.ID, action)
	c.changed()
	return o, nil
}

// RunGroup fans action out to every member of the group ref names and
// reports the aggregate.
func (c *Controller) RunGroup(ctx context.Context, ref string, action lora.Action) (groups.Result, error) {
	g, err := c.groups.Find(ctx, ref)
	if err != nil {
		return groups.Result{}, err
	}
	res := c.groups.Run(ctx, g, action)
	groups.Report(res, c.notifier)
	c.changed()
	return res, nil
}

// WaitSettled blocks until id has no pending action.
func (c *Controller) WaitSettled(ctx context.Context, id string) error {
	for {
		c.mu.Lock()
		ch := c.notify
		c.mu.Unlock()
		if !c.tracker.Busy(id) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (c *Controller) Busy(id string) bool { return c.tracker.Busy(id) }

// View projects the registry through criteria.
func (c *Controller) View(criteria view.Criteria) []DeviceView {
	return c.decorate(c.projector.Project(c.registry.All(), criteria))
}

// Device returns one device by id or alias.
func (c *Controller) Device(ref string) (DeviceView, error) {
	d, err := c.registry.Resolve(ref)
	if err != nil {
		return DeviceView{}, fmt.Errorf("%w: %q", err, ref)
	}
	return c.decorate([]lora.Actuator{d})[0], nil
}

// Members returns a group's members with live state, sorted like any device list.
func (c *Controller) Members(g lora.Group) []DeviceView {
	return c.decorate(c.projector.Members(g, c.registry.All()))
}

func (c *Controller) decorate(devices []lora.Actuator) []DeviceView {
	snap := c.tracker.Snapshot()
	out := make([]DeviceView, len(devices))
	for i, d := range devices {
		out[i] = DeviceView{Actuator: d, Pending: snap[d.ID]}
	}
	return out
}

// changed wakes every WaitSettled caller.
func (c *Controller) changed() {
	c.mu.Lock()
	close(c.notify)
	c.notify = make(chan struct{})
	c.mu.Unlock()
}

type silent struct{}

func (silent) Success(string) {}
func (silent) Warn(string)    {}
func (silent) Error(string)   {}
