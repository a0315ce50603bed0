package push

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Poll re-fetches the whole fleet on an interval and delivers it as a patch.
// It stands in for a push server when none is reachable.
type Poll struct {
	Source   Lister
	Interval time.Duration
	Logger   *slog.Logger
}

func (p *Poll) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	if p.Source == nil {
		return nil, errors.New("poll: no source")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			devices, err := p.Source.ListActuators(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Debug("poll failed", "err", err)
				}
				continue
			}
			h(devices)
		}
	}()
	return &handle{stop: cancel, done: done}, nil
}
