// Package poller is the explicit poll-interval abstraction behind the
// dashboard's "live updates": a fixed-interval tick driving a refresh
// function. It is a poll, not a subscription; there is no push channel.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Poller struct {
	interval time.Duration
	refresh  func(context.Context)
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func New(interval time.Duration, refresh func(context.Context), logger *zap.Logger) *Poller {
	return &Poller{interval: interval, refresh: refresh, logger: logger}
}

// Start begins polling until Stop is called or ctx is cancelled. The first
// refresh runs immediately so a snapshot exists before the first tick.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	go func() {
		p.refresh(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("poller stopped")
				return
			case <-ticker.C:
				p.refresh(ctx)
			}
		}
	}()
}

func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.cancel()
	p.running = false
}
