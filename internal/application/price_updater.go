package application

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type PriceRefresher interface {
	RefreshPrices(ctx context.Context) error
}

// PriceUpdater keeps the quote book warm: it refreshes once on start and then on
// every tick until stopped.
type PriceUpdater struct {
	service  PriceRefresher
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewPriceUpdater(service PriceRefresher, interval time.Duration) *PriceUpdater {
	return &PriceUpdater{
		service:  service,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (u *PriceUpdater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	slog.Info("Price updater started", "interval", u.interval)
	u.refresh(ctx)

	for {
		select {
		case <-ticker.C:
			u.refresh(ctx)
		case <-u.stopChan:
			slog.Info("Price updater stopped")
			return
		case <-ctx.Done():
			slog.Info("Price updater stopped due to context cancellation")
			return
		}
	}
}

func (u *PriceUpdater) refresh(ctx context.Context) {
	if err := u.service.RefreshPrices(ctx); err != nil {
		slog.Warn("Some prices could not be refreshed", "error", err)
		return
	}
	slog.Debug("Prices refreshed")
}

// Stop is safe to call more than once.
func (u *PriceUpdater) Stop() {
	u.stopOnce.Do(func() { close(u.stopChan) })
}
