// internal/monitor/price.go
package monitor

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/solkunai/LetsCook-APP-sub002/internal/market"
	"github.com/solkunai/LetsCook-APP-sub002/internal/quote"
	"go.uber.org/zap"
)

const (
	defaultInterval = 2 * time.Second
	pollTimeout     = 10 * time.Second
)

// Snapshotter is implemented by *quote.Service.
type Snapshotter interface {
	Snapshot(ctx context.Context, target market.Target) (*quote.Snapshot, error)
}

// PriceUpdate is one observation of a launch's price.
type PriceUpdate struct {
	Mint     string
	Current  float64
	Initial  float64
	Percent  float64
	Snapshot *quote.Snapshot
	At       time.Time
}

// PriceUpdateCallback is called after every successful poll.
type PriceUpdateCallback func(update PriceUpdate)

// PriceMonitor polls the curve price of one launch.
type PriceMonitor struct {
	source       Snapshotter
	target       market.Target
	interval     time.Duration
	initialPrice float64
	logger       *zap.Logger
	callback     PriceUpdateCallback
}

// NewPriceMonitor creates a monitor. The first successful poll fixes the
// initial price that percent changes are measured against.
func NewPriceMonitor(source Snapshotter, target market.Target, interval time.Duration,
	logger *zap.Logger, callback PriceUpdateCallback) *PriceMonitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &PriceMonitor{
		source:   source,
		target:   target,
		interval: interval,
		logger:   logger.Named("price-monitor"),
		callback: callback,
	}
}

// Run polls until ctx is cancelled and returns ctx.Err().
func (pm *PriceMonitor) Run(ctx context.Context) error {
	pm.logger.Info("Starting price monitor",
		zap.String("mint", pm.target.Mint.String()),
		zap.Duration("interval", pm.interval))

	pm.updatePrice(ctx)

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.updatePrice(ctx)
		case <-ctx.Done():
			pm.logger.Debug("Price monitor stopped")
			return ctx.Err()
		}
	}
}

func (pm *PriceMonitor) updatePrice(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	snap, err := pm.source.Snapshot(pollCtx, pm.target)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		pm.logger.Error("Failed to get curve price", zap.Error(err))
		return
	}

	if pm.initialPrice == 0 {
		pm.initialPrice = snap.Price
	}

	if pm.callback != nil {
		pm.callback(PriceUpdate{
			Mint:     snap.State.Mint,
			Current:  snap.Price,
			Initial:  pm.initialPrice,
			Percent:  PercentChange(pm.initialPrice, snap.Price),
			Snapshot: snap,
			At:       time.Now(),
		})
	}
}

// PercentChange is the move from initial to current in percent, floored to
// two decimals.
func PercentChange(initial, current float64) float64 {
	if initial <= 0 {
		return 0
	}
	pct := (current - initial) / initial * 100
	return math.Floor(pct*100) / 100
}
