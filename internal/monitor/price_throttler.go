package monitor

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// ThrottleStats counts what a PriceThrottler did with incoming updates.
type ThrottleStats struct {
	Sent      uint64
	Coalesced uint64
	Unchanged uint64
	Pending   int
}

// PriceThrottler forwards curve price updates to a bubbletea channel at most
// once per interval per mint. Updates for a mint arriving in between replace
// that mint's pending update, and an update repeating the last price sent
// for its mint is skipped.
type PriceThrottler struct {
	mu       sync.RWMutex
	interval time.Duration
	outputCh chan tea.Msg
	logger   *zap.Logger

	lastSent  map[string]time.Time
	lastPrice map[string]float64
	pending   map[string]PriceUpdate
	stats     ThrottleStats
}

// NewPriceThrottler creates a throttler writing to outputCh.
func NewPriceThrottler(interval time.Duration, outputCh chan tea.Msg, logger *zap.Logger) *PriceThrottler {
	return &PriceThrottler{
		interval:  interval,
		outputCh:  outputCh,
		logger:    logger.Named("price-throttler"),
		lastSent:  make(map[string]time.Time),
		lastPrice: make(map[string]float64),
		pending:   make(map[string]PriceUpdate),
	}
}

// SendPriceUpdate sends update or keeps it pending for its mint. Safe for
// concurrent use and usable directly as a PriceUpdateCallback.
func (pt *PriceThrottler) SendPriceUpdate(update PriceUpdate) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	mint := update.Mint
	if last, seen := pt.lastPrice[mint]; seen && last == update.Current {
		if _, waiting := pt.pending[mint]; !waiting {
			pt.stats.Unchanged++
			return
		}
	}

	now := time.Now()
	if since := now.Sub(pt.lastSent[mint]); since < pt.interval {
		pt.hold(update)
		pt.logger.Debug("Curve price update throttled",
			zap.String("mint", mint),
			zap.Float64("price", update.Current),
			zap.Duration("since_last", since))
		return
	}

	if !pt.send(update, now) {
		pt.hold(update)
		pt.logger.Warn("Price update channel full, keeping update pending",
			zap.String("mint", mint),
			zap.Float64("price", update.Current))
	}
}

// FlushPending sends every pending update whose mint interval has passed.
func (pt *PriceThrottler) FlushPending() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	now := time.Now()
	for mint, update := range pt.pending {
		if now.Sub(pt.lastSent[mint]) < pt.interval {
			continue
		}
		if !pt.send(update, now) {
			pt.logger.Debug("Cannot flush pending updates, channel still full",
				zap.Int("pending", len(pt.pending)))
			return
		}
	}
}

func (pt *PriceThrottler) hold(update PriceUpdate) {
	if _, ok := pt.pending[update.Mint]; ok {
		pt.stats.Coalesced++
	}
	pt.pending[update.Mint] = update
}

// send must be called with mu held.
func (pt *PriceThrottler) send(update PriceUpdate, now time.Time) bool {
	select {
	case pt.outputCh <- update:
	default:
		return false
	}
	pt.lastSent[update.Mint] = now
	pt.lastPrice[update.Mint] = update.Current
	delete(pt.pending, update.Mint)
	pt.stats.Sent++
	return true
}

// Stats returns a copy of the throttler counters.
func (pt *PriceThrottler) Stats() ThrottleStats {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	stats := pt.stats
	stats.Pending = len(pt.pending)
	return stats
}

// HasPendingUpdate reports whether any mint has an update waiting.
func (pt *PriceThrottler) HasPendingUpdate() bool {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return len(pt.pending) > 0
}

// RunFlusher flushes pending updates every interval until ctx is done.
func (pt *PriceThrottler) RunFlusher(ctx context.Context) {
	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pt.FlushPending()
		case <-ctx.Done():
			stats := pt.Stats()
			pt.logger.Debug("Price throttler stopped",
				zap.Uint64("sent", stats.Sent),
				zap.Uint64("coalesced", stats.Coalesced),
				zap.Uint64("unchanged", stats.Unchanged))
			return
		}
	}
}
