package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/solkunai/LetsCook-APP-sub002/internal/market"
	"github.com/solkunai/LetsCook-APP-sub002/internal/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSource returns prices in order, repeating the last one.
type scriptedSource struct {
	mu     sync.Mutex
	prices []float64
	errs   []error
	calls  int
}

func (s *scriptedSource) Snapshot(context.Context, market.Target) (*quote.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.prices) {
		i = len(s.prices) - 1
	}
	return &quote.Snapshot{State: market.State{Mint: "mint"}, Price: s.prices[i]}, nil
}

func collect(t *testing.T, source Snapshotter, want int) []PriceUpdate {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		updates []PriceUpdate
	)
	pm := NewPriceMonitor(source, market.Target{}, time.Millisecond, zap.NewNop(), func(u PriceUpdate) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, u)
		if len(updates) == want {
			cancel()
		}
	})

	done := make(chan error, 1)
	go func() { done <- pm.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]PriceUpdate(nil), updates...)
}

func TestPriceMonitorReportsChange(t *testing.T) {
	source := &scriptedSource{prices: []float64{1e-9, 1.5e-9, 0.5e-9}}
	updates := collect(t, source, 3)
	require.GreaterOrEqual(t, len(updates), 3)

	assert.Equal(t, 0.0, updates[0].Percent)
	assert.Equal(t, 1e-9, updates[1].Initial)
	assert.InDelta(t, 50.0, updates[1].Percent, 0.02)
	assert.InDelta(t, -50.0, updates[2].Percent, 0.02)
	assert.Equal(t, "mint", updates[2].Mint)
	assert.NotNil(t, updates[2].Snapshot)
}

func TestPriceMonitorSkipsFailedPolls(t *testing.T) {
	source := &scriptedSource{
		prices: []float64{2e-9, 2e-9, 4e-9},
		errs:   []error{errors.New("rpc down"), nil, nil},
	}
	updates := collect(t, source, 2)
	require.GreaterOrEqual(t, len(updates), 2)

	assert.Equal(t, 2e-9, updates[0].Initial, "initial price comes from the first successful poll")
	assert.InDelta(t, 100.0, updates[1].Percent, 0.02)
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, PercentChange(0, 5))
	assert.Equal(t, 10.0, PercentChange(1, 1.1))
	assert.Equal(t, 12.34, PercentChange(100, 112.345))
	assert.Equal(t, -25.0, PercentChange(4, 3))
}

func TestPriceThrottlerThrottling(t *testing.T) {
	outputCh := make(chan tea.Msg, 10)
	throttler := NewPriceThrottler(50*time.Millisecond, outputCh, zap.NewNop())

	for i := 0; i < 5; i++ {
		throttler.SendPriceUpdate(PriceUpdate{Current: float64(100 + i), Initial: 100})
	}

	stats := throttler.Stats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(3), stats.Coalesced)
	assert.Equal(t, 1, stats.Pending)
	assert.True(t, throttler.HasPendingUpdate())

	time.Sleep(60 * time.Millisecond)
	throttler.FlushPending()

	assert.Equal(t, uint64(2), throttler.Stats().Sent)
	assert.False(t, throttler.HasPendingUpdate())

	first := (<-outputCh).(PriceUpdate)
	last := (<-outputCh).(PriceUpdate)
	assert.Equal(t, 100.0, first.Current)
	assert.Equal(t, 104.0, last.Current, "only the latest pending update survives")
}

func TestPriceThrottlerFullChannel(t *testing.T) {
	outputCh := make(chan tea.Msg)
	throttler := NewPriceThrottler(time.Millisecond, outputCh, zap.NewNop())

	throttler.SendPriceUpdate(PriceUpdate{Current: 1})
	assert.True(t, throttler.HasPendingUpdate())

	stats := throttler.Stats()
	assert.Equal(t, uint64(0), stats.Sent)
	assert.Equal(t, 1, stats.Pending)
}

func TestPriceThrottlerPerMint(t *testing.T) {
	outputCh := make(chan tea.Msg, 10)
	throttler := NewPriceThrottler(time.Hour, outputCh, zap.NewNop())

	throttler.SendPriceUpdate(PriceUpdate{Mint: "alpha", Current: 1})
	throttler.SendPriceUpdate(PriceUpdate{Mint: "beta", Current: 2})
	throttler.SendPriceUpdate(PriceUpdate{Mint: "alpha", Current: 3})

	stats := throttler.Stats()
	assert.Equal(t, uint64(2), stats.Sent, "each mint gets its own interval")
	assert.Equal(t, 1, stats.Pending)

	assert.Equal(t, "alpha", (<-outputCh).(PriceUpdate).Mint)
	assert.Equal(t, "beta", (<-outputCh).(PriceUpdate).Mint)
}

func TestPriceThrottlerSkipsUnchangedPrice(t *testing.T) {
	outputCh := make(chan tea.Msg, 10)
	throttler := NewPriceThrottler(time.Millisecond, outputCh, zap.NewNop())

	throttler.SendPriceUpdate(PriceUpdate{Mint: "alpha", Current: 5})
	time.Sleep(5 * time.Millisecond)
	throttler.SendPriceUpdate(PriceUpdate{Mint: "alpha", Current: 5})

	stats := throttler.Stats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(1), stats.Unchanged)
	assert.False(t, throttler.HasPendingUpdate())
	assert.Len(t, outputCh, 1)
}

func TestPriceThrottlerConcurrentAccess(t *testing.T) {
	outputCh := make(chan tea.Msg, 100)
	throttler := NewPriceThrottler(10*time.Millisecond, outputCh, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go throttler.RunFlusher(ctx)
	go func() {
		for {
			select {
			case <-outputCh:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				throttler.SendPriceUpdate(PriceUpdate{Current: float64(id*1000 + j)})
			}
		}(i)
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return !throttler.HasPendingUpdate()
	}, time.Second, 5*time.Millisecond)

	stats := throttler.Stats()
	assert.Greater(t, stats.Sent, uint64(0))
	assert.LessOrEqual(t, stats.Sent+stats.Coalesced, uint64(1000))
	assert.Equal(t, 0, stats.Pending)
}
