package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/solkunai/LetsCook-APP-sub002/internal/market"
	"github.com/solkunai/LetsCook-APP-sub002/internal/monitor"
	"github.com/solkunai/LetsCook-APP-sub002/internal/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQuoter struct {
	snapshot *quote.Snapshot
	err      error
	lastBuy  float64
	lastSell float64
}

func (f *fakeQuoter) Snapshot(context.Context, market.Target) (*quote.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeQuoter) Buy(_ context.Context, _ market.Target, sol float64) (*quote.BuyQuote, error) {
	f.lastBuy = sol
	if f.err != nil {
		return nil, f.err
	}
	return &quote.BuyQuote{
		Snapshot:     f.snapshot,
		SolIn:        sol,
		TokensOut:    1_500_000,
		MinTokensOut: 1_480_000,
		SlippageBps:  100,
	}, nil
}

func (f *fakeQuoter) Sell(_ context.Context, _ market.Target, tokens float64) (*quote.SellQuote, error) {
	f.lastSell = tokens
	if f.err != nil {
		return nil, f.err
	}
	return &quote.SellQuote{Snapshot: f.snapshot, TokensIn: tokens, SolOut: 0.25, SlippageBps: 100}, nil
}

func testSnapshot() *quote.Snapshot {
	return &quote.Snapshot{
		CurveType:          "linear",
		Price:              1e-9,
		PriceText:          "0.000000001",
		MarketCapText:      "1.000 SOL",
		SoldText:           "0.00",
		SupplyText:         "1.00B",
		GraduationProgress: 0.5,
		State:              market.State{TotalSupply: 1e9, TokensSold: 2.5e8},
	}
}

func newTestCalculator(q Quoter, updates <-chan tea.Msg) Calculator {
	return NewCalculator(context.Background(), q, market.Target{}, updates, zap.NewNop())
}

func update(t *testing.T, c Calculator, msg tea.Msg) (Calculator, tea.Cmd) {
	t.Helper()
	m, cmd := c.Update(msg)
	next, ok := m.(Calculator)
	require.True(t, ok)
	return next, cmd
}

func typeText(t *testing.T, c Calculator, text string) Calculator {
	t.Helper()
	c, _ = update(t, c, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return c
}

func TestToggleSide(t *testing.T) {
	c := newTestCalculator(&fakeQuoter{}, nil)
	assert.Equal(t, quote.Buy, c.Side())

	c, cmd := update(t, c, tea.KeyMsg{Type: tea.KeyTab})
	assert.Nil(t, cmd)
	assert.Equal(t, quote.Sell, c.Side())
	assert.Equal(t, "tokens to sell", c.input.Placeholder)

	c, _ = update(t, c, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, quote.Buy, c.Side())
}

func TestBuyQuoteFlow(t *testing.T) {
	q := &fakeQuoter{snapshot: testSnapshot()}
	c := newTestCalculator(q, nil)

	c = typeText(t, c, "1.5")
	assert.Equal(t, "1.5", c.input.Value())

	c, cmd := update(t, c, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, BuyQuoteMsg{}, msg)
	assert.Equal(t, 1.5, q.lastBuy)

	c, _ = update(t, c, msg)
	view := c.View()
	assert.Contains(t, view, "You receive")
	assert.Contains(t, view, "1.50M")
	assert.Contains(t, view, "1.48M (100 bps)")
	assert.Contains(t, view, "0.000000001 SOL")
}

func TestSellQuoteFlow(t *testing.T) {
	q := &fakeQuoter{snapshot: testSnapshot()}
	c := newTestCalculator(q, nil)

	c, _ = update(t, c, tea.KeyMsg{Type: tea.KeyTab})
	c = typeText(t, c, "2000")

	_, cmd := update(t, c, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, SellQuoteMsg{}, msg)
	assert.Equal(t, 2000.0, q.lastSell)

	c, _ = update(t, c, msg)
	assert.Contains(t, c.View(), "0.2500 SOL")
}

func TestInvalidInput(t *testing.T) {
	c := newTestCalculator(&fakeQuoter{}, nil)

	for _, text := range []string{"", "abc", "-1", "0"} {
		c.input.SetValue(text)
		next, cmd := update(t, c, tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd, "input %q", text)
		assert.ErrorIs(t, next.err, ErrInvalidInput)
		assert.Contains(t, next.View(), "enter a positive number")
	}
}

func TestQuoteErrorShown(t *testing.T) {
	q := &fakeQuoter{err: errors.New("rpc down")}
	c := newTestCalculator(q, nil)
	c = typeText(t, c, "1")

	_, cmd := update(t, c, tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd()
	require.IsType(t, ErrorMsg{}, msg)

	c, _ = update(t, c, msg)
	assert.Contains(t, c.View(), "rpc down")
}

func TestQuitKeys(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		c := newTestCalculator(&fakeQuoter{}, nil)
		c, cmd := update(t, c, tea.KeyMsg{Type: k})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.Empty(t, c.View())
	}
}

func TestSnapshotRendering(t *testing.T) {
	c := newTestCalculator(&fakeQuoter{snapshot: testSnapshot()}, nil)
	assert.Contains(t, c.View(), "Loading curve state")

	msg := c.fetchSnapshot()()
	require.IsType(t, SnapshotMsg{}, msg)

	c, _ = update(t, c, msg)
	view := c.View()
	assert.Contains(t, view, "1.000 SOL")
	assert.Contains(t, view, "0.00 / 1.00B")
	assert.Contains(t, view, "750.00M")
	assert.Contains(t, view, "50.0%")
}

func TestPriceUpdatesFromMonitor(t *testing.T) {
	updates := make(chan tea.Msg, 1)
	c := newTestCalculator(&fakeQuoter{}, updates)

	snap := testSnapshot()
	snap.PriceText = "0.000000002"
	updates <- monitor.PriceUpdate{Snapshot: snap, Current: 2e-9, Initial: 1e-9, Percent: 100}

	wait := c.waitForUpdate()
	require.NotNil(t, wait)
	msg := wait()

	c, cmd := update(t, c, msg)
	assert.NotNil(t, cmd, "keeps listening for updates")
	view := c.View()
	assert.Contains(t, view, "0.000000002 SOL")
	assert.Contains(t, view, "+100.00%")

	close(updates)
	assert.Nil(t, c.waitForUpdate()())
}

func TestNoUpdatesChannel(t *testing.T) {
	c := newTestCalculator(&fakeQuoter{}, nil)
	assert.Nil(t, c.waitForUpdate())
}
