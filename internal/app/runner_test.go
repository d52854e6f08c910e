package app

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solkunai/LetsCook-APP-sub002/internal/config"
	"github.com/solkunai/LetsCook-APP-sub002/internal/market"
	"github.com/solkunai/LetsCook-APP-sub002/internal/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadEnv()
	require.NoError(t, err)
	cfg.PriceDelay = 5 * time.Millisecond
	return cfg
}

func offline() *market.State {
	return &market.State{TotalSupply: 1e9, TokensSold: 0, Decimals: 9}
}

func run(t *testing.T, opts Options) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := NewRunner(testConfig(t), opts, &out, zap.NewNop())
	defer r.Shutdown()
	err := r.Run(context.Background())
	return out.String(), err
}

func TestTarget(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	vault := solana.NewWallet().PublicKey()

	r := NewRunner(testConfig(t), Options{Mint: mint.String(), Vault: vault.String()}, nil, zap.NewNop())
	target, err := r.Target()
	require.NoError(t, err)
	assert.Equal(t, mint, target.Mint)
	assert.Equal(t, vault, target.Vault)

	_, err = NewRunner(testConfig(t), Options{}, nil, zap.NewNop()).Target()
	assert.ErrorIs(t, err, ErrMissingTarget)

	_, err = NewRunner(testConfig(t), Options{Mint: "nope", Vault: vault.String()}, nil, zap.NewNop()).Target()
	assert.Error(t, err)

	_, err = NewRunner(testConfig(t), Options{Offline: offline()}, nil, zap.NewNop()).Target()
	assert.NoError(t, err)
}

func TestRunSnapshotOffline(t *testing.T) {
	out, err := run(t, Options{Offline: offline()})
	require.NoError(t, err)
	assert.Contains(t, out, "Price:        0.000000001 SOL")
	assert.Contains(t, out, "Sold:         0.00 / 1.00B")
	assert.Contains(t, out, "Remaining:    1.00B")
	assert.Contains(t, out, "State age:    ")
}

func TestRunBuyOffline(t *testing.T) {
	out, err := run(t, Options{Offline: offline(), Side: "buy", Amount: 1})
	require.NoError(t, err)
	assert.Contains(t, out, "Buy with:     1.000 SOL")
	assert.Contains(t, out, "Tokens out:   650.")
	assert.Contains(t, out, "Minimum out:")
}

func TestRunSellOfflineJSON(t *testing.T) {
	state := offline()
	state.TokensSold = 4e8
	out, err := run(t, Options{Offline: state, Side: "sell", Amount: 1e7, JSON: true})
	require.NoError(t, err)

	var q quote.SellQuote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, 1e7, q.TokensIn)
	assert.Greater(t, q.SolOut, 0.0)
	assert.Greater(t, q.Lamports, uint64(0))
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := run(t, Options{Offline: offline(), Side: "hold", Amount: 1})
	assert.Error(t, err)

	_, err = run(t, Options{Offline: offline(), Side: "buy", Amount: -1})
	assert.ErrorIs(t, err, quote.ErrInvalidAmount)

	_, err = run(t, Options{})
	assert.ErrorIs(t, err, ErrMissingTarget)
}

func TestRunWatchStopsOnCancel(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(testConfig(t), Options{Offline: offline(), Watch: true}, &out, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.GreaterOrEqual(t, len(lines), 1)
	assert.Contains(t, lines[0], "price 0.000000001 SOL")
	assert.Contains(t, lines[0], "change +0.00%")
}

func TestRunFeedsMetrics(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(testConfig(t), Options{Offline: offline(), Side: "buy", Amount: 0.5}, &out, zap.NewNop())
	require.NoError(t, r.Run(context.Background()))

	families, err := r.Metrics().Registry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "letscook_quotes_total")
}
