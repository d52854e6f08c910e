// internal/market/state.go
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/solkunai/LetsCook-APP-sub002/internal/blockchain/solbc"
	"github.com/solkunai/LetsCook-APP-sub002/internal/cache"
	"github.com/solkunai/LetsCook-APP-sub002/internal/curve"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrDecimalsMismatch = errors.New("vault decimals differ from mint decimals")

// Target identifies a launch: its mint and the vault holding unsold tokens.
type Target struct {
	Mint  solana.PublicKey
	Vault solana.PublicKey
}

func (t Target) String() string {
	return t.Mint.String() + ":" + t.Vault.String()
}

// State is the curve position of a launch, in UI units.
type State struct {
	Mint        string    `json:"mint"`
	Vault       string    `json:"vault"`
	TotalSupply float64   `json:"total_supply"`
	TokensSold  float64   `json:"tokens_sold"`
	Decimals    uint8     `json:"decimals"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Remaining is the unsold part of the supply.
func (s State) Remaining() float64 {
	if s.TokensSold >= s.TotalSupply {
		return 0
	}
	return s.TotalSupply - s.TokensSold
}

// StateReader loads the current State of a launch.
type StateReader interface {
	ReadState(ctx context.Context, target Target) (*State, error)
}

// accountFetcher is implemented by *solbc.Client.
type accountFetcher interface {
	GetMint(ctx context.Context, mint solana.PublicKey) (*token.Mint, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*solbc.TokenBalance, error)
}

// Reader derives State from the mint supply and the vault balance.
type Reader struct {
	client accountFetcher
	logger *zap.Logger
}

// NewReader creates a Reader over client.
func NewReader(client accountFetcher, logger *zap.Logger) *Reader {
	return &Reader{client: client, logger: logger.Named("market-reader")}
}

// ReadState fetches the mint and the vault concurrently.
func (r *Reader) ReadState(ctx context.Context, target Target) (*State, error) {
	var (
		mint  *token.Mint
		vault *solbc.TokenBalance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := r.client.GetMint(gctx, target.Mint)
		if err != nil {
			return fmt.Errorf("failed to read mint %s: %w", target.Mint, err)
		}
		mint = m
		return nil
	})
	g.Go(func() error {
		b, err := r.client.GetTokenAccountBalance(gctx, target.Vault)
		if err != nil {
			return fmt.Errorf("failed to read vault %s: %w", target.Vault, err)
		}
		vault = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if vault.Decimals != mint.Decimals {
		return nil, fmt.Errorf("%w: vault %d, mint %d", ErrDecimalsMismatch, vault.Decimals, mint.Decimals)
	}

	var soldRaw uint64
	if mint.Supply > vault.Amount {
		soldRaw = mint.Supply - vault.Amount
	}

	state := &State{
		Mint:        target.Mint.String(),
		Vault:       target.Vault.String(),
		TotalSupply: curve.FromRawUnits(mint.Supply, mint.Decimals),
		TokensSold:  curve.FromRawUnits(soldRaw, mint.Decimals),
		Decimals:    mint.Decimals,
		FetchedAt:   time.Now().UTC(),
	}

	r.logger.Debug("Launch state loaded",
		zap.String("mint", state.Mint),
		zap.Uint64("supply_raw", mint.Supply),
		zap.Uint64("vault_raw", vault.Amount),
		zap.Uint8("decimals", state.Decimals),
		zap.Float64("tokens_sold", state.TokensSold))

	return state, nil
}

// StaticReader returns the same State for every target. Used offline.
type StaticReader struct {
	State State
}

func (r StaticReader) ReadState(_ context.Context, _ Target) (*State, error) {
	s := r.State
	if s.FetchedAt.IsZero() {
		s.FetchedAt = time.Now().UTC()
	}
	return &s, nil
}

// LookupRecorder counts cache hits and misses.
type LookupRecorder interface {
	RecordCacheLookup(hit bool)
}

// CachedReader serves recent States from a cache.Store.
type CachedReader struct {
	next     StateReader
	store    cache.Store
	ttl      time.Duration
	logger   *zap.Logger
	recorder LookupRecorder
}

// NewCachedReader wraps next. A zero ttl disables caching.
func NewCachedReader(next StateReader, store cache.Store, ttl time.Duration, logger *zap.Logger) *CachedReader {
	return &CachedReader{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.Named("market-cache"),
	}
}

// SetRecorder installs rec for hit/miss accounting.
func (r *CachedReader) SetRecorder(rec LookupRecorder) {
	r.recorder = rec
}

func (r *CachedReader) record(hit bool) {
	if r.recorder != nil {
		r.recorder.RecordCacheLookup(hit)
	}
}

func cacheKey(target Target) string {
	return "state:" + target.String()
}

// ReadState returns a cached State when available; cache errors fall through.
func (r *CachedReader) ReadState(ctx context.Context, target Target) (*State, error) {
	if r.ttl <= 0 || r.store == nil {
		return r.next.ReadState(ctx, target)
	}

	key := cacheKey(target)
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn("Cache read failed, reading chain", zap.String("key", key), zap.Error(err))
	}
	if ok {
		var state State
		if err := json.Unmarshal(raw, &state); err == nil {
			r.record(true)
			return &state, nil
		}
		r.logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	}

	r.record(false)
	state, err := r.next.ReadState(ctx, target)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(state); err == nil {
		if err := r.store.Set(ctx, key, raw, r.ttl); err != nil {
			r.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return state, nil
}
