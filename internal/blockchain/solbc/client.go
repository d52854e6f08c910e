// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// mintAccountSize is the length of an SPL mint account.
const mintAccountSize = 82

const (
	defaultRetries = 3
	defaultDelay   = 200 * time.Millisecond
	requestTimeout = 10 * time.Second
)

var (
	ErrNoRPCNodes      = errors.New("no RPC nodes available")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidMint     = errors.New("account is not an SPL mint")
)

// node is the subset of *rpc.Client used here.
type node interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Observer receives the latency of every RPC attempt.
type Observer interface {
	ObserveRPC(method string, d time.Duration, err error)
}

// Client reads accounts from a rotating set of RPC endpoints.
type Client struct {
	nodes   []node
	urls    []string
	current int
	mu      sync.Mutex

	retries  int
	delay    time.Duration
	logger   *zap.Logger
	observer Observer
}

// NewClient creates a client over urls. retries and delay fall back to
// defaults when non-positive.
func NewClient(urls []string, retries int, delay time.Duration, logger *zap.Logger) (*Client, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}
	nodes := make([]node, len(urls))
	for i, url := range urls {
		nodes[i] = rpc.New(url)
	}
	return newClient(nodes, urls, retries, delay, logger), nil
}

func newClient(nodes []node, urls []string, retries int, delay time.Duration, logger *zap.Logger) *Client {
	if retries <= 0 {
		retries = defaultRetries
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	return &Client{
		nodes:   nodes,
		urls:    urls,
		retries: retries,
		delay:   delay,
		logger:  logger.Named("solbc-client"),
	}
}

// SetObserver installs o for latency reporting. Call before first use.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// next returns the current node and advances the rotation.
func (c *Client) next() (node, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, url := c.nodes[c.current], c.urls[c.current]
	c.current = (c.current + 1) % len(c.nodes)
	return n, url
}

// execute runs op against successive nodes with exponential backoff.
func execute[T any](ctx context.Context, c *Client, method string, op func(context.Context, node) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.delay
	policy.MaxInterval = c.delay * 10

	attempt := 0
	operation := func() (T, error) {
		attempt++
		n, url := c.next()

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		start := time.Now()
		res, err := op(reqCtx, n)
		if c.observer != nil {
			c.observer.ObserveRPC(method, time.Since(start), err)
		}
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrInvalidMint) {
			return res, backoff.Permanent(err)
		}

		c.logger.Debug("RPC request failed, trying next node",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Retrying RPC request",
			zap.String("method", method),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.retries)),
		backoff.WithNotify(notify))
	if err != nil {
		return res, fmt.Errorf("%s: %w", method, err)
	}
	return res, nil
}

// GetMint fetches and decodes an SPL mint account.
func (c *Client) GetMint(ctx context.Context, mint solana.PublicKey) (*token.Mint, error) {
	return execute(ctx, c, "getMint", func(ctx context.Context, n node) (*token.Mint, error) {
		info, err := n.GetAccountInfoWithOpts(ctx, mint, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, mint)
		}
		if err != nil {
			return nil, err
		}
		if info == nil || info.Value == nil || info.Value.Data == nil {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, mint)
		}

		data := info.Value.Data.GetBinary()
		if len(data) < mintAccountSize {
			return nil, fmt.Errorf("%w: %s has %d bytes", ErrInvalidMint, mint, len(data))
		}

		var decoded token.Mint
		if err := bin.NewBinDecoder(data[:mintAccountSize]).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
		}
		if !decoded.IsInitialized {
			return nil, fmt.Errorf("%w: %s is not initialized", ErrInvalidMint, mint)
		}
		return &decoded, nil
	})
}

// TokenBalance is a token account balance in base units.
type TokenBalance struct {
	Amount   uint64
	Decimals uint8
}

// GetTokenAccountBalance returns the raw balance of a token account.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*TokenBalance, error) {
	return execute(ctx, c, "getTokenAccountBalance", func(ctx context.Context, n node) (*TokenBalance, error) {
		result, err := n.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
		}
		if err != nil {
			return nil, err
		}
		if result == nil || result.Value == nil || result.Value.Amount == "" {
			return nil, fmt.Errorf("%w: %s has no balance", ErrAccountNotFound, account)
		}

		amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse token balance: %w", err)
		}
		return &TokenBalance{Amount: amount, Decimals: result.Value.Decimals}, nil
	})
}
