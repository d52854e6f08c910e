// internal/app/runner.go
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/solkunai/LetsCook-APP-sub002/internal/blockchain/solbc"
	"github.com/solkunai/LetsCook-APP-sub002/internal/cache"
	"github.com/solkunai/LetsCook-APP-sub002/internal/config"
	"github.com/solkunai/LetsCook-APP-sub002/internal/curve"
	"github.com/solkunai/LetsCook-APP-sub002/internal/market"
	"github.com/solkunai/LetsCook-APP-sub002/internal/metrics"
	"github.com/solkunai/LetsCook-APP-sub002/internal/monitor"
	"github.com/solkunai/LetsCook-APP-sub002/internal/quote"
	"github.com/solkunai/LetsCook-APP-sub002/internal/ui"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	janitorInterval = time.Minute
	uiUpdateBuffer  = 16
	shutdownTimeout = 3 * time.Second
)

var ErrMissingTarget = errors.New("mint and vault are required unless an offline supply is given")

// Options select what a Runner does.
type Options struct {
	Mint  string
	Vault string

	Side   string
	Amount float64

	Watch bool
	TUI   bool
	JSON  bool

	// Offline, when set, replaces chain reads with a fixed state.
	Offline *market.State
}

// Runner wires configuration into a quote service and runs one mode.
type Runner struct {
	cfg     *config.Config
	opts    Options
	out     io.Writer
	logger  *zap.Logger
	metrics *metrics.Collector

	closers []io.Closer
}

// NewRunner creates a runner writing results to out.
func NewRunner(cfg *config.Config, opts Options, out io.Writer, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		opts:    opts,
		out:     out,
		logger:  logger,
		metrics: metrics.NewCollector(),
	}
}

// Metrics returns the collector fed by this runner.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// Target parses the mint and vault addresses. Offline runs may omit them.
func (r *Runner) Target() (market.Target, error) {
	if r.opts.Mint == "" || r.opts.Vault == "" {
		if r.opts.Offline != nil {
			return market.Target{}, nil
		}
		return market.Target{}, ErrMissingTarget
	}
	mint, err := solana.PublicKeyFromBase58(r.opts.Mint)
	if err != nil {
		return market.Target{}, fmt.Errorf("invalid mint address: %w", err)
	}
	vault, err := solana.PublicKeyFromBase58(r.opts.Vault)
	if err != nil {
		return market.Target{}, fmt.Errorf("invalid vault address: %w", err)
	}
	return market.Target{Mint: mint, Vault: vault}, nil
}

// Reader builds the state reader chain: chain reads behind a cache, or the
// offline state.
func (r *Runner) Reader(ctx context.Context) (market.StateReader, error) {
	if r.opts.Offline != nil {
		r.logger.Info("Using offline curve state",
			zap.Float64("total_supply", r.opts.Offline.TotalSupply),
			zap.Float64("tokens_sold", r.opts.Offline.TokensSold))
		return market.StaticReader{State: *r.opts.Offline}, nil
	}

	client, err := solbc.NewClient(r.cfg.RPCList, r.cfg.Retries, r.cfg.RPCDelay, r.logger)
	if err != nil {
		return nil, err
	}
	client.SetObserver(r.metrics)
	r.logger.Info("RPC endpoints configured", zap.Strings("rpc", r.cfg.MaskedRPCList()))

	store, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	cached := market.NewCachedReader(market.NewReader(client, r.logger), store, r.cfg.CacheTTL, r.logger)
	cached.SetRecorder(r.metrics)
	return cached, nil
}

func (r *Runner) store(ctx context.Context) (cache.Store, error) {
	if r.cfg.RedisAddr != "" {
		store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     r.cfg.RedisAddr,
			Password: r.cfg.RedisPassword,
			DB:       r.cfg.RedisDB,
		}, r.logger)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, store)
		return store, nil
	}

	store := cache.NewMemoryStore(r.logger)
	store.StartJanitor(ctx, janitorInterval, janitorInterval)
	return store, nil
}

// Run executes the selected mode until it finishes or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	target, err := r.Target()
	if err != nil {
		return err
	}
	reader, err := r.Reader(ctx)
	if err != nil {
		return err
	}
	svc, err := quote.NewService(reader, quote.Options{
		CurveType:   r.cfg.Curve(),
		SlippageBps: r.cfg.SlippageBps,
		Recorder:    r.metrics,
	}, r.logger)
	if err != nil {
		return err
	}

	r.logger.Debug("Quote service ready",
		zap.String("curve", string(r.cfg.Curve())),
		zap.Int("slippage_bps", svc.SlippageBps()))

	if r.cfg.MetricsAddr != "" {
		go r.serveMetrics(ctx)
	}

	switch {
	case r.opts.TUI:
		return r.runTUI(ctx, svc, target)
	case r.opts.Watch:
		return r.runWatch(ctx, svc, target)
	default:
		return r.runOnce(ctx, svc, target)
	}
}

func (r *Runner) runOnce(ctx context.Context, svc *quote.Service, target market.Target) error {
	if r.opts.Amount == 0 {
		snap, err := svc.Snapshot(ctx, target)
		if err != nil {
			return err
		}
		return r.print(snap, func() { writeSnapshot(r.out, snap) })
	}

	side, err := quote.ParseSide(r.opts.Side)
	if err != nil {
		return err
	}
	if side == quote.Sell {
		q, err := svc.Sell(ctx, target, r.opts.Amount)
		if err != nil {
			return err
		}
		return r.print(q, func() { writeSell(r.out, q) })
	}
	q, err := svc.Buy(ctx, target, r.opts.Amount)
	if err != nil {
		return err
	}
	return r.print(q, func() { writeBuy(r.out, q) })
}

func (r *Runner) print(v any, text func()) error {
	if !r.opts.JSON {
		text()
		return nil
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Runner) runWatch(ctx context.Context, svc *quote.Service, target market.Target) error {
	pm := monitor.NewPriceMonitor(svc, target, r.cfg.PriceDelay, r.logger, func(u monitor.PriceUpdate) {
		r.metrics.SetCurve(u.Mint, u.Current, u.Snapshot.GraduationProgress)
		fmt.Fprintf(r.out, "%s  price %s SOL  change %+.2f%%  sold %s  graduation %.1f%%\n",
			u.At.Format(time.TimeOnly),
			u.Snapshot.PriceText,
			u.Percent,
			u.Snapshot.SoldText,
			u.Snapshot.GraduationProgress*100)
	})
	err := pm.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (r *Runner) runTUI(ctx context.Context, svc *quote.Service, target market.Target) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan tea.Msg, uiUpdateBuffer)
	g, gctx := errgroup.WithContext(ctx)

	var feed <-chan tea.Msg
	if r.opts.Watch {
		feed = updates
		throttler := monitor.NewPriceThrottler(r.cfg.PriceDelay/2, updates, r.logger)
		pm := monitor.NewPriceMonitor(svc, target, r.cfg.PriceDelay, r.logger, func(u monitor.PriceUpdate) {
			r.metrics.SetCurve(u.Mint, u.Current, u.Snapshot.GraduationProgress)
			throttler.SendPriceUpdate(u)
		})
		g.Go(func() error {
			throttler.RunFlusher(gctx)
			return nil
		})
		g.Go(func() error {
			_ = pm.Run(gctx)
			return nil
		})
	}

	program := tea.NewProgram(
		ui.NewCalculator(gctx, svc, target, feed, r.logger),
		tea.WithAltScreen(),
		tea.WithContext(gctx),
	)
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("tui failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (r *Runner) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	srv := &http.Server{
		Addr:              r.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	r.logger.Info("Serving metrics", zap.String("addr", r.cfg.MetricsAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		r.logger.Error("Metrics server failed", zap.Error(err))
	}
}

// Shutdown releases the cache connection.
func (r *Runner) Shutdown() {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			r.logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	r.closers = nil
}

func writeSnapshot(w io.Writer, s *quote.Snapshot) {
	fmt.Fprintf(w, "Curve:        %s\n", s.CurveType)
	fmt.Fprintf(w, "Price:        %s SOL\n", s.PriceText)
	fmt.Fprintf(w, "Market cap:   %s\n", s.MarketCapText)
	fmt.Fprintf(w, "Sold:         %s / %s\n", s.SoldText, s.SupplyText)
	fmt.Fprintf(w, "Remaining:    %s\n", curve.FormatTokenAmount(s.State.Remaining()))
	fmt.Fprintf(w, "Raised:       %s\n", curve.FormatSOL(s.Raised))
	fmt.Fprintf(w, "Graduation:   %.2f%%\n", s.GraduationProgress*100)
	fmt.Fprintf(w, "State age:    %s\n", s.Elapsed(time.Now()).Round(time.Millisecond))
}

func writeBuy(w io.Writer, q *quote.BuyQuote) {
	writeSnapshot(w, q.Snapshot)
	fmt.Fprintf(w, "\nBuy with:     %s\n", curve.FormatSOL(q.SolIn))
	fmt.Fprintf(w, "Tokens out:   %s (%d raw)\n", curve.FormatTokenAmount(q.TokensOut), q.RawTokensOut)
	fmt.Fprintf(w, "Minimum out:  %s (%d raw, %d bps)\n", curve.FormatTokenAmount(q.MinTokensOut), q.RawMinOut, q.SlippageBps)
	fmt.Fprintf(w, "Avg price:    %s\n", curve.FormatSOL(q.AvgPrice))
	fmt.Fprintf(w, "Price impact: %+.4f%%\n", q.ImpactPct)
}

func writeSell(w io.Writer, q *quote.SellQuote) {
	writeSnapshot(w, q.Snapshot)
	fmt.Fprintf(w, "\nSell:         %s\n", curve.FormatTokenAmount(q.TokensIn))
	fmt.Fprintf(w, "SOL out:      %s (%d lamports)\n", curve.FormatSOL(q.SolOut), q.Lamports)
	fmt.Fprintf(w, "Minimum out:  %s (%d lamports, %d bps)\n", curve.FormatSOL(q.MinSolOut), q.MinLamports, q.SlippageBps)
	fmt.Fprintf(w, "Avg price:    %s\n", curve.FormatSOL(q.AvgPrice))
	fmt.Fprintf(w, "Price impact: %+.4f%%\n", q.ImpactPct)
}
