// internal/quote/service.go
package quote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solkunai/LetsCook-APP-sub002/internal/curve"
	"github.com/solkunai/LetsCook-APP-sub002/internal/market"
	"go.uber.org/zap"
)

const (
	maxSlippageBps = 10_000
	solDecimals    = 9
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive and finite")
	ErrInvalidSlippage = errors.New("slippage must be within [0, 10000] bps")
)

// Recorder counts served quotes.
type Recorder interface {
	RecordQuote(side string, err error)
}

// Options configure a Service. Recorder is optional.
type Options struct {
	CurveType   curve.Type
	SlippageBps int
	Recorder    Recorder
}

// Side of a quote.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide accepts "buy" or "sell".
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy, Sell:
		return Side(s), nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// Snapshot describes the current position of a launch on its curve.
type Snapshot struct {
	State              market.State `json:"state"`
	CurveType          curve.Type   `json:"curve_type"`
	BasePrice          float64      `json:"base_price"`
	Slope              float64      `json:"slope"`
	Price              float64      `json:"price"`
	MarketCap          float64      `json:"market_cap"`
	Raised             float64      `json:"raised"`
	GraduationProgress float64      `json:"graduation_progress"`

	PriceText     string `json:"price_text"`
	MarketCapText string `json:"market_cap_text"`
	SoldText      string `json:"sold_text"`
	SupplyText    string `json:"supply_text"`
}

// BuyQuote is the estimate for spending SolIn.
type BuyQuote struct {
	Snapshot     *Snapshot `json:"snapshot"`
	SolIn        float64   `json:"sol_in"`
	TokensOut    float64   `json:"tokens_out"`
	MinTokensOut float64   `json:"min_tokens_out"`
	RawTokensOut uint64    `json:"raw_tokens_out"`
	RawMinOut    uint64    `json:"raw_min_out"`
	AvgPrice     float64   `json:"avg_price"`
	PriceAfter   float64   `json:"price_after"`
	ImpactPct    float64   `json:"impact_pct"`
	SlippageBps  int       `json:"slippage_bps"`
}

// SellQuote is the estimate for selling TokensIn.
type SellQuote struct {
	Snapshot    *Snapshot `json:"snapshot"`
	TokensIn    float64   `json:"tokens_in"`
	SolOut      float64   `json:"sol_out"`
	MinSolOut   float64   `json:"min_sol_out"`
	Lamports    uint64    `json:"lamports"`
	MinLamports uint64    `json:"min_lamports"`
	AvgPrice    float64   `json:"avg_price"`
	PriceAfter  float64   `json:"price_after"`
	ImpactPct   float64   `json:"impact_pct"`
	SlippageBps int       `json:"slippage_bps"`
}

// Service turns launch state into price quotes.
type Service struct {
	reader      market.StateReader
	curveType   curve.Type
	slippageBps int
	recorder    Recorder
	logger      *zap.Logger
}

// NewService creates a quote service reading state from reader.
func NewService(reader market.StateReader, opts Options, logger *zap.Logger) (*Service, error) {
	if opts.SlippageBps < 0 || opts.SlippageBps > maxSlippageBps {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlippage, opts.SlippageBps)
	}
	typ, err := curve.ParseType(string(opts.CurveType))
	if err != nil {
		return nil, err
	}
	return &Service{
		reader:      reader,
		curveType:   typ,
		slippageBps: opts.SlippageBps,
		recorder:    opts.Recorder,
		logger:      logger.Named("quote"),
	}, nil
}

// SlippageBps returns the configured tolerance.
func (s *Service) SlippageBps() int { return s.slippageBps }

func (s *Service) load(ctx context.Context, target market.Target) (*curve.Curve, *market.State, error) {
	state, err := s.reader.ReadState(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	c, err := curve.New(curve.Config{
		TotalSupply: state.TotalSupply,
		Decimals:    state.Decimals,
		Type:        s.curveType,
	}, curve.WithLogger(s.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build curve for %s: %w", state.Mint, err)
	}
	return c, state, nil
}

func snapshotOf(c *curve.Curve, state *market.State) *Snapshot {
	price := c.Price(state.TokensSold)
	mcap := c.MarketCap(state.TokensSold)
	return &Snapshot{
		State:              *state,
		CurveType:          c.Type(),
		BasePrice:          c.BasePrice(),
		Slope:              c.Slope(),
		Price:              price,
		MarketCap:          mcap,
		Raised:             c.RaisedAt(state.TokensSold),
		GraduationProgress: c.GraduationProgress(state.TokensSold),
		PriceText:          curve.FormatPrice(price),
		MarketCapText:      curve.FormatSOL(mcap),
		SoldText:           curve.FormatTokenAmount(state.TokensSold),
		SupplyText:         curve.FormatTokenAmount(state.TotalSupply),
	}
}

func (s *Service) record(side string, err error) {
	if s.recorder != nil {
		s.recorder.RecordQuote(side, err)
	}
}

// Snapshot returns pricing data for the current state of target.
func (s *Service) Snapshot(ctx context.Context, target market.Target) (snap *Snapshot, err error) {
	defer func() { s.record("snapshot", err) }()

	c, state, err := s.load(ctx, target)
	if err != nil {
		return nil, err
	}
	return snapshotOf(c, state), nil
}

// Buy quotes the tokens received for solAmount.
func (s *Service) Buy(ctx context.Context, target market.Target, solAmount float64) (q *BuyQuote, err error) {
	defer func() { s.record(string(Buy), err) }()

	if !validAmount(solAmount) {
		return nil, fmt.Errorf("%w: %v SOL", ErrInvalidAmount, solAmount)
	}
	c, state, err := s.load(ctx, target)
	if err != nil {
		return nil, err
	}
	snap := snapshotOf(c, state)

	tokens := c.TokensForSol(solAmount, state.TokensSold)
	minTokens := s.applySlippage(decimal.NewFromFloat(tokens)).Floor().InexactFloat64()
	after := c.Price(state.TokensSold + tokens)

	q = &BuyQuote{
		Snapshot:     snap,
		SolIn:        solAmount,
		TokensOut:    tokens,
		MinTokensOut: minTokens,
		RawTokensOut: curve.ToRawUnits(tokens, state.Decimals),
		RawMinOut:    curve.ToRawUnits(minTokens, state.Decimals),
		PriceAfter:   after,
		ImpactPct:    impact(snap.Price, after),
		SlippageBps:  s.slippageBps,
	}
	if tokens > 0 {
		q.AvgPrice = solAmount / tokens
	}

	s.logger.Debug("Buy quote",
		zap.String("mint", state.Mint),
		zap.Float64("sol_in", solAmount),
		zap.Float64("tokens_out", tokens),
		zap.Float64("impact_pct", q.ImpactPct))
	return q, nil
}

// Sell quotes the SOL received for tokenAmount.
func (s *Service) Sell(ctx context.Context, target market.Target, tokenAmount float64) (q *SellQuote, err error) {
	defer func() { s.record(string(Sell), err) }()

	if !validAmount(tokenAmount) {
		return nil, fmt.Errorf("%w: %v tokens", ErrInvalidAmount, tokenAmount)
	}
	c, state, err := s.load(ctx, target)
	if err != nil {
		return nil, err
	}
	snap := snapshotOf(c, state)

	sol := c.SolForTokens(tokenAmount, state.TokensSold)
	solLamports := lamports(sol)
	minLamports := s.minimumReceived(solLamports)
	after := c.Price(math.Max(0, state.TokensSold-tokenAmount))

	q = &SellQuote{
		Snapshot:    snap,
		TokensIn:    tokenAmount,
		SolOut:      sol,
		MinSolOut:   s.applySlippage(decimal.NewFromFloat(sol)).InexactFloat64(),
		Lamports:    solLamports,
		MinLamports: minLamports,
		AvgPrice:    sol / tokenAmount,
		PriceAfter:  after,
		ImpactPct:   impact(snap.Price, after),
		SlippageBps: s.slippageBps,
	}

	s.logger.Debug("Sell quote",
		zap.String("mint", state.Mint),
		zap.Float64("tokens_in", tokenAmount),
		zap.Float64("sol_out", sol),
		zap.Float64("impact_pct", q.ImpactPct))
	return q, nil
}

func (s *Service) applySlippage(v decimal.Decimal) decimal.Decimal {
	keep := decimal.NewFromInt(int64(maxSlippageBps - s.slippageBps))
	return v.Mul(keep).Div(decimal.NewFromInt(maxSlippageBps))
}

// minimumReceived applies the tolerance to a raw amount, rounding down.
func (s *Service) minimumReceived(raw uint64) uint64 {
	return curve.DecimalToRawUnits(s.applySlippage(curve.RawUnitsToDecimal(raw, 0)), 0)
}

func validAmount(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// impact is the percent move from before to after.
func impact(before, after float64) float64 {
	if before <= 0 {
		return 0
	}
	return (after - before) / before * 100
}

func lamports(sol float64) uint64 {
	return curve.ToRawUnits(sol, solDecimals)
}

// Elapsed reports how old the state behind a snapshot is.
func (s *Snapshot) Elapsed(now time.Time) time.Duration {
	if s.State.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.State.FetchedAt)
}
