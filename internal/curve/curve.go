// =============================
// File: internal/curve/curve.go
// =============================
package curve

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Type selects the price function of a launch.
type Type string

const (
	Linear      Type = "linear"
	Exponential Type = "exponential"
)

// MaxDecimals is the largest mint precision accepted by the launchpad.
const MaxDecimals = 9

// Pricing constants. All prices are in SOL per whole token.
const (
	TargetStartValuation = 0.1
	MinInitialPrice      = 1e-9
	MaxInitialPrice      = 1e-1

	ReferencePurchase    = 0.1
	ReferenceImpact      = 0.35
	GraduationThreshold  = 30.0
	GraduationMultiplier = 10.0

	MaxPrice = 1.0
)

// maxGrowthExponent keeps (1+slope/100) finite for tiny supplies.
const maxGrowthExponent = 700

// MaxU64 is the largest raw on-chain amount, as a float.
const MaxU64 = float64(math.MaxUint64)

var (
	ErrMissingSupply    = errors.New("total supply is required")
	ErrInvalidDecimals  = errors.New("decimals out of range")
	ErrUnknownCurveType = errors.New("unknown curve type")
)

// Config describes a launch's curve. Nil overrides are derived from TotalSupply.
type Config struct {
	TotalSupply float64
	Decimals    uint8
	Type        Type
	Slope       *float64
	BasePrice   *float64
}

// ParseType maps a config string onto a curve Type. Empty means Linear.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case "", Linear:
		return Linear, nil
	case Exponential:
		return Exponential, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCurveType, s)
	}
}

// Curve is a resolved Config. It is immutable and safe for concurrent use.
type Curve struct {
	cfg       Config
	basePrice float64
	slope     float64
	logger    *zap.Logger
}

// Option customises a Curve.
type Option func(*Curve)

// WithLogger sets the logger used for degeneracy warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Curve) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New validates cfg and fixes the curve parameters.
func New(cfg Config, opts ...Option) (*Curve, error) {
	if math.IsNaN(cfg.TotalSupply) || math.IsInf(cfg.TotalSupply, 0) || cfg.TotalSupply <= 0 {
		return nil, ErrMissingSupply
	}
	if cfg.Decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDecimals, cfg.Decimals)
	}
	typ, err := ParseType(string(cfg.Type))
	if err != nil {
		return nil, err
	}
	cfg.Type = typ

	c := &Curve{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.BasePrice != nil {
		c.basePrice = *cfg.BasePrice
	} else {
		c.basePrice = DeriveInitialPrice(cfg.TotalSupply)
	}
	switch {
	case cfg.Slope != nil:
		c.slope = *cfg.Slope
	case cfg.Type == Exponential:
		c.slope = DeriveGrowth(cfg.TotalSupply)
	default:
		c.slope = DeriveSlope(cfg.TotalSupply, c.basePrice)
	}

	c.logger.Debug("Curve parameters resolved",
		zap.String("type", string(cfg.Type)),
		zap.Float64("total_supply", cfg.TotalSupply),
		zap.Float64("base_price", c.basePrice),
		zap.Float64("slope", c.slope),
		zap.Bool("base_price_override", cfg.BasePrice != nil),
		zap.Bool("slope_override", cfg.Slope != nil))

	return c, nil
}

// DeriveInitialPrice spreads TargetStartValuation over the supply and clamps
// the result into [MinInitialPrice, MaxInitialPrice].
func DeriveInitialPrice(totalSupply float64) float64 {
	return clamp(TargetStartValuation/totalSupply, MinInitialPrice, MaxInitialPrice)
}

// DeriveSlope returns the smaller of the slopes satisfying the reference
// impact and the graduation multiple, floored so the price keeps rising on
// very large supplies.
func DeriveSlope(totalSupply, initialPrice float64) float64 {
	p2 := initialPrice * initialPrice

	impactSlope := ReferenceImpact * p2 / ReferencePurchase

	// price(x_g) = m*p0 and raised(x_g) = threshold  =>  s = (m²-1)/2 * p0² / threshold
	m := GraduationMultiplier
	graduationSlope := (m*m - 1) / 2 * p2 / GraduationThreshold

	minSlope := initialPrice / (totalSupply * 10)

	return math.Max(math.Min(impactSlope, graduationSlope), minSlope)
}

func (c *Curve) Config() Config       { return c.cfg }
func (c *Curve) Type() Type           { return c.cfg.Type }
func (c *Curve) TotalSupply() float64 { return c.cfg.TotalSupply }
func (c *Curve) Decimals() uint8      { return c.cfg.Decimals }
func (c *Curve) BasePrice() float64   { return c.basePrice }
func (c *Curve) Slope() float64       { return c.slope }

// DeriveGrowth returns the exponential slope, in percent per 1000 tokens,
// at which selling the whole supply multiplies the price by
// GraduationMultiplier. Tiny supplies saturate at maxGrowthExponent.
func DeriveGrowth(totalSupply float64) float64 {
	perThousand := math.Log(GraduationMultiplier) / totalSupply * 1000
	return 100 * math.Expm1(math.Min(perThousand, maxGrowthExponent))
}

// Price returns the marginal price after tokensSold tokens, clamped to [0, MaxPrice].
func (c *Curve) Price(tokensSold float64) float64 {
	if math.IsNaN(tokensSold) {
		c.logger.Warn("Price requested for NaN supply position")
		return 0
	}
	x := math.Max(0, tokensSold)

	var p float64
	switch c.cfg.Type {
	case Exponential:
		p = c.basePrice * math.Pow(1+c.slope/100, x/1000)
	default:
		p = c.basePrice + c.slope*x
	}

	if math.IsNaN(p) {
		c.logger.Warn("Non-finite price, falling back to zero",
			zap.Float64("tokens_sold", tokensSold),
			zap.Float64("base_price", c.basePrice),
			zap.Float64("slope", c.slope))
		return 0
	}
	return clamp(p, 0, MaxPrice)
}

// TokensForSol estimates the whole tokens bought for solAmount starting at
// tokensSold. Degenerate inputs give 0.
func (c *Curve) TokensForSol(solAmount, tokensSold float64) float64 {
	if !isFinite(solAmount) || !isFinite(tokensSold) {
		c.logger.Warn("Non-finite buy quote input",
			zap.Float64("sol_amount", solAmount),
			zap.Float64("tokens_sold", tokensSold))
		return 0
	}
	if solAmount <= 0 {
		return 0
	}
	x0 := math.Max(0, tokensSold)
	remaining := c.cfg.TotalSupply - x0
	if remaining <= 0 {
		return 0
	}
	if c.slope <= 0 {
		c.logger.Warn("Non-positive slope, cannot invert curve",
			zap.Float64("slope", c.slope))
		return 0
	}

	var tokens float64
	var ok bool
	switch c.cfg.Type {
	case Exponential:
		tokens, ok = c.exponentialTokens(solAmount, x0)
	default:
		tokens, ok = c.linearTokens(solAmount, x0)
	}
	if !ok {
		return 0
	}

	tokens = math.Min(math.Max(0, tokens), remaining)
	tokens = math.Floor(tokens)
	return math.Min(tokens, MaxU64)
}

// linearTokens solves s*x1² + 2b*x1 - C = 0 for x1-x0. The discriminant
// (2b)² + 4sC equals 4(p² + 2sS) with p the price at x0, which avoids the
// cancellation in -2b + √D for small purchases.
func (c *Curve) linearTokens(sol, x0 float64) (float64, bool) {
	s := c.slope
	p := c.basePrice + s*x0
	disc := 4 * (p*p + 2*s*sol)
	if disc < 0 || !isFinite(disc) {
		c.logger.Warn("Invalid discriminant in buy quote",
			zap.Float64("discriminant", disc),
			zap.Float64("sol_amount", sol),
			zap.Float64("tokens_sold", x0))
		return 0, false
	}

	denom := p + math.Sqrt(disc)/2
	if denom <= 0 || !isFinite(denom) {
		c.logger.Warn("Degenerate curve position in buy quote",
			zap.Float64("price", p),
			zap.Float64("tokens_sold", x0))
		return 0, false
	}
	return 2 * sol / denom, true
}

// exponentialTokens inverts ∫ b·e^{kx} dx = S for x1-x0.
func (c *Curve) exponentialTokens(sol, x0 float64) (float64, bool) {
	b := c.basePrice
	k := growthRate(c.slope)
	if b <= 0 || k <= 0 || !isFinite(k) {
		c.logger.Warn("Degenerate exponential curve",
			zap.Float64("base_price", b),
			zap.Float64("slope", c.slope))
		return 0, false
	}

	decay := math.Exp(-k * x0)
	if decay == 0 {
		c.logger.Warn("Exponential curve position out of range",
			zap.Float64("tokens_sold", x0),
			zap.Float64("slope", c.slope))
		return 0, false
	}
	tokens := math.Log1p(sol*k*decay/b) / k
	if !isFinite(tokens) {
		c.logger.Warn("Non-finite exponential buy quote",
			zap.Float64("sol_amount", sol),
			zap.Float64("tokens_sold", x0))
		return 0, false
	}
	return tokens, true
}

// SolForTokens estimates the SOL returned for selling tokenAmount at tokensSold.
func (c *Curve) SolForTokens(tokenAmount, tokensSold float64) float64 {
	if !isFinite(tokenAmount) || !isFinite(tokensSold) {
		c.logger.Warn("Non-finite sell quote input",
			zap.Float64("token_amount", tokenAmount),
			zap.Float64("tokens_sold", tokensSold))
		return 0
	}
	if tokenAmount <= 0 {
		return 0
	}
	x0 := math.Max(0, tokensSold)

	before := c.Price(x0)
	after := c.Price(math.Max(0, x0-tokenAmount))
	avg := (before + after) / 2

	result := math.Min(tokenAmount*avg, tokenAmount*before)
	if !isFinite(result) {
		c.logger.Warn("Non-finite sell quote",
			zap.Float64("token_amount", tokenAmount),
			zap.Float64("tokens_sold", tokensSold))
		return 0
	}
	return math.Max(0, result)
}

// RaisedAt returns the SOL raised by selling the first tokensSold tokens.
func (c *Curve) RaisedAt(tokensSold float64) float64 {
	if !isFinite(tokensSold) || tokensSold <= 0 {
		return 0
	}
	x := tokensSold

	var raised float64
	switch c.cfg.Type {
	case Exponential:
		k := growthRate(c.slope)
		if k == 0 || !isFinite(k) {
			raised = c.basePrice * x
		} else {
			raised = c.basePrice * math.Expm1(k*x) / k
		}
	default:
		raised = c.basePrice*x + c.slope*x*x/2
	}

	if !isFinite(raised) {
		c.logger.Warn("Non-finite raised amount",
			zap.Float64("tokens_sold", tokensSold))
		return 0
	}
	return math.Max(0, raised)
}

// GraduationProgress is the fraction of GraduationThreshold raised so far.
func (c *Curve) GraduationProgress(tokensSold float64) float64 {
	return clamp(c.RaisedAt(tokensSold)/GraduationThreshold, 0, 1)
}

// MarketCap values the whole supply at the current marginal price.
func (c *Curve) MarketCap(tokensSold float64) float64 {
	return c.Price(tokensSold) * c.cfg.TotalSupply
}

// CalculatePrice is a one-shot Price for callers without a Curve.
func CalculatePrice(tokensSold float64, cfg Config) (float64, error) {
	c, err := New(cfg)
	if err != nil {
		return 0, err
	}
	return c.Price(tokensSold), nil
}

// CalculateTokensForSol is a one-shot TokensForSol.
func CalculateTokensForSol(solAmount, tokensSold float64, cfg Config) (float64, error) {
	c, err := New(cfg)
	if err != nil {
		return 0, err
	}
	return c.TokensForSol(solAmount, tokensSold), nil
}

// CalculateSolForTokens is a one-shot SolForTokens.
func CalculateSolForTokens(tokenAmount, tokensSold float64, cfg Config) (float64, error) {
	c, err := New(cfg)
	if err != nil {
		return 0, err
	}
	return c.SolForTokens(tokenAmount, tokensSold), nil
}

// growthRate converts a percent-per-1000-tokens slope into a continuous rate.
func growthRate(slope float64) float64 {
	return math.Log1p(slope/100) / 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
