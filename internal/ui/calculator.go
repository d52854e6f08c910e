// internal/ui/calculator.go
package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/solkunai/LetsCook-APP-sub002/internal/curve"
	"github.com/solkunai/LetsCook-APP-sub002/internal/market"
	"github.com/solkunai/LetsCook-APP-sub002/internal/monitor"
	"github.com/solkunai/LetsCook-APP-sub002/internal/quote"
	"github.com/solkunai/LetsCook-APP-sub002/internal/ui/style"
	"go.uber.org/zap"
)

const progressWidth = 30

var ErrInvalidInput = errors.New("enter a positive number")

// Quoter is implemented by *quote.Service.
type Quoter interface {
	Snapshot(ctx context.Context, target market.Target) (*quote.Snapshot, error)
	Buy(ctx context.Context, target market.Target, solAmount float64) (*quote.BuyQuote, error)
	Sell(ctx context.Context, target market.Target, tokenAmount float64) (*quote.SellQuote, error)
}

// Calculator is the bubbletea model of the quote calculator.
type Calculator struct {
	ctx     context.Context
	quoter  Quoter
	target  market.Target
	updates <-chan tea.Msg
	logger  *zap.Logger

	keys   KeyMap
	help   help.Model
	styles style.CalculatorStyles
	input  textinput.Model

	side     quote.Side
	snapshot *quote.Snapshot
	change   *float64
	buy      *quote.BuyQuote
	sell     *quote.SellQuote
	err      error
	quitting bool
}

// NewCalculator builds the model. updates may be nil; otherwise it carries
// monitor.PriceUpdate values from a PriceThrottler.
func NewCalculator(ctx context.Context, quoter Quoter, target market.Target,
	updates <-chan tea.Msg, logger *zap.Logger) Calculator {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 24
	input.Width = 24
	input.Focus()

	c := Calculator{
		ctx:     ctx,
		quoter:  quoter,
		target:  target,
		updates: updates,
		logger:  logger.Named("ui"),
		keys:    DefaultKeyMap(),
		help:    help.New(),
		styles:  style.NewCalculatorStyles(style.DefaultPalette()),
		input:   input,
		side:    quote.Buy,
	}
	c.updatePlaceholder()
	return c
}

// Side returns the selected quote direction.
func (c Calculator) Side() quote.Side { return c.side }

func (c Calculator) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, c.fetchSnapshot(), c.waitForUpdate())
}

func (c Calculator) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, c.keys.Quit):
			c.quitting = true
			return c, tea.Quit
		case key.Matches(msg, c.keys.Toggle):
			if c.side == quote.Buy {
				c.side = quote.Sell
			} else {
				c.side = quote.Buy
			}
			c.buy, c.sell, c.err = nil, nil, nil
			c.updatePlaceholder()
			return c, nil
		case key.Matches(msg, c.keys.Refresh):
			return c, c.fetchSnapshot()
		case key.Matches(msg, c.keys.Submit):
			amount, err := parseAmount(c.input.Value())
			if err != nil {
				c.err = err
				return c, nil
			}
			c.err = nil
			return c, c.requestQuote(amount)
		}

	case tea.WindowSizeMsg:
		c.help.Width = msg.Width
		return c, nil

	case SnapshotMsg:
		c.snapshot = msg.Snapshot
		return c, nil

	case BuyQuoteMsg:
		c.buy, c.sell = msg.Quote, nil
		c.snapshot = msg.Quote.Snapshot
		return c, nil

	case SellQuoteMsg:
		c.buy, c.sell = nil, msg.Quote
		c.snapshot = msg.Quote.Snapshot
		return c, nil

	case ErrorMsg:
		c.err = msg.Err
		return c, nil

	case monitor.PriceUpdate:
		c.snapshot = msg.Snapshot
		pct := msg.Percent
		c.change = &pct
		return c, c.waitForUpdate()
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *Calculator) updatePlaceholder() {
	if c.side == quote.Buy {
		c.input.Placeholder = "SOL to spend"
	} else {
		c.input.Placeholder = "tokens to sell"
	}
}

func parseAmount(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidInput
	}
	return v, nil
}

func (c Calculator) fetchSnapshot() tea.Cmd {
	ctx, quoter, target := c.ctx, c.quoter, c.target
	return func() tea.Msg {
		snap, err := quoter.Snapshot(ctx, target)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func (c Calculator) requestQuote(amount float64) tea.Cmd {
	ctx, quoter, target, side, logger := c.ctx, c.quoter, c.target, c.side, c.logger
	return func() tea.Msg {
		logger.Debug("Quote requested", zap.String("side", string(side)), zap.Float64("amount", amount))
		if side == quote.Sell {
			q, err := quoter.Sell(ctx, target, amount)
			if err != nil {
				return ErrorMsg{Err: err}
			}
			return SellQuoteMsg{Quote: q}
		}
		q, err := quoter.Buy(ctx, target, amount)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return BuyQuoteMsg{Quote: q}
	}
}

func (c Calculator) waitForUpdate() tea.Cmd {
	if c.updates == nil {
		return nil
	}
	updates := c.updates
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return msg
	}
}

func (c Calculator) View() string {
	if c.quitting {
		return ""
	}
	s := c.styles

	var b strings.Builder
	b.WriteString(s.Header.Render("Let's Cook · bonding curve"))
	b.WriteString("\n")
	b.WriteString(s.Panel.Render(c.snapshotView()))
	b.WriteString("\n")

	buyTab, sellTab := s.BuyTab.Render("BUY"), s.Inactive.Render("SELL")
	if c.side == quote.Sell {
		buyTab, sellTab = s.Inactive.Render("BUY"), s.SellTab.Render("SELL")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buyTab, " ", sellTab))
	b.WriteString("\n\n")
	b.WriteString(c.input.View())
	b.WriteString("\n\n")

	if result := c.quoteView(); result != "" {
		b.WriteString(s.Panel.Render(result))
		b.WriteString("\n")
	}
	if c.err != nil {
		b.WriteString(s.Error.Render("Error: " + c.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(c.help.View(c.keys))
	return b.String()
}

func (c Calculator) row(label, value string) string {
	return c.styles.Label.Render(label) + c.styles.Value.Render(value)
}

func (c Calculator) snapshotView() string {
	snap := c.snapshot
	if snap == nil {
		return c.styles.Muted.Render("Loading curve state...")
	}

	price := snap.PriceText + " SOL"
	if c.change != nil {
		price += " " + c.changeView(*c.change)
	}

	lines := []string{
		c.row("Price", price),
		c.row("Market cap", snap.MarketCapText),
		c.row("Sold", snap.SoldText+" / "+snap.SupplyText),
		c.row("Remaining", curve.FormatTokenAmount(snap.State.Remaining())),
		c.row("Curve", string(snap.CurveType)),
		c.row("Graduation", c.progressBar(snap.GraduationProgress)),
	}
	return strings.Join(lines, "\n")
}

func (c Calculator) changeView(pct float64) string {
	text := fmt.Sprintf("%+.2f%%", pct)
	switch {
	case pct > 0:
		return c.styles.Positive.Render(text)
	case pct < 0:
		return c.styles.Negative.Render(text)
	default:
		return c.styles.Muted.Render(text)
	}
}

func (c Calculator) progressBar(fraction float64) string {
	filled := int(fraction * progressWidth)
	if filled > progressWidth {
		filled = progressWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := c.styles.BarFilled.Render(strings.Repeat("█", filled)) +
		c.styles.BarEmpty.Render(strings.Repeat("░", progressWidth-filled))
	return fmt.Sprintf("%s %.1f%%", bar, fraction*100)
}

func (c Calculator) quoteView() string {
	switch {
	case c.buy != nil:
		q := c.buy
		return strings.Join([]string{
			c.row("You pay", curve.FormatSOL(q.SolIn)),
			c.row("You receive", curve.FormatTokenAmount(q.TokensOut)),
			c.row("Minimum", fmt.Sprintf("%s (%d bps)", curve.FormatTokenAmount(q.MinTokensOut), q.SlippageBps)),
			c.row("Avg price", curve.FormatSOL(q.AvgPrice)),
			c.row("Impact", c.changeView(q.ImpactPct)),
		}, "\n")
	case c.sell != nil:
		q := c.sell
		return strings.Join([]string{
			c.row("You sell", curve.FormatTokenAmount(q.TokensIn)),
			c.row("You receive", curve.FormatSOL(q.SolOut)),
			c.row("Minimum", fmt.Sprintf("%s (%d bps)", curve.FormatSOL(q.MinSolOut), q.SlippageBps)),
			c.row("Avg price", curve.FormatSOL(q.AvgPrice)),
			c.row("Impact", c.changeView(q.ImpactPct)),
		}, "\n")
	default:
		return ""
	}
}
