package style

import "github.com/charmbracelet/lipgloss"

// CalculatorStyles styles the quote calculator screen.
type CalculatorStyles struct {
	Header    lipgloss.Style
	Panel     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Muted     lipgloss.Style
	BuyTab    lipgloss.Style
	SellTab   lipgloss.Style
	Inactive  lipgloss.Style
	Positive  lipgloss.Style
	Negative  lipgloss.Style
	Error     lipgloss.Style
	BarFilled lipgloss.Style
	BarEmpty  lipgloss.Style
}

// NewCalculatorStyles creates calculator styles with the given palette
func NewCalculatorStyles(palette Palette) CalculatorStyles {
	return CalculatorStyles{
		Header: lipgloss.NewStyle().
			Background(palette.Background).
			Foreground(palette.Primary).
			Bold(true).
			Padding(0, 2).
			Margin(0, 0, 1, 0),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted).
			Padding(0, 2).
			MarginBottom(1),

		Label: lipgloss.NewStyle().
			Foreground(palette.TextSecondary).
			Width(14),

		Value: lipgloss.NewStyle().
			Foreground(palette.Text).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(palette.TextMuted),

		BuyTab: lipgloss.NewStyle().
			Foreground(palette.Background).
			Background(palette.Buy).
			Bold(true).
			Padding(0, 2),

		SellTab: lipgloss.NewStyle().
			Foreground(palette.Background).
			Background(palette.Sell).
			Bold(true).
			Padding(0, 2),

		Inactive: lipgloss.NewStyle().
			Foreground(palette.TextMuted).
			Padding(0, 2),

		Positive: lipgloss.NewStyle().
			Foreground(palette.Success).
			Bold(true),

		Negative: lipgloss.NewStyle().
			Foreground(palette.Error).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(palette.Error),

		BarFilled: lipgloss.NewStyle().
			Foreground(palette.Secondary),

		BarEmpty: lipgloss.NewStyle().
			Foreground(palette.TextMuted),
	}
}
