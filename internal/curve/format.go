package curve

import (
	"fmt"
	"math"
	"strconv"
)

// PriceDecimals returns how many fractional digits a price is shown with.
func PriceDecimals(price float64) int {
	switch {
	case price < 1e-8:
		return 9
	case price < 1e-6:
		return 8
	case price < 1e-3:
		return 6
	case price < 1:
		return 4
	default:
		return 3
	}
}

// FormatPrice renders a price with magnitude-dependent precision.
func FormatPrice(price float64) string {
	if !isFinite(price) || price < 0 {
		return "0"
	}
	return strconv.FormatFloat(price, 'f', PriceDecimals(price), 64)
}

// FormatSOL renders a SOL amount the way prices are rendered.
func FormatSOL(amount float64) string {
	return FormatPrice(amount) + " SOL"
}

// FormatTokenAmount shortens token quantities with K/M/B/T suffixes.
func FormatTokenAmount(amount float64) string {
	if !isFinite(amount) {
		return "0"
	}
	abs := math.Abs(amount)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", amount/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", amount/1e3)
	default:
		return fmt.Sprintf("%.2f", amount)
	}
}
