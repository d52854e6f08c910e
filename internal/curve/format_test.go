package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{1e-9, "0.000000001"},
		{5e-7, "0.00000050"},
		{0.0005, "0.000500"},
		{0.25, "0.2500"},
		{1.5, "1.500"},
		{42, "42.000"},
		{0, "0.000000000"},
		{-1, "0"},
		{math.NaN(), "0"},
		{math.Inf(1), "0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.price), "price %v", tt.price)
	}

	assert.Equal(t, "0.2500 SOL", FormatSOL(0.25))
}

func TestFormatTokenAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{12.5, "12.50"},
		{1500, "1.50K"},
		{2_500_000, "2.50M"},
		{1e9, "1.00B"},
		{3e12, "3.00T"},
		{-4_000_000, "-4.00M"},
		{math.Inf(1), "0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTokenAmount(tt.amount), "amount %v", tt.amount)
	}
}
