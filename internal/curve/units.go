package curve

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var maxRawUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ToRawUnits converts a UI amount into on-chain base units, saturating at
// math.MaxUint64. Negative and NaN amounts become 0.
func ToRawUnits(amount float64, decimals uint8) uint64 {
	if math.IsNaN(amount) || amount <= 0 {
		return 0
	}
	if math.IsInf(amount, 1) {
		return math.MaxUint64
	}
	return DecimalToRawUnits(decimal.NewFromFloat(amount), decimals)
}

// DecimalToRawUnits shifts amount by decimals and floors it to whole base units.
func DecimalToRawUnits(amount decimal.Decimal, decimals uint8) uint64 {
	if !amount.IsPositive() {
		return 0
	}
	raw := amount.Shift(int32(decimals)).Floor()
	if raw.GreaterThanOrEqual(maxRawUnits) {
		return math.MaxUint64
	}
	return raw.BigInt().Uint64()
}

// RawUnitsToDecimal converts on-chain base units into an exact UI amount.
func RawUnitsToDecimal(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
}

// FromRawUnits converts on-chain base units into a UI amount.
func FromRawUnits(raw uint64, decimals uint8) float64 {
	return RawUnitsToDecimal(raw, decimals).InexactFloat64()
}
