package pricing

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"unitbank/native/common"
)

// Price is a scaled integer price: Value x 10^-Exp. The exponent is chosen on
// construction to keep as much precision as the 64-bit mantissa allows for the
// magnitude of the represented value.
type Price struct {
	Value uint64
	Exp   uint64
}

// maxExp is the largest exponent the bracket table produces.
const maxExp = 18

var tenPowU64 = [maxExp + 1]uint64{
	1,
	10,
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
	100_000_000_000,
	1_000_000_000_000,
	10_000_000_000_000,
	100_000_000_000_000,
	1_000_000_000_000_000,
	10_000_000_000_000_000,
	100_000_000_000_000_000,
	1_000_000_000_000_000_000,
}

func tenPow(exp uint64) (uint64, error) {
	if exp > maxExp {
		return 0, fmt.Errorf("pricing: unsupported exponent %d: %w", exp, common.ErrOutOfRangeIntegralConversion)
	}
	return tenPowU64[exp], nil
}

// exponentForIntegerPart maps the magnitude of the integer part of a price to
// the exponent bracket that keeps the full mantissa inside 64 bits. Larger
// integer parts receive smaller exponents (less fractional precision).
func exponentForIntegerPart(integerPart uint64) (uint64, uint64) {
	exp := uint64(maxExp)
	threshold := uint64(1)
	for exp > 0 && integerPart >= threshold {
		exp--
		threshold *= 10
	}
	return exp, tenPowU64[exp]
}

// Float64 converts the price to its floating point approximation.
func (p Price) Float64() float64 {
	return float64(p.Value) / math.Pow10(int(p.Exp))
}

// ScaledValue re-expresses the price as an integer with the given number of
// decimals, truncating excess fractional precision.
func (p Price) ScaledValue(decimals uint8) (uint64, error) {
	exp := p.Exp
	if exp > math.MaxUint8 {
		return 0, fmt.Errorf("pricing: price exp %d too big: %w", exp, common.ErrConversionFailure)
	}
	value := uint256.NewInt(p.Value)
	if exp > uint64(decimals) {
		factor, err := tenPow(exp - uint64(decimals))
		if err != nil {
			return 0, err
		}
		value.Div(value, uint256.NewInt(factor))
	} else {
		factor, err := tenPow(uint64(decimals) - exp)
		if err != nil {
			return 0, err
		}
		value.Mul(value, uint256.NewInt(factor))
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("pricing: scaled value exceeds 64 bits: %w", common.ErrMathOverflow)
	}
	return value.Uint64(), nil
}

// Equal aligns both operands to the same exponent before comparing mantissas.
// Alignment is performed in 256-bit arithmetic so differing magnitudes cannot
// overflow the comparison.
func (p Price) Equal(other Price) bool {
	a := uint256.NewInt(p.Value)
	b := uint256.NewInt(other.Value)
	switch {
	case p.Exp > other.Exp:
		diff := p.Exp - other.Exp
		if diff > maxExp {
			return false
		}
		b.Mul(b, uint256.NewInt(tenPowU64[diff]))
	case p.Exp < other.Exp:
		diff := other.Exp - p.Exp
		if diff > maxExp {
			return false
		}
		a.Mul(a, uint256.NewInt(tenPowU64[diff]))
	}
	return a.Eq(b)
}

// IsZero reports whether the price carries no value.
func (p Price) IsZero() bool {
	return p.Value == 0
}
