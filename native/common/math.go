package common

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

var (
	// ErrMathOverflow signals an arithmetic operation whose result does not
	// fit the target width. Operations fail instead of wrapping.
	ErrMathOverflow = errors.New("math overflow")
	// ErrConversionFailure signals a narrowing conversion that would lose value.
	ErrConversionFailure = errors.New("conversion failure")
	// ErrOutOfRangeIntegralConversion signals an integral magnitude outside the
	// representable bracket table.
	ErrOutOfRangeIntegralConversion = errors.New("out of range integral conversion")
)

// AddU64 returns a+b or ErrMathOverflow.
func AddU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

// SubU64 returns a-b or ErrMathOverflow when the subtraction would underflow.
func SubU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrMathOverflow
	}
	return diff, nil
}

// MulDivFloor computes floor(a*b/denominator) widening through 256 bits so the
// intermediate product cannot overflow. A zero denominator or a quotient that
// does not narrow back to 64 bits fails.
func MulDivFloor(a, b, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, ErrConversionFailure
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := product.Div(product, uint256.NewInt(denominator))
	if !quotient.IsUint64() {
		return 0, ErrMathOverflow
	}
	return quotient.Uint64(), nil
}
