package pricing

import (
	"fmt"

	"github.com/holiman/uint256"

	"unitbank/native/common"
)

// sqrtPriceToX64 squares the X64 fixed-point square-root price and rescales it
// by the decimal difference between the two assets. The result is a X64 price
// bounded to 192 bits.
func sqrtPriceToX64(sqrtPrice *uint256.Int, decimalsA, decimalsB uint8) (*uint256.Int, error) {
	if sqrtPrice.BitLen() > 128 {
		return nil, fmt.Errorf("pricing: sqrt price exceeds 128 bits: %w", common.ErrMathOverflow)
	}
	price := new(uint256.Int).Mul(sqrtPrice, sqrtPrice)
	price.Rsh(price, 64)
	if decimalsA >= decimalsB {
		factor, err := tenPow(uint64(decimalsA - decimalsB))
		if err != nil {
			return nil, err
		}
		if _, overflow := price.MulOverflow(price, uint256.NewInt(factor)); overflow {
			return nil, fmt.Errorf("pricing: decimal rescale overflow: %w", common.ErrMathOverflow)
		}
	} else {
		factor, err := tenPow(uint64(decimalsB - decimalsA))
		if err != nil {
			return nil, err
		}
		price.Div(price, uint256.NewInt(factor))
	}
	if price.BitLen() > 192 {
		return nil, fmt.Errorf("pricing: x64 price exceeds 192 bits: %w", common.ErrMathOverflow)
	}
	return price, nil
}

// PriceFromSqrt converts an AMM pool's X64 square-root price into a Price.
// When aToB is false the quote is inverted before conversion. A zero input
// short-circuits to the zero price.
func PriceFromSqrt(aToB bool, sqrtPriceX64 *uint256.Int, decimalsA, decimalsB uint8) (Price, error) {
	if sqrtPriceX64 == nil || sqrtPriceX64.IsZero() {
		return Price{}, nil
	}

	var (
		x64 *uint256.Int
		err error
	)
	if aToB {
		x64, err = sqrtPriceToX64(sqrtPriceX64, decimalsA, decimalsB)
	} else {
		inverted := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
		inverted.Div(inverted, sqrtPriceX64)
		if inverted.BitLen() > 128 {
			return Price{}, fmt.Errorf("pricing: inverted sqrt price exceeds 128 bits: %w", common.ErrMathOverflow)
		}
		x64, err = sqrtPriceToX64(inverted, decimalsB, decimalsA)
	}
	if err != nil {
		return Price{}, err
	}

	integerPart := new(uint256.Int).Rsh(x64, 64)
	if !integerPart.IsUint64() {
		return Price{}, fmt.Errorf("pricing: integer part exceeds 64 bits: %w", common.ErrOutOfRangeIntegralConversion)
	}
	exp, factor := exponentForIntegerPart(integerPart.Uint64())

	value := new(uint256.Int).Mul(x64, uint256.NewInt(factor))
	value.Rsh(value, 64)
	if !value.IsUint64() {
		return Price{}, fmt.Errorf("pricing: mantissa exceeds 64 bits: %w", common.ErrMathOverflow)
	}
	return Price{Value: value.Uint64(), Exp: exp}, nil
}

// RatioPrice builds a Price from an integer ratio, choosing the exponent from
// the denominator's magnitude so the quotient keeps maximal precision.
func RatioPrice(numerator, denominator uint64) (Price, error) {
	if denominator == 0 {
		return Price{}, fmt.Errorf("pricing: zero denominator: %w", common.ErrConversionFailure)
	}
	exp := uint64(0)
	threshold := uint64(10)
	for exp < maxExp && denominator > threshold {
		exp++
		threshold *= 10
	}
	scaled := new(uint256.Int).Mul(uint256.NewInt(numerator), uint256.NewInt(tenPowU64[exp]))
	scaled.Div(scaled, uint256.NewInt(denominator))
	if !scaled.IsUint64() {
		return Price{}, fmt.Errorf("pricing: ratio mantissa exceeds 64 bits: %w", common.ErrMathOverflow)
	}
	return Price{Value: scaled.Uint64(), Exp: exp}, nil
}
