package bonds

import (
	"errors"
	"fmt"

	"unitbank/native/common"
	"unitbank/native/positions"
)

const (
	// InterestRatePrecision scales epoch base rates: 1_000_000 == 1%.
	InterestRatePrecision uint64 = 1_000_000
	// OneHundredPercent is the fixed-point representation of 100%.
	OneHundredPercent uint64 = 100 * InterestRatePrecision
)

var (
	// ErrInvalidEpoch is returned when purchasing into a position opened in a
	// previous epoch; a fresh position must be opened instead.
	ErrInvalidEpoch = errors.New("bonds: position from invalid epoch")
	// ErrInsufficientBonds is returned when the issuance pool cannot cover the
	// purchase. The pool never wraps below zero.
	ErrInsufficientBonds = errors.New("bonds: issuance pool depleted")
)

// UnitsToBonds converts purchased units to bonds at the given base rate:
// floor(units * (rate + 100%) / 100%). The multiplication widens before
// dividing so intermediate values cannot overflow.
func UnitsToBonds(units, rate uint64) (uint64, error) {
	multiplier, err := common.AddU64(rate, OneHundredPercent)
	if err != nil {
		return 0, fmt.Errorf("bonds: rate out of range: %w", err)
	}
	amount, err := common.MulDivFloor(units, multiplier, OneHundredPercent)
	if err != nil {
		return 0, fmt.Errorf("bonds: units conversion: %w", err)
	}
	return amount, nil
}

// Purchase converts units to bonds at the current epoch's rate and applies the
// purchase to the owner's position and the issuance pool. All guards run
// before any mutation; on error both the position and the pool are untouched.
func Purchase(pool *Pool, index *positions.Index, position *Position, currentEpoch, currentRate, seed, units uint64) (uint64, error) {
	if err := index.ValidateSeed(seed); err != nil {
		return 0, err
	}
	if position.Amount != 0 && position.Epoch != currentEpoch {
		return 0, ErrInvalidEpoch
	}

	amount, err := UnitsToBonds(units, currentRate)
	if err != nil {
		return 0, err
	}

	// Stage every successor value before committing anything.
	newAvailable, err := common.SubU64(pool.AvailableBonds, amount)
	if err != nil {
		return 0, ErrInsufficientBonds
	}
	newPurchased, err := common.AddU64(pool.BondsPurchased, amount)
	if err != nil {
		return 0, fmt.Errorf("bonds: epoch purchase counter: %w", err)
	}
	newTotal, err := common.AddU64(pool.TotalBondsPurchased, amount)
	if err != nil {
		return 0, fmt.Errorf("bonds: total purchase counter: %w", err)
	}
	newPositionAmount, err := common.AddU64(position.Amount, amount)
	if err != nil {
		return 0, fmt.Errorf("bonds: position amount: %w", err)
	}

	if position.Amount == 0 {
		position.Index = pool.TotalBondsPurchased
	}
	position.Epoch = currentEpoch
	position.InterestRate = currentRate
	position.Amount = newPositionAmount

	pool.AvailableBonds = newAvailable
	pool.BondsPurchased = newPurchased
	pool.TotalBondsPurchased = newTotal

	return amount, nil
}
