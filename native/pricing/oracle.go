package pricing

import (
	"fmt"

	"github.com/holiman/uint256"

	"unitbank/native/common"
)

// ObservationCount is the number of price observations retained by the window.
const ObservationCount = 5

// DatedPrice is a single oracle observation.
type DatedPrice struct {
	Price           Price
	LastUpdatedSlot uint64
	UnixTimestamp   uint64
	Index           uint16
}

// Storage retains the most recent observations as a sliding window; appending
// evicts the oldest entry by rebuilding the backing sequence.
type Storage struct {
	Observations [ObservationCount]DatedPrice
}

// Append pushes a new observation, dropping the oldest.
func (s *Storage) Append(update DatedPrice) {
	var next [ObservationCount]DatedPrice
	copy(next[:], s.Observations[1:])
	next[ObservationCount-1] = update
	s.Observations = next
}

// Latest returns the most recently appended observation.
func (s *Storage) Latest() DatedPrice {
	return s.Observations[ObservationCount-1]
}

// Twap is a time weighted average price over the retained window.
type Twap struct {
	Twap uint64
	Exp  uint64
}

// TWAP averages the stored price values over the retained window. The divisor
// is the window length; mantissas must share an exponent for the average to be
// meaningful, which holds for observations of a single pool.
func (s *Storage) TWAP(exp uint64) (Twap, error) {
	var sum uint64
	for _, obs := range s.Observations {
		next, err := common.AddU64(sum, obs.Price.Value)
		if err != nil {
			return Twap{}, err
		}
		sum = next
	}
	return Twap{Twap: sum / ObservationCount, Exp: exp}, nil
}

// PoolState captures the AMM pool fields the oracle consumes.
type PoolState struct {
	SqrtPriceX64 *uint256.Int
	DecimalsA    uint8
	DecimalsB    uint8
}

// PoolSource exposes the external AMM pool backing the oracle.
type PoolSource interface {
	PoolState() (PoolState, error)
}

// Observe converts the pool's current square-root price into a dated
// observation stamped with the supplied clock readings.
func Observe(source PoolSource, aToB bool, slot uint64, now int64) (DatedPrice, error) {
	if source == nil {
		return DatedPrice{}, fmt.Errorf("pricing: pool source not configured")
	}
	state, err := source.PoolState()
	if err != nil {
		return DatedPrice{}, fmt.Errorf("pricing: load pool state: %w", err)
	}
	price, err := PriceFromSqrt(aToB, state.SqrtPriceX64, state.DecimalsA, state.DecimalsB)
	if err != nil {
		return DatedPrice{}, err
	}
	timestamp := uint64(0)
	if now > 0 {
		timestamp = uint64(now)
	}
	return DatedPrice{
		Price:           price,
		LastUpdatedSlot: slot,
		UnixTimestamp:   timestamp,
	}, nil
}
