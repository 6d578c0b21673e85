package epoch

import "errors"

// SecondsPerEpoch is the minimum wall-clock gap between epoch advances.
const SecondsPerEpoch int64 = 60 * 60

// ErrNotAdvanceable is returned when an advance is attempted before the gate
// interval has elapsed since the last successful advance.
var ErrNotAdvanceable = errors.New("epoch: not ready to be advanced")

// Epoch is the time-gated protocol clock. Index increases by exactly one per
// accepted advance; Timestamp and Slot are the readings observed at the moment
// of the last successful advance.
type Epoch struct {
	Index     uint64
	Timestamp int64
	Slot      uint64
	AbovePeg  bool
	BaseRate  uint64
}

// Genesis returns the initial epoch stamped with the supplied clock readings.
func Genesis(now int64, slot uint64) Epoch {
	return Epoch{
		Index:     0,
		Timestamp: now,
		Slot:      slot,
		AbovePeg:  true,
		BaseRate:  0,
	}
}

// Advance produces the successor epoch carrying the new peg status and base
// interest rate. The transition is rejected until at least SecondsPerEpoch have
// elapsed since the current epoch's timestamp.
func (e Epoch) Advance(now int64, slot uint64, abovePeg bool, baseRate uint64) (Epoch, error) {
	if now < e.Timestamp+SecondsPerEpoch {
		return Epoch{}, ErrNotAdvanceable
	}
	return Epoch{
		Index:     e.Index + 1,
		Timestamp: now,
		Slot:      slot,
		AbovePeg:  abovePeg,
		BaseRate:  baseRate,
	}, nil
}
