package boardroom

import (
	"errors"

	"unitbank/native/common"
)

// ErrInvalidAccountStatus is returned when staged-balance movement is
// attempted while the account is not Frozen or Locked.
var ErrInvalidAccountStatus = errors.New("boardroom: invalid account status")

// Status is the boardroom account gate. Exactly one variant is held at a time;
// consumers dispatch with a type switch.
type Status interface {
	isStatus()
}

// Fluid marks an account whose balance is free to move until the named epoch.
type Fluid struct {
	FluidUntil uint64
}

// Frozen marks an account whose balance froze at the named epoch.
type Frozen struct {
	BecameFrozen uint64
}

// Locked marks an account locked until the named epoch.
type Locked struct {
	LockedUntil uint64
}

func (Fluid) isStatus()  {}
func (Frozen) isStatus() {}
func (Locked) isStatus() {}

// Account is one depositor's boardroom ledger entry.
type Account struct {
	Shares                 uint64
	Futures                uint64
	LastDepositedTimestamp int64
	EpochLastDeposited     uint64
	Status                 Status
	StagedBalance          uint64
	Bump                   uint8
}

// NewAccount opens an account frozen at the creation epoch. Status transitions
// beyond creation are an external policy concern.
func NewAccount(epochIndex uint64, now int64, bump uint8) *Account {
	return &Account{
		LastDepositedTimestamp: now,
		EpochLastDeposited:     epochIndex,
		Status:                 Frozen{BecameFrozen: epochIndex},
		StagedBalance:          0,
		Bump:                   bump,
	}
}

// movable reports whether the staged balance may change under the current
// status.
func (a *Account) movable() bool {
	switch a.Status.(type) {
	case Frozen, Locked:
		return true
	default:
		return false
	}
}

// DepositStaged adds to the staged balance. Permitted only while Frozen or
// Locked.
func (a *Account) DepositStaged(amount uint64) error {
	if !a.movable() {
		return ErrInvalidAccountStatus
	}
	next, err := common.AddU64(a.StagedBalance, amount)
	if err != nil {
		return err
	}
	a.StagedBalance = next
	return nil
}

// WithdrawStaged removes from the staged balance. Permitted only while Frozen
// or Locked; a withdrawal beyond the staged balance fails rather than wrapping.
func (a *Account) WithdrawStaged(amount uint64) error {
	if !a.movable() {
		return ErrInvalidAccountStatus
	}
	next, err := common.SubU64(a.StagedBalance, amount)
	if err != nil {
		return err
	}
	a.StagedBalance = next
	return nil
}

// Totals aggregates boardroom deposits across all accounts, held by the
// treasury root.
type Totals struct {
	TotalDepositedUnits uint64
}

// Add increments the aggregate staged total.
func (t *Totals) Add(amount uint64) error {
	next, err := common.AddU64(t.TotalDepositedUnits, amount)
	if err != nil {
		return err
	}
	t.TotalDepositedUnits = next
	return nil
}

// Sub decrements the aggregate staged total.
func (t *Totals) Sub(amount uint64) error {
	next, err := common.SubU64(t.TotalDepositedUnits, amount)
	if err != nil {
		return err
	}
	t.TotalDepositedUnits = next
	return nil
}
