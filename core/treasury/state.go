package treasury

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"unitbank/core/types"
	"unitbank/native/boardroom"
	"unitbank/native/bonds"
	"unitbank/native/epoch"
	"unitbank/native/positions"
	"unitbank/native/pricing"
	"unitbank/native/staking"
	"unitbank/storage"
)

// Role tags scoping per-user sub-records under their owner. A record's full
// key is parent prefix + role tag + owner + numeric seed where applicable.
var (
	treasuryKey       = []byte("treasury/root")
	bondIndexPrefix   = []byte("treasury/bond-index/")
	bondPosPrefix     = []byte("treasury/bond-position/")
	stakeIndexPrefix  = []byte("treasury/stake-index/")
	stakeRecordPrefix = []byte("treasury/stake-record/")
	boardroomPrefix   = []byte("treasury/boardroom/")
)

// State reads and writes treasury records through the key-value backend. All
// records are RLP encoded; signed timestamps are clamped to zero before
// narrowing into unsigned storage.
type State struct {
	db storage.Database
}

// NewState binds the state accessor to a storage backend.
func NewState(db storage.Database) *State {
	return &State{db: db}
}

func ownerKey(prefix []byte, owner types.Address) []byte {
	buf := make([]byte, 0, len(prefix)+len(owner))
	buf = append(buf, prefix...)
	buf = append(buf, owner[:]...)
	return buf
}

func seedKey(prefix []byte, owner types.Address, seed uint64) []byte {
	return fmt.Appendf(ownerKey(prefix, owner), "/%020d", seed)
}

// --- stored record forms ---

type storedPrice struct {
	Value uint64
	Exp   uint64
}

type storedDatedPrice struct {
	Price           storedPrice
	LastUpdatedSlot uint64
	UnixTimestamp   uint64
	Index           uint16
}

type storedEpoch struct {
	Index     uint64
	Timestamp uint64
	Slot      uint64
	AbovePeg  bool
	BaseRate  uint64
}

type storedTreasury struct {
	Authority          []byte
	Pool               []byte
	Epoch              storedEpoch
	PriceObservations  []storedDatedPrice
	AvailableBonds     uint64
	BondsPurchased     uint64
	TotalBonds         uint64
	Redeemed           uint64
	RedeemableIndex    uint64
	StakingStatus      bool
	StakingAuthority   []byte
	StakingCollection  []byte
	StakingMinPeriod   uint64
	StakingBump        uint8
	StakingNftAuthBump uint8
	UnitMint           []byte
	TokenAuthority     []byte
	UnitCustody        []byte
	LPCustody          []byte
	BoardroomDeposits  uint64
	UnitAuthBump       uint8
	Bump               uint8
}

type storedIndex struct {
	Count  uint64
	Offset uint64
	Bump   uint8
}

type storedBondPosition struct {
	Owner        []byte
	Amount       uint64
	Epoch        uint64
	InterestRate uint64
	Index        uint64
	Bump         uint8
}

type storedStakeRecord struct {
	Staker      []byte
	NFTMint     []byte
	StakedEpoch uint64
	StakedAt    uint64
	Bump        uint8
}

type storedBoardroomAccount struct {
	Shares             uint64
	Futures            uint64
	LastDeposited      uint64
	EpochLastDeposited uint64
	StatusKind         uint8
	StatusEpoch        uint64
	StagedBalance      uint64
	Bump               uint8
}

const (
	statusKindFluid uint8 = iota
	statusKindFrozen
	statusKindLocked
)

func clampToU64(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// --- treasury root ---

// HasTreasury reports whether the aggregate root exists.
func (s *State) HasTreasury() (bool, error) {
	return s.db.Has(treasuryKey)
}

// PutTreasury persists the aggregate root.
func (s *State) PutTreasury(t *Treasury) error {
	observations := make([]storedDatedPrice, pricing.ObservationCount)
	for i, obs := range t.PriceHistory.Observations {
		observations[i] = storedDatedPrice{
			Price:           storedPrice{Value: obs.Price.Value, Exp: obs.Price.Exp},
			LastUpdatedSlot: obs.LastUpdatedSlot,
			UnixTimestamp:   obs.UnixTimestamp,
			Index:           obs.Index,
		}
	}
	stored := storedTreasury{
		Authority: t.Authority.Bytes(),
		Pool:      t.Pool.Bytes(),
		Epoch: storedEpoch{
			Index:     t.Epoch.Index,
			Timestamp: clampToU64(t.Epoch.Timestamp),
			Slot:      t.Epoch.Slot,
			AbovePeg:  t.Epoch.AbovePeg,
			BaseRate:  t.Epoch.BaseRate,
		},
		PriceObservations:  observations,
		AvailableBonds:     t.Bonds.AvailableBonds,
		BondsPurchased:     t.Bonds.BondsPurchased,
		TotalBonds:         t.Bonds.TotalBondsPurchased,
		Redeemed:           t.Bonds.Redeemed,
		RedeemableIndex:    t.Bonds.RedeemableIndex,
		StakingStatus:      t.Staking.Status,
		StakingAuthority:   t.Staking.Authority.Bytes(),
		StakingCollection:  t.Staking.Collection.Bytes(),
		StakingMinPeriod:   t.Staking.MinimumPeriod,
		StakingBump:        t.Staking.Bump,
		StakingNftAuthBump: t.Staking.NftAuthBump,
		UnitMint:           t.UnitMint.Bytes(),
		TokenAuthority:     t.TokenAuthority.Bytes(),
		UnitCustody:        t.UnitCustody.Bytes(),
		LPCustody:          t.LPCustody.Bytes(),
		BoardroomDeposits:  t.Boardroom.TotalDepositedUnits,
		UnitAuthBump:       t.UnitAuthBump,
		Bump:               t.Bump,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("treasury: encode root: %w", err)
	}
	return s.db.Put(treasuryKey, encoded)
}

// Treasury loads the aggregate root.
func (s *State) Treasury() (*Treasury, error) {
	raw, err := s.db.Get(treasuryKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotInitialised
		}
		return nil, err
	}
	var stored storedTreasury
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: root: %v", ErrUnableToDeserialize, err)
	}
	t := &Treasury{
		Epoch: epoch.Epoch{
			Index:     stored.Epoch.Index,
			Timestamp: int64(stored.Epoch.Timestamp),
			Slot:      stored.Epoch.Slot,
			AbovePeg:  stored.Epoch.AbovePeg,
			BaseRate:  stored.Epoch.BaseRate,
		},
		Bonds: bonds.Pool{
			AvailableBonds:      stored.AvailableBonds,
			BondsPurchased:      stored.BondsPurchased,
			TotalBondsPurchased: stored.TotalBonds,
			Redeemed:            stored.Redeemed,
			RedeemableIndex:     stored.RedeemableIndex,
		},
		Staking: staking.Config{
			Status:        stored.StakingStatus,
			MinimumPeriod: stored.StakingMinPeriod,
			Bump:          stored.StakingBump,
			NftAuthBump:   stored.StakingNftAuthBump,
		},
		Boardroom:    boardroom.Totals{TotalDepositedUnits: stored.BoardroomDeposits},
		UnitAuthBump: stored.UnitAuthBump,
		Bump:         stored.Bump,
	}
	copy(t.Authority[:], stored.Authority)
	copy(t.Pool[:], stored.Pool)
	copy(t.Staking.Authority[:], stored.StakingAuthority)
	copy(t.Staking.Collection[:], stored.StakingCollection)
	copy(t.UnitMint[:], stored.UnitMint)
	copy(t.TokenAuthority[:], stored.TokenAuthority)
	copy(t.UnitCustody[:], stored.UnitCustody)
	copy(t.LPCustody[:], stored.LPCustody)
	if len(stored.PriceObservations) != pricing.ObservationCount {
		return nil, fmt.Errorf("%w: price window holds %d observations", ErrUnableToDeserialize, len(stored.PriceObservations))
	}
	for i, obs := range stored.PriceObservations {
		t.PriceHistory.Observations[i] = pricing.DatedPrice{
			Price:           pricing.Price{Value: obs.Price.Value, Exp: obs.Price.Exp},
			LastUpdatedSlot: obs.LastUpdatedSlot,
			UnixTimestamp:   obs.UnixTimestamp,
			Index:           obs.Index,
		}
	}
	return t, nil
}

// --- position indexes ---

func (s *State) putIndex(key []byte, ix positions.Index) error {
	encoded, err := rlp.EncodeToBytes(storedIndex{Count: ix.Count, Offset: ix.Offset, Bump: ix.Bump})
	if err != nil {
		return fmt.Errorf("treasury: encode index: %w", err)
	}
	return s.db.Put(key, encoded)
}

func (s *State) index(key []byte) (positions.Index, error) {
	raw, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return positions.Index{}, ErrAccountNotFound
		}
		return positions.Index{}, err
	}
	var stored storedIndex
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return positions.Index{}, fmt.Errorf("%w: index: %v", ErrUnableToDeserialize, err)
	}
	return positions.Index{Count: stored.Count, Offset: stored.Offset, Bump: stored.Bump}, nil
}

func (s *State) hasKey(key []byte) (bool, error) {
	return s.db.Has(key)
}

// BondIndex loads the bond position index for owner.
func (s *State) BondIndex(owner types.Address) (positions.Index, error) {
	return s.index(ownerKey(bondIndexPrefix, owner))
}

// PutBondIndex persists the bond position index for owner.
func (s *State) PutBondIndex(owner types.Address, ix positions.Index) error {
	return s.putIndex(ownerKey(bondIndexPrefix, owner), ix)
}

// HasBondIndex reports whether owner already holds a bond position index.
func (s *State) HasBondIndex(owner types.Address) (bool, error) {
	return s.hasKey(ownerKey(bondIndexPrefix, owner))
}

// StakeIndex loads the stake record index for owner.
func (s *State) StakeIndex(owner types.Address) (positions.Index, error) {
	return s.index(ownerKey(stakeIndexPrefix, owner))
}

// PutStakeIndex persists the stake record index for owner.
func (s *State) PutStakeIndex(owner types.Address, ix positions.Index) error {
	return s.putIndex(ownerKey(stakeIndexPrefix, owner), ix)
}

// HasStakeIndex reports whether owner already holds a stake record index.
func (s *State) HasStakeIndex(owner types.Address) (bool, error) {
	return s.hasKey(ownerKey(stakeIndexPrefix, owner))
}

// --- bond positions ---

// BondPosition loads owner's bond position at the given seed.
func (s *State) BondPosition(owner types.Address, seed uint64) (*bonds.Position, error) {
	raw, err := s.db.Get(seedKey(bondPosPrefix, owner, seed))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	var stored storedBondPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: bond position: %v", ErrUnableToDeserialize, err)
	}
	position := &bonds.Position{
		Amount:       stored.Amount,
		Epoch:        stored.Epoch,
		InterestRate: stored.InterestRate,
		Index:        stored.Index,
		Bump:         stored.Bump,
	}
	copy(position.Owner[:], stored.Owner)
	if !bytes.Equal(position.Owner[:], owner[:]) {
		return nil, fmt.Errorf("%w: bond position owner mismatch", ErrUnexpectedAccount)
	}
	return position, nil
}

// PutBondPosition persists owner's bond position at the given seed.
func (s *State) PutBondPosition(owner types.Address, seed uint64, position *bonds.Position) error {
	stored := storedBondPosition{
		Owner:        position.Owner.Bytes(),
		Amount:       position.Amount,
		Epoch:        position.Epoch,
		InterestRate: position.InterestRate,
		Index:        position.Index,
		Bump:         position.Bump,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("treasury: encode bond position: %w", err)
	}
	return s.db.Put(seedKey(bondPosPrefix, owner, seed), encoded)
}

// --- stake records ---

// StakeRecord loads owner's stake record at the given seed.
func (s *State) StakeRecord(owner types.Address, seed uint64) (*staking.Record, error) {
	raw, err := s.db.Get(seedKey(stakeRecordPrefix, owner, seed))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	var stored storedStakeRecord
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: stake record: %v", ErrUnableToDeserialize, err)
	}
	record := &staking.Record{
		StakedEpoch: stored.StakedEpoch,
		StakedAt:    int64(stored.StakedAt),
		Bump:        stored.Bump,
	}
	copy(record.Staker[:], stored.Staker)
	copy(record.NFTMint[:], stored.NFTMint)
	if !bytes.Equal(record.Staker[:], owner[:]) {
		return nil, fmt.Errorf("%w: stake record staker mismatch", ErrUnexpectedAccount)
	}
	return record, nil
}

// PutStakeRecord persists owner's stake record at the given seed.
func (s *State) PutStakeRecord(owner types.Address, seed uint64, record *staking.Record) error {
	stored := storedStakeRecord{
		Staker:      record.Staker.Bytes(),
		NFTMint:     record.NFTMint.Bytes(),
		StakedEpoch: record.StakedEpoch,
		StakedAt:    clampToU64(record.StakedAt),
		Bump:        record.Bump,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("treasury: encode stake record: %w", err)
	}
	return s.db.Put(seedKey(stakeRecordPrefix, owner, seed), encoded)
}

// DeleteStakeRecord destroys owner's stake record at the given seed.
func (s *State) DeleteStakeRecord(owner types.Address, seed uint64) error {
	return s.db.Delete(seedKey(stakeRecordPrefix, owner, seed))
}

// --- boardroom accounts ---

// BoardroomAccount loads owner's boardroom account.
func (s *State) BoardroomAccount(owner types.Address) (*boardroom.Account, error) {
	raw, err := s.db.Get(ownerKey(boardroomPrefix, owner))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	var stored storedBoardroomAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: boardroom account: %v", ErrUnableToDeserialize, err)
	}
	var status boardroom.Status
	switch stored.StatusKind {
	case statusKindFluid:
		status = boardroom.Fluid{FluidUntil: stored.StatusEpoch}
	case statusKindFrozen:
		status = boardroom.Frozen{BecameFrozen: stored.StatusEpoch}
	case statusKindLocked:
		status = boardroom.Locked{LockedUntil: stored.StatusEpoch}
	default:
		return nil, fmt.Errorf("%w: boardroom status kind %d", ErrUnableToDeserialize, stored.StatusKind)
	}
	return &boardroom.Account{
		Shares:                 stored.Shares,
		Futures:                stored.Futures,
		LastDepositedTimestamp: int64(stored.LastDeposited),
		EpochLastDeposited:     stored.EpochLastDeposited,
		Status:                 status,
		StagedBalance:          stored.StagedBalance,
		Bump:                   stored.Bump,
	}, nil
}

// PutBoardroomAccount persists owner's boardroom account.
func (s *State) PutBoardroomAccount(owner types.Address, account *boardroom.Account) error {
	stored := storedBoardroomAccount{
		Shares:             account.Shares,
		Futures:            account.Futures,
		LastDeposited:      clampToU64(account.LastDepositedTimestamp),
		EpochLastDeposited: account.EpochLastDeposited,
		StagedBalance:      account.StagedBalance,
		Bump:               account.Bump,
	}
	switch status := account.Status.(type) {
	case boardroom.Fluid:
		stored.StatusKind = statusKindFluid
		stored.StatusEpoch = status.FluidUntil
	case boardroom.Frozen:
		stored.StatusKind = statusKindFrozen
		stored.StatusEpoch = status.BecameFrozen
	case boardroom.Locked:
		stored.StatusKind = statusKindLocked
		stored.StatusEpoch = status.LockedUntil
	default:
		return fmt.Errorf("treasury: unknown boardroom status %T", account.Status)
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("treasury: encode boardroom account: %w", err)
	}
	return s.db.Put(ownerKey(boardroomPrefix, owner), encoded)
}

// HasBoardroomAccount reports whether owner already holds a boardroom account.
func (s *State) HasBoardroomAccount(owner types.Address) (bool, error) {
	return s.hasKey(ownerKey(boardroomPrefix, owner))
}
