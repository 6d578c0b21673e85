package treasury

import (
	"errors"
	"testing"

	"unitbank/core/types"
	"unitbank/native/boardroom"
	"unitbank/native/bonds"
	"unitbank/native/epoch"
	"unitbank/native/positions"
	"unitbank/native/pricing"
	"unitbank/native/staking"
	"unitbank/storage"
)

func TestTreasuryRoundTrip(t *testing.T) {
	state := NewState(storage.NewMemDB())

	if _, err := state.Treasury(); !errors.Is(err, ErrNotInitialised) {
		t.Fatalf("expected not initialised, got %v", err)
	}

	original := &Treasury{
		Authority: types.Address{0x01},
		Pool:      types.Address{0x02},
		Epoch: epoch.Epoch{
			Index:     4,
			Timestamp: 1_700_000_000,
			Slot:      99,
			AbovePeg:  false,
			BaseRate:  10,
		},
		Bonds: bonds.Pool{
			AvailableBonds:      8_000,
			BondsPurchased:      2_000,
			TotalBondsPurchased: 2_000,
		},
		Staking: staking.Config{
			Status:        true,
			Authority:     types.Address{0x03},
			Collection:    types.MintID{0x04},
			MinimumPeriod: 2,
		},
		UnitMint:       types.MintID{0x05},
		TokenAuthority: types.Address{0x06},
		UnitCustody:    types.Address{0x07},
		LPCustody:      types.Address{0x08},
		Boardroom:      boardroom.Totals{TotalDepositedUnits: 300},
		UnitAuthBump:   1,
		Bump:           2,
	}
	original.PriceHistory.Append(pricing.DatedPrice{
		Price:           pricing.Price{Value: 100_000_000_000_000_000, Exp: 17},
		LastUpdatedSlot: 99,
		UnixTimestamp:   1_700_000_000,
	})

	if err := state.PutTreasury(original); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := state.Treasury()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *loaded != *original {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestBondPositionOwnerCheck(t *testing.T) {
	state := NewState(storage.NewMemDB())
	owner := types.Address{0xaa}
	other := types.Address{0xbb}

	position := &bonds.Position{Owner: owner, Amount: 1_000, Epoch: 2}
	if err := state.PutBondPosition(owner, 2, position); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := state.BondPosition(owner, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *loaded != *position {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	if _, err := state.BondPosition(other, 2); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}

	// A record stored under the wrong owner key is rejected on load.
	stray := &bonds.Position{Owner: owner}
	if err := state.PutBondPosition(other, 3, stray); err != nil {
		t.Fatalf("put stray: %v", err)
	}
	if _, err := state.BondPosition(other, 3); !errors.Is(err, ErrUnexpectedAccount) {
		t.Fatalf("expected unexpected account, got %v", err)
	}
}

func TestBoardroomStatusVariantsPersist(t *testing.T) {
	state := NewState(storage.NewMemDB())
	owner := types.Address{0xcc}

	for _, status := range []boardroom.Status{
		boardroom.Fluid{FluidUntil: 7},
		boardroom.Frozen{BecameFrozen: 8},
		boardroom.Locked{LockedUntil: 9},
	} {
		account := boardroom.NewAccount(1, 100, 0)
		account.Status = status
		account.StagedBalance = 55
		if err := state.PutBoardroomAccount(owner, account); err != nil {
			t.Fatalf("put %T: %v", status, err)
		}
		loaded, err := state.BoardroomAccount(owner)
		if err != nil {
			t.Fatalf("load %T: %v", status, err)
		}
		if loaded.Status != status {
			t.Fatalf("status round trip: got %+v, want %+v", loaded.Status, status)
		}
		if loaded.StagedBalance != 55 {
			t.Fatalf("staged balance lost for %T", status)
		}
	}
}

func TestStakeRecordLifecycle(t *testing.T) {
	state := NewState(storage.NewMemDB())
	owner := types.Address{0xdd}

	ix := positions.New(0, 0)
	seed := ix.Create()
	record := staking.NewRecord(owner, types.MintID{0xee}, 3, 1_700_000_000, 0)

	if err := state.PutStakeRecord(owner, seed, record); err != nil {
		t.Fatalf("put record: %v", err)
	}
	if err := state.PutStakeIndex(owner, ix); err != nil {
		t.Fatalf("put index: %v", err)
	}

	loadedIx, err := state.StakeIndex(owner)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if loadedIx != ix {
		t.Fatalf("index round trip: got %+v, want %+v", loadedIx, ix)
	}
	loaded, err := state.StakeRecord(owner, seed)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if *loaded != *record {
		t.Fatalf("record round trip: got %+v, want %+v", loaded, record)
	}

	if err := state.DeleteStakeRecord(owner, seed); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := state.StakeRecord(owner, seed); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
