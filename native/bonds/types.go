package bonds

import "unitbank/core/types"

// Pool tracks the depletable bond issuance pool embedded in the treasury.
type Pool struct {
	// AvailableBonds is how many bonds remain purchasable; it only ever
	// decreases between resets.
	AvailableBonds uint64
	// BondsPurchased counts bonds purchased this epoch.
	BondsPurchased uint64
	// TotalBondsPurchased counts bonds ever purchased; doubles as the global
	// purchase-order sequence.
	TotalBondsPurchased uint64
	// Redeemed counts bonds ever redeemed.
	Redeemed uint64
	// RedeemableIndex is the total number of bonds that have ever been
	// redeemable, including previously redeemed bonds.
	RedeemableIndex uint64
}

// Position records bonds purchased by one owner within a single epoch.
type Position struct {
	Owner        types.Address
	Amount       uint64
	Epoch        uint64
	InterestRate uint64
	// Index is the pool's purchase-order sequence number captured at the
	// position's first contribution.
	Index uint64
	Bump  uint8
}
