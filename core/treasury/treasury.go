package treasury

import (
	"unitbank/core/types"
	"unitbank/native/boardroom"
	"unitbank/native/bonds"
	"unitbank/native/epoch"
	"unitbank/native/pricing"
	"unitbank/native/staking"
)

// Treasury is the aggregate root of the protocol. A single instance is created
// at initialisation, persisted under a stable key, and passed explicitly into
// every operation.
type Treasury struct {
	// Authority of the treasury, may be a multi-sig.
	Authority types.Address
	// Pool is the external AMM pool consulted by the price oracle.
	Pool types.Address
	// Epoch is the current protocol epoch.
	Epoch epoch.Epoch
	// PriceHistory holds the last five oracle observations.
	PriceHistory pricing.Storage
	// Bonds is the depletable bond issuance pool.
	Bonds bonds.Pool
	// Staking holds the NFT staking program configuration.
	Staking staking.Config
	// UnitMint is the pegged unit token mint.
	UnitMint types.MintID
	// TokenAuthority owns the unit mint and custody accounts.
	TokenAuthority types.Address
	// UnitCustody and LPCustody are the token custody accounts.
	UnitCustody types.Address
	LPCustody   types.Address
	// Boardroom aggregates staged deposits across all boardroom accounts.
	Boardroom boardroom.Totals
	// UnitAuthBump and Bump carry the sub-account derivation metadata assigned
	// at creation.
	UnitAuthBump uint8
	Bump         uint8
}

// InterestRate returns the current epoch's base interest rate.
func (t *Treasury) InterestRate() uint64 {
	return t.Epoch.BaseRate
}

// EpochIndex returns the current epoch index.
func (t *Treasury) EpochIndex() uint64 {
	return t.Epoch.Index
}
