package staking

import (
	"errors"

	"unitbank/core/types"
)

var (
	// ErrInactive is returned when staking mutations are attempted while the
	// program is switched off.
	ErrInactive = errors.New("staking: inactive")
	// ErrIneligible is returned when the reward policy declines a claim.
	ErrIneligible = errors.New("staking: ineligible for reward")
	// ErrNegativePeriod is returned when the elapsed stake period computes
	// negative, which indicates a clock inversion.
	ErrNegativePeriod = errors.New("staking: negative period value")
)

// Config holds the treasury-wide NFT staking program settings.
type Config struct {
	// Status switches the staking program on or off.
	Status bool
	// Authority may toggle the program and adjust its settings.
	Authority types.Address
	// Collection is the verified NFT collection accepted for staking.
	Collection types.MintID
	// MinimumPeriod is the minimum stake duration, in epochs, consumed by the
	// reward policy.
	MinimumPeriod uint64
	Bump          uint8
	NftAuthBump   uint8
}

// Record tracks a single staked NFT.
type Record struct {
	Staker      types.Address
	NFTMint     types.MintID
	StakedEpoch uint64
	StakedAt    int64
	Bump        uint8
}

// NewRecord opens a stake record at the current epoch and time.
func NewRecord(staker types.Address, nftMint types.MintID, stakedEpoch uint64, now int64, bump uint8) *Record {
	return &Record{
		Staker:      staker,
		NFTMint:     nftMint,
		StakedEpoch: stakedEpoch,
		StakedAt:    now,
		Bump:        bump,
	}
}

// RewardPolicy decides whether a stake record has earned a payout and how many
// units to mint. Policies must be pure with respect to their arguments.
type RewardPolicy func(stakedAt int64, minimumPeriod uint64, now int64) (eligible bool, amount uint64, err error)

// FlatRewardAmount is the payout issued by FlatRewardPolicy.
const FlatRewardAmount uint64 = 50_000_000

// FlatRewardPolicy pays a fixed amount to every live stake regardless of the
// elapsed period. It stands in until a real emission schedule is configured.
func FlatRewardPolicy(stakedAt int64, _ uint64, now int64) (bool, uint64, error) {
	if now < stakedAt {
		return false, 0, ErrNegativePeriod
	}
	return true, FlatRewardAmount, nil
}
