package treasury

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"unitbank/core/types"
	"unitbank/native/boardroom"
	"unitbank/native/bonds"
	"unitbank/native/epoch"
	"unitbank/native/positions"
	"unitbank/native/pricing"
	"unitbank/native/staking"
	"unitbank/observability/metrics"
	"unitbank/storage"
)

// HostClock supplies the wall clock and slot readings stamped onto state
// transitions. Production uses the system clock; tests inject fixed readings.
type HostClock interface {
	Now() (int64, uint64)
}

type systemClock struct{}

// Now returns the unix timestamp twice, once as the slot reading. Without an
// external slot source the unix second is the monotonic stand-in.
func (systemClock) Now() (int64, uint64) {
	now := time.Now().Unix()
	return now, uint64(now)
}

// TokenLedger is the external token collaborator. The treasury never moves
// balances itself; it sequences ledger calls after its own guards pass.
type TokenLedger interface {
	MintUnits(to types.Address, amount uint64) error
	TransferUnits(from, to types.Address, amount uint64) error
	TransferNFT(mint types.MintID, from, to types.Address) error
	CloseCustody(custody types.Address) error
}

// NFTVerifier validates collection membership before a stake is accepted.
type NFTVerifier interface {
	VerifyCollectionMember(mint types.MintID, owner types.Address, collection types.MintID) error
}

// Node hosts the treasury aggregate and executes its operations against the
// persistent state store. Every operation loads the records it touches, runs
// all guards, applies the transition in memory, and only then writes back.
// Operations serialise through a single mutex.
type Node struct {
	mu      sync.Mutex
	state   *State
	ledger  TokenLedger
	nfts    NFTVerifier
	pool    pricing.PoolSource
	clock   HostClock
	rewards staking.RewardPolicy
	logger  *slog.Logger
	metrics *metrics.TreasuryMetrics
}

// NodeOption customises a Node at construction.
type NodeOption func(*Node)

// WithClock overrides the host clock.
func WithClock(clock HostClock) NodeOption {
	return func(n *Node) { n.clock = clock }
}

// WithTokenLedger wires the token collaborator.
func WithTokenLedger(ledger TokenLedger) NodeOption {
	return func(n *Node) { n.ledger = ledger }
}

// WithNFTVerifier wires the NFT collection verifier.
func WithNFTVerifier(verifier NFTVerifier) NodeOption {
	return func(n *Node) { n.nfts = verifier }
}

// WithPoolSource wires the AMM pool consulted by the price oracle.
func WithPoolSource(source pricing.PoolSource) NodeOption {
	return func(n *Node) { n.pool = source }
}

// WithRewardPolicy overrides the staking reward policy hook.
func WithRewardPolicy(policy staking.RewardPolicy) NodeOption {
	return func(n *Node) { n.rewards = policy }
}

// WithLogger overrides the node logger.
func WithLogger(logger *slog.Logger) NodeOption {
	return func(n *Node) { n.logger = logger }
}

// NewNode constructs a treasury node over the given storage backend.
func NewNode(db storage.Database, opts ...NodeOption) *Node {
	n := &Node{
		state:   NewState(db),
		clock:   systemClock{},
		rewards: staking.FlatRewardPolicy,
		logger:  slog.Default(),
		metrics: metrics.Treasury(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// InitializeParams carries the references fixed at treasury creation.
type InitializeParams struct {
	Authority       types.Address
	Pool            types.Address
	UnitMint        types.MintID
	TokenAuthority  types.Address
	UnitCustody     types.Address
	LPCustody       types.Address
	StakeCollection types.MintID
	MinimumPeriod   uint64
}

// Initialize creates the treasury aggregate with a zeroed issuance pool; the
// authority seeds issuance afterwards with ResetBondIssuance. It fails if a
// treasury already exists.
func (n *Node) Initialize(params InitializeParams) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	exists, err := n.state.HasTreasury()
	if err != nil {
		return types.Event{}, err
	}
	if exists {
		return types.Event{}, ErrAlreadyInitialised
	}
	now, slot := n.clock.Now()
	t := &Treasury{
		Authority: params.Authority,
		Pool:      params.Pool,
		Epoch:     epoch.Genesis(now, slot),
		Bonds:     bonds.Pool{},
		Staking: staking.Config{
			Status:        true,
			Authority:     params.Authority,
			Collection:    params.StakeCollection,
			MinimumPeriod: params.MinimumPeriod,
		},
		UnitMint:       params.UnitMint,
		TokenAuthority: params.TokenAuthority,
		UnitCustody:    params.UnitCustody,
		LPCustody:      params.LPCustody,
	}
	if err := n.state.PutTreasury(t); err != nil {
		return types.Event{}, err
	}
	n.metrics.SetEpochIndex(t.Epoch.Index)
	n.metrics.SetAvailableBonds(0)
	n.logger.Info("treasury initialised",
		slog.String("authority", params.Authority.String()))
	return eventInitialised(params.Authority, t.Epoch.Index), nil
}

// Treasury returns a copy of the aggregate root for read callers.
func (n *Node) Treasury() (*Treasury, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Treasury()
}

// AdvanceEpoch moves the treasury into the next epoch. The gate requires a
// full epoch interval to have elapsed since the last advance.
func (n *Node) AdvanceEpoch(abovePeg bool, baseRate uint64) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return types.Event{}, err
	}
	now, slot := n.clock.Now()
	next, err := t.Epoch.Advance(now, slot, abovePeg, baseRate)
	if err != nil {
		n.metrics.IncOperationError("advance_epoch")
		return types.Event{}, err
	}
	t.Epoch = next
	if err := n.state.PutTreasury(t); err != nil {
		return types.Event{}, err
	}
	n.metrics.SetEpochIndex(next.Index)
	n.logger.Info("epoch advanced",
		slog.Uint64("epoch", next.Index),
		slog.Bool("abovePeg", abovePeg),
		slog.Uint64("baseRate", baseRate))
	return eventEpochAdvanced(next.Index, abovePeg, baseRate), nil
}

// RecordPriceObservation pulls the AMM pool's current price and appends it to
// the sliding observation window.
func (n *Node) RecordPriceObservation(aToB bool) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pool == nil {
		return types.Event{}, fmt.Errorf("%w: pool source", ErrCollaboratorNotConfigured)
	}
	t, err := n.state.Treasury()
	if err != nil {
		return types.Event{}, err
	}
	now, slot := n.clock.Now()
	observation, err := pricing.Observe(n.pool, aToB, slot, now)
	if err != nil {
		n.metrics.IncOperationError("record_price_observation")
		return types.Event{}, err
	}
	t.PriceHistory.Append(observation)
	if err := n.state.PutTreasury(t); err != nil {
		return types.Event{}, err
	}
	n.metrics.ObservePriceObservation()
	n.logger.Debug("price observed",
		slog.Uint64("value", observation.Price.Value),
		slog.Uint64("exp", observation.Price.Exp),
		slog.Uint64("slot", slot))
	return eventPriceObserved(observation.Price.Value, observation.Price.Exp, slot), nil
}

// TWAP averages the retained observation window at the latest observation's
// exponent.
func (n *Node) TWAP() (pricing.Twap, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return pricing.Twap{}, err
	}
	return t.PriceHistory.TWAP(t.PriceHistory.Latest().Price.Exp)
}

// ResetBondIssuance replenishes the bond issuance pool. Authority only.
func (n *Node) ResetBondIssuance(caller types.Address, available uint64) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return types.Event{}, err
	}
	if caller != t.Authority {
		n.metrics.IncOperationError("reset_bond_issuance")
		return types.Event{}, fmt.Errorf("%w: caller is not the authority", ErrUnexpectedAccount)
	}
	t.Bonds.AvailableBonds = available
	if err := n.state.PutTreasury(t); err != nil {
		return types.Event{}, err
	}
	n.metrics.SetAvailableBonds(available)
	n.logger.Info("bond issuance reset", slog.Uint64("available", available))
	return eventBondIssuanceReset(available), nil
}

// SetStakingStatus switches the staking program on or off. Restricted to the
// staking authority.
func (n *Node) SetStakingStatus(caller types.Address, active bool) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return types.Event{}, err
	}
	if caller != t.Staking.Authority {
		n.metrics.IncOperationError("set_staking_status")
		return types.Event{}, fmt.Errorf("%w: caller is not the staking authority", ErrUnexpectedAccount)
	}
	t.Staking.Status = active
	if err := n.state.PutTreasury(t); err != nil {
		return types.Event{}, err
	}
	n.logger.Info("staking status set", slog.Bool("active", active))
	return eventStakingStatusSet(active), nil
}

// CreateBondPositionIndex allocates the per-user bond position ledger. Bond
// indexes start at offset 1 so the first position takes seed 2.
func (n *Node) CreateBondPositionIndex(owner types.Address) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := n.state.Treasury(); err != nil {
		return types.Event{}, err
	}
	exists, err := n.state.HasBondIndex(owner)
	if err != nil {
		return types.Event{}, err
	}
	if exists {
		return types.Event{}, ErrAccountExists
	}
	ix := positions.New(1, 0)
	if err := n.state.PutBondIndex(owner, ix); err != nil {
		return types.Event{}, err
	}
	n.logger.Info("bond index created", slog.String("owner", owner.String()))
	return eventIndexCreated(EventTypeBondIndexCreated, owner, ix.Offset), nil
}

// CreateStakeRecordIndex allocates the per-user stake record ledger.
func (n *Node) CreateStakeRecordIndex(owner types.Address) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := n.state.Treasury(); err != nil {
		return types.Event{}, err
	}
	exists, err := n.state.HasStakeIndex(owner)
	if err != nil {
		return types.Event{}, err
	}
	if exists {
		return types.Event{}, ErrAccountExists
	}
	ix := positions.New(0, 0)
	if err := n.state.PutStakeIndex(owner, ix); err != nil {
		return types.Event{}, err
	}
	n.logger.Info("stake index created", slog.String("owner", owner.String()))
	return eventIndexCreated(EventTypeStakeIndexCreated, owner, ix.Offset), nil
}

// CreateBondPosition opens an empty bond position at the owner's next index
// seed. The position is filled by subsequent purchases.
func (n *Node) CreateBondPosition(owner types.Address) (uint64, types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := n.state.Treasury(); err != nil {
		return 0, types.Event{}, err
	}
	ix, err := n.state.BondIndex(owner)
	if err != nil {
		return 0, types.Event{}, err
	}
	seed := ix.Create()
	position := &bonds.Position{Owner: owner}
	if err := n.state.PutBondPosition(owner, seed, position); err != nil {
		return 0, types.Event{}, err
	}
	if err := n.state.PutBondIndex(owner, ix); err != nil {
		return 0, types.Event{}, err
	}
	n.logger.Info("bond position opened",
		slog.String("owner", owner.String()),
		slog.Uint64("seed", seed))
	return seed, eventBondPositionOpened(owner, seed), nil
}

// PurchaseBonds converts units into bonds at the current epoch's interest rate
// and credits them to the owner's position at seed. Unit custody transfer runs
// only after the full transition has been applied.
func (n *Node) PurchaseBonds(owner types.Address, seed, units uint64) (uint64, types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return 0, types.Event{}, err
	}
	ix, err := n.state.BondIndex(owner)
	if err != nil {
		return 0, types.Event{}, err
	}
	position, err := n.state.BondPosition(owner, seed)
	if err != nil {
		return 0, types.Event{}, err
	}
	purchased, err := bonds.Purchase(&t.Bonds, &ix, position, t.EpochIndex(), t.InterestRate(), seed, units)
	if err != nil {
		n.metrics.IncOperationError("purchase_bonds")
		return 0, types.Event{}, err
	}
	if n.ledger != nil {
		if err := n.ledger.TransferUnits(owner, t.UnitCustody, units); err != nil {
			return 0, types.Event{}, fmt.Errorf("treasury: custody transfer: %w", err)
		}
	}
	if err := n.state.PutBondPosition(owner, seed, position); err != nil {
		return 0, types.Event{}, err
	}
	if err := n.state.PutTreasury(t); err != nil {
		return 0, types.Event{}, err
	}
	n.metrics.ObservePurchase(purchased)
	n.metrics.SetAvailableBonds(t.Bonds.AvailableBonds)
	n.logger.Info("bonds purchased",
		slog.String("owner", owner.String()),
		slog.Uint64("seed", seed),
		slog.Uint64("units", units),
		slog.Uint64("bonds", purchased))
	return purchased, eventBondsPurchased(owner, seed, units, purchased), nil
}

// Stake locks an NFT from the configured collection and records the stake at
// the owner's next index seed.
func (n *Node) Stake(staker types.Address, mint types.MintID) (uint64, types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return 0, types.Event{}, err
	}
	if !t.Staking.Status {
		n.metrics.IncOperationError("stake")
		return 0, types.Event{}, staking.ErrInactive
	}
	if n.nfts == nil {
		return 0, types.Event{}, fmt.Errorf("%w: nft verifier", ErrCollaboratorNotConfigured)
	}
	if err := n.nfts.VerifyCollectionMember(mint, staker, t.Staking.Collection); err != nil {
		n.metrics.IncOperationError("stake")
		return 0, types.Event{}, fmt.Errorf("treasury: verify collection: %w", err)
	}
	ix, err := n.state.StakeIndex(staker)
	if err != nil {
		return 0, types.Event{}, err
	}
	now, _ := n.clock.Now()
	seed := ix.Create()
	record := staking.NewRecord(staker, mint, t.EpochIndex(), now, 0)
	if n.ledger != nil {
		if err := n.ledger.TransferNFT(mint, staker, t.UnitCustody); err != nil {
			return 0, types.Event{}, fmt.Errorf("treasury: nft custody: %w", err)
		}
	}
	if err := n.state.PutStakeRecord(staker, seed, record); err != nil {
		return 0, types.Event{}, err
	}
	if err := n.state.PutStakeIndex(staker, ix); err != nil {
		return 0, types.Event{}, err
	}
	n.metrics.ObserveStakeOperation("stake")
	n.logger.Info("nft staked",
		slog.String("staker", staker.String()),
		slog.String("mint", mint.String()),
		slog.Uint64("seed", seed))
	return seed, eventStaked(staker, mint, seed), nil
}

// ClaimStakingReward runs the reward policy for the stake at seed and mints
// the payout. The staking clock resets so the next claim accrues from now.
func (n *Node) ClaimStakingReward(staker types.Address, seed uint64) (uint64, types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return 0, types.Event{}, err
	}
	if !t.Staking.Status {
		n.metrics.IncOperationError("claim_staking_reward")
		return 0, types.Event{}, staking.ErrInactive
	}
	ix, err := n.state.StakeIndex(staker)
	if err != nil {
		return 0, types.Event{}, err
	}
	if err := ix.ValidateSeed(seed); err != nil {
		n.metrics.IncOperationError("claim_staking_reward")
		return 0, types.Event{}, err
	}
	record, err := n.state.StakeRecord(staker, seed)
	if err != nil {
		return 0, types.Event{}, err
	}
	now, _ := n.clock.Now()
	amount, err := n.payReward(staker, record, t.Staking.MinimumPeriod, now)
	if err != nil {
		n.metrics.IncOperationError("claim_staking_reward")
		return 0, types.Event{}, err
	}
	record.StakedAt = now
	if err := n.state.PutStakeRecord(staker, seed, record); err != nil {
		return 0, types.Event{}, err
	}
	n.metrics.ObserveStakeOperation("claim")
	n.metrics.ObserveRewardPaid(amount)
	n.logger.Info("staking reward claimed",
		slog.String("staker", staker.String()),
		slog.Uint64("seed", seed),
		slog.Uint64("amount", amount))
	return amount, eventRewardClaimed(staker, seed, amount), nil
}

// Unstake closes the oldest stake, pays any final reward, and returns the NFT.
func (n *Node) Unstake(staker types.Address, seed uint64) (uint64, types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return 0, types.Event{}, err
	}
	ix, err := n.state.StakeIndex(staker)
	if err != nil {
		return 0, types.Event{}, err
	}
	if err := ix.ValidateSeed(seed); err != nil {
		n.metrics.IncOperationError("unstake")
		return 0, types.Event{}, err
	}
	record, err := n.state.StakeRecord(staker, seed)
	if err != nil {
		return 0, types.Event{}, err
	}
	if err := ix.CloseOldest(seed); err != nil {
		n.metrics.IncOperationError("unstake")
		return 0, types.Event{}, err
	}
	// The final reward is only minted while the staking program is active;
	// an unstake after the authority disables staking still returns the NFT.
	var reward uint64
	if t.Staking.Status {
		now, _ := n.clock.Now()
		reward, err = n.payReward(staker, record, t.Staking.MinimumPeriod, now)
		if err != nil && !isIneligible(err) {
			n.metrics.IncOperationError("unstake")
			return 0, types.Event{}, err
		}
	}
	if n.ledger != nil {
		if err := n.ledger.TransferNFT(record.NFTMint, t.UnitCustody, staker); err != nil {
			return 0, types.Event{}, fmt.Errorf("treasury: return nft: %w", err)
		}
	}
	if err := n.state.DeleteStakeRecord(staker, seed); err != nil {
		return 0, types.Event{}, err
	}
	if err := n.state.PutStakeIndex(staker, ix); err != nil {
		return 0, types.Event{}, err
	}
	n.metrics.ObserveStakeOperation("unstake")
	n.metrics.ObserveRewardPaid(reward)
	n.logger.Info("nft unstaked",
		slog.String("staker", staker.String()),
		slog.Uint64("seed", seed),
		slog.Uint64("reward", reward))
	return reward, eventUnstaked(staker, record.NFTMint, seed, reward), nil
}

// payReward evaluates the reward policy and mints the payout when eligible.
func (n *Node) payReward(staker types.Address, record *staking.Record, minimumPeriod uint64, now int64) (uint64, error) {
	eligible, amount, err := n.rewards(record.StakedAt, minimumPeriod, now)
	if err != nil {
		return 0, err
	}
	if !eligible {
		return 0, staking.ErrIneligible
	}
	if n.ledger != nil && amount > 0 {
		if err := n.ledger.MintUnits(staker, amount); err != nil {
			return 0, fmt.Errorf("treasury: mint reward: %w", err)
		}
	}
	return amount, nil
}

func isIneligible(err error) bool {
	return errors.Is(err, staking.ErrIneligible)
}

// CreateBoardroomAccount opens a boardroom account in the Frozen status for
// the current epoch.
func (n *Node) CreateBoardroomAccount(owner types.Address) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return types.Event{}, err
	}
	exists, err := n.state.HasBoardroomAccount(owner)
	if err != nil {
		return types.Event{}, err
	}
	if exists {
		return types.Event{}, ErrAccountExists
	}
	now, _ := n.clock.Now()
	account := boardroom.NewAccount(t.EpochIndex(), now, 0)
	if err := n.state.PutBoardroomAccount(owner, account); err != nil {
		return types.Event{}, err
	}
	n.logger.Info("boardroom account created", slog.String("owner", owner.String()))
	return eventBoardroomCreated(owner, t.EpochIndex()), nil
}

// BoardroomDeposit stages units into the owner's boardroom account. The
// account balance and the treasury-wide total move together or not at all.
func (n *Node) BoardroomDeposit(owner types.Address, amount uint64) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return types.Event{}, err
	}
	account, err := n.state.BoardroomAccount(owner)
	if err != nil {
		return types.Event{}, err
	}
	if err := account.DepositStaged(amount); err != nil {
		n.metrics.IncOperationError("boardroom_deposit")
		return types.Event{}, err
	}
	if err := t.Boardroom.Add(amount); err != nil {
		n.metrics.IncOperationError("boardroom_deposit")
		return types.Event{}, err
	}
	if n.ledger != nil {
		if err := n.ledger.TransferUnits(owner, t.UnitCustody, amount); err != nil {
			return types.Event{}, fmt.Errorf("treasury: custody transfer: %w", err)
		}
	}
	if err := n.state.PutBoardroomAccount(owner, account); err != nil {
		return types.Event{}, err
	}
	if err := n.state.PutTreasury(t); err != nil {
		return types.Event{}, err
	}
	n.metrics.SetBoardroomStaged(t.Boardroom.TotalDepositedUnits)
	n.logger.Info("boardroom deposit",
		slog.String("owner", owner.String()),
		slog.Uint64("amount", amount))
	return eventBoardroomMoved(EventTypeBoardroomDeposit, owner, amount, account.StagedBalance), nil
}

// BoardroomWithdraw returns staged units from the owner's boardroom account.
func (n *Node) BoardroomWithdraw(owner types.Address, amount uint64) (types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := n.state.Treasury()
	if err != nil {
		return types.Event{}, err
	}
	account, err := n.state.BoardroomAccount(owner)
	if err != nil {
		return types.Event{}, err
	}
	if err := account.WithdrawStaged(amount); err != nil {
		n.metrics.IncOperationError("boardroom_withdraw")
		return types.Event{}, err
	}
	if err := t.Boardroom.Sub(amount); err != nil {
		n.metrics.IncOperationError("boardroom_withdraw")
		return types.Event{}, err
	}
	if n.ledger != nil {
		if err := n.ledger.TransferUnits(t.UnitCustody, owner, amount); err != nil {
			return types.Event{}, fmt.Errorf("treasury: custody transfer: %w", err)
		}
	}
	if err := n.state.PutBoardroomAccount(owner, account); err != nil {
		return types.Event{}, err
	}
	if err := n.state.PutTreasury(t); err != nil {
		return types.Event{}, err
	}
	n.metrics.SetBoardroomStaged(t.Boardroom.TotalDepositedUnits)
	n.logger.Info("boardroom withdraw",
		slog.String("owner", owner.String()),
		slog.Uint64("amount", amount))
	return eventBoardroomMoved(EventTypeBoardroomWithdraw, owner, amount, account.StagedBalance), nil
}

// BondPosition returns the owner's bond position at seed.
func (n *Node) BondPosition(owner types.Address, seed uint64) (*bonds.Position, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.BondPosition(owner, seed)
}

// StakeRecord returns the owner's stake record at seed.
func (n *Node) StakeRecord(owner types.Address, seed uint64) (*staking.Record, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.StakeRecord(owner, seed)
}

// BoardroomAccount returns the owner's boardroom account.
func (n *Node) BoardroomAccount(owner types.Address) (*boardroom.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.BoardroomAccount(owner)
}
