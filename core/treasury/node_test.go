package treasury

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/holiman/uint256"

	"unitbank/core/types"
	"unitbank/native/bonds"
	"unitbank/native/epoch"
	"unitbank/native/positions"
	"unitbank/native/pricing"
	"unitbank/native/staking"
	"unitbank/storage"
)

type fixedClock struct {
	now  int64
	slot uint64
}

func (c *fixedClock) Now() (int64, uint64) {
	return c.now, c.slot
}

func (c *fixedClock) advance(seconds int64) {
	c.now += seconds
	c.slot += uint64(seconds)
}

type transfer struct {
	from   types.Address
	to     types.Address
	amount uint64
}

type nftMove struct {
	mint types.MintID
	from types.Address
	to   types.Address
}

type ledgerStub struct {
	minted    map[types.Address]uint64
	transfers []transfer
	nftMoves  []nftMove
	closed    []types.Address
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{minted: make(map[types.Address]uint64)}
}

func (l *ledgerStub) MintUnits(to types.Address, amount uint64) error {
	l.minted[to] += amount
	return nil
}

func (l *ledgerStub) TransferUnits(from, to types.Address, amount uint64) error {
	l.transfers = append(l.transfers, transfer{from: from, to: to, amount: amount})
	return nil
}

func (l *ledgerStub) TransferNFT(mint types.MintID, from, to types.Address) error {
	l.nftMoves = append(l.nftMoves, nftMove{mint: mint, from: from, to: to})
	return nil
}

func (l *ledgerStub) CloseCustody(custody types.Address) error {
	l.closed = append(l.closed, custody)
	return nil
}

type verifierStub struct {
	err error
}

func (v *verifierStub) VerifyCollectionMember(types.MintID, types.Address, types.MintID) error {
	return v.err
}

type poolStub struct {
	state pricing.PoolState
}

func (p *poolStub) PoolState() (pricing.PoolState, error) {
	return p.state, nil
}

var (
	testAuthority = types.Address{0x01}
	testOwner     = types.Address{0x02}
	testCustody   = types.Address{0x03}
	testMint      = types.MintID{0x04}
	testNFT       = types.MintID{0x05}
)

func testParams() InitializeParams {
	return InitializeParams{
		Authority:       testAuthority,
		Pool:            types.Address{0x09},
		UnitMint:        testMint,
		TokenAuthority:  types.Address{0x0a},
		UnitCustody:     testCustody,
		LPCustody:       types.Address{0x0b},
		StakeCollection: types.MintID{0x0c},
	}
}

func newTestNode(t *testing.T, opts ...NodeOption) (*Node, *fixedClock, *ledgerStub) {
	t.Helper()
	clock := &fixedClock{now: 1_700_000_000, slot: 500}
	ledger := newLedgerStub()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []NodeOption{
		WithClock(clock),
		WithTokenLedger(ledger),
		WithNFTVerifier(&verifierStub{}),
		WithLogger(logger),
	}
	node := NewNode(storage.NewMemDB(), append(base, opts...)...)
	if _, err := node.Initialize(testParams()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := node.ResetBondIssuance(testAuthority, 10_000); err != nil {
		t.Fatalf("seed issuance: %v", err)
	}
	return node, clock, ledger
}

func TestInitializeOnce(t *testing.T) {
	node, _, _ := newTestNode(t)
	if _, err := node.Initialize(testParams()); !errors.Is(err, ErrAlreadyInitialised) {
		t.Fatalf("expected already initialised, got %v", err)
	}
	state, err := node.Treasury()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Epoch.Index != 0 || state.Bonds.AvailableBonds != 10_000 {
		t.Fatalf("unexpected treasury %+v", state)
	}
	if !state.Staking.Status {
		t.Fatal("staking should start active")
	}
}

func TestBondPurchaseFlow(t *testing.T) {
	node, _, ledger := newTestNode(t)

	if _, err := node.CreateBondPositionIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}
	if _, err := node.CreateBondPositionIndex(testOwner); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected duplicate index rejection, got %v", err)
	}

	seed, _, err := node.CreateBondPosition(testOwner)
	if err != nil {
		t.Fatalf("create position: %v", err)
	}
	if seed != 2 {
		t.Fatalf("first bond seed = %d, want 2", seed)
	}

	for i := 0; i < 2; i++ {
		purchased, _, err := node.PurchaseBonds(testOwner, seed, 1_000)
		if err != nil {
			t.Fatalf("purchase %d: %v", i, err)
		}
		if purchased != 1_000 {
			t.Fatalf("purchase %d = %d, want 1000", i, purchased)
		}
	}

	position, err := node.BondPosition(testOwner, seed)
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if position.Amount != 2_000 || position.Index != 0 {
		t.Fatalf("unexpected position %+v", position)
	}

	state, _ := node.Treasury()
	if state.Bonds.AvailableBonds != 8_000 || state.Bonds.TotalBondsPurchased != 2_000 {
		t.Fatalf("unexpected pool %+v", state.Bonds)
	}

	if len(ledger.transfers) != 2 {
		t.Fatalf("expected 2 custody transfers, got %d", len(ledger.transfers))
	}
	if got := ledger.transfers[0]; got.from != testOwner || got.to != testCustody || got.amount != 1_000 {
		t.Fatalf("unexpected transfer %+v", got)
	}
}

func TestPurchaseInvalidSeedLeavesStateUnchanged(t *testing.T) {
	node, _, ledger := newTestNode(t)
	if _, err := node.CreateBondPositionIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}
	seed, _, err := node.CreateBondPosition(testOwner)
	if err != nil {
		t.Fatalf("create position: %v", err)
	}

	if _, _, err := node.PurchaseBonds(testOwner, seed+1, 1_000); !errors.Is(err, positions.ErrInvalidSeedIndex) {
		t.Fatalf("expected invalid seed, got %v", err)
	}
	state, _ := node.Treasury()
	if state.Bonds.AvailableBonds != 10_000 || state.Bonds.BondsPurchased != 0 {
		t.Fatalf("pool mutated %+v", state.Bonds)
	}
	if len(ledger.transfers) != 0 {
		t.Fatalf("unexpected custody transfers %+v", ledger.transfers)
	}
}

func TestAdvanceEpochGateAndStalePositions(t *testing.T) {
	node, clock, _ := newTestNode(t)
	if _, err := node.CreateBondPositionIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}
	seed, _, err := node.CreateBondPosition(testOwner)
	if err != nil {
		t.Fatalf("create position: %v", err)
	}
	if _, _, err := node.PurchaseBonds(testOwner, seed, 1_000); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if _, err := node.AdvanceEpoch(true, 10); !errors.Is(err, epoch.ErrNotAdvanceable) {
		t.Fatalf("expected gate rejection, got %v", err)
	}

	clock.advance(epoch.SecondsPerEpoch)
	if _, err := node.AdvanceEpoch(false, 10); err != nil {
		t.Fatalf("advance: %v", err)
	}
	state, _ := node.Treasury()
	if state.Epoch.Index != 1 || state.Epoch.AbovePeg || state.Epoch.BaseRate != 10 {
		t.Fatalf("unexpected epoch %+v", state.Epoch)
	}

	// The funded position belongs to epoch 0 and cannot take more purchases.
	if _, _, err := node.PurchaseBonds(testOwner, seed, 1_000); !errors.Is(err, bonds.ErrInvalidEpoch) {
		t.Fatalf("expected stale epoch rejection, got %v", err)
	}

	// A fresh position purchases at the new 10-unit base rate.
	if _, err := node.ResetBondIssuance(testAuthority, 200_000_000); err != nil {
		t.Fatalf("reset issuance: %v", err)
	}
	fresh, _, err := node.CreateBondPosition(testOwner)
	if err != nil {
		t.Fatalf("create fresh position: %v", err)
	}
	purchased, _, err := node.PurchaseBonds(testOwner, fresh, 100_000_000)
	if err != nil {
		t.Fatalf("purchase fresh: %v", err)
	}
	if purchased != 100_000_010 {
		t.Fatalf("purchase at rate 10 = %d, want 100000010", purchased)
	}
}

func TestStakeClaimUnstake(t *testing.T) {
	node, clock, ledger := newTestNode(t)
	if _, err := node.CreateStakeRecordIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}

	seed, _, err := node.Stake(testOwner, testNFT)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if seed != 1 {
		t.Fatalf("first stake seed = %d, want 1", seed)
	}
	if len(ledger.nftMoves) != 1 || ledger.nftMoves[0].to != testCustody {
		t.Fatalf("nft not moved to custody: %+v", ledger.nftMoves)
	}

	clock.advance(100)
	amount, _, err := node.ClaimStakingReward(testOwner, seed)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount != staking.FlatRewardAmount {
		t.Fatalf("claim = %d, want %d", amount, staking.FlatRewardAmount)
	}
	record, err := node.StakeRecord(testOwner, seed)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.StakedAt != clock.now {
		t.Fatalf("staking clock not reset: %+v", record)
	}

	reward, _, err := node.Unstake(testOwner, seed)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if reward != staking.FlatRewardAmount {
		t.Fatalf("unstake reward = %d, want %d", reward, staking.FlatRewardAmount)
	}
	if got := ledger.minted[testOwner]; got != 2*staking.FlatRewardAmount {
		t.Fatalf("minted = %d, want %d", got, 2*staking.FlatRewardAmount)
	}
	if last := ledger.nftMoves[len(ledger.nftMoves)-1]; last.to != testOwner {
		t.Fatalf("nft not returned: %+v", last)
	}
	if _, err := node.StakeRecord(testOwner, seed); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected record destroyed, got %v", err)
	}
}

func TestUnstakeOutOfOrder(t *testing.T) {
	node, _, _ := newTestNode(t)
	if _, err := node.CreateStakeRecordIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}
	if _, _, err := node.Stake(testOwner, testNFT); err != nil {
		t.Fatalf("stake first: %v", err)
	}
	second, _, err := node.Stake(testOwner, types.MintID{0x06})
	if err != nil {
		t.Fatalf("stake second: %v", err)
	}
	if _, _, err := node.Unstake(testOwner, second); !errors.Is(err, positions.ErrNotOldest) {
		t.Fatalf("expected FIFO rejection, got %v", err)
	}
}

func TestStakingToggle(t *testing.T) {
	node, _, _ := newTestNode(t)
	if _, err := node.CreateStakeRecordIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}

	if _, err := node.SetStakingStatus(testOwner, false); !errors.Is(err, ErrUnexpectedAccount) {
		t.Fatalf("expected authority rejection, got %v", err)
	}
	if _, err := node.SetStakingStatus(testAuthority, false); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if _, _, err := node.Stake(testOwner, testNFT); !errors.Is(err, staking.ErrInactive) {
		t.Fatalf("expected inactive rejection, got %v", err)
	}
	if _, err := node.SetStakingStatus(testAuthority, true); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if _, _, err := node.Stake(testOwner, testNFT); err != nil {
		t.Fatalf("stake after re-enable: %v", err)
	}
}

func TestUnstakeWhileInactivePaysNothing(t *testing.T) {
	node, clock, ledger := newTestNode(t)
	if _, err := node.CreateStakeRecordIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}
	seed, _, err := node.Stake(testOwner, testNFT)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	clock.advance(100)
	if _, err := node.SetStakingStatus(testAuthority, false); err != nil {
		t.Fatalf("toggle off: %v", err)
	}

	reward, _, err := node.Unstake(testOwner, seed)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if reward != 0 {
		t.Fatalf("unstake reward = %d, want 0 while inactive", reward)
	}
	if got := ledger.minted[testOwner]; got != 0 {
		t.Fatalf("minted = %d, want 0", got)
	}
	if last := ledger.nftMoves[len(ledger.nftMoves)-1]; last.to != testOwner {
		t.Fatalf("nft not returned: %+v", last)
	}
	if _, err := node.StakeRecord(testOwner, seed); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected record destroyed, got %v", err)
	}
}

func TestIneligibleRewardPolicy(t *testing.T) {
	declined := func(int64, uint64, int64) (bool, uint64, error) {
		return false, 0, nil
	}
	node, _, ledger := newTestNode(t, WithRewardPolicy(declined))
	if _, err := node.CreateStakeRecordIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}
	seed, _, err := node.Stake(testOwner, testNFT)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}

	if _, _, err := node.ClaimStakingReward(testOwner, seed); !errors.Is(err, staking.ErrIneligible) {
		t.Fatalf("expected ineligible claim, got %v", err)
	}

	reward, _, err := node.Unstake(testOwner, seed)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if reward != 0 {
		t.Fatalf("unstake reward = %d, want 0", reward)
	}
	if got := ledger.minted[testOwner]; got != 0 {
		t.Fatalf("minted = %d, want 0", got)
	}
	if last := ledger.nftMoves[len(ledger.nftMoves)-1]; last.to != testOwner {
		t.Fatalf("nft not returned: %+v", last)
	}
}

func TestStakeRejectedByVerifier(t *testing.T) {
	node, _, ledger := newTestNode(t, WithNFTVerifier(&verifierStub{err: errors.New("not in collection")}))
	if _, err := node.CreateStakeRecordIndex(testOwner); err != nil {
		t.Fatalf("create index: %v", err)
	}
	if _, _, err := node.Stake(testOwner, testNFT); err == nil {
		t.Fatal("expected verifier rejection")
	}
	if len(ledger.nftMoves) != 0 {
		t.Fatalf("nft moved despite rejection: %+v", ledger.nftMoves)
	}
}

func TestBoardroomFlow(t *testing.T) {
	node, _, ledger := newTestNode(t)

	if _, err := node.CreateBoardroomAccount(testOwner); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := node.CreateBoardroomAccount(testOwner); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	if _, err := node.BoardroomDeposit(testOwner, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := node.BoardroomWithdraw(testOwner, 200); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	account, err := node.BoardroomAccount(testOwner)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.StagedBalance != 300 {
		t.Fatalf("staged = %d, want 300", account.StagedBalance)
	}
	state, _ := node.Treasury()
	if state.Boardroom.TotalDepositedUnits != 300 {
		t.Fatalf("treasury total = %d, want 300", state.Boardroom.TotalDepositedUnits)
	}

	if _, err := node.BoardroomWithdraw(testOwner, 400); err == nil {
		t.Fatal("expected overdraw rejection")
	}
	state, _ = node.Treasury()
	if state.Boardroom.TotalDepositedUnits != 300 {
		t.Fatalf("failed withdraw mutated total to %d", state.Boardroom.TotalDepositedUnits)
	}

	// Deposit and withdraw each move custody once.
	if len(ledger.transfers) != 2 {
		t.Fatalf("expected 2 custody transfers, got %d", len(ledger.transfers))
	}
	if back := ledger.transfers[1]; back.from != testCustody || back.to != testOwner || back.amount != 200 {
		t.Fatalf("unexpected withdraw transfer %+v", back)
	}
}

func TestPriceObservationAndTWAP(t *testing.T) {
	pool := &poolStub{state: pricing.PoolState{
		SqrtPriceX64: new(uint256.Int).Lsh(uint256.NewInt(1), 64),
		DecimalsA:    6,
		DecimalsB:    6,
	}}
	node, clock, _ := newTestNode(t, WithPoolSource(pool))

	for i := 0; i < pricing.ObservationCount; i++ {
		clock.advance(60)
		if _, err := node.RecordPriceObservation(true); err != nil {
			t.Fatalf("observe %d: %v", i, err)
		}
	}

	twap, err := node.TWAP()
	if err != nil {
		t.Fatalf("twap: %v", err)
	}
	if twap.Twap != 100_000_000_000_000_000 || twap.Exp != 17 {
		t.Fatalf("unexpected twap %+v", twap)
	}

	state, _ := node.Treasury()
	latest := state.PriceHistory.Latest()
	if latest.LastUpdatedSlot != clock.slot || latest.UnixTimestamp != uint64(clock.now) {
		t.Fatalf("clock stamps missing %+v", latest)
	}
}

func TestObservationWithoutPoolSource(t *testing.T) {
	node, _, _ := newTestNode(t)
	if _, err := node.RecordPriceObservation(true); !errors.Is(err, ErrCollaboratorNotConfigured) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestResetBondIssuance(t *testing.T) {
	node, _, _ := newTestNode(t)
	if _, err := node.ResetBondIssuance(testOwner, 99); !errors.Is(err, ErrUnexpectedAccount) {
		t.Fatalf("expected authority rejection, got %v", err)
	}
	if _, err := node.ResetBondIssuance(testAuthority, 42_000); err != nil {
		t.Fatalf("reset: %v", err)
	}
	state, _ := node.Treasury()
	if state.Bonds.AvailableBonds != 42_000 {
		t.Fatalf("available = %d, want 42000", state.Bonds.AvailableBonds)
	}
}

func TestOperationsBeforeInitialize(t *testing.T) {
	node := NewNode(storage.NewMemDB(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if _, err := node.CreateBondPositionIndex(testOwner); !errors.Is(err, ErrNotInitialised) {
		t.Fatalf("expected not initialised, got %v", err)
	}
	if _, err := node.AdvanceEpoch(true, 0); !errors.Is(err, ErrNotInitialised) {
		t.Fatalf("expected not initialised, got %v", err)
	}
}
