package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"unitbank/core/treasury"
	"unitbank/core/types"
	"unitbank/native/boardroom"
	"unitbank/native/bonds"
	"unitbank/native/common"
	"unitbank/native/epoch"
	"unitbank/native/positions"
	"unitbank/native/staking"
)

// Server exposes the treasury operations over HTTP.
type Server struct {
	node   *treasury.Node
	logger *slog.Logger
}

// NewServer builds the HTTP surface around a treasury node.
func NewServer(node *treasury.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{node: node, logger: logger}
}

// Router assembles the chi handler, optionally behind a rate limiter.
func (s *Server) Router(limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/v1/treasury", s.handleTreasury)
	r.Get("/v1/treasury/twap", s.handleTWAP)
	r.Post("/v1/treasury/initialize", s.handleInitialize)
	r.Post("/v1/treasury/epoch/advance", s.handleAdvanceEpoch)
	r.Post("/v1/treasury/price/observe", s.handleObservePrice)
	r.Post("/v1/treasury/bonds/reset", s.handleResetBondIssuance)

	r.Post("/v1/bonds/index", s.handleCreateBondIndex)
	r.Post("/v1/bonds/position", s.handleCreateBondPosition)
	r.Post("/v1/bonds/purchase", s.handlePurchaseBonds)
	r.Get("/v1/bonds/position/{owner}/{seed}", s.handleBondPosition)

	r.Post("/v1/staking/index", s.handleCreateStakeIndex)
	r.Post("/v1/staking/status", s.handleSetStakingStatus)
	r.Post("/v1/staking/stake", s.handleStake)
	r.Post("/v1/staking/claim", s.handleClaimReward)
	r.Post("/v1/staking/unstake", s.handleUnstake)

	r.Post("/v1/boardroom/account", s.handleCreateBoardroomAccount)
	r.Post("/v1/boardroom/deposit", s.handleBoardroomDeposit)
	r.Post("/v1/boardroom/withdraw", s.handleBoardroomWithdraw)
	r.Get("/v1/boardroom/account/{owner}", s.handleBoardroomAccount)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type eventResponse struct {
	Event types.Event `json:"event"`
}

type seedEventResponse struct {
	Seed  uint64      `json:"seed"`
	Event types.Event `json:"event"`
}

type amountEventResponse struct {
	Amount uint64      `json:"amount"`
	Event  types.Event `json:"event"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps the sentinel error taxonomy onto HTTP status codes. Guard
// failures are client errors; everything else is internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, treasury.ErrAccountNotFound), errors.Is(err, treasury.ErrNotInitialised):
		return http.StatusNotFound
	case errors.Is(err, treasury.ErrAlreadyInitialised), errors.Is(err, treasury.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, treasury.ErrUnexpectedAccount):
		return http.StatusForbidden
	case errors.Is(err, epoch.ErrNotAdvanceable),
		errors.Is(err, positions.ErrInvalidSeedIndex),
		errors.Is(err, positions.ErrEmpty),
		errors.Is(err, positions.ErrNotOldest),
		errors.Is(err, bonds.ErrInvalidEpoch),
		errors.Is(err, bonds.ErrInsufficientBonds),
		errors.Is(err, staking.ErrInactive),
		errors.Is(err, staking.ErrIneligible),
		errors.Is(err, staking.ErrNegativePeriod),
		errors.Is(err, boardroom.ErrInvalidAccountStatus),
		errors.Is(err, common.ErrMathOverflow),
		errors.Is(err, common.ErrConversionFailure),
		errors.Is(err, common.ErrOutOfRangeIntegralConversion):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, into any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

type initializeRequest struct {
	Authority       string `json:"authority"`
	Pool            string `json:"pool"`
	UnitMint        string `json:"unitMint"`
	TokenAuthority  string `json:"tokenAuthority"`
	UnitCustody     string `json:"unitCustody"`
	LPCustody       string `json:"lpCustody"`
	StakeCollection string `json:"stakeCollection"`
	MinimumPeriod   uint64 `json:"minimumPeriod"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	params := treasury.InitializeParams{
		MinimumPeriod: req.MinimumPeriod,
	}
	var err error
	if params.Authority, err = types.ParseAddress(req.Authority); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if params.Pool, err = types.ParseAddress(req.Pool); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if params.UnitMint, err = types.ParseMintID(req.UnitMint); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if params.TokenAuthority, err = types.ParseAddress(req.TokenAuthority); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if params.UnitCustody, err = types.ParseAddress(req.UnitCustody); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if params.LPCustody, err = types.ParseAddress(req.LPCustody); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if params.StakeCollection, err = types.ParseMintID(req.StakeCollection); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	event, err := s.node.Initialize(params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, eventResponse{Event: event})
}

type treasuryResponse struct {
	Authority      string `json:"authority"`
	EpochIndex     uint64 `json:"epochIndex"`
	EpochTimestamp int64  `json:"epochTimestamp"`
	AbovePeg       bool   `json:"abovePeg"`
	BaseRate       uint64 `json:"baseRate"`
	AvailableBonds uint64 `json:"availableBonds"`
	BondsPurchased uint64 `json:"bondsPurchased"`
	TotalBonds     uint64 `json:"totalBonds"`
	StakingActive  bool   `json:"stakingActive"`
	BoardroomUnits uint64 `json:"boardroomUnits"`
}

func (s *Server) handleTreasury(w http.ResponseWriter, _ *http.Request) {
	t, err := s.node.Treasury()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, treasuryResponse{
		Authority:      t.Authority.String(),
		EpochIndex:     t.Epoch.Index,
		EpochTimestamp: t.Epoch.Timestamp,
		AbovePeg:       t.Epoch.AbovePeg,
		BaseRate:       t.Epoch.BaseRate,
		AvailableBonds: t.Bonds.AvailableBonds,
		BondsPurchased: t.Bonds.BondsPurchased,
		TotalBonds:     t.Bonds.TotalBondsPurchased,
		StakingActive:  t.Staking.Status,
		BoardroomUnits: t.Boardroom.TotalDepositedUnits,
	})
}

type twapResponse struct {
	Twap uint64 `json:"twap"`
	Exp  uint64 `json:"exp"`
}

func (s *Server) handleTWAP(w http.ResponseWriter, _ *http.Request) {
	twap, err := s.node.TWAP()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, twapResponse{Twap: twap.Twap, Exp: twap.Exp})
}

type advanceEpochRequest struct {
	AbovePeg bool   `json:"abovePeg"`
	BaseRate uint64 `json:"baseRate"`
}

func (s *Server) handleAdvanceEpoch(w http.ResponseWriter, r *http.Request) {
	var req advanceEpochRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	event, err := s.node.AdvanceEpoch(req.AbovePeg, req.BaseRate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, eventResponse{Event: event})
}

type observePriceRequest struct {
	AToB bool `json:"aToB"`
}

func (s *Server) handleObservePrice(w http.ResponseWriter, r *http.Request) {
	var req observePriceRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	event, err := s.node.RecordPriceObservation(req.AToB)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, eventResponse{Event: event})
}

type resetBondsRequest struct {
	Caller    string `json:"caller"`
	Available uint64 `json:"available"`
}

func (s *Server) handleResetBondIssuance(w http.ResponseWriter, r *http.Request) {
	var req resetBondsRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	caller, err := types.ParseAddress(req.Caller)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	event, err := s.node.ResetBondIssuance(caller, req.Available)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, eventResponse{Event: event})
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) ownerFromBody(w http.ResponseWriter, r *http.Request) (types.Address, bool) {
	var req ownerRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return types.Address{}, false
	}
	owner, err := types.ParseAddress(req.Owner)
	if err != nil {
		s.writeBadRequest(w, err)
		return types.Address{}, false
	}
	return owner, true
}

func (s *Server) handleCreateBondIndex(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerFromBody(w, r)
	if !ok {
		return
	}
	event, err := s.node.CreateBondPositionIndex(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, eventResponse{Event: event})
}

func (s *Server) handleCreateStakeIndex(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerFromBody(w, r)
	if !ok {
		return
	}
	event, err := s.node.CreateStakeRecordIndex(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, eventResponse{Event: event})
}

func (s *Server) handleCreateBondPosition(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerFromBody(w, r)
	if !ok {
		return
	}
	seed, event, err := s.node.CreateBondPosition(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, seedEventResponse{Seed: seed, Event: event})
}

type purchaseRequest struct {
	Owner string `json:"owner"`
	Seed  uint64 `json:"seed"`
	Units uint64 `json:"units"`
}

func (s *Server) handlePurchaseBonds(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	owner, err := types.ParseAddress(req.Owner)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	purchased, event, err := s.node.PurchaseBonds(owner, req.Seed, req.Units)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountEventResponse{Amount: purchased, Event: event})
}

type bondPositionResponse struct {
	Owner        string `json:"owner"`
	Amount       uint64 `json:"amount"`
	Epoch        uint64 `json:"epoch"`
	InterestRate uint64 `json:"interestRate"`
	Index        uint64 `json:"index"`
}

func (s *Server) handleBondPosition(w http.ResponseWriter, r *http.Request) {
	owner, err := types.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	seed, err := parseSeed(chi.URLParam(r, "seed"))
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	position, err := s.node.BondPosition(owner, seed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bondPositionResponse{
		Owner:        position.Owner.String(),
		Amount:       position.Amount,
		Epoch:        position.Epoch,
		InterestRate: position.InterestRate,
		Index:        position.Index,
	})
}

type stakingStatusRequest struct {
	Caller string `json:"caller"`
	Active bool   `json:"active"`
}

func (s *Server) handleSetStakingStatus(w http.ResponseWriter, r *http.Request) {
	var req stakingStatusRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	caller, err := types.ParseAddress(req.Caller)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	event, err := s.node.SetStakingStatus(caller, req.Active)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, eventResponse{Event: event})
}

type stakeRequest struct {
	Staker string `json:"staker"`
	Mint   string `json:"mint"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	staker, err := types.ParseAddress(req.Staker)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	mint, err := types.ParseMintID(req.Mint)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	seed, event, err := s.node.Stake(staker, mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, seedEventResponse{Seed: seed, Event: event})
}

type stakeSeedRequest struct {
	Staker string `json:"staker"`
	Seed   uint64 `json:"seed"`
}

func (s *Server) stakeSeedFromBody(w http.ResponseWriter, r *http.Request) (types.Address, uint64, bool) {
	var req stakeSeedRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return types.Address{}, 0, false
	}
	staker, err := types.ParseAddress(req.Staker)
	if err != nil {
		s.writeBadRequest(w, err)
		return types.Address{}, 0, false
	}
	return staker, req.Seed, true
}

func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	staker, seed, ok := s.stakeSeedFromBody(w, r)
	if !ok {
		return
	}
	amount, event, err := s.node.ClaimStakingReward(staker, seed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountEventResponse{Amount: amount, Event: event})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	staker, seed, ok := s.stakeSeedFromBody(w, r)
	if !ok {
		return
	}
	reward, event, err := s.node.Unstake(staker, seed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountEventResponse{Amount: reward, Event: event})
}

func (s *Server) handleCreateBoardroomAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerFromBody(w, r)
	if !ok {
		return
	}
	event, err := s.node.CreateBoardroomAccount(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, eventResponse{Event: event})
}

type boardroomMoveRequest struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

func (s *Server) boardroomMove(w http.ResponseWriter, r *http.Request, op func(types.Address, uint64) (types.Event, error)) {
	var req boardroomMoveRequest
	if err := decode(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	owner, err := types.ParseAddress(req.Owner)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	event, err := op(owner, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, eventResponse{Event: event})
}

func (s *Server) handleBoardroomDeposit(w http.ResponseWriter, r *http.Request) {
	s.boardroomMove(w, r, s.node.BoardroomDeposit)
}

func (s *Server) handleBoardroomWithdraw(w http.ResponseWriter, r *http.Request) {
	s.boardroomMove(w, r, s.node.BoardroomWithdraw)
}

type boardroomAccountResponse struct {
	Shares        uint64 `json:"shares"`
	Futures       uint64 `json:"futures"`
	StagedBalance uint64 `json:"stagedBalance"`
	Status        string `json:"status"`
}

func (s *Server) handleBoardroomAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := types.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	account, err := s.node.BoardroomAccount(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, boardroomAccountResponse{
		Shares:        account.Shares,
		Futures:       account.Futures,
		StagedBalance: account.StagedBalance,
		Status:        statusName(account.Status),
	})
}

func statusName(status boardroom.Status) string {
	switch status.(type) {
	case boardroom.Fluid:
		return "fluid"
	case boardroom.Frozen:
		return "frozen"
	case boardroom.Locked:
		return "locked"
	default:
		return "unknown"
	}
}

func parseSeed(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}
