package treasury

import (
	"strconv"

	"unitbank/core/types"
)

// Event types emitted by treasury operations.
const (
	EventTypeInitialised        = "treasury.initialised"
	EventTypeEpochAdvanced      = "treasury.epoch.advanced"
	EventTypePriceObserved      = "treasury.price.observed"
	EventTypeBondIndexCreated   = "bonds.index.created"
	EventTypeBondPositionOpened = "bonds.position.opened"
	EventTypeBondsPurchased     = "bonds.purchased"
	EventTypeBondIssuanceReset  = "bonds.issuance.reset"
	EventTypeStakeIndexCreated  = "staking.index.created"
	EventTypeStakingStatusSet   = "staking.status.set"
	EventTypeStaked             = "staking.staked"
	EventTypeRewardClaimed      = "staking.reward.claimed"
	EventTypeUnstaked           = "staking.unstaked"
	EventTypeBoardroomCreated   = "boardroom.account.created"
	EventTypeBoardroomDeposit   = "boardroom.deposited"
	EventTypeBoardroomWithdraw  = "boardroom.withdrawn"
)

func u64attr(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func newEvent(eventType string, attrs map[string]string) types.Event {
	return types.Event{Type: eventType, Attributes: attrs}
}

func eventInitialised(authority types.Address, epochIndex uint64) types.Event {
	return newEvent(EventTypeInitialised, map[string]string{
		"authority": authority.String(),
		"epoch":     u64attr(epochIndex),
	})
}

func eventEpochAdvanced(index uint64, abovePeg bool, baseRate uint64) types.Event {
	return newEvent(EventTypeEpochAdvanced, map[string]string{
		"epoch":    u64attr(index),
		"abovePeg": strconv.FormatBool(abovePeg),
		"baseRate": u64attr(baseRate),
	})
}

func eventPriceObserved(value, exp, slot uint64) types.Event {
	return newEvent(EventTypePriceObserved, map[string]string{
		"value": u64attr(value),
		"exp":   u64attr(exp),
		"slot":  u64attr(slot),
	})
}

func eventIndexCreated(eventType string, owner types.Address, offset uint64) types.Event {
	return newEvent(eventType, map[string]string{
		"owner":  owner.String(),
		"offset": u64attr(offset),
	})
}

func eventBondPositionOpened(owner types.Address, seed uint64) types.Event {
	return newEvent(EventTypeBondPositionOpened, map[string]string{
		"owner": owner.String(),
		"seed":  u64attr(seed),
	})
}

func eventBondsPurchased(owner types.Address, seed, units, bonds uint64) types.Event {
	return newEvent(EventTypeBondsPurchased, map[string]string{
		"owner": owner.String(),
		"seed":  u64attr(seed),
		"units": u64attr(units),
		"bonds": u64attr(bonds),
	})
}

func eventBondIssuanceReset(available uint64) types.Event {
	return newEvent(EventTypeBondIssuanceReset, map[string]string{
		"available": u64attr(available),
	})
}

func eventStakingStatusSet(active bool) types.Event {
	return newEvent(EventTypeStakingStatusSet, map[string]string{
		"active": strconv.FormatBool(active),
	})
}

func eventStaked(staker types.Address, mint types.MintID, seed uint64) types.Event {
	return newEvent(EventTypeStaked, map[string]string{
		"staker": staker.String(),
		"mint":   mint.String(),
		"seed":   u64attr(seed),
	})
}

func eventRewardClaimed(staker types.Address, seed, amount uint64) types.Event {
	return newEvent(EventTypeRewardClaimed, map[string]string{
		"staker": staker.String(),
		"seed":   u64attr(seed),
		"amount": u64attr(amount),
	})
}

func eventUnstaked(staker types.Address, mint types.MintID, seed, reward uint64) types.Event {
	return newEvent(EventTypeUnstaked, map[string]string{
		"staker": staker.String(),
		"mint":   mint.String(),
		"seed":   u64attr(seed),
		"reward": u64attr(reward),
	})
}

func eventBoardroomCreated(owner types.Address, epochIndex uint64) types.Event {
	return newEvent(EventTypeBoardroomCreated, map[string]string{
		"owner": owner.String(),
		"epoch": u64attr(epochIndex),
	})
}

func eventBoardroomMoved(eventType string, owner types.Address, amount, staged uint64) types.Event {
	return newEvent(eventType, map[string]string{
		"owner":  owner.String(),
		"amount": u64attr(amount),
		"staged": u64attr(staged),
	})
}
