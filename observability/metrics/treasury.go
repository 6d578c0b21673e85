package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type TreasuryMetrics struct {
	epochIndex      prometheus.Gauge
	availableBonds  prometheus.Gauge
	bondsPurchased  prometheus.Counter
	purchases       prometheus.Counter
	stakes          *prometheus.CounterVec
	rewardsPaid     prometheus.Counter
	observations    prometheus.Counter
	boardroomStaged prometheus.Gauge
	operationErrors *prometheus.CounterVec
}

var (
	treasuryOnce     sync.Once
	treasuryRegistry *TreasuryMetrics
)

func Treasury() *TreasuryMetrics {
	treasuryOnce.Do(func() {
		treasuryRegistry = &TreasuryMetrics{
			epochIndex: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "treasury_epoch_index",
				Help: "Index of the current treasury epoch.",
			}),
			availableBonds: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "treasury_available_bonds",
				Help: "Bonds remaining in the issuance pool.",
			}),
			bondsPurchased: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "treasury_bonds_purchased_total",
				Help: "Cumulative bonds removed from the issuance pool.",
			}),
			purchases: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "treasury_bond_purchases_total",
				Help: "Count of successful bond purchase operations.",
			}),
			stakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "treasury_stake_operations_total",
				Help: "Count of staking operations by kind.",
			}, []string{"kind"}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "treasury_staking_rewards_paid_total",
				Help: "Cumulative unit reward amounts minted to stakers.",
			}),
			observations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "treasury_price_observations_total",
				Help: "Count of oracle price observations recorded.",
			}),
			boardroomStaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "treasury_boardroom_staged_units",
				Help: "Units staged across all boardroom accounts.",
			}),
			operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "treasury_operation_errors_total",
				Help: "Count of failed treasury operations by operation.",
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			treasuryRegistry.epochIndex,
			treasuryRegistry.availableBonds,
			treasuryRegistry.bondsPurchased,
			treasuryRegistry.purchases,
			treasuryRegistry.stakes,
			treasuryRegistry.rewardsPaid,
			treasuryRegistry.observations,
			treasuryRegistry.boardroomStaged,
			treasuryRegistry.operationErrors,
		)
	})
	return treasuryRegistry
}

func (m *TreasuryMetrics) SetEpochIndex(index uint64) {
	if m == nil {
		return
	}
	m.epochIndex.Set(float64(index))
}

func (m *TreasuryMetrics) SetAvailableBonds(available uint64) {
	if m == nil {
		return
	}
	m.availableBonds.Set(float64(available))
}

func (m *TreasuryMetrics) ObservePurchase(bonds uint64) {
	if m == nil {
		return
	}
	m.purchases.Inc()
	m.bondsPurchased.Add(float64(bonds))
}

func (m *TreasuryMetrics) ObserveStakeOperation(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.stakes.WithLabelValues(kind).Inc()
}

func (m *TreasuryMetrics) ObserveRewardPaid(amount uint64) {
	if m == nil {
		return
	}
	m.rewardsPaid.Add(float64(amount))
}

func (m *TreasuryMetrics) ObservePriceObservation() {
	if m == nil {
		return
	}
	m.observations.Inc()
}

func (m *TreasuryMetrics) SetBoardroomStaged(units uint64) {
	if m == nil {
		return
	}
	m.boardroomStaged.Set(float64(units))
}

func (m *TreasuryMetrics) IncOperationError(operation string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.operationErrors.WithLabelValues(operation).Inc()
}
