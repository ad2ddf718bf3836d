package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 所有方法都允许在 nil 上调用，方便测试时不注册指标
type Metrics struct {
	HTTPRequests       *prometheus.CounterVec
	Settlements        *prometheus.CounterVec
	SettledStake       *prometheus.CounterVec
	OperationErrors    *prometheus.CounterVec
	HouseBalance       prometheus.Gauge
	HouseVaultDrift    prometheus.Gauge
	OutboxPublished    prometheus.Counter
	OutboxPublishError prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_settlements_total",
				Help: "Settled plays by outcome",
			},
			[]string{"outcome"},
		),
		SettledStake: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_settled_stake_lamports_total",
				Help: "Stake moved by settlements, by outcome",
			},
			[]string{"outcome"},
		),
		OperationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_operation_errors_total",
				Help: "Rejected operations by operation and reason",
			},
			[]string{"operation", "reason"},
		),
		HouseBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "escrow_house_recorded_balance_lamports",
			Help: "House recorded balance after the last mutation",
		}),
		HouseVaultDrift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "escrow_house_vault_drift_lamports",
			Help: "Vault wallet balance minus house recorded balance at the last reconciliation",
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_outbox_published_total",
			Help: "Outbox messages delivered to Kafka",
		}),
		OutboxPublishError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_outbox_publish_errors_total",
			Help: "Outbox delivery failures",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.Settlements,
		m.SettledStake,
		m.OperationErrors,
		m.HouseBalance,
		m.HouseVaultDrift,
		m.OutboxPublished,
		m.OutboxPublishError,
	)
	return m
}

func (m *Metrics) ObserveHTTP(method, endpoint, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
}

func (m *Metrics) ObserveSettlement(outcome string, stake uint64, houseBalance uint64) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(outcome).Inc()
	m.SettledStake.WithLabelValues(outcome).Add(float64(stake))
	m.HouseBalance.Set(float64(houseBalance))
}

func (m *Metrics) ObserveHouseBalance(balance uint64) {
	if m == nil {
		return
	}
	m.HouseBalance.Set(float64(balance))
}

func (m *Metrics) ObserveError(operation, reason string) {
	if m == nil {
		return
	}
	m.OperationErrors.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) ObserveDrift(drift float64) {
	if m == nil {
		return
	}
	m.HouseVaultDrift.Set(drift)
}

func (m *Metrics) ObserveOutbox(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.OutboxPublishError.Inc()
		return
	}
	m.OutboxPublished.Inc()
}
