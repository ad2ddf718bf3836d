package monitoring

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveSettlement("LOSS", 50, 1050)
	m.ObserveSettlement("WIN", 50, 1000)
	m.ObserveSettlement("LOSS", 20, 1020)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Settlements.WithLabelValues("LOSS")))
	assert.Equal(t, 70.0, testutil.ToFloat64(m.SettledStake.WithLabelValues("LOSS")))
	assert.Equal(t, 1020.0, testutil.ToFloat64(m.HouseBalance))

	m.ObserveOutbox(nil)
	m.ObserveOutbox(errors.New("broker down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxPublishError))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/health", "200")
	m.ObserveSettlement("WIN", 1, 1)
	m.ObserveError("play", "already_settled")
	m.ObserveDrift(3)
	m.ObserveOutbox(nil)
	m.ObserveHouseBalance(5)
}
