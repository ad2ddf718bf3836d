package job

import (
	"context"
	"testing"

	"guessescrow/internal/ledger"
	"guessescrow/internal/model"
	"guessescrow/internal/monitoring"
	"guessescrow/internal/repository"
	"guessescrow/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReconcileReportsDrift(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	vault := testutil.Deriver(t).House()
	funder := testutil.Identity(40)
	l := ledger.New(db, nil, vault)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	job := NewReconcileJob(db, l, vault, 0, metrics, nil)

	report, err := job.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Initialized)

	houses := repository.NewHouseRepository(db)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if _, err := l.Airdrop(ctx, tx, funder, 1000, ledger.Memo{}); err != nil {
			return err
		}
		if _, err := l.Pull(ctx, tx, funder, funder, vault, 1000, ledger.Memo{Type: model.EntryTypeHouseOpen}); err != nil {
			return err
		}
		return houses.Create(ctx, tx, &model.HouseAccount{Address: vault.String(), RecordedBalance: 1000})
	}))
	require.NoError(t, repository.NewGameRepository(db).Create(ctx, nil, &model.GameRecord{Address: "g-1", Owner: funder.String()}))

	report, err = job.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Initialized)
	assert.True(t, report.Balanced())
	assert.Equal(t, uint64(1000), report.VaultBalance)
	assert.Equal(t, int64(1000), report.JournalNet)
	assert.Equal(t, int64(1), report.OpenGames)
	assert.Equal(t, int64(0), report.SettledGames)

	// 绕过服务直接改账面余额
	require.NoError(t, db.Model(&model.HouseAccount{}).Where("address = ?", vault.String()).
		Update("recorded_balance", 900).Error)

	report, err = job.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Balanced())
	assert.Equal(t, int64(100), report.Drift)
	assert.Equal(t, 100.0, promtest.ToFloat64(metrics.HouseVaultDrift))
	assert.Equal(t, 900.0, promtest.ToFloat64(metrics.HouseBalance))
}
