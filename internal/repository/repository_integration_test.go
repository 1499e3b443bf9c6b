//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/db"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

// setupPool starts a disposable postgres, applies the migrations and
// returns a pool on it.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("saas_db"),
		tcpostgres.WithUsername("saas_user"),
		tcpostgres.WithPassword("saas_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.MigrateUp(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool, username string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
		Profile:      models.DefaultProfile(),
	}
	require.NoError(t, NewUserRepository(pool).Create(context.Background(), u))
	return u
}

func seedCustomer(t *testing.T, pool *pgxpool.Pool, customerID string) *models.Customer {
	t.Helper()
	c := &models.Customer{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		Name:           "Acme " + customerID,
		ContactEmail:   "ops@acme.test",
		DeploymentType: models.DeploymentOffline,
		Status:         models.CustomerStatusActive,
	}
	require.NoError(t, NewCustomerRepository(pool).Create(context.Background(), c))
	return c
}

func seedLicense(t *testing.T, pool *pgxpool.Pool, customerID, key string, validUntil time.Time) *models.License {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	l := &models.License{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		LicenseKey:     key,
		LicenseType:    models.LicenseTypeStandard,
		MaxUsers:       10,
		MaxCompanies:   1,
		MaxStorageGB:   10,
		ModulesEnabled: []string{"sale", "stock"},
		IssuedAt:       now,
		ValidFrom:      now,
		ValidUntil:     validUntil,
		Status:         models.LicenseStatusActive,
	}
	require.NoError(t, NewLicenseRepository(pool).Create(context.Background(), l))
	return l
}

func TestCustomerRepository(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	repo := NewCustomerRepository(pool)

	c := seedCustomer(t, pool, "acme")
	seedCustomer(t, pool, "globex")

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.CustomerID)
	assert.Equal(t, 0, got.EnvironmentsCount)

	list, err := repo.List(ctx, models.CustomerFilter{Search: "glob"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "globex", list[0].CustomerID)

	// wildcards in a search term match literally
	list, err = repo.List(ctx, models.CustomerFilter{Search: "_"})
	require.NoError(t, err)
	assert.Empty(t, list)

	got.Status = models.CustomerStatusSuspended
	require.NoError(t, repo.Update(ctx, got))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 2, stats.Offline)
	assert.Equal(t, 0, stats.Trial)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, c.ID), ErrNotFound)
}

func TestCustomerStatsFollowStatusNotContractDates(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	repo := NewCustomerRepository(pool)

	yesterday := time.Now().AddDate(0, 0, -1)
	c := &models.Customer{
		ID:              uuid.NewString(),
		CustomerID:      "lapsed-trial",
		Name:            "Lapsed Trial",
		ContactEmail:    "trial@example.com",
		DeploymentType:  models.DeploymentOnline,
		Status:          models.CustomerStatusTrial,
		ContractEndDate: &yesterday,
	}
	require.NoError(t, repo.Create(ctx, c))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Trial)
	assert.Equal(t, 0, stats.Expired)
	assert.Equal(t, 0, stats.Active)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CustomerStatusTrial, got.Status)
}

func TestLicenseRepositoryStateTransitions(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	repo := NewLicenseRepository(pool)

	c := seedCustomer(t, pool, "acme")
	live := seedLicense(t, pool, c.ID, "KEY-LIVE", time.Now().Add(24*time.Hour))
	overdue := seedLicense(t, pool, c.ID, "KEY-OLD", time.Now().Add(-time.Hour))

	got, err := repo.GetByKey(ctx, "KEY-LIVE")
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)
	assert.Equal(t, "Acme acme", got.CustomerName)
	assert.Equal(t, []string{"sale", "stock"}, got.ModulesEnabled)

	list, err := repo.ListOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, overdue.ID, list[0].ID)

	got.Status = models.LicenseStatusRevoked
	require.NoError(t, repo.UpdateState(ctx, got, models.LicenseStatusActive))

	// the row is no longer active, so a second guarded update loses
	got.Status = models.LicenseStatusExpired
	assert.ErrorIs(t, repo.UpdateState(ctx, got, models.LicenseStatusActive), ErrStaleState)

	require.NoError(t, repo.TouchLastCheck(ctx, live.ID, time.Now()))
	got, err = repo.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusRevoked, got.Status)
	assert.NotNil(t, got.LastCheck)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Revoked)
}

func TestUserRepository(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	u := seedUser(t, pool, "alice")

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, models.RoleViewer, got.Profile.Role)
	assert.True(t, got.Profile.CanViewLogs)
	assert.Nil(t, got.LastLogin)

	got.Profile.Role = models.RoleOperator
	got.Profile.CanManageCustomers = true
	require.NoError(t, repo.UpdateProfile(ctx, &got.Profile))
	require.NoError(t, repo.UpdateLastLogin(ctx, u.ID, time.Now()))

	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOperator, got.Profile.Role)
	assert.True(t, got.Profile.CanManageCustomers)
	assert.NotNil(t, got.LastLogin)

	list, err := repo.List(ctx, models.UserFilter{Role: models.RoleViewer})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestActivityLogRepository(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	repo := NewActivityLogRepository(pool)
	u := seedUser(t, pool, "alice")

	for _, action := range []string{models.ActivityLogin, models.ActivityCreateCustomer} {
		require.NoError(t, repo.Create(ctx, &models.ActivityLog{UserID: u.ID, Action: action}))
	}

	logs, err := repo.List(ctx, models.ActivityLogFilter{Action: models.ActivityLogin})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "alice", logs[0].Username)

	n, err := repo.DeleteBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTxManagerRollsBack(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	tx := NewTxManager(pool)
	repo := NewCustomerRepository(pool)

	boom := errors.New("boom")
	err := tx.InTx(ctx, func(ctx context.Context) error {
		c := &models.Customer{
			ID:             uuid.NewString(),
			CustomerID:     "rolled-back",
			Name:           "Rolled Back",
			ContactEmail:   "x@example.com",
			DeploymentType: models.DeploymentOnline,
			Status:         models.CustomerStatusTrial,
		}
		require.NoError(t, repo.Create(ctx, c))
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := repo.List(ctx, models.CustomerFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
