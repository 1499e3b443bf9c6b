package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/license"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

type licenseFixture struct {
	svc      *LicenseService
	tx       *fakeTx
	repo     *memLicenses
	usage    *memUsage
	logs     *memLicenseLogs
	activity *memActivity
	customer *models.Customer
	now      time.Time
}

var operator = models.RequestMeta{UserID: "7d4a9d7e-5a0e-4a57-9f0e-4f8f1f1e0001", IPAddress: "10.0.0.8", UserAgent: "test"}

func newLicenseFixture(t *testing.T) *licenseFixture {
	t.Helper()
	f := &licenseFixture{
		tx:       &fakeTx{},
		repo:     newMemLicenses(),
		usage:    &memUsage{},
		logs:     &memLicenseLogs{},
		activity: &memActivity{},
		customer: &models.Customer{ID: "c1a1e0de-0000-4000-8000-000000000001", CustomerID: "acme", Name: "Acme"},
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewLicenseService(f.tx, f.repo, f.usage, f.logs, newMemCustomers(f.customer), f.activity)
	f.svc.now = fixedClock(f.now)
	return f
}

func (f *licenseFixture) generateRequest() *models.LicenseGenerateRequest {
	req := models.NewLicenseGenerateRequest()
	req.Customer = f.customer.ID
	req.ValidFrom = f.now.Add(-24 * time.Hour)
	req.ValidUntil = f.now.Add(30 * 24 * time.Hour)
	req.ModulesEnabled = []string{"sale", "stock"}
	return &req
}

func (f *licenseFixture) seed(status string) *models.License {
	l := &models.License{
		ID:         "11111111-2222-4333-8444-555555555555",
		CustomerID: f.customer.ID,
		LicenseKey: license.GenerateKey(f.customer.ID, f.customer.Name, f.now.Add(-time.Hour)),
		Status:     status,
		MaxUsers:   10,
		ValidFrom:  f.now.Add(-24 * time.Hour),
		ValidUntil: f.now.Add(10*24*time.Hour + time.Hour),
	}
	f.repo.put(l)
	return l
}

func TestGenerateCreatesPendingLicense(t *testing.T) {
	f := newLicenseFixture(t)

	l, err := f.svc.Generate(context.Background(), f.generateRequest(), operator)
	require.NoError(t, err)

	assert.Equal(t, models.LicenseStatusPending, l.Status)
	assert.True(t, license.ValidKeyFormat(l.LicenseKey))
	assert.Equal(t, license.GenerateKey(f.customer.ID, f.customer.Name, f.now), l.LicenseKey)
	assert.Equal(t, f.now, l.IssuedAt)
	assert.Equal(t, 10, l.MaxUsers)
	assert.Equal(t, []string{"sale", "stock"}, l.ModulesEnabled)
	require.NotNil(t, l.CreatedBy)
	assert.Equal(t, operator.UserID, *l.CreatedBy)

	require.Len(t, f.logs.entries, 1)
	assert.Equal(t, models.LicenseActionGenerate, f.logs.entries[0].Action)
	assert.Equal(t, "生成授权码: "+l.LicenseKey, f.logs.entries[0].Message)
	assert.Equal(t, []string{models.ActivityGenerateLicense}, f.activity.actions())
}

func TestGenerateRetriesKeyCollision(t *testing.T) {
	f := newLicenseFixture(t)
	f.repo.createErrs = []error{uniqueViolation(licenseKeyConstraint), uniqueViolation(licenseKeyConstraint)}

	l, err := f.svc.Generate(context.Background(), f.generateRequest(), operator)
	require.NoError(t, err)
	assert.NotEmpty(t, l.LicenseKey)
	assert.Equal(t, 3, f.repo.createCalls)
	assert.Equal(t, 3, f.tx.calls, "each attempt runs in its own transaction")
	assert.Len(t, f.logs.entries, 1)
}

func TestGenerateGivesUpAfterBoundedAttempts(t *testing.T) {
	f := newLicenseFixture(t)
	for i := 0; i < maxKeyAttempts; i++ {
		f.repo.createErrs = append(f.repo.createErrs, uniqueViolation(licenseKeyConstraint))
	}

	_, err := f.svc.Generate(context.Background(), f.generateRequest(), operator)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
	assert.Equal(t, maxKeyAttempts, f.repo.createCalls)
	assert.Empty(t, f.logs.entries)
}

func TestGenerateDoesNotRetryOtherConstraints(t *testing.T) {
	f := newLicenseFixture(t)
	f.repo.createErrs = []error{uniqueViolation("licenses_pkey")}

	_, err := f.svc.Generate(context.Background(), f.generateRequest(), operator)
	require.Error(t, err)
	assert.False(t, apperrors.IsConflictError(err))
	assert.Equal(t, 1, f.repo.createCalls)
}

func TestGenerateUnknownCustomer(t *testing.T) {
	f := newLicenseFixture(t)
	req := f.generateRequest()
	req.Customer = "00000000-0000-4000-8000-000000000000"

	_, err := f.svc.Generate(context.Background(), req, operator)
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Contains(t, appErr.Fields, "customer")
}

func TestActivatePendingLicense(t *testing.T) {
	f := newLicenseFixture(t)
	seeded := f.seed(models.LicenseStatusPending)

	l, err := f.svc.Activate(context.Background(), seeded.ID, license.ActivateParams{DeploymentDomain: "erp.acme.test"}, operator)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, l.Status)
	require.NotNil(t, l.ActivatedAt)
	assert.Equal(t, f.now, *l.ActivatedAt)

	stored, err := f.repo.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, stored.Status)
	assert.Equal(t, "erp.acme.test", stored.DeploymentDomain)
	assert.Equal(t, []string{models.LicenseActionActivate}, f.logs.actions())
	assert.Equal(t, operator.IPAddress, f.logs.entries[0].IPAddress)
}

func TestActivateRejectsNonPending(t *testing.T) {
	for _, status := range []string{models.LicenseStatusActive, models.LicenseStatusRevoked, models.LicenseStatusExpired} {
		t.Run(status, func(t *testing.T) {
			f := newLicenseFixture(t)
			seeded := f.seed(status)

			_, err := f.svc.Activate(context.Background(), seeded.ID, license.ActivateParams{DeploymentIP: "1.2.3.4"}, operator)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidStateError(err))

			stored, _ := f.repo.GetByID(context.Background(), seeded.ID)
			assert.Equal(t, status, stored.Status)
			assert.Empty(t, stored.DeploymentIP)
			assert.Empty(t, f.logs.entries)
		})
	}
}

func TestActivateUnknownLicense(t *testing.T) {
	f := newLicenseFixture(t)
	_, err := f.svc.Activate(context.Background(), "missing", license.ActivateParams{}, operator)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestRevokeOnceOnly(t *testing.T) {
	f := newLicenseFixture(t)
	seeded := f.seed(models.LicenseStatusActive)

	l, err := f.svc.Revoke(context.Background(), seeded.ID, operator)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusRevoked, l.Status)

	_, err = f.svc.Revoke(context.Background(), seeded.ID, operator)
	assert.True(t, apperrors.IsInvalidStateError(err))

	assert.Equal(t, []string{models.LicenseActionRevoke}, f.logs.actions())
	assert.Equal(t, []string{models.ActivityRevokeLicense}, f.activity.actions())
}

func TestValidateUnknownKeyRecordsNothing(t *testing.T) {
	f := newLicenseFixture(t)

	res, err := f.svc.Validate(context.Background(), "AAAA-BBBB-CCCC-DDDD-EEEE-FFFF-0000-1111", UsageSnapshot{CurrentUsers: 3}, operator)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, res.Valid)
	assert.Empty(t, f.usage.entries)
	assert.Empty(t, f.logs.entries)
}

// vanishingLicenses deletes a license right after handing it out by key.
type vanishingLicenses struct {
	*memLicenses
}

func (v vanishingLicenses) GetByKey(ctx context.Context, key string) (*models.License, error) {
	l, err := v.memLicenses.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return l, v.memLicenses.Delete(ctx, l.ID)
}

func TestValidateLicenseDeletedDuringCheckIn(t *testing.T) {
	f := newLicenseFixture(t)
	seeded := f.seed(models.LicenseStatusActive)
	f.svc = NewLicenseService(f.tx, vanishingLicenses{f.repo}, f.usage, f.logs, newMemCustomers(f.customer), f.activity)
	f.svc.now = fixedClock(f.now)

	res, err := f.svc.Validate(context.Background(), seeded.LicenseKey, UsageSnapshot{CurrentUsers: 1}, operator)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, res.Valid)
	assert.Empty(t, f.logs.entries)
}

func TestValidateRecordsCheckIn(t *testing.T) {
	f := newLicenseFixture(t)
	seeded := f.seed(models.LicenseStatusActive)

	res, err := f.svc.Validate(context.Background(), seeded.LicenseKey, UsageSnapshot{CurrentUsers: 4, CurrentCompanies: 1, CurrentStorageGB: 2.5}, operator)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.True(t, res.Valid)
	assert.Equal(t, 10, res.DaysRemaining)

	require.Len(t, f.usage.entries, 1)
	u := f.usage.entries[0]
	assert.Equal(t, 4, u.CurrentUsers)
	assert.Equal(t, 2.5, u.CurrentStorageGB)
	assert.Equal(t, operator.IPAddress, u.AccessIP)
	assert.Equal(t, f.now, u.CheckedAt)

	require.Len(t, f.logs.entries, 1)
	assert.Equal(t, models.LicenseActionCheck, f.logs.entries[0].Action)
	assert.Nil(t, f.logs.entries[0].CreatedBy)

	stored, _ := f.repo.GetByID(context.Background(), seeded.ID)
	require.NotNil(t, stored.LastCheck)
	assert.Equal(t, f.now, *stored.LastCheck)
}

func TestValidatePendingLicenseIsNotValid(t *testing.T) {
	f := newLicenseFixture(t)
	seeded := f.seed(models.LicenseStatusPending)

	res, err := f.svc.Validate(context.Background(), seeded.LicenseKey, UsageSnapshot{}, operator)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.False(t, res.Valid)
	assert.Zero(t, res.DaysRemaining)
	assert.Len(t, f.usage.entries, 1)
}

func TestValidateDoesNotFlipStoredStatus(t *testing.T) {
	f := newLicenseFixture(t)
	seeded := f.seed(models.LicenseStatusActive)
	seeded.ValidUntil = f.now.Add(-time.Hour)
	f.repo.put(seeded)

	res, err := f.svc.Validate(context.Background(), seeded.LicenseKey, UsageSnapshot{}, operator)
	require.NoError(t, err)
	assert.False(t, res.Valid)

	stored, _ := f.repo.GetByID(context.Background(), seeded.ID)
	assert.Equal(t, models.LicenseStatusActive, stored.Status)
}

func TestExpireOverdue(t *testing.T) {
	f := newLicenseFixture(t)
	overdue := f.seed(models.LicenseStatusActive)
	overdue.ValidUntil = f.now.Add(-time.Hour)
	f.repo.put(overdue)

	current := *overdue
	current.ID = "99999999-2222-4333-8444-555555555555"
	current.LicenseKey = "0000-0000-0000-0000-0000-0000-0000-0001"
	current.ValidUntil = f.now.Add(time.Hour)
	f.repo.put(&current)

	n, err := f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, _ := f.repo.GetByID(context.Background(), overdue.ID)
	assert.Equal(t, models.LicenseStatusExpired, stored.Status)
	stillActive, _ := f.repo.GetByID(context.Background(), current.ID)
	assert.Equal(t, models.LicenseStatusActive, stillActive.Status)
	assert.Equal(t, []string{models.LicenseActionExpire}, f.logs.actions())
	assert.Empty(t, f.activity.entries)
}

func TestLicenseResponseDerivedFields(t *testing.T) {
	f := newLicenseFixture(t)
	seeded := f.seed(models.LicenseStatusActive)

	resp := f.svc.Response(seeded)
	assert.True(t, resp.IsValid)
	assert.Equal(t, 10, resp.DaysRemaining)
}
