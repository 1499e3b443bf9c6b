package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/config"
	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

func TestSettingsSnapshot(t *testing.T) {
	site := config.SiteConfig{Name: "Odoo SaaS", AdminEmail: "ops@example.test", SessionTimeoutMinutes: 45, LogRetentionDays: 14}
	svc := NewSystemService(site, fakePinger{}, &fakeTx{}, &memActivity{})

	s := svc.Settings()
	assert.Equal(t, "Odoo SaaS", s.SiteName)
	assert.Equal(t, 45, s.SessionTimeoutMinutes)
	assert.Equal(t, 14, s.LogRetentionDays)
}

func TestInfoReportsDatabaseStatus(t *testing.T) {
	svc := NewSystemService(config.SiteConfig{}, fakePinger{}, &fakeTx{}, &memActivity{})
	assert.Equal(t, "connected", svc.Info(context.Background()).DatabaseStatus)

	svc = NewSystemService(config.SiteConfig{}, fakePinger{err: errors.New("down")}, &fakeTx{}, &memActivity{})
	info := svc.Info(context.Background())
	assert.Equal(t, "disconnected", info.DatabaseStatus)
	assert.Equal(t, Version, info.Version)
}

func TestCleanLogs(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	activity := &memActivity{entries: []*models.ActivityLog{
		{Action: models.ActivityLogin, CreatedAt: now.AddDate(0, 0, -40)},
		{Action: models.ActivityLogin, CreatedAt: now.AddDate(0, 0, -31)},
		{Action: models.ActivityLogin, CreatedAt: now.AddDate(0, 0, -2)},
	}}
	svc := NewSystemService(config.SiteConfig{}, fakePinger{}, &fakeTx{}, activity)
	svc.now = fixedClock(now)

	resp, err := svc.CleanLogs(context.Background(), 30, operator)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.DeletedCount)
	assert.Equal(t, "成功清理了2条历史日志", resp.Message)

	require.Len(t, activity.entries, 2)
	last := activity.entries[1]
	assert.Equal(t, models.ActivityCleanLogs, last.Action)
	assert.Equal(t, "清理了30天前的日志，共2条", last.Description)
}

func TestCleanLogsRejectsNonPositiveDays(t *testing.T) {
	svc := NewSystemService(config.SiteConfig{}, fakePinger{}, &fakeTx{}, &memActivity{})
	for _, days := range []int{0, -1} {
		_, err := svc.CleanLogs(context.Background(), days, operator)
		assert.True(t, apperrors.IsValidationError(err))
	}
}
