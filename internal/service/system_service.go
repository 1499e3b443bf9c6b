package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/config"
	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

// Version is stamped at build time with -ldflags "-X ...service.Version=..."
var Version = "1.0.0"

const platform = "Go + Gin"

type Pinger interface {
	Ping(ctx context.Context) error
}

type activityPurger interface {
	ActivityRecorder
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SystemService exposes site settings, runtime info and log housekeeping
type SystemService struct {
	site     config.SiteConfig
	db       Pinger
	tx       TxRunner
	activity activityPurger
	now      Clock
	log      *slog.Logger
}

func NewSystemService(site config.SiteConfig, db Pinger, tx TxRunner, activity activityPurger) *SystemService {
	return &SystemService{
		site:     site,
		db:       db,
		tx:       tx,
		activity: activity,
		now:      time.Now,
		log:      logger.WithComponent("system"),
	}
}

// Settings is the public view of the site configuration. No secrets.
func (s *SystemService) Settings() models.SiteSettings {
	return models.SiteSettings{
		SiteName:              s.site.Name,
		SiteDescription:       s.site.Description,
		AdminEmail:            s.site.AdminEmail,
		MaintenanceMode:       s.site.MaintenanceMode,
		SessionTimeoutMinutes: s.site.SessionTimeoutMinutes,
		LogRetentionDays:      s.site.LogRetentionDays,
	}
}

func (s *SystemService) Info(ctx context.Context) models.SystemInfo {
	status := "connected"
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.Ping(pingCtx); err != nil {
		s.log.Warn("database ping failed", "error", err)
		status = "disconnected"
	}
	return models.SystemInfo{
		ServerTime:     s.now(),
		DatabaseStatus: status,
		Version:        Version,
		Platform:       platform,
	}
}

// CleanLogs deletes activity entries older than days and records that it did.
func (s *SystemService) CleanLogs(ctx context.Context, days int, meta models.RequestMeta) (*models.CleanLogsResponse, error) {
	if days < 1 {
		return nil, apperrors.NewFieldValidationError("天数必须是大于0的整数", map[string]string{"days": "天数必须是大于0的整数"})
	}

	cutoff := s.now().AddDate(0, 0, -days)
	var deleted int64
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := s.activity.DeleteBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		deleted = n
		return recordActivity(ctx, s.activity, meta, models.ActivityCleanLogs,
			"System", "logs", fmt.Sprintf("清理了%d天前的日志，共%d条", days, n))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("activity logs cleaned", "days", days, "deleted", deleted)
	return &models.CleanLogsResponse{
		Message:      fmt.Sprintf("成功清理了%d条历史日志", deleted),
		DeletedCount: deleted,
	}, nil
}
