package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/helm"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

type EnvironmentStore interface {
	Create(ctx context.Context, e *models.Environment) error
	GetByID(ctx context.Context, id string) (*models.Environment, error)
	List(ctx context.Context, f models.EnvironmentFilter) ([]*models.Environment, error)
	Update(ctx context.Context, e *models.Environment) error
	UpdateStatus(ctx context.Context, id, status string, checkedAt *time.Time) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.EnvironmentStats, error)
}

type EnvironmentLogStore interface {
	Create(ctx context.Context, l *models.EnvironmentLog) error
	List(ctx context.Context, f models.EnvironmentLogFilter) ([]*models.EnvironmentLog, error)
}

// Environment log outcomes
const (
	envLogSuccess = "success"
	envLogFailed  = "failed"
)

// EnvironmentService manages Odoo deployments and keeps their Helm values
// in step with their configuration. It never talks to a cluster.
type EnvironmentService struct {
	tx        TxRunner
	repo      EnvironmentStore
	logs      EnvironmentLogStore
	customers customerGetter
	activity  ActivityRecorder
	now       Clock
	log       *slog.Logger
}

func NewEnvironmentService(tx TxRunner, repo EnvironmentStore, logs EnvironmentLogStore, customers customerGetter, activity ActivityRecorder) *EnvironmentService {
	return &EnvironmentService{
		tx:        tx,
		repo:      repo,
		logs:      logs,
		customers: customers,
		activity:  activity,
		now:       time.Now,
		log:       logger.WithComponent("environment"),
	}
}

// Create validates the configuration, synthesizes its Helm values and
// stores the environment as pending.
func (s *EnvironmentService) Create(ctx context.Context, req *models.EnvironmentRequest, meta models.RequestMeta) (*models.Environment, error) {
	if err := helm.Validate(&req.EnvironmentSpec); err != nil {
		return nil, err
	}
	customer, err := s.lookupCustomer(ctx, req.Customer)
	if err != nil {
		return nil, err
	}

	env := &models.Environment{
		ID:              uuid.New().String(),
		CustomerID:      customer.ID,
		EnvironmentSpec: req.EnvironmentSpec,
		Status:          models.EnvStatusPending,
		CreatedBy:       meta.ActorID(),
		CustomerCode:    customer.CustomerID,
		CustomerName:    customer.Name,
	}
	env.HelmValues = helm.Synthesize(env, customer.CustomerID)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, env); err != nil {
			return environmentWriteError(err)
		}
		if err := s.appendLog(ctx, env.ID, models.EnvLogDeploy, "环境创建成功", envLogSuccess, meta); err != nil {
			return err
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityDeployEnvironment,
			"Environment", env.ID, fmt.Sprintf("创建环境: %s", env.ReleaseName))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("environment created", "id", env.ID, "release", env.ReleaseName, "namespace", env.Namespace)
	return env, nil
}

func (s *EnvironmentService) Get(ctx context.Context, id string) (*models.Environment, error) {
	env, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "环境不存在")
	}
	return env, nil
}

func (s *EnvironmentService) List(ctx context.Context, f models.EnvironmentFilter) ([]*models.Environment, error) {
	return s.repo.List(ctx, f)
}

// Update replaces the configuration and regenerates the Helm values in full.
func (s *EnvironmentService) Update(ctx context.Context, id string, req *models.EnvironmentRequest, meta models.RequestMeta) (*models.Environment, error) {
	env, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := helm.Validate(&req.EnvironmentSpec); err != nil {
		return nil, err
	}
	customer, err := s.lookupCustomer(ctx, req.Customer)
	if err != nil {
		return nil, err
	}

	env.CustomerID = customer.ID
	env.CustomerCode = customer.CustomerID
	env.CustomerName = customer.Name
	env.EnvironmentSpec = req.EnvironmentSpec
	env.HelmValues = helm.Synthesize(env, customer.CustomerID)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, env); err != nil {
			return environmentWriteError(err)
		}
		if err := s.appendLog(ctx, env.ID, models.EnvLogUpdate, "环境配置已更新", envLogSuccess, meta); err != nil {
			return err
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityUpdateEnvironment,
			"Environment", env.ID, fmt.Sprintf("更新环境: %s", env.ReleaseName))
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (s *EnvironmentService) Delete(ctx context.Context, id string, meta models.RequestMeta) error {
	env, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return notFound(err, "环境不存在")
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityDeleteEnvironment,
			"Environment", id, fmt.Sprintf("删除环境: %s", env.ReleaseName))
	})
	if err != nil {
		return err
	}

	s.log.Info("environment deleted", "id", id, "release", env.ReleaseName)
	return nil
}

// Start marks the environment running and records the transition
func (s *EnvironmentService) Start(ctx context.Context, id string, meta models.RequestMeta) (*models.Environment, error) {
	return s.transition(ctx, id, models.EnvStatusRunning, models.EnvLogStart, "环境启动成功", models.ActivityStartEnvironment, meta)
}

// Stop marks the environment stopped and records the transition
func (s *EnvironmentService) Stop(ctx context.Context, id string, meta models.RequestMeta) (*models.Environment, error) {
	return s.transition(ctx, id, models.EnvStatusStopped, models.EnvLogStop, "环境停止成功", models.ActivityStopEnvironment, meta)
}

func (s *EnvironmentService) transition(ctx context.Context, id, status, logType, message, action string, meta models.RequestMeta) (*models.Environment, error) {
	env, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, id, status, nil); err != nil {
			return notFound(err, "环境不存在")
		}
		if err := s.appendLog(ctx, id, logType, message, envLogSuccess, meta); err != nil {
			return err
		}
		return recordActivity(ctx, s.activity, meta, action, "Environment", id, message+": "+env.ReleaseName)
	})
	if err != nil {
		return nil, err
	}

	env.Status = status
	s.log.Info(message, "id", id, "release", env.ReleaseName)
	return env, nil
}

// HealthCheck records a check. An environment that is running or still
// pending is considered healthy; any other status is reported as-is.
func (s *EnvironmentService) HealthCheck(ctx context.Context, id string, meta models.RequestMeta) (*models.HealthCheckResponse, error) {
	env, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status, message, outcome := env.Status, "健康检查失败：服务无响应", envLogFailed
	if env.Status == models.EnvStatusRunning || env.Status == models.EnvStatusPending {
		status, message, outcome = models.EnvStatusRunning, "健康检查通过", envLogSuccess
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, id, status, &now); err != nil {
			return notFound(err, "环境不存在")
		}
		return s.appendLog(ctx, id, models.EnvLogHealthCheck, message, outcome, meta)
	})
	if err != nil {
		return nil, err
	}

	return &models.HealthCheckResponse{Status: status, Message: message, LastCheck: &now}, nil
}

// HelmValues renders the stored values document of an environment.
func (s *EnvironmentService) HelmValues(ctx context.Context, id, format string) ([]byte, string, error) {
	env, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	values := env.HelmValues
	if values == nil {
		values = helm.Synthesize(env, env.CustomerCode)
	}
	out, contentType, err := helm.Render(values, format)
	if err != nil {
		return nil, "", apperrors.NewValidationError("不支持的格式", format)
	}
	return out, contentType, nil
}

func (s *EnvironmentService) Stats(ctx context.Context) (*models.EnvironmentStats, error) {
	return s.repo.Stats(ctx)
}

func (s *EnvironmentService) ListLogs(ctx context.Context, f models.EnvironmentLogFilter) ([]*models.EnvironmentLog, error) {
	return s.logs.List(ctx, f)
}

func (s *EnvironmentService) lookupCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFoundError(notFound(err, "")) {
			return nil, apperrors.NewFieldValidationError("invalid request", map[string]string{"customer": "客户不存在"})
		}
		return nil, err
	}
	return c, nil
}

func (s *EnvironmentService) appendLog(ctx context.Context, envID, logType, message, status string, meta models.RequestMeta) error {
	return s.logs.Create(ctx, &models.EnvironmentLog{
		ID:            uuid.New().String(),
		EnvironmentID: envID,
		LogType:       logType,
		Message:       message,
		Status:        status,
		CreatedBy:     meta.ActorID(),
	})
}

func environmentWriteError(err error) error {
	if apperrors.IsUniqueViolation(err) {
		return apperrors.NewConflictError("该命名空间下已存在同名 release", "release_name, namespace")
	}
	return notFound(err, "环境不存在")
}
