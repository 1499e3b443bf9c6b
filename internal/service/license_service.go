package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/license"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/repository"
)

// maxKeyAttempts bounds regeneration after a key collision
const maxKeyAttempts = 3

const licenseKeyConstraint = "licenses_license_key_key"

type LicenseStore interface {
	Create(ctx context.Context, l *models.License) error
	GetByID(ctx context.Context, id string) (*models.License, error)
	GetByKey(ctx context.Context, key string) (*models.License, error)
	List(ctx context.Context, f models.LicenseFilter) ([]*models.License, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*models.License, error)
	UpdateState(ctx context.Context, l *models.License, fromStatus string) error
	TouchLastCheck(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.LicenseStats, error)
}

type LicenseUsageStore interface {
	Create(ctx context.Context, u *models.LicenseUsage) error
	List(ctx context.Context, licenseID string) ([]*models.LicenseUsage, error)
}

type LicenseLogStore interface {
	Create(ctx context.Context, l *models.LicenseLog) error
	List(ctx context.Context, f models.LicenseLogFilter) ([]*models.LicenseLog, error)
}

// LicenseDetail is a license with its check-in history and audit trail
type LicenseDetail struct {
	License *models.License
	Usage   []*models.LicenseUsage
	Logs    []*models.LicenseLog
}

// ValidationResult is the outcome of a license check-in. Found is false for
// unknown keys, in which case nothing was recorded.
type ValidationResult struct {
	Found         bool
	License       *models.License
	Valid         bool
	DaysRemaining int
}

// UsageSnapshot is what a deployed instance reports when it checks in.
type UsageSnapshot struct {
	CurrentUsers     int
	CurrentCompanies int
	CurrentStorageGB float64
}

// LicenseService issues license keys and drives their lifecycle
type LicenseService struct {
	tx        TxRunner
	repo      LicenseStore
	usage     LicenseUsageStore
	logs      LicenseLogStore
	customers customerGetter
	activity  ActivityRecorder
	now       Clock
	log       *slog.Logger
}

func NewLicenseService(tx TxRunner, repo LicenseStore, usage LicenseUsageStore, logs LicenseLogStore, customers customerGetter, activity ActivityRecorder) *LicenseService {
	return &LicenseService{
		tx:        tx,
		repo:      repo,
		usage:     usage,
		logs:      logs,
		customers: customers,
		activity:  activity,
		now:       time.Now,
		log:       logger.WithComponent("license"),
	}
}

// Generate issues a new pending license for a customer. A key collision
// is retried with a fresh timestamp; each attempt is its own transaction.
func (s *LicenseService) Generate(ctx context.Context, req *models.LicenseGenerateRequest, meta models.RequestMeta) (*models.License, error) {
	customer, err := s.customers.GetByID(ctx, req.Customer)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewFieldValidationError("invalid request", map[string]string{"customer": "客户不存在"})
		}
		return nil, err
	}

	modules := req.ModulesEnabled
	if modules == nil {
		modules = []string{}
	}

	for attempt := 1; attempt <= maxKeyAttempts; attempt++ {
		now := s.now()
		l := &models.License{
			ID:             uuid.New().String(),
			CustomerID:     customer.ID,
			LicenseKey:     license.GenerateKey(customer.ID, customer.Name, now),
			LicenseType:    req.LicenseType,
			MaxUsers:       req.MaxUsers,
			MaxCompanies:   req.MaxCompanies,
			MaxStorageGB:   req.MaxStorageGB,
			ModulesEnabled: modules,
			IssuedAt:       now,
			ValidFrom:      req.ValidFrom,
			ValidUntil:     req.ValidUntil,
			Status:         models.LicenseStatusPending,
			Notes:          req.Notes,
			CreatedBy:      meta.ActorID(),
			CustomerName:   customer.Name,
		}

		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, l); err != nil {
				return err
			}
			message := fmt.Sprintf("生成授权码: %s", l.LicenseKey)
			if err := s.appendLog(ctx, l.ID, models.LicenseActionGenerate, message, meta); err != nil {
				return err
			}
			return recordActivity(ctx, s.activity, meta, models.ActivityGenerateLicense,
				"License", l.ID, fmt.Sprintf("为客户 %s %s", customer.Name, message))
		})
		if err == nil {
			s.log.Info("license generated", "id", l.ID, "customer", customer.CustomerID, "attempt", attempt)
			return l, nil
		}
		if !isKeyCollision(err) {
			return nil, err
		}
		s.log.Warn("license key collision, regenerating", "customer", customer.CustomerID, "attempt", attempt)
	}

	return nil, apperrors.NewConflictError("授权码生成冲突，请重试")
}

func isKeyCollision(err error) bool {
	if !apperrors.IsUniqueViolation(err) {
		return false
	}
	name := apperrors.ConstraintName(err)
	return name == "" || name == licenseKeyConstraint
}

// Activate moves a pending license to active
func (s *LicenseService) Activate(ctx context.Context, id string, p license.ActivateParams, meta models.RequestMeta) (*models.License, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := l.Status
	if err := license.Activate(l, p, s.now()); err != nil {
		return nil, apperrors.NewInvalidStateError("授权码状态不正确，无法激活", from)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.persistTransition(ctx, l, from, "授权码状态不正确，无法激活"); err != nil {
			return err
		}
		return s.appendLog(ctx, l.ID, models.LicenseActionActivate, "授权码激活成功", meta)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("授权码激活成功", "id", l.ID, "domain", l.DeploymentDomain)
	return l, nil
}

// Revoke terminates a license. Revoking twice is a client error.
func (s *LicenseService) Revoke(ctx context.Context, id string, meta models.RequestMeta) (*models.License, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LicenseStatusRevoked {
		return nil, apperrors.NewInvalidStateError("授权码已被撤销")
	}

	from := l.Status
	license.Revoke(l)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.persistTransition(ctx, l, from, "授权码已被撤销"); err != nil {
			return err
		}
		if err := s.appendLog(ctx, l.ID, models.LicenseActionRevoke, "授权码被撤销", meta); err != nil {
			return err
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityRevokeLicense,
			"License", l.ID, fmt.Sprintf("撤销授权码: %s", l.LicenseKey))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("授权码被撤销", "id", l.ID)
	return l, nil
}

// Validate records a check-in from a deployed instance and reports whether
// its license is currently valid. The stored status is not changed.
func (s *LicenseService) Validate(ctx context.Context, key string, snap UsageSnapshot, meta models.RequestMeta) (*ValidationResult, error) {
	l, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationResult{Found: false}, nil
		}
		return nil, err
	}

	now := s.now()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.TouchLastCheck(ctx, l.ID, now); err != nil {
			return err
		}
		err := s.usage.Create(ctx, &models.LicenseUsage{
			ID:               uuid.New().String(),
			LicenseID:        l.ID,
			CurrentUsers:     snap.CurrentUsers,
			CurrentCompanies: snap.CurrentCompanies,
			CurrentStorageGB: snap.CurrentStorageGB,
			AccessIP:         meta.IPAddress,
			UserAgent:        meta.UserAgent,
			CheckedAt:        now,
		})
		if err != nil {
			return err
		}
		// deployed instances are not operators
		return s.appendLog(ctx, l.ID, models.LicenseActionCheck, "授权码验证成功", models.RequestMeta{IPAddress: meta.IPAddress})
	})
	if err != nil {
		// deleted between the lookup and the check-in
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationResult{Found: false}, nil
		}
		return nil, err
	}

	l.LastCheck = &now
	s.log.Debug("授权码验证成功", "id", l.ID, "ip", meta.IPAddress)
	return &ValidationResult{
		Found:         true,
		License:       l,
		Valid:         license.IsValid(l, now),
		DaysRemaining: license.DaysRemaining(l, now),
	}, nil
}

// ExpireOverdue flips active licenses past valid_until to expired and
// returns how many it changed.
func (s *LicenseService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.repo.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, l := range overdue {
		from := l.Status
		if !license.Expire(l, now) {
			continue
		}
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			if err := s.repo.UpdateState(ctx, l, from); err != nil {
				return err
			}
			return s.appendLog(ctx, l.ID, models.LicenseActionExpire, "授权码已过期", models.RequestMeta{})
		})
		if errors.Is(err, repository.ErrStaleState) {
			s.log.Info("license changed during expiry sweep, skipped", "id", l.ID)
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("expire license %s: %w", l.ID, err)
		}
		expired++
	}

	s.log.Info("license expiry sweep finished", "expired", expired, "checked", len(overdue))
	return expired, nil
}

func (s *LicenseService) Get(ctx context.Context, id string) (*models.License, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "授权码不存在")
	}
	return l, nil
}

// Detail returns a license with its usage records and logs
func (s *LicenseService) Detail(ctx context.Context, id string) (*LicenseDetail, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	usage, err := s.usage.List(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.List(ctx, models.LicenseLogFilter{LicenseID: id})
	if err != nil {
		return nil, err
	}
	return &LicenseDetail{License: l, Usage: usage, Logs: logs}, nil
}

func (s *LicenseService) List(ctx context.Context, f models.LicenseFilter) ([]*models.License, error) {
	return s.repo.List(ctx, f)
}

func (s *LicenseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, "授权码不存在")
	}
	s.log.Info("license deleted", "id", id)
	return nil
}

func (s *LicenseService) Stats(ctx context.Context) (*models.LicenseStats, error) {
	return s.repo.Stats(ctx)
}

func (s *LicenseService) ListUsage(ctx context.Context, licenseID string) ([]*models.LicenseUsage, error) {
	return s.usage.List(ctx, licenseID)
}

func (s *LicenseService) ListLogs(ctx context.Context, f models.LicenseLogFilter) ([]*models.LicenseLog, error) {
	return s.logs.List(ctx, f)
}

// Response renders l with its derived fields evaluated now
func (s *LicenseService) Response(l *models.License) *models.LicenseResponse {
	now := s.now()
	return models.NewLicenseResponse(l, license.IsValid(l, now), license.DaysRemaining(l, now))
}

func (s *LicenseService) persistTransition(ctx context.Context, l *models.License, from, staleMessage string) error {
	err := s.repo.UpdateState(ctx, l, from)
	if errors.Is(err, repository.ErrStaleState) {
		return apperrors.NewInvalidStateError(staleMessage)
	}
	return err
}

func (s *LicenseService) appendLog(ctx context.Context, licenseID, action, message string, meta models.RequestMeta) error {
	return s.logs.Create(ctx, &models.LicenseLog{
		ID:        uuid.New().String(),
		LicenseID: licenseID,
		Action:    action,
		Message:   message,
		IPAddress: meta.IPAddress,
		CreatedBy: meta.ActorID(),
	})
}
