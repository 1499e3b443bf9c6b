package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

type CustomerStore interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	List(ctx context.Context, f models.CustomerFilter) ([]*models.Customer, error)
	Update(ctx context.Context, c *models.Customer) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.CustomerStats, error)
}

type customerLicenseLister interface {
	ListByCustomer(ctx context.Context, customerID string) ([]*models.License, error)
}

// CustomerService manages tenants
type CustomerService struct {
	tx       TxRunner
	repo     CustomerStore
	licenses customerLicenseLister
	activity ActivityRecorder
	log      *slog.Logger
}

func NewCustomerService(tx TxRunner, repo CustomerStore, licenses customerLicenseLister, activity ActivityRecorder) *CustomerService {
	return &CustomerService{
		tx:       tx,
		repo:     repo,
		licenses: licenses,
		activity: activity,
		log:      logger.WithComponent("customer"),
	}
}

// Create registers a customer
func (s *CustomerService) Create(ctx context.Context, req *models.CustomerRequest, meta models.RequestMeta) (*models.Customer, error) {
	c := &models.Customer{
		ID:        uuid.New().String(),
		CreatedBy: meta.ActorID(),
	}
	if err := applyCustomerRequest(c, req); err != nil {
		return nil, err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return customerWriteError(err)
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityCreateCustomer,
			"Customer", c.ID, fmt.Sprintf("创建客户: %s", c.Name))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("customer created", "id", c.ID, "customer_id", c.CustomerID)
	return c, nil
}

// Get returns a customer with its licenses
func (s *CustomerService) Get(ctx context.Context, id string) (*models.Customer, []*models.License, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "客户不存在")
	}
	licenses, err := s.licenses.ListByCustomer(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return c, licenses, nil
}

func (s *CustomerService) List(ctx context.Context, f models.CustomerFilter) ([]*models.Customer, error) {
	return s.repo.List(ctx, f)
}

// Update replaces the editable fields of a customer
func (s *CustomerService) Update(ctx context.Context, id string, req *models.CustomerRequest, meta models.RequestMeta) (*models.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "客户不存在")
	}
	if err := applyCustomerRequest(c, req); err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, c); err != nil {
			return customerWriteError(err)
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityUpdateCustomer,
			"Customer", c.ID, fmt.Sprintf("更新客户: %s", c.Name))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a customer together with its environments and licenses
func (s *CustomerService) Delete(ctx context.Context, id string, meta models.RequestMeta) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "客户不存在")
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return notFound(err, "客户不存在")
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityDeleteCustomer,
			"Customer", id, fmt.Sprintf("删除客户: %s", c.Name))
	})
	if err != nil {
		return err
	}

	s.log.Info("customer deleted", "id", id, "customer_id", c.CustomerID)
	return nil
}

func (s *CustomerService) Stats(ctx context.Context) (*models.CustomerStats, error) {
	return s.repo.Stats(ctx)
}

func applyCustomerRequest(c *models.Customer, req *models.CustomerRequest) error {
	start, err := parseDate(req.ContractStartDate)
	if err != nil {
		return apperrors.NewFieldValidationError("invalid request", map[string]string{"contract_start_date": "日期格式应为 YYYY-MM-DD"})
	}
	end, err := parseDate(req.ContractEndDate)
	if err != nil {
		return apperrors.NewFieldValidationError("invalid request", map[string]string{"contract_end_date": "日期格式应为 YYYY-MM-DD"})
	}
	if start != nil && end != nil && end.Before(*start) {
		return apperrors.NewFieldValidationError("invalid request", map[string]string{"contract_end_date": "合同结束日期不能早于开始日期"})
	}

	c.CustomerID = req.CustomerID
	c.Name = req.Name
	c.Company = req.Company
	c.ContactEmail = req.ContactEmail
	c.ContactPhone = req.ContactPhone
	c.DeploymentType = req.DeploymentType
	c.Status = req.Status
	c.ContractStartDate = start
	c.ContractEndDate = end
	c.Notes = req.Notes
	return nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func customerWriteError(err error) error {
	if apperrors.IsUniqueViolation(err) {
		return apperrors.NewConflictError("客户ID已存在", "customer_id")
	}
	return notFound(err, "客户不存在")
}
