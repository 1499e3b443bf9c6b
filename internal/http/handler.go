package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/license"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/policy"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/service"
)

type CustomerService interface {
	Create(ctx context.Context, req *models.CustomerRequest, meta models.RequestMeta) (*models.Customer, error)
	Get(ctx context.Context, id string) (*models.Customer, []*models.License, error)
	List(ctx context.Context, f models.CustomerFilter) ([]*models.Customer, error)
	Update(ctx context.Context, id string, req *models.CustomerRequest, meta models.RequestMeta) (*models.Customer, error)
	Delete(ctx context.Context, id string, meta models.RequestMeta) error
	Stats(ctx context.Context) (*models.CustomerStats, error)
}

type EnvironmentService interface {
	Create(ctx context.Context, req *models.EnvironmentRequest, meta models.RequestMeta) (*models.Environment, error)
	Get(ctx context.Context, id string) (*models.Environment, error)
	List(ctx context.Context, f models.EnvironmentFilter) ([]*models.Environment, error)
	Update(ctx context.Context, id string, req *models.EnvironmentRequest, meta models.RequestMeta) (*models.Environment, error)
	Delete(ctx context.Context, id string, meta models.RequestMeta) error
	Start(ctx context.Context, id string, meta models.RequestMeta) (*models.Environment, error)
	Stop(ctx context.Context, id string, meta models.RequestMeta) (*models.Environment, error)
	HealthCheck(ctx context.Context, id string, meta models.RequestMeta) (*models.HealthCheckResponse, error)
	HelmValues(ctx context.Context, id, format string) ([]byte, string, error)
	Stats(ctx context.Context) (*models.EnvironmentStats, error)
	ListLogs(ctx context.Context, f models.EnvironmentLogFilter) ([]*models.EnvironmentLog, error)
}

type LicenseService interface {
	Generate(ctx context.Context, req *models.LicenseGenerateRequest, meta models.RequestMeta) (*models.License, error)
	Activate(ctx context.Context, id string, p license.ActivateParams, meta models.RequestMeta) (*models.License, error)
	Revoke(ctx context.Context, id string, meta models.RequestMeta) (*models.License, error)
	Validate(ctx context.Context, key string, snap service.UsageSnapshot, meta models.RequestMeta) (*service.ValidationResult, error)
	Detail(ctx context.Context, id string) (*service.LicenseDetail, error)
	List(ctx context.Context, f models.LicenseFilter) ([]*models.License, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.LicenseStats, error)
	ListUsage(ctx context.Context, licenseID string) ([]*models.LicenseUsage, error)
	ListLogs(ctx context.Context, f models.LicenseLogFilter) ([]*models.LicenseLog, error)
	Response(l *models.License) *models.LicenseResponse
}

type UserService interface {
	Authenticator
	Login(ctx context.Context, req *models.LoginRequest, meta models.RequestMeta) (*models.LoginResponse, error)
	Logout(ctx context.Context, meta models.RequestMeta) error
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, f models.UserFilter) ([]*models.User, error)
	Create(ctx context.Context, req *models.UserCreateRequest, meta models.RequestMeta) (*models.User, error)
	UpdateProfile(ctx context.Context, actor policy.Actor, targetID string, req *models.ProfileRequest, meta models.RequestMeta) (*models.User, error)
	ListActivity(ctx context.Context, f models.ActivityLogFilter) ([]*models.ActivityLog, error)
}

type SystemService interface {
	Settings() models.SiteSettings
	Info(ctx context.Context) models.SystemInfo
	CleanLogs(ctx context.Context, days int, meta models.RequestMeta) (*models.CleanLogsResponse, error)
}

// Handler serves the REST API on top of the domain services
type Handler struct {
	customers    CustomerService
	environments EnvironmentService
	licenses     LicenseService
	users        UserService
	system       SystemService

	logRetentionDays int
}

func NewHandler(customers CustomerService, environments EnvironmentService, licenses LicenseService, users UserService, system SystemService, logRetentionDays int) *Handler {
	return &Handler{
		customers:        customers,
		environments:     environments,
		licenses:         licenses,
		users:            users,
		system:           system,
		logRetentionDays: logRetentionDays,
	}
}

// pathID returns the :id parameter. Anything that is not a uuid cannot name
// a record, so it is answered like a missing one.
func pathID(c *gin.Context, notFoundMessage string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(c, apperrors.NewNotFoundError(notFoundMessage))
		return "", false
	}
	return id, true
}

// queryID is like pathID for optional filter parameters; empty is allowed.
func queryID(c *gin.Context, name string) (string, bool) {
	id := c.Query(name)
	if id == "" {
		return "", true
	}
	if _, err := uuid.Parse(id); err != nil {
		writeError(c, apperrors.NewFieldValidationError("请求参数无效", map[string]string{name: "无效的ID"}))
		return "", false
	}
	return id, true
}

func listResponse[T any, R any](items []T, convert func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, convert(it))
	}
	return out
}
