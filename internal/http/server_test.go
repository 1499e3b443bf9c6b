package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/config"
	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/policy"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/service"
)

const (
	testSecret   = "test-jwt-secret-0123456789abcdef"
	testInternal = "test-internal-secret-0123456789ab"

	viewerID  = "11111111-1111-4111-8111-111111111111"
	managerID = "22222222-2222-4222-8222-222222222222"
	issuerID  = "44444444-4444-4444-8444-444444444444"
)

// ---- fakes ----

type fakeUsers struct {
	UserService
	users map[string]*models.User
}

func (f *fakeUsers) Authenticate(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.NewUnauthorizedError("invalid token")
	}
	return u, nil
}

func (f *fakeUsers) Login(_ context.Context, req *models.LoginRequest, _ models.RequestMeta) (*models.LoginResponse, error) {
	for _, u := range f.users {
		if u.Username == req.Username && req.Password == "pw" {
			return &models.LoginResponse{Token: "tok", User: models.NewCurrentUserResponse(u)}, nil
		}
	}
	return nil, apperrors.NewUnauthorizedError("用户名或密码错误")
}

type fakeCustomers struct {
	CustomerService
	rows  map[string]*models.Customer
	metas []models.RequestMeta
}

func (f *fakeCustomers) Create(_ context.Context, req *models.CustomerRequest, meta models.RequestMeta) (*models.Customer, error) {
	f.metas = append(f.metas, meta)
	c := &models.Customer{ID: "33333333-3333-4333-8333-333333333333", CustomerID: req.CustomerID, Name: req.Name,
		ContactEmail: req.ContactEmail, DeploymentType: req.DeploymentType, Status: req.Status}
	f.rows[c.ID] = c
	return c, nil
}

func (f *fakeCustomers) Get(_ context.Context, id string) (*models.Customer, []*models.License, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, nil, apperrors.NewNotFoundError(customerNotFound)
	}
	cp := *c
	return &cp, nil, nil
}

func (f *fakeCustomers) Update(_ context.Context, id string, req *models.CustomerRequest, _ models.RequestMeta) (*models.Customer, error) {
	c := f.rows[id]
	c.Name = req.Name
	c.ContactEmail = req.ContactEmail
	c.Status = req.Status
	return c, nil
}

type fakeLicenses struct {
	LicenseService
	byKey     map[string]*models.License
	generated []models.LicenseGenerateRequest
}

func (f *fakeLicenses) Generate(_ context.Context, req *models.LicenseGenerateRequest, _ models.RequestMeta) (*models.License, error) {
	f.generated = append(f.generated, *req)
	return &models.License{
		ID:          "55555555-5555-4555-8555-555555555555",
		CustomerID:  req.Customer,
		LicenseType: req.LicenseType,
		MaxUsers:    req.MaxUsers,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
		Status:      models.LicenseStatusPending,
	}, nil
}

func (f *fakeLicenses) Response(l *models.License) *models.LicenseResponse {
	return models.NewLicenseResponse(l, false, 0)
}

func (f *fakeLicenses) Validate(_ context.Context, key string, _ service.UsageSnapshot, _ models.RequestMeta) (*service.ValidationResult, error) {
	l, ok := f.byKey[key]
	if !ok {
		return &service.ValidationResult{Found: false}, nil
	}
	return &service.ValidationResult{Found: true, License: l, Valid: true, DaysRemaining: 30}, nil
}

// ---- harness ----

type harness struct {
	srv       *Server
	customers *fakeCustomers
	licenses  *fakeLicenses
}

func newHarness(t *testing.T, mutate func(cfg *config.Config, limits *Limiters)) *harness {
	t.Helper()

	cfg := &config.Config{
		Server:         config.ServerConfig{Mode: gin.TestMode},
		JWT:            config.JWTConfig{SecretKey: testSecret},
		InternalSecret: testInternal,
		Site:           config.SiteConfig{LogRetentionDays: 30},
	}
	limits := Limiters{Login: NewMemoryLimiter(100, time.Minute), Validate: NewMemoryLimiter(100, time.Minute)}
	if mutate != nil {
		mutate(cfg, &limits)
	}

	viewer := &models.User{ID: viewerID, Username: "viewer", IsActive: true, Profile: models.DefaultProfile()}
	manager := &models.User{ID: managerID, Username: "manager", IsActive: true, Profile: models.UserProfile{
		Role: models.RoleOperator, CanManageCustomers: true,
	}}
	issuer := &models.User{ID: issuerID, Username: "issuer", IsActive: true, Profile: models.UserProfile{
		Role: models.RoleOperator, CanGenerateLicenses: true,
	}}
	users := &fakeUsers{users: map[string]*models.User{viewerID: viewer, managerID: manager, issuerID: issuer}}
	customers := &fakeCustomers{rows: map[string]*models.Customer{}}
	licenses := &fakeLicenses{byKey: map[string]*models.License{
		"KEY-1": {ID: "l1", LicenseKey: "KEY-1", LicenseType: models.LicenseTypeStandard, MaxUsers: 10, ValidUntil: time.Now().AddDate(0, 1, 0)},
	}}

	ev, err := policy.NewEvaluator()
	require.NoError(t, err)

	h := NewHandler(customers, nil, licenses, users, nil, cfg.Site.LogRetentionDays)
	srv, err := NewServer(cfg, h, nil, ev, limits)
	require.NoError(t, err)
	return &harness{srv: srv, customers: customers, licenses: licenses}
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func (h *harness) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error apperrors.AppError `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.AppError {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func validCustomer(code string) map[string]any {
	return map[string]any{"customer_id": code, "name": "Acme", "contact_email": "ops@acme.test"}
}

// ---- tests ----

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/api/login", map[string]string{"username": "viewer", "password": "pw"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "viewer", resp.User.Username)

	w = h.do(http.MethodPost, "/api/login", map[string]string{"username": "viewer", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/login", map[string]string{"username": "viewer"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Fields, "password")
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodGet, "/api/users/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/api/users/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/api/users/me", nil, map[string]string{"Authorization": bearer(t, "99999999-9999-4999-8999-999999999999")})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/api/users/me", nil, map[string]string{"Authorization": bearer(t, viewerID)})
	require.Equal(t, http.StatusOK, w.Code)
	var me models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "viewer", me.Username)
	require.NotNil(t, me.Permissions)
	assert.True(t, me.Permissions.CanViewLogs)
}

func TestCreateCustomerRequiresPermission(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/api/customers", validCustomer("acme"), map[string]string{"Authorization": bearer(t, viewerID)})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, h.customers.rows)

	w = h.do(http.MethodPost, "/api/customers", validCustomer("acme"), map[string]string{
		"Authorization": bearer(t, managerID),
		"User-Agent":    "console",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp models.CustomerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.CustomerStatusTrial, resp.Status)
	assert.Equal(t, models.DeploymentOnline, resp.DeploymentType)

	require.Len(t, h.customers.metas, 1)
	assert.Equal(t, managerID, h.customers.metas[0].UserID)
	assert.Equal(t, "console", h.customers.metas[0].UserAgent)
}

func TestCreateCustomerValidation(t *testing.T) {
	h := newHarness(t, nil)

	body := validCustomer("acme corp")
	body["contact_email"] = "not-an-email"
	w := h.do(http.MethodPost, "/api/customers", body, map[string]string{"Authorization": bearer(t, managerID)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decodeError(t, w).Fields
	assert.Contains(t, fields, "customer_id")
	assert.Contains(t, fields, "contact_email")
}

func TestPatchCustomerKeepsOmittedFields(t *testing.T) {
	h := newHarness(t, nil)
	auth := map[string]string{"Authorization": bearer(t, managerID)}

	w := h.do(http.MethodPost, "/api/customers", validCustomer("acme"), auth)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.CustomerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = h.do(http.MethodPatch, "/api/customers/"+created.ID, map[string]string{"status": models.CustomerStatusActive}, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var patched models.CustomerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &patched))
	assert.Equal(t, models.CustomerStatusActive, patched.Status)
	assert.Equal(t, "Acme", patched.Name)
	assert.Equal(t, "ops@acme.test", patched.ContactEmail)
	assert.True(t, patched.IsActive)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/api/customers/not-a-uuid", nil, map[string]string{"Authorization": bearer(t, viewerID)})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMaintenanceMode(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Limiters) {
		cfg.Site.MaintenanceMode = true
	})

	w := h.do(http.MethodPost, "/api/customers", validCustomer("acme"), map[string]string{"Authorization": bearer(t, managerID)})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = h.do(http.MethodPost, "/api/login", map[string]string{"username": "viewer", "password": "pw"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/api/users/me", nil, map[string]string{"Authorization": bearer(t, viewerID)})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateLicense(t *testing.T) {
	h := newHarness(t, nil)
	internal := map[string]string{"X-Internal-Secret": testInternal}

	w := h.do(http.MethodPost, "/api/internal/licenses/validate", map[string]any{"license_key": "KEY-1", "current_users": 3}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/internal/licenses/validate", map[string]any{"license_key": "KEY-1", "current_users": 3}, internal)
	require.Equal(t, http.StatusOK, w.Code)
	var ok models.LicenseValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.True(t, ok.Valid)
	assert.Equal(t, 10, ok.MaxUsers)
	assert.Equal(t, 30, ok.DaysRemaining)

	w = h.do(http.MethodPost, "/api/internal/licenses/validate", map[string]any{"license_key": "NOPE"}, internal)
	require.Equal(t, http.StatusNotFound, w.Code)
	var missing models.LicenseValidateMiss
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &missing))
	assert.False(t, missing.Valid)
	assert.Equal(t, "授权码不存在", missing.Error)

	w = h.do(http.MethodPost, "/api/licenses/validate", map[string]any{"license_key": "KEY-1"}, map[string]string{"Authorization": bearer(t, viewerID)})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateLicenseAlwaysReportsEveryField(t *testing.T) {
	h := newHarness(t, nil)

	// KEY-1 has no enabled modules
	w := h.do(http.MethodPost, "/api/internal/licenses/validate", map[string]any{"license_key": "KEY-1"},
		map[string]string{"X-Internal-Secret": testInternal})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, key := range []string{"valid", "license_type", "max_users", "max_companies", "max_storage_gb", "modules_enabled", "valid_until", "days_remaining"} {
		assert.Contains(t, body, key)
	}
	assert.NotContains(t, body, "error")
	assert.JSONEq(t, "[]", string(body["modules_enabled"]))
	assert.JSONEq(t, "0", string(body["max_companies"]))
}

func TestGenerateCustomerLicense(t *testing.T) {
	h := newHarness(t, nil)
	customerID := "33333333-3333-4333-8333-333333333333"
	path := "/api/customers/" + customerID + "/generate_license"

	w := h.do(http.MethodPost, path, map[string]int{"expire_days": 30}, map[string]string{"Authorization": bearer(t, managerID)})
	assert.Equal(t, http.StatusForbidden, w.Code)

	issuer := map[string]string{"Authorization": bearer(t, issuerID)}
	w = h.do(http.MethodPost, path, map[string]int{"expire_days": 30}, issuer)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, h.licenses.generated, 1)
	req := h.licenses.generated[0]
	assert.Equal(t, customerID, req.Customer)
	assert.Equal(t, models.LicenseTypeStandard, req.LicenseType)
	assert.Equal(t, req.ValidFrom.AddDate(0, 0, 30), req.ValidUntil)

	// no body: a year
	w = h.do(http.MethodPost, path, nil, issuer)
	require.Equal(t, http.StatusCreated, w.Code)
	req = h.licenses.generated[1]
	assert.Equal(t, req.ValidFrom.AddDate(0, 0, 365), req.ValidUntil)

	w = h.do(http.MethodPost, path, map[string]int{"expire_days": 0}, issuer)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Fields, "expire_days")
}

func TestLoginRateLimit(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, limits *Limiters) {
		limits.Login = NewMemoryLimiter(2, time.Minute)
	})

	body := map[string]string{"username": "viewer", "password": "nope"}
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/login", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/login", body, nil).Code)

	w := h.do(http.MethodPost, "/api/login", body, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperrors.ErrorTypeRateLimited, decodeError(t, w).Type)
}
