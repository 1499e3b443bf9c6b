package models

import "time"

// DateLayout is the wire format of contract dates.
const DateLayout = "2006-01-02"

// ==================== Customer DTOs ====================

// CustomerRequest creates or replaces a customer. PATCH requests are decoded
// over CustomerRequestFrom(existing) so absent fields keep their value.
type CustomerRequest struct {
	CustomerID        string  `json:"customer_id" binding:"required,max=50,customerid"`
	Name              string  `json:"name" binding:"required,max=200"`
	Company           string  `json:"company" binding:"max=200"`
	ContactEmail      string  `json:"contact_email" binding:"required,email,max=254"`
	ContactPhone      string  `json:"contact_phone" binding:"max=20"`
	DeploymentType    string  `json:"deployment_type" binding:"required,oneof=online offline"`
	Status            string  `json:"status" binding:"required,oneof=active suspended expired trial"`
	ContractStartDate *string `json:"contract_start_date" binding:"omitempty,datetime=2006-01-02"`
	ContractEndDate   *string `json:"contract_end_date" binding:"omitempty,datetime=2006-01-02"`
	Notes             string  `json:"notes"`
}

// NewCustomerRequest carries the defaults applied to a create request.
func NewCustomerRequest() CustomerRequest {
	return CustomerRequest{
		DeploymentType: DeploymentOnline,
		Status:         CustomerStatusTrial,
	}
}

func CustomerRequestFrom(c *Customer) CustomerRequest {
	return CustomerRequest{
		CustomerID:        c.CustomerID,
		Name:              c.Name,
		Company:           c.Company,
		ContactEmail:      c.ContactEmail,
		ContactPhone:      c.ContactPhone,
		DeploymentType:    c.DeploymentType,
		Status:            c.Status,
		ContractStartDate: formatDate(c.ContractStartDate),
		ContractEndDate:   formatDate(c.ContractEndDate),
		Notes:             c.Notes,
	}
}

type CustomerResponse struct {
	ID                string             `json:"id"`
	CustomerID        string             `json:"customer_id"`
	Name              string             `json:"name"`
	Company           string             `json:"company"`
	ContactEmail      string             `json:"contact_email"`
	ContactPhone      string             `json:"contact_phone"`
	DeploymentType    string             `json:"deployment_type"`
	Status            string             `json:"status"`
	ContractStartDate *string            `json:"contract_start_date"`
	ContractEndDate   *string            `json:"contract_end_date"`
	Notes             string             `json:"notes"`
	CreatedBy         *string            `json:"created_by"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	IsActive          bool               `json:"is_active"`
	EnvironmentsCount int                `json:"environments_count"`
	Licenses          []*LicenseResponse `json:"licenses,omitempty"`
}

func NewCustomerResponse(c *Customer) *CustomerResponse {
	return &CustomerResponse{
		ID:                c.ID,
		CustomerID:        c.CustomerID,
		Name:              c.Name,
		Company:           c.Company,
		ContactEmail:      c.ContactEmail,
		ContactPhone:      c.ContactPhone,
		DeploymentType:    c.DeploymentType,
		Status:            c.Status,
		ContractStartDate: formatDate(c.ContractStartDate),
		ContractEndDate:   formatDate(c.ContractEndDate),
		Notes:             c.Notes,
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		IsActive:          c.IsActive(),
		EnvironmentsCount: c.EnvironmentsCount,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// ==================== Environment DTOs ====================

// EnvironmentRequest is decoded over DefaultEnvironmentSpec on create and
// over the stored spec on PATCH.
type EnvironmentRequest struct {
	Customer string `json:"customer" binding:"required,uuid"`
	EnvironmentSpec
}

func NewEnvironmentRequest() EnvironmentRequest {
	return EnvironmentRequest{EnvironmentSpec: DefaultEnvironmentSpec()}
}

func EnvironmentRequestFrom(e *Environment) EnvironmentRequest {
	spec := e.EnvironmentSpec
	spec.GitCustomerAddons = append([]GitAddon{}, e.GitCustomerAddons...)
	return EnvironmentRequest{Customer: e.CustomerID, EnvironmentSpec: spec}
}

type EnvironmentResponse struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	CustomerCode string `json:"customer_code"`
	CustomerName string `json:"customer_name"`
	EnvironmentSpec
	Status          string      `json:"status"`
	HelmValues      *HelmValues `json:"helm_values"`
	LastHealthCheck *time.Time  `json:"last_health_check"`
	DeployedAt      *time.Time  `json:"deployed_at"`
	CreatedBy       *string     `json:"created_by"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	IsRunning       bool        `json:"is_running"`
	AccessURL       *string     `json:"access_url"`
}

func NewEnvironmentResponse(e *Environment) *EnvironmentResponse {
	resp := &EnvironmentResponse{
		ID:              e.ID,
		Customer:        e.CustomerID,
		CustomerCode:    e.CustomerCode,
		CustomerName:    e.CustomerName,
		EnvironmentSpec: e.EnvironmentSpec,
		Status:          e.Status,
		HelmValues:      e.HelmValues,
		LastHealthCheck: e.LastHealthCheck,
		DeployedAt:      e.DeployedAt,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		IsRunning:       e.IsRunning(),
	}
	if u := e.AccessURL(); u != "" {
		resp.AccessURL = &u
	}
	return resp
}

// HealthCheckResponse reports the outcome of a recorded health check
type HealthCheckResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	LastCheck *time.Time `json:"last_check"`
}

type EnvironmentLogResponse struct {
	ID            string    `json:"id"`
	Environment   string    `json:"environment"`
	LogType       string    `json:"log_type"`
	Message       string    `json:"message"`
	Status        string    `json:"status"`
	CreatedBy     *string   `json:"created_by"`
	CreatedByName string    `json:"created_by_name"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewEnvironmentLogResponse(l *EnvironmentLog) *EnvironmentLogResponse {
	return &EnvironmentLogResponse{
		ID:            l.ID,
		Environment:   l.EnvironmentID,
		LogType:       l.LogType,
		Message:       l.Message,
		Status:        l.Status,
		CreatedBy:     l.CreatedBy,
		CreatedByName: l.CreatedByName,
		CreatedAt:     l.CreatedAt,
	}
}

// ==================== License DTOs ====================

// LicenseGenerateRequest is decoded over NewLicenseGenerateRequest.
type LicenseGenerateRequest struct {
	Customer       string    `json:"customer" binding:"required,uuid"`
	LicenseType    string    `json:"license_type" binding:"required,oneof=trial standard professional enterprise"`
	MaxUsers       int       `json:"max_users" binding:"min=1"`
	MaxCompanies   int       `json:"max_companies" binding:"min=1"`
	MaxStorageGB   int       `json:"max_storage_gb" binding:"min=1"`
	ModulesEnabled []string  `json:"modules_enabled" binding:"dive,required,max=100"`
	ValidFrom      time.Time `json:"valid_from" binding:"required"`
	ValidUntil     time.Time `json:"valid_until" binding:"required,gtfield=ValidFrom"`
	Notes          string    `json:"notes"`
}

func NewLicenseGenerateRequest() LicenseGenerateRequest {
	return LicenseGenerateRequest{
		LicenseType:    LicenseTypeStandard,
		MaxUsers:       10,
		MaxCompanies:   1,
		MaxStorageGB:   10,
		ModulesEnabled: []string{},
	}
}

// CustomerLicenseRequest is the short form of license generation used by the
// customer page: standard defaults, valid from now for ExpireDays.
type CustomerLicenseRequest struct {
	ExpireDays int `json:"expire_days" binding:"min=1,max=3650"`
}

func NewCustomerLicenseRequest() CustomerLicenseRequest {
	return CustomerLicenseRequest{ExpireDays: 365}
}

// GenerateRequest expands r into a full generation request for a customer.
func (r CustomerLicenseRequest) GenerateRequest(customerID string, now time.Time) LicenseGenerateRequest {
	req := NewLicenseGenerateRequest()
	req.Customer = customerID
	req.ValidFrom = now
	req.ValidUntil = now.AddDate(0, 0, r.ExpireDays)
	return req
}

type LicenseActivateRequest struct {
	HardwareFingerprint string `json:"hardware_fingerprint" binding:"max=255"`
	DeploymentDomain    string `json:"deployment_domain" binding:"max=255"`
	DeploymentIP        string `json:"deployment_ip" binding:"omitempty,ip"`
}

// LicenseValidateRequest is the check-in a deployed instance sends.
type LicenseValidateRequest struct {
	LicenseKey       string  `json:"license_key" binding:"required,max=64"`
	CurrentUsers     int     `json:"current_users" binding:"min=0"`
	CurrentCompanies int     `json:"current_companies" binding:"min=0"`
	CurrentStorageGB float64 `json:"current_storage_gb" binding:"min=0"`
}

// LicenseValidateResponse answers a check-in for a known key. Every field is
// always present; deployed clients index them directly.
type LicenseValidateResponse struct {
	Valid          bool      `json:"valid"`
	LicenseType    string    `json:"license_type"`
	MaxUsers       int       `json:"max_users"`
	MaxCompanies   int       `json:"max_companies"`
	MaxStorageGB   int       `json:"max_storage_gb"`
	ModulesEnabled []string  `json:"modules_enabled"`
	ValidUntil     time.Time `json:"valid_until"`
	DaysRemaining  int       `json:"days_remaining"`
}

// LicenseValidateMiss answers a check-in for an unknown key.
type LicenseValidateMiss struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
}

type LicenseResponse struct {
	ID                  string     `json:"id"`
	Customer            string     `json:"customer"`
	CustomerName        string     `json:"customer_name"`
	LicenseKey          string     `json:"license_key"`
	LicenseType         string     `json:"license_type"`
	MaxUsers            int        `json:"max_users"`
	MaxCompanies        int        `json:"max_companies"`
	MaxStorageGB        int        `json:"max_storage_gb"`
	ModulesEnabled      []string   `json:"modules_enabled"`
	IssuedAt            time.Time  `json:"issued_at"`
	ValidFrom           time.Time  `json:"valid_from"`
	ValidUntil          time.Time  `json:"valid_until"`
	Status              string     `json:"status"`
	ActivatedAt         *time.Time `json:"activated_at"`
	LastCheck           *time.Time `json:"last_check"`
	HardwareFingerprint string     `json:"hardware_fingerprint"`
	DeploymentDomain    string     `json:"deployment_domain"`
	DeploymentIP        string     `json:"deployment_ip"`
	Notes               string     `json:"notes"`
	CreatedBy           *string    `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	IsValid             bool       `json:"is_valid"`
	DaysRemaining       int        `json:"days_remaining"`

	// detail only
	Usage []*LicenseUsageResponse `json:"usage_records,omitempty"`
	Logs  []*LicenseLogResponse   `json:"logs,omitempty"`
}

func NewLicenseResponse(l *License, isValid bool, daysRemaining int) *LicenseResponse {
	return &LicenseResponse{
		ID:                  l.ID,
		Customer:            l.CustomerID,
		CustomerName:        l.CustomerName,
		LicenseKey:          l.LicenseKey,
		LicenseType:         l.LicenseType,
		MaxUsers:            l.MaxUsers,
		MaxCompanies:        l.MaxCompanies,
		MaxStorageGB:        l.MaxStorageGB,
		ModulesEnabled:      l.ModulesEnabled,
		IssuedAt:            l.IssuedAt,
		ValidFrom:           l.ValidFrom,
		ValidUntil:          l.ValidUntil,
		Status:              l.Status,
		ActivatedAt:         l.ActivatedAt,
		LastCheck:           l.LastCheck,
		HardwareFingerprint: l.HardwareFingerprint,
		DeploymentDomain:    l.DeploymentDomain,
		DeploymentIP:        l.DeploymentIP,
		Notes:               l.Notes,
		CreatedBy:           l.CreatedBy,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
		IsValid:             isValid,
		DaysRemaining:       daysRemaining,
	}
}

type LicenseUsageResponse struct {
	ID               string    `json:"id"`
	License          string    `json:"license"`
	LicenseKey       string    `json:"license_key"`
	CustomerName     string    `json:"customer_name"`
	CurrentUsers     int       `json:"current_users"`
	CurrentCompanies int       `json:"current_companies"`
	CurrentStorageGB float64   `json:"current_storage_gb"`
	AccessIP         string    `json:"access_ip"`
	UserAgent        string    `json:"user_agent"`
	CheckedAt        time.Time `json:"checked_at"`
}

func NewLicenseUsageResponse(u *LicenseUsage) *LicenseUsageResponse {
	return &LicenseUsageResponse{
		ID:               u.ID,
		License:          u.LicenseID,
		LicenseKey:       u.LicenseKey,
		CustomerName:     u.CustomerName,
		CurrentUsers:     u.CurrentUsers,
		CurrentCompanies: u.CurrentCompanies,
		CurrentStorageGB: u.CurrentStorageGB,
		AccessIP:         u.AccessIP,
		UserAgent:        u.UserAgent,
		CheckedAt:        u.CheckedAt,
	}
}

type LicenseLogResponse struct {
	ID            string    `json:"id"`
	License       string    `json:"license"`
	LicenseKey    string    `json:"license_key"`
	Action        string    `json:"action"`
	Message       string    `json:"message"`
	IPAddress     string    `json:"ip_address"`
	CreatedBy     *string   `json:"created_by"`
	CreatedByName string    `json:"created_by_name"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewLicenseLogResponse(l *LicenseLog) *LicenseLogResponse {
	return &LicenseLogResponse{
		ID:            l.ID,
		License:       l.LicenseID,
		LicenseKey:    l.LicenseKey,
		Action:        l.Action,
		Message:       l.Message,
		IPAddress:     l.IPAddress,
		CreatedBy:     l.CreatedBy,
		CreatedByName: l.CreatedByName,
		CreatedAt:     l.CreatedAt,
	}
}

// ==================== User DTOs ====================

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// ProfileRequest is decoded over ProfileRequestFrom(current profile).
type ProfileRequest struct {
	Role                  string `json:"role" binding:"required,oneof=admin operator viewer"`
	Phone                 string `json:"phone" binding:"max=20"`
	Department            string `json:"department" binding:"max=100"`
	Position              string `json:"position" binding:"max=100"`
	CanManageCustomers    bool   `json:"can_manage_customers"`
	CanManageEnvironments bool   `json:"can_manage_environments"`
	CanViewLogs           bool   `json:"can_view_logs"`
	CanGenerateLicenses   bool   `json:"can_generate_licenses"`
}

func ProfileRequestFrom(p UserProfile) ProfileRequest {
	return ProfileRequest{
		Role:                  p.Role,
		Phone:                 p.Phone,
		Department:            p.Department,
		Position:              p.Position,
		CanManageCustomers:    p.CanManageCustomers,
		CanManageEnvironments: p.CanManageEnvironments,
		CanViewLogs:           p.CanViewLogs,
		CanGenerateLicenses:   p.CanGenerateLicenses,
	}
}

// Apply copies the request onto p.
func (r *ProfileRequest) Apply(p *UserProfile) {
	p.Role = r.Role
	p.Phone = r.Phone
	p.Department = r.Department
	p.Position = r.Position
	p.CanManageCustomers = r.CanManageCustomers
	p.CanManageEnvironments = r.CanManageEnvironments
	p.CanViewLogs = r.CanViewLogs
	p.CanGenerateLicenses = r.CanGenerateLicenses
}

type UserCreateRequest struct {
	Username    string         `json:"username" binding:"required,max=150"`
	Email       string         `json:"email" binding:"omitempty,email,max=254"`
	Password    string         `json:"password" binding:"required,min=8,max=128"`
	FirstName   string         `json:"first_name" binding:"max=150"`
	LastName    string         `json:"last_name" binding:"max=150"`
	IsSuperuser bool           `json:"is_superuser"`
	Profile     ProfileRequest `json:"profile"`
}

func NewUserCreateRequest() UserCreateRequest {
	return UserCreateRequest{Profile: ProfileRequestFrom(DefaultProfile())}
}

type ProfileResponse struct {
	Role                  string `json:"role"`
	Phone                 string `json:"phone"`
	Department            string `json:"department"`
	Position              string `json:"position"`
	CanManageCustomers    bool   `json:"can_manage_customers"`
	CanManageEnvironments bool   `json:"can_manage_environments"`
	CanViewLogs           bool   `json:"can_view_logs"`
	CanGenerateLicenses   bool   `json:"can_generate_licenses"`
	DisplayName           string `json:"display_name"`
	IsAdmin               bool   `json:"is_admin"`
	IsOperator            bool   `json:"is_operator"`
}

// Permissions is the capability summary returned for the current user.
type Permissions struct {
	CanManageCustomers    bool `json:"can_manage_customers"`
	CanManageEnvironments bool `json:"can_manage_environments"`
	CanViewLogs           bool `json:"can_view_logs"`
	CanGenerateLicenses   bool `json:"can_generate_licenses"`
	IsAdmin               bool `json:"is_admin"`
	IsOperator            bool `json:"is_operator"`
}

type UserResponse struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	IsActive    bool            `json:"is_active"`
	IsSuperuser bool            `json:"is_superuser"`
	DateJoined  time.Time       `json:"date_joined"`
	LastLogin   *time.Time      `json:"last_login"`
	Profile     ProfileResponse `json:"profile"`
	Permissions *Permissions    `json:"permissions,omitempty"`
}

func NewUserResponse(u *User) *UserResponse {
	p := &u.Profile
	return &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
		Profile: ProfileResponse{
			Role:                  p.Role,
			Phone:                 p.Phone,
			Department:            p.Department,
			Position:              p.Position,
			CanManageCustomers:    p.CanManageCustomers,
			CanManageEnvironments: p.CanManageEnvironments,
			CanViewLogs:           p.CanViewLogs,
			CanGenerateLicenses:   p.CanGenerateLicenses,
			DisplayName:           u.DisplayName(),
			IsAdmin:               p.IsAdmin(),
			IsOperator:            p.IsOperator(),
		},
	}
}

// NewCurrentUserResponse adds the permission summary shown to the user
// about themselves.
func NewCurrentUserResponse(u *User) *UserResponse {
	resp := NewUserResponse(u)
	p := &u.Profile
	resp.Permissions = &Permissions{
		CanManageCustomers:    p.CanManageCustomers,
		CanManageEnvironments: p.CanManageEnvironments,
		CanViewLogs:           p.CanViewLogs,
		CanGenerateLicenses:   p.CanGenerateLicenses,
		IsAdmin:               p.IsAdmin(),
		IsOperator:            p.IsOperator(),
	}
	return resp
}

type ActivityLogResponse struct {
	ID          string    `json:"id"`
	User        string    `json:"user"`
	UserName    string    `json:"user_name"`
	Action      string    `json:"action"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id"`
	Description string    `json:"description"`
	IPAddress   string    `json:"ip_address"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewActivityLogResponse(a *ActivityLog) *ActivityLogResponse {
	return &ActivityLogResponse{
		ID:          a.ID,
		User:        a.UserID,
		UserName:    a.Username,
		Action:      a.Action,
		TargetType:  a.TargetType,
		TargetID:    a.TargetID,
		Description: a.Description,
		IPAddress:   a.IPAddress,
		CreatedAt:   a.CreatedAt,
	}
}

// ==================== System DTOs ====================

type CleanLogsRequest struct {
	Days int `json:"days" binding:"min=1"`
}

type CleanLogsResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deleted_count"`
}

// SiteSettings is the public view of the site configuration.
type SiteSettings struct {
	SiteName              string `json:"site_name"`
	SiteDescription       string `json:"site_description"`
	AdminEmail            string `json:"admin_email"`
	MaintenanceMode       bool   `json:"maintenance_mode"`
	SessionTimeoutMinutes int    `json:"session_timeout"`
	LogRetentionDays      int    `json:"log_retention_days"`
}

type SystemInfo struct {
	ServerTime     time.Time `json:"server_time"`
	DatabaseStatus string    `json:"database_status"`
	Version        string    `json:"version"`
	Platform       string    `json:"platform"`
}
