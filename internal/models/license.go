package models

import "time"

// License status constants
const (
	LicenseStatusPending = "pending"
	LicenseStatusActive  = "active"
	LicenseStatusExpired = "expired"
	LicenseStatusRevoked = "revoked"
)

// License type constants
const (
	LicenseTypeTrial        = "trial"
	LicenseTypeStandard     = "standard"
	LicenseTypeProfessional = "professional"
	LicenseTypeEnterprise   = "enterprise"
)

// License log actions
const (
	LicenseActionGenerate = "generate"
	LicenseActionActivate = "activate"
	LicenseActionRevoke   = "revoke"
	LicenseActionCheck    = "check"
	LicenseActionExpire   = "expire"
)

// License is a key issued to a customer for an offline deployment
type License struct {
	ID                  string
	CustomerID          string
	LicenseKey          string
	LicenseType         string
	MaxUsers            int
	MaxCompanies        int
	MaxStorageGB        int
	ModulesEnabled      []string
	IssuedAt            time.Time
	ValidFrom           time.Time
	ValidUntil          time.Time
	Status              string
	ActivatedAt         *time.Time
	LastCheck           *time.Time
	HardwareFingerprint string
	DeploymentDomain    string
	DeploymentIP        string
	Notes               string
	CreatedBy           *string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	// joined
	CustomerName string
}

// LicenseUsage is one check-in reported by a deployed instance
type LicenseUsage struct {
	ID               string
	LicenseID        string
	CurrentUsers     int
	CurrentCompanies int
	CurrentStorageGB float64
	AccessIP         string
	UserAgent        string
	CheckedAt        time.Time

	// joined
	LicenseKey   string
	CustomerName string
}

// LicenseLog is an append-only audit record of a license transition
type LicenseLog struct {
	ID            string
	LicenseID     string
	Action        string
	Message       string
	IPAddress     string
	CreatedBy     *string
	CreatedByName string
	CreatedAt     time.Time

	// joined
	LicenseKey string
}

type LicenseFilter struct {
	Search      string
	Status      string
	CustomerID  string
	LicenseType string
}

type LicenseLogFilter struct {
	LicenseID string
	Action    string
}

type LicenseStats struct {
	Total   int `json:"total_licenses"`
	Active  int `json:"active_licenses"`
	Expired int `json:"expired_licenses"`
	Revoked int `json:"revoked_licenses"`
	Pending int `json:"pending_licenses"`
}
