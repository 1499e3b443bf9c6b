package models

import "time"

// Customer status constants
const (
	CustomerStatusActive    = "active"
	CustomerStatusSuspended = "suspended"
	CustomerStatusExpired   = "expired"
	CustomerStatusTrial     = "trial"
)

// Deployment type constants
const (
	DeploymentOnline  = "online"
	DeploymentOffline = "offline"
)

// Customer is a tenant of the SaaS platform
type Customer struct {
	ID                string
	CustomerID        string
	Name              string
	Company           string
	ContactEmail      string
	ContactPhone      string
	DeploymentType    string
	Status            string
	ContractStartDate *time.Time
	ContractEndDate   *time.Time
	Notes             string
	CreatedBy         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// joined
	EnvironmentsCount int
}

func (c *Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}

// CustomerFilter narrows customer listings; empty fields match everything.
type CustomerFilter struct {
	Search         string
	Status         string
	DeploymentType string
}

// CustomerStats is the dashboard summary over all customers.
type CustomerStats struct {
	Total   int `json:"total_customers"`
	Active  int `json:"active_customers"`
	Online  int `json:"online_customers"`
	Offline int `json:"offline_customers"`
	Trial   int `json:"trial_customers"`
	Expired int `json:"expired_customers"`
}
