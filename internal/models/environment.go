package models

import "time"

// Environment status constants
const (
	EnvStatusPending = "pending"
	EnvStatusRunning = "running"
	EnvStatusStopped = "stopped"
	EnvStatusError   = "error"
	EnvStatusUnknown = "unknown"
)

// Environment log types
const (
	EnvLogDeploy      = "deploy"
	EnvLogStart       = "start"
	EnvLogStop        = "stop"
	EnvLogUpdate      = "update"
	EnvLogDelete      = "delete"
	EnvLogHealthCheck = "health_check"
)

// GitAddon is one customer addon repository mounted into the Odoo image.
type GitAddon struct {
	Name       string `json:"name" yaml:"name"`
	Repository string `json:"repository" yaml:"repository"`
	Ref        string `json:"ref" yaml:"ref"`
}

// EnvironmentSpec is the operator-editable configuration of an environment.
// It is decoded straight from API requests, so it carries binding rules.
type EnvironmentSpec struct {
	ReleaseName   string `json:"release_name" binding:"required,max=100,releasename"`
	Namespace     string `json:"namespace" binding:"required,max=100"`
	Domain        string `json:"domain" binding:"max=255"`
	AdminPassword string `json:"admin_password" binding:"required,max=100"`
	OdooVersion   string `json:"odoo_version" binding:"required,max=20"`
	Workers       int    `json:"workers" binding:"min=0"`
	LogLevel      string `json:"log_level" binding:"required,max=20"`

	// git
	GitSSHSecret      string     `json:"git_ssh_secret" binding:"max=100"`
	GitOdooRepository string     `json:"git_odoo_repository" binding:"required,max=255"`
	GitOdooRef        string     `json:"git_odoo_ref" binding:"required,max=100"`
	GitCustomerAddons []GitAddon `json:"git_customer_addons"`

	// storage
	StorageClass           string `json:"storage_class" binding:"max=100"`
	StorageSize            string `json:"storage_size" binding:"required,max=20"`
	StorageAutoExpand      bool   `json:"storage_auto_expand"`
	StorageExpandThreshold int    `json:"storage_expand_threshold" binding:"min=1,max=100"`
	StorageExpandSize      string `json:"storage_expand_size" binding:"max=20"`
	StorageMaxSize         string `json:"storage_max_size" binding:"max=20"`

	// bundled postgres
	DBEnabled       bool   `json:"db_enabled"`
	DBVersion       string `json:"db_version" binding:"max=10"`
	DBInstances     int    `json:"db_instances" binding:"min=0"`
	DBStorageSize   string `json:"db_storage_size" binding:"max=20"`
	DBCPURequest    string `json:"db_cpu_request" binding:"max=20"`
	DBMemoryRequest string `json:"db_memory_request" binding:"max=20"`
	DBCPULimit      string `json:"db_cpu_limit" binding:"max=20"`
	DBMemoryLimit   string `json:"db_memory_limit" binding:"max=20"`

	// external postgres
	ExternalDBEnabled bool   `json:"external_db_enabled"`
	ExternalDBHost    string `json:"external_db_host" binding:"max=255"`
	ExternalDBPort    int    `json:"external_db_port" binding:"min=0,max=65535"`
	ExternalDBName    string `json:"external_db_name" binding:"max=100"`
	ExternalDBUser    string `json:"external_db_user" binding:"max=100"`

	// ingress
	IngressEnabled bool   `json:"ingress_enabled"`
	IngressClass   string `json:"ingress_class" binding:"max=50"`
	IngressPath    string `json:"ingress_path" binding:"max=255"`
	TLSEnabled     bool   `json:"tls_enabled"`
	TLSSecretName  string `json:"tls_secret_name" binding:"max=100"`

	// odoo container
	CPURequest      string `json:"cpu_request" binding:"max=20"`
	MemoryRequest   string `json:"memory_request" binding:"max=20"`
	CPULimit        string `json:"cpu_limit" binding:"max=20"`
	MemoryLimit     string `json:"memory_limit" binding:"max=20"`
	LimitRequest    int    `json:"limit_request" binding:"min=0"`
	LimitMemoryHard string `json:"limit_memory_hard" binding:"max=20"`
	LimitMemorySoft string `json:"limit_memory_soft" binding:"max=20"`
	ProxyMode       bool   `json:"proxy_mode"`
	ListDB          bool   `json:"list_db"`
	DBFilter        string `json:"db_filter" binding:"max=255"`
}

// DefaultEnvironmentSpec returns the configuration a new environment starts
// from before request fields are applied.
func DefaultEnvironmentSpec() EnvironmentSpec {
	return EnvironmentSpec{
		Namespace:         "odoo",
		OdooVersion:       "18.0",
		Workers:           0,
		LogLevel:          "info",
		GitSSHSecret:      "global-git-ssh-key",
		GitOdooRepository: "git@github.com:ShanghaiMeowAI/MeowCloud.git",
		GitOdooRef:        "18.0",
		GitCustomerAddons: []GitAddon{},

		StorageClass:           "longhorn-expandable",
		StorageSize:            "10Gi",
		StorageAutoExpand:      true,
		StorageExpandThreshold: 85,
		StorageExpandSize:      "5Gi",
		StorageMaxSize:         "50Gi",

		DBEnabled:       true,
		DBVersion:       "16",
		DBInstances:     1,
		DBStorageSize:   "5Gi",
		DBCPURequest:    "100m",
		DBMemoryRequest: "256Mi",
		DBCPULimit:      "500m",
		DBMemoryLimit:   "512Mi",

		ExternalDBPort: 5432,

		IngressClass: "nginx",
		IngressPath:  "/",

		CPURequest:      "200m",
		MemoryRequest:   "512Mi",
		CPULimit:        "1000m",
		MemoryLimit:     "2Gi",
		LimitRequest:    8192,
		LimitMemoryHard: "2684354560",
		LimitMemorySoft: "2147483648",
	}
}

// Environment is one Odoo deployment of a customer
type Environment struct {
	ID         string
	CustomerID string
	EnvironmentSpec
	Status          string
	HelmValues      *HelmValues
	LastHealthCheck *time.Time
	DeployedAt      *time.Time
	CreatedBy       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// joined from customers
	CustomerCode string
	CustomerName string
}

func (e *Environment) IsRunning() bool {
	return e.Status == EnvStatusRunning
}

// AccessURL is the public URL of the environment, or "" without a domain.
func (e *Environment) AccessURL() string {
	if e.Domain == "" {
		return ""
	}
	if e.TLSEnabled {
		return "https://" + e.Domain
	}
	return "http://" + e.Domain
}

// EnvironmentLog is an append-only lifecycle record
type EnvironmentLog struct {
	ID            string
	EnvironmentID string
	LogType       string
	Message       string
	Status        string
	CreatedBy     *string
	CreatedByName string
	CreatedAt     time.Time
}

type EnvironmentFilter struct {
	Search     string
	Status     string
	CustomerID string
}

type EnvironmentLogFilter struct {
	EnvironmentID string
	LogType       string
}

type EnvironmentStats struct {
	Total   int `json:"total_environments"`
	Running int `json:"running_environments"`
	Stopped int `json:"stopped_environments"`
	Error   int `json:"error_environments"`
	Pending int `json:"pending_environments"`
}
