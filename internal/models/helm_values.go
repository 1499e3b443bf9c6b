package models

// HelmValues is the values document handed to the Odoo Helm chart. Field
// names follow the chart's camelCase keys.
type HelmValues struct {
	ReleaseNameOverride string         `json:"releaseNameOverride" yaml:"releaseNameOverride"`
	Customer            HelmCustomer   `json:"customer" yaml:"customer"`
	Image               HelmImage      `json:"image" yaml:"image"`
	Git                 HelmGit        `json:"git" yaml:"git"`
	Storage             HelmStorage    `json:"storage" yaml:"storage"`
	Odoo                HelmOdoo       `json:"odoo" yaml:"odoo"`
	PostgreSQL          HelmPostgreSQL `json:"postgresql" yaml:"postgresql"`
	Ingress             HelmIngress    `json:"ingress" yaml:"ingress"`
	Resources           HelmResources  `json:"resources" yaml:"resources"`
}

type HelmCustomer struct {
	ID string `json:"id" yaml:"id"`
}

type HelmImage struct {
	Repository string `json:"repository" yaml:"repository"`
	Tag        string `json:"tag" yaml:"tag"`
	PullPolicy string `json:"pullPolicy" yaml:"pullPolicy"`
}

type HelmGit struct {
	SSH            HelmGitSSH  `json:"ssh" yaml:"ssh"`
	OdooCore       HelmGitRepo `json:"odooCore" yaml:"odooCore"`
	CustomerAddons []GitAddon  `json:"customerAddons" yaml:"customerAddons"`
}

type HelmGitSSH struct {
	SecretName string `json:"secretName" yaml:"secretName"`
}

type HelmGitRepo struct {
	Repository string `json:"repository" yaml:"repository"`
	Ref        string `json:"ref" yaml:"ref"`
}

type HelmStorage struct {
	StorageClass HelmStorageClass `json:"storageClass" yaml:"storageClass"`
	Expansion    HelmExpansion    `json:"expansion" yaml:"expansion"`
}

type HelmStorageClass struct {
	Create               bool   `json:"create" yaml:"create"`
	Name                 string `json:"name" yaml:"name"`
	Provisioner          string `json:"provisioner" yaml:"provisioner"`
	ReclaimPolicy        string `json:"reclaimPolicy" yaml:"reclaimPolicy"`
	AllowVolumeExpansion bool   `json:"allowVolumeExpansion" yaml:"allowVolumeExpansion"`
}

type HelmExpansion struct {
	Enabled bool              `json:"enabled" yaml:"enabled"`
	Auto    HelmAutoExpansion `json:"auto" yaml:"auto"`
}

type HelmAutoExpansion struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	ExpandThreshold int    `json:"expandThreshold" yaml:"expandThreshold"`
	ExpandSize      string `json:"expandSize" yaml:"expandSize"`
	MaxSize         string `json:"maxSize" yaml:"maxSize"`
}

type HelmOdoo struct {
	Service     HelmService         `json:"service" yaml:"service"`
	Config      HelmOdooConfig      `json:"config" yaml:"config"`
	Persistence HelmOdooPersistence `json:"persistence" yaml:"persistence"`
}

type HelmService struct {
	Port int    `json:"port" yaml:"port"`
	Type string `json:"type" yaml:"type"`
}

// HelmOdooConfig mirrors odoo.conf options, hence the snake_case keys.
type HelmOdooConfig struct {
	AdminPasswd     string            `json:"admin_passwd" yaml:"admin_passwd"`
	Workers         int               `json:"workers" yaml:"workers"`
	LimitRequest    int               `json:"limit_request" yaml:"limit_request"`
	LimitMemoryHard string            `json:"limit_memory_hard" yaml:"limit_memory_hard"`
	LimitMemorySoft string            `json:"limit_memory_soft" yaml:"limit_memory_soft"`
	LogLevel        string            `json:"log_level" yaml:"log_level"`
	ProxyMode       bool              `json:"proxy_mode" yaml:"proxy_mode"`
	ExtraParams     map[string]string `json:"extraParams" yaml:"extraParams"`
}

type HelmOdooPersistence struct {
	Filestore HelmFilestore `json:"filestore" yaml:"filestore"`
}

type HelmFilestore struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	MountPath    string `json:"mountPath" yaml:"mountPath"`
	Size         string `json:"size" yaml:"size"`
	StorageClass string `json:"storageClass" yaml:"storageClass"`
}

type HelmPostgreSQL struct {
	Enabled           bool            `json:"enabled" yaml:"enabled"`
	Version           string          `json:"version" yaml:"version"`
	NumberOfInstances int             `json:"numberOfInstances" yaml:"numberOfInstances"`
	Persistence       HelmPersistence `json:"persistence" yaml:"persistence"`
	Resources         HelmResources   `json:"resources" yaml:"resources"`
	External          *HelmExternalDB `json:"external,omitempty" yaml:"external,omitempty"`
}

type HelmPersistence struct {
	Size         string `json:"size" yaml:"size"`
	StorageClass string `json:"storageClass" yaml:"storageClass"`
}

type HelmExternalDB struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	User         string `json:"user" yaml:"user"`
	DatabaseName string `json:"databaseName" yaml:"databaseName"`
}

type HelmIngress struct {
	Enabled   bool           `json:"enabled" yaml:"enabled"`
	ClassName string         `json:"className" yaml:"className"`
	Host      string         `json:"host" yaml:"host"`
	Path      string         `json:"path" yaml:"path"`
	PathType  string         `json:"pathType" yaml:"pathType"`
	TLS       HelmIngressTLS `json:"tls" yaml:"tls"`
}

type HelmIngressTLS struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	SecretName string `json:"secretName" yaml:"secretName"`
}

type HelmResources struct {
	Requests HelmResourceList `json:"requests" yaml:"requests"`
	Limits   HelmResourceList `json:"limits" yaml:"limits"`
}

type HelmResourceList struct {
	CPU    string `json:"cpu" yaml:"cpu"`
	Memory string `json:"memory" yaml:"memory"`
}
