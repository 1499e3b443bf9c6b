package models

import "time"

// Activity actions recorded for operators
const (
	ActivityLogin             = "login"
	ActivityLogout            = "logout"
	ActivityCreateCustomer    = "create_customer"
	ActivityUpdateCustomer    = "update_customer"
	ActivityDeleteCustomer    = "delete_customer"
	ActivityDeployEnvironment = "deploy_environment"
	ActivityUpdateEnvironment = "update_environment"
	ActivityDeleteEnvironment = "delete_environment"
	ActivityStartEnvironment  = "start_environment"
	ActivityStopEnvironment   = "stop_environment"
	ActivityGenerateLicense   = "generate_license"
	ActivityRevokeLicense     = "revoke_license"
	ActivityCreateUser        = "create_user"
	ActivityUpdateProfile     = "update_profile"
	ActivityCleanLogs         = "clean_logs"
)

// ActivityLog is the append-only audit trail of operator actions
type ActivityLog struct {
	ID          string
	UserID      string
	Action      string
	TargetType  string
	TargetID    string
	Description string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time

	// joined
	Username string
}

type ActivityLogFilter struct {
	UserID string
	Action string
}

// RequestMeta identifies who is acting and from where. Services stamp it
// onto the audit records they write.
type RequestMeta struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// ActorID returns a pointer suitable for nullable created_by columns.
func (m RequestMeta) ActorID() *string {
	if m.UserID == "" {
		return nil
	}
	id := m.UserID
	return &id
}
