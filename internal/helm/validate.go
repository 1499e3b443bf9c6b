package helm

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

// ValidReleaseName accepts letters, digits and hyphens, with at least one
// letter or digit.
func ValidReleaseName(name string) bool {
	alnum := false
	for _, r := range name {
		switch {
		case r == '-':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alnum = true
		default:
			return false
		}
	}
	return alnum
}

// Validate checks the cross-field rules of a spec. All offending fields are
// reported together in a field validation error.
func Validate(spec *models.EnvironmentSpec) error {
	fields := map[string]string{}

	if !ValidReleaseName(spec.ReleaseName) {
		fields["release_name"] = "Release名称只能包含字母、数字和横线"
	}

	for i, addon := range spec.GitCustomerAddons {
		var missing []string
		if strings.TrimSpace(addon.Name) == "" {
			missing = append(missing, "name")
		}
		if strings.TrimSpace(addon.Repository) == "" {
			missing = append(missing, "repository")
		}
		if strings.TrimSpace(addon.Ref) == "" {
			missing = append(missing, "ref")
		}
		if len(missing) > 0 {
			key := fmt.Sprintf("git_customer_addons[%d]", i)
			fields[key] = "Git仓库配置缺少必需字段: " + strings.Join(missing, ", ")
		}
	}

	if spec.ExternalDBEnabled {
		required := map[string]string{
			"external_db_host": spec.ExternalDBHost,
			"external_db_name": spec.ExternalDBName,
			"external_db_user": spec.ExternalDBUser,
		}
		for name, value := range required {
			if strings.TrimSpace(value) == "" {
				fields[name] = fmt.Sprintf("启用外部数据库时，%s字段不能为空", name)
			}
		}
	}

	if spec.TLSEnabled && spec.IngressEnabled && strings.TrimSpace(spec.TLSSecretName) == "" {
		fields["tls_secret_name"] = "启用TLS时必须提供证书Secret名称"
	}

	if len(fields) == 0 {
		return nil
	}
	return apperrors.NewFieldValidationError("invalid environment configuration", fields)
}
