package helm

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

// Output formats accepted by Render
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render serialises v for a deployment executor and returns the bytes with
// their content type. Map keys are emitted in sorted order in both formats.
func Render(v *models.HelmValues, format string) ([]byte, string, error) {
	switch format {
	case "", FormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("render json: %w", err)
		}
		return b, "application/json", nil
	case FormatYAML, "yml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("render yaml: %w", err)
		}
		return b, "application/yaml", nil
	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
}
