package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/license"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/service"
)

const licenseNotFound = "授权码不存在"

// ListLicenses GET /licenses?search=&status=&customer=&license_type=
func (h *Handler) ListLicenses(c *gin.Context) {
	customerID, ok := queryID(c, "customer")
	if !ok {
		return
	}

	licenses, err := h.licenses.List(c.Request.Context(), models.LicenseFilter{
		Search:      c.Query("search"),
		Status:      c.Query("status"),
		CustomerID:  customerID,
		LicenseType: c.Query("license_type"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(licenses, h.licenses.Response))
}

// GenerateLicense POST /licenses
func (h *Handler) GenerateLicense(c *gin.Context) {
	req := models.NewLicenseGenerateRequest()
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	l, err := h.licenses.Generate(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.licenses.Response(l))
}

// GetLicense GET /licenses/:id with usage records and logs
func (h *Handler) GetLicense(c *gin.Context) {
	id, ok := pathID(c, licenseNotFound)
	if !ok {
		return
	}

	d, err := h.licenses.Detail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := h.licenses.Response(d.License)
	resp.Usage = listResponse(d.Usage, models.NewLicenseUsageResponse)
	resp.Logs = listResponse(d.Logs, models.NewLicenseLogResponse)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteLicense(c *gin.Context) {
	id, ok := pathID(c, licenseNotFound)
	if !ok {
		return
	}
	if err := h.licenses.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateLicense POST /licenses/:id/activate
func (h *Handler) ActivateLicense(c *gin.Context) {
	id, ok := pathID(c, licenseNotFound)
	if !ok {
		return
	}

	var req models.LicenseActivateRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	l, err := h.licenses.Activate(c.Request.Context(), id, license.ActivateParams{
		HardwareFingerprint: req.HardwareFingerprint,
		DeploymentDomain:    req.DeploymentDomain,
		DeploymentIP:        req.DeploymentIP,
	}, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "授权码激活成功", "license": h.licenses.Response(l)})
}

// RevokeLicense POST /licenses/:id/revoke
func (h *Handler) RevokeLicense(c *gin.Context) {
	id, ok := pathID(c, licenseNotFound)
	if !ok {
		return
	}
	l, err := h.licenses.Revoke(c.Request.Context(), id, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "授权码已撤销", "license": h.licenses.Response(l)})
}

// ValidateLicense is the check-in endpoint of deployed instances. It is
// mounted both behind JWT and behind the internal secret.
func (h *Handler) ValidateLicense(c *gin.Context) {
	var req models.LicenseValidateRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	meta := requestMeta(c)
	res, err := h.licenses.Validate(c.Request.Context(), req.LicenseKey, service.UsageSnapshot{
		CurrentUsers:     req.CurrentUsers,
		CurrentCompanies: req.CurrentCompanies,
		CurrentStorageGB: req.CurrentStorageGB,
	}, meta)
	if err != nil {
		writeError(c, err)
		return
	}
	if !res.Found {
		c.JSON(http.StatusNotFound, models.LicenseValidateMiss{Valid: false, Error: licenseNotFound})
		return
	}

	l := res.License
	modules := l.ModulesEnabled
	if modules == nil {
		modules = []string{}
	}
	c.JSON(http.StatusOK, models.LicenseValidateResponse{
		Valid:          res.Valid,
		LicenseType:    l.LicenseType,
		MaxUsers:       l.MaxUsers,
		MaxCompanies:   l.MaxCompanies,
		MaxStorageGB:   l.MaxStorageGB,
		ModulesEnabled: modules,
		ValidUntil:     l.ValidUntil,
		DaysRemaining:  res.DaysRemaining,
	})
}

func (h *Handler) LicenseStats(c *gin.Context) {
	stats, err := h.licenses.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListLicenseUsage GET /license-usage?license=
func (h *Handler) ListLicenseUsage(c *gin.Context) {
	licenseID, ok := queryID(c, "license")
	if !ok {
		return
	}
	usage, err := h.licenses.ListUsage(c.Request.Context(), licenseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(usage, models.NewLicenseUsageResponse))
}

// ListLicenseLogs GET /license-logs?license=&action=
func (h *Handler) ListLicenseLogs(c *gin.Context) {
	licenseID, ok := queryID(c, "license")
	if !ok {
		return
	}
	logs, err := h.licenses.ListLogs(c.Request.Context(), models.LicenseLogFilter{
		LicenseID: licenseID,
		Action:    c.Query("action"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(logs, models.NewLicenseLogResponse))
}
