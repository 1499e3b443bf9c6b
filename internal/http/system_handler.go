package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

func (h *Handler) SystemSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.system.Settings())
}

func (h *Handler) SystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.system.Info(c.Request.Context()))
}

// CleanLogs POST /system/clean-logs {"days": N}; days defaults to the
// configured retention.
func (h *Handler) CleanLogs(c *gin.Context) {
	req := models.CleanLogsRequest{Days: h.logRetentionDays}
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	resp, err := h.system.CleanLogs(c.Request.Context(), req.Days, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
