package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

const environmentNotFound = "环境不存在"

// ListEnvironments GET /environments?search=&status=&customer=
func (h *Handler) ListEnvironments(c *gin.Context) {
	customerID, ok := queryID(c, "customer")
	if !ok {
		return
	}

	envs, err := h.environments.List(c.Request.Context(), models.EnvironmentFilter{
		Search:     c.Query("search"),
		Status:     c.Query("status"),
		CustomerID: customerID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(envs, models.NewEnvironmentResponse))
}

// CreateEnvironment POST /environments
func (h *Handler) CreateEnvironment(c *gin.Context) {
	req := models.NewEnvironmentRequest()
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	env, err := h.environments.Create(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewEnvironmentResponse(env))
}

func (h *Handler) GetEnvironment(c *gin.Context) {
	id, ok := pathID(c, environmentNotFound)
	if !ok {
		return
	}
	env, err := h.environments.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewEnvironmentResponse(env))
}

// UpdateEnvironment PUT replaces the configuration; PATCH only the fields
// sent. Helm values are regenerated either way.
func (h *Handler) UpdateEnvironment(c *gin.Context) {
	id, ok := pathID(c, environmentNotFound)
	if !ok {
		return
	}

	req := models.NewEnvironmentRequest()
	if c.Request.Method == http.MethodPatch {
		existing, err := h.environments.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		req = models.EnvironmentRequestFrom(existing)
	}
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	env, err := h.environments.Update(c.Request.Context(), id, &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewEnvironmentResponse(env))
}

func (h *Handler) DeleteEnvironment(c *gin.Context) {
	id, ok := pathID(c, environmentNotFound)
	if !ok {
		return
	}
	if err := h.environments.Delete(c.Request.Context(), id, requestMeta(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartEnvironment POST /environments/:id/start
func (h *Handler) StartEnvironment(c *gin.Context) {
	id, ok := pathID(c, environmentNotFound)
	if !ok {
		return
	}
	env, err := h.environments.Start(c.Request.Context(), id, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "环境启动成功", "status": env.Status})
}

// StopEnvironment POST /environments/:id/stop
func (h *Handler) StopEnvironment(c *gin.Context) {
	id, ok := pathID(c, environmentNotFound)
	if !ok {
		return
	}
	env, err := h.environments.Stop(c.Request.Context(), id, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "环境停止成功", "status": env.Status})
}

// HealthCheckEnvironment POST /environments/:id/health_check
func (h *Handler) HealthCheckEnvironment(c *gin.Context) {
	id, ok := pathID(c, environmentNotFound)
	if !ok {
		return
	}
	res, err := h.environments.HealthCheck(c.Request.Context(), id, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// EnvironmentHelmValues GET /environments/:id/helm-values?format=json|yaml
func (h *Handler) EnvironmentHelmValues(c *gin.Context) {
	id, ok := pathID(c, environmentNotFound)
	if !ok {
		return
	}
	out, contentType, err := h.environments.HelmValues(c.Request.Context(), id, c.DefaultQuery("format", "json"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, out)
}

func (h *Handler) EnvironmentStats(c *gin.Context) {
	stats, err := h.environments.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListEnvironmentLogs GET /environment-logs?environment=&log_type=
func (h *Handler) ListEnvironmentLogs(c *gin.Context) {
	envID, ok := queryID(c, "environment")
	if !ok {
		return
	}
	logs, err := h.environments.ListLogs(c.Request.Context(), models.EnvironmentLogFilter{
		EnvironmentID: envID,
		LogType:       c.Query("log_type"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(logs, models.NewEnvironmentLogResponse))
}
