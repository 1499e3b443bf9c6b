package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

const userNotFound = "用户不存在"

// Login POST /login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	resp, err := h.users.Login(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout POST /logout. Tokens are stateless; this only records the event.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), requestMeta(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// CurrentUser GET /users/me
func (h *Handler) CurrentUser(c *gin.Context) {
	u := currentUser(c)
	if u == nil {
		writeError(c, apperrors.NewUnauthorizedError("user not authenticated"))
		return
	}
	c.JSON(http.StatusOK, models.NewCurrentUserResponse(u))
}

// ListUsers GET /users?search=&role=
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), models.UserFilter{
		Search: c.Query("search"),
		Role:   c.Query("role"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(users, models.NewUserResponse))
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c, userNotFound)
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(u))
}

// CreateUser POST /users
func (h *Handler) CreateUser(c *gin.Context) {
	req := models.NewUserCreateRequest()
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	u, err := h.users.Create(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewUserResponse(u))
}

// UpdateUserProfile POST /users/:id/profile. Fields not sent keep their
// current value.
func (h *Handler) UpdateUserProfile(c *gin.Context) {
	id, ok := pathID(c, userNotFound)
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		writeError(c, apperrors.NewUnauthorizedError("user not authenticated"))
		return
	}

	target, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	req := models.ProfileRequestFrom(target.Profile)
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	u, err := h.users.UpdateProfile(c.Request.Context(), actor, id, &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewUserResponse(u))
}

// ListActivityLogs GET /user-activity-logs?user=&action=
func (h *Handler) ListActivityLogs(c *gin.Context) {
	userID, ok := queryID(c, "user")
	if !ok {
		return
	}
	logs, err := h.users.ListActivity(c.Request.Context(), models.ActivityLogFilter{
		UserID: userID,
		Action: c.Query("action"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(logs, models.NewActivityLogResponse))
}
