package http

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/policy"
)

// context keys set by JWTAuthMiddleware
const (
	ctxUserID = "userID"
	ctxUser   = "user"
	ctxActor  = "actor"
)

// Authenticator loads the account behind a verified token.
type Authenticator interface {
	Authenticate(ctx context.Context, userID string) (*models.User, error)
}

// Allower is the policy decision point consulted before mutating routes.
type Allower interface {
	Allow(actor policy.Actor, resource, action string) (bool, error)
}

// JWTAuthMiddleware validates the bearer token and loads the operator.
// 优先使用 uid 字段，其次使用 sub 字段（标准 JWT claim）
func JWTAuthMiddleware(secretKey string, users Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			writeError(c, apperrors.NewUnauthorizedError("missing authorization header"))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeError(c, apperrors.NewUnauthorizedError("invalid authorization format"))
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			writeError(c, apperrors.NewUnauthorizedError("invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, apperrors.NewUnauthorizedError("invalid token claims"))
			return
		}

		userID, _ := claims["uid"].(string)
		if userID == "" {
			userID, _ = claims["sub"].(string)
		}
		if userID == "" {
			writeError(c, apperrors.NewUnauthorizedError("invalid token claims"))
			return
		}

		u, err := users.Authenticate(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Set(ctxUserID, u.ID)
		c.Set(ctxUser, u)
		c.Set(ctxActor, policy.ActorFromUser(u))
		c.Next()
	}
}

// RequirePermission rejects the request unless the current actor may
// perform action on resource.
func RequirePermission(ev Allower, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			writeError(c, apperrors.NewUnauthorizedError("user not authenticated"))
			return
		}

		allowed, err := ev.Allow(actor, resource, action)
		if err != nil {
			writeError(c, err)
			return
		}
		if !allowed {
			slog.Warn("permission denied", "user_id", actor.UserID, "resource", resource, "action", action)
			writeError(c, apperrors.NewForbiddenError("没有权限执行此操作"))
			return
		}
		c.Next()
	}
}

// InternalAuthMiddleware validates internal service calls
// 使用常量时间比较防止时序攻击
func InternalAuthMiddleware(internalSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Internal-Secret")
		if internalSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(internalSecret)) != 1 {
			writeError(c, apperrors.NewUnauthorizedError("unauthorized internal access"))
			return
		}
		c.Next()
	}
}

// MaintenanceMiddleware answers every mutating call with 503 while the
// site is in maintenance. Login stays open so admins can get in.
func MaintenanceMiddleware(enabled bool, exempt ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}
	return func(c *gin.Context) {
		if !enabled || skip[c.FullPath()] {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			writeError(c, apperrors.NewUnavailableError("系统维护中，请稍后再试"))
		}
	}
}

// RequestLogger writes one slog line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if userID := c.GetString(ctxUserID); userID != "" {
			args = append(args, "user_id", userID)
		}

		switch {
		case status >= 500:
			log.Error("request completed", args...)
		case status >= 400:
			log.Warn("request completed", args...)
		default:
			log.Debug("request completed", args...)
		}
	}
}

func actorFrom(c *gin.Context) (policy.Actor, bool) {
	v, ok := c.Get(ctxActor)
	if !ok {
		return policy.Actor{}, false
	}
	actor, ok := v.(policy.Actor)
	return actor, ok
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// requestMeta identifies the caller for the audit trail.
func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{
		UserID:    c.GetString(ctxUserID),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
