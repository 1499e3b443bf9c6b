package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/config"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/policy"
)

// Limiters holds one limiter per rate-limited endpoint group.
type Limiters struct {
	Login    Limiter
	Validate Limiter
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	dbAdmin *DBAdminHandler
	policy  Allower
	limits  Limiters
	cfg     *config.Config
	srv     *http.Server
}

func NewServer(cfg *config.Config, handler *Handler, dbAdmin *DBAdminHandler, ev Allower, limits Limiters) (*Server, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger.WithComponent("http")))

	s := &Server{
		router:  router,
		handler: handler,
		dbAdmin: dbAdmin,
		policy:  ev,
		limits:  limits,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) allow(resource, action string) gin.HandlerFunc {
	return RequirePermission(s.policy, resource, action)
}

func (s *Server) setupRoutes() {
	h := s.handler

	api := s.router.Group("/api")
	api.Use(MaintenanceMiddleware(s.cfg.Site.MaintenanceMode, "/api/login"))

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "odoo-admin-service"})
	})
	api.POST("/login", RateLimitMiddleware(s.limits.Login), h.Login)

	// 已部署实例通过内部密钥校验授权码
	internal := api.Group("/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.POST("/licenses/validate", RateLimitMiddleware(s.limits.Validate), h.ValidateLicense)
	}

	auth := api.Group("")
	auth.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey, h.users))
	{
		auth.POST("/logout", h.Logout)

		// Customers
		auth.GET("/customers", h.ListCustomers)
		auth.GET("/customers/stats", h.CustomerStats)
		auth.POST("/customers", s.allow(policy.ResourceCustomer, policy.ActionCreate), h.CreateCustomer)
		auth.GET("/customers/:id", h.GetCustomer)
		auth.PUT("/customers/:id", s.allow(policy.ResourceCustomer, policy.ActionUpdate), h.UpdateCustomer)
		auth.PATCH("/customers/:id", s.allow(policy.ResourceCustomer, policy.ActionUpdate), h.UpdateCustomer)
		auth.DELETE("/customers/:id", s.allow(policy.ResourceCustomer, policy.ActionDelete), h.DeleteCustomer)
		auth.POST("/customers/:id/generate_license", s.allow(policy.ResourceLicense, policy.ActionGenerate), h.GenerateCustomerLicense)

		// Environments
		auth.GET("/environments", h.ListEnvironments)
		auth.GET("/environments/stats", h.EnvironmentStats)
		auth.POST("/environments", s.allow(policy.ResourceEnvironment, policy.ActionCreate), h.CreateEnvironment)
		auth.GET("/environments/:id", h.GetEnvironment)
		auth.PUT("/environments/:id", s.allow(policy.ResourceEnvironment, policy.ActionUpdate), h.UpdateEnvironment)
		auth.PATCH("/environments/:id", s.allow(policy.ResourceEnvironment, policy.ActionUpdate), h.UpdateEnvironment)
		auth.DELETE("/environments/:id", s.allow(policy.ResourceEnvironment, policy.ActionDelete), h.DeleteEnvironment)
		auth.POST("/environments/:id/start", s.allow(policy.ResourceEnvironment, policy.ActionStart), h.StartEnvironment)
		auth.POST("/environments/:id/stop", s.allow(policy.ResourceEnvironment, policy.ActionStop), h.StopEnvironment)
		auth.POST("/environments/:id/health_check", s.allow(policy.ResourceEnvironment, policy.ActionHealthCheck), h.HealthCheckEnvironment)
		auth.GET("/environments/:id/helm-values", h.EnvironmentHelmValues)
		auth.GET("/environment-logs", s.allow(policy.ResourceLogs, policy.ActionView), h.ListEnvironmentLogs)

		// Licenses
		auth.GET("/licenses", h.ListLicenses)
		auth.GET("/licenses/stats", h.LicenseStats)
		auth.POST("/licenses", s.allow(policy.ResourceLicense, policy.ActionGenerate), h.GenerateLicense)
		auth.POST("/licenses/validate", RateLimitMiddleware(s.limits.Validate), h.ValidateLicense)
		auth.GET("/licenses/:id", h.GetLicense)
		auth.DELETE("/licenses/:id", s.allow(policy.ResourceLicense, policy.ActionDelete), h.DeleteLicense)
		auth.POST("/licenses/:id/activate", s.allow(policy.ResourceLicense, policy.ActionActivate), h.ActivateLicense)
		auth.POST("/licenses/:id/revoke", s.allow(policy.ResourceLicense, policy.ActionRevoke), h.RevokeLicense)
		auth.GET("/license-usage", s.allow(policy.ResourceLogs, policy.ActionView), h.ListLicenseUsage)
		auth.GET("/license-logs", s.allow(policy.ResourceLogs, policy.ActionView), h.ListLicenseLogs)

		// Users. UpdateUserProfile checks admin-or-self itself.
		auth.GET("/users", h.ListUsers)
		auth.GET("/users/me", h.CurrentUser)
		auth.POST("/users", s.allow(policy.ResourceUser, policy.ActionCreate), h.CreateUser)
		auth.GET("/users/:id", h.GetUser)
		auth.POST("/users/:id/profile", h.UpdateUserProfile)
		auth.GET("/user-activity-logs", s.allow(policy.ResourceLogs, policy.ActionView), h.ListActivityLogs)

		// System
		auth.GET("/system/settings", h.SystemSettings)
		auth.GET("/system/info", h.SystemInfo)
		auth.POST("/system/clean-logs", s.allow(policy.ResourceSystem, policy.ActionCleanLogs), h.CleanLogs)
	}

	if s.dbAdmin != nil {
		dbAdmin := auth.Group("/admin/db")
		dbAdmin.Use(s.allow(policy.ResourceSystem, policy.ActionBrowseDB))
		{
			dbAdmin.GET("/tables", s.dbAdmin.ListTables)
			dbAdmin.GET("/tables/:table/schema", s.dbAdmin.GetTableSchema)
			dbAdmin.GET("/tables/:table/rows", s.dbAdmin.QueryRows)
		}
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
