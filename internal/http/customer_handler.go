package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

const customerNotFound = "客户不存在"

// ListCustomers GET /customers?search=&status=&deployment_type=
func (h *Handler) ListCustomers(c *gin.Context) {
	customers, err := h.customers.List(c.Request.Context(), models.CustomerFilter{
		Search:         c.Query("search"),
		Status:         c.Query("status"),
		DeploymentType: c.Query("deployment_type"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(customers, models.NewCustomerResponse))
}

// CreateCustomer POST /customers
func (h *Handler) CreateCustomer(c *gin.Context) {
	req := models.NewCustomerRequest()
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	customer, err := h.customers.Create(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewCustomerResponse(customer))
}

// GetCustomer GET /customers/:id, with the customer's licenses
func (h *Handler) GetCustomer(c *gin.Context) {
	id, ok := pathID(c, customerNotFound)
	if !ok {
		return
	}

	customer, licenses, err := h.customers.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := models.NewCustomerResponse(customer)
	resp.Licenses = listResponse(licenses, h.licenses.Response)
	c.JSON(http.StatusOK, resp)
}

// UpdateCustomer PUT replaces the customer; PATCH only the fields sent.
func (h *Handler) UpdateCustomer(c *gin.Context) {
	id, ok := pathID(c, customerNotFound)
	if !ok {
		return
	}

	req := models.NewCustomerRequest()
	if c.Request.Method == http.MethodPatch {
		existing, _, err := h.customers.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		req = models.CustomerRequestFrom(existing)
	}
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	customer, err := h.customers.Update(c.Request.Context(), id, &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewCustomerResponse(customer))
}

// DeleteCustomer DELETE /customers/:id
func (h *Handler) DeleteCustomer(c *gin.Context) {
	id, ok := pathID(c, customerNotFound)
	if !ok {
		return
	}
	if err := h.customers.Delete(c.Request.Context(), id, requestMeta(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CustomerStats GET /customers/stats
func (h *Handler) CustomerStats(c *gin.Context) {
	stats, err := h.customers.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GenerateCustomerLicense POST /customers/:id/generate_license {"expire_days": N}
func (h *Handler) GenerateCustomerLicense(c *gin.Context) {
	id, ok := pathID(c, customerNotFound)
	if !ok {
		return
	}
	body := models.NewCustomerLicenseRequest()
	if err := bindJSON(c, &body); err != nil {
		writeError(c, err)
		return
	}

	req := body.GenerateRequest(id, time.Now())
	l, err := h.licenses.Generate(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.licenses.Response(l))
}
