package http

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
)

// writeError renders err as {"error": {...}} and aborts the chain.
// Anything that is not an AppError is a server fault.
func writeError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		logger.WithComponent("http").Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		appErr = apperrors.NewInternalError("服务器内部错误")
	}
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr})
}

// bindJSON decodes the body over obj and validates the result. An empty
// body is not an error; obj keeps the values it was prepared with.
func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		if !errors.Is(err, io.EOF) {
			return requestError(err)
		}
		if err := binding.Validator.ValidateStruct(obj); err != nil {
			return requestError(err)
		}
	}
	return nil
}

// requestError converts binding failures into a field validation error.
func requestError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.NewFieldValidationError("请求参数无效", fieldMessages(verrs))
	}
	return apperrors.NewValidationError("请求格式错误", err.Error())
}
