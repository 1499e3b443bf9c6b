package http

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/helm"
)

var registerOnce sync.Once

// RegisterValidators installs the custom tags on gin's validator and makes
// it report json field names. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		if err = v.RegisterValidation("releasename", func(fl validator.FieldLevel) bool {
			return helm.ValidReleaseName(fl.Field().String())
		}); err != nil {
			err = fmt.Errorf("register releasename: %w", err)
			return
		}
		if err = v.RegisterValidation("customerid", func(fl validator.FieldLevel) bool {
			return validCustomerID(fl.Field().String())
		}); err != nil {
			err = fmt.Errorf("register customerid: %w", err)
		}
	})
	return err
}

// validCustomerID accepts letters, digits, '-' and '_'.
func validCustomerID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '-' && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func fieldMessages(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "该字段是必填项"
	case "max":
		return fmt.Sprintf("长度或数值不能超过%s", fe.Param())
	case "min":
		return fmt.Sprintf("长度或数值不能小于%s", fe.Param())
	case "email":
		return "请输入有效的邮箱地址"
	case "oneof":
		return fmt.Sprintf("必须是以下值之一: %s", fe.Param())
	case "uuid":
		return "无效的ID"
	case "ip":
		return "请输入有效的IP地址"
	case "datetime":
		return "日期格式应为YYYY-MM-DD"
	case "gtfield":
		return "必须晚于开始时间"
	case "releasename":
		return "Release名称只能包含字母、数字和横线"
	case "customerid":
		return "客户ID只能包含字母、数字、横线和下划线"
	default:
		return fmt.Sprintf("校验失败 (%s)", fe.Tag())
	}
}
