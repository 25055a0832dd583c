package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"newsportal/internal/services"
	"newsportal/pkg/logger"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidatorTagNames 校验错误中使用json字段名
func RegisterValidatorTagNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}

// respondError 将服务层错误映射为响应，未知错误记录日志并返回 fallback
func respondError(c *gin.Context, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		response.BadRequest(c, ve.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		response.Unauthorized(c, "请先登录")
	case errors.Is(err, services.ErrDenied):
		response.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrConflict):
		response.Conflict(c, err.Error())
	default:
		logger.GetLogger().WithError(err).WithField("path", c.FullPath()).Error(fallback)
		response.ServerError(c, fallback)
	}
}

// bindError 将绑定错误转换为可读的参数错误
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(c, "请求参数错误")
		return
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	response.BadRequest(c, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s 不能为空", field)
	case "min":
		return fmt.Sprintf("%s 长度不能少于 %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s 长度不能超过 %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s 格式不正确", field)
	case "oneof":
		return fmt.Sprintf("%s 只能是 %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s 校验失败(%s)", field, fe.Tag())
	}
}

// parseID 解析路径中的数字ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}
