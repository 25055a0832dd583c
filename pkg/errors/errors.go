package errors

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)，与HTTP状态码一一对应
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
)

var defaultMessages = map[int]string{
	CodeSuccess:      "success",
	CodeInvalidParam: "参数错误",
	CodeUnauthorized: "请先登录",
	CodeForbidden:    "权限不足",
	CodeNotFound:     "资源不存在",
	CodeConflict:     "资源冲突",
	CodeServerError:  "服务器内部错误",
}

// DefaultMessage 返回错误码的默认提示，未知错误码按服务器错误处理
func DefaultMessage(code int) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return defaultMessages[CodeServerError]
}
