package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError 表示服务端返回的非 2xx 响应，兼容 error 与 detail/code 两种返回体。
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("http 状态码: %d", e.Status)
	}
}

// Unauthorized 判断是否为访问令牌被拒绝。
func (e *APIError) Unauthorized() bool {
	return e != nil && e.Status == http.StatusUnauthorized
}

// ServerError 判断是否为服务端内部错误。
func (e *APIError) ServerError() bool {
	return e != nil && e.Status >= http.StatusInternalServerError
}

// NetworkError 包装底层网络错误，区分传输失败与服务端响应。
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("网络错误: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError 表示响应解码失败。
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("解码失败(status=%d): %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// errEnvelope 匹配服务端的两种错误返回体：
// 业务接口返回 {"error": "..."}，令牌接口返回 {"detail": "...", "code": "..."}。
type errEnvelope struct {
	ErrorMsg string `json:"error"`
	Detail   string `json:"detail"`
	Code     string `json:"code"`
}

const maxErrBodySize = 1 << 20

func decodeAPIError(resp *http.Response) *APIError {
	ae := statusToErr(resp.StatusCode)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil || len(body) == 0 {
		return ae
	}
	var env errEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ae
	}
	if env.ErrorMsg != "" {
		ae.Message = env.ErrorMsg
	} else if env.Detail != "" {
		ae.Message = env.Detail
	}
	if env.Code != "" {
		ae.Code = env.Code
	}
	return ae
}

func statusToErr(status int) *APIError {
	return &APIError{
		Status:  status,
		Message: http.StatusText(status),
	}
}
