package pulse

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/socialpulse/desktop/core/httpclient"
)

const (
	ErrCodeUnknown = iota
	ErrCodeUnauthorized
	ErrCodeInvalidRequest
	ErrCodeNoActiveDataset
	ErrCodeDatasetNotFound
	ErrCodeUploadRejected
	ErrCodeRateLimited
	ErrCodeServer
)

// PulseError 表示统一的业务错误。
type PulseError struct {
	Code       int
	Message    string
	HTTPStatus int
	Raw        error
}

func (e *PulseError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Code != 0 && e.Message != "":
		return fmt.Sprintf("pulse: [%d] %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Code != 0:
		return fmt.Sprintf("pulse: 错误码=%d", e.Code)
	case e.Raw != nil:
		return e.Raw.Error()
	default:
		return "pulse: 未知错误"
	}
}

// Unwrap 允许 errors.Is/As 解构底层错误。
func (e *PulseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Raw
}

// NewPulseError 创建基本 PulseError。
func NewPulseError(code int, message string) *PulseError {
	return &PulseError{Code: code, Message: message}
}

// WrapPulseError 在保留底层错误的同时生成 PulseError。
func WrapPulseError(code int, message string, raw error) *PulseError {
	status := 0
	var ae *httpclient.APIError
	if errors.As(raw, &ae) {
		status = ae.Status
	}
	if message == "" && raw != nil {
		message = raw.Error()
	}
	return &PulseError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Raw:        raw,
	}
}

func mapAPIError(ae *httpclient.APIError) int {
	if ae == nil {
		return ErrCodeUnknown
	}
	lower := strings.ToLower(ae.Message)
	switch {
	case strings.Contains(lower, "no active dataset"):
		return ErrCodeNoActiveDataset
	case strings.Contains(lower, "dataset not found"):
		return ErrCodeDatasetNotFound
	}

	switch ae.Status {
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case http.StatusNotFound:
		return ErrCodeDatasetNotFound
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	}
	if ae.ServerError() {
		return ErrCodeServer
	}
	return ErrCodeUnknown
}

// toPulseError 将 httpclient.APIError 转换为 PulseError，未命中时返回原始错误。
func toPulseError(err error) error {
	if err == nil {
		return nil
	}
	var pe *PulseError
	if errors.As(err, &pe) {
		return pe
	}
	var ae *httpclient.APIError
	if errors.As(err, &ae) {
		msg := ae.Message
		if msg == "" {
			msg = ae.Code
		}
		if msg == "" && ae.Status > 0 {
			msg = http.StatusText(ae.Status)
		}
		return WrapPulseError(mapAPIError(ae), msg, err)
	}
	return err
}
