package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind 失败分类
// ErrorKind classifies a failed send.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnavailable
	KindAuth
	KindQuota
)

// ServiceError 携带用户可读信息的分类错误
// ServiceError is a classified failure with a human-readable message. Every
// failure a client returns crosses its boundary as one of these; callers
// never see a raw transport or decode error.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

// Classify 按优先级归类底层错误
// Classify maps an underlying failure to a ServiceError. Priority order:
// connectivity, authorization, quota, then a generic message carrying
// whatever detail is available.
func Classify(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	detail := err.Error()
	lower := strings.ToLower(detail)

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "network is unreachable"):
		return &ServiceError{
			Kind:    KindUnavailable,
			Message: "cannot reach the model service, check your connection",
			Err:     err,
		}
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "status=401"):
		return &ServiceError{
			Kind:    KindAuth,
			Message: "authorization failed, check your API key",
			Err:     err,
		}
	case strings.Contains(lower, "quota"):
		return &ServiceError{
			Kind:    KindQuota,
			Message: "quota exceeded for this API key",
			Err:     err,
		}
	default:
		return &ServiceError{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("request failed: %s", detail),
			Err:     err,
		}
	}
}

// classifyStatus 根据 HTTP 状态码和响应体归类
// classifyStatus classifies a non-success HTTP response, folding in any
// server-provided error detail.
func classifyStatus(status int, body string) *ServiceError {
	body = strings.TrimSpace(body)
	lower := strings.ToLower(body)
	switch {
	case status == 401 || status == 403 || strings.Contains(lower, "unauthorized"):
		return &ServiceError{
			Kind:    KindAuth,
			Message: "authorization failed, check your API key",
			Err:     fmt.Errorf("chat request failed: status=%d body=%s", status, body),
		}
	case status == 429 || strings.Contains(lower, "quota"):
		return &ServiceError{
			Kind:    KindQuota,
			Message: "quota exceeded for this API key",
			Err:     fmt.Errorf("chat request failed: status=%d body=%s", status, body),
		}
	case status >= 502 && status <= 504:
		return &ServiceError{
			Kind:    KindUnavailable,
			Message: "cannot reach the model service, check your connection",
			Err:     fmt.Errorf("chat request failed: status=%d body=%s", status, body),
		}
	default:
		msg := fmt.Sprintf("request failed with status %d", status)
		if body != "" {
			msg += ": " + body
		}
		return &ServiceError{
			Kind:    KindUnknown,
			Message: msg,
			Err:     fmt.Errorf("chat request failed: status=%d body=%s", status, body),
		}
	}
}
