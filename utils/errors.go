package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/agroph/portal/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Business codes carried in the envelope alongside the HTTP status.
const (
	CodeValidation   = 40000
	CodeUnauthorized = 40100
	CodeForbidden    = 40300
	CodeNotFound     = 40400
	CodeConflict     = 40900
	CodeTooLarge     = 41300
	CodeRateLimited  = 42900
	CodeInternal     = 50000
	CodeUpstream     = 50200
	CodeUnavailable  = 50300
)

// AppError is an error that knows how it should be rendered to clients.
type AppError struct {
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func ValidationError(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func AuthenticationError(msg string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func AuthorizationError(msg string) *AppError {
	return &AppError{Status: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

func NotFoundError(msg string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func ConflictError(msg string) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeConflict, Message: msg}
}

// UpstreamError reports a failed dependency call as 502.
func UpstreamError(msg string, err error) *AppError {
	return &AppError{Status: http.StatusBadGateway, Code: CodeUpstream, Message: msg, Err: err}
}

// UnavailableError reports a disabled or timed out dependency as 503.
func UnavailableError(msg string, err error) *AppError {
	return &AppError{Status: http.StatusServiceUnavailable, Code: CodeUnavailable, Message: msg, Err: err}
}

func InternalError(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error", Err: err}
}

// AsAppError classifies any error. Context cancellation and deadlines become 503.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return UnavailableError("service temporarily unavailable", err)
	}
	return InternalError(err)
}

// Fail renders err with the error envelope. Wrapped causes are only shown in development.
func Fail(ctx *gin.Context, err error) {
	appErr := AsAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		Logger.Error("request failed",
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", appErr.Status),
			zap.Error(err),
		)
	}
	resp := JSONResponse{Code: appErr.Code, Error: appErr.Message}
	if appErr.Err != nil && config.Get().IsDevelopment() {
		resp.Detail = appErr.Err.Error()
	}
	ctx.AbortWithStatusJSON(appErr.Status, resp)
}
