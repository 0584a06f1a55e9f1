package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"core_bank/internal/domain"
)

// ErrorResponse is the error envelope of every failed request.
type ErrorResponse struct {
	Error string `json:"error"` // Caller-facing message
	Code  string `json:"code"`  // Stable machine-readable code
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError renders err in the error envelope and records it on the
// context for the access log. Internal errors never expose their cause.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind == domain.KindInternal {
		de = domain.Internal(err)
	}
	c.AbortWithStatusJSON(StatusOf(de), ErrorResponse{Error: de.Message, Code: de.Code})
}
