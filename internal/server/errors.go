package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	"github.com/smallbiznis/carebridge/internal/errs"
	organizationdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errs.ErrUnauthenticated
	ErrInvalidRequest = errors.New("invalid_request")
)

var kindStatus = map[errs.Kind]int{
	errs.KindUnauthenticated:         http.StatusUnauthorized,
	errs.KindNotFound:                http.StatusNotFound,
	errs.KindAlreadyExists:           http.StatusConflict,
	errs.KindAlreadyPending:          http.StatusConflict,
	errs.KindAlreadyUsed:             http.StatusGone,
	errs.KindExpired:                 http.StatusGone,
	errs.KindEmailMismatch:           http.StatusForbidden,
	errs.KindInsufficientPermissions: http.StatusForbidden,
	errs.KindInvalidArgument:         http.StatusBadRequest,
	errs.KindInvalidCode:             http.StatusBadRequest,
	errs.KindRateLimited:             http.StatusTooManyRequests,
	errs.KindTooManyAttempts:         http.StatusTooManyRequests,
	errs.KindInvariantViolation:      http.StatusUnprocessableEntity,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if kind := errs.KindOf(err); kind != "" {
		status, ok := kindStatus[kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, errorPayload{Type: string(kind), Message: err.Error()}
	}

	switch {
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorPayload{
			Type:    string(errs.KindUnauthenticated),
			Message: "invalid email or password",
		}
	case errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, authdomain.ErrSessionNotFound):
		return http.StatusUnauthorized, errorPayload{
			Type:    string(errs.KindUnauthenticated),
			Message: "authentication required",
		}
	case errors.Is(err, authdomain.ErrWeakPassword):
		return http.StatusBadRequest, errorPayload{
			Type:    string(errs.KindInvalidArgument),
			Message: err.Error(),
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, auditdomain.ErrInvalidOrganization),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return http.StatusBadRequest, errorPayload{
			Type:    string(errs.KindInvalidArgument),
			Message: err.Error(),
		}
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, errorPayload{
			Type:    string(errs.KindAlreadyExists),
			Message: "an account with this email already exists",
		}
	case errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, profiledomain.ErrProfileNotFound),
		errors.Is(err, organizationdomain.ErrOrganizationNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    string(errs.KindNotFound),
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger without leaking reasons.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal_error", "internal_error"
	}
	return "client_error", payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}
