package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	"github.com/smallbiznis/chatdesk/internal/authorization"
	cascadedomain "github.com/smallbiznis/chatdesk/internal/cascade/domain"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	gatewaydomain "github.com/smallbiznis/chatdesk/internal/gateway/domain"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	pipelinedomain "github.com/smallbiznis/chatdesk/internal/pipeline/domain"
	routerdomain "github.com/smallbiznis/chatdesk/internal/router/domain"
	unreaddomain "github.com/smallbiznis/chatdesk/internal/unread/domain"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"gorm.io/gorm"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

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

	if field, code := validationErrorField(err); field != "" {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: field, Code: code, Message: "invalid value"},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, routerdomain.ErrInvalidTenantContext):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, gatewaydomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "rate limited"}
	case isCascadeError(err):
		return http.StatusInternalServerError, errorPayload{Type: "cascade_incomplete", Message: "account deletion did not complete"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

// classifyErrorForLog feeds the request logger; it never sees client payloads.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = map[error]string{
	ErrInvalidRequest:                      "request",
	pagination.ErrInvalidCursor:            "page_token",
	conversationdomain.ErrInvalidStatus:    "status",
	conversationdomain.ErrInvalidPageToken: "page_token",
	conversationdomain.ErrInvalidContact:   "conversation_reference",
	messagedomain.ErrBlankContent:          "content",
	messagedomain.ErrMissingMedia:          "media_url",
	messagedomain.ErrInvalidPayload:        "payload",
	messagedomain.ErrInvalidStatus:         "status",
	messagedomain.ErrInvalidType:           "type",
	messagedomain.ErrInvalidSender:         "sender_type",
	messagedomain.ErrInvalidDirection:      "direction",
	messagedomain.ErrInvalidQuery:          "query",
	messagedomain.ErrInvalidPageToken:      "page_token",
	messagedomain.ErrInvalidReactor:        "reactor",
	pipelinedomain.ErrUnsupportedEvent:     "type",
	pipelinedomain.ErrMissingReference:     "conversation_reference",
	pipelinedomain.ErrMissingMessageID:     "external_message_id",
}

// validationErrorField reports the offending field and the sentinel's code.
func validationErrorField(err error) (string, string) {
	for sentinel, field := range validationErrors {
		if errors.Is(err, sentinel) {
			return field, sentinel.Error()
		}
	}
	return "", ""
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, conversationdomain.ErrNotFound),
		errors.Is(err, messagedomain.ErrNotFound),
		errors.Is(err, messagedomain.ErrConversationNotFound),
		errors.Is(err, unreaddomain.ErrConversationNotFound),
		errors.Is(err, cascadedomain.ErrAgentNotFound),
		errors.Is(err, cascadedomain.ErrInboxNotFound),
		errors.Is(err, cascadedomain.ErrTeamNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isCascadeError(err error) bool {
	var stepErr *cascadedomain.StepError
	return errors.As(err, &stepErr)
}
