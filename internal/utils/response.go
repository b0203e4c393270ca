// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"openbci-service/internal/board"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}
	if err != nil {
		apiError.Details = err.Error()
	}

	c.JSON(statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// BoardErrorResponse sends an error response with the status code matching
// the board error kind
func BoardErrorResponse(c *gin.Context, message string, err error) {
	ErrorResponse(c, BoardErrorStatus(err), message, err)
}

// BoardErrorStatus maps board errors onto HTTP status codes
func BoardErrorStatus(err error) int {
	var (
		cfgErr       *board.ConfigurationError
		transportErr *board.TransportError
	)
	switch {
	case errors.Is(err, board.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, board.ErrAlreadyOpen):
		return http.StatusConflict
	case errors.Is(err, board.ErrInvalidChannel):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorResponse sends validation error response
func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	c.JSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Message: "Validation failed",
		Error: &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
		},
		Data:      gin.H{"validation_errors": errors},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusBadGateway:
		return "BOARD_TRANSPORT_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
