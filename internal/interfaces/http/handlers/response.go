package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/typeworld/typeworld-go/internal/shared/errors"
)

// APIResponse is the envelope every control API endpoint answers with.
type APIResponse struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Message string     `json:"message,omitempty"`
}

// ErrorInfo carries error details, including the localization-ready
// message pair for response-code errors.
type ErrorInfo struct {
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
}

// SuccessResponse sends a successful response with custom status code.
func SuccessResponse(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// ErrorResponse sends a plain error response.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error:   &ErrorInfo{Message: message},
	})
}

// ErrorResponseWithError maps a client error onto a status code. Response
// codes keep their localization tokens so a controlling UI can resolve
// them against its own string catalog.
func ErrorResponseWithError(c *gin.Context, err error) {
	if code, ok := errors.ResponseCode(err); ok {
		var re *errors.ResponseError
		errors.As(err, &re)
		pair := re.Pair()
		c.JSON(statusForCode(code), APIResponse{
			Success: false,
			Error: &ErrorInfo{
				Code:     code,
				Message:  pair[0],
				Messages: pair[:],
			},
		})
		return
	}

	var le *errors.LocalizedError
	if errors.As(err, &le) {
		c.JSON(http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Error:   &ErrorInfo{Message: le.Error()},
		})
		return
	}

	ErrorResponse(c, http.StatusInternalServerError, err.Error())
}

func statusForCode(code string) int {
	switch code {
	case errors.CodeLoginRequired:
		return http.StatusUnauthorized
	case errors.CodeUserUnknown, errors.CodeUnknownFont, errors.CodeUnknownInstallation:
		return http.StatusNotFound
	case errors.CodeServerNotReachable:
		return http.StatusBadGateway
	case errors.CodeNotOnline:
		return http.StatusServiceUnavailable
	default:
		return http.StatusConflict
	}
}
