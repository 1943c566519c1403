package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

func Logger(log logger.Interface) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		args := []any{
			"method", param.Method,
			"path", param.Path,
			"status", param.StatusCode,
			"latency", param.Latency,
			"client_ip", param.ClientIP,
		}

		if param.ErrorMessage != "" {
			args = append(args, "error", param.ErrorMessage)
		}

		if param.StatusCode >= 500 {
			log.Errorw("control request completed", args...)
		} else if param.StatusCode >= 400 {
			log.Warnw("control request completed", args...)
		} else {
			log.Debugw("control request completed", args...)
		}

		return ""
	})
}
