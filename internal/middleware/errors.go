package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/logging"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ErrorHandler turns the last error recorded on the context into the JSON
// error envelope. Handlers only call c.Error and return.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := Translate(c.Errors.Last().Err)
		logger := logging.FromContext(c.Request.Context())
		status := appErr.Kind.HTTPStatus()
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", slog.String("error", appErr.Error()))
			utils.Error(c, status, "Something went wrong. Please try again later.")
			return
		}

		logger.Debug("request rejected", slog.String("kind", appErr.Kind.String()), slog.String("error", appErr.Error()))
		utils.Error(c, status, appErr.Message, appErr.Fields...)
	}
}

// Translate maps any error onto the application taxonomy.
func Translate(err error) *apperror.Error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound("Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperror.Conflict("Duplicate value violates a unique field")
	}
	return apperror.Internal("unhandled error", err)
}
