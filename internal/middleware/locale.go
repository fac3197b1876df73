package middleware

import (
	"autorepair-shop-server/internal/models"

	"github.com/gin-gonic/gin"
)

const localeKey = "locale"

// Locale picks the response language from ?lang= or Accept-Language.
func Locale() gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.Query("lang")
		if value == "" {
			value = c.GetHeader("Accept-Language")
		}
		c.Set(localeKey, models.NormalizeLocale(value))
		c.Next()
	}
}

// GetLocale returns the request locale, defaulting to English.
func GetLocale(c *gin.Context) string {
	if v, ok := c.Get(localeKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return models.NormalizeLocale(c.Query("lang"))
}
