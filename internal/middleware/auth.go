package middleware

import (
	"strings"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/config"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/policy"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	userIDKey   = "userID"
	userRoleKey = "userRole"
	userKey     = "user"
)

// AuthMiddleware verifies the bearer token and loads the acting user.
// Tokens of deleted or deactivated accounts are rejected.
func AuthMiddleware(cfg *config.Config, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, apperror.Unauthorized("Authorization header required"))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWith(c, apperror.Unauthorized("Invalid authorization header format"))
			return
		}

		claims, err := utils.ValidateToken(parts[1], cfg.JWTSecret)
		if err != nil {
			abortWith(c, apperror.Unauthorized("Invalid or expired token"))
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				abortWith(c, apperror.Unauthorized("The user for this token no longer exists"))
				return
			}
			abortWith(c, apperror.Internal("load token user", err))
			return
		}
		if !user.IsActive {
			abortWith(c, apperror.Unauthorized("Account is deactivated"))
			return
		}

		// Set user information in context for downstream handlers
		c.Set(userIDKey, user.ID)
		c.Set(userRoleKey, user.Role)
		c.Set(userKey, &user)

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			abortWith(c, apperror.Internal("user role missing from context", nil))
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}
		abortWith(c, apperror.Forbidden("You do not have permission to access this resource."))
	}
}

// Require enforces a role-only policy rule before the handler runs. Rules with
// ownership clauses are checked by the handler once the resource is loaded.
func Require(authz *policy.Authorizer, action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			abortWith(c, apperror.Internal("user role missing from context", nil))
			return
		}
		if !authz.AllowsRole(role, action) && authz.RoleOnly(action) {
			abortWith(c, apperror.Forbidden("You do not have permission to access this resource."))
			return
		}
		c.Next()
	}
}

// Helper function to get user ID from context
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// Helper function to get user role from context
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get(userRoleKey)
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}

// CurrentUser returns the user loaded by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// Subject describes the caller for policy checks.
func Subject(c *gin.Context) policy.Subject {
	id, _ := GetUserIDFromContext(c)
	role, _ := GetUserRoleFromContext(c)
	return policy.Subject{ID: id, Role: role}
}

func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
