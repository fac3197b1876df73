package handlers

import (
	"errors"
	"strings"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler handles user-related requests (typically admin operations).
type UserHandler struct {
	DB *gorm.DB
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	Name              string `json:"name" binding:"required,max=100"`
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=6"`
	Phone             string `json:"phone" binding:"omitempty,max=30"`
	Role              string `json:"role" binding:"required,oneof=admin technician customer"`
	PreferredLanguage string `json:"preferredLanguage" binding:"omitempty,oneof=ar en"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if taken, err := h.emailTaken(email, ""); err != nil {
		_ = c.Error(err)
		return
	} else if taken {
		_ = c.Error(apperror.Conflict("User with this email already exists"))
		return
	}

	user := models.User{
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		Phone:         req.Phone,
		Role:          models.Role(req.Role),
		PreferredLang: req.PreferredLanguage,
		IsActive:      true,
	}
	if user.PreferredLang == "" {
		user.PreferredLang = models.LocaleArabic
	}
	if err := user.SetPassword(req.Password); err != nil {
		_ = c.Error(apperror.Internal("hash password", err))
		return
	}
	if err := h.DB.Create(&user).Error; err != nil {
		_ = c.Error(err)
		return
	}

	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers lists users with optional role, active and search filters (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	p := utils.ParsePagination(c)
	q := h.DB.Model(&models.User{})

	if role := c.Query("role"); role != "" {
		if !models.Role(role).Valid() {
			_ = c.Error(apperror.Field("role", "role must be one of: admin, technician, customer"))
			return
		}
		q = q.Where("role = ?", role)
	}
	if active := c.Query("isActive"); active != "" {
		q = q.Where("is_active = ?", active == "true")
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, like)
	}

	var users []models.User
	total, err := utils.Paginate(q.Order("created_at DESC"), p, &users)
	if err != nil {
		_ = c.Error(err)
		return
	}

	sanitizedUsers := make([]models.UserSanitized, len(users))
	for i, u := range users {
		sanitizedUsers[i] = u.Sanitize()
	}
	utils.List(c, sanitizedUsers, len(sanitizedUsers), p, total)
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.find(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
type UpdateUserRequest struct {
	Name              *string `json:"name" binding:"omitempty,min=1,max=100"`
	Email             *string `json:"email" binding:"omitempty,email"`
	Phone             *string `json:"phone" binding:"omitempty,max=30"`
	Role              *string `json:"role" binding:"omitempty,oneof=admin technician customer"`
	IsActive          *bool   `json:"isActive"`
	PreferredLanguage *string `json:"preferredLanguage" binding:"omitempty,oneof=ar en"`
}

// UpdateUser handles updating a user by ID (admin).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.find(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	actorID, _ := middleware.GetUserIDFromContext(c)
	if actorID == user.ID && ((req.Role != nil && models.Role(*req.Role) != models.RoleAdmin) || (req.IsActive != nil && !*req.IsActive)) {
		_ = c.Error(apperror.Validation("You cannot demote or deactivate your own account"))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			taken, err := h.emailTaken(email, user.ID)
			if err != nil {
				_ = c.Error(err)
				return
			}
			if taken {
				_ = c.Error(apperror.Conflict("New email is already in use"))
				return
			}
			updates["email"] = email
		}
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Role != nil {
		updates["role"] = models.Role(*req.Role)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.PreferredLanguage != nil {
		updates["preferred_lang"] = *req.PreferredLanguage
	}

	if len(updates) > 0 {
		if err := h.DB.Model(user).Updates(updates).Error; err != nil {
			_ = c.Error(err)
			return
		}
	}
	if user, err = h.find(user.ID); err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser deactivates an account and revokes its refresh tokens. Bookings
// and reviews keep referencing the user, so rows are never removed.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	user, err := h.find(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if actorID, _ := middleware.GetUserIDFromContext(c); actorID == user.ID {
		_ = c.Error(apperror.Validation("You cannot deactivate your own account"))
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).UpdateColumn("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).UpdateColumn("is_revoked", true).Error
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "User deactivated successfully", nil)
}

// GetTechnicians lists active technicians for assignment.
func (h *UserHandler) GetTechnicians(c *gin.Context) {
	var technicians []models.User
	if err := h.DB.Where("role = ? AND is_active = ?", models.RoleTechnician, true).Order("name ASC").Find(&technicians).Error; err != nil {
		_ = c.Error(err)
		return
	}

	sanitized := make([]models.UserSanitized, len(technicians))
	for i, t := range technicians {
		sanitized[i] = t.Sanitize()
	}
	utils.Success(c, "", sanitized)
}

func (h *UserHandler) find(id string) (*models.User, error) {
	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}

func (h *UserHandler) emailTaken(email, excludeID string) (bool, error) {
	var count int64
	q := h.DB.Model(&models.User{}).Where("email = ?", email)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
