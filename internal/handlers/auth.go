package handlers

import (
	"errors"
	"strings"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/config"
	"autorepair-shop-server/internal/mailer"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/services"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Notifier services.Notifier
	Now      clock.Func
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, notifier services.Notifier, now clock.Func) *AuthHandler {
	if now == nil {
		now = clock.Real()
	}
	return &AuthHandler{DB: db, Cfg: cfg, Notifier: notifier, Now: now}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Name              string `json:"name" binding:"required,max=100"`
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=6"`
	Phone             string `json:"phone" binding:"omitempty,max=30"`
	PreferredLanguage string `json:"preferredLanguage" binding:"omitempty,oneof=ar en"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
	User         *models.UserSanitized `json:"user,omitempty"`
}

// Register creates a customer account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if count > 0 {
		_ = c.Error(apperror.Conflict("User with this email already exists"))
		return
	}

	user := models.User{
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		Phone:         req.Phone,
		Role:          models.RoleCustomer,
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
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			_ = c.Error(apperror.Conflict("User with this email already exists"))
			return
		}
		_ = c.Error(err)
		return
	}

	tokens, err := h.issueTokens(c, &user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if h.Notifier != nil {
		h.Notifier.Dispatch(mailer.Welcome(&user))
	}

	sanitized := user.Sanitize()
	utils.Created(c, "User registered successfully", AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         &sanitized,
	})
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Error(apperror.Unauthorized("Invalid email or password"))
			return
		}
		_ = c.Error(err)
		return
	}

	if !user.CheckPassword(req.Password) {
		_ = c.Error(apperror.Unauthorized("Invalid email or password"))
		return
	}
	if !user.IsActive {
		_ = c.Error(apperror.Unauthorized("Account is deactivated"))
		return
	}

	now := h.Now().UTC()
	user.LastLogin = &now
	if err := h.DB.Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		_ = c.Error(err)
		return
	}

	tokens, err := h.issueTokens(c, &user)
	if err != nil {
		_ = c.Error(err)
		return
	}

	sanitized := user.Sanitize()
	utils.Success(c, "Login successful", AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         &sanitized,
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken rotates a refresh token: the presented one is revoked and a new pair issued.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	presented, err := c.Cookie(refreshCookie)
	if err != nil || presented == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		presented = req.RefreshToken
	}

	claims, err := utils.ValidateToken(presented, h.Cfg.JWTRefreshSecret)
	if err != nil {
		_ = c.Error(apperror.Unauthorized("Invalid refresh token"))
		return
	}

	var user models.User
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		revoked := tx.Model(&models.RefreshToken{}).
			Where("token = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?", presented, claims.UserID, false, h.Now().UTC()).
			UpdateColumn("is_revoked", true)
		if revoked.Error != nil {
			return revoked.Error
		}
		if revoked.RowsAffected == 0 {
			return apperror.Unauthorized("Refresh token not found, expired, or revoked")
		}
		if err := tx.First(&user, "id = ?", claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Unauthorized("The user for this token no longer exists")
			}
			return err
		}
		if !user.IsActive {
			return apperror.Unauthorized("Account is deactivated")
		}
		return nil
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	tokens, err := h.issueTokens(c, &user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Access token refreshed successfully", AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout revokes the presented refresh token. Unknown tokens are not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookie)
	}
	if token == "" {
		_ = c.Error(apperror.Field("refreshToken", "refreshToken is required"))
		return
	}

	if err := h.DB.Model(&models.RefreshToken{}).
		Where("token = ? AND is_revoked = ?", token, false).
		Updates(map[string]interface{}{"is_revoked": true, "expires_at": h.Now().UTC()}).Error; err != nil {
		_ = c.Error(err)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", h.Cfg.IsProduction(), true)
	utils.Success(c, "Logout successful", nil)
}

// GetProfile returns the authenticated user.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperror.Unauthorized("User not authenticated"))
		return
	}
	utils.Success(c, "", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating user profile.
type UpdateProfileRequest struct {
	Name              *string `json:"name" binding:"omitempty,min=1,max=100"`
	Phone             *string `json:"phone" binding:"omitempty,max=30"`
	Avatar            *string `json:"avatar" binding:"omitempty,url"`
	PreferredLanguage *string `json:"preferredLanguage" binding:"omitempty,oneof=ar en"`
}

// UpdateProfile updates the authenticated user's own profile. Email and role are not editable here.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperror.Unauthorized("User not authenticated"))
		return
	}

	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
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
	if err := h.DB.First(user, "id = ?", user.ID).Error; err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

// ChangePasswordRequest carries the current and the new password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// ChangePassword replaces the password and revokes every refresh token of the user.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperror.Unauthorized("User not authenticated"))
		return
	}

	var req ChangePasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if !user.CheckPassword(req.CurrentPassword) {
		_ = c.Error(apperror.Field("currentPassword", "Current password is incorrect"))
		return
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		_ = c.Error(apperror.Internal("hash password", err))
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).UpdateColumn("password", user.Password).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).UpdateColumn("is_revoked", true).Error
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Password changed successfully", nil)
}

// issueTokens signs a new pair, stores the refresh token and sets it as an HTTP-only cookie.
func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (utils.TokenPair, error) {
	tokens, err := utils.GenerateTokens(user, h.Cfg, h.Now())
	if err != nil {
		return utils.TokenPair{}, apperror.Internal("generate tokens", err)
	}
	stored := models.RefreshToken{
		UserID:    user.ID,
		Token:     tokens.RefreshToken,
		ExpiresAt: tokens.RefreshExpiresAt.UTC(),
	}
	if err := h.DB.Create(&stored).Error; err != nil {
		return utils.TokenPair{}, err
	}

	c.SetCookie(refreshCookie, tokens.RefreshToken, h.Cfg.JWTRefreshExpirationHours*60*60, "/", "", h.Cfg.IsProduction(), true)
	return tokens, nil
}
