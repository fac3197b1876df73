package handlers

import (
	"errors"
	"strings"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/services"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ServiceHandler manages the catalogue of shop services.
type ServiceHandler struct {
	DB      *gorm.DB
	Reviews *services.ReviewService
}

// NewServiceHandler creates a new ServiceHandler.
func NewServiceHandler(db *gorm.DB, reviews *services.ReviewService) *ServiceHandler {
	return &ServiceHandler{DB: db, Reviews: reviews}
}

// CreateServiceRequest represents the request body for a new service.
type CreateServiceRequest struct {
	Name          string          `json:"name" binding:"required,max=120"`
	NameAr        string          `json:"nameAr" binding:"required,max=120"`
	Description   string          `json:"description" binding:"required,max=2000"`
	DescriptionAr string          `json:"descriptionAr" binding:"required,max=2000"`
	Category      string          `json:"category" binding:"required,oneof=maintenance repair diagnostics bodywork electrical tires other"`
	Price         decimal.Decimal `json:"price"`
	Duration      int             `json:"duration" binding:"required,gte=1"`
	Features      []string        `json:"features" binding:"max=30,dive,max=200"`
	Image         *models.Image   `json:"image"`
	IsActive      *bool           `json:"isActive"`
	IsFeatured    bool            `json:"isFeatured"`
	Order         int             `json:"order"`
}

// UpdateServiceRequest carries the fields to change.
type UpdateServiceRequest struct {
	Name          *string          `json:"name" binding:"omitempty,min=1,max=120"`
	NameAr        *string          `json:"nameAr" binding:"omitempty,min=1,max=120"`
	Description   *string          `json:"description" binding:"omitempty,max=2000"`
	DescriptionAr *string          `json:"descriptionAr" binding:"omitempty,max=2000"`
	Category      *string          `json:"category" binding:"omitempty,oneof=maintenance repair diagnostics bodywork electrical tires other"`
	Price         *decimal.Decimal `json:"price"`
	Duration      *int             `json:"duration" binding:"omitempty,gte=1"`
	Features      *[]string        `json:"features"`
	Image         *models.Image    `json:"image"`
	IsActive      *bool            `json:"isActive"`
	IsFeatured    *bool            `json:"isFeatured"`
	Order         *int             `json:"order"`
}

// GetServices lists active services with optional category, featured and search filters.
func (h *ServiceHandler) GetServices(c *gin.Context) {
	h.list(c, h.DB.Model(&models.Service{}).Where("is_active = ?", true))
}

// GetAllServices lists every service including inactive ones (admin).
func (h *ServiceHandler) GetAllServices(c *gin.Context) {
	q := h.DB.Model(&models.Service{})
	if active := c.Query("isActive"); active != "" {
		q = q.Where("is_active = ?", active == "true")
	}
	h.list(c, q)
}

func (h *ServiceHandler) list(c *gin.Context, q *gorm.DB) {
	if category := c.Query("category"); category != "" {
		if !models.ValidServiceCategory(models.ServiceCategory(category)) {
			_ = c.Error(apperror.Field("category", "unknown category"))
			return
		}
		q = q.Where("category = ?", category)
	}
	if c.Query("featured") == "true" {
		q = q.Where("is_featured = ?", true)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name_default) LIKE ? OR name_ar LIKE ? OR LOWER(description_default) LIKE ? OR description_ar LIKE ?",
			like, "%"+search+"%", like, "%"+search+"%")
	}

	p := utils.ParsePagination(c)
	var items []models.Service
	total, err := utils.Paginate(q.Order("sort_order ASC, created_at DESC"), p, &items)
	if err != nil {
		_ = c.Error(err)
		return
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	ratings, err := h.Reviews.ServiceRatings(c.Request.Context(), ids)
	if err != nil {
		_ = c.Error(err)
		return
	}

	locale := middleware.GetLocale(c)
	views := make([]ServiceView, len(items))
	for i := range items {
		r := ratings[items[i].ID]
		views[i] = NewServiceView(&items[i], locale, &r)
	}
	utils.List(c, views, len(views), p, total)
}

// GetService returns an active service by id or slug, with its rating summary.
func (h *ServiceHandler) GetService(c *gin.Context) {
	key := c.Param("id")
	var service models.Service
	if err := h.DB.Where("(id = ? OR slug = ?) AND is_active = ?", key, key, true).First(&service).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Error(apperror.NotFound("Service not found"))
			return
		}
		_ = c.Error(err)
		return
	}
	rating, err := h.Reviews.ServiceRating(c.Request.Context(), service.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "", NewServiceView(&service, middleware.GetLocale(c), &rating))
}

// CreateService adds a service (admin).
func (h *ServiceHandler) CreateService(c *gin.Context) {
	var req CreateServiceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.Price.IsNegative() {
		_ = c.Error(apperror.Field("price", "price must not be negative"))
		return
	}

	slug, err := utils.UniqueSlug(h.DB, &models.Service{}, req.Name, "")
	if err != nil {
		_ = c.Error(err)
		return
	}
	service := models.Service{
		Name:        models.NewText(req.Name, req.NameAr),
		Description: models.NewText(req.Description, req.DescriptionAr),
		Slug:        slug,
		Category:    models.ServiceCategory(req.Category),
		Price:       req.Price,
		Duration:    req.Duration,
		Features:    datatypes.JSONSlice[string](req.Features),
		IsActive:    true,
		IsFeatured:  req.IsFeatured,
		SortOrder:   req.Order,
	}
	if req.Image != nil {
		service.Image = datatypes.NewJSONType(*req.Image)
	}
	if err := h.DB.Create(&service).Error; err != nil {
		_ = c.Error(err)
		return
	}
	// is_active defaults to true in the schema, so an explicit false needs its own write.
	if req.IsActive != nil && !*req.IsActive {
		if err := h.DB.Model(&service).UpdateColumn("is_active", false).Error; err != nil {
			_ = c.Error(err)
			return
		}
		service.IsActive = false
	}
	utils.Created(c, "Service created successfully", NewServiceView(&service, middleware.GetLocale(c), nil))
}

// UpdateService changes a service; renaming it regenerates the slug (admin).
func (h *ServiceHandler) UpdateService(c *gin.Context) {
	var req UpdateServiceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var service models.Service
	if err := h.DB.First(&service, "id = ?", c.Param("id")).Error; err != nil {
		_ = c.Error(notFound(err, "Service not found"))
		return
	}

	if req.Name != nil && *req.Name != service.Name.Default {
		slug, err := utils.UniqueSlug(h.DB, &models.Service{}, *req.Name, service.ID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		service.Name.Default = *req.Name
		service.Slug = slug
	}
	if req.NameAr != nil {
		service.Name.Ar = *req.NameAr
	}
	if req.Description != nil {
		service.Description.Default = *req.Description
	}
	if req.DescriptionAr != nil {
		service.Description.Ar = *req.DescriptionAr
	}
	if req.Category != nil {
		service.Category = models.ServiceCategory(*req.Category)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			_ = c.Error(apperror.Field("price", "price must not be negative"))
			return
		}
		service.Price = *req.Price
	}
	if req.Duration != nil {
		service.Duration = *req.Duration
	}
	if req.Features != nil {
		service.Features = datatypes.JSONSlice[string](*req.Features)
	}
	if req.Image != nil {
		service.Image = datatypes.NewJSONType(*req.Image)
	}
	if req.IsActive != nil {
		service.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		service.IsFeatured = *req.IsFeatured
	}
	if req.Order != nil {
		service.SortOrder = *req.Order
	}

	if err := h.DB.Save(&service).Error; err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Service updated successfully", NewServiceView(&service, middleware.GetLocale(c), nil))
}

// DeleteService hides a service. Existing bookings keep referencing it (admin).
func (h *ServiceHandler) DeleteService(c *gin.Context) {
	res := h.DB.Model(&models.Service{}).Where("id = ?", c.Param("id")).UpdateColumn("is_active", false)
	if res.Error != nil {
		_ = c.Error(res.Error)
		return
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := h.DB.Model(&models.Service{}).Where("id = ?", c.Param("id")).Count(&count).Error; err != nil {
			_ = c.Error(err)
			return
		}
		if count == 0 {
			_ = c.Error(apperror.NotFound("Service not found"))
			return
		}
	}
	utils.Success(c, "Service deleted successfully", nil)
}

// notFound maps a missing row onto a NotFound with message and passes other errors through.
func notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(message)
	}
	return err
}
