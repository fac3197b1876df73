package handlers

import (
	"context"
	"log/slog"
	"time"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/logging"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/storage"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectHandler serves the portfolio of finished jobs.
type ProjectHandler struct {
	DB      *gorm.DB
	Storage storage.Storage
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(db *gorm.DB, store storage.Storage) *ProjectHandler {
	return &ProjectHandler{DB: db, Storage: store}
}

// ProjectImageRequest is one uploaded image attached to a project.
type ProjectImageRequest struct {
	URL      string `json:"url" binding:"required,url"`
	PublicID string `json:"publicId"`
	Caption  string `json:"caption" binding:"max=200"`
	Kind     string `json:"kind" binding:"omitempty,oneof=before after gallery"`
}

// ProjectRequest represents the body for creating or replacing a project.
type ProjectRequest struct {
	Title         string                `json:"title" binding:"required,max=200"`
	TitleAr       string                `json:"titleAr" binding:"required,max=200"`
	Description   string                `json:"description" binding:"required,max=5000"`
	DescriptionAr string                `json:"descriptionAr" binding:"required,max=5000"`
	Category      string                `json:"category" binding:"required,oneof=maintenance repair diagnostics bodywork electrical tires other"`
	Service       *string               `json:"service"`
	Booking       *string               `json:"booking"`
	Car           *CarRequest           `json:"car"`
	Images        []ProjectImageRequest `json:"images" binding:"max=30,dive"`
	Duration      int                   `json:"duration" binding:"gte=0"`
	Cost          *decimal.Decimal      `json:"cost"`
	CompletedAt   *time.Time            `json:"completedAt"`
	IsPublished   bool                  `json:"isPublished"`
	IsFeatured    bool                  `json:"isFeatured"`
}

// GetProjects lists published projects.
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	h.list(c, h.DB.Model(&models.Project{}).Where("is_published = ?", true))
}

// GetAllProjects lists every project including drafts (admin).
func (h *ProjectHandler) GetAllProjects(c *gin.Context) {
	h.list(c, h.DB.Model(&models.Project{}))
}

func (h *ProjectHandler) list(c *gin.Context, q *gorm.DB) {
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if c.Query("featured") == "true" {
		q = q.Where("is_featured = ?", true)
	}
	if service := c.Query("service"); service != "" {
		q = q.Where("service_id = ?", service)
	}
	order := "completed_at DESC, created_at DESC"
	if c.Query("sort") == "popular" {
		order = "views DESC, likes DESC"
	}

	p := utils.ParsePagination(c)
	var projects []models.Project
	total, err := utils.Paginate(q.Preload("Service").Order(order), p, &projects)
	if err != nil {
		_ = c.Error(err)
		return
	}
	locale := middleware.GetLocale(c)
	views := make([]ProjectView, len(projects))
	for i := range projects {
		views[i] = NewProjectView(&projects[i], locale)
	}
	utils.List(c, views, len(views), p, total)
}

// GetProject returns a published project by id or slug and counts the view.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	key := c.Param("id")
	res := h.DB.Model(&models.Project{}).
		Where("(id = ? OR slug = ?) AND is_published = ?", key, key, true).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		_ = c.Error(res.Error)
		return
	}
	if res.RowsAffected == 0 {
		_ = c.Error(apperror.NotFound("Project not found"))
		return
	}

	var project models.Project
	if err := h.DB.Preload("Service").Where("id = ? OR slug = ?", key, key).First(&project).Error; err != nil {
		_ = c.Error(notFound(err, "Project not found"))
		return
	}
	utils.Success(c, "", NewProjectView(&project, middleware.GetLocale(c)))
}

// LikeProject increments the like counter.
func (h *ProjectHandler) LikeProject(c *gin.Context) {
	res := h.DB.Model(&models.Project{}).
		Where("id = ? AND is_published = ?", c.Param("id"), true).
		UpdateColumn("likes", gorm.Expr("likes + ?", 1))
	if res.Error != nil {
		_ = c.Error(res.Error)
		return
	}
	if res.RowsAffected == 0 {
		_ = c.Error(apperror.NotFound("Project not found"))
		return
	}
	var likes int
	if err := h.DB.Model(&models.Project{}).Where("id = ?", c.Param("id")).Pluck("likes", &likes).Error; err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "", gin.H{"likes": likes})
}

// CreateProject adds a portfolio entry (admin).
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req ProjectRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	var project models.Project
	if err := h.apply(&project, &req); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.DB.Create(&project).Error; err != nil {
		_ = c.Error(err)
		return
	}
	utils.Created(c, "Project created successfully", NewProjectView(&project, middleware.GetLocale(c)))
}

// UpdateProject replaces a project's content (admin). Images dropped from
// the list are removed from storage.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req ProjectRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	var project models.Project
	if err := h.DB.First(&project, "id = ?", c.Param("id")).Error; err != nil {
		_ = c.Error(notFound(err, "Project not found"))
		return
	}
	previous := project.Images
	if err := h.apply(&project, &req); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.DB.Omit("Service").Save(&project).Error; err != nil {
		_ = c.Error(err)
		return
	}
	h.removeImages(c.Request.Context(), droppedImages(previous, project.Images))
	utils.Success(c, "Project updated successfully", NewProjectView(&project, middleware.GetLocale(c)))
}

// DeleteProject removes a project and its images (admin).
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	var project models.Project
	if err := h.DB.First(&project, "id = ?", c.Param("id")).Error; err != nil {
		_ = c.Error(notFound(err, "Project not found"))
		return
	}
	if err := h.DB.Delete(&project).Error; err != nil {
		_ = c.Error(err)
		return
	}
	h.removeImages(c.Request.Context(), project.Images)
	utils.Success(c, "Project deleted successfully", nil)
}

func (h *ProjectHandler) apply(p *models.Project, req *ProjectRequest) error {
	if p.Title.Default != req.Title || p.Slug == "" {
		slug, err := utils.UniqueSlug(h.DB, &models.Project{}, req.Title, p.ID)
		if err != nil {
			return err
		}
		p.Slug = slug
	}
	if req.Service != nil && *req.Service != "" {
		var count int64
		if err := h.DB.Model(&models.Service{}).Where("id = ?", *req.Service).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperror.NotFound("Service not found")
		}
		p.ServiceID = req.Service
	} else {
		p.ServiceID = nil
	}
	if req.Cost != nil && req.Cost.IsNegative() {
		return apperror.Field("cost", "cost must not be negative")
	}

	p.Title = models.NewText(req.Title, req.TitleAr)
	p.Description = models.NewText(req.Description, req.DescriptionAr)
	p.Category = models.ServiceCategory(req.Category)
	p.BookingID = req.Booking
	if req.Car != nil {
		p.Car = models.CarInfo{
			Make: req.Car.Make, Model: req.Car.Model, Year: req.Car.Year,
			VIN: req.Car.VIN, LicensePlate: req.Car.LicensePlate, Mileage: req.Car.Mileage, Color: req.Car.Color,
		}
	}
	images := make([]models.Image, len(req.Images))
	for i, img := range req.Images {
		kind := img.Kind
		if kind == "" {
			kind = models.ImageGallery
		}
		images[i] = models.Image{URL: img.URL, PublicID: img.PublicID, Caption: img.Caption, Kind: kind}
	}
	p.Images = datatypes.JSONSlice[models.Image](images)
	p.Duration = req.Duration
	p.Cost = decimal.NullDecimal{}
	if req.Cost != nil {
		p.Cost = decimal.NewNullDecimal(*req.Cost)
	}
	p.CompletedAt = req.CompletedAt
	p.IsPublished = req.IsPublished
	p.IsFeatured = req.IsFeatured
	return nil
}

func droppedImages(before, after []models.Image) []models.Image {
	kept := make(map[string]bool, len(after))
	for _, img := range after {
		kept[img.PublicID] = true
	}
	var dropped []models.Image
	for _, img := range before {
		if img.PublicID != "" && !kept[img.PublicID] {
			dropped = append(dropped, img)
		}
	}
	return dropped
}

// removeImages deletes files from storage; failures are logged and ignored.
func (h *ProjectHandler) removeImages(ctx context.Context, images []models.Image) {
	if h.Storage == nil {
		return
	}
	for _, img := range images {
		if img.PublicID == "" {
			continue
		}
		if err := h.Storage.Delete(ctx, img.PublicID); err != nil {
			logging.FromContext(ctx).Warn("image cleanup failed",
				slog.String("public_id", img.PublicID),
				slog.String("error", err.Error()),
			)
		}
	}
}
