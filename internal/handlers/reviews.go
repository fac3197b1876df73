package handlers

import (
	"strconv"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/services"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ReviewHandler serves customer reviews.
type ReviewHandler struct {
	DB      *gorm.DB
	Reviews *services.ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(db *gorm.DB, reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{DB: db, Reviews: reviews}
}

// RatingRequest scores a review; only overall is required.
type RatingRequest struct {
	Overall int  `json:"overall" binding:"required,gte=1,lte=5"`
	Quality *int `json:"quality" binding:"omitempty,gte=1,lte=5"`
	Price   *int `json:"price" binding:"omitempty,gte=1,lte=5"`
	Time    *int `json:"time" binding:"omitempty,gte=1,lte=5"`
	Service *int `json:"service" binding:"omitempty,gte=1,lte=5"`
}

// CreateReviewRequest represents the request body for a review.
type CreateReviewRequest struct {
	Booking   string        `json:"booking" binding:"required"`
	Rating    RatingRequest `json:"rating"`
	Comment   string        `json:"comment" binding:"required_without=CommentAr,max=2000"`
	CommentAr string        `json:"commentAr" binding:"max=2000"`
}

// CreateReview reviews a completed booking of the caller.
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	var req CreateReviewRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	review, err := h.Reviews.Create(c.Request.Context(), middleware.Subject(c), services.CreateReviewInput{
		BookingID: req.Booking,
		Rating: models.ReviewRating{
			Overall:      req.Rating.Overall,
			Quality:      req.Rating.Quality,
			Price:        req.Rating.Price,
			Timeliness:   req.Rating.Time,
			ServiceScore: req.Rating.Service,
		},
		Comment: models.NewText(req.Comment, req.CommentAr),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	message := "Review submitted and awaiting approval"
	if review.Status == models.ReviewApproved {
		message = "Review published"
	}
	utils.Created(c, message, NewReviewView(review, middleware.GetLocale(c)))
}

// GetReviews lists approved reviews, optionally for one service or minimum rating.
func (h *ReviewHandler) GetReviews(c *gin.Context) {
	q := h.DB.Model(&models.Review{}).Where("status = ?", models.ReviewApproved)
	q, ok := reviewFilters(c, q)
	if !ok {
		return
	}
	h.list(c, q)
}

// GetAllReviews lists reviews in every status (admin).
func (h *ReviewHandler) GetAllReviews(c *gin.Context) {
	q := h.DB.Model(&models.Review{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	q, ok := reviewFilters(c, q)
	if !ok {
		return
	}
	h.list(c, q)
}

// GetMyReviews lists the caller's reviews.
func (h *ReviewHandler) GetMyReviews(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	h.list(c, h.DB.Model(&models.Review{}).Where("customer_id = ?", userID))
}

func (h *ReviewHandler) list(c *gin.Context, q *gorm.DB) {
	p := utils.ParsePagination(c)
	order := "created_at DESC"
	switch c.Query("sort") {
	case "rating":
		order = "rating_overall DESC, created_at DESC"
	case "helpful":
		order = "helpful DESC, created_at DESC"
	}
	var reviews []models.Review
	total, err := utils.Paginate(q.Preload("Customer").Preload("Service").Order(order), p, &reviews)
	if err != nil {
		_ = c.Error(err)
		return
	}
	locale := middleware.GetLocale(c)
	views := make([]ReviewView, len(reviews))
	for i := range reviews {
		views[i] = NewReviewView(&reviews[i], locale)
	}
	utils.List(c, views, len(views), p, total)
}

func reviewFilters(c *gin.Context, q *gorm.DB) (*gorm.DB, bool) {
	if service := c.Query("service"); service != "" {
		q = q.Where("service_id = ?", service)
	}
	if raw := c.Query("rating"); raw != "" {
		minRating, err := strconv.Atoi(raw)
		if err != nil || minRating < 1 || minRating > 5 {
			_ = c.Error(apperror.Field("rating", "rating must be between 1 and 5"))
			return q, false
		}
		q = q.Where("rating_overall >= ?", minRating)
	}
	return q, true
}

// ReviewStats is the aggregate answered by GetReviewStats.
type ReviewStats struct {
	models.RatingSummary
	Distribution map[int]int64 `json:"distribution"`
}

// GetReviewStats aggregates approved reviews, for one service when ?service= is set.
func (h *ReviewHandler) GetReviewStats(c *gin.Context) {
	ctx := c.Request.Context()
	serviceID := c.Query("service")

	var summary models.RatingSummary
	if serviceID != "" {
		s, err := h.Reviews.ServiceRating(ctx, serviceID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		summary = s
	}
	dist, err := h.Reviews.RatingDistribution(ctx, serviceID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if serviceID == "" {
		var weighted int64
		for score, n := range dist {
			summary.Count += n
			weighted += int64(score) * n
		}
		if summary.Count > 0 {
			summary.Average = float64(int(float64(weighted)/float64(summary.Count)*10+0.5)) / 10
		}
	}
	utils.Success(c, "", ReviewStats{RatingSummary: summary, Distribution: dist})
}

// MarkHelpful bumps the helpful counter of an approved review.
func (h *ReviewHandler) MarkHelpful(c *gin.Context) {
	review, err := h.Reviews.MarkHelpful(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "", NewReviewView(review, middleware.GetLocale(c)))
}

// ReviewStatusRequest approves or rejects a review.
type ReviewStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected"`
}

// UpdateReviewStatus moderates a review (admin).
func (h *ReviewHandler) UpdateReviewStatus(c *gin.Context) {
	var req ReviewStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	review, err := h.Reviews.SetStatus(c.Request.Context(), middleware.Subject(c), c.Param("id"), models.ReviewStatus(req.Status))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Review status updated", NewReviewView(review, middleware.GetLocale(c)))
}

// RespondRequest is the shop's answer to a review.
type RespondRequest struct {
	Text   string `json:"text" binding:"required_without=TextAr,max=2000"`
	TextAr string `json:"textAr" binding:"max=2000"`
}

// RespondToReview records a public response (admin).
func (h *ReviewHandler) RespondToReview(c *gin.Context) {
	var req RespondRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	review, err := h.Reviews.Respond(c.Request.Context(), middleware.Subject(c), c.Param("id"), models.NewText(req.Text, req.TextAr))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Response added", NewReviewView(review, middleware.GetLocale(c)))
}

// DeleteReview removes a review (admin).
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	if err := h.Reviews.Delete(c.Request.Context(), middleware.Subject(c), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Review deleted successfully", nil)
}
