package handlers

import (
	"encoding/json"
	"strings"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BlogHandler serves articles and their comments.
type BlogHandler struct {
	DB  *gorm.DB
	Now clock.Func
}

// NewBlogHandler creates a new BlogHandler.
func NewBlogHandler(db *gorm.DB, now clock.Func) *BlogHandler {
	if now == nil {
		now = clock.Real()
	}
	return &BlogHandler{DB: db, Now: now}
}

// BlogRequest represents the body for creating or replacing a post.
type BlogRequest struct {
	Title      string        `json:"title" binding:"required,max=200"`
	TitleAr    string        `json:"titleAr" binding:"required,max=200"`
	Excerpt    string        `json:"excerpt" binding:"max=500"`
	ExcerptAr  string        `json:"excerptAr" binding:"max=500"`
	Content    string        `json:"content" binding:"required"`
	ContentAr  string        `json:"contentAr" binding:"required"`
	Category   string        `json:"category" binding:"required,max=50"`
	Tags       []string      `json:"tags" binding:"max=20,dive,max=40"`
	CoverImage *models.Image `json:"coverImage"`
	Status     string        `json:"status" binding:"omitempty,oneof=draft published"`
}

// CommentRequest is a reader comment.
type CommentRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}

// GetBlogs lists published posts with category, tag and search filters.
func (h *BlogHandler) GetBlogs(c *gin.Context) {
	h.list(c, h.DB.Model(&models.Blog{}).Where("status = ?", models.BlogPublished))
}

// GetAllBlogs lists posts in every status (admin).
func (h *BlogHandler) GetAllBlogs(c *gin.Context) {
	q := h.DB.Model(&models.Blog{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	h.list(c, q)
}

func (h *BlogHandler) list(c *gin.Context, q *gorm.DB) {
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		quoted, _ := json.Marshal(tag)
		q = q.Where("tags LIKE ?", "%"+string(quoted)+"%")
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		raw := "%" + search + "%"
		q = q.Where("LOWER(title_default) LIKE ? OR title_ar LIKE ? OR LOWER(excerpt_default) LIKE ? OR excerpt_ar LIKE ?",
			like, raw, like, raw)
	}
	order := "published_at DESC, created_at DESC"
	if c.Query("sort") == "popular" {
		order = "views DESC, likes DESC"
	}

	p := utils.ParsePagination(c)
	var posts []models.Blog
	total, err := utils.Paginate(q.Preload("Author").Order(order), p, &posts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	locale := middleware.GetLocale(c)
	views := make([]BlogView, len(posts))
	for i := range posts {
		views[i] = NewBlogView(&posts[i], locale, false, false)
	}
	utils.List(c, views, len(views), p, total)
}

// GetBlog returns a published post by slug or id with its approved comments
// and counts the view.
func (h *BlogHandler) GetBlog(c *gin.Context) {
	key := c.Param("id")
	res := h.DB.Model(&models.Blog{}).
		Where("(slug = ? OR id = ?) AND status = ?", key, key, models.BlogPublished).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		_ = c.Error(res.Error)
		return
	}
	if res.RowsAffected == 0 {
		_ = c.Error(apperror.NotFound("Blog post not found"))
		return
	}
	post, err := h.load(h.DB.Where("slug = ? OR id = ?", key, key))
	if err != nil {
		_ = c.Error(notFound(err, "Blog post not found"))
		return
	}
	utils.Success(c, "", NewBlogView(post, middleware.GetLocale(c), true, false))
}

// GetBlogByID returns any post with every comment (admin).
func (h *BlogHandler) GetBlogByID(c *gin.Context) {
	post, err := h.load(h.DB.Where("id = ?", c.Param("id")))
	if err != nil {
		_ = c.Error(notFound(err, "Blog post not found"))
		return
	}
	utils.Success(c, "", NewBlogView(post, middleware.GetLocale(c), true, true))
}

// LikeBlog increments the like counter of a published post.
func (h *BlogHandler) LikeBlog(c *gin.Context) {
	res := h.DB.Model(&models.Blog{}).
		Where("id = ? AND status = ?", c.Param("id"), models.BlogPublished).
		UpdateColumn("likes", gorm.Expr("likes + ?", 1))
	if res.Error != nil {
		_ = c.Error(res.Error)
		return
	}
	if res.RowsAffected == 0 {
		_ = c.Error(apperror.NotFound("Blog post not found"))
		return
	}
	var likes int
	if err := h.DB.Model(&models.Blog{}).Where("id = ?", c.Param("id")).Pluck("likes", &likes).Error; err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "", gin.H{"likes": likes})
}

// AddComment posts a comment that stays hidden until approved.
func (h *BlogHandler) AddComment(c *gin.Context) {
	var req CommentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	var count int64
	if err := h.DB.Model(&models.Blog{}).
		Where("id = ? AND status = ?", c.Param("id"), models.BlogPublished).
		Count(&count).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if count == 0 {
		_ = c.Error(apperror.NotFound("Blog post not found"))
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	comment := models.BlogComment{
		BlogID: c.Param("id"),
		UserID: userID,
		Text:   strings.TrimSpace(req.Text),
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		_ = c.Error(err)
		return
	}
	user, _ := middleware.CurrentUser(c)
	utils.Created(c, "Comment submitted and awaiting approval", BlogCommentView{BlogComment: comment, User: authorSummary(user)})
}

// ApproveComment publishes a pending comment (admin).
func (h *BlogHandler) ApproveComment(c *gin.Context) {
	res := h.DB.Model(&models.BlogComment{}).
		Where("id = ? AND blog_id = ?", c.Param("commentId"), c.Param("id")).
		UpdateColumn("is_approved", true)
	if res.Error != nil {
		_ = c.Error(res.Error)
		return
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := h.DB.Model(&models.BlogComment{}).
			Where("id = ? AND blog_id = ?", c.Param("commentId"), c.Param("id")).
			Count(&count).Error; err != nil {
			_ = c.Error(err)
			return
		}
		if count == 0 {
			_ = c.Error(apperror.NotFound("Comment not found"))
			return
		}
	}
	utils.Success(c, "Comment approved", nil)
}

// DeleteComment removes a comment (admin).
func (h *BlogHandler) DeleteComment(c *gin.Context) {
	res := h.DB.Where("id = ? AND blog_id = ?", c.Param("commentId"), c.Param("id")).Delete(&models.BlogComment{})
	if res.Error != nil {
		_ = c.Error(res.Error)
		return
	}
	if res.RowsAffected == 0 {
		_ = c.Error(apperror.NotFound("Comment not found"))
		return
	}
	utils.Success(c, "Comment deleted successfully", nil)
}

// CreateBlog writes a post authored by the caller (admin).
func (h *BlogHandler) CreateBlog(c *gin.Context) {
	var req BlogRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)
	post := models.Blog{AuthorID: userID, Status: models.BlogDraft}
	if err := h.apply(&post, &req); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.DB.Create(&post).Error; err != nil {
		_ = c.Error(err)
		return
	}
	post.Author, _ = middleware.CurrentUser(c)
	utils.Created(c, "Blog post created successfully", NewBlogView(&post, middleware.GetLocale(c), true, true))
}

// UpdateBlog replaces a post's content (admin).
func (h *BlogHandler) UpdateBlog(c *gin.Context) {
	var req BlogRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	var post models.Blog
	if err := h.DB.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		_ = c.Error(notFound(err, "Blog post not found"))
		return
	}
	if err := h.apply(&post, &req); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.DB.Omit("Author", "Comments").Save(&post).Error; err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Blog post updated successfully", NewBlogView(&post, middleware.GetLocale(c), true, true))
}

// DeleteBlog removes a post and its comments (admin).
func (h *BlogHandler) DeleteBlog(c *gin.Context) {
	id := c.Param("id")
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Blog{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("Blog post not found")
		}
		return tx.Where("blog_id = ?", id).Delete(&models.BlogComment{}).Error
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Blog post deleted successfully", nil)
}

func (h *BlogHandler) load(q *gorm.DB) (*models.Blog, error) {
	var post models.Blog
	err := q.Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments.User").
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// apply copies req onto post. The first transition to published stamps publishedAt.
func (h *BlogHandler) apply(post *models.Blog, req *BlogRequest) error {
	if post.Slug == "" || post.Title.Default != req.Title {
		slug, err := utils.UniqueSlug(h.DB, &models.Blog{}, req.Title, post.ID)
		if err != nil {
			return err
		}
		post.Slug = slug
	}
	post.Title = models.NewText(req.Title, req.TitleAr)
	post.Excerpt = models.NewText(req.Excerpt, req.ExcerptAr)
	post.Content = models.NewText(req.Content, req.ContentAr)
	post.Category = strings.TrimSpace(req.Category)

	tags := make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" && !contains(tags, t) {
			tags = append(tags, t)
		}
	}
	post.Tags = datatypes.JSONSlice[string](tags)
	if req.CoverImage != nil {
		post.CoverImage = datatypes.NewJSONType(*req.CoverImage)
	}

	if req.Status != "" {
		post.Status = models.BlogStatus(req.Status)
	}
	if post.Status == models.BlogPublished && post.PublishedAt == nil {
		now := h.Now()
		post.PublishedAt = &now
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
