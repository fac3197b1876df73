package handlers

import (
	"net/http"
	"path"
	"regexp"
	"strings"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/storage"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
)

var folderPattern = regexp.MustCompile(`^[a-z0-9_-]+(/[a-z0-9_-]+)*$`)

// UploadHandler stores images on the configured storage backend.
type UploadHandler struct {
	Storage storage.Storage
	Folder  string
	MaxSize int64
}

// NewUploadHandler creates a new UploadHandler rooted at folder.
func NewUploadHandler(store storage.Storage, folder string) *UploadHandler {
	return &UploadHandler{Storage: store, Folder: folder, MaxSize: storage.MaxImageSize}
}

// UploadFile stores the multipart "file" under the optional "folder" (admin).
func (h *UploadHandler) UploadFile(c *gin.Context) {
	sub := strings.Trim(strings.ToLower(c.PostForm("folder")), "/")
	if sub == "" {
		sub = "general"
	}
	if !folderPattern.MatchString(sub) {
		_ = c.Error(apperror.Field("folder", "folder may contain only letters, digits, dashes and slashes"))
		return
	}
	h.store(c, sub)
}

// UploadContactAttachment stores an image for the public contact form.
func (h *UploadHandler) UploadContactAttachment(c *gin.Context) {
	h.store(c, "contacts")
}

func (h *UploadHandler) store(c *gin.Context, sub string) {
	if h.Storage == nil {
		_ = c.Error(apperror.Internal("file storage is not configured", nil))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxSize+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(apperror.Field("file", "file is required"))
		return
	}
	file, closer, err := storage.OpenImage(header, h.MaxSize)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer closer.Close()

	result, err := h.Storage.Upload(c.Request.Context(), path.Join(h.Folder, sub), file)
	if err != nil {
		_ = c.Error(apperror.Internal("upload failed", err))
		return
	}
	utils.Created(c, "File uploaded successfully", result)
}

// DeleteFile removes a stored file by public id (admin). Public ids may
// contain slashes so the route captures the rest of the path.
func (h *UploadHandler) DeleteFile(c *gin.Context) {
	publicID := strings.TrimPrefix(c.Param("publicId"), "/")
	if publicID == "" {
		_ = c.Error(apperror.Field("publicId", "publicId is required"))
		return
	}
	if h.Storage == nil {
		_ = c.Error(apperror.Internal("file storage is not configured", nil))
		return
	}
	if err := h.Storage.Delete(c.Request.Context(), publicID); err != nil {
		_ = c.Error(apperror.Internal("delete failed", err))
		return
	}
	utils.Success(c, "File deleted successfully", nil)
}
