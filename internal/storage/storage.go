// Package storage uploads and deletes user files on the configured backend.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/config"
)

// MaxImageSize is the upload limit for images.
const MaxImageSize = 5 << 20

// File is an upload ready to be stored.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Result describes a stored file.
type Result struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Storage is implemented by every backend.
type Storage interface {
	Upload(ctx context.Context, folder string, file File) (*Result, error)
	Delete(ctx context.Context, publicID string) error
}

// New selects the backend named in cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3(ctx, cfg.S3Bucket)
	case "cloudinary", "":
		return NewCloudinary(cfg.CloudinaryURL)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// OpenImage validates an uploaded image by size and sniffed content type and
// returns it ready for Upload. The caller closes the returned file.
func OpenImage(header *multipart.FileHeader, maxSize int64) (File, io.Closer, error) {
	if header.Size > maxSize {
		return File{}, nil, apperror.Field("file", fmt.Sprintf("file must be at most %d MB", maxSize>>20))
	}
	f, err := header.Open()
	if err != nil {
		return File{}, nil, apperror.Internal("open upload", err)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		f.Close()
		return File{}, nil, apperror.Internal("read upload", err)
	}
	mime := http.DetectContentType(head[:n])
	if _, ok := allowedImageTypes[mime]; !ok {
		f.Close()
		return File{}, nil, apperror.Field("file", "only image files are allowed")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return File{}, nil, apperror.Internal("rewind upload", err)
	}

	return File{Name: header.Filename, ContentType: mime, Size: header.Size, Body: f}, f, nil
}

// objectName builds a stable object key from the folder, an id and the extension for mime.
func objectName(folder, id, mime, fallbackName string) string {
	ext, ok := allowedImageTypes[mime]
	if !ok {
		ext = strings.ToLower(path.Ext(fallbackName))
	}
	return path.Join(strings.Trim(folder, "/"), id+ext)
}
