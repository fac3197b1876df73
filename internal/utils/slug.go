package utils

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// UniqueSlug derives a URL slug from text and appends -2, -3, ... until no
// other row of model uses it. excludeID skips the row being renamed.
func UniqueSlug(db *gorm.DB, model interface{}, text, excludeID string) (string, error) {
	base := slug.Make(text)
	if base == "" {
		base = uuid.NewString()[:8]
	}
	candidate := base
	for i := 2; ; i++ {
		var count int64
		q := db.Model(model).Where("slug = ?", candidate)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
