package models

import (
	"time"

	"gorm.io/datatypes"
)

// BlogStatus is the publication state of a post.
type BlogStatus string

const (
	BlogDraft     BlogStatus = "draft"
	BlogPublished BlogStatus = "published"
)

// Blog is a bilingual article.
type Blog struct {
	BaseModel
	Title       LocalizedText               `gorm:"embedded;embeddedPrefix:title_" json:"title"`
	Excerpt     LocalizedText               `gorm:"embedded;embeddedPrefix:excerpt_" json:"excerpt"`
	Content     LocalizedText               `gorm:"embedded;embeddedPrefix:content_" json:"content"`
	Slug        string                      `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Category    string                      `gorm:"size:50;index" json:"category"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	CoverImage  datatypes.JSONType[Image]   `json:"coverImage"`
	AuthorID    string                      `gorm:"size:36;index;not null" json:"authorId"`
	Status      BlogStatus                  `gorm:"size:20;default:'draft';index" json:"status"`
	PublishedAt *time.Time                  `gorm:"index" json:"publishedAt,omitempty"`
	Views       int                         `gorm:"default:0" json:"views"`
	Likes       int                         `gorm:"default:0" json:"likes"`

	Author   *User         `gorm:"foreignKey:AuthorID" json:"-"`
	Comments []BlogComment `gorm:"foreignKey:BlogID" json:"-"`
}

// ReadingTime estimates minutes to read the content in locale at 200 words per minute.
func (b *Blog) ReadingTime(locale string) int {
	words := 0
	inWord := false
	for _, r := range b.Content.Resolve(locale) {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !space && !inWord {
			words++
		}
		inWord = !space
	}
	minutes := (words + 199) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}

// HasTag reports whether the post carries tag.
func (b *Blog) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// BlogComment is a reader comment awaiting or past moderation.
type BlogComment struct {
	BaseModel
	BlogID     string `gorm:"size:36;index;not null" json:"-"`
	UserID     string `gorm:"size:36;index;not null" json:"userId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsApproved bool   `gorm:"default:false" json:"isApproved"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}
