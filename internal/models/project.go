package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Project image kinds.
const (
	ImageBefore  = "before"
	ImageAfter   = "after"
	ImageGallery = "gallery"
)

// Project is a finished job shown in the shop's portfolio.
type Project struct {
	BaseModel
	Title       LocalizedText              `gorm:"embedded;embeddedPrefix:title_" json:"title"`
	Description LocalizedText              `gorm:"embedded;embeddedPrefix:description_" json:"description"`
	Slug        string                     `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Category    ServiceCategory            `gorm:"size:30;index" json:"category"`
	ServiceID   *string                    `gorm:"size:36;index" json:"serviceId,omitempty"`
	BookingID   *string                    `gorm:"size:36" json:"bookingId,omitempty"`
	Car         CarInfo                    `gorm:"embedded;embeddedPrefix:car_" json:"car"`
	Images      datatypes.JSONSlice[Image] `json:"images"`
	Duration    int                        `json:"duration"` // days
	Cost        decimal.NullDecimal        `gorm:"type:decimal(10,2)" json:"cost"`
	CompletedAt *time.Time                 `json:"completedAt,omitempty"`
	IsPublished bool                       `gorm:"default:false;index" json:"isPublished"`
	IsFeatured  bool                       `gorm:"default:false" json:"isFeatured"`
	Views       int                        `gorm:"default:0" json:"views"`
	Likes       int                        `gorm:"default:0" json:"likes"`

	Service *Service `gorm:"foreignKey:ServiceID" json:"-"`
}

// TotalEngagement is views plus likes.
func (p *Project) TotalEngagement() int {
	return p.Views + p.Likes
}

// ImagesOfKind returns the images tagged with kind, in stored order.
func (p *Project) ImagesOfKind(kind string) []Image {
	var out []Image
	for _, img := range p.Images {
		if img.Kind == kind {
			out = append(out, img)
		}
	}
	return out
}
