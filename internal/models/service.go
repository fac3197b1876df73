package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ServiceCategory groups the shop's offerings.
type ServiceCategory string

const (
	CategoryMaintenance ServiceCategory = "maintenance"
	CategoryRepair      ServiceCategory = "repair"
	CategoryDiagnostics ServiceCategory = "diagnostics"
	CategoryBodywork    ServiceCategory = "bodywork"
	CategoryElectrical  ServiceCategory = "electrical"
	CategoryTires       ServiceCategory = "tires"
	CategoryOther       ServiceCategory = "other"
)

// Image is an uploaded file reference.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Caption  string `json:"caption,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Service is a bookable shop offering.
type Service struct {
	BaseModel
	Name        LocalizedText               `gorm:"embedded;embeddedPrefix:name_" json:"name"`
	Description LocalizedText               `gorm:"embedded;embeddedPrefix:description_" json:"description"`
	Slug        string                      `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	Category    ServiceCategory             `gorm:"size:30;index;not null" json:"category"`
	Price       decimal.Decimal             `gorm:"type:decimal(10,2);not null" json:"price"`
	Duration    int                         `gorm:"not null" json:"duration"` // minutes
	Features    datatypes.JSONSlice[string] `json:"features"`
	Image       datatypes.JSONType[Image]   `json:"image"`
	IsActive    bool                        `gorm:"default:true;index" json:"isActive"`
	IsFeatured  bool                        `gorm:"default:false" json:"isFeatured"`
	SortOrder   int                         `gorm:"default:0" json:"order"`
}

// ServiceSummary is embedded when a service is populated on a booking or review.
type ServiceSummary struct {
	ID       string          `json:"id"`
	Name     LocalizedText   `json:"name"`
	Slug     string          `json:"slug"`
	Category ServiceCategory `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Duration int             `json:"duration"`
}

// Summary returns the populated-reference view of the service.
func (s *Service) Summary() *ServiceSummary {
	if s == nil || s.ID == "" {
		return nil
	}
	return &ServiceSummary{
		ID:       s.ID,
		Name:     s.Name,
		Slug:     s.Slug,
		Category: s.Category,
		Price:    s.Price,
		Duration: s.Duration,
	}
}

// ValidServiceCategory reports whether c is a known category.
func ValidServiceCategory(c ServiceCategory) bool {
	switch c {
	case CategoryMaintenance, CategoryRepair, CategoryDiagnostics, CategoryBodywork,
		CategoryElectrical, CategoryTires, CategoryOther:
		return true
	}
	return false
}
