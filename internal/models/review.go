package models

import "time"

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// AutoApproveRating is the lowest overall rating published without moderation.
const AutoApproveRating = 4

// ReviewRating breaks a review down by aspect. Aspects other than Overall are optional.
type ReviewRating struct {
	Overall      int  `gorm:"not null" json:"overall"`
	Quality      *int `json:"quality,omitempty"`
	Price        *int `json:"price,omitempty"`
	Timeliness   *int `gorm:"column:time" json:"time,omitempty"`
	ServiceScore *int `gorm:"column:service" json:"service,omitempty"`
}

// ReviewResponse is the shop's public answer to a review.
type ReviewResponse struct {
	Text        LocalizedText `gorm:"embedded;embeddedPrefix:text_" json:"text"`
	RespondedBy *string       `gorm:"size:36" json:"respondedBy,omitempty"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
}

// Review is a customer's rating of a completed booking. One per booking.
type Review struct {
	BaseModel
	BookingID  string         `gorm:"size:36;uniqueIndex;not null" json:"bookingId"`
	ServiceID  string         `gorm:"size:36;index;not null" json:"serviceId"`
	CustomerID string         `gorm:"size:36;index;not null" json:"customerId"`
	Rating     ReviewRating   `gorm:"embedded;embeddedPrefix:rating_" json:"rating"`
	Comment    LocalizedText  `gorm:"embedded;embeddedPrefix:comment_" json:"comment"`
	Status     ReviewStatus   `gorm:"size:20;default:'pending';index" json:"status"`
	Helpful    int            `gorm:"default:0" json:"helpful"`
	Response   ReviewResponse `gorm:"embedded;embeddedPrefix:response_" json:"response"`

	Customer *User    `gorm:"foreignKey:CustomerID" json:"-"`
	Service  *Service `gorm:"foreignKey:ServiceID" json:"-"`
}

// InitialReviewStatus auto-approves high ratings.
func InitialReviewStatus(overall int) ReviewStatus {
	if overall >= AutoApproveRating {
		return ReviewApproved
	}
	return ReviewPending
}

// RatingSummary is the aggregate of approved reviews for a service.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// OwnerID is the reviewing customer.
func (r *Review) OwnerID() string { return r.CustomerID }
