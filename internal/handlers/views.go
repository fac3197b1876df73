package handlers

import (
	"time"

	"autorepair-shop-server/internal/models"
)

// Response views add the derived and locale-resolved fields to stored
// records. Nothing here is persisted.

type BookingView struct {
	*models.Booking
	Customer            *models.UserSummary    `json:"customer,omitempty"`
	Service             *models.ServiceSummary `json:"service,omitempty"`
	Technician          *models.UserSummary    `json:"technician,omitempty"`
	Notes               []models.BookingNote   `json:"notes"`
	AppointmentDateTime time.Time              `json:"appointmentDateTime"`
	CanBeCancelled      bool                   `json:"canBeCancelled"`
	IssueText           string                 `json:"issueText"`
}

// NewBookingView renders b. Internal notes are dropped unless showInternal.
func NewBookingView(b *models.Booking, locale string, now time.Time, loc *time.Location, showInternal bool) BookingView {
	notes := make([]models.BookingNote, 0, len(b.Notes))
	for _, n := range b.Notes {
		if n.IsInternal && !showInternal {
			continue
		}
		notes = append(notes, n)
	}
	return BookingView{
		Booking:             b,
		Customer:            b.Customer.Summary(),
		Service:             b.Service.Summary(),
		Technician:          b.Technician.Summary(),
		Notes:               notes,
		AppointmentDateTime: b.AppointmentDateTime(loc),
		CanBeCancelled:      b.CanBeCancelled(now, loc),
		IssueText:           b.Issue.Description.Resolve(locale),
	}
}

type ServiceView struct {
	*models.Service
	DisplayName        string                `json:"displayName"`
	DisplayDescription string                `json:"displayDescription"`
	Rating             *models.RatingSummary `json:"rating,omitempty"`
}

func NewServiceView(s *models.Service, locale string, rating *models.RatingSummary) ServiceView {
	return ServiceView{
		Service:            s,
		DisplayName:        s.Name.Resolve(locale),
		DisplayDescription: s.Description.Resolve(locale),
		Rating:             rating,
	}
}

type ProjectView struct {
	*models.Project
	DisplayTitle       string                 `json:"displayTitle"`
	DisplayDescription string                 `json:"displayDescription"`
	Service            *models.ServiceSummary `json:"service,omitempty"`
	TotalEngagement    int                    `json:"totalEngagement"`
}

func NewProjectView(p *models.Project, locale string) ProjectView {
	return ProjectView{
		Project:            p,
		DisplayTitle:       p.Title.Resolve(locale),
		DisplayDescription: p.Description.Resolve(locale),
		Service:            p.Service.Summary(),
		TotalEngagement:    p.TotalEngagement(),
	}
}

type BlogCommentView struct {
	models.BlogComment
	User *models.UserSummary `json:"user,omitempty"`
}

type BlogView struct {
	*models.Blog
	DisplayTitle   string              `json:"displayTitle"`
	DisplayExcerpt string              `json:"displayExcerpt"`
	DisplayContent string              `json:"displayContent,omitempty"`
	ReadingTime    int                 `json:"readingTime"`
	Author         *models.UserSummary `json:"author,omitempty"`
	Comments       []BlogCommentView   `json:"comments,omitempty"`
}

// NewBlogView renders a post. withContent adds the resolved body and comments
// for detail pages; unapproved comments are kept only when showPending is set.
func NewBlogView(b *models.Blog, locale string, withContent, showPending bool) BlogView {
	v := BlogView{
		Blog:           b,
		DisplayTitle:   b.Title.Resolve(locale),
		DisplayExcerpt: b.Excerpt.Resolve(locale),
		ReadingTime:    b.ReadingTime(locale),
		Author:         authorSummary(b.Author),
	}
	if withContent {
		v.DisplayContent = b.Content.Resolve(locale)
		v.Comments = make([]BlogCommentView, 0, len(b.Comments))
		for _, cm := range b.Comments {
			if !cm.IsApproved && !showPending {
				continue
			}
			v.Comments = append(v.Comments, BlogCommentView{BlogComment: cm, User: authorSummary(cm.User)})
		}
	}
	return v
}

// authorSummary omits contact details of authors shown on public pages.
func authorSummary(u *models.User) *models.UserSummary {
	s := u.Summary()
	if s != nil {
		s.Email, s.Phone = "", ""
	}
	return s
}

type ReviewView struct {
	*models.Review
	Customer       *models.UserSummary    `json:"customer,omitempty"`
	Service        *models.ServiceSummary `json:"service,omitempty"`
	DisplayComment string                 `json:"displayComment"`
}

func NewReviewView(r *models.Review, locale string) ReviewView {
	return ReviewView{
		Review:         r,
		Customer:       authorSummary(r.Customer),
		Service:        r.Service.Summary(),
		DisplayComment: r.Comment.Resolve(locale),
	}
}
