package handlers

import (
	"strings"
	"time"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/mailer"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContactNotifier delivers contact form emails.
type ContactNotifier interface {
	Dispatch(msg mailer.Message)
	NotifyAdmin(msg mailer.Message)
}

// ContactHandler handles the public contact form and its admin inbox.
type ContactHandler struct {
	DB       *gorm.DB
	Notifier ContactNotifier
	Now      clock.Func
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(db *gorm.DB, notifier ContactNotifier, now clock.Func) *ContactHandler {
	if now == nil {
		now = clock.Real()
	}
	return &ContactHandler{DB: db, Notifier: notifier, Now: now}
}

// AttachmentRequest references a file uploaded through the attachments endpoint.
type AttachmentRequest struct {
	URL      string `json:"url" binding:"required,url"`
	PublicID string `json:"publicId"`
}

// ContactRequest represents the public contact form.
type ContactRequest struct {
	Name        string              `json:"name" binding:"required,max=100"`
	Email       string              `json:"email" binding:"required,email"`
	Phone       string              `json:"phone" binding:"omitempty,max=30"`
	Subject     string              `json:"subject" binding:"required,max=200"`
	Message     string              `json:"message" binding:"required,max=5000"`
	Type        string              `json:"type" binding:"omitempty,oneof=general quote complaint support"`
	Attachments []AttachmentRequest `json:"attachments" binding:"max=5,dive"`
}

// SubmitContact stores a message as new and notifies staff.
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	var req ContactRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	kind := models.ContactType(req.Type)
	if kind == "" {
		kind = models.ContactGeneral
	}
	attachments := make([]models.Image, len(req.Attachments))
	for i, a := range req.Attachments {
		attachments[i] = models.Image{URL: a.URL, PublicID: a.PublicID}
	}
	contact := models.Contact{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       req.Phone,
		Subject:     strings.TrimSpace(req.Subject),
		Message:     req.Message,
		Type:        kind,
		Status:      models.ContactNew,
		Attachments: datatypes.JSONSlice[models.Image](attachments),
	}
	if err := h.DB.Create(&contact).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if h.Notifier != nil {
		h.Notifier.NotifyAdmin(mailer.ContactReceived(&contact))
	}
	utils.Created(c, "Message sent successfully", contact)
}

// GetContacts lists messages with status and type filters (admin).
func (h *ContactHandler) GetContacts(c *gin.Context) {
	q := h.DB.Model(&models.Contact{})
	if status := c.Query("status"); status != "" {
		if !models.ContactStatus(status).Valid() {
			_ = c.Error(apperror.Field("status", "status must be one of: new, read, replied, closed"))
			return
		}
		q = q.Where("status = ?", status)
	}
	if kind := c.Query("type"); kind != "" {
		q = q.Where("type = ?", kind)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(subject) LIKE ?", like, like, like)
	}

	p := utils.ParsePagination(c)
	var contacts []models.Contact
	total, err := utils.Paginate(q.Order("created_at DESC"), p, &contacts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.List(c, contacts, len(contacts), p, total)
}

// GetContact returns a message and marks it read if it was new (admin).
func (h *ContactHandler) GetContact(c *gin.Context) {
	var contact models.Contact
	if err := h.DB.First(&contact, "id = ?", c.Param("id")).Error; err != nil {
		_ = c.Error(notFound(err, "Contact not found"))
		return
	}
	if contact.Status == models.ContactNew {
		if err := h.DB.Model(&contact).Where("status = ?", models.ContactNew).
			UpdateColumn("status", models.ContactRead).Error; err != nil {
			_ = c.Error(err)
			return
		}
		contact.Status = models.ContactRead
	}
	utils.Success(c, "", contact)
}

// ContactStatusRequest changes the handling state of a message.
type ContactStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=new read replied closed"`
}

// UpdateContactStatus sets the status of a message (admin).
func (h *ContactHandler) UpdateContactStatus(c *gin.Context) {
	var req ContactStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	var contact models.Contact
	if err := h.DB.First(&contact, "id = ?", c.Param("id")).Error; err != nil {
		_ = c.Error(notFound(err, "Contact not found"))
		return
	}
	contact.Status = models.ContactStatus(req.Status)
	if err := h.DB.Model(&contact).UpdateColumn("status", contact.Status).Error; err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Contact status updated", contact)
}

// ContactReplyRequest is the staff answer to a message.
type ContactReplyRequest struct {
	Message string `json:"message" binding:"required,max=5000"`
}

// ReplyToContact emails the sender and records the reply (admin).
func (h *ContactHandler) ReplyToContact(c *gin.Context) {
	var req ContactReplyRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	var contact models.Contact
	if err := h.DB.First(&contact, "id = ?", c.Param("id")).Error; err != nil {
		_ = c.Error(notFound(err, "Contact not found"))
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	now := h.Now().UTC().Truncate(time.Second)
	contact.Reply = models.ContactReply{Message: req.Message, RepliedBy: &userID, RepliedAt: &now}
	contact.Status = models.ContactReplied
	if err := h.DB.Save(&contact).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if h.Notifier != nil {
		h.Notifier.Dispatch(mailer.ContactReply(&contact, req.Message))
	}
	utils.Success(c, "Reply sent successfully", contact)
}

// DeleteContact removes a message (admin).
func (h *ContactHandler) DeleteContact(c *gin.Context) {
	res := h.DB.Where("id = ?", c.Param("id")).Delete(&models.Contact{})
	if res.Error != nil {
		_ = c.Error(res.Error)
		return
	}
	if res.RowsAffected == 0 {
		_ = c.Error(apperror.NotFound("Contact not found"))
		return
	}
	utils.Success(c, "Contact deleted successfully", nil)
}
