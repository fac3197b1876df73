package models

import (
	"time"

	"gorm.io/datatypes"
)

// ContactType classifies an inbound message.
type ContactType string

const (
	ContactGeneral   ContactType = "general"
	ContactQuote     ContactType = "quote"
	ContactComplaint ContactType = "complaint"
	ContactSupport   ContactType = "support"
)

// ContactStatus tracks the handling of a message.
type ContactStatus string

const (
	ContactNew     ContactStatus = "new"
	ContactRead    ContactStatus = "read"
	ContactReplied ContactStatus = "replied"
	ContactClosed  ContactStatus = "closed"
)

// Valid reports whether s is a known status.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactRead, ContactReplied, ContactClosed:
		return true
	}
	return false
}

// ContactReply records the staff answer sent to the sender.
type ContactReply struct {
	Message   string     `gorm:"type:text" json:"message"`
	RepliedBy *string    `gorm:"size:36" json:"repliedBy,omitempty"`
	RepliedAt *time.Time `json:"repliedAt,omitempty"`
}

// Contact is a message submitted through the public contact form.
type Contact struct {
	BaseModel
	Name        string                     `gorm:"size:100;not null" json:"name"`
	Email       string                     `gorm:"size:255;not null;index" json:"email"`
	Phone       string                     `gorm:"size:30" json:"phone,omitempty"`
	Subject     string                     `gorm:"size:200;not null" json:"subject"`
	Message     string                     `gorm:"type:text;not null" json:"message"`
	Type        ContactType                `gorm:"size:20;default:'general';index" json:"type"`
	Status      ContactStatus              `gorm:"size:20;default:'new';index" json:"status"`
	Attachments datatypes.JSONSlice[Image] `json:"attachments"`
	Reply       ContactReply               `gorm:"embedded;embeddedPrefix:reply_" json:"reply"`
}
