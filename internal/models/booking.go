package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in-progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingNoShow     BookingStatus = "no-show"
)

// ActiveBookingStatuses hold a slot against availability.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingInProgress}

// IsActive reports whether the status counts against slot availability.
func (s BookingStatus) IsActive() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingInProgress
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingInProgress, BookingCompleted, BookingCancelled, BookingNoShow:
		return true
	}
	return false
}

// Priority of a booking, set by staff.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Urgency is the customer's own assessment of the issue.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// CancellationWindow is the minimum lead time a booking must still have to be cancellable.
const CancellationWindow = 2 * time.Hour

// AppointmentTimePattern validates a 24-hour HH:MM time.
var AppointmentTimePattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// BookingSlots are the fixed hourly appointment times, in display order.
var BookingSlots = []string{
	"08:00", "09:00", "10:00", "11:00", "12:00", "13:00",
	"14:00", "15:00", "16:00", "17:00", "18:00",
}

// CarInfo is a snapshot of the customer's car taken at booking time.
type CarInfo struct {
	Make         string `gorm:"size:60;not null" json:"make"`
	Model        string `gorm:"size:60;not null" json:"model"`
	Year         int    `gorm:"not null" json:"year"`
	VIN          string `gorm:"size:17" json:"vin,omitempty"`
	LicensePlate string `gorm:"size:20" json:"licensePlate,omitempty"`
	Mileage      int    `json:"mileage,omitempty"`
	Color        string `gorm:"size:30" json:"color,omitempty"`
}

// IssueInfo describes the reported problem.
type IssueInfo struct {
	Description LocalizedText               `gorm:"embedded;embeddedPrefix:description_" json:"description"`
	Symptoms    datatypes.JSONSlice[string] `json:"symptoms,omitempty"`
	Urgency     Urgency                     `gorm:"size:10;default:'medium'" json:"urgency"`
}

// Cancellation is recorded when a booking is cancelled.
type Cancellation struct {
	Reason       LocalizedText       `gorm:"embedded;embeddedPrefix:reason_" json:"reason"`
	CancelledBy  string              `gorm:"size:36" json:"cancelledBy"`
	CancelledAt  *time.Time          `json:"cancelledAt"`
	RefundAmount decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"refundAmount"`
}

// BookingRating is the customer's score after completion.
type BookingRating struct {
	Score   int           `json:"score"`
	Comment LocalizedText `gorm:"embedded;embeddedPrefix:comment_" json:"comment"`
	RatedAt *time.Time    `json:"ratedAt"`
}

// Booking is an appointment for a service at a fixed slot.
type Booking struct {
	BaseModel
	CustomerID   string  `gorm:"size:36;index;not null" json:"customerId"`
	ServiceID    string  `gorm:"size:36;index;not null" json:"serviceId"`
	TechnicianID *string `gorm:"size:36;index" json:"technicianId,omitempty"`
	ProjectID    *string `gorm:"size:36" json:"projectId,omitempty"`

	AppointmentDate Date   `gorm:"index:idx_booking_slot;not null" json:"appointmentDate"`
	AppointmentTime string `gorm:"size:5;index:idx_booking_slot;not null" json:"appointmentTime"`
	// SlotKey is set while the booking is active and cleared otherwise; its
	// unique index makes double-booking impossible at the storage layer.
	SlotKey *string `gorm:"size:20;uniqueIndex" json:"-"`

	Status   BookingStatus `gorm:"size:20;default:'pending';index;not null" json:"status"`
	Priority Priority      `gorm:"size:10;default:'medium'" json:"priority"`

	Car   CarInfo   `gorm:"embedded;embeddedPrefix:car_" json:"car"`
	Issue IssueInfo `gorm:"embedded;embeddedPrefix:issue_" json:"issue"`

	EstimatedCost     decimal.Decimal     `gorm:"type:decimal(10,2)" json:"estimatedCost"`
	EstimatedDuration int                 `json:"estimatedDuration"`
	ActualCost        decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"actualCost"`
	ActualDuration    *int                `json:"actualDuration,omitempty"`

	Cancellation *Cancellation  `gorm:"embedded;embeddedPrefix:cancellation_" json:"cancellation,omitempty"`
	Rating       *BookingRating `gorm:"embedded;embeddedPrefix:rating_" json:"rating,omitempty"`

	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Customer   *User         `gorm:"foreignKey:CustomerID" json:"-"`
	Service    *Service      `gorm:"foreignKey:ServiceID" json:"-"`
	Technician *User         `gorm:"foreignKey:TechnicianID" json:"-"`
	Notes      []BookingNote `gorm:"foreignKey:BookingID" json:"notes"`
}

// BeforeSave keeps SlotKey in step with the status on every create and save.
func (b *Booking) BeforeSave(tx *gorm.DB) error {
	if b.Status == "" {
		b.Status = BookingPending
	}
	if b.Status.IsActive() {
		key := SlotKey(b.AppointmentDate, b.AppointmentTime)
		b.SlotKey = &key
	} else {
		b.SlotKey = nil
	}
	return nil
}

// AfterFind drops embedded blocks that were loaded as all-NULL columns.
func (b *Booking) AfterFind(tx *gorm.DB) error {
	if b.Cancellation != nil && b.Cancellation.CancelledAt == nil {
		b.Cancellation = nil
	}
	if b.Rating != nil && b.Rating.RatedAt == nil {
		b.Rating = nil
	}
	return nil
}

// SlotKey identifies a (date, time) pair.
func SlotKey(date Date, appointmentTime string) string {
	return date.String() + "|" + NormalizeTime(appointmentTime)
}

// NormalizeTime pads the hour so "9:00" and "09:00" name the same slot.
func NormalizeTime(value string) string {
	if !AppointmentTimePattern.MatchString(value) {
		return value
	}
	hour, minute := splitClock(value)
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func splitClock(value string) (int, int) {
	for i := 0; i < len(value); i++ {
		if value[i] == ':' {
			h, _ := strconv.Atoi(value[:i])
			m, _ := strconv.Atoi(value[i+1:])
			return h, m
		}
	}
	return 0, 0
}

// AppointmentDateTime combines the appointment date and time in loc.
func (b *Booking) AppointmentDateTime(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	hour, minute := splitClock(b.AppointmentTime)
	d := b.AppointmentDate
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

// CanBeCancelled is true only for pending or confirmed bookings with more
// than CancellationWindow left before the appointment.
func (b *Booking) CanBeCancelled(now time.Time, loc *time.Location) bool {
	if b.Status != BookingPending && b.Status != BookingConfirmed {
		return false
	}
	return b.AppointmentDateTime(loc).Sub(now) > CancellationWindow
}

// BookingNote is an append-only remark on a booking.
type BookingNote struct {
	BaseModel
	BookingID  string        `gorm:"size:36;index;not null" json:"-"`
	Text       LocalizedText `gorm:"embedded;embeddedPrefix:text_" json:"text"`
	AuthorID   string        `gorm:"size:36;not null" json:"author"`
	IsInternal bool          `gorm:"default:false" json:"isInternal"`
}

// ReminderChannel names how a reminder is delivered.
type ReminderChannel string

const ReminderEmail ReminderChannel = "email"

// BookingReminder is a pending or sent notification ahead of an appointment.
type BookingReminder struct {
	BaseModel
	BookingID    string          `gorm:"size:36;index;not null" json:"bookingId"`
	Channel      ReminderChannel `gorm:"size:10;not null" json:"channel"`
	ScheduledFor time.Time       `gorm:"index;not null" json:"scheduledFor"`
	SentAt       *time.Time      `gorm:"index" json:"sentAt,omitempty"`

	Booking *Booking `gorm:"foreignKey:BookingID" json:"-"`
}

// OwnerID is the booking's customer.
func (b *Booking) OwnerID() string { return b.CustomerID }

// AssigneeID is the assigned technician, or empty.
func (b *Booking) AssigneeID() string {
	if b.TechnicianID == nil {
		return ""
	}
	return *b.TechnicianID
}
