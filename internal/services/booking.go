// Package services holds the booking workflow and review rules that sit
// between the HTTP handlers and the database.
package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/logging"
	"autorepair-shop-server/internal/mailer"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/policy"
	"autorepair-shop-server/internal/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Default cancellation reasons, used when the caller gives none.
const (
	DefaultCancelReason   = "Cancelled by customer"
	DefaultCancelReasonAr = "تم الإلغاء من قبل العميل"
)

// Notifier dispatches best-effort email.
type Notifier interface {
	Dispatch(msg mailer.Message)
}

// BookingService implements the booking lifecycle.
type BookingService struct {
	db           *gorm.DB
	now          clock.Func
	loc          *time.Location
	notifier     Notifier
	authz        *policy.Authorizer
	reminderLead time.Duration
}

// BookingOptions configures a BookingService. Zero values fall back to
// the wall clock, UTC, the default policy table and no email.
type BookingOptions struct {
	Now          clock.Func
	Location     *time.Location
	Notifier     Notifier
	Authorizer   *policy.Authorizer
	ReminderLead time.Duration
}

func NewBookingService(db *gorm.DB, opts BookingOptions) *BookingService {
	s := &BookingService{
		db:           db,
		now:          opts.Now,
		loc:          opts.Location,
		notifier:     opts.Notifier,
		authz:        opts.Authorizer,
		reminderLead: opts.ReminderLead,
	}
	if s.now == nil {
		s.now = clock.Real()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.authz == nil {
		s.authz = policy.New(nil)
	}
	if s.reminderLead <= 0 {
		s.reminderLead = 24 * time.Hour
	}
	return s
}

// Location is the shop timezone appointments are interpreted in.
func (s *BookingService) Location() *time.Location { return s.loc }

// Now is the service clock.
func (s *BookingService) Now() time.Time { return s.now() }

// SlotAvailability is the answer to an availability query.
type SlotAvailability struct {
	Date           models.Date `json:"date"`
	AvailableSlots []string    `json:"availableSlots"`
	BookedSlots    []string    `json:"bookedSlots"`
}

// AvailableSlots lists the fixed slots of date not held by an active booking.
func (s *BookingService) AvailableSlots(ctx context.Context, date models.Date) (*SlotAvailability, error) {
	var times []string
	err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("appointment_date = ? AND status IN ?", date, models.ActiveBookingStatuses).
		Pluck("appointment_time", &times).Error
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(times))
	for _, t := range times {
		taken[models.NormalizeTime(t)] = true
	}

	result := &SlotAvailability{Date: date, AvailableSlots: []string{}, BookedSlots: []string{}}
	for _, slot := range models.BookingSlots {
		if !taken[slot] {
			result.AvailableSlots = append(result.AvailableSlots, slot)
		}
	}
	for t := range taken {
		result.BookedSlots = append(result.BookedSlots, t)
	}
	sort.Strings(result.BookedSlots)
	return result, nil
}

// CreateBookingInput is a validated booking request.
type CreateBookingInput struct {
	ServiceID       string
	CustomerID      string // admin bookings on behalf of a customer; empty means the caller
	AppointmentDate models.Date
	AppointmentTime string
	Car             models.CarInfo
	Issue           models.IssueInfo
	Priority        models.Priority
}

// Create validates and stores a booking. Checks run in order: service exists,
// appointment not in the past, slot free. The slot check and insert share a
// transaction and the unique slot key rejects any concurrent claim.
func (s *BookingService) Create(ctx context.Context, subject policy.Subject, in CreateBookingInput) (*models.Booking, error) {
	if err := s.authz.Authorize(subject, policy.BookingCreate, nil); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var service models.Service
	if err := db.Where("id = ? AND is_active = ?", in.ServiceID, true).First(&service).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Service not found")
		}
		return nil, err
	}

	customerID := subject.ID
	if in.CustomerID != "" && in.CustomerID != subject.ID {
		if subject.Role != models.RoleAdmin {
			return nil, apperror.Forbidden("Only admins can book on behalf of another customer")
		}
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", in.CustomerID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, apperror.NotFound("Customer not found")
		}
		customerID = in.CustomerID
	}

	booking := &models.Booking{
		CustomerID:        customerID,
		ServiceID:         service.ID,
		AppointmentDate:   in.AppointmentDate,
		AppointmentTime:   models.NormalizeTime(in.AppointmentTime),
		Status:            models.BookingPending,
		Priority:          in.Priority,
		Car:               in.Car,
		Issue:             in.Issue,
		EstimatedCost:     service.Price,
		EstimatedDuration: service.Duration,
	}
	if booking.Priority == "" {
		booking.Priority = models.PriorityMedium
	}
	if booking.Issue.Urgency == "" {
		booking.Issue.Urgency = models.UrgencyMedium
	}

	if booking.AppointmentDateTime(s.loc).Before(s.now()) {
		return nil, apperror.Field("appointmentDate", "Appointment date cannot be in the past")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var clash int64
		err := tx.Model(&models.Booking{}).
			Where("appointment_date = ? AND appointment_time = ? AND status IN ?",
				booking.AppointmentDate, booking.AppointmentTime, models.ActiveBookingStatuses).
			Count(&clash).Error
		if err != nil {
			return err
		}
		if clash > 0 {
			return errSlotTaken
		}
		return tx.Omit(clause.Associations).Create(booking).Error
	})
	if errors.Is(err, errSlotTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperror.Conflict("This time slot is already booked")
	}
	if err != nil {
		return nil, err
	}

	if err := s.load(db, booking, booking.ID); err != nil {
		return nil, err
	}
	if booking.Customer != nil {
		s.notify(mailer.BookingReceived(booking.Customer, booking))
	}
	logging.FromContext(ctx).Info("booking created",
		slog.String("booking_id", booking.ID),
		slog.String("slot", models.SlotKey(booking.AppointmentDate, booking.AppointmentTime)),
	)
	return booking, nil
}

var errSlotTaken = errors.New("slot taken")

// Get returns a booking the caller may see.
func (s *BookingService) Get(ctx context.Context, subject policy.Subject, id string) (*models.Booking, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(subject, policy.BookingRead, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// Cancel cancels a booking for its customer or an admin. Ownership is checked
// before the cancellation window, and the window applies to every caller.
func (s *BookingService) Cancel(ctx context.Context, subject policy.Subject, id string, reason models.LocalizedText) (*models.Booking, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(subject, policy.BookingCancel, booking); err != nil {
		return nil, err
	}

	now := s.now()
	if !booking.CanBeCancelled(now, s.loc) {
		return nil, apperror.Validation("Booking cannot be cancelled. Only pending or confirmed bookings more than 2 hours away can be cancelled")
	}

	if reason.Default == "" {
		reason.Default = DefaultCancelReason
	}
	if reason.Ar == "" {
		reason.Ar = DefaultCancelReasonAr
	}
	cancelledAt := now.UTC()
	booking.Status = models.BookingCancelled
	booking.Cancellation = &models.Cancellation{
		Reason:      reason,
		CancelledBy: subject.ID,
		CancelledAt: &cancelledAt,
	}
	if err := s.save(ctx, booking); err != nil {
		return nil, err
	}

	if booking.Customer != nil {
		s.notify(mailer.BookingCancelled(booking.Customer, booking))
	}
	return booking, nil
}

// Confirm moves a pending booking to confirmed and schedules its reminder.
func (s *BookingService) Confirm(ctx context.Context, subject policy.Subject, id string) (*models.Booking, error) {
	if err := s.authz.Authorize(subject, policy.BookingConfirm, nil); err != nil {
		return nil, err
	}
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingPending {
		return nil, apperror.Validation("Only pending bookings can be confirmed")
	}

	now := s.now().UTC()
	booking.Status = models.BookingConfirmed
	booking.ConfirmedAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(booking).Error; err != nil {
			return err
		}
		return s.scheduleReminder(tx, booking)
	})
	if err != nil {
		return nil, err
	}

	if booking.Customer != nil {
		s.notify(mailer.BookingConfirmed(booking.Customer, booking))
	}
	return booking, nil
}

// scheduleReminder replaces any unsent reminder of booking with one due
// reminderLead before the appointment, or immediately when that is already past.
func (s *BookingService) scheduleReminder(tx *gorm.DB, booking *models.Booking) error {
	if err := tx.Where("booking_id = ? AND sent_at IS NULL", booking.ID).Delete(&models.BookingReminder{}).Error; err != nil {
		return err
	}
	at := booking.AppointmentDateTime(s.loc)
	now := s.now()
	if !at.After(now) {
		return nil
	}
	due := at.Add(-s.reminderLead)
	if due.Before(now) {
		due = now
	}
	return tx.Create(&models.BookingReminder{
		BookingID:    booking.ID,
		Channel:      models.ReminderEmail,
		ScheduledFor: due.UTC(),
	}).Error
}

// AssignTechnician sets the technician working on an active booking.
func (s *BookingService) AssignTechnician(ctx context.Context, subject policy.Subject, id, technicianID string) (*models.Booking, error) {
	if err := s.authz.Authorize(subject, policy.BookingAssign, nil); err != nil {
		return nil, err
	}
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	var technician models.User
	if err := s.db.WithContext(ctx).First(&technician, "id = ?", technicianID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Technician not found")
		}
		return nil, err
	}
	if technician.Role != models.RoleTechnician {
		return nil, apperror.Field("technicianId", "Assigned user must have the technician role")
	}
	if !technician.IsActive {
		return nil, apperror.Field("technicianId", "Technician account is deactivated")
	}
	if !booking.Status.IsActive() {
		return nil, apperror.Validation("Only active bookings can be assigned")
	}

	booking.TechnicianID = &technician.ID
	booking.Technician = &technician
	if err := s.save(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// UpdateStatusInput moves a booking forward in its lifecycle.
type UpdateStatusInput struct {
	Status         models.BookingStatus
	ActualCost     *decimal.Decimal
	ActualDuration *int
}

// UpdateStatus applies confirmed->in-progress, in-progress->completed and
// active->no-show. Cancellation has its own operation.
func (s *BookingService) UpdateStatus(ctx context.Context, subject policy.Subject, id string, in UpdateStatusInput) (*models.Booking, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	action := policy.BookingUpdateStatus
	if in.Status == models.BookingNoShow {
		action = policy.BookingMarkNoShow
	}
	if err := s.authz.Authorize(subject, action, booking); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	switch {
	case in.Status == models.BookingInProgress && booking.Status == models.BookingConfirmed:
		booking.StartedAt = &now
	case in.Status == models.BookingCompleted && booking.Status == models.BookingInProgress:
		booking.CompletedAt = &now
		if in.ActualCost != nil {
			booking.ActualCost = decimal.NewNullDecimal(*in.ActualCost)
		}
		if in.ActualDuration != nil {
			booking.ActualDuration = in.ActualDuration
		}
	case in.Status == models.BookingNoShow && booking.Status.IsActive():
	case in.Status == models.BookingCancelled:
		return nil, apperror.Validation("Use the cancel endpoint to cancel a booking")
	default:
		return nil, apperror.Validation("Cannot change status from " + string(booking.Status) + " to " + string(in.Status))
	}

	booking.Status = in.Status
	if err := s.save(ctx, booking); err != nil {
		return nil, err
	}
	if booking.Customer != nil {
		s.notify(mailer.BookingStatusChanged(booking.Customer, booking))
	}
	return booking, nil
}

// AddNote appends a note. Only staff may write internal notes.
func (s *BookingService) AddNote(ctx context.Context, subject policy.Subject, id string, text models.LocalizedText, internal bool) (*models.Booking, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	action := policy.BookingAddNote
	if internal {
		action = policy.BookingAddInternalNote
	}
	if err := s.authz.Authorize(subject, action, booking); err != nil {
		return nil, err
	}
	if text.IsZero() {
		return nil, apperror.Field("text", "Note text is required")
	}

	note := models.BookingNote{BookingID: booking.ID, Text: text, AuthorID: subject.ID, IsInternal: internal}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Rate records the customer's score once the job is done. A booking is rated once.
func (s *BookingService) Rate(ctx context.Context, subject policy.Subject, id string, score int, comment models.LocalizedText) (*models.Booking, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(subject, policy.BookingRate, booking); err != nil {
		return nil, err
	}
	if booking.Status != models.BookingCompleted {
		return nil, apperror.Validation("Only completed bookings can be rated")
	}
	if booking.Rating != nil {
		return nil, apperror.Conflict("Booking has already been rated")
	}
	if score < 1 || score > 5 {
		return nil, apperror.Field("score", "score must be between 1 and 5")
	}

	ratedAt := s.now().UTC()
	booking.Rating = &models.BookingRating{Score: score, Comment: comment, RatedAt: &ratedAt}
	if err := s.save(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// BookingFilter narrows booking lists.
type BookingFilter struct {
	Status       models.BookingStatus
	CustomerID   string
	TechnicianID string
	Assigned     bool
	Date         models.Date
	From         models.Date
	To           models.Date
}

func (f BookingFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CustomerID != "" {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.TechnicianID != "" {
		q = q.Where("technician_id = ?", f.TechnicianID)
	}
	if f.Assigned {
		q = q.Where("technician_id IS NOT NULL")
	}
	if !f.Date.IsZero() {
		q = q.Where("appointment_date = ?", f.Date)
	}
	if !f.From.IsZero() {
		q = q.Where("appointment_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("appointment_date <= ?", f.To)
	}
	return q
}

// List pages through bookings, newest appointment first.
func (s *BookingService) List(ctx context.Context, f BookingFilter, p utils.Pagination) ([]models.Booking, int64, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&models.Booking{})).
		Preload("Customer").Preload("Service").Preload("Technician").
		Order("appointment_date DESC, appointment_time DESC")
	var bookings []models.Booking
	total, err := utils.Paginate(q, p, &bookings)
	return bookings, total, err
}

// ListForCustomer pages the caller's own bookings.
func (s *BookingService) ListForCustomer(ctx context.Context, subject policy.Subject, status models.BookingStatus, p utils.Pagination) ([]models.Booking, int64, error) {
	return s.List(ctx, BookingFilter{CustomerID: subject.ID, Status: status}, p)
}

// ListForTechnician pages the bookings assigned to a technician. Technicians
// always see their own; an admin names the technician, and without one gets
// every assigned booking.
func (s *BookingService) ListForTechnician(ctx context.Context, subject policy.Subject, technicianID string, status models.BookingStatus, p utils.Pagination) ([]models.Booking, int64, error) {
	if err := s.authz.Authorize(subject, policy.BookingListAssigned, nil); err != nil {
		return nil, 0, err
	}
	if subject.Role != models.RoleAdmin {
		technicianID = subject.ID
	}
	return s.List(ctx, BookingFilter{TechnicianID: technicianID, Assigned: true, Status: status}, p)
}

func (s *BookingService) find(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	if err := s.load(s.db.WithContext(ctx), &booking, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Booking not found")
		}
		return nil, err
	}
	return &booking, nil
}

func (s *BookingService) load(db *gorm.DB, booking *models.Booking, id string) error {
	return db.Preload("Customer").Preload("Service").Preload("Technician").
		Preload("Notes", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		First(booking, "id = ?", id).Error
}

// save writes every column but never the preloaded associations. A lost race
// on the slot key surfaces as a conflict.
func (s *BookingService) save(ctx context.Context, booking *models.Booking) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Save(booking).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("This time slot is already booked")
	}
	return err
}

func (s *BookingService) notify(msg mailer.Message) {
	if s.notifier != nil {
		s.notifier.Dispatch(msg)
	}
}
