package services

import (
	"context"
	"testing"
	"time"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/policy"
	"autorepair-shop-server/internal/testutil"
	"autorepair-shop-server/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type BookingServiceSuite struct {
	suite.Suite
	db         *gorm.DB
	clock      *clock.Fake
	svc        *BookingService
	admin      *models.User
	customer   *models.User
	other      *models.User
	technician *models.User
	service    *models.Service
	ctx        context.Context
}

// 2026-03-10 09:00 UTC
var suiteStart = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

var defaultPage = utils.Pagination{Page: 1, Limit: 10}

func (s *BookingServiceSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.clock = clock.NewFake(suiteStart)
	s.svc = NewBookingService(s.db, BookingOptions{Now: s.clock.Now, Location: time.UTC})
	s.admin = testutil.CreateUser(s.T(), s.db, models.RoleAdmin, "admin@shop.test")
	s.customer = testutil.CreateUser(s.T(), s.db, models.RoleCustomer, "customer@shop.test")
	s.other = testutil.CreateUser(s.T(), s.db, models.RoleCustomer, "other@shop.test")
	s.technician = testutil.CreateUser(s.T(), s.db, models.RoleTechnician, "tech@shop.test")
	s.service = testutil.CreateService(s.T(), s.db, "Oil change")
	s.ctx = context.Background()
}

func subjectOf(u *models.User) policy.Subject {
	return policy.Subject{ID: u.ID, Role: u.Role}
}

func (s *BookingServiceSuite) input(date models.Date, at string) CreateBookingInput {
	return CreateBookingInput{
		ServiceID:       s.service.ID,
		AppointmentDate: date,
		AppointmentTime: at,
		Car:             models.CarInfo{Make: "Nissan", Model: "Patrol", Year: 2019},
		Issue:           models.IssueInfo{Description: models.NewText("Brakes squeal", "")},
	}
}

func (s *BookingServiceSuite) tomorrow() models.Date {
	return models.DateOf(suiteStart).AddDays(1)
}

func (s *BookingServiceSuite) TestAvailableSlotsExcludesActiveBookings() {
	date := s.tomorrow()
	testutil.CreateBooking(s.T(), s.db, s.customer, s.service, date, "10:00", models.BookingConfirmed)
	testutil.CreateBooking(s.T(), s.db, s.customer, s.service, date, "11:00", models.BookingCancelled)
	testutil.CreateBooking(s.T(), s.db, s.customer, s.service, date, "12:00", models.BookingCompleted)

	slots, err := s.svc.AvailableSlots(s.ctx, date)
	s.Require().NoError(err)
	s.Equal([]string{"10:00"}, slots.BookedSlots)
	s.Len(slots.AvailableSlots, len(models.BookingSlots)-1)
	s.NotContains(slots.AvailableSlots, "10:00")
	s.Contains(slots.AvailableSlots, "11:00")
	s.Contains(slots.AvailableSlots, "12:00")
}

func (s *BookingServiceSuite) TestAvailableSlotsFullyBookedDay() {
	date := s.tomorrow()
	for _, slot := range models.BookingSlots {
		testutil.CreateBooking(s.T(), s.db, s.customer, s.service, date, slot, models.BookingPending)
	}

	slots, err := s.svc.AvailableSlots(s.ctx, date)
	s.Require().NoError(err)
	s.NotNil(slots.AvailableSlots)
	s.Empty(slots.AvailableSlots)
	s.Len(slots.BookedSlots, len(models.BookingSlots))
	s.Equal(models.BookingSlots, slots.BookedSlots)

	_, err = s.svc.Create(s.ctx, subjectOf(s.other), s.input(date, "18:00"))
	s.Equal(apperror.KindConflict, apperror.KindOf(err))
}

func (s *BookingServiceSuite) TestAvailableSlotsIsRepeatable() {
	date := s.tomorrow()
	first, err := s.svc.AvailableSlots(s.ctx, date)
	s.Require().NoError(err)
	second, err := s.svc.AvailableSlots(s.ctx, date)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(models.BookingSlots, first.AvailableSlots)
	s.Empty(first.BookedSlots)
}

func (s *BookingServiceSuite) TestCreateDefaultsAndSnapshotsService() {
	booking, err := s.svc.Create(s.ctx, subjectOf(s.customer), s.input(s.tomorrow(), "9:00"))
	s.Require().NoError(err)

	s.Equal(models.BookingPending, booking.Status)
	s.Equal(models.PriorityMedium, booking.Priority)
	s.Equal(models.UrgencyMedium, booking.Issue.Urgency)
	s.Equal("09:00", booking.AppointmentTime)
	s.Equal(s.customer.ID, booking.CustomerID)
	s.True(booking.EstimatedCost.Equal(s.service.Price))
	s.Equal(s.service.Duration, booking.EstimatedDuration)
	s.Require().NotNil(booking.Customer)
	s.Require().NotNil(booking.SlotKey)
	s.Equal(s.tomorrow().String()+"|09:00", *booking.SlotKey)
}

func (s *BookingServiceSuite) TestCreateRejectsUnknownOrInactiveService() {
	in := s.input(s.tomorrow(), "10:00")
	in.ServiceID = "missing"
	_, err := s.svc.Create(s.ctx, subjectOf(s.customer), in)
	s.Equal(apperror.KindNotFound, apperror.KindOf(err))

	s.Require().NoError(s.db.Model(s.service).UpdateColumn("is_active", false).Error)
	_, err = s.svc.Create(s.ctx, subjectOf(s.customer), s.input(s.tomorrow(), "10:00"))
	s.Equal(apperror.KindNotFound, apperror.KindOf(err))
}

func (s *BookingServiceSuite) TestCreateRejectsPastAppointments() {
	today := models.DateOf(suiteStart)

	_, err := s.svc.Create(s.ctx, subjectOf(s.customer), s.input(today.AddDays(-1), "10:00"))
	s.Require().Error(err)
	var appErr *apperror.Error
	s.Require().ErrorAs(err, &appErr)
	s.Equal(apperror.KindValidation, appErr.Kind)
	s.Equal("Appointment date cannot be in the past", appErr.Message)
	s.Require().Len(appErr.Fields, 1)
	s.Equal("appointmentDate", appErr.Fields[0].Field)

	// Earlier today is also in the past.
	_, err = s.svc.Create(s.ctx, subjectOf(s.customer), s.input(today, "08:00"))
	s.Equal(apperror.KindValidation, apperror.KindOf(err))

	_, err = s.svc.Create(s.ctx, subjectOf(s.customer), s.input(today, "15:00"))
	s.NoError(err)
}

func (s *BookingServiceSuite) TestCreateRejectsDoubleBooking() {
	date := s.tomorrow()
	_, err := s.svc.Create(s.ctx, subjectOf(s.customer), s.input(date, "10:00"))
	s.Require().NoError(err)

	_, err = s.svc.Create(s.ctx, subjectOf(s.other), s.input(date, "10:00"))
	s.Require().Error(err)
	s.Equal(apperror.KindConflict, apperror.KindOf(err))
	s.Equal("This time slot is already booked", err.Error())

	var count int64
	s.Require().NoError(s.db.Model(&models.Booking{}).Count(&count).Error)
	s.EqualValues(1, count)
}

func (s *BookingServiceSuite) TestCancelledSlotCanBeRebooked() {
	date := s.tomorrow()
	first, err := s.svc.Create(s.ctx, subjectOf(s.customer), s.input(date, "10:00"))
	s.Require().NoError(err)
	_, err = s.svc.Cancel(s.ctx, subjectOf(s.customer), first.ID, models.LocalizedText{})
	s.Require().NoError(err)

	second, err := s.svc.Create(s.ctx, subjectOf(s.other), s.input(date, "10:00"))
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)
}

func (s *BookingServiceSuite) TestSlotKeyUniqueAtStorageLevel() {
	date := s.tomorrow()
	testutil.CreateBooking(s.T(), s.db, s.customer, s.service, date, "14:00", models.BookingPending)

	dup := &models.Booking{
		CustomerID:      s.other.ID,
		ServiceID:       s.service.ID,
		AppointmentDate: date,
		AppointmentTime: "14:00",
		Status:          models.BookingConfirmed,
		Car:             models.CarInfo{Make: "Kia", Model: "Rio", Year: 2018},
	}
	err := s.db.Create(dup).Error
	s.ErrorIs(err, gorm.ErrDuplicatedKey)

	// Inactive rows never hold the key.
	dup.ID = ""
	dup.Status = models.BookingCancelled
	s.NoError(s.db.Create(dup).Error)
}

func (s *BookingServiceSuite) TestAdminBooksOnBehalfOfCustomer() {
	in := s.input(s.tomorrow(), "16:00")
	in.CustomerID = s.customer.ID
	booking, err := s.svc.Create(s.ctx, subjectOf(s.admin), in)
	s.Require().NoError(err)
	s.Equal(s.customer.ID, booking.CustomerID)

	in = s.input(s.tomorrow(), "17:00")
	in.CustomerID = s.customer.ID
	_, err = s.svc.Create(s.ctx, subjectOf(s.other), in)
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))
}

func (s *BookingServiceSuite) TestCancelWindowBoundary() {
	// Appointment at 11:00 today, two hours after the clock.
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, models.DateOf(suiteStart), "11:00", models.BookingPending)

	_, err := s.svc.Cancel(s.ctx, subjectOf(s.customer), b.ID, models.LocalizedText{})
	s.Require().Error(err)
	s.Equal(apperror.KindValidation, apperror.KindOf(err))

	// The window applies to admins too.
	_, err = s.svc.Cancel(s.ctx, subjectOf(s.admin), b.ID, models.LocalizedText{})
	s.Equal(apperror.KindValidation, apperror.KindOf(err))

	s.clock.Set(suiteStart.Add(-time.Minute))
	cancelled, err := s.svc.Cancel(s.ctx, subjectOf(s.customer), b.ID, models.LocalizedText{})
	s.Require().NoError(err)
	s.Equal(models.BookingCancelled, cancelled.Status)
	s.Nil(cancelled.SlotKey)
	s.Require().NotNil(cancelled.Cancellation)
	s.Equal(DefaultCancelReason, cancelled.Cancellation.Reason.Default)
	s.Equal(DefaultCancelReasonAr, cancelled.Cancellation.Reason.Ar)
	s.Equal(s.customer.ID, cancelled.Cancellation.CancelledBy)
}

func (s *BookingServiceSuite) TestCancelChecksOwnershipBeforeWindow() {
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, models.DateOf(suiteStart), "10:00", models.BookingPending)

	_, err := s.svc.Cancel(s.ctx, subjectOf(s.other), b.ID, models.LocalizedText{})
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))

	_, err = s.svc.Cancel(s.ctx, subjectOf(s.customer), "missing", models.LocalizedText{})
	s.Equal(apperror.KindNotFound, apperror.KindOf(err))
}

func (s *BookingServiceSuite) TestCancelKeepsGivenReason() {
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, s.tomorrow(), "10:00", models.BookingConfirmed)
	cancelled, err := s.svc.Cancel(s.ctx, subjectOf(s.admin), b.ID, models.NewText("Parts unavailable", ""))
	s.Require().NoError(err)
	s.Equal("Parts unavailable", cancelled.Cancellation.Reason.Default)
	s.Equal(DefaultCancelReasonAr, cancelled.Cancellation.Reason.Ar)

	reloaded, err := s.svc.Get(s.ctx, subjectOf(s.admin), b.ID)
	s.Require().NoError(err)
	s.Require().NotNil(reloaded.Cancellation)
	s.Equal("Parts unavailable", reloaded.Cancellation.Reason.Default)
	s.False(reloaded.CanBeCancelled(s.clock.Now(), time.UTC))
}

func (s *BookingServiceSuite) TestConfirmSchedulesReminder() {
	date := models.DateOf(suiteStart).AddDays(3)
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, date, "10:00", models.BookingPending)

	_, err := s.svc.Confirm(s.ctx, subjectOf(s.customer), b.ID)
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))

	confirmed, err := s.svc.Confirm(s.ctx, subjectOf(s.admin), b.ID)
	s.Require().NoError(err)
	s.Equal(models.BookingConfirmed, confirmed.Status)
	s.NotNil(confirmed.ConfirmedAt)

	var reminders []models.BookingReminder
	s.Require().NoError(s.db.Where("booking_id = ?", b.ID).Find(&reminders).Error)
	s.Require().Len(reminders, 1)
	want := b.AppointmentDateTime(time.UTC).Add(-24 * time.Hour)
	s.True(want.Equal(reminders[0].ScheduledFor), "scheduled %s, want %s", reminders[0].ScheduledFor, want)

	_, err = s.svc.Confirm(s.ctx, subjectOf(s.admin), b.ID)
	s.Equal(apperror.KindValidation, apperror.KindOf(err))
}

func (s *BookingServiceSuite) TestConfirmCloseAppointmentRemindsNow() {
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, models.DateOf(suiteStart), "15:00", models.BookingPending)
	_, err := s.svc.Confirm(s.ctx, subjectOf(s.admin), b.ID)
	s.Require().NoError(err)

	var reminder models.BookingReminder
	s.Require().NoError(s.db.Where("booking_id = ?", b.ID).First(&reminder).Error)
	s.True(suiteStart.Equal(reminder.ScheduledFor))
}

func (s *BookingServiceSuite) TestAssignTechnician() {
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, s.tomorrow(), "10:00", models.BookingConfirmed)

	_, err := s.svc.AssignTechnician(s.ctx, subjectOf(s.admin), b.ID, s.customer.ID)
	s.Equal(apperror.KindValidation, apperror.KindOf(err))

	_, err = s.svc.AssignTechnician(s.ctx, subjectOf(s.admin), b.ID, "missing")
	s.Equal(apperror.KindNotFound, apperror.KindOf(err))

	_, err = s.svc.AssignTechnician(s.ctx, subjectOf(s.technician), b.ID, s.technician.ID)
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))

	assigned, err := s.svc.AssignTechnician(s.ctx, subjectOf(s.admin), b.ID, s.technician.ID)
	s.Require().NoError(err)
	s.Equal(s.technician.ID, assigned.AssigneeID())

	list, total, err := s.svc.ListForTechnician(s.ctx, subjectOf(s.technician), "", "", defaultPage)
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(b.ID, list[0].ID)
}

func (s *BookingServiceSuite) TestListForTechnicianScopes() {
	assigned := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, s.tomorrow(), "10:00", models.BookingConfirmed)
	testutil.CreateBooking(s.T(), s.db, s.customer, s.service, s.tomorrow(), "11:00", models.BookingConfirmed)
	_, err := s.svc.AssignTechnician(s.ctx, subjectOf(s.admin), assigned.ID, s.technician.ID)
	s.Require().NoError(err)

	// A technician cannot look at someone else's queue.
	list, total, err := s.svc.ListForTechnician(s.ctx, subjectOf(s.technician), s.admin.ID, "", defaultPage)
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(assigned.ID, list[0].ID)

	list, total, err = s.svc.ListForTechnician(s.ctx, subjectOf(s.admin), s.technician.ID, "", defaultPage)
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(assigned.ID, list[0].ID)

	_, total, err = s.svc.ListForTechnician(s.ctx, subjectOf(s.admin), "", "", defaultPage)
	s.Require().NoError(err)
	s.EqualValues(1, total, "unassigned bookings are left out")

	_, _, err = s.svc.ListForTechnician(s.ctx, subjectOf(s.customer), "", "", defaultPage)
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))
}

func (s *BookingServiceSuite) TestStatusTransitions() {
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, s.tomorrow(), "10:00", models.BookingConfirmed)
	techID := s.technician.ID
	s.Require().NoError(s.db.Model(b).UpdateColumn("technician_id", techID).Error)

	_, err := s.svc.UpdateStatus(s.ctx, subjectOf(s.customer), b.ID, UpdateStatusInput{Status: models.BookingInProgress})
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))

	_, err = s.svc.UpdateStatus(s.ctx, subjectOf(s.technician), b.ID, UpdateStatusInput{Status: models.BookingCompleted})
	s.Equal(apperror.KindValidation, apperror.KindOf(err))

	started, err := s.svc.UpdateStatus(s.ctx, subjectOf(s.technician), b.ID, UpdateStatusInput{Status: models.BookingInProgress})
	s.Require().NoError(err)
	s.Equal(models.BookingInProgress, started.Status)
	s.NotNil(started.StartedAt)
	s.NotNil(started.SlotKey)

	cost := decimal.RequireFromString("320.50")
	minutes := 95
	done, err := s.svc.UpdateStatus(s.ctx, subjectOf(s.technician), b.ID, UpdateStatusInput{
		Status: models.BookingCompleted, ActualCost: &cost, ActualDuration: &minutes,
	})
	s.Require().NoError(err)
	s.Equal(models.BookingCompleted, done.Status)
	s.Nil(done.SlotKey)
	s.True(done.ActualCost.Valid)
	s.True(done.ActualCost.Decimal.Equal(cost))
	s.Equal(95, *done.ActualDuration)

	_, err = s.svc.UpdateStatus(s.ctx, subjectOf(s.admin), b.ID, UpdateStatusInput{Status: models.BookingCancelled})
	s.Equal(apperror.KindValidation, apperror.KindOf(err))
}

func (s *BookingServiceSuite) TestNoShowIsAdminOnly() {
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, s.tomorrow(), "10:00", models.BookingPending)
	s.Require().NoError(s.db.Model(b).UpdateColumn("technician_id", s.technician.ID).Error)

	_, err := s.svc.UpdateStatus(s.ctx, subjectOf(s.technician), b.ID, UpdateStatusInput{Status: models.BookingNoShow})
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))

	updated, err := s.svc.UpdateStatus(s.ctx, subjectOf(s.admin), b.ID, UpdateStatusInput{Status: models.BookingNoShow})
	s.Require().NoError(err)
	s.Equal(models.BookingNoShow, updated.Status)
}

func (s *BookingServiceSuite) TestNotes() {
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, s.tomorrow(), "10:00", models.BookingPending)

	_, err := s.svc.AddNote(s.ctx, subjectOf(s.customer), b.ID, models.NewText("secret", ""), true)
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))

	_, err = s.svc.AddNote(s.ctx, subjectOf(s.other), b.ID, models.NewText("hi", ""), false)
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))

	_, err = s.svc.AddNote(s.ctx, subjectOf(s.customer), b.ID, models.LocalizedText{}, false)
	s.Equal(apperror.KindValidation, apperror.KindOf(err))

	_, err = s.svc.AddNote(s.ctx, subjectOf(s.customer), b.ID, models.NewText("Please call first", ""), false)
	s.Require().NoError(err)
	withNotes, err := s.svc.AddNote(s.ctx, subjectOf(s.admin), b.ID, models.NewText("Customer is a regular", ""), true)
	s.Require().NoError(err)
	s.Require().Len(withNotes.Notes, 2)
	s.Equal("Please call first", withNotes.Notes[0].Text.Default)
	s.True(withNotes.Notes[1].IsInternal)
}

func (s *BookingServiceSuite) TestRateOnceAfterCompletion() {
	b := testutil.CreateBooking(s.T(), s.db, s.customer, s.service, s.tomorrow(), "10:00", models.BookingConfirmed)

	_, err := s.svc.Rate(s.ctx, subjectOf(s.customer), b.ID, 5, models.LocalizedText{})
	s.Equal(apperror.KindValidation, apperror.KindOf(err))

	s.Require().NoError(s.db.Model(b).UpdateColumns(map[string]interface{}{
		"status": models.BookingCompleted, "slot_key": nil,
	}).Error)

	_, err = s.svc.Rate(s.ctx, subjectOf(s.other), b.ID, 5, models.LocalizedText{})
	s.Equal(apperror.KindForbidden, apperror.KindOf(err))

	rated, err := s.svc.Rate(s.ctx, subjectOf(s.customer), b.ID, 4, models.NewText("Quick work", ""))
	s.Require().NoError(err)
	s.Require().NotNil(rated.Rating)
	s.Equal(4, rated.Rating.Score)

	_, err = s.svc.Rate(s.ctx, subjectOf(s.customer), b.ID, 5, models.LocalizedText{})
	s.Equal(apperror.KindConflict, apperror.KindOf(err))
}

func (s *BookingServiceSuite) TestListFilters() {
	date := s.tomorrow()
	testutil.CreateBooking(s.T(), s.db, s.customer, s.service, date, "10:00", models.BookingPending)
	testutil.CreateBooking(s.T(), s.db, s.customer, s.service, date, "11:00", models.BookingConfirmed)
	testutil.CreateBooking(s.T(), s.db, s.other, s.service, date.AddDays(1), "10:00", models.BookingPending)

	all, total, err := s.svc.List(s.ctx, BookingFilter{}, defaultPage)
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Len(all, 3)

	_, total, err = s.svc.List(s.ctx, BookingFilter{Status: models.BookingPending, Date: date}, defaultPage)
	s.Require().NoError(err)
	s.EqualValues(1, total)

	mine, total, err := s.svc.ListForCustomer(s.ctx, subjectOf(s.customer), "", defaultPage)
	s.Require().NoError(err)
	s.EqualValues(2, total)
	for _, b := range mine {
		s.Equal(s.customer.ID, b.CustomerID)
	}
}

func TestBookingServiceSuite(t *testing.T) {
	suite.Run(t, new(BookingServiceSuite))
}

func TestGetHidesOtherCustomersBookings(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewBookingService(db, BookingOptions{Now: clock.NewFake(suiteStart).Now})
	owner := testutil.CreateUser(t, db, models.RoleCustomer, "owner@shop.test")
	stranger := testutil.CreateUser(t, db, models.RoleCustomer, "stranger@shop.test")
	tech := testutil.CreateUser(t, db, models.RoleTechnician, "t@shop.test")
	service := testutil.CreateService(t, db, "Alignment")
	b := testutil.CreateBooking(t, db, owner, service, models.DateOf(suiteStart).AddDays(2), "09:00", models.BookingPending)

	_, err := svc.Get(context.Background(), subjectOf(owner), b.ID)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), subjectOf(stranger), b.ID)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, err = svc.Get(context.Background(), subjectOf(tech), b.ID)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
}
