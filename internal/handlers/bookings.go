package handlers

import (
	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/middleware"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/services"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BookingHandler exposes the booking workflow over HTTP.
type BookingHandler struct {
	Bookings *services.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{Bookings: bookings}
}

// CarRequest is the car snapshot sent with a booking.
type CarRequest struct {
	Make         string `json:"make" binding:"required,max=60"`
	Model        string `json:"model" binding:"required,max=60"`
	Year         int    `json:"year" binding:"required,caryear"`
	VIN          string `json:"vin" binding:"omitempty,max=17"`
	LicensePlate string `json:"licensePlate" binding:"omitempty,max=20"`
	Mileage      int    `json:"mileage" binding:"gte=0"`
	Color        string `json:"color" binding:"omitempty,max=30"`
}

// IssueRequest describes the problem in either or both languages.
type IssueRequest struct {
	Description   string   `json:"description" binding:"required_without=DescriptionAr,max=2000"`
	DescriptionAr string   `json:"descriptionAr" binding:"max=2000"`
	Symptoms      []string `json:"symptoms" binding:"max=20,dive,max=200"`
	Urgency       string   `json:"urgency" binding:"omitempty,oneof=low medium high"`
}

// CreateBookingRequest represents the request body for a new booking.
type CreateBookingRequest struct {
	Service         string       `json:"service" binding:"required"`
	Customer        string       `json:"customer"`
	AppointmentDate string       `json:"appointmentDate" binding:"required,ymd"`
	AppointmentTime string       `json:"appointmentTime" binding:"required,hhmm"`
	Car             CarRequest   `json:"car"`
	Issue           IssueRequest `json:"issue"`
	Priority        string       `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
}

// GetAvailableSlots answers which fixed slots of ?date= are free.
func (h *BookingHandler) GetAvailableSlots(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		_ = c.Error(apperror.Field("date", "date is required"))
		return
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		_ = c.Error(apperror.Field("date", "date must be a valid date (YYYY-MM-DD)"))
		return
	}

	slots, err := h.Bookings.AvailableSlots(c.Request.Context(), date)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "", slots)
}

// CreateBooking books a slot for the caller.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	date, err := models.ParseDate(req.AppointmentDate)
	if err != nil {
		_ = c.Error(apperror.Field("appointmentDate", err.Error()))
		return
	}

	booking, err := h.Bookings.Create(c.Request.Context(), middleware.Subject(c), services.CreateBookingInput{
		ServiceID:       req.Service,
		CustomerID:      req.Customer,
		AppointmentDate: date,
		AppointmentTime: req.AppointmentTime,
		Priority:        models.Priority(req.Priority),
		Car: models.CarInfo{
			Make:         req.Car.Make,
			Model:        req.Car.Model,
			Year:         req.Car.Year,
			VIN:          req.Car.VIN,
			LicensePlate: req.Car.LicensePlate,
			Mileage:      req.Car.Mileage,
			Color:        req.Car.Color,
		},
		Issue: models.IssueInfo{
			Description: models.NewText(req.Issue.Description, req.Issue.DescriptionAr),
			Symptoms:    datatypes.JSONSlice[string](req.Issue.Symptoms),
			Urgency:     models.Urgency(req.Issue.Urgency),
		},
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Created(c, "Booking created successfully", h.view(c, booking))
}

// GetBookings lists all bookings with filters (admin).
func (h *BookingHandler) GetBookings(c *gin.Context) {
	filter, ok := bookingFilter(c)
	if !ok {
		return
	}
	filter.CustomerID = c.Query("customer")
	p := utils.ParsePagination(c)
	bookings, total, err := h.Bookings.List(c.Request.Context(), filter, p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.List(c, h.views(c, bookings), len(bookings), p, total)
}

// GetMyBookings lists the caller's bookings.
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	filter, ok := bookingFilter(c)
	if !ok {
		return
	}
	p := utils.ParsePagination(c)
	bookings, total, err := h.Bookings.ListForCustomer(c.Request.Context(), middleware.Subject(c), filter.Status, p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.List(c, h.views(c, bookings), len(bookings), p, total)
}

// GetTechnicianBookings lists bookings assigned to the calling technician.
// Admins pick the technician with ?technician=.
func (h *BookingHandler) GetTechnicianBookings(c *gin.Context) {
	filter, ok := bookingFilter(c)
	if !ok {
		return
	}
	p := utils.ParsePagination(c)
	bookings, total, err := h.Bookings.ListForTechnician(c.Request.Context(), middleware.Subject(c), filter.TechnicianID, filter.Status, p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.List(c, h.views(c, bookings), len(bookings), p, total)
}

// GetBooking returns one booking to its customer, its technician or an admin.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.Bookings.Get(c.Request.Context(), middleware.Subject(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "", h.view(c, booking))
}

// CancelBookingRequest carries an optional reason in either language.
type CancelBookingRequest struct {
	Reason   string `json:"reason" binding:"max=500"`
	ReasonAr string `json:"reasonAr" binding:"max=500"`
}

// CancelBooking cancels within the cancellation window.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req CancelBookingRequest
	if !utils.BindOptional(c, &req) {
		return
	}
	booking, err := h.Bookings.Cancel(c.Request.Context(), middleware.Subject(c), c.Param("id"), models.NewText(req.Reason, req.ReasonAr))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Booking cancelled successfully", h.view(c, booking))
}

// ConfirmBooking confirms a pending booking (admin).
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	booking, err := h.Bookings.Confirm(c.Request.Context(), middleware.Subject(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Booking confirmed successfully", h.view(c, booking))
}

// AssignTechnicianRequest names the technician to assign.
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technicianId" binding:"required"`
}

// AssignTechnician assigns a technician (admin).
func (h *BookingHandler) AssignTechnician(c *gin.Context) {
	var req AssignTechnicianRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	booking, err := h.Bookings.AssignTechnician(c.Request.Context(), middleware.Subject(c), c.Param("id"), req.TechnicianID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Technician assigned successfully", h.view(c, booking))
}

// UpdateStatusRequest moves a booking along its lifecycle.
type UpdateStatusRequest struct {
	Status         string           `json:"status" binding:"required,oneof=in-progress completed no-show cancelled"`
	ActualCost     *decimal.Decimal `json:"actualCost"`
	ActualDuration *int             `json:"actualDuration" binding:"omitempty,gte=0"`
}

// UpdateBookingStatus applies a status transition (admin or assigned technician).
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.ActualCost != nil && req.ActualCost.IsNegative() {
		_ = c.Error(apperror.Field("actualCost", "actualCost must not be negative"))
		return
	}
	booking, err := h.Bookings.UpdateStatus(c.Request.Context(), middleware.Subject(c), c.Param("id"), services.UpdateStatusInput{
		Status:         models.BookingStatus(req.Status),
		ActualCost:     req.ActualCost,
		ActualDuration: req.ActualDuration,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Booking status updated successfully", h.view(c, booking))
}

// AddNoteRequest is a note in either or both languages.
type AddNoteRequest struct {
	Text       string `json:"text" binding:"required_without=TextAr,max=2000"`
	TextAr     string `json:"textAr" binding:"max=2000"`
	IsInternal bool   `json:"isInternal"`
}

// AddNote appends a note to a booking.
func (h *BookingHandler) AddNote(c *gin.Context) {
	var req AddNoteRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	booking, err := h.Bookings.AddNote(c.Request.Context(), middleware.Subject(c), c.Param("id"), models.NewText(req.Text, req.TextAr), req.IsInternal)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Created(c, "Note added successfully", h.view(c, booking))
}

// RateBookingRequest is the customer's post-completion score.
type RateBookingRequest struct {
	Score     int    `json:"score" binding:"required,gte=1,lte=5"`
	Comment   string `json:"comment" binding:"max=1000"`
	CommentAr string `json:"commentAr" binding:"max=1000"`
}

// RateBooking records the customer's score for a completed booking.
func (h *BookingHandler) RateBooking(c *gin.Context) {
	var req RateBookingRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	booking, err := h.Bookings.Rate(c.Request.Context(), middleware.Subject(c), c.Param("id"), req.Score, models.NewText(req.Comment, req.CommentAr))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.Success(c, "Booking rated successfully", h.view(c, booking))
}

func (h *BookingHandler) view(c *gin.Context, b *models.Booking) BookingView {
	role, _ := middleware.GetUserRoleFromContext(c)
	staff := role == models.RoleAdmin || role == models.RoleTechnician
	return NewBookingView(b, middleware.GetLocale(c), h.Bookings.Now(), h.Bookings.Location(), staff)
}

func (h *BookingHandler) views(c *gin.Context, bookings []models.Booking) []BookingView {
	out := make([]BookingView, len(bookings))
	for i := range bookings {
		out[i] = h.view(c, &bookings[i])
	}
	return out
}

// bookingFilter reads status, technician and date filters from the query.
func bookingFilter(c *gin.Context) (services.BookingFilter, bool) {
	var f services.BookingFilter
	if status := c.Query("status"); status != "" {
		if !models.BookingStatus(status).Valid() {
			_ = c.Error(apperror.Field("status", "status must be one of: pending, confirmed, in-progress, completed, cancelled, no-show"))
			return f, false
		}
		f.Status = models.BookingStatus(status)
	}
	f.TechnicianID = c.Query("technician")
	for key, dst := range map[string]*models.Date{"date": &f.Date, "from": &f.From, "to": &f.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		d, err := models.ParseDate(raw)
		if err != nil {
			_ = c.Error(apperror.Field(key, key+" must be a valid date (YYYY-MM-DD)"))
			return f, false
		}
		*dst = d
	}
	return f, true
}
