package handlers

import (
	"context"
	"net/http"
	"time"

	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdminHandler serves the dashboard and the health probe.
type AdminHandler struct {
	DB       *gorm.DB
	Now      clock.Func
	Location *time.Location
	started  time.Time
}

// NewAdminHandler creates a new AdminHandler. Today's bookings are counted in loc.
func NewAdminHandler(db *gorm.DB, now clock.Func, loc *time.Location) *AdminHandler {
	if now == nil {
		now = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{DB: db, Now: now, Location: loc, started: now()}
}

// DashboardStats is the payload of GetStats.
type DashboardStats struct {
	Bookings       map[models.BookingStatus]int64 `json:"bookings"`
	TotalBookings  int64                          `json:"totalBookings"`
	TodayBookings  int64                          `json:"todayBookings"`
	NewContacts    int64                          `json:"newContacts"`
	PendingReviews int64                          `json:"pendingReviews"`
	Customers      int64                          `json:"customers"`
	Revenue        decimal.Decimal                `json:"revenue"`
}

// GetStats aggregates the admin dashboard counters.
func (h *AdminHandler) GetStats(c *gin.Context) {
	db := h.DB.WithContext(c.Request.Context())
	stats := DashboardStats{Bookings: make(map[models.BookingStatus]int64)}

	var rows []struct {
		Status models.BookingStatus
		Count  int64
	}
	if err := db.Model(&models.Booking{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		_ = c.Error(err)
		return
	}
	for _, r := range rows {
		stats.Bookings[r.Status] = r.Count
		stats.TotalBookings += r.Count
	}

	today := models.DateOf(h.Now().In(h.Location))
	if err := db.Model(&models.Booking{}).Where("appointment_date = ?", today).Count(&stats.TodayBookings).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if err := db.Model(&models.Contact{}).Where("status = ?", models.ContactNew).Count(&stats.NewContacts).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if err := db.Model(&models.Review{}).Where("status = ?", models.ReviewPending).Count(&stats.PendingReviews).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleCustomer).Count(&stats.Customers).Error; err != nil {
		_ = c.Error(err)
		return
	}

	var revenue decimal.NullDecimal
	if err := db.Model(&models.Booking{}).
		Select("SUM(actual_cost)").
		Where("status = ?", models.BookingCompleted).
		Row().Scan(&revenue); err != nil {
		_ = c.Error(err)
		return
	}
	stats.Revenue = revenue.Decimal
	utils.Success(c, "", stats)
}

// Health reports liveness and database reachability.
func (h *AdminHandler) Health(c *gin.Context) {
	status, code := "UP", http.StatusOK
	database := "up"
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status, code, database = "DEGRADED", http.StatusServiceUnavailable, "down"
	}
	now := h.Now()
	c.JSON(code, gin.H{
		"status":    status,
		"database":  database,
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(h.started).Round(time.Second).String(),
	})
}
