// Package testutil builds in-memory databases and seed records for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"autorepair-shop-server/internal/config"
	"autorepair-shop-server/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbCounter atomic.Int64

// NewDB opens a private in-memory SQLite database with the schema migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := models.Open(sqlite.Open(dsn), false)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Config returns a configuration suitable for handler tests.
func Config() *config.Config {
	return &config.Config{
		Port:                      "0",
		Environment:               "test",
		JWTSecret:                 "test-secret",
		JWTRefreshSecret:          "test-refresh-secret",
		JWTExpirationMinutes:      60,
		JWTRefreshExpirationHours: 24,
		RateLimit:                 config.RateLimitConfig{Window: time.Minute, Max: 1000},
		Reminders:                 config.ReminderConfig{Interval: time.Minute, Lead: 24 * time.Hour},
		Storage:                   config.StorageConfig{Folder: "test"},
		ShopLocation:              time.UTC,
	}
}

// CreateUser stores an active user with the given role. The password is "password123".
func CreateUser(t testing.TB, db *gorm.DB, role models.Role, email string) *models.User {
	t.Helper()
	user := &models.User{
		Name:          string(role) + " user",
		Email:         email,
		Role:          role,
		PreferredLang: models.LocaleDefault,
		IsActive:      true,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateService stores an active service.
func CreateService(t testing.TB, db *gorm.DB, name string) *models.Service {
	t.Helper()
	service := &models.Service{
		Name:        models.NewText(name, name+" (ar)"),
		Description: models.NewText("Description of "+name, "وصف"),
		Slug:        fmt.Sprintf("%s-%d", "service", dbCounter.Add(1)),
		Category:    "maintenance",
		Price:       decimal.RequireFromString("150.00"),
		Duration:    60,
		IsActive:    true,
	}
	require.NoError(t, db.Create(service).Error)
	return service
}

// CreateBooking stores a booking directly, bypassing the workflow rules.
func CreateBooking(t testing.TB, db *gorm.DB, customer *models.User, service *models.Service, date models.Date, at string, status models.BookingStatus) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		CustomerID:      customer.ID,
		ServiceID:       service.ID,
		AppointmentDate: date,
		AppointmentTime: at,
		Status:          status,
		Priority:        models.PriorityMedium,
		Car:             models.CarInfo{Make: "Toyota", Model: "Camry", Year: 2020},
		Issue: models.IssueInfo{
			Description: models.NewText("Strange noise", "صوت غريب"),
			Urgency:     models.UrgencyMedium,
		},
		EstimatedCost:     service.Price,
		EstimatedDuration: service.Duration,
	}
	require.NoError(t, db.Create(booking).Error)
	return booking
}
