// Package jobs runs background work on a gocron scheduler.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/mailer"
	"autorepair-shop-server/internal/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ReminderSender delivers one reminder and reports failure.
type ReminderSender interface {
	SendNow(ctx context.Context, msg mailer.Message) error
}

// ReminderDispatcher emails booking reminders that have come due.
type ReminderDispatcher struct {
	DB        *gorm.DB
	Sender    ReminderSender
	Now       clock.Func
	Location  *time.Location
	Logger    *slog.Logger
	BatchSize int
}

// DispatchResult counts what one run did.
type DispatchResult struct {
	Sent    int
	Failed  int
	Dropped int
}

// Run sends every due reminder of a still-active upcoming booking. Each
// reminder is claimed by stamping sent_at before sending, so concurrent
// runners never send the same one twice; a failed send releases the claim.
// Reminders of cancelled, finished or already-started bookings are deleted.
func (d *ReminderDispatcher) Run(ctx context.Context) (DispatchResult, error) {
	var result DispatchResult
	now := d.now()
	db := d.DB.WithContext(ctx)

	var due []models.BookingReminder
	err := db.Preload("Booking").Preload("Booking.Customer").Preload("Booking.Service").
		Where("sent_at IS NULL AND scheduled_for <= ?", now.UTC()).
		Order("scheduled_for ASC").
		Limit(d.batchSize()).
		Find(&due).Error
	if err != nil {
		return result, err
	}

	for i := range due {
		reminder := &due[i]
		booking := reminder.Booking
		if booking == nil || booking.Customer == nil || !booking.Status.IsActive() ||
			!booking.AppointmentDateTime(d.Location).After(now) {
			if err := db.Delete(&models.BookingReminder{}, "id = ?", reminder.ID).Error; err != nil {
				return result, err
			}
			result.Dropped++
			continue
		}

		stamp := now.UTC()
		claim := db.Model(&models.BookingReminder{}).
			Where("id = ? AND sent_at IS NULL", reminder.ID).
			UpdateColumn("sent_at", stamp)
		if claim.Error != nil {
			return result, claim.Error
		}
		if claim.RowsAffected == 0 {
			continue
		}

		msg := mailer.BookingReminder(booking.Customer, booking, booking.AppointmentDateTime(d.Location))
		if err := d.Sender.SendNow(ctx, msg); err != nil {
			d.logger().Warn("reminder delivery failed",
				slog.String("reminder_id", reminder.ID),
				slog.String("booking_id", booking.ID),
				slog.String("error", err.Error()),
			)
			if err := db.Model(&models.BookingReminder{}).Where("id = ?", reminder.ID).
				UpdateColumn("sent_at", gorm.Expr("NULL")).Error; err != nil {
				return result, err
			}
			result.Failed++
			continue
		}
		result.Sent++
	}
	return result, nil
}

func (d *ReminderDispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *ReminderDispatcher) batchSize() int {
	if d.BatchSize <= 0 {
		return 100
	}
	return d.BatchSize
}

func (d *ReminderDispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Schedule registers the dispatcher to run every interval. A run still in
// progress when the next one is due causes that one to be skipped.
func Schedule(s gocron.Scheduler, interval time.Duration, d *ReminderDispatcher) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			res, err := d.Run(ctx)
			if err != nil {
				d.logger().Error("reminder dispatch failed", slog.String("error", err.Error()))
				return
			}
			if res.Sent+res.Failed+res.Dropped > 0 {
				d.logger().Info("reminders dispatched",
					slog.Int("sent", res.Sent),
					slog.Int("failed", res.Failed),
					slog.Int("dropped", res.Dropped),
				)
			}
		}),
		gocron.WithName("booking-reminders"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
