package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/mailer"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/testutil"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail map[string]bool
}

func (s *fakeSender) SendNow(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[msg.To] {
		return errors.New("smtp 451 try again later")
	}
	s.sent = append(s.sent, msg)
	return nil
}

var jobStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func remind(t *testing.T, db *gorm.DB, b *models.Booking, at time.Time) *models.BookingReminder {
	t.Helper()
	r := &models.BookingReminder{BookingID: b.ID, Channel: models.ReminderEmail, ScheduledFor: at}
	require.NoError(t, db.Create(r).Error)
	return r
}

func reload(t *testing.T, db *gorm.DB, id string) (*models.BookingReminder, bool) {
	t.Helper()
	var r models.BookingReminder
	err := db.First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	require.NoError(t, err)
	return &r, true
}

func TestReminderDispatcherRun(t *testing.T) {
	db := testutil.NewDB(t)
	service := testutil.CreateService(t, db, "Oil change")
	alice := testutil.CreateUser(t, db, models.RoleCustomer, "alice@shop.test")
	bob := testutil.CreateUser(t, db, models.RoleCustomer, "bob@shop.test")
	tomorrow := models.DateOf(jobStart).AddDays(1)

	confirmed := testutil.CreateBooking(t, db, alice, service, tomorrow, "10:00", models.BookingConfirmed)
	bounced := testutil.CreateBooking(t, db, bob, service, tomorrow, "11:00", models.BookingConfirmed)
	cancelled := testutil.CreateBooking(t, db, alice, service, tomorrow, "12:00", models.BookingCancelled)
	started := testutil.CreateBooking(t, db, alice, service, models.DateOf(jobStart), "08:00", models.BookingConfirmed)
	later := testutil.CreateBooking(t, db, alice, service, tomorrow.AddDays(5), "09:00", models.BookingConfirmed)

	due := remind(t, db, confirmed, jobStart.Add(-time.Minute))
	failing := remind(t, db, bounced, jobStart.Add(-time.Hour))
	stale := remind(t, db, cancelled, jobStart.Add(-time.Hour))
	past := remind(t, db, started, jobStart.Add(-2*time.Hour))
	notYet := remind(t, db, later, jobStart.Add(time.Hour))

	sender := &fakeSender{fail: map[string]bool{"bob@shop.test": true}}
	d := &ReminderDispatcher{
		DB:       db,
		Sender:   sender,
		Now:      clock.NewFake(jobStart).Now,
		Location: time.UTC,
	}

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{Sent: 1, Failed: 1, Dropped: 2}, res)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice@shop.test", sender.sent[0].To)
	assert.Equal(t, "Appointment reminder", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].HTML, "2026-03-11 10:00")

	r, ok := reload(t, db, due.ID)
	require.True(t, ok)
	require.NotNil(t, r.SentAt)
	assert.True(t, r.SentAt.Equal(jobStart))

	r, ok = reload(t, db, failing.ID)
	require.True(t, ok)
	assert.Nil(t, r.SentAt, "a failed send is retried on the next run")

	_, ok = reload(t, db, stale.ID)
	assert.False(t, ok)
	_, ok = reload(t, db, past.ID)
	assert.False(t, ok)

	r, ok = reload(t, db, notYet.ID)
	require.True(t, ok)
	assert.Nil(t, r.SentAt)

	// The next run only retries the failed one.
	sender.fail = nil
	res, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{Sent: 1}, res)
	assert.Equal(t, "bob@shop.test", sender.sent[1].To)
}

func TestReminderDispatcherBatchSize(t *testing.T) {
	db := testutil.NewDB(t)
	service := testutil.CreateService(t, db, "Tyres")
	customer := testutil.CreateUser(t, db, models.RoleCustomer, "c@shop.test")
	for i, at := range []string{"10:00", "11:00", "12:00"} {
		b := testutil.CreateBooking(t, db, customer, service, models.DateOf(jobStart).AddDays(1), at, models.BookingConfirmed)
		remind(t, db, b, jobStart.Add(-time.Duration(i+1)*time.Minute))
	}

	sender := &fakeSender{}
	d := &ReminderDispatcher{DB: db, Sender: sender, Now: clock.NewFake(jobStart).Now, Location: time.UTC, BatchSize: 2}
	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	// Oldest first.
	assert.Contains(t, sender.sent[0].HTML, "12:00")
}

func TestScheduleRegistersSingletonJob(t *testing.T) {
	s, err := gocron.NewScheduler()
	require.NoError(t, err)
	defer func() { _ = s.Shutdown() }()

	job, err := Schedule(s, time.Minute, &ReminderDispatcher{DB: testutil.NewDB(t), Sender: &fakeSender{}})
	require.NoError(t, err)
	assert.Equal(t, "booking-reminders", job.Name())
	assert.Len(t, s.Jobs(), 1)
}
