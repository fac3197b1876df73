package mailer

import (
	"fmt"
	"html"
	"time"

	"autorepair-shop-server/internal/models"
)

func page(locale, title, body string) string {
	dir := "ltr"
	if locale == models.LocaleArabic {
		dir = "rtl"
	}
	return fmt.Sprintf(`<div dir="%s" style="font-family:Arial,sans-serif"><h2>%s</h2>%s</div>`, dir, html.EscapeString(title), body)
}

func pick(locale, en, ar string) string {
	if locale == models.LocaleArabic {
		return ar
	}
	return en
}

func bookingDetails(locale string, b *models.Booking) string {
	service := ""
	if b.Service != nil {
		service = b.Service.Name.Resolve(locale)
	}
	return fmt.Sprintf(`<p>%s: %s<br>%s: %s %s<br>%s: %s %s %d</p>`,
		pick(locale, "Service", "الخدمة"), html.EscapeString(service),
		pick(locale, "Appointment", "الموعد"), b.AppointmentDate.String(), html.EscapeString(b.AppointmentTime),
		pick(locale, "Car", "السيارة"), html.EscapeString(b.Car.Make), html.EscapeString(b.Car.Model), b.Car.Year,
	)
}

// Welcome greets a newly registered customer.
func Welcome(user *models.User) Message {
	locale := models.NormalizeLocale(user.PreferredLang)
	title := pick(locale, "Welcome to our auto repair shop", "مرحباً بك في ورشتنا")
	body := fmt.Sprintf("<p>%s %s</p>", pick(locale, "Hello", "مرحباً"), html.EscapeString(user.Name))
	return Message{To: user.Email, Subject: title, HTML: page(locale, title, body)}
}

// BookingReceived acknowledges a new booking to its customer.
func BookingReceived(user *models.User, b *models.Booking) Message {
	locale := models.NormalizeLocale(user.PreferredLang)
	title := pick(locale, "We received your booking", "تم استلام حجزك")
	body := bookingDetails(locale, b) + "<p>" + pick(locale,
		"We will confirm your appointment shortly.",
		"سنقوم بتأكيد موعدك قريباً.") + "</p>"
	return Message{To: user.Email, Subject: title, HTML: page(locale, title, body)}
}

// BookingConfirmed tells the customer the shop accepted the booking.
func BookingConfirmed(user *models.User, b *models.Booking) Message {
	locale := models.NormalizeLocale(user.PreferredLang)
	title := pick(locale, "Your booking is confirmed", "تم تأكيد حجزك")
	return Message{To: user.Email, Subject: title, HTML: page(locale, title, bookingDetails(locale, b))}
}

// BookingCancelled tells the customer the booking was cancelled and why.
func BookingCancelled(user *models.User, b *models.Booking) Message {
	locale := models.NormalizeLocale(user.PreferredLang)
	title := pick(locale, "Your booking was cancelled", "تم إلغاء حجزك")
	reason := ""
	if b.Cancellation != nil {
		reason = b.Cancellation.Reason.Resolve(locale)
	}
	body := bookingDetails(locale, b) + fmt.Sprintf("<p>%s: %s</p>", pick(locale, "Reason", "السبب"), html.EscapeString(reason))
	return Message{To: user.Email, Subject: title, HTML: page(locale, title, body)}
}

// BookingStatusChanged reports progress on the job.
func BookingStatusChanged(user *models.User, b *models.Booking) Message {
	locale := models.NormalizeLocale(user.PreferredLang)
	title := pick(locale, "Booking update", "تحديث الحجز")
	body := bookingDetails(locale, b) + fmt.Sprintf("<p>%s: %s</p>", pick(locale, "Status", "الحالة"), html.EscapeString(string(b.Status)))
	return Message{To: user.Email, Subject: title, HTML: page(locale, title, body)}
}

// BookingReminder is sent ahead of a confirmed appointment.
func BookingReminder(user *models.User, b *models.Booking, at time.Time) Message {
	locale := models.NormalizeLocale(user.PreferredLang)
	title := pick(locale, "Appointment reminder", "تذكير بالموعد")
	body := bookingDetails(locale, b) + fmt.Sprintf("<p>%s %s</p>",
		pick(locale, "We look forward to seeing you at", "نتطلع لرؤيتك في"), at.Format("2006-01-02 15:04"))
	return Message{To: user.Email, Subject: title, HTML: page(locale, title, body)}
}

// ContactReceived notifies staff of a new contact form submission.
func ContactReceived(c *models.Contact) Message {
	title := "New contact message: " + c.Subject
	body := fmt.Sprintf("<p>%s &lt;%s&gt; (%s)</p><p>%s</p>",
		html.EscapeString(c.Name), html.EscapeString(c.Email), html.EscapeString(string(c.Type)), html.EscapeString(c.Message))
	return Message{Subject: title, HTML: page(models.LocaleDefault, title, body)}
}

// ContactReply sends the staff answer to the original sender.
func ContactReply(c *models.Contact, reply string) Message {
	title := "Re: " + c.Subject
	body := fmt.Sprintf("<p>%s</p><hr><blockquote>%s</blockquote>", html.EscapeString(reply), html.EscapeString(c.Message))
	return Message{To: c.Email, Subject: title, HTML: page(models.LocaleDefault, title, body)}
}
