package form

import (
	"fmt"
	"time"

	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

// Countdown renders the time left until start as "1D : 2H : 3M : 4S", or
// "Event Started" once start is reached.
func Countdown(now, start time.Time) string {
	diff := start.Sub(now)
	if diff <= 0 {
		return "Event Started"
	}
	secs := int64(diff / time.Second)
	days := secs / 86400
	hours := secs / 3600 % 24
	minutes := secs / 60 % 60
	seconds := secs % 60
	return fmt.Sprintf("%dD : %dH : %dM : %dS", days, hours, minutes, seconds)
}

// IsOpen reports whether the event accepts registrations at now. The
// organizer must have explicitly left toggleForm off, and the event must
// not have started.
func IsOpen(ev *model.EventDescriptor, now time.Time) bool {
	if ev.ToggleForm == nil || *ev.ToggleForm {
		return false
	}
	if !ev.StartDate.IsZero() && now.After(ev.StartDate.Time) {
		return false
	}
	return true
}

// DateRange renders the event dates, collapsing a single-day event.
func DateRange(ev *model.EventDescriptor) string {
	const layout = "02/01/2006"
	if ev.StartDate.IsZero() {
		return ""
	}
	start := ev.StartDate.Format(layout)
	if ev.EndDate.IsZero() || ev.EndDate.Format(layout) == start {
		return start
	}
	return start + " - " + ev.EndDate.Format(layout)
}
