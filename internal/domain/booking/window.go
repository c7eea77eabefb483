package booking

import (
	"fmt"
	"time"

	"github.com/rentora/service-booking/internal/platform/domain"
)

const (
	// DateLayout is the wire format of calendar dates.
	DateLayout = "2006-01-02"
	timeLayout = "15:04"

	// DefaultPickupTime is used when a request carries a start date only.
	DefaultPickupTime = "09:00"
	// DefaultReturnTime is used when a request carries an end date only.
	DefaultReturnTime = "17:00"
)

// Window is the rental period. Both ends carry date and time of day in UTC.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResolveWindow parses date and optional time-of-day strings, substituting the
// default pickup and return times when a time is absent.
func ResolveWindow(startDate, startTime, endDate, endTime string) (Window, error) {
	if startTime == "" {
		startTime = DefaultPickupTime
	}
	if endTime == "" {
		endTime = DefaultReturnTime
	}

	start, err := time.ParseInLocation(DateLayout+" "+timeLayout, startDate+" "+startTime, time.UTC)
	if err != nil {
		return Window{}, domain.NewValidationError(fmt.Sprintf("invalid start %q %q", startDate, startTime))
	}
	end, err := time.ParseInLocation(DateLayout+" "+timeLayout, endDate+" "+endTime, time.UTC)
	if err != nil {
		return Window{}, domain.NewValidationError(fmt.Sprintf("invalid end %q %q", endDate, endTime))
	}
	return NewWindow(start, end)
}

// NewWindow validates that end is after start.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start.UTC(), End: end.UTC()}
	if w.Start.IsZero() || w.End.IsZero() {
		return Window{}, domain.NewValidationError("start and end are required")
	}
	if !w.End.After(w.Start) {
		return Window{}, domain.NewValidationError("end must be after start")
	}
	return w, nil
}

// Hours returns the exact elapsed hours.
func (w Window) Hours() float64 {
	return w.End.Sub(w.Start).Hours()
}

// Dates returns every calendar date (UTC midnight) touched by the window, inclusive of both ends.
func (w Window) Dates() []time.Time {
	first := TruncateDate(w.Start)
	last := TruncateDate(w.End)
	var dates []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Key identifies the window for serialization purposes.
func (w Window) Key() string {
	return w.Start.Format(time.RFC3339) + "/" + w.End.Format(time.RFC3339)
}

// TruncateDate returns UTC midnight of t's date.
func TruncateDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// AssessRisk returns a low-weight duration heuristic in [0,1]. It is advisory only.
func AssessRisk(w Window) float64 {
	hours := w.Hours()
	switch {
	case hours <= hoursPerDay:
		return 0.1
	case hours <= hoursPerDay*daysPerWeek:
		return 0.2
	case hours <= hoursPerDay*daysPerMonth:
		return 0.35
	default:
		return 0.5
	}
}
