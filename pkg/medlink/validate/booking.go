package validate

import (
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DayLayout is the format of a booking date and of the doctor date filter
const DayLayout = "2006-01-02"

// BookingMonths is how far ahead an appointment can be booked
const BookingMonths = 3

// TimeSlots are the bookable start times of a day
var TimeSlots = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00",
}

// ParseDay parses a YYYY-MM-DD date in loc
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, &FieldError{Field: "date", Message: "Please select an appointment date"}
	}
	day, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, &FieldError{Field: "date", Message: "Please enter the date as YYYY-MM-DD"}
	}
	return day, nil
}

// ParseBooking parses day in now's location, then checks it with slot like Booking
func ParseBooking(day, slot string, now time.Time) (time.Time, error) {
	d, err := ParseDay(day, now.Location())
	if err == nil {
		return Booking(d, slot, now)
	}

	merr := multierror.Append(nil, err)
	if !slices.Contains(TimeSlots, slot) {
		merr = multierror.Append(merr, &FieldError{Field: "time", Message: "Please select an appointment time"})
	}
	return time.Time{}, wrap(merr)
}

// Booking checks a requested day and time slot against the booking rules and
// returns the combined start time. now decides what "today" is.
func Booking(day time.Time, slot string, now time.Time) (time.Time, error) {
	var merr *multierror.Error

	loc := now.Location()
	today := startOfDay(now)
	day = startOfDay(day.In(loc))

	if day.IsZero() {
		merr = multierror.Append(merr, &FieldError{Field: "date", Message: "Please select an appointment date"})
	} else {
		switch {
		case day.Before(today):
			merr = multierror.Append(merr, &FieldError{Field: "date", Message: "Please select a date from today onwards"})
		case day.After(today.AddDate(0, BookingMonths, 0)):
			merr = multierror.Append(merr, &FieldError{Field: "date",
				Message: fmt.Sprintf("Appointments can be booked at most %d months ahead", BookingMonths)})
		case day.Weekday() == time.Sunday:
			merr = multierror.Append(merr, &FieldError{Field: "date", Message: "Appointments are not available on Sundays"})
		}
	}

	if !slices.Contains(TimeSlots, slot) {
		merr = multierror.Append(merr, &FieldError{Field: "time", Message: "Please select an appointment time"})
	}

	if err := wrap(merr); err != nil {
		return time.Time{}, err
	}

	var hour, minute int
	fmt.Sscanf(slot, "%d:%d", &hour, &minute)
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	if !start.After(now) {
		return time.Time{}, wrap(multierror.Append(nil, &FieldError{Field: "time", Message: "Please select a time in the future"}))
	}
	return start, nil
}

func startOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
