// Package schedule computes when a birthday notification is due.
//
// All arithmetic is done on civil dates resolved in the person's own zone at
// construction time, never with a fixed UTC offset, so an anniversary that
// falls on the other side of a daylight-saving change still lands on 09:00
// local time.
package schedule

import (
	"fmt"
	"time"

	"github.com/jnst/birthday-outbox/internal/model"
)

// DeliveryHour is the local wall-clock hour notifications are sent at.
const DeliveryHour = 9

// maxLeapSearch bounds the year scan for February 29 birth dates. Gregorian
// leap years are at most eight years apart (e.g. 2096 and 2104).
const maxLeapSearch = 9

// NextOccurrence returns the first instant strictly after ref that is
// 09:00 local time in loc on the birth month and day.
//
// A February 29 birth date only recurs in leap years. If 09:00 does not exist
// on that day because of a forward transition, the wall clock is read with
// the offset in force before the transition, which moves the instant forward
// by the size of the gap.
func NextOccurrence(birth model.BirthDate, loc *time.Location, ref time.Time) (time.Time, error) {
	if loc == nil {
		return time.Time{}, model.ErrInvalidTimeZone
	}

	if !validMonthDay(birth.Month, birth.Day) {
		return time.Time{}, fmt.Errorf("%w: %s", model.ErrInvalidBirthDate, birth)
	}

	year := ref.In(loc).Year()
	for i := 0; i <= maxLeapSearch; i++ {
		y := year + i
		if birth.IsLeapDay() && !isLeap(y) {
			continue
		}

		candidate := localInstant(y, birth.Month, birth.Day, DeliveryHour, loc)
		if candidate.After(ref) {
			return model.StorageInstant(candidate), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: no occurrence of %s after %s", model.ErrInvalidBirthDate, birth, ref)
}

// Next parses the stored birth date and zone of p and computes its next
// occurrence after ref.
func Next(p *model.Person, ref time.Time) (time.Time, error) {
	birth, err := model.ParseBirthDate(p.BirthDate)
	if err != nil {
		return time.Time{}, err
	}

	loc, err := model.LoadZone(p.TimeZone)
	if err != nil {
		return time.Time{}, err
	}

	return NextOccurrence(birth, loc, ref)
}

// IsBirthdayToday reports whether now, seen in loc, falls on the birth month and day.
func IsBirthdayToday(birth model.BirthDate, loc *time.Location, now time.Time) bool {
	local := now.In(loc)
	return local.Month() == birth.Month && local.Day() == birth.Day
}

// Message builds the notification text captured at enqueue time.
func Message(p *model.Person) string {
	return fmt.Sprintf("Hey, %s, it’s your birthday", p.FullName())
}

// localInstant resolves the wall clock y-m-d hour:00 in loc.
func localInstant(y int, m time.Month, d, hour int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, hour, 0, 0, 0, loc)
	if h, mm, s := t.Clock(); h == hour && mm == 0 && s == 0 && t.Day() == d {
		return t
	}

	// The wall clock is in a gap.
	wall := time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
	_, before := wall.Add(-24 * time.Hour).In(loc).Zone()

	return wall.Add(-time.Duration(before) * time.Second).In(loc)
}

// validMonthDay checks m/d against a leap year so February 29 is accepted.
func validMonthDay(m time.Month, d int) bool {
	if m < time.January || m > time.December || d < 1 {
		return false
	}

	return time.Date(2000, m, d, 0, 0, 0, 0, time.UTC).Day() == d
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
