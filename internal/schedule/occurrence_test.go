package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/birthday-outbox/internal/model"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := model.LoadZone(name)
	require.NoError(t, err)
	return loc
}

func mustBirth(t *testing.T, s string) model.BirthDate {
	t.Helper()
	d, err := model.ParseBirthDate(s)
	require.NoError(t, err)
	return d
}

func TestNextOccurrenceScenarios(t *testing.T) {
	tests := []struct {
		name  string
		birth string
		zone  string
		ref   func(loc *time.Location) time.Time
		want  time.Time
	}{
		{
			name:  "before nine on the day stays in the same year",
			birth: "2000-10-01",
			zone:  "America/New_York",
			ref: func(loc *time.Location) time.Time {
				return time.Date(2025, 10, 1, 8, 0, 0, 0, loc)
			},
			want: time.Date(2025, 10, 1, 13, 0, 0, 0, time.UTC),
		},
		{
			name:  "after nine on the day moves to next year",
			birth: "1999-10-01",
			zone:  "Australia/Melbourne",
			ref: func(loc *time.Location) time.Time {
				return time.Date(2025, 10, 1, 10, 0, 0, 0, loc)
			},
			want: time.Date(2026, 9, 30, 23, 0, 0, 0, time.UTC),
		},
		{
			name:  "exactly nine is not strictly later",
			birth: "1990-05-20",
			zone:  "UTC",
			ref: func(loc *time.Location) time.Time {
				return time.Date(2025, 5, 20, 9, 0, 0, 0, loc)
			},
			want: time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "winter reference with summer anniversary",
			birth: "1985-07-04",
			zone:  "America/New_York",
			ref: func(*time.Location) time.Time {
				return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
			},
			want: time.Date(2025, 7, 4, 13, 0, 0, 0, time.UTC),
		},
		{
			name:  "summer reference with winter anniversary",
			birth: "1985-12-25",
			zone:  "America/New_York",
			ref: func(*time.Location) time.Time {
				return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
			},
			want: time.Date(2025, 12, 25, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "local year differs from utc year",
			birth: "1970-01-01",
			zone:  "Pacific/Auckland",
			ref: func(*time.Location) time.Time {
				return time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC)
			},
			want: time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC),
		},
		{
			name:  "leap day skips to next leap year",
			birth: "2000-02-29",
			zone:  "UTC",
			ref: func(loc *time.Location) time.Time {
				return time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
			},
			want: time.Date(2028, 2, 29, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "leap day after nine in a leap year",
			birth: "2000-02-29",
			zone:  "UTC",
			ref: func(loc *time.Location) time.Time {
				return time.Date(2028, 2, 29, 9, 0, 0, 0, loc)
			},
			want: time.Date(2032, 2, 29, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := mustZone(t, tt.zone)

			got, err := NextOccurrence(mustBirth(t, tt.birth), loc, tt.ref(loc))
			require.NoError(t, err)

			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNextOccurrenceProperties(t *testing.T) {
	zones := []string{
		"America/New_York",
		"Australia/Melbourne",
		"Europe/London",
		"Asia/Kolkata",
		"Asia/Kathmandu",
		"America/St_Johns",
		"Pacific/Kiritimati",
		"Pacific/Pago_Pago",
	}
	births := []string{"1990-01-01", "1984-03-09", "1975-03-30", "2001-06-15", "1999-10-05", "1960-11-02", "2010-12-31"}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, zone := range zones {
		loc := mustZone(t, zone)
		for _, b := range births {
			birth := mustBirth(t, b)
			for ref := start; ref.Year() < 2027; ref = ref.Add(97*time.Hour + 13*time.Minute) {
				got, err := NextOccurrence(birth, loc, ref)
				require.NoError(t, err)

				local := got.In(loc)
				require.True(t, got.After(ref), "%s %s ref=%s got=%s", zone, b, ref, got)
				require.Equal(t, birth.Month, local.Month(), "%s %s ref=%s", zone, b, ref)
				require.Equal(t, birth.Day, local.Day(), "%s %s ref=%s", zone, b, ref)
				require.Equal(t, DeliveryHour, local.Hour())
				require.Zero(t, local.Minute())
				require.Zero(t, local.Second())
				require.Zero(t, local.Nanosecond())

				refLocal := ref.In(loc)
				sameYear := time.Date(refLocal.Year(), birth.Month, birth.Day, DeliveryHour, 0, 0, 0, loc)
				if ref.Before(sameYear) {
					require.Equal(t, refLocal.Year(), local.Year())
				} else {
					require.Equal(t, refLocal.Year()+1, local.Year())
				}
			}
		}
	}
}

func TestNextOccurrenceRejectsInvalidInput(t *testing.T) {
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := NextOccurrence(model.BirthDate{Month: time.April, Day: 31}, time.UTC, ref)
	require.ErrorIs(t, err, model.ErrInvalidBirthDate)

	_, err = NextOccurrence(model.BirthDate{Month: 13, Day: 1}, time.UTC, ref)
	require.ErrorIs(t, err, model.ErrInvalidBirthDate)

	_, err = NextOccurrence(model.BirthDate{Month: time.May, Day: 1}, nil, ref)
	require.ErrorIs(t, err, model.ErrInvalidTimeZone)
}

func TestLocalInstantForwardGap(t *testing.T) {
	loc := mustZone(t, "America/New_York")

	// 02:00 on 2025-03-09 does not exist in New York; clocks jump to 03:00 EDT.
	got := localInstant(2025, time.March, 9, 2, loc)
	assert.True(t, time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC).Equal(got), "got %s", got.UTC())
	assert.Equal(t, 3, got.Hour())

	// Deterministic across calls.
	assert.True(t, got.Equal(localInstant(2025, time.March, 9, 2, loc)))

	regular := localInstant(2025, time.March, 9, DeliveryHour, loc)
	assert.True(t, time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC).Equal(regular))
}

func TestNext(t *testing.T) {
	ref := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	p := &model.Person{FirstName: "A", LastName: "B", BirthDate: "2000-10-01", TimeZone: "America/New_York"}

	got, err := Next(p, ref)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 10, 1, 13, 0, 0, 0, time.UTC).Equal(got))

	p.TimeZone = "Nowhere/Special"
	_, err = Next(p, ref)
	require.ErrorIs(t, err, model.ErrInvalidTimeZone)

	p.TimeZone = "UTC"
	p.BirthDate = "2000-02-30"
	_, err = Next(p, ref)
	require.ErrorIs(t, err, model.ErrInvalidBirthDate)
}

func TestIsBirthdayToday(t *testing.T) {
	loc := mustZone(t, "Europe/London")
	now := time.Date(2025, 3, 5, 13, 0, 0, 0, loc)

	assert.True(t, IsBirthdayToday(mustBirth(t, "2001-03-05"), loc, now))
	assert.False(t, IsBirthdayToday(mustBirth(t, "2001-03-06"), loc, now))

	tokyo := mustZone(t, "Asia/Tokyo")
	assert.True(t, IsBirthdayToday(mustBirth(t, "2001-03-06"), tokyo, time.Date(2025, 3, 5, 16, 0, 0, 0, time.UTC)))
}

func TestMessage(t *testing.T) {
	p := &model.Person{FirstName: "Grace", LastName: "Hopper"}
	assert.Equal(t, "Hey, Grace Hopper, it’s your birthday", Message(p))
}
