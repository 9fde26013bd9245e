package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_ParseWeekday(t *testing.T) {
	day, err := ParseWeekday("Wednesday")
	require.NoError(t, err)
	require.Equal(t, time.Wednesday, day)

	day, err = ParseWeekday("friday")
	require.NoError(t, err)
	require.Equal(t, time.Friday, day)

	_, err = ParseWeekday("Saturday")
	require.Error(t, err)
}

func Test_WeekdaysBetween(t *testing.T) {
	// June 2024: Wednesdays on the 5th, 12th, 19th, 26th
	start := NewDate(2024, 6, 1)
	end := NewDate(2024, 6, 30)

	dates := WeekdaysBetween(start, end, time.Wednesday)
	require.Len(t, dates, 4)
	require.Equal(t, NewDate(2024, 6, 5), dates[0])
	require.Equal(t, NewDate(2024, 6, 26), dates[3])

	// inclusive when the range starts on the target weekday
	dates = WeekdaysBetween(NewDate(2024, 6, 5), end, time.Wednesday)
	require.Len(t, dates, 4)
}

func Test_MonthEndsBetween(t *testing.T) {
	dates := MonthEndsBetween(NewDate(2024, 1, 15), NewDate(2024, 4, 10))
	require.Equal(t, []time.Time{
		NewDate(2024, 1, 31),
		NewDate(2024, 2, 29),
		NewDate(2024, 3, 31),
	}, dates)
}

func Test_DateHelpers(t *testing.T) {
	d1 := NewDate(2024, 6, 5)
	d2 := NewDate(2024, 6, 6)

	require.True(t, DateLte(d1, d1))
	require.True(t, DateLte(d1, d2))
	require.False(t, DateLte(d2, d1))
	require.True(t, SameDay(d1, d1.Add(5*time.Hour)))
	require.False(t, SameDay(d1, d2))
}
