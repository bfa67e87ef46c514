package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("20240105")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, "20240105", FormatDate(got))

	_, err = ParseDate("2024-01-05")
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	got, ok := ParseTime("2024-10-10T10:10:10Z")
	require.True(t, ok)
	assert.Equal(t, "2024-10-10T10:10:10Z", got.Format(time.RFC3339))

	got, ok = ParseTime("2024-10-10")
	require.True(t, ok)
	assert.Equal(t, 10, got.Day())

	_, ok = ParseTime("")
	assert.False(t, ok)
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, ParseDateDefault("", def))
	assert.Equal(t, def, ParseDateDefault("junk", def))
}

func TestDateRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	from, to, err := DateRange("", "", now, 30)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), to)
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), from)

	from, to, err = DateRange("20240101", "20240131", now, 30)
	require.NoError(t, err)
	assert.Equal(t, "20240101", FormatDate(from))
	assert.Equal(t, "20240131", FormatDate(to))

	_, _, err = DateRange("20240201", "20240101", now, 30)
	assert.Error(t, err)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := BackoffWithJitter(10*time.Millisecond, 200*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
	first := BackoffWithJitter(10*time.Millisecond, time.Second, 1)
	assert.GreaterOrEqual(t, first, 5*time.Millisecond)
	assert.LessOrEqual(t, first, 10*time.Millisecond)
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 1))
	assert.Equal(t, 1, ParseIntDefault("x", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
}
