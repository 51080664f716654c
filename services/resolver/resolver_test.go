package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday 2025-06-11 in Madrid.
func refTime(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return time.Date(2025, 6, 11, 10, 30, 0, 0, loc)
}

func TestResolveDate(t *testing.T) {
	ref := refTime(t)

	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"today", "quiero jugar hoy", "2025-06-11", true},
		{"tomorrow", "Mañana por la tarde", "2025-06-12", true},
		{"day after tomorrow", "pasado mañana", "2025-06-13", true},
		{"in n days digit", "en 3 dias", "2025-06-14", true},
		{"in n days word", "en dos días", "2025-06-13", true},
		{"day of month", "el 20 de junio", "2025-06-20", true},
		{"day of month with year", "el 2 de enero de 2026", "2026-01-02", true},
		{"past day of month rolls over", "el 3 de enero", "2026-01-03", true},
		{"weekday same day is today", "el miercoles", "2025-06-11", true},
		{"weekday ahead", "el viernes", "2025-06-13", true},
		{"weekday behind wraps", "el lunes", "2025-06-16", true},
		{"next weekday adds a week", "el próximo miércoles", "2025-06-18", true},
		{"weekday que viene", "el miercoles que viene", "2025-06-18", true},
		{"slash date", "el 25/12", "2025-12-25", true},
		{"slash date with year", "01/02/2026", "2026-02-01", true},
		{"invalid day", "el 32 de mayo", "", false},
		{"nonexistent day", "el 31 de febrero", "", false},
		{"no date", "quiero una pista", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveDate(tc.text, ref)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestResolveTime(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"clock", "a las 14:30", "14:30", true},
		{"clock padded", "9:00", "09:00", true},
		{"a las digit", "a las 17", "17:00", true},
		{"a las word", "a las cinco", "05:00", true},
		{"a la una y media", "a la una y media", "01:30", true},
		{"pm", "5 pm", "17:00", true},
		{"am midnight", "12 am", "00:00", true},
		{"hour with h", "18h", "18:00", true},
		{"bare hour standalone", "14", "14:00", true},
		{"date with month is not a time", "el 5 de mayo", "", false},
		{"date with month keeps explicit clock", "el 5 de mayo a las 14:30", "14:30", true},
		{"out of range", "25:00", "", false},
		{"no time", "una pista de padel", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveTime(tc.text)
			assert.Equal(t, tc.ok, ok, "text %q", tc.text)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestResolveDuration(t *testing.T) {
	hours, clamped, ok := ResolveDuration("2 horas", 3)
	require.True(t, ok)
	assert.Equal(t, 2, hours)
	assert.False(t, clamped)

	hours, clamped, ok = ResolveDuration("una hora", 3)
	require.True(t, ok)
	assert.Equal(t, 1, hours)
	assert.False(t, clamped)

	// Above the maximum degrades to the maximum and reports the clamp.
	hours, clamped, ok = ResolveDuration("5 horas", 3)
	require.True(t, ok)
	assert.Equal(t, 3, hours)
	assert.True(t, clamped)

	hours, clamped, ok = ResolveDuration("cinco horas", 3)
	require.True(t, ok)
	assert.Equal(t, 3, hours)
	assert.True(t, clamped)

	_, _, ok = ResolveDuration("un rato", 3)
	assert.False(t, ok)
}

func TestResolveSport(t *testing.T) {
	sports := []string{"padel", "tenis", "futbol"}

	got, ok := ResolveSport("Quiero una pista de pádel", sports)
	require.True(t, ok)
	assert.Equal(t, "padel", got)

	got, ok = ResolveSport("TENIS mañana", sports)
	require.True(t, ok)
	assert.Equal(t, "tenis", got)

	_, ok = ResolveSport("quiero nadar", sports)
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "manana a las 14:00", Normalize("  Mañana   a las 14:00 "))
	assert.Equal(t, "proximo miercoles", Normalize("Próximo MIÉRCOLES"))
}
