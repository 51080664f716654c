// Package resolver turns free-form Spanish date, time, duration and sport
// fragments into normalized values. All functions are pure: they never touch
// I/O and never fail on malformed input; unrecognized text is simply not a
// match.
package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var diacritics = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize lower-cases, strips diacritics and collapses whitespace.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = diacritics.Replace(s)
	return spaceRe.ReplaceAllString(s, " ")
}

var numberWords = map[string]int{
	"un": 1, "una": 1, "uno": 1,
	"dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
}

var months = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

var weekdays = map[string]time.Weekday{
	"domingo": time.Sunday, "lunes": time.Monday, "martes": time.Tuesday,
	"miercoles": time.Wednesday, "jueves": time.Thursday,
	"viernes": time.Friday, "sabado": time.Saturday,
}

var (
	inDaysRe      = regexp.MustCompile(`\ben (\d+|un|una|uno|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez) dias?\b`)
	dayOfMonthRe  = regexp.MustCompile(`\b(\d{1,2}) de (enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)(?: de (\d{4}))?\b`)
	weekdayRe     = regexp.MustCompile(`\b(?:(proximo) )?(lunes|martes|miercoles|jueves|viernes|sabado|domingo)( que viene)?\b`)
	slashDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	clockRe       = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	aLasRe        = regexp.MustCompile(`\ba las? (\d{1,2}|una|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez)( y media)?\b`)
	hourSuffixRe  = regexp.MustCompile(`\b(\d{1,2})\s*(am|pm|h)\b`)
	bareHourRe    = regexp.MustCompile(`^(\d{1,2})$`)
	durationRe    = regexp.MustCompile(`\b(\d+|una|uno|un|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez) horas?\b`)
	bareDigitRe   = regexp.MustCompile(`^\d+$`)
)

func parseNumber(s string) (int, bool) {
	if bareDigitRe.MatchString(s) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	}
	n, ok := numberWords[s]
	return n, ok
}

// ResolveDate resolves a relative or absolute Spanish date expression to a
// calendar day in the reference's location. The reference is "now" in the
// club timezone.
func ResolveDate(text string, ref time.Time) (string, bool) {
	norm := Normalize(text)
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())

	if strings.Contains(norm, "pasado manana") {
		return day.AddDate(0, 0, 2).Format(dateLayout), true
	}
	if containsWord(norm, "manana") {
		return day.AddDate(0, 0, 1).Format(dateLayout), true
	}
	if containsWord(norm, "hoy") {
		return day.Format(dateLayout), true
	}

	if m := inDaysRe.FindStringSubmatch(norm); m != nil {
		if n, ok := parseNumber(m[1]); ok {
			return day.AddDate(0, 0, n).Format(dateLayout), true
		}
	}

	if m := dayOfMonthRe.FindStringSubmatch(norm); m != nil {
		d, _ := strconv.Atoi(m[1])
		month := months[m[2]]
		year := day.Year()
		explicitYear := m[3] != ""
		if explicitYear {
			year, _ = strconv.Atoi(m[3])
		}
		if d < 1 || d > 31 {
			return "", false
		}
		candidate := time.Date(year, month, d, 0, 0, 0, 0, ref.Location())
		if candidate.Day() != d { // e.g. 31 de febrero
			return "", false
		}
		if !explicitYear && candidate.Before(day) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate.Format(dateLayout), true
	}

	if m := weekdayRe.FindStringSubmatch(norm); m != nil {
		target := weekdays[m[2]]
		next := m[1] != "" || m[3] != ""
		delta := (int(target) - int(day.Weekday()) + 7) % 7
		if delta == 0 && next {
			delta = 7
		}
		return day.AddDate(0, 0, delta).Format(dateLayout), true
	}

	if m := slashDateRe.FindStringSubmatch(norm); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if d < 1 || d > 31 || mo < 1 || mo > 12 {
			return "", false
		}
		year := day.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		candidate := time.Date(year, time.Month(mo), d, 0, 0, 0, 0, ref.Location())
		if candidate.Day() != d {
			return "", false
		}
		if m[3] == "" && candidate.Before(day) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate.Format(dateLayout), true
	}

	return "", false
}

// ResolveTime resolves a time expression to canonical "HH:MM". Text that
// reads as a date with a month name ("5 de mayo") is never misread as a bare
// hour; only an explicit HH:MM form is accepted alongside it.
func ResolveTime(text string) (string, bool) {
	norm := Normalize(text)

	if m := clockRe.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h <= 23 && min <= 59 {
			return fmt.Sprintf("%02d:%02d", h, min), true
		}
	}

	if m := aLasRe.FindStringSubmatch(norm); m != nil {
		if h, ok := parseNumber(m[1]); ok && h <= 23 {
			min := 0
			if m[2] != "" {
				min = 30
			}
			return fmt.Sprintf("%02d:%02d", h, min), true
		}
	}

	// "5 de mayo" is a date; its bare number is never an hour.
	if dayOfMonthRe.MatchString(norm) {
		return "", false
	}

	if m := hourSuffixRe.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "pm":
			if h < 12 {
				h += 12
			}
		case "am":
			if h == 12 {
				h = 0
			}
		}
		if h <= 23 {
			return fmt.Sprintf("%02d:00", h), true
		}
	}

	if m := bareHourRe.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h <= 23 {
			return fmt.Sprintf("%02d:00", h), true
		}
	}

	return "", false
}

// ResolveDuration resolves a duration in hours. Values above max degrade to
// max and clamped reports that degradation so the caller can surface it.
func ResolveDuration(text string, max int) (hours int, clamped bool, ok bool) {
	norm := Normalize(text)
	m := durationRe.FindStringSubmatch(norm)
	if m == nil {
		return 0, false, false
	}
	n, valid := parseNumber(m[1])
	if !valid || n < 1 {
		return 0, false, false
	}
	if n > max {
		return max, true, true
	}
	return n, false, true
}

// ResolveSport matches the message against the configured sport keyword set.
func ResolveSport(text string, sports []string) (string, bool) {
	norm := Normalize(text)
	for _, sport := range sports {
		if containsWord(norm, Normalize(sport)) {
			return sport, true
		}
	}
	return "", false
}

func containsWord(text, word string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(text)
}
