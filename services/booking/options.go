// Package booking derives bookable options from the raw availability the
// backend reports. Option derivation is deterministic for a given raw-slot
// snapshot and duration, so a re-fetch after a conflict yields a stable
// offer list.
package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"courtside/models"
)

// BuildOptions groups the raw slots by court and, for every start time in a
// court's slot set, attempts a contiguous run of duration consecutive hourly
// slots. An option is valid only if every step lands on an existing slot of
// the same court and the run never crosses midnight.
func BuildOptions(slots []models.Slot, duration int) []models.BookingOption {
	if duration < 1 {
		duration = 1
	}

	byCourt := make(map[string]map[int]string)
	for _, slot := range slots {
		hour, ok := slotHour(slot.Time)
		if !ok {
			continue
		}
		if byCourt[slot.Court] == nil {
			byCourt[slot.Court] = make(map[int]string)
		}
		byCourt[slot.Court][hour] = canonicalTime(slot.Time)
	}

	courts := make([]string, 0, len(byCourt))
	for court := range byCourt {
		courts = append(courts, court)
	}
	sort.Strings(courts)

	var options []models.BookingOption
	for _, court := range courts {
		hours := byCourt[court]
		starts := make([]int, 0, len(hours))
		for h := range hours {
			starts = append(starts, h)
		}
		sort.Ints(starts)

		for _, start := range starts {
			if start+duration-1 > 23 {
				continue
			}
			times := make([]string, 0, duration)
			valid := true
			for h := start; h < start+duration; h++ {
				t, ok := hours[h]
				if !ok {
					valid = false
					break
				}
				times = append(times, t)
			}
			if valid {
				options = append(options, models.BookingOption{
					Start: hours[start],
					Times: times,
					Court: court,
				})
			}
		}
	}
	return options
}

// CollapseByStart keeps one option per distinct start time, first court wins,
// order-stable. Used for simple choice lists.
func CollapseByStart(options []models.BookingOption) []models.BookingOption {
	seen := make(map[string]bool, len(options))
	collapsed := make([]models.BookingOption, 0, len(options))
	for _, opt := range options {
		if seen[opt.Start] {
			continue
		}
		seen[opt.Start] = true
		collapsed = append(collapsed, opt)
	}
	sort.SliceStable(collapsed, func(i, j int) bool {
		return collapsed[i].Start < collapsed[j].Start
	})
	return collapsed
}

// RankByCloseness picks the max options closest to the desired start time,
// ties broken by the earlier hour. An empty desired time keeps ascending
// start order.
func RankByCloseness(options []models.BookingOption, desired string, max int) []models.BookingOption {
	ranked := make([]models.BookingOption, len(options))
	copy(ranked, options)

	if desiredHour, ok := slotHour(desired); ok {
		sort.SliceStable(ranked, func(i, j int) bool {
			hi, _ := slotHour(ranked[i].Start)
			hj, _ := slotHour(ranked[j].Start)
			di, dj := abs(hi-desiredHour), abs(hj-desiredHour)
			if di != dj {
				return di < dj
			}
			return hi < hj
		})
	} else {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Start < ranked[j].Start
		})
	}

	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// StartTimes lists the distinct start times across options, in option order.
func StartTimes(options []models.BookingOption) []string {
	seen := make(map[string]bool, len(options))
	starts := make([]string, 0, len(options))
	for _, opt := range options {
		if !seen[opt.Start] {
			seen[opt.Start] = true
			starts = append(starts, opt.Start)
		}
	}
	return starts
}

func slotHour(t string) (int, bool) {
	if t == "" {
		return 0, false
	}
	h := t
	if idx := strings.Index(t, ":"); idx >= 0 {
		h = t[:idx]
	}
	hour, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

func canonicalTime(t string) string {
	hour, ok := slotHour(t)
	if !ok {
		return t
	}
	minute := "00"
	if idx := strings.Index(t, ":"); idx >= 0 && len(t) > idx+1 {
		minute = t[idx+1:]
	}
	return fmt.Sprintf("%02d:%s", hour, minute)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
