package models

import (
	"fmt"
	"strings"
	"time"
)

// Slot is a single court+time unit of availability reported by the backend.
// Field tags follow the backend wire contract.
type Slot struct {
	Court string `json:"Court"`
	Time  string `json:"Time"` // HH:MM
}

// BookingOption is a derived, court-bound, contiguous start-time offer of the
// requested duration. It is never persisted outside the session's option cache
// and is recomputed whenever raw slots or duration change.
type BookingOption struct {
	Start string   `json:"start"` // HH:MM
	Times []string `json:"times"` // one entry per hour of the requested duration
	Court string   `json:"court"`
}

// ConfirmedBooking is an immutable record of a completed reservation.
type ConfirmedBooking struct {
	ID          string    `bson:"id" json:"id"`
	UserID      string    `bson:"userId" json:"userId"`
	Sport       string    `bson:"sport" json:"sport"`
	Date        string    `bson:"date" json:"date"`
	Time        string    `bson:"time" json:"time"`
	Court       string    `bson:"court,omitempty" json:"court,omitempty"`
	Name        string    `bson:"name" json:"name"`
	LastName    string    `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Status      string    `bson:"status" json:"status"`
	ConfirmedAt time.Time `bson:"confirmedAt" json:"confirmedAt"`
}

// Key is the identity tuple used to deduplicate bookings.
func (b ConfirmedBooking) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		strings.ToLower(b.Sport), b.Date, b.Time,
		strings.ToLower(strings.TrimSpace(b.Name)),
		strings.ToLower(strings.TrimSpace(b.LastName)))
}

// MergeBookings merges two booking lists, deduplicating on Key and keeping the
// most recent entry per key, capped to limit entries (most recent first).
func MergeBookings(a, b []ConfirmedBooking, limit int) []ConfirmedBooking {
	byKey := make(map[string]ConfirmedBooking)
	for _, list := range [][]ConfirmedBooking{a, b} {
		for _, bk := range list {
			prev, ok := byKey[bk.Key()]
			if !ok || bk.ConfirmedAt.After(prev.ConfirmedAt) {
				byKey[bk.Key()] = bk
			}
		}
	}
	merged := make([]ConfirmedBooking, 0, len(byKey))
	for _, bk := range byKey {
		merged = append(merged, bk)
	}
	sortBookingsByRecency(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func sortBookingsByRecency(bookings []ConfirmedBooking) {
	for i := 1; i < len(bookings); i++ {
		for j := i; j > 0 && bookings[j].ConfirmedAt.After(bookings[j-1].ConfirmedAt); j-- {
			bookings[j], bookings[j-1] = bookings[j-1], bookings[j]
		}
	}
}
