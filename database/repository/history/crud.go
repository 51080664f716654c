package historyRepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtside/models"
)

// Append records a confirmed booking, deduplicating on the identity tuple
// (sport, date, time, normalized name, normalized surname) and keeping the
// history bounded to HistoryLimit entries per user.
func (r *mongoHistoryRepo) Append(ctx context.Context, booking models.ConfirmedBooking) error {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	if booking.ConfirmedAt.IsZero() {
		booking.ConfirmedAt = time.Now().UTC()
	}

	filter := bson.M{
		"userId":   booking.UserID,
		"sport":    strings.ToLower(booking.Sport),
		"date":     booking.Date,
		"time":     booking.Time,
		"name":     strings.ToLower(strings.TrimSpace(booking.Name)),
		"lastName": strings.ToLower(strings.TrimSpace(booking.LastName)),
	}
	doc := bson.M{
		"id":          booking.ID,
		"userId":      booking.UserID,
		"sport":       strings.ToLower(booking.Sport),
		"date":        booking.Date,
		"time":        booking.Time,
		"court":       booking.Court,
		"name":        strings.ToLower(strings.TrimSpace(booking.Name)),
		"lastName":    strings.ToLower(strings.TrimSpace(booking.LastName)),
		"status":      booking.Status,
		"confirmedAt": booking.ConfirmedAt,
	}

	if _, err := r.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to append booking: %w", err)
	}
	return r.trim(ctx, booking.UserID)
}

// trim removes the oldest entries beyond HistoryLimit.
func (r *mongoHistoryRepo) trim(ctx context.Context, userID string) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "confirmedAt", Value: -1}}).
		SetSkip(int64(HistoryLimit)).
		SetProjection(bson.M{"id": 1})

	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return fmt.Errorf("failed to list overflow bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var overflow []struct {
		ID string `bson:"id"`
	}
	if err := cursor.All(ctx, &overflow); err != nil {
		return fmt.Errorf("failed to decode overflow bookings: %w", err)
	}
	if len(overflow) == 0 {
		return nil
	}

	ids := make([]string, 0, len(overflow))
	for _, doc := range overflow {
		ids = append(ids, doc.ID)
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to trim booking history: %w", err)
	}
	return nil
}

// ListByUser returns the user's confirmed bookings, most recent first.
func (r *mongoHistoryRepo) ListByUser(ctx context.Context, userID string) ([]models.ConfirmedBooking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "confirmedAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.ConfirmedBooking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	// The write-side trim is best-effort; the read path enforces the identity
	// key dedup and the per-user cap regardless of what is stored.
	return models.MergeBookings(bookings, nil, HistoryLimit), nil
}

// Clear removes the user's entire booking history.
func (r *mongoHistoryRepo) Clear(ctx context.Context, userID string) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
		return fmt.Errorf("failed to clear booking history: %w", err)
	}
	return nil
}
