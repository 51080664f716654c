package historyRepo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"courtside/models"
)

// HistoryLimit bounds the confirmed bookings kept per user.
const HistoryLimit = 20

// Repository stores the confirmed-booking history. Records outlive the
// session draft: they expire under their own, much longer TTL.
type Repository interface {
	Append(ctx context.Context, booking models.ConfirmedBooking) error
	ListByUser(ctx context.Context, userID string) ([]models.ConfirmedBooking, error)
	Clear(ctx context.Context, userID string) error
}

type mongoHistoryRepo struct {
	coll *mongo.Collection
}

// NewMongoHistoryRepo returns a Repository backed by MongoDB.
func NewMongoHistoryRepo(client *mongo.Client, dbName string) Repository {
	return &mongoHistoryRepo{
		coll: client.Database(dbName).Collection("confirmed_bookings"),
	}
}
