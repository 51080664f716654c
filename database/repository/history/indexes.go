package historyRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyTTL = 30 * 24 * time.Hour

// EnsureIndexes creates the history indexes: a TTL index expiring records 30
// days after confirmation, and a lookup index per user.
func EnsureIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	coll := client.Database(dbName).Collection("confirmed_bookings")

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "confirmedAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(historyTTL.Seconds())),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "confirmedAt", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create history indexes: %w", err)
	}
	return nil
}
