package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserDirectory answers referential-existence checks for user ids. User
// management itself lives in another service; the core only needs to know
// whether a referenced leader/assignee/supporter exists.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

type MongoUserDirectory struct {
	collection *mongo.Collection
}

func NewMongoUserDirectory(collection *mongo.Collection) *MongoUserDirectory {
	return &MongoUserDirectory{collection: collection}
}

func (d *MongoUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	count, err := d.collection.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %v", err)
	}
	return count > 0, nil
}
