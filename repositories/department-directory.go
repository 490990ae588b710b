package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DepartmentDirectory answers referential-existence checks for department
// ids, the same way UserDirectory does for users. Department management is
// owned upstream.
type DepartmentDirectory interface {
	Exists(ctx context.Context, departmentID string) (bool, error)
}

type MongoDepartmentDirectory struct {
	collection *mongo.Collection
}

func NewMongoDepartmentDirectory(collection *mongo.Collection) *MongoDepartmentDirectory {
	return &MongoDepartmentDirectory{collection: collection}
}

func (d *MongoDepartmentDirectory) Exists(ctx context.Context, departmentID string) (bool, error) {
	count, err := d.collection.CountDocuments(ctx, bson.M{"_id": departmentID})
	if err != nil {
		return false, fmt.Errorf("failed to check department existence: %v", err)
	}
	return count > 0, nil
}
