package repositories

import (
	"context"
	"fmt"
	"time"

	"indicator-project/tracking-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type IndicatorRepository interface {
	Insert(ctx context.Context, indicator *models.Indicator) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Indicator, error)
	Save(ctx context.Context, indicator *models.Indicator) error
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	FindAll(ctx context.Context) ([]models.Indicator, error)
	FindByCreator(ctx context.Context, creatorID string) ([]models.Indicator, error)
	// FindActiveDueBefore returns active indicators whose end date passed.
	FindActiveDueBefore(ctx context.Context, deadline time.Time) ([]models.Indicator, error)
}

type MongoIndicatorRepository struct {
	collection *mongo.Collection
}

func NewMongoIndicatorRepository(collection *mongo.Collection) *MongoIndicatorRepository {
	return &MongoIndicatorRepository{collection: collection}
}

func (r *MongoIndicatorRepository) Insert(ctx context.Context, indicator *models.Indicator) error {
	result, err := r.collection.InsertOne(ctx, indicator)
	if err != nil {
		return fmt.Errorf("failed to insert indicator: %v", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		indicator.ID = oid
	}
	return nil
}

func (r *MongoIndicatorRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Indicator, error) {
	var indicator models.Indicator
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&indicator)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch indicator: %v", err)
	}
	return &indicator, nil
}

func (r *MongoIndicatorRepository) Save(ctx context.Context, indicator *models.Indicator) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": indicator.ID}, indicator)
	if err != nil {
		return fmt.Errorf("failed to save indicator: %v", err)
	}
	if result.MatchedCount == 0 {
		return models.NotFoundf("indicator %s not found for update", indicator.ID.Hex())
	}
	return nil
}

func (r *MongoIndicatorRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete indicator: %v", err)
	}
	return nil
}

func (r *MongoIndicatorRepository) FindAll(ctx context.Context) ([]models.Indicator, error) {
	return r.findAll(ctx, bson.M{})
}

func (r *MongoIndicatorRepository) FindByCreator(ctx context.Context, creatorID string) ([]models.Indicator, error) {
	return r.findAll(ctx, bson.M{"creatorId": creatorID})
}

func (r *MongoIndicatorRepository) FindActiveDueBefore(ctx context.Context, deadline time.Time) ([]models.Indicator, error) {
	return r.findAll(ctx, bson.M{
		"status":  models.IndicatorActive,
		"endDate": bson.M{"$lt": deadline},
	})
}

func (r *MongoIndicatorRepository) findAll(ctx context.Context, filter bson.M) ([]models.Indicator, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicators: %v", err)
	}
	defer cursor.Close(ctx)

	var indicators []models.Indicator
	if err := cursor.All(ctx, &indicators); err != nil {
		return nil, fmt.Errorf("failed to decode indicators: %v", err)
	}
	return indicators, nil
}
