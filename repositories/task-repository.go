package repositories

import (
	"context"
	"fmt"
	"time"

	"indicator-project/tracking-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskFilter narrows paginated task queries.
type TaskFilter struct {
	IndicatorID  *primitive.ObjectID
	DepartmentID string
	Status       models.TaskStatus
	LeaderID     string
	SortBy       string
	Ascending    bool
}

// TaskRepository owns the Task aggregate. Mutating an embedded subtask or
// submission always goes through Save, which rewrites the whole owning
// document; the aggregate is the concurrency unit.
type TaskRepository interface {
	Insert(ctx context.Context, task *models.Task) error
	FindRootByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	FindParentContainingSubtask(ctx context.Context, subtaskID primitive.ObjectID) (*models.Task, error)
	// Save rewrites the aggregate guarded by its version; a stale version
	// fails with a Conflict domain error.
	Save(ctx context.Context, task *models.Task) error
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	FindByParent(ctx context.Context, parentID primitive.ObjectID) ([]models.Task, error)
	FindByIndicator(ctx context.Context, indicatorID primitive.ObjectID) ([]models.Task, error)
	// FindDueBefore returns tasks whose own deadline or any embedded
	// subtask deadline has passed while still pending/submitted.
	FindDueBefore(ctx context.Context, deadline time.Time) ([]models.Task, error)
	// FindInvolvingUser returns tasks where the user is leader, supporter,
	// indicator creator, or a subtask leader/assignee.
	FindInvolvingUser(ctx context.Context, userID string) ([]models.Task, error)
	List(ctx context.Context, filter TaskFilter, page, limit int64) ([]models.Task, int64, error)
}

type MongoTaskRepository struct {
	collection *mongo.Collection
}

func NewMongoTaskRepository(collection *mongo.Collection) *MongoTaskRepository {
	return &MongoTaskRepository{collection: collection}
}

func (r *MongoTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	result, err := r.collection.InsertOne(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to insert task: %v", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		task.ID = oid
	}
	return nil
}

func (r *MongoTaskRepository) FindRootByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch task: %v", err)
	}
	return &task, nil
}

func (r *MongoTaskRepository) FindParentContainingSubtask(ctx context.Context, subtaskID primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	err := r.collection.FindOne(ctx, bson.M{"subTasks._id": subtaskID}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch parent task: %v", err)
	}
	return &task, nil
}

func (r *MongoTaskRepository) Save(ctx context.Context, task *models.Task) error {
	prev := task.Version
	task.Version = prev + 1
	task.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": task.ID, "version": prev}, task)
	if err != nil {
		task.Version = prev
		return fmt.Errorf("failed to save task: %v", err)
	}
	if result.MatchedCount == 0 {
		task.Version = prev
		return models.Conflictf("task %s was modified concurrently, reload and retry", task.ID.Hex())
	}
	return nil
}

func (r *MongoTaskRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete task: %v", err)
	}
	return nil
}

func (r *MongoTaskRepository) FindByParent(ctx context.Context, parentID primitive.ObjectID) ([]models.Task, error) {
	return r.findAll(ctx, bson.M{"parentTask": parentID})
}

func (r *MongoTaskRepository) FindByIndicator(ctx context.Context, indicatorID primitive.ObjectID) ([]models.Task, error) {
	return r.findAll(ctx, bson.M{"indicatorId": indicatorID})
}

func (r *MongoTaskRepository) FindDueBefore(ctx context.Context, deadline time.Time) ([]models.Task, error) {
	open := bson.A{models.StatusPending, models.StatusSubmitted}
	filter := bson.M{"$or": bson.A{
		bson.M{"status": bson.M{"$in": open}, "endDate": bson.M{"$lt": deadline}},
		bson.M{"subTasks": bson.M{"$elemMatch": bson.M{
			"status":  bson.M{"$in": open},
			"endDate": bson.M{"$lt": deadline},
		}}},
	}}
	return r.findAll(ctx, filter)
}

func (r *MongoTaskRepository) FindInvolvingUser(ctx context.Context, userID string) ([]models.Task, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"leaderId": userID},
		bson.M{"supporterIds": userID},
		bson.M{"indicatorCreator": userID},
		bson.M{"subTasks.leaderId": userID},
		bson.M{"subTasks.assigneeId": userID},
	}}
	return r.findAll(ctx, filter)
}

func (r *MongoTaskRepository) List(ctx context.Context, filter TaskFilter, page, limit int64) ([]models.Task, int64, error) {
	query := bson.M{}
	if filter.IndicatorID != nil {
		query["indicatorId"] = *filter.IndicatorID
	}
	if filter.DepartmentID != "" {
		query["departmentId"] = filter.DepartmentID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.LeaderID != "" {
		query["leaderId"] = filter.LeaderID
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %v", err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	order := -1
	if filter.Ascending {
		order = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: order}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, 0, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, total, nil
}

func (r *MongoTaskRepository) findAll(ctx context.Context, filter bson.M) ([]models.Task, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, nil
}
