package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"indicator-project/tracking-service/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory implementations of the repository contracts. Used by tests and
// local development; they mirror the document-store semantics, including the
// version check on task saves.

type InMemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[primitive.ObjectID]*models.Task
}

func NewInMemoryTaskRepository() *InMemoryTaskRepository {
	return &InMemoryTaskRepository{tasks: make(map[primitive.ObjectID]*models.Task)}
}

func cloneTask(t *models.Task) *models.Task {
	c := *t
	c.SupporterIDs = append([]string(nil), t.SupporterIDs...)
	c.Submissions = append([]models.Submission(nil), t.Submissions...)
	c.ApprovalHistory = append([]models.ApprovalEntry(nil), t.ApprovalHistory...)
	c.SubTasks = make([]models.Subtask, len(t.SubTasks))
	for i := range t.SubTasks {
		st := t.SubTasks[i]
		st.Submissions = append([]models.Submission(nil), t.SubTasks[i].Submissions...)
		st.ApprovalHistory = append([]models.ApprovalEntry(nil), t.SubTasks[i].ApprovalHistory...)
		c.SubTasks[i] = st
	}
	return &c
}

func (r *InMemoryTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	r.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *InMemoryTaskRepository) FindRootByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	return cloneTask(task), nil
}

func (r *InMemoryTaskRepository) FindParentContainingSubtask(ctx context.Context, subtaskID primitive.ObjectID) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, task := range r.tasks {
		for i := range task.SubTasks {
			if task.SubTasks[i].ID == subtaskID {
				return cloneTask(task), nil
			}
		}
	}
	return nil, nil
}

func (r *InMemoryTaskRepository) Save(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tasks[task.ID]
	if !ok || current.Version != task.Version {
		return models.Conflictf("task %s was modified concurrently, reload and retry", task.ID.Hex())
	}
	task.Version++
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *InMemoryTaskRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

func (r *InMemoryTaskRepository) FindByParent(ctx context.Context, parentID primitive.ObjectID) ([]models.Task, error) {
	return r.collect(func(t *models.Task) bool {
		return t.ParentTask != nil && *t.ParentTask == parentID
	}), nil
}

func (r *InMemoryTaskRepository) FindByIndicator(ctx context.Context, indicatorID primitive.ObjectID) ([]models.Task, error) {
	return r.collect(func(t *models.Task) bool {
		return t.IndicatorID == indicatorID
	}), nil
}

func (r *InMemoryTaskRepository) FindDueBefore(ctx context.Context, deadline time.Time) ([]models.Task, error) {
	open := func(s models.TaskStatus) bool {
		return s == models.StatusPending || s == models.StatusSubmitted
	}
	return r.collect(func(t *models.Task) bool {
		if open(t.Status) && t.EndDate.Before(deadline) {
			return true
		}
		for i := range t.SubTasks {
			if open(t.SubTasks[i].Status) && t.SubTasks[i].EndDate.Before(deadline) {
				return true
			}
		}
		return false
	}), nil
}

func (r *InMemoryTaskRepository) FindInvolvingUser(ctx context.Context, userID string) ([]models.Task, error) {
	return r.collect(func(t *models.Task) bool {
		if t.LeaderID == userID || t.IndicatorCreator == userID {
			return true
		}
		for _, s := range t.SupporterIDs {
			if s == userID {
				return true
			}
		}
		for i := range t.SubTasks {
			if t.SubTasks[i].LeaderID == userID || t.SubTasks[i].AssigneeID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (r *InMemoryTaskRepository) List(ctx context.Context, filter TaskFilter, page, limit int64) ([]models.Task, int64, error) {
	matched := r.collect(func(t *models.Task) bool {
		if filter.IndicatorID != nil && t.IndicatorID != *filter.IndicatorID {
			return false
		}
		if filter.DepartmentID != "" && t.DepartmentID != filter.DepartmentID {
			return false
		}
		if filter.Status != "" && t.Status != filter.Status {
			return false
		}
		if filter.LeaderID != "" && t.LeaderID != filter.LeaderID {
			return false
		}
		return true
	})

	sort.Slice(matched, func(i, j int) bool {
		if filter.Ascending {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})

	total := int64(len(matched))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= total {
		return []models.Task{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *InMemoryTaskRepository) collect(match func(*models.Task) bool) []models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Task
	for _, task := range r.tasks {
		if match(task) {
			out = append(out, *cloneTask(task))
		}
	}
	return out
}

type InMemoryIndicatorRepository struct {
	mu         sync.RWMutex
	indicators map[primitive.ObjectID]*models.Indicator
}

func NewInMemoryIndicatorRepository() *InMemoryIndicatorRepository {
	return &InMemoryIndicatorRepository{indicators: make(map[primitive.ObjectID]*models.Indicator)}
}

func (r *InMemoryIndicatorRepository) Insert(ctx context.Context, indicator *models.Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if indicator.ID.IsZero() {
		indicator.ID = primitive.NewObjectID()
	}
	copied := *indicator
	r.indicators[indicator.ID] = &copied
	return nil
}

func (r *InMemoryIndicatorRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Indicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	indicator, ok := r.indicators[id]
	if !ok {
		return nil, nil
	}
	copied := *indicator
	return &copied, nil
}

func (r *InMemoryIndicatorRepository) Save(ctx context.Context, indicator *models.Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indicators[indicator.ID]; !ok {
		return models.NotFoundf("indicator %s not found for update", indicator.ID.Hex())
	}
	copied := *indicator
	r.indicators[indicator.ID] = &copied
	return nil
}

func (r *InMemoryIndicatorRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indicators, id)
	return nil
}

func (r *InMemoryIndicatorRepository) FindAll(ctx context.Context) ([]models.Indicator, error) {
	return r.collect(func(*models.Indicator) bool { return true }), nil
}

func (r *InMemoryIndicatorRepository) FindByCreator(ctx context.Context, creatorID string) ([]models.Indicator, error) {
	return r.collect(func(ind *models.Indicator) bool { return ind.CreatorID == creatorID }), nil
}

func (r *InMemoryIndicatorRepository) FindActiveDueBefore(ctx context.Context, deadline time.Time) ([]models.Indicator, error) {
	return r.collect(func(ind *models.Indicator) bool {
		return ind.Status == models.IndicatorActive && ind.EndDate.Before(deadline)
	}), nil
}

func (r *InMemoryIndicatorRepository) collect(match func(*models.Indicator) bool) []models.Indicator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Indicator
	for _, ind := range r.indicators {
		if match(ind) {
			out = append(out, *ind)
		}
	}
	return out
}

type InMemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]bool
}

func NewInMemoryUserDirectory(userIDs ...string) *InMemoryUserDirectory {
	d := &InMemoryUserDirectory{users: make(map[string]bool)}
	for _, id := range userIDs {
		d.users[id] = true
	}
	return d
}

func (d *InMemoryUserDirectory) Add(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID] = true
}

func (d *InMemoryUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[userID], nil
}

type InMemoryDepartmentDirectory struct {
	mu          sync.RWMutex
	departments map[string]bool
}

func NewInMemoryDepartmentDirectory(departmentIDs ...string) *InMemoryDepartmentDirectory {
	d := &InMemoryDepartmentDirectory{departments: make(map[string]bool)}
	for _, id := range departmentIDs {
		d.departments[id] = true
	}
	return d
}

func (d *InMemoryDepartmentDirectory) Add(departmentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.departments[departmentID] = true
}

func (d *InMemoryDepartmentDirectory) Exists(ctx context.Context, departmentID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.departments[departmentID], nil
}

type InMemoryNotificationStore struct {
	mu      sync.RWMutex
	records map[string][]models.Notification
}

func NewInMemoryNotificationStore() *InMemoryNotificationStore {
	return &InMemoryNotificationStore{records: make(map[string][]models.Notification)}
}

func (s *InMemoryNotificationStore) Create(notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	s.records[notification.UserID] = append(s.records[notification.UserID], *notification)
	return nil
}

func (s *InMemoryNotificationStore) ListForUser(userID string, limit int, unreadOnly bool) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	records := s.records[userID]
	for i := len(records) - 1; i >= 0; i-- {
		if unreadOnly && records[i].IsRead {
			continue
		}
		out = append(out, records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryNotificationStore) MarkRead(userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records[userID]
	for i := range records {
		if records[i].ID == notificationID {
			records[i].IsRead = true
			return nil
		}
	}
	return models.NotFoundf("notification %s not found for user %s", notificationID, userID)
}

func (s *InMemoryNotificationStore) Delete(userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records[userID]
	for i := range records {
		if records[i].ID == notificationID {
			s.records[userID] = append(records[:i], records[i+1:]...)
			return nil
		}
	}
	return models.NotFoundf("notification %s not found for user %s", notificationID, userID)
}
