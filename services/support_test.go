package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"indicator-project/tracking-service/models"
	"indicator-project/tracking-service/repositories"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeAttachmentStore struct {
	mu       sync.Mutex
	saved    int
	deleted  []string
	failSave bool
}

func (f *fakeAttachmentStore) Save(data []byte, suggestedName string) (models.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return models.Attachment{}, fmt.Errorf("disk full")
	}
	f.saved++
	return models.Attachment{
		Path:     fmt.Sprintf("/store/%d_%s", f.saved, suggestedName),
		FileName: suggestedName,
	}, nil
}

func (f *fakeAttachmentStore) Delete(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	return nil
}

type fakeSink struct {
	mu         sync.Mutex
	broadcasts []string
	notices    map[string][]string
	connected  []string
}

func newFakeSink(connected ...string) *fakeSink {
	return &fakeSink{notices: make(map[string][]string), connected: connected}
}

func (f *fakeSink) Broadcast(topic string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, topic)
}

func (f *fakeSink) NotifyUser(userID, severity, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices[userID] = append(f.notices[userID], message)
}

func (f *fakeSink) ConnectedUsers() []string {
	return f.connected
}

type fixture struct {
	tasks         *repositories.InMemoryTaskRepository
	indicators    *repositories.InMemoryIndicatorRepository
	users         *repositories.InMemoryUserDirectory
	departments   *repositories.InMemoryDepartmentDirectory
	store         *fakeAttachmentStore
	sink          *fakeSink
	records       *repositories.InMemoryNotificationStore
	notifications *NotificationService
	taskSvc       *TaskService
	indicatorSvc  *IndicatorService
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newFixture(userIDs ...string) *fixture {
	logger := quietLogger()
	f := &fixture{
		tasks:       repositories.NewInMemoryTaskRepository(),
		indicators:  repositories.NewInMemoryIndicatorRepository(),
		users:       repositories.NewInMemoryUserDirectory(userIDs...),
		departments: repositories.NewInMemoryDepartmentDirectory("dep-1"),
		store:       &fakeAttachmentStore{},
		sink:        newFakeSink(),
		records:     repositories.NewInMemoryNotificationStore(),
	}
	f.notifications = NewNotificationService(f.records, logger)
	f.taskSvc = NewTaskService(f.tasks, f.indicators, f.users, f.departments, f.store, f.sink, f.notifications, logger)
	f.indicatorSvc = NewIndicatorService(f.indicators, f.tasks, f.taskSvc, f.sink, logger)
	return f
}

func (f *fixture) mustCreateIndicator(t *testing.T, creator models.Principal, endDate time.Time) *models.Indicator {
	t.Helper()
	indicator, err := f.indicatorSvc.CreateIndicator(ctx(), creator, "Q3 goals", "", endDate, "dep-1")
	require.NoError(t, err)
	return indicator
}

func (f *fixture) mustCreateRootTask(t *testing.T, actor models.Principal, indicatorID primitive.ObjectID, leader string, supporters []string, endDate time.Time) *models.Task {
	t.Helper()
	task, err := f.taskSvc.CreateTask(ctx(), actor, CreateTaskInput{
		IndicatorID:  indicatorID,
		Title:        "root task",
		EndDate:      endDate,
		LeaderID:     leader,
		SupporterIDs: supporters,
	}, nil, "")
	require.NoError(t, err)
	return task
}

func (f *fixture) mustCreateSubtask(t *testing.T, actor models.Principal, parentID primitive.ObjectID, leader, assignee string, endDate time.Time) models.Subtask {
	t.Helper()
	parent, err := f.taskSvc.CreateTask(ctx(), actor, CreateTaskInput{
		ParentTaskID: &parentID,
		Title:        "subtask",
		EndDate:      endDate,
		LeaderID:     leader,
		AssigneeID:   assignee,
	}, nil, "")
	require.NoError(t, err)
	return parent.SubTasks[len(parent.SubTasks)-1]
}

func (f *fixture) mustSubmit(t *testing.T, actor models.Principal, taskID primitive.ObjectID, subtaskID *primitive.ObjectID) *models.Task {
	t.Helper()
	task, err := f.taskSvc.SubmitTask(ctx(), actor, taskID, subtaskID, SubmitInput{
		FileData: []byte("report"),
		FileName: "report.pdf",
	})
	require.NoError(t, err)
	return task
}

func ctx() context.Context {
	return context.Background()
}

func user(id string) models.Principal {
	return models.Principal{ID: id, Role: models.RoleUser}
}

func admin(id string) models.Principal {
	return models.Principal{ID: id, Role: models.RoleAdmin}
}

func director(id string) models.Principal {
	return models.Principal{ID: id, Role: models.RoleUser, Position: models.PositionDirector}
}

func in(d time.Duration) time.Time {
	return time.Now().Add(d)
}
