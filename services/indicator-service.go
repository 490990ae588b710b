package services

import (
	"context"
	"strings"
	"time"

	"indicator-project/tracking-service/events"
	"indicator-project/tracking-service/models"
	"indicator-project/tracking-service/repositories"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IndicatorService manages top-level goals: creation, the time-driven
// overdue flip, replacement approval, and cascading deletion of the tasks
// underneath an indicator.
type IndicatorService struct {
	indicators repositories.IndicatorRepository
	tasks      repositories.TaskRepository
	taskSvc    *TaskService
	sink       events.EventSink
	logger     *logrus.Logger
	now        func() time.Time
}

func NewIndicatorService(
	indicators repositories.IndicatorRepository,
	tasks repositories.TaskRepository,
	taskSvc *TaskService,
	sink events.EventSink,
	logger *logrus.Logger,
) *IndicatorService {
	return &IndicatorService{
		indicators: indicators,
		tasks:      tasks,
		taskSvc:    taskSvc,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *IndicatorService) CreateIndicator(ctx context.Context, actor models.Principal, name, description string, endDate time.Time, departmentID string) (*models.Indicator, error) {
	var fieldErrs []string
	if strings.TrimSpace(name) == "" {
		fieldErrs = append(fieldErrs, "name is required")
	}
	if !endDate.After(s.now()) {
		fieldErrs = append(fieldErrs, "endDate must be in the future")
	}
	if len(fieldErrs) > 0 {
		return nil, models.InvalidInputf("validation failed: %s", strings.Join(fieldErrs, "; "))
	}

	indicator := &models.Indicator{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Description:  description,
		EndDate:      endDate,
		Status:       models.IndicatorActive,
		CreatorID:    actor.ID,
		DepartmentID: departmentID,
		CreatedAt:    s.now(),
	}
	if err := s.indicators.Insert(ctx, indicator); err != nil {
		return nil, err
	}
	s.logger.Infof("Event ID: INDICATOR_CREATED, Description: Indicator %s created by %s.", indicator.ID.Hex(), actor.ID)
	return indicator, nil
}

func (s *IndicatorService) GetIndicator(ctx context.Context, id primitive.ObjectID) (*models.Indicator, error) {
	indicator, err := s.indicators.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if indicator == nil {
		return nil, models.NotFoundf("indicator %s not found", id.Hex())
	}
	return indicator, nil
}

func (s *IndicatorService) ListIndicators(ctx context.Context) ([]models.Indicator, error) {
	return s.indicators.FindAll(ctx)
}

// RefreshOverdue flips every active indicator whose end date has passed to
// overdue. Invoked inline before mutating requests and by the sweeper.
func (s *IndicatorService) RefreshOverdue(ctx context.Context) (int, error) {
	due, err := s.indicators.FindActiveDueBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	flipped := 0
	for i := range due {
		due[i].Status = models.IndicatorOverdue
		if err := s.indicators.Save(ctx, &due[i]); err != nil {
			s.logger.Warnf("Event ID: INDICATOR_REFRESH_FAILED, Description: Could not mark indicator %s overdue: %v", due[i].ID.Hex(), err)
			continue
		}
		flipped++
	}
	return flipped, nil
}

// ApproveReplacement completes an overdue indicator by accepting another
// indicator as its replacement. Only elevated principals may do this.
func (s *IndicatorService) ApproveReplacement(ctx context.Context, actor models.Principal, originalID, replacementID primitive.ObjectID) (*models.Indicator, error) {
	if !actor.Elevated() {
		return nil, models.Forbiddenf("user %s may not approve indicator replacements", actor.ID)
	}

	original, err := s.indicators.FindByID(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, models.NotFoundf("indicator %s not found", originalID.Hex())
	}
	if original.Status != models.IndicatorOverdue {
		return nil, models.InvalidStatef("indicator %s is not overdue and cannot be replaced", originalID.Hex())
	}

	replacement, err := s.indicators.FindByID(ctx, replacementID)
	if err != nil {
		return nil, err
	}
	if replacement == nil {
		return nil, models.NotFoundf("replacement indicator %s not found", replacementID.Hex())
	}
	if replacement.Status != models.IndicatorActive {
		return nil, models.InvalidStatef("replacement indicator %s is not active", replacementID.Hex())
	}

	original.Status = models.IndicatorCompleted
	original.ReplacedBy = &replacement.ID
	if err := s.indicators.Save(ctx, original); err != nil {
		return nil, err
	}

	s.logger.Infof("Event ID: INDICATOR_REPLACED, Description: Indicator %s completed, replaced by %s.", original.ID.Hex(), replacement.ID.Hex())
	s.sink.NotifyUser(original.CreatorID, "info", "Your indicator "+original.Name+" was completed via replacement")
	return original, nil
}

// DeleteIndicator removes an indicator and cascades to every task under it,
// including their files.
func (s *IndicatorService) DeleteIndicator(ctx context.Context, actor models.Principal, id primitive.ObjectID) error {
	indicator, err := s.indicators.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if indicator == nil {
		return models.NotFoundf("indicator %s not found", id.Hex())
	}
	if !actor.Elevated() && actor.ID != indicator.CreatorID {
		return models.Forbiddenf("user %s may not delete indicator %s", actor.ID, id.Hex())
	}

	tasks, err := s.tasks.FindByIndicator(ctx, id)
	if err != nil {
		return err
	}
	for i := range tasks {
		s.taskSvc.deleteTaskFiles(&tasks[i])
		if err := s.tasks.DeleteByID(ctx, tasks[i].ID); err != nil {
			return err
		}
	}

	if err := s.indicators.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.logger.Infof("Event ID: INDICATOR_DELETED, Description: Indicator %s deleted with %d tasks.", id.Hex(), len(tasks))
	return nil
}

// HierarchyNode is the read-side projection of an indicator with its tasks.
type HierarchyNode struct {
	Indicator models.Indicator `json:"indicator"`
	Tasks     []models.Task    `json:"tasks"`
}

// Hierarchy dumps indicator -> tasks -> subtasks. Read-only and
// side-effect-free, so callers may freely retry.
func (s *IndicatorService) Hierarchy(ctx context.Context) ([]HierarchyNode, error) {
	indicators, err := s.indicators.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]HierarchyNode, 0, len(indicators))
	for _, indicator := range indicators {
		tasks, err := s.tasks.FindByIndicator(ctx, indicator.ID)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, HierarchyNode{Indicator: indicator, Tasks: tasks})
	}
	return nodes, nil
}
