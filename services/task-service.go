package services

import (
	"context"
	"strings"
	"time"

	"indicator-project/tracking-service/events"
	"indicator-project/tracking-service/models"
	"indicator-project/tracking-service/repositories"
	"indicator-project/tracking-service/storage"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskService is the task lifecycle engine: creation, submission, approval,
// rejection, deletion and overdue cloning for root tasks and their embedded
// subtasks. Every mutation loads the owning root aggregate, changes it in
// memory and writes it back; concurrent writers lose with a Conflict error.
type TaskService struct {
	tasks         repositories.TaskRepository
	indicators    repositories.IndicatorRepository
	users         repositories.UserDirectory
	departments   repositories.DepartmentDirectory
	files         storage.AttachmentStore
	sink          events.EventSink
	notifications *NotificationService
	logger        *logrus.Logger
	now           func() time.Time
}

func NewTaskService(
	tasks repositories.TaskRepository,
	indicators repositories.IndicatorRepository,
	users repositories.UserDirectory,
	departments repositories.DepartmentDirectory,
	files storage.AttachmentStore,
	sink events.EventSink,
	notifications *NotificationService,
	logger *logrus.Logger,
) *TaskService {
	return &TaskService{
		tasks:         tasks,
		indicators:    indicators,
		users:         users,
		departments:   departments,
		files:         files,
		sink:          sink,
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateTaskInput carries both root-task and subtask creation fields; a
// non-nil ParentTaskID selects the subtask path.
type CreateTaskInput struct {
	IndicatorID  primitive.ObjectID
	ParentTaskID *primitive.ObjectID
	Title        string
	Content      string
	EndDate      time.Time
	LeaderID     string
	SupporterIDs []string
	AssigneeID   string
	DepartmentID string
}

// SubmitInput carries one submitted artifact: either raw file bytes or an
// embedded data URI, plus an optional link and note.
type SubmitInput struct {
	FileData []byte
	FileName string
	DataURI  string
	Link     string
	Note     string
}

func (s *TaskService) CreateTask(ctx context.Context, actor models.Principal, input CreateTaskInput, fileData []byte, fileName string) (*models.Task, error) {
	if input.ParentTaskID != nil {
		return s.createSubtask(ctx, actor, input, fileData, fileName)
	}
	return s.createRootTask(ctx, actor, input, fileData, fileName)
}

func (s *TaskService) createRootTask(ctx context.Context, actor models.Principal, input CreateTaskInput, fileData []byte, fileName string) (*models.Task, error) {
	var fieldErrs []string
	if strings.TrimSpace(input.Title) == "" {
		fieldErrs = append(fieldErrs, "title is required")
	}
	if input.EndDate.IsZero() {
		fieldErrs = append(fieldErrs, "endDate is required")
	}
	if input.LeaderID == "" {
		fieldErrs = append(fieldErrs, "leaderId is required")
	}
	if len(input.SupporterIDs) == 0 {
		fieldErrs = append(fieldErrs, "at least one supporter is required")
	}
	if len(fieldErrs) > 0 {
		return nil, models.InvalidInputf("validation failed: %s", strings.Join(fieldErrs, "; "))
	}

	indicator, err := s.indicators.FindByID(ctx, input.IndicatorID)
	if err != nil {
		return nil, err
	}
	if indicator == nil {
		return nil, models.NotFoundf("indicator %s not found", input.IndicatorID.Hex())
	}
	s.refreshIndicatorInline(ctx, indicator)
	if indicator.Status == models.IndicatorCompleted {
		return nil, models.InvalidStatef("indicator %s is completed and no longer accepts tasks", indicator.ID.Hex())
	}

	if err := s.requireUsers(ctx, append([]string{input.LeaderID}, input.SupporterIDs...)); err != nil {
		return nil, err
	}

	now := s.now()
	task := &models.Task{
		ID:               primitive.NewObjectID(),
		Code:             models.NewTaskCode(now),
		Title:            input.Title,
		Content:          input.Content,
		EndDate:          input.EndDate,
		Status:           models.StatusPending,
		IndicatorID:      indicator.ID,
		IndicatorCreator: indicator.CreatorID,
		LeaderID:         input.LeaderID,
		SupporterIDs:     input.SupporterIDs,
		DepartmentID:     input.DepartmentID,
		Submissions:      []models.Submission{},
		SubTasks:         []models.Subtask{},
		ApprovalHistory:  []models.ApprovalEntry{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if len(fileData) > 0 {
		attachment, err := s.files.Save(fileData, fileName)
		if err != nil {
			return nil, err
		}
		task.Attachment = &attachment
	}

	if err := s.tasks.Insert(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Infof("Event ID: TASK_CREATED, Description: Root task %s (%s) created under indicator %s.", task.Code, task.ID.Hex(), indicator.ID.Hex())
	return task, nil
}

func (s *TaskService) createSubtask(ctx context.Context, actor models.Principal, input CreateTaskInput, fileData []byte, fileName string) (*models.Task, error) {
	parent, err := s.tasks.FindRootByID(ctx, *input.ParentTaskID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, models.NotFoundf("parent task %s not found", input.ParentTaskID.Hex())
	}
	if parent.Status.Settled() {
		return nil, models.InvalidStatef("cannot add a subtask to a %s task", parent.Status)
	}
	if !canManageTask(actor, parent) {
		return nil, models.Forbiddenf("user %s may not create subtasks on task %s", actor.ID, parent.Code)
	}

	var fieldErrs []string
	if strings.TrimSpace(input.Title) == "" {
		fieldErrs = append(fieldErrs, "title is required")
	}
	if input.EndDate.IsZero() {
		fieldErrs = append(fieldErrs, "endDate is required")
	}
	if input.LeaderID == "" {
		fieldErrs = append(fieldErrs, "leaderId is required")
	}
	if input.AssigneeID == "" {
		fieldErrs = append(fieldErrs, "assigneeId is required")
	}
	if len(fieldErrs) > 0 {
		return nil, models.InvalidInputf("validation failed: %s", strings.Join(fieldErrs, "; "))
	}

	if err := s.requireUsers(ctx, []string{input.LeaderID, input.AssigneeID}); err != nil {
		return nil, err
	}

	subtask := models.Subtask{
		ID:              primitive.NewObjectID(),
		Title:           input.Title,
		Content:         input.Content,
		EndDate:         input.EndDate,
		Status:          models.StatusPending,
		LeaderID:        input.LeaderID,
		AssigneeID:      input.AssigneeID,
		Submissions:     []models.Submission{},
		ApprovalHistory: []models.ApprovalEntry{},
		CreatedAt:       s.now(),
	}

	if len(fileData) > 0 {
		attachment, err := s.files.Save(fileData, fileName)
		if err != nil {
			return nil, err
		}
		subtask.Attachment = &attachment
	}

	parent.SubTasks = append(parent.SubTasks, subtask)
	if err := s.tasks.Save(ctx, parent); err != nil {
		return nil, err
	}

	s.logger.Infof("Event ID: SUBTASK_CREATED, Description: Subtask %s created under task %s.", subtask.ID.Hex(), parent.Code)
	s.sink.NotifyUser(subtask.AssigneeID, "info", "You have been assigned a new subtask: "+subtask.Title)
	return parent, nil
}

// UpdateTaskPatch applies partial edits; nil fields are left untouched.
type UpdateTaskPatch struct {
	Title        *string
	Content      *string
	EndDate      *time.Time
	LeaderID     *string
	SupporterIDs *[]string
	AssigneeID   *string
	DepartmentID *string
}

func (s *TaskService) UpdateTask(ctx context.Context, actor models.Principal, id primitive.ObjectID, patch UpdateTaskPatch, fileData []byte, fileName string) (*models.Task, error) {
	root, subtask, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManageTask(actor, root) {
		return nil, models.Forbiddenf("user %s may not edit task %s", actor.ID, root.Code)
	}

	status := root.Status
	if subtask != nil {
		status = subtask.Status
	}
	if status.Settled() {
		return nil, models.InvalidStatef("cannot edit a %s task; reject it first to reopen", status)
	}

	if patch.LeaderID != nil {
		if err := s.requireUsers(ctx, []string{*patch.LeaderID}); err != nil {
			return nil, err
		}
	}
	if patch.SupporterIDs != nil {
		if subtask != nil {
			return nil, models.InvalidInputf("subtasks have no supporters")
		}
		if len(*patch.SupporterIDs) == 0 {
			return nil, models.InvalidInputf("at least one supporter is required")
		}
		if err := s.requireUsers(ctx, *patch.SupporterIDs); err != nil {
			return nil, err
		}
	}
	if patch.AssigneeID != nil {
		if subtask == nil {
			return nil, models.InvalidInputf("root tasks have no assignee")
		}
		if err := s.requireUsers(ctx, []string{*patch.AssigneeID}); err != nil {
			return nil, err
		}
	}
	if patch.DepartmentID != nil && *patch.DepartmentID != "" {
		if err := s.requireDepartment(ctx, *patch.DepartmentID); err != nil {
			return nil, err
		}
	}

	var newAttachment *models.Attachment
	if len(fileData) > 0 {
		saved, err := s.files.Save(fileData, fileName)
		if err != nil {
			return nil, err
		}
		newAttachment = &saved
	}

	if subtask != nil {
		applySubtaskPatch(subtask, patch)
		if newAttachment != nil {
			s.deleteFileQuietly(subtask.Attachment)
			subtask.Attachment = newAttachment
		}
	} else {
		applyTaskPatch(root, patch)
		if newAttachment != nil {
			s.deleteFileQuietly(root.Attachment)
			root.Attachment = newAttachment
		}
	}

	if err := s.tasks.Save(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

func applyTaskPatch(task *models.Task, patch UpdateTaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Content != nil {
		task.Content = *patch.Content
	}
	if patch.EndDate != nil {
		task.EndDate = *patch.EndDate
	}
	if patch.LeaderID != nil {
		task.LeaderID = *patch.LeaderID
	}
	if patch.SupporterIDs != nil {
		task.SupporterIDs = *patch.SupporterIDs
	}
	if patch.DepartmentID != nil {
		task.DepartmentID = *patch.DepartmentID
	}
}

func applySubtaskPatch(subtask *models.Subtask, patch UpdateTaskPatch) {
	if patch.Title != nil {
		subtask.Title = *patch.Title
	}
	if patch.Content != nil {
		subtask.Content = *patch.Content
	}
	if patch.EndDate != nil {
		subtask.EndDate = *patch.EndDate
	}
	if patch.LeaderID != nil {
		subtask.LeaderID = *patch.LeaderID
	}
	if patch.AssigneeID != nil {
		subtask.AssigneeID = *patch.AssigneeID
	}
}

func (s *TaskService) DeleteTask(ctx context.Context, actor models.Principal, id primitive.ObjectID) error {
	root, subtask, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if !canManageTask(actor, root) {
		return models.Forbiddenf("user %s may not delete task %s", actor.ID, root.Code)
	}

	if subtask != nil {
		if subtask.Status.Settled() {
			return models.InvalidStatef("cannot delete a %s subtask", subtask.Status)
		}
		s.deleteSubtaskFiles(subtask)
		for i := range root.SubTasks {
			if root.SubTasks[i].ID == subtask.ID {
				root.SubTasks = append(root.SubTasks[:i], root.SubTasks[i+1:]...)
				break
			}
		}
		return s.tasks.Save(ctx, root)
	}

	if root.Status.Settled() {
		return models.InvalidStatef("cannot delete a %s task", root.Status)
	}
	return s.deleteRootCascade(ctx, root)
}

// deleteRootCascade removes a root task, its files, and every task in its
// clone chain. File deletion is best effort.
func (s *TaskService) deleteRootCascade(ctx context.Context, root *models.Task) error {
	s.deleteTaskFiles(root)
	if err := s.tasks.DeleteByID(ctx, root.ID); err != nil {
		return err
	}
	s.logger.Infof("Event ID: TASK_DELETED, Description: Task %s (%s) deleted.", root.Code, root.ID.Hex())

	clones, err := s.tasks.FindByParent(ctx, root.ID)
	if err != nil {
		return err
	}
	for i := range clones {
		if err := s.deleteRootCascade(ctx, &clones[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *TaskService) deleteTaskFiles(task *models.Task) {
	s.deleteFileQuietly(task.Attachment)
	for i := range task.Submissions {
		s.deleteFileQuietly(task.Submissions[i].Attachment)
	}
	for i := range task.SubTasks {
		s.deleteSubtaskFiles(&task.SubTasks[i])
	}
}

func (s *TaskService) deleteSubtaskFiles(subtask *models.Subtask) {
	s.deleteFileQuietly(subtask.Attachment)
	for i := range subtask.Submissions {
		s.deleteFileQuietly(subtask.Submissions[i].Attachment)
	}
}

func (s *TaskService) deleteFileQuietly(attachment *models.Attachment) {
	if attachment == nil {
		return
	}
	if err := s.files.Delete(attachment.Path); err != nil {
		s.logger.Warnf("Event ID: FILE_DELETE_FAILED, Description: Could not delete attachment %s: %v", attachment.Path, err)
	}
}

// SubmitTask appends a submission against a root task or, when subtaskID is
// set, against that subtask within the task. A root task with subtasks can
// only be submitted once every subtask is submitted or approved.
func (s *TaskService) SubmitTask(ctx context.Context, actor models.Principal, taskID primitive.ObjectID, subtaskID *primitive.ObjectID, input SubmitInput) (*models.Task, error) {
	root, err := s.tasks.FindRootByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, models.NotFoundf("task %s not found", taskID.Hex())
	}

	var subtask *models.Subtask
	if subtaskID != nil {
		subtask = root.FindSubtask(*subtaskID)
		if subtask == nil {
			return nil, models.NotFoundf("subtask %s not found in task %s", subtaskID.Hex(), root.Code)
		}
	} else if !root.AllSubtasksSettled() {
		return nil, models.InvalidStatef("task %s cannot be submitted until all subtasks are submitted or approved", root.Code)
	}

	attachment, err := s.storeSubmissionFile(input)
	if err != nil {
		return nil, err
	}

	submission := models.Submission{
		ID:             primitive.NewObjectID(),
		Attachment:     attachment,
		Link:           input.Link,
		Note:           input.Note,
		SubmittedBy:    actor.ID,
		SubmittedAt:    s.now(),
		ApprovalStatus: models.ApprovalPending,
	}

	var notifyLeader string
	if subtask != nil {
		subtask.Submissions = append(subtask.Submissions, submission)
		if subtask.Status != models.StatusApproved {
			subtask.Status = models.StatusSubmitted
		}
		notifyLeader = subtask.LeaderID
	} else {
		root.Submissions = append(root.Submissions, submission)
		// Submitting an already-approved task logs the submission but never
		// regresses the status.
		if root.Status != models.StatusApproved {
			root.Status = models.StatusSubmitted
		}
		notifyLeader = root.LeaderID
	}

	if err := s.tasks.Save(ctx, root); err != nil {
		return nil, err
	}

	s.sink.Broadcast("task_submitted", map[string]string{"taskId": root.ID.Hex(), "code": root.Code})
	s.sink.NotifyUser(notifyLeader, "info", "A submission is awaiting your review on "+root.Code)
	if err := s.notifications.Notify(notifyLeader, models.NotificationApprovalResult, "Submission awaiting review", "A new submission was added on "+root.Code, root.ID.Hex()); err != nil {
		s.logger.Warnf("Event ID: NOTIFY_FAILED, Description: %v", err)
	}
	return root, nil
}

// storeSubmissionFile enforces that exactly one artifact source is present
// and persists it. A failed save fails the whole submit: no state change
// without a durable attachment.
func (s *TaskService) storeSubmissionFile(input SubmitInput) (*models.Attachment, error) {
	hasUpload := len(input.FileData) > 0
	hasDataURI := input.DataURI != ""
	if hasUpload == hasDataURI {
		return nil, models.InvalidInputf("a submission requires exactly one of an uploaded file or an embedded data URI")
	}

	data := input.FileData
	name := input.FileName
	if hasDataURI {
		decoded, err := storage.DecodeDataURI(input.DataURI)
		if err != nil {
			return nil, err
		}
		data = decoded
		if name == "" {
			name = "submission"
		}
	}

	attachment, err := s.files.Save(data, name)
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

// ApproveTask approves the addressed submission and flips the task or
// subtask to approved.
func (s *TaskService) ApproveTask(ctx context.Context, actor models.Principal, taskID primitive.ObjectID, subtaskID, submissionID *primitive.ObjectID, comment string) (*models.Task, error) {
	return s.decide(ctx, actor, taskID, subtaskID, submissionID, comment, models.ActionApprove)
}

// RejectTask rejects the addressed submission and returns the task or
// subtask to pending. The comment is mandatory.
func (s *TaskService) RejectTask(ctx context.Context, actor models.Principal, taskID primitive.ObjectID, subtaskID, submissionID *primitive.ObjectID, comment string) (*models.Task, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, models.InvalidInputf("a rejection comment is required")
	}
	return s.decide(ctx, actor, taskID, subtaskID, submissionID, comment, models.ActionReject)
}

func (s *TaskService) decide(ctx context.Context, actor models.Principal, taskID primitive.ObjectID, subtaskID, submissionID *primitive.ObjectID, comment string, action models.ApprovalAction) (*models.Task, error) {
	root, err := s.tasks.FindRootByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, models.NotFoundf("task %s not found", taskID.Hex())
	}

	var submissions *[]models.Submission
	var history *[]models.ApprovalEntry
	var status *models.TaskStatus
	var notifyUser string

	if subtaskID != nil {
		subtask := root.FindSubtask(*subtaskID)
		if subtask == nil {
			return nil, models.NotFoundf("subtask %s not found in task %s", subtaskID.Hex(), root.Code)
		}
		if !canApproveSubtask(actor, subtask) {
			return nil, models.Forbiddenf("only the subtask leader may review subtask %s", subtask.ID.Hex())
		}
		submissions = &subtask.Submissions
		history = &subtask.ApprovalHistory
		status = &subtask.Status
		notifyUser = subtask.AssigneeID
	} else {
		if !canApproveRootTask(actor, root) {
			return nil, models.Forbiddenf("user %s may not review task %s", actor.ID, root.Code)
		}
		if action == models.ActionApprove && !root.AllSubtasksSettled() {
			return nil, models.InvalidStatef("task %s cannot be approved until all subtasks are submitted or approved", root.Code)
		}
		submissions = &root.Submissions
		history = &root.ApprovalHistory
		status = &root.Status
	}

	var target *models.Submission
	if submissionID != nil {
		target = models.SubmissionByID(*submissions, *submissionID)
		if target == nil {
			return nil, models.NotFoundf("submission %s not found", submissionID.Hex())
		}
	} else {
		target = models.LatestSubmission(*submissions)
		if target == nil {
			return nil, models.NotFoundf("no submissions to review on task %s", root.Code)
		}
	}
	if notifyUser == "" {
		notifyUser = target.SubmittedBy
	}

	now := s.now()
	target.Reviewer = actor.ID
	target.ReviewedAt = &now
	target.ApprovalComment = comment

	if action == models.ActionApprove {
		target.ApprovalStatus = models.ApprovalApproved
		*status = models.StatusApproved
	} else {
		target.ApprovalStatus = models.ApprovalRejected
		// Reject is the only user-triggered backward transition: the item
		// reopens for resubmission.
		*status = models.StatusPending
	}
	*history = append(*history, models.ApprovalEntry{
		Action:     action,
		Comment:    comment,
		Reviewer:   actor.ID,
		ReviewedAt: now,
	})

	if err := s.tasks.Save(ctx, root); err != nil {
		return nil, err
	}

	verdict := "approved"
	if action == models.ActionReject {
		verdict = "rejected"
	}
	s.logger.Infof("Event ID: TASK_REVIEWED, Description: %s on task %s by %s.", verdict, root.Code, actor.ID)
	s.sink.NotifyUser(notifyUser, "info", "Your submission on "+root.Code+" was "+verdict)
	if err := s.notifications.Notify(notifyUser, models.NotificationApprovalResult, "Submission "+verdict, "Your submission on "+root.Code+" was "+verdict+". "+comment, root.ID.Hex()); err != nil {
		s.logger.Warnf("Event ID: NOTIFY_FAILED, Description: %v", err)
	}
	return root, nil
}

// CloneOverdueTask replaces an overdue item with a fresh-deadline copy.
//
// Subtask addressing clones that subtask in place under its parent. Root
// addressing branches on where the overdue state sits:
//   - task approved, overdue subtasks: clone only those subtasks, in place;
//   - task overdue, no overdue subtasks: clone the whole task as a new root
//     with no subtasks;
//   - task overdue, overdue subtasks: clone the whole task and carry the
//     overdue subtasks into it, deadlines shifted by the same offset as the
//     parent and clamped to the new deadline.
func (s *TaskService) CloneOverdueTask(ctx context.Context, actor models.Principal, id primitive.ObjectID, newDeadline time.Time) (*models.Task, error) {
	if !newDeadline.After(s.now()) {
		return nil, models.InvalidInputf("new deadline must be in the future")
	}

	root, subtask, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManageTask(actor, root) {
		return nil, models.Forbiddenf("user %s may not clone task %s", actor.ID, root.Code)
	}

	if subtask != nil {
		if subtask.Status != models.StatusOverdue {
			return nil, models.InvalidStatef("subtask %s is not overdue", subtask.ID.Hex())
		}
		root.SubTasks = append(root.SubTasks, cloneSubtask(subtask, newDeadline, s.now()))
		if err := s.tasks.Save(ctx, root); err != nil {
			return nil, err
		}
		return root, nil
	}

	var overdueSubs []*models.Subtask
	for i := range root.SubTasks {
		if root.SubTasks[i].Status == models.StatusOverdue {
			overdueSubs = append(overdueSubs, &root.SubTasks[i])
		}
	}

	switch {
	case root.Status == models.StatusApproved && len(overdueSubs) > 0:
		// The task itself is done; only its stragglers get a fresh copy.
		for _, sub := range overdueSubs {
			root.SubTasks = append(root.SubTasks, cloneSubtask(sub, newDeadline, s.now()))
		}
		if err := s.tasks.Save(ctx, root); err != nil {
			return nil, err
		}
		return root, nil

	case root.Status == models.StatusOverdue:
		now := s.now()
		clone := &models.Task{
			ID:               primitive.NewObjectID(),
			Code:             models.NewTaskCode(now),
			Title:            root.Title,
			Content:          root.Content,
			EndDate:          newDeadline,
			Status:           models.StatusPending,
			IndicatorID:      root.IndicatorID,
			IndicatorCreator: root.IndicatorCreator,
			LeaderID:         root.LeaderID,
			SupporterIDs:     append([]string(nil), root.SupporterIDs...),
			DepartmentID:     root.DepartmentID,
			Attachment:       root.Attachment,
			Submissions:      []models.Submission{},
			SubTasks:         []models.Subtask{},
			ApprovalHistory:  []models.ApprovalEntry{},
			ParentTask:       &root.ID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		for _, sub := range overdueSubs {
			// Preserve each subtask's distance from the parent deadline
			// under the translation, never extending past the new deadline.
			shifted := newDeadline.Add(-root.EndDate.Sub(sub.EndDate))
			if shifted.After(newDeadline) {
				shifted = newDeadline
			}
			clone.SubTasks = append(clone.SubTasks, cloneSubtask(sub, shifted, now))
		}
		if err := s.tasks.Insert(ctx, clone); err != nil {
			return nil, err
		}
		s.logger.Infof("Event ID: TASK_CLONED, Description: Overdue task %s cloned as %s with deadline %s.", root.Code, clone.Code, newDeadline.Format(time.RFC3339))
		return clone, nil

	default:
		return nil, models.InvalidStatef("task %s is not overdue", root.Code)
	}
}

func cloneSubtask(src *models.Subtask, deadline time.Time, now time.Time) models.Subtask {
	origID := src.ID
	return models.Subtask{
		ID:              primitive.NewObjectID(),
		Title:           src.Title,
		Content:         src.Content,
		EndDate:         deadline,
		Status:          models.StatusPending,
		LeaderID:        src.LeaderID,
		AssigneeID:      src.AssigneeID,
		Attachment:      src.Attachment,
		Submissions:     []models.Submission{},
		ApprovalHistory: []models.ApprovalEntry{},
		ClonedFrom:      &origID,
		CreatedAt:       now,
	}
}

// GetTask resolves an id to its owning root aggregate.
func (s *TaskService) GetTask(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	root, _, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return root, nil
}

func (s *TaskService) ListTasks(ctx context.Context, filter repositories.TaskFilter, page, limit int64) ([]models.Task, int64, error) {
	return s.tasks.List(ctx, filter, page, limit)
}

// PendingApprovals returns the submitted items awaiting the given reviewer:
// root tasks routed by leader or indicator creator, subtasks routed by their
// own leader.
func (s *TaskService) PendingApprovals(ctx context.Context, reviewer models.Principal) ([]models.Task, error) {
	involved, err := s.tasks.FindInvolvingUser(ctx, reviewer.ID)
	if err != nil {
		return nil, err
	}
	var out []models.Task
	for i := range involved {
		task := involved[i]
		rootPending := task.Status == models.StatusSubmitted &&
			(task.LeaderID == reviewer.ID || task.IndicatorCreator == reviewer.ID || reviewer.Elevated())
		subPending := false
		for j := range task.SubTasks {
			if task.SubTasks[j].Status == models.StatusSubmitted && task.SubTasks[j].LeaderID == reviewer.ID {
				subPending = true
				break
			}
		}
		if rootPending || subPending {
			out = append(out, task)
		}
	}
	return out, nil
}

// resolve maps an id to its owning root task; the second return is non-nil
// when the id addressed an embedded subtask.
func (s *TaskService) resolve(ctx context.Context, id primitive.ObjectID) (*models.Task, *models.Subtask, error) {
	root, err := s.tasks.FindRootByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if root != nil {
		return root, nil, nil
	}

	parent, err := s.tasks.FindParentContainingSubtask(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if parent == nil {
		return nil, nil, models.NotFoundf("task %s not found", id.Hex())
	}
	return parent, parent.FindSubtask(id), nil
}

func (s *TaskService) requireDepartment(ctx context.Context, departmentID string) error {
	exists, err := s.departments.Exists(ctx, departmentID)
	if err != nil {
		return err
	}
	if !exists {
		return models.NotFoundf("department %s not found", departmentID)
	}
	return nil
}

func (s *TaskService) requireUsers(ctx context.Context, userIDs []string) error {
	for _, userID := range userIDs {
		exists, err := s.users.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return models.NotFoundf("user %s not found", userID)
		}
	}
	return nil
}

// refreshIndicatorInline flips an active, past-deadline indicator to
// overdue before a mutating request proceeds. Failures are logged only; the
// sweeper will catch up.
func (s *TaskService) refreshIndicatorInline(ctx context.Context, indicator *models.Indicator) {
	if indicator.Status != models.IndicatorActive || !indicator.EndDate.Before(s.now()) {
		return
	}
	indicator.Status = models.IndicatorOverdue
	if err := s.indicators.Save(ctx, indicator); err != nil {
		s.logger.Warnf("Event ID: INDICATOR_REFRESH_FAILED, Description: Could not mark indicator %s overdue: %v", indicator.ID.Hex(), err)
	}
}
