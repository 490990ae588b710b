package models

import (
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusSubmitted TaskStatus = "submitted"
	StatusApproved  TaskStatus = "approved"
	StatusOverdue   TaskStatus = "overdue"
)

// taskTransitions is the validated transition table for tasks and subtasks.
// Overdue is a time-driven synonym-state layered on pending/submitted; the
// only way out of it is a re-submission.
var taskTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:   {StatusSubmitted, StatusOverdue},
	StatusSubmitted: {StatusApproved, StatusPending, StatusOverdue},
	StatusOverdue:   {StatusSubmitted},
	StatusApproved:  {},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Settled reports whether the status gates a parent submission: a root task
// may only be submitted once every subtask is settled.
func (s TaskStatus) Settled() bool {
	return s == StatusSubmitted || s == StatusApproved
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// Attachment is a stable reference to a stored file.
type Attachment struct {
	Path     string `json:"path" bson:"path"`
	FileName string `json:"fileName" bson:"fileName"`
}

// Submission is one submitted artifact against a task or subtask.
// Submissions are append-only; approval decisions mutate the addressed
// submission in place but never remove earlier ones.
type Submission struct {
	ID              primitive.ObjectID `json:"id" bson:"_id"`
	Attachment      *Attachment        `json:"attachment,omitempty" bson:"attachment,omitempty"`
	Link            string             `json:"link,omitempty" bson:"link,omitempty"`
	Note            string             `json:"note,omitempty" bson:"note,omitempty"`
	SubmittedBy     string             `json:"submittedBy" bson:"submittedBy"`
	SubmittedAt     time.Time          `json:"submittedAt" bson:"submittedAt"`
	ApprovalStatus  ApprovalStatus     `json:"approvalStatus" bson:"approvalStatus"`
	ApprovalComment string             `json:"approvalComment,omitempty" bson:"approvalComment,omitempty"`
	Reviewer        string             `json:"reviewer,omitempty" bson:"reviewer,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
}

// ApprovalEntry is an immutable audit record appended on every approval
// decision.
type ApprovalEntry struct {
	Action     ApprovalAction `json:"action" bson:"action"`
	Comment    string         `json:"comment,omitempty" bson:"comment,omitempty"`
	Reviewer   string         `json:"reviewer" bson:"reviewer"`
	ReviewedAt time.Time      `json:"reviewedAt" bson:"reviewedAt"`
}

// Subtask is embedded in its owning root Task and never persisted on its
// own. It has its own approver (leader) distinct from the parent's.
type Subtask struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id"`
	Title           string              `json:"title" bson:"title"`
	Content         string              `json:"content,omitempty" bson:"content,omitempty"`
	EndDate         time.Time           `json:"endDate" bson:"endDate"`
	Status          TaskStatus          `json:"status" bson:"status"`
	LeaderID        string              `json:"leaderId" bson:"leaderId"`
	AssigneeID      string              `json:"assigneeId" bson:"assigneeId"`
	Attachment      *Attachment         `json:"attachment,omitempty" bson:"attachment,omitempty"`
	Submissions     []Submission        `json:"submissions" bson:"submissions"`
	ApprovalHistory []ApprovalEntry     `json:"approvalHistory" bson:"approvalHistory"`
	ClonedFrom      *primitive.ObjectID `json:"clonedFrom,omitempty" bson:"clonedFrom,omitempty"`
	OverdueNotified bool                `json:"overdueNotified" bson:"overdueNotified"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
}

// Task is the root aggregate. Subtasks, submissions and approval history are
// embedded; any mutation of an embedded child is persisted by rewriting the
// whole document guarded by Version.
type Task struct {
	ID               primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Code             string              `json:"code" bson:"code"`
	Title            string              `json:"title" bson:"title"`
	Content          string              `json:"content,omitempty" bson:"content,omitempty"`
	EndDate          time.Time           `json:"endDate" bson:"endDate"`
	Status           TaskStatus          `json:"status" bson:"status"`
	IndicatorID      primitive.ObjectID  `json:"indicatorId" bson:"indicatorId"`
	IndicatorCreator string              `json:"indicatorCreator" bson:"indicatorCreator"`
	LeaderID         string              `json:"leaderId" bson:"leaderId"`
	SupporterIDs     []string            `json:"supporterIds" bson:"supporterIds"`
	DepartmentID     string              `json:"departmentId,omitempty" bson:"departmentId,omitempty"`
	Attachment       *Attachment         `json:"attachment,omitempty" bson:"attachment,omitempty"`
	Submissions      []Submission        `json:"submissions" bson:"submissions"`
	SubTasks         []Subtask           `json:"subTasks" bson:"subTasks"`
	ApprovalHistory  []ApprovalEntry     `json:"approvalHistory" bson:"approvalHistory"`
	ParentTask       *primitive.ObjectID `json:"parentTask,omitempty" bson:"parentTask,omitempty"`
	OverdueNotified  bool                `json:"overdueNotified" bson:"overdueNotified"`
	Version          int64               `json:"version" bson:"version"`
	CreatedAt        time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// FindSubtask returns the embedded subtask with the given id, or nil.
func (t *Task) FindSubtask(subtaskID primitive.ObjectID) *Subtask {
	for i := range t.SubTasks {
		if t.SubTasks[i].ID == subtaskID {
			return &t.SubTasks[i]
		}
	}
	return nil
}

// AllSubtasksSettled reports whether every subtask is submitted or approved.
// True for a task with no subtasks.
func (t *Task) AllSubtasksSettled() bool {
	for i := range t.SubTasks {
		if !t.SubTasks[i].Status.Settled() {
			return false
		}
	}
	return true
}

// LatestSubmission returns a pointer to the most recent submission in the
// given slice, or nil if there are none.
func LatestSubmission(subs []Submission) *Submission {
	if len(subs) == 0 {
		return nil
	}
	return &subs[len(subs)-1]
}

// SubmissionByID returns the submission with the given id, or nil.
func SubmissionByID(subs []Submission, id primitive.ObjectID) *Submission {
	for i := range subs {
		if subs[i].ID == id {
			return &subs[i]
		}
	}
	return nil
}

// NewTaskCode generates a unique task code from the current timestamp plus a
// random suffix. Collisions are astronomically unlikely and not defended
// against.
func NewTaskCode(now time.Time) string {
	return fmt.Sprintf("TSK-%s-%04d", now.Format("20060102150405"), rand.Intn(10000))
}
