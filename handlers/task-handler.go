package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"indicator-project/tracking-service/models"
	"indicator-project/tracking-service/repositories"
	"indicator-project/tracking-service/services"
	"indicator-project/tracking-service/storage"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

type createTaskRequest struct {
	IndicatorID  string    `json:"indicatorId"`
	ParentTaskID string    `json:"parentTaskId,omitempty"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	EndDate      time.Time `json:"endDate"`
	LeaderID     string    `json:"leaderId"`
	SupporterIDs []string  `json:"supporterIds,omitempty"`
	AssigneeID   string    `json:"assigneeId,omitempty"`
	DepartmentID string    `json:"departmentId,omitempty"`
	File         string    `json:"file,omitempty"` // data URI
	FileName     string    `json:"fileName,omitempty"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.InvalidInputf("invalid request payload: %v", err))
		return
	}

	input := services.CreateTaskInput{
		Title:        req.Title,
		Content:      req.Content,
		EndDate:      req.EndDate,
		LeaderID:     req.LeaderID,
		SupporterIDs: req.SupporterIDs,
		AssigneeID:   req.AssigneeID,
		DepartmentID: req.DepartmentID,
	}
	if req.IndicatorID != "" {
		indicatorID, err := primitive.ObjectIDFromHex(req.IndicatorID)
		if err != nil {
			writeError(w, models.InvalidInputf("invalid indicator ID format"))
			return
		}
		input.IndicatorID = indicatorID
	}
	if req.ParentTaskID != "" {
		parentID, err := primitive.ObjectIDFromHex(req.ParentTaskID)
		if err != nil {
			writeError(w, models.InvalidInputf("invalid parent task ID format"))
			return
		}
		input.ParentTaskID = &parentID
	}

	var fileData []byte
	if req.File != "" {
		fileData, err = storage.DecodeDataURI(req.File)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	task, err := h.service.CreateTask(r.Context(), actor, input, fileData, req.FileName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "taskID")
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.TaskFilter{
		DepartmentID: query.Get("departmentId"),
		Status:       models.TaskStatus(query.Get("status")),
		LeaderID:     query.Get("leaderId"),
		SortBy:       query.Get("sortBy"),
		Ascending:    query.Get("order") == "asc",
	}
	if raw := query.Get("indicatorId"); raw != "" {
		indicatorID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			writeError(w, models.InvalidInputf("invalid indicator ID format"))
			return
		}
		filter.IndicatorID = &indicatorID
	}
	page, _ := strconv.ParseInt(query.Get("page"), 10, 64)
	limit, _ := strconv.ParseInt(query.Get("limit"), 10, 64)

	tasks, total, err := h.service.ListTasks(r.Context(), filter, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": tasks, "total": total})
}

type updateTaskRequest struct {
	Title        *string    `json:"title,omitempty"`
	Content      *string    `json:"content,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	LeaderID     *string    `json:"leaderId,omitempty"`
	SupporterIDs *[]string  `json:"supporterIds,omitempty"`
	AssigneeID   *string    `json:"assigneeId,omitempty"`
	DepartmentID *string    `json:"departmentId,omitempty"`
	File         string     `json:"file,omitempty"`
	FileName     string     `json:"fileName,omitempty"`
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "taskID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.InvalidInputf("invalid request payload: %v", err))
		return
	}

	var fileData []byte
	if req.File != "" {
		fileData, err = storage.DecodeDataURI(req.File)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	patch := services.UpdateTaskPatch{
		Title:        req.Title,
		Content:      req.Content,
		EndDate:      req.EndDate,
		LeaderID:     req.LeaderID,
		SupporterIDs: req.SupporterIDs,
		AssigneeID:   req.AssigneeID,
		DepartmentID: req.DepartmentID,
	}
	task, err := h.service.UpdateTask(r.Context(), actor, id, patch, fileData, req.FileName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "taskID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.DeleteTask(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}

type submitRequest struct {
	SubtaskID string `json:"subtaskId,omitempty"`
	File      string `json:"file,omitempty"` // data URI
	FileName  string `json:"fileName,omitempty"`
	Link      string `json:"link,omitempty"`
	Note      string `json:"note,omitempty"`
}

// SubmitTask accepts either a multipart upload (field "file") or a JSON
// body carrying a data URI.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "taskID")
	if err != nil {
		writeError(w, err)
		return
	}

	input := services.SubmitInput{}
	var subtaskIDRaw string

	contentType := r.Header.Get("Content-Type")
	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, models.InvalidInputf("invalid multipart payload: %v", err))
			return
		}
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				writeError(w, models.InvalidInputf("could not read uploaded file: %v", err))
				return
			}
			input.FileData = data
			input.FileName = header.Filename
		}
		input.Link = r.FormValue("link")
		input.Note = r.FormValue("note")
		subtaskIDRaw = r.FormValue("subtaskId")
	} else {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, models.InvalidInputf("invalid request payload: %v", err))
			return
		}
		input.DataURI = req.File
		input.FileName = req.FileName
		input.Link = req.Link
		input.Note = req.Note
		subtaskIDRaw = req.SubtaskID
	}

	var subtaskID *primitive.ObjectID
	if subtaskIDRaw != "" {
		sid, err := primitive.ObjectIDFromHex(subtaskIDRaw)
		if err != nil {
			writeError(w, models.InvalidInputf("invalid subtask ID format"))
			return
		}
		subtaskID = &sid
	}

	task, err := h.service.SubmitTask(r.Context(), actor, id, subtaskID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type reviewRequest struct {
	SubtaskID    string `json:"subtaskId,omitempty"`
	SubmissionID string `json:"submissionId,omitempty"`
	Comment      string `json:"comment,omitempty"`
}

func (h *TaskHandler) ApproveTask(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.ApproveTask)
}

func (h *TaskHandler) RejectTask(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.RejectTask)
}

type reviewFunc func(ctx context.Context, actor models.Principal, taskID primitive.ObjectID, subtaskID, submissionID *primitive.ObjectID, comment string) (*models.Task, error)

func (h *TaskHandler) review(w http.ResponseWriter, r *http.Request, decide reviewFunc) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "taskID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.InvalidInputf("invalid request payload: %v", err))
		return
	}

	var subtaskID, submissionID *primitive.ObjectID
	if req.SubtaskID != "" {
		sid, err := primitive.ObjectIDFromHex(req.SubtaskID)
		if err != nil {
			writeError(w, models.InvalidInputf("invalid subtask ID format"))
			return
		}
		subtaskID = &sid
	}
	if req.SubmissionID != "" {
		sid, err := primitive.ObjectIDFromHex(req.SubmissionID)
		if err != nil {
			writeError(w, models.InvalidInputf("invalid submission ID format"))
			return
		}
		submissionID = &sid
	}

	task, err := decide(r.Context(), actor, id, subtaskID, submissionID, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type cloneRequest struct {
	NewDeadline time.Time `json:"newDeadline"`
}

func (h *TaskHandler) CloneOverdueTask(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "taskID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.InvalidInputf("invalid request payload: %v", err))
		return
	}

	task, err := h.service.CloneOverdueTask(r.Context(), actor, id, req.NewDeadline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := h.service.PendingApprovals(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := mux.Vars(r)[name]
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.ObjectID{}, models.InvalidInputf("invalid %s format", name)
	}
	return id, nil
}
