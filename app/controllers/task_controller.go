package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chetan-skc/Task-Manager-API/app/models"
	"github.com/chetan-skc/Task-Manager-API/app/services"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

// TaskController handles HTTP requests for tasks.
type TaskController struct {
	Service *services.TaskService
}

// NewTaskController creates a new TaskController.
func NewTaskController(service *services.TaskService) *TaskController {
	return &TaskController{Service: service}
}

type subtaskRequest struct {
	ID       *string `json:"_id"`
	Subject  *string `json:"subject"`
	Deadline *string `json:"deadline"`
	Status   *string `json:"status"`
	Deleted  *bool   `json:"deleted"`
}

type createTaskRequest struct {
	Username string           `json:"username"`
	Subject  string           `json:"subject"`
	Deadline string           `json:"deadline"`
	Status   string           `json:"status"`
	Subtasks []subtaskRequest `json:"subtasks"`
}

type updateTaskRequest struct {
	Subject  string `json:"subject"`
	Deadline string `json:"deadline"`
	Status   string `json:"status"`
}

type updateSubtasksRequest struct {
	Subtasks *[]subtaskRequest `json:"subtasks"`
}

// GetTasks handles GET /tasks/{username}.
func (c *TaskController) GetTasks(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	tasks, err := c.Service.ListTasks(r.Context(), username)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tasks)
}

// CreateTask handles POST /tasks.
func (c *TaskController) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorMessage(w, r, http.StatusBadRequest, "Invalid request payload")
		return
	}

	fields, err := taskFields(req.Subject, req.Deadline, req.Status)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	subtasks, err := subtaskPatches(req.Subtasks)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	err = c.Service.CreateTask(r.Context(), services.CreateTaskInput{
		Username: req.Username,
		Fields:   fields,
		Subtasks: subtasks,
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	successMessage(w, r, http.StatusCreated, "Task created successfully")
}

// UpdateTask handles PUT /tasks/{taskID}.
func (c *TaskController) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorMessage(w, r, http.StatusBadRequest, "Invalid request payload")
		return
	}

	fields, err := taskFields(req.Subject, req.Deadline, req.Status)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if err := c.Service.UpdateTask(r.Context(), taskID, fields); err != nil {
		c.fail(w, r, err)
		return
	}
	successMessage(w, r, http.StatusOK, "Task updated successfully")
}

// DeleteTask handles DELETE /tasks/{taskID}.
func (c *TaskController) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]
	if err := c.Service.DeleteTask(r.Context(), taskID); err != nil {
		c.fail(w, r, err)
		return
	}
	successMessage(w, r, http.StatusOK, "Task successfully soft deleted")
}

// ListSubtasks handles GET /tasks/{taskID}/subtasks. The response carries
// no subtask data, only the acknowledgment.
func (c *TaskController) ListSubtasks(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]
	if err := c.Service.ListSubtasks(r.Context(), taskID); err != nil {
		c.fail(w, r, err)
		return
	}
	successMessage(w, r, http.StatusOK, "Subtasks retrieved successfully")
}

// UpdateSubtasks handles PUT /tasks/{taskID}/subtasks.
func (c *TaskController) UpdateSubtasks(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskID"]
	var req updateSubtasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorMessage(w, r, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Subtasks == nil {
		errorMessage(w, r, http.StatusBadRequest, "subtasks array is required")
		return
	}

	patches, err := subtaskPatches(*req.Subtasks)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if err := c.Service.UpdateSubtasks(r.Context(), taskID, patches); err != nil {
		c.fail(w, r, err)
		return
	}
	successMessage(w, r, http.StatusOK, "Subtasks updated successfully")
}

// fail maps service errors onto status codes.
func (c *TaskController) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		errorMessage(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrTaskNotFound):
		errorMessage(w, r, http.StatusNotFound, "Task not found")
	case errors.Is(err, services.ErrInvalidInput):
		errorMessage(w, r, http.StatusBadRequest, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		errorMessage(w, r, http.StatusInternalServerError, err.Error())
	}
}

func taskFields(subject, deadline, status string) (models.TaskFields, error) {
	fields := models.TaskFields{Subject: subject, Status: status}
	if deadline != "" {
		t, err := models.ParseDeadline(deadline)
		if err != nil {
			return fields, fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
		}
		fields.Deadline = t
	}
	return fields, nil
}

func subtaskPatches(reqs []subtaskRequest) ([]models.SubtaskPatch, error) {
	patches := make([]models.SubtaskPatch, 0, len(reqs))
	for i, req := range reqs {
		p := models.SubtaskPatch{
			ID:      req.ID,
			Subject: req.Subject,
			Status:  req.Status,
			Deleted: req.Deleted,
		}
		if req.Deadline != nil {
			t, err := models.ParseDeadline(*req.Deadline)
			if err != nil {
				return nil, fmt.Errorf("%w: subtasks[%d]: %v", services.ErrInvalidInput, i, err)
			}
			p.Deadline = &t
		}
		patches = append(patches, p)
	}
	return patches, nil
}
