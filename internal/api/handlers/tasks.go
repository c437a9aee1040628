package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Task statuses. No workflow is enforced; status is a free label with
// these conventional values.
const (
	TaskPending = "pending"
	TaskDone    = "done"
)

type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Priority  int    `json:"priority,omitempty"`
	Due       string `json:"due,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (h *Handler) CreateTask(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	var in struct {
		Title    string `json:"title"`
		Status   string `json:"status"`
		Priority int    `json:"priority"`
		Due      string `json:"due"`
	}
	if err := c.ShouldBindJSON(&in); err != nil && err != io.EOF {
		respondBadRequest(c, "invalid JSON body")
		return
	}
	if in.Title == "" {
		in.Title = "untitled"
	}
	if in.Status == "" {
		in.Status = TaskPending
	}

	now := time.Now().UTC().Format(time.RFC3339)
	task := Task{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Status:    in.Status,
		Priority:  in.Priority,
		Due:       in.Due,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.putJSON(c, taskPrefix+task.ID, task); err != nil {
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *Handler) ListTasks(c *gin.Context) {
	h.listJSON(c, taskPrefix, "tasks")
}

func (h *Handler) GetTask(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	var task Task
	if !h.getJSON(c, taskPrefix+c.Param("id"), &task) {
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateTask merges the provided fields into the stored task. Absent
// fields keep their current values.
func (h *Handler) UpdateTask(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	key := taskPrefix + c.Param("id")
	var task Task
	if !h.getJSON(c, key, &task) {
		return
	}

	var in struct {
		Title    *string `json:"title"`
		Status   *string `json:"status"`
		Priority *int    `json:"priority"`
		Due      *string `json:"due"`
	}
	if err := c.ShouldBindJSON(&in); err != nil && err != io.EOF {
		respondBadRequest(c, "invalid JSON body")
		return
	}
	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.Due != nil {
		task.Due = *in.Due
	}
	task.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := h.putJSON(c, key, task); err != nil {
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	h.deleteKey(c, taskPrefix+c.Param("id"))
}
