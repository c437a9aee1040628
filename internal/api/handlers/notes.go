package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at"`
}

func (h *Handler) CreateNote(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	var in struct {
		Title   string   `json:"title"`
		Content string   `json:"content"`
		Tags    []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&in); err != nil && err != io.EOF {
		respondBadRequest(c, "invalid JSON body")
		return
	}
	if in.Title == "" {
		in.Title = "untitled"
	}

	note := Note{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Content:   in.Content,
		Tags:      in.Tags,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.putJSON(c, notePrefix+note.ID, note); err != nil {
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *Handler) ListNotes(c *gin.Context) {
	h.listJSON(c, notePrefix, "notes")
}

func (h *Handler) GetNote(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	var note Note
	if !h.getJSON(c, notePrefix+c.Param("id"), &note) {
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *Handler) DeleteNote(c *gin.Context) {
	h.deleteKey(c, notePrefix+c.Param("id"))
}
