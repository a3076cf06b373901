package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"jobtrack/internal/database"
)

// NoteHandler serves note creation. Notes are append-only, so this is the
// whole surface.
type NoteHandler struct {
	db *gorm.DB
}

// NewNoteHandler constructs a NoteHandler.
func NewNoteHandler(db *gorm.DB) *NoteHandler {
	return &NoteHandler{db: db}
}

type createNoteRequest struct {
	JobID   uint   `json:"jobId"`
	Content string `json:"content"`
}

func (r createNoteRequest) validate() string {
	if r.JobID == 0 {
		return "Job id is required"
	}
	if strings.TrimSpace(r.Content) == "" {
		return "Note content is required"
	}
	return ""
}

// CreateNote appends a note to a job the caller owns.
func (h *NoteHandler) CreateNote(c *gin.Context) {
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		BadRequest(c, msg)
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()

	var job database.Job
	if err := h.db.WithContext(ctx).First(&job, req.JobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "Job not found")
			return
		}
		Internal(c)
		return
	}
	if job.UserID != userID {
		Forbidden(c, "Unauthorized")
		return
	}

	note := database.Note{
		JobID:   job.ID,
		Content: req.Content,
	}
	if err := h.db.WithContext(ctx).Create(&note).Error; err != nil {
		Internal(c)
		return
	}

	c.JSON(http.StatusCreated, newNoteResponse(note))
}
