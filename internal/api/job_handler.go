package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"jobtrack/internal/database"
)

// JobHandler serves the job CRUD surface.
type JobHandler struct {
	db *gorm.DB
}

// NewJobHandler constructs a JobHandler.
func NewJobHandler(db *gorm.DB) *JobHandler {
	return &JobHandler{db: db}
}

var errJobNotOwned = errors.New("job owned by another user")

const appliedDateLayout = "2006-01-02"

type jobResponse struct {
	ID          uint               `json:"id"`
	Position    string             `json:"position"`
	Company     string             `json:"company"`
	Location    string             `json:"location,omitempty"`
	JobType     database.JobType   `json:"jobType"`
	Status      database.JobStatus `json:"status"`
	AppliedDate time.Time          `json:"appliedDate"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type noteResponse struct {
	ID        uint      `json:"id"`
	JobID     uint      `json:"jobId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type jobDetailResponse struct {
	jobResponse
	Notes []noteResponse `json:"notes"`
}

func newJobResponse(job database.Job) jobResponse {
	return jobResponse{
		ID:          job.ID,
		Position:    job.Position,
		Company:     job.Company,
		Location:    job.Location,
		JobType:     job.JobType,
		Status:      job.Status,
		AppliedDate: job.AppliedDate,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}

func newNoteResponse(note database.Note) noteResponse {
	return noteResponse{
		ID:        note.ID,
		JobID:     note.JobID,
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
	}
}

type createJobRequest struct {
	Position    string `json:"position"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	JobType     string `json:"jobType"`
	Status      string `json:"status"`
	AppliedDate string `json:"appliedDate"`
	Notes       string `json:"notes"`
}

// validate returns the first violated field's message, or "" when valid.
func (r createJobRequest) validate() string {
	if strings.TrimSpace(r.Position) == "" {
		return "Position is required"
	}
	if strings.TrimSpace(r.Company) == "" {
		return "Company is required"
	}
	if !database.ValidJobType(database.JobType(r.JobType)) {
		return "Invalid job type"
	}
	if !database.ValidJobStatus(database.JobStatus(r.Status)) {
		return "Invalid status"
	}
	if r.AppliedDate != "" {
		if _, err := time.Parse(appliedDateLayout, r.AppliedDate); err != nil {
			return "Invalid applied date"
		}
	}
	return ""
}

// ListJobs returns the caller's jobs, optionally filtered by status and by a
// case-insensitive substring over position or company.
func (h *JobHandler) ListJobs(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	query := h.db.WithContext(ctx).Where("user_id = ?", user.ID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(position) LIKE ? OR LOWER(company) LIKE ?", pattern, pattern)
	}

	var jobs []database.Job
	if err := query.Order("created_at DESC").Find(&jobs).Error; err != nil {
		Internal(c)
		return
	}

	items := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, newJobResponse(job))
	}
	c.JSON(http.StatusOK, items)
}

// CreateJob validates and persists a new job. When non-empty notes text is
// supplied, the job and its initial note are created in one transaction.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		BadRequest(c, msg)
		return
	}

	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}

	appliedDate := time.Now()
	if req.AppliedDate != "" {
		appliedDate, _ = time.Parse(appliedDateLayout, req.AppliedDate)
	}

	job := database.Job{
		Position:    strings.TrimSpace(req.Position),
		Company:     strings.TrimSpace(req.Company),
		Location:    strings.TrimSpace(req.Location),
		JobType:     database.JobType(req.JobType),
		Status:      database.JobStatus(req.Status),
		AppliedDate: appliedDate,
		UserID:      user.ID,
	}

	ctx := c.Request.Context()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		if strings.TrimSpace(req.Notes) != "" {
			note := database.Note{JobID: job.ID, Content: req.Notes}
			if err := tx.Create(&note).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		Internal(c)
		return
	}

	c.JSON(http.StatusCreated, newJobResponse(job))
}

// GetJob returns a job with its notes, newest note first.
func (h *JobHandler) GetJob(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.replyJobError(c, err)
		return
	}

	var notes []database.Note
	if err := h.db.WithContext(ctx).
		Where("job_id = ?", job.ID).
		Order("created_at DESC").
		Find(&notes).Error; err != nil {
		Internal(c)
		return
	}

	detail := jobDetailResponse{
		jobResponse: newJobResponse(*job),
		Notes:       make([]noteResponse, 0, len(notes)),
	}
	for _, note := range notes {
		detail.Notes = append(detail.Notes, newNoteResponse(note))
	}

	c.JSON(http.StatusOK, detail)
}

type updateJobRequest struct {
	Position *string `json:"position"`
	Company  *string `json:"company"`
	Location *string `json:"location"`
	JobType  *string `json:"jobType"`
	Status   *string `json:"status"`
}

// validate checks only the fields present, returning the first violation.
func (r updateJobRequest) validate() string {
	if r.Position != nil && strings.TrimSpace(*r.Position) == "" {
		return "Position is required"
	}
	if r.Company != nil && strings.TrimSpace(*r.Company) == "" {
		return "Company is required"
	}
	if r.JobType != nil && !database.ValidJobType(database.JobType(*r.JobType)) {
		return "Invalid job type"
	}
	if r.Status != nil && !database.ValidJobStatus(database.JobStatus(*r.Status)) {
		return "Invalid status"
	}
	return ""
}

// UpdateJob applies a partial update; absent fields are left unchanged.
func (h *JobHandler) UpdateJob(c *gin.Context) {
	var req updateJobRequest
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
	job, err := h.jobForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.replyJobError(c, err)
		return
	}

	updates := map[string]any{}
	if req.Position != nil {
		updates["position"] = strings.TrimSpace(*req.Position)
	}
	if req.Company != nil {
		updates["company"] = strings.TrimSpace(*req.Company)
	}
	if req.Location != nil {
		updates["location"] = strings.TrimSpace(*req.Location)
	}
	if req.JobType != nil {
		updates["job_type"] = *req.JobType
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
			Internal(c)
			return
		}
		if err := h.db.WithContext(ctx).First(job, job.ID).Error; err != nil {
			Internal(c)
			return
		}
	}

	c.JSON(http.StatusOK, newJobResponse(*job))
}

// DeleteJob removes a job and all of its notes.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.replyJobError(c, err)
		return
	}

	// Notes are removed explicitly so the cascade does not depend on
	// driver-level foreign key enforcement.
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", job.ID).Delete(&database.Note{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.Job{}, job.ID).Error
	})
	if err != nil {
		Internal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job deleted"})
}

// jobForUser loads a job by id and verifies ownership. The existence check
// runs before the ownership check: a missing job is gorm.ErrRecordNotFound,
// a job owned by someone else is errJobNotOwned.
func (h *JobHandler) jobForUser(ctx context.Context, idParam string, userID uint) (*database.Job, error) {
	jobID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var job database.Job
	if err := h.db.WithContext(ctx).First(&job, uint(jobID)).Error; err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, errJobNotOwned
	}
	return &job, nil
}

func (h *JobHandler) replyJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Job not found")
	case errors.Is(err, errJobNotOwned):
		Forbidden(c, "Unauthorized")
	default:
		Internal(c)
	}
}

// currentUser resolves the session's user id to a user row, replying 401 or
// 404 itself when that fails.
func currentUser(c *gin.Context, db *gorm.DB) (*database.User, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}

	var user database.User
	if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "User not found")
		} else {
			Internal(c)
		}
		return nil, false
	}
	return &user, true
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
