package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"jobtrack/internal/database"
)

// StatsHandler computes dashboard aggregates for the caller's jobs.
type StatsHandler struct {
	db *gorm.DB
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(db *gorm.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

type monthlyCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type statsResponse struct {
	Stats               map[string]int64 `json:"stats"`
	MonthlyApplications []monthlyCount   `json:"monthlyApplications"`
}

// GetStats returns per-status counts (all four status keys always present,
// zero-filled) and application counts for the six most recent calendar
// months that contain at least one application.
func (h *StatsHandler) GetStats(c *gin.Context) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	var rows []struct {
		Status database.JobStatus
		Count  int64
	}
	if err := h.db.WithContext(ctx).
		Model(&database.Job{}).
		Select("status, COUNT(*) as count").
		Where("user_id = ?", user.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		Internal(c)
		return
	}

	stats := map[string]int64{"total": 0}
	for _, status := range database.JobStatuses {
		stats[string(status)] = 0
	}
	for _, row := range rows {
		stats[string(row.Status)] = row.Count
		stats["total"] += row.Count
	}

	monthly, err := h.monthlyApplications(c, user.ID)
	if err != nil {
		Internal(c)
		return
	}

	c.JSON(http.StatusOK, statsResponse{
		Stats:               stats,
		MonthlyApplications: monthly,
	})
}

// monthlyApplications buckets job creation times by (year, month) in Go so
// that the same month name in different years is never conflated, then keeps
// the six most recent buckets. Only the short month name is exposed.
func (h *StatsHandler) monthlyApplications(c *gin.Context, userID uint) ([]monthlyCount, error) {
	var createdAts []time.Time
	if err := h.db.WithContext(c.Request.Context()).
		Model(&database.Job{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("created_at", &createdAts).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		label string
		count int64
	}
	counts := map[int]*bucket{}
	var order []int
	for _, createdAt := range createdAts {
		key := createdAt.Year()*12 + int(createdAt.Month()) - 1
		if b, ok := counts[key]; ok {
			b.count++
			continue
		}
		counts[key] = &bucket{label: createdAt.Format("Jan"), count: 1}
		order = append(order, key)
	}

	if len(order) > 6 {
		order = order[:6]
	}

	monthly := make([]monthlyCount, 0, len(order))
	for _, key := range order {
		monthly = append(monthly, monthlyCount{
			Month: counts[key].label,
			Count: counts[key].count,
		})
	}
	return monthly, nil
}
