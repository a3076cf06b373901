package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"jobtrack/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Job{}, &database.Note{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) database.User {
	t.Helper()
	user := database.User{Name: "Test User", Email: email, PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedJob(t *testing.T, db *gorm.DB, userID uint, position, company string, status database.JobStatus, createdAt time.Time) database.Job {
	t.Helper()
	job := database.Job{
		Position:    position,
		Company:     company,
		JobType:     database.TypeFullTime,
		Status:      status,
		AppliedDate: createdAt,
		UserID:      userID,
	}
	job.CreatedAt = createdAt
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func testContext(t *testing.T, w *httptest.ResponseRecorder, method, target string, body any, userID uint) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		c.Set("userID", userID)
	}
	return c
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

func bodyMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	decodeBody(t, w, &resp)
	return resp.Message
}

func TestCreateJob_CreatesInitialNoteAtomically(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")
	h := NewJobHandler(db)

	w := httptest.NewRecorder()
	c := testContext(t, w, http.MethodPost, "/v1/jobs", map[string]any{
		"position": "SWE",
		"company":  "Acme",
		"jobType":  "FULL_TIME",
		"status":   "APPLIED",
		"notes":    "hello",
	}, user.ID)

	h.CreateJob(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var created jobResponse
	decodeBody(t, w, &created)
	if created.Status != database.StatusApplied {
		t.Fatalf("expected status APPLIED got %s", created.Status)
	}

	var notes []database.Note
	if err := db.Where("job_id = ?", created.ID).Find(&notes).Error; err != nil {
		t.Fatalf("load notes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected exactly one note got %d", len(notes))
	}
	if notes[0].Content != "hello" {
		t.Fatalf("expected note content %q got %q", "hello", notes[0].Content)
	}
}

func TestCreateJob_ValidationMessages(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")
	h := NewJobHandler(db)

	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{
			name: "missing position",
			body: map[string]any{"company": "Acme", "jobType": "FULL_TIME", "status": "APPLIED"},
			want: "Position is required",
		},
		{
			name: "missing company",
			body: map[string]any{"position": "SWE", "jobType": "FULL_TIME", "status": "APPLIED"},
			want: "Company is required",
		},
		{
			name: "bad job type",
			body: map[string]any{"position": "SWE", "company": "Acme", "jobType": "CONTRACT", "status": "APPLIED"},
			want: "Invalid job type",
		},
		{
			name: "bad status",
			body: map[string]any{"position": "SWE", "company": "Acme", "jobType": "FULL_TIME", "status": "GHOSTED"},
			want: "Invalid status",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c := testContext(t, w, http.MethodPost, "/v1/jobs", tc.body, user.ID)
			h.CreateJob(c)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", w.Code)
			}
			if got := bodyMessage(t, w); got != tc.want {
				t.Fatalf("expected message %q got %q", tc.want, got)
			}
		})
	}
}

func TestGetJob_ExistenceBeforeOwnership(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	other := seedUser(t, db, "other@example.com")
	job := seedJob(t, db, owner.ID, "SWE", "Acme", database.StatusApplied, time.Now())
	h := NewJobHandler(db)

	// Missing job is 404 regardless of caller.
	w := httptest.NewRecorder()
	c := testContext(t, w, http.MethodGet, "/v1/jobs/9999", nil, other.ID)
	c.Params = gin.Params{{Key: "id", Value: "9999"}}
	h.GetJob(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing job got %d", w.Code)
	}

	// Existing job owned by someone else is 403.
	w = httptest.NewRecorder()
	c = testContext(t, w, http.MethodGet, "/v1/jobs/1", nil, other.ID)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.GetJob(c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign job got %d", w.Code)
	}

	// Owner sees the job with notes newest first.
	older := database.Note{JobID: job.ID, Content: "first"}
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := database.Note{JobID: job.ID, Content: "second"}
	newer.CreatedAt = time.Now()
	if err := db.Create(&older).Error; err != nil {
		t.Fatalf("seed note: %v", err)
	}
	if err := db.Create(&newer).Error; err != nil {
		t.Fatalf("seed note: %v", err)
	}

	w = httptest.NewRecorder()
	c = testContext(t, w, http.MethodGet, "/v1/jobs/1", nil, owner.ID)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.GetJob(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var detail jobDetailResponse
	decodeBody(t, w, &detail)
	if len(detail.Notes) != 2 {
		t.Fatalf("expected 2 notes got %d", len(detail.Notes))
	}
	if detail.Notes[0].Content != "second" || detail.Notes[1].Content != "first" {
		t.Fatalf("expected notes newest first, got %q then %q", detail.Notes[0].Content, detail.Notes[1].Content)
	}
}

func TestUpdateJob_PartialUpdate(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	seedJob(t, db, owner.ID, "SWE", "Acme", database.StatusApplied, time.Now())
	h := NewJobHandler(db)

	w := httptest.NewRecorder()
	c := testContext(t, w, http.MethodPatch, "/v1/jobs/1", map[string]any{"status": "INTERVIEW"}, owner.ID)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.UpdateJob(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var updated jobResponse
	decodeBody(t, w, &updated)
	if updated.Status != database.StatusInterview {
		t.Fatalf("expected status INTERVIEW got %s", updated.Status)
	}
	if updated.Position != "SWE" || updated.Company != "Acme" {
		t.Fatalf("absent fields must be unchanged, got position=%q company=%q", updated.Position, updated.Company)
	}
}

func TestUpdateJob_RejectsEmptyRequiredField(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	seedJob(t, db, owner.ID, "SWE", "Acme", database.StatusApplied, time.Now())
	h := NewJobHandler(db)

	w := httptest.NewRecorder()
	c := testContext(t, w, http.MethodPatch, "/v1/jobs/1", map[string]any{"position": "  "}, owner.ID)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.UpdateJob(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	if got := bodyMessage(t, w); got != "Position is required" {
		t.Fatalf("expected message %q got %q", "Position is required", got)
	}
}

func TestListJobs_FilterSearchAndScope(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	other := seedUser(t, db, "other@example.com")

	now := time.Now()
	applied := seedJob(t, db, owner.ID, "SWE", "Acme Corp", database.StatusApplied, now.Add(-2*time.Hour))
	interview := seedJob(t, db, owner.ID, "Backend Engineer", "Globex", database.StatusInterview, now.Add(-time.Hour))
	seedJob(t, db, other.ID, "SWE", "Acme Corp", database.StatusApplied, now)

	h := NewJobHandler(db)

	list := func(target string) []jobResponse {
		t.Helper()
		w := httptest.NewRecorder()
		c := testContext(t, w, http.MethodGet, target, nil, owner.ID)
		h.ListJobs(c)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
		}
		var items []jobResponse
		decodeBody(t, w, &items)
		return items
	}

	all := list("/v1/jobs")
	if len(all) != 2 {
		t.Fatalf("expected 2 owned jobs got %d", len(all))
	}
	if all[0].ID != interview.ID {
		t.Fatalf("expected newest job first, got id %d", all[0].ID)
	}

	filtered := list("/v1/jobs?status=INTERVIEW")
	if len(filtered) != 1 || filtered[0].ID != interview.ID {
		t.Fatalf("status filter returned wrong jobs: %+v", filtered)
	}

	if offers := list("/v1/jobs?status=OFFER"); len(offers) != 0 {
		t.Fatalf("expected no OFFER jobs got %d", len(offers))
	}

	searched := list("/v1/jobs?search=acme")
	if len(searched) != 1 || searched[0].ID != applied.ID {
		t.Fatalf("case-insensitive search returned wrong jobs: %+v", searched)
	}
}

func TestDeleteJob_RemovesNotes(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	other := seedUser(t, db, "other@example.com")
	job := seedJob(t, db, owner.ID, "SWE", "Acme", database.StatusApplied, time.Now())
	for _, content := range []string{"one", "two"} {
		if err := db.Create(&database.Note{JobID: job.ID, Content: content}).Error; err != nil {
			t.Fatalf("seed note: %v", err)
		}
	}

	h := NewJobHandler(db)

	// A non-owner cannot delete.
	w := httptest.NewRecorder()
	c := testContext(t, w, http.MethodDelete, "/v1/jobs/1", nil, other.ID)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.DeleteJob(c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", w.Code)
	}

	w = httptest.NewRecorder()
	c = testContext(t, w, http.MethodDelete, "/v1/jobs/1", nil, owner.ID)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.DeleteJob(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if got := bodyMessage(t, w); got != "Job deleted" {
		t.Fatalf("expected message %q got %q", "Job deleted", got)
	}

	var orphaned int64
	if err := db.Model(&database.Note{}).Where("job_id = ?", job.ID).Count(&orphaned).Error; err != nil {
		t.Fatalf("count notes: %v", err)
	}
	if orphaned != 0 {
		t.Fatalf("expected no orphaned notes got %d", orphaned)
	}
}

func TestListJobs_UnknownUserIs404(t *testing.T) {
	db := newTestDB(t)
	h := NewJobHandler(db)

	w := httptest.NewRecorder()
	c := testContext(t, w, http.MethodGet, "/v1/jobs", nil, 42)
	h.ListJobs(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	if got := bodyMessage(t, w); got != "User not found" {
		t.Fatalf("expected message %q got %q", "User not found", got)
	}
}
