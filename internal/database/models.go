package database

import (
	"time"

	"gorm.io/gorm"
)

// JobStatus tracks where an application sits in the pipeline.
type JobStatus string

const (
	StatusApplied   JobStatus = "APPLIED"
	StatusInterview JobStatus = "INTERVIEW"
	StatusOffer     JobStatus = "OFFER"
	StatusRejected  JobStatus = "REJECTED"
)

// JobStatuses lists every status in display order.
var JobStatuses = []JobStatus{StatusApplied, StatusInterview, StatusOffer, StatusRejected}

// ValidJobStatus reports whether s is a known status.
func ValidJobStatus(s JobStatus) bool {
	switch s {
	case StatusApplied, StatusInterview, StatusOffer, StatusRejected:
		return true
	}
	return false
}

// JobType is the employment type of a posting.
type JobType string

const (
	TypeFullTime   JobType = "FULL_TIME"
	TypePartTime   JobType = "PART_TIME"
	TypeInternship JobType = "INTERNSHIP"
)

// ValidJobType reports whether t is a known job type.
func ValidJobType(t JobType) bool {
	switch t {
	case TypeFullTime, TypePartTime, TypeInternship:
		return true
	}
	return false
}

// User represents an account in the system.
type User struct {
	gorm.Model
	Name         string `gorm:"size:255"`
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string `gorm:"size:255"`
	Jobs         []Job  `gorm:"constraint:OnDelete:CASCADE"`
}

// Job is a single tracked application. Ownership is fixed at creation and
// never transferred.
type Job struct {
	gorm.Model
	Position    string    `gorm:"size:255"`
	Company     string    `gorm:"size:255"`
	Location    string    `gorm:"size:255"`
	JobType     JobType   `gorm:"size:32"`
	Status      JobStatus `gorm:"size:32;index"`
	AppliedDate time.Time
	UserID      uint   `gorm:"index"`
	User        User   `gorm:"constraint:OnDelete:CASCADE"`
	Notes       []Note `gorm:"constraint:OnDelete:CASCADE"`
}

// Note is a free-text annotation on a job. Notes are append-only: no update
// or delete surface exists for them.
type Note struct {
	gorm.Model
	Content string `gorm:"type:text"`
	JobID   uint   `gorm:"index"`
	Job     Job    `gorm:"constraint:OnDelete:CASCADE"`
}
