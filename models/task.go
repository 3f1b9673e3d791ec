package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskClaimed   TaskStatus = "claimed"
	TaskSubmitted TaskStatus = "submitted"
	TaskCompleted TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskOpen, TaskClaimed, TaskSubmitted, TaskCompleted:
		return true
	}
	return false
}

// Task belongs to exactly one project. ClaimedBy is nil iff Status is open.
// PendingContributionID names the contribution awaiting review while the
// task is submitted.
type Task struct {
	Base
	ProjectID             uint                        `gorm:"not null;index" json:"project"`
	Title                 string                      `gorm:"not null" json:"title"`
	Description           string                      `gorm:"type:text;not null" json:"description"`
	Skills                datatypes.JSONSlice[string] `json:"skills"`
	Deadline              time.Time                   `gorm:"not null;index" json:"deadline"`
	Status                TaskStatus                  `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	ClaimedBy             *uint                       `gorm:"index" json:"claimedBy"`
	SubmissionLink        string                      `json:"submissionLink"`
	Feedback              string                      `json:"feedback"`
	PendingContributionID *uint                       `json:"pendingContribution"`

	// Relations
	Project *Project `gorm:"foreignKey:ProjectID" json:"projectDetails,omitempty"`
	Claimer *User    `gorm:"foreignKey:ClaimedBy" json:"claimer,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.Skills == nil {
		t.Skills = datatypes.JSONSlice[string]{}
	}
	if t.Status == "" {
		t.Status = TaskOpen
	}
	return nil
}

func (t *Task) ClaimedByUser(u *User) bool {
	return t != nil && u != nil && t.ClaimedBy != nil && *t.ClaimedBy == u.ID
}
