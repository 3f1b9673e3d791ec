package models

import "time"

type ContributionStatus string

const (
	ContributionSubmitted ContributionStatus = "submitted"
	ContributionApproved  ContributionStatus = "approved"
	ContributionRejected  ContributionStatus = "rejected"
)

// Contribution records one submission of work for a task. Its status moves
// out of submitted exactly once.
type Contribution struct {
	Base
	TaskID         uint               `gorm:"not null;index" json:"task"`
	ProjectID      uint               `gorm:"not null;index" json:"project"`
	VolunteerID    uint               `gorm:"not null;index" json:"volunteer"`
	SubmissionLink string             `gorm:"not null" json:"submissionLink"`
	Status         ContributionStatus `gorm:"type:varchar(16);not null;default:'submitted';index" json:"status"`
	Feedback       string             `json:"feedback"`
	ApprovedAt     *time.Time         `json:"approvedAt"`

	// Relations
	Task      *Task    `gorm:"foreignKey:TaskID" json:"taskDetails,omitempty"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"projectDetails,omitempty"`
	Volunteer *User    `gorm:"foreignKey:VolunteerID" json:"volunteerDetails,omitempty"`
}
