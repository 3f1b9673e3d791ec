package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// Project is a unit of work owned by the ngo that created it.
type Project struct {
	Base
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `gorm:"type:text;not null" json:"description"`
	Category    string                      `gorm:"not null;index" json:"category"`
	Skills      datatypes.JSONSlice[string] `json:"skills"`
	Deadline    time.Time                   `gorm:"not null" json:"deadline"`
	Status      ProjectStatus               `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	Image       string                      `json:"image"`
	CreatedBy   uint                        `gorm:"not null;index" json:"createdBy"`

	// Relations
	Creator *User  `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Tasks   []Task `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.Skills == nil {
		p.Skills = datatypes.JSONSlice[string]{}
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	return nil
}

func (p *Project) OwnedBy(u *User) bool {
	return p != nil && u != nil && p.CreatedBy == u.ID
}
