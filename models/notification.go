package models

import "time"

type NotificationKind string

const (
	NotifyContributionSubmitted NotificationKind = "contribution_submitted"
	NotifyContributionApproved  NotificationKind = "contribution_approved"
	NotifyContributionRejected  NotificationKind = "contribution_rejected"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is an outbox row written alongside a lifecycle transition and
// delivered by the notification worker.
type Notification struct {
	Base
	UserID    uint               `gorm:"not null;index" json:"user"`
	Kind      NotificationKind   `gorm:"type:varchar(32);not null" json:"kind"`
	Subject   string             `gorm:"not null" json:"subject"`
	Body      string             `gorm:"type:text" json:"body"`
	Status    NotificationStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Attempts  int                `gorm:"default:0" json:"attempts"`
	LastError string             `json:"-"`
	SentAt    *time.Time         `json:"sentAt"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}
