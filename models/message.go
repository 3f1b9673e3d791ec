package models

// Message is a chat entry relayed to a project room.
type Message struct {
	Base
	ProjectID uint   `gorm:"not null;index" json:"project"`
	SenderID  uint   `gorm:"not null;index" json:"sender"`
	Content   string `gorm:"type:text;not null" json:"content"`

	Sender *User `gorm:"foreignKey:SenderID" json:"senderDetails,omitempty"`
}
