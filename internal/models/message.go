package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a direct message between two users.
type Message struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SenderID   uint       `gorm:"not null;index" json:"sender_id"`
	Sender     *User      `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	ReceiverID uint       `gorm:"not null;index" json:"receiver_id"`
	Receiver   *User      `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"receiver,omitempty"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	IsRead     bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// GroupMessage is a message posted into a group's chat.
type GroupMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index" json:"group_id"`
	Group     *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Sender    *User     `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Reads []GroupMessageRead `gorm:"foreignKey:MessageID" json:"reads,omitempty"`
}

// GroupMessageRead is a per-user read receipt for a group message.
type GroupMessageRead struct {
	MessageID uint      `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ReadAt    time.Time `gorm:"autoCreateTime" json:"read_at"`
}

// TableName specifies the table name for GORM.
func (GroupMessageRead) TableName() string {
	return "group_message_reads"
}
