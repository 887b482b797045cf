package models

import "time"

// FriendRequestStatus represents the status of a friend request.
type FriendRequestStatus string

const (
	// FriendRequestStatusPending indicates a request awaiting a response.
	FriendRequestStatusPending FriendRequestStatus = "pending"
	// FriendRequestStatusAccepted indicates an accepted request.
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
	// FriendRequestStatusRejected indicates a rejected request.
	FriendRequestStatusRejected FriendRequestStatus = "rejected"
)

// FriendRequest is a directed friend request between two users.
type FriendRequest struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	RequesterID uint                `gorm:"not null;index;uniqueIndex:idx_friend_request_edge" json:"requester_id"`
	AddresseeID uint                `gorm:"not null;index;uniqueIndex:idx_friend_request_edge" json:"addressee_id"`
	Status      FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index;uniqueIndex:idx_friend_request_edge" json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	Requester User `gorm:"foreignKey:RequesterID;constraint:OnDelete:CASCADE" json:"requester,omitempty"`
	Addressee User `gorm:"foreignKey:AddresseeID;constraint:OnDelete:CASCADE" json:"addressee,omitempty"`
}

// TableName specifies the table name for GORM.
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// Friendship is one direction of an accepted friendship. Accepting a request
// creates both directions (A->B and B->A); either row can be deleted
// independently by its owner.
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"user_id"`
	FriendID  uint      `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`

	User   User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Friend User `gorm:"foreignKey:FriendID;constraint:OnDelete:CASCADE" json:"friend,omitempty"`
}

// TableName specifies the table name for GORM.
func (Friendship) TableName() string {
	return "friendships"
}
