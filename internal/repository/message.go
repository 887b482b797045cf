package repository

import (
	"context"
	"errors"
	"time"

	"peloton/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository defines persistence operations for direct and group
// messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	GetConversation(ctx context.Context, userID, peerID uint, limit, offset int) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, userID, peerID uint) (int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	ListConversationPartners(ctx context.Context, userID uint) ([]models.User, error)

	CreateGroupMessage(ctx context.Context, msg *models.GroupMessage) error
	GetGroupMessageByID(ctx context.Context, id uint) (*models.GroupMessage, error)
	GetGroupMessages(ctx context.Context, groupID uint, limit, offset int) ([]models.GroupMessage, error)
	MarkGroupMessageRead(ctx context.Context, messageID, userID uint) error
	GroupUnreadCount(ctx context.Context, groupID, userID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

func (r *messageRepository) GetConversation(ctx context.Context, userID, peerID uint, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, peerID, peerID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

// MarkConversationRead marks every unread message from peer to user as read
// and returns how many rows flipped.
func (r *messageRepository) MarkConversationRead(ctx context.Context, userID, peerID uint) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", peerID, userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// ListConversationPartners returns the distinct users this user has exchanged
// direct messages with, most recent conversation first.
func (r *messageRepository) ListConversationPartners(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	sub := r.db.
		Table("messages").
		Select("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer_id, MAX(created_at) AS last_at", userID).
		Where("(sender_id = ? OR receiver_id = ?) AND deleted_at IS NULL", userID, userID).
		Group("peer_id")

	if err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN (?) conv ON users.id = conv.peer_id", sub).
		Where("users.deleted_at IS NULL").
		Order("conv.last_at DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *messageRepository) CreateGroupMessage(ctx context.Context, msg *models.GroupMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GetGroupMessageByID(ctx context.Context, id uint) (*models.GroupMessage, error) {
	var msg models.GroupMessage
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("GroupMessage", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

func (r *messageRepository) GetGroupMessages(ctx context.Context, groupID uint, limit, offset int) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("Sender").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

// MarkGroupMessageRead records a read receipt. Re-reading the same message is
// a no-op thanks to the composite primary key.
func (r *messageRepository) MarkGroupMessageRead(ctx context.Context, messageID, userID uint) error {
	receipt := models.GroupMessageRead{MessageID: messageID, UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&receipt).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GroupUnreadCount(ctx context.Context, groupID, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.GroupMessage{}).
		Where("group_id = ? AND sender_id != ?", groupID, userID).
		Where("id NOT IN (?)", r.db.
			Table("group_message_reads").
			Select("message_id").
			Where("user_id = ?", userID)).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
