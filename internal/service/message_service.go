package service

import (
	"context"
	"log/slog"

	"peloton/internal/middleware"
	"peloton/internal/models"
	"peloton/internal/notifications"
	"peloton/internal/repository"
	"peloton/internal/validation"
)

// MessageService owns direct and group messaging.
type MessageService struct {
	messageRepo   repository.MessageRepository
	friendRepo    repository.FriendRepository
	groupRepo     repository.GroupRepository
	notifications *NotificationService
	activity      *ActivityTracker
	hub           SocketEmitter
	publisher     EventPublisher
}

// NewMessageService returns a new MessageService. The notification,
// activity and realtime collaborators may be nil in tests.
func NewMessageService(
	messageRepo repository.MessageRepository,
	friendRepo repository.FriendRepository,
	groupRepo repository.GroupRepository,
	notifications *NotificationService,
	activity *ActivityTracker,
	hub SocketEmitter,
	publisher EventPublisher,
) *MessageService {
	return &MessageService{
		messageRepo:   messageRepo,
		friendRepo:    friendRepo,
		groupRepo:     groupRepo,
		notifications: notifications,
		activity:      activity,
		hub:           hub,
		publisher:     publisher,
	}
}

// Send delivers a direct message. Sender and receiver must be friends.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uint, content string) (*models.Message, error) {
	if senderID == receiverID {
		return nil, models.NewValidationError("cannot message yourself")
	}
	if err := validation.ValidateContent(content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	friends, err := s.friendRepo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, models.NewUnauthorizedError("you can only message friends")
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	loaded, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err == nil && loaded != nil {
		msg = loaded
	}

	if s.activity != nil {
		s.activity.Record(ctx, senderID, ActivityMessage)
	}
	s.emitNewMessage(ctx, receiverID, msg)
	if s.notifications != nil {
		s.notifications.DirectMessage(ctx, msg)
	}
	return msg, nil
}

// Conversation returns the message history between the user and a peer,
// newest first.
func (s *MessageService) Conversation(ctx context.Context, userID, peerID uint, limit, offset int) ([]models.Message, error) {
	return s.messageRepo.GetConversation(ctx, userID, peerID, limit, offset)
}

// MarkConversationRead marks every unread message from peer to user as read
// and returns how many changed. Replays return zero.
func (s *MessageService) MarkConversationRead(ctx context.Context, userID, peerID uint) (int64, error) {
	return s.messageRepo.MarkConversationRead(ctx, userID, peerID)
}

// UnreadCount returns the user's total unread direct messages.
func (s *MessageService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.messageRepo.UnreadCount(ctx, userID)
}

// ConversationPartners lists users the caller has exchanged messages with,
// most recent conversation first.
func (s *MessageService) ConversationPartners(ctx context.Context, userID uint) ([]models.User, error) {
	return s.messageRepo.ListConversationPartners(ctx, userID)
}

// SendToGroup posts a message into the group chat. Membership required.
func (s *MessageService) SendToGroup(ctx context.Context, groupID, senderID uint, content string) (*models.GroupMessage, error) {
	if err := validation.ValidateContent(content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	member, err := s.groupRepo.GetMember(ctx, groupID, senderID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, models.NewUnauthorizedError("group membership required")
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	msg := &models.GroupMessage{
		GroupID:  groupID,
		SenderID: senderID,
		Content:  content,
	}
	if err := s.messageRepo.CreateGroupMessage(ctx, msg); err != nil {
		return nil, err
	}

	if s.activity != nil {
		s.activity.Record(ctx, senderID, ActivityMessage)
	}

	memberIDs, err := s.groupRepo.MemberIDs(ctx, groupID)
	if err != nil {
		middleware.Logger.Warn("group message fan-out: list members failed",
			slog.Uint64("group_id", uint64(groupID)), slog.String("error", err.Error()))
		return msg, nil
	}

	for _, memberID := range memberIDs {
		if memberID == senderID {
			continue
		}
		s.emitNewMessage(ctx, memberID, msg)
	}
	if s.notifications != nil {
		s.notifications.GroupMessage(ctx, msg, group.Name, memberIDs)
	}
	return msg, nil
}

// GroupMessages returns a group's chat history, newest first. Membership
// required.
func (s *MessageService) GroupMessages(ctx context.Context, groupID, userID uint, limit, offset int) ([]models.GroupMessage, error) {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, models.NewUnauthorizedError("group membership required")
	}
	return s.messageRepo.GetGroupMessages(ctx, groupID, limit, offset)
}

// MarkGroupMessageRead records a read receipt. Membership required, and the
// message must belong to the addressed group. Idempotent per (message, user).
func (s *MessageService) MarkGroupMessageRead(ctx context.Context, groupID, messageID, userID uint) error {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return models.NewUnauthorizedError("group membership required")
	}

	msg, err := s.messageRepo.GetGroupMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.GroupID != groupID {
		return models.NewNotFoundError("GroupMessage", messageID)
	}

	return s.messageRepo.MarkGroupMessageRead(ctx, messageID, userID)
}

// GroupUnreadCount counts group messages the user has not read, excluding
// their own.
func (s *MessageService) GroupUnreadCount(ctx context.Context, groupID, userID uint) (int64, error) {
	return s.messageRepo.GroupUnreadCount(ctx, groupID, userID)
}

func (s *MessageService) emitNewMessage(ctx context.Context, recipientID uint, payload any) {
	event := notifications.Event{Type: notifications.EventNewMessage, Payload: payload}
	if s.hub != nil {
		s.hub.BroadcastEvent(recipientID, event)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishUserEvent(ctx, recipientID, event); err != nil {
			middleware.Logger.Warn("message emit: publish failed",
				slog.Uint64("recipient_id", uint64(recipientID)), slog.String("error", err.Error()))
		}
	}
}
